// Package provider defines the listing abstraction the walker drives.
//
// A provider exposes one capability: delimiter-grouped, paginated listing of
// a flat key space. Authentication, region and endpoint handling belong to the
// concrete backends; providers should not implement custom retry logic.
package provider

import "time"

// Provider is a listing client bound to a single bucket (container).
//
// Implementations should:
//   - Map to the store's native delimiter listing when one exists
//   - Support resuming a listing via continuation tokens
//   - Be safe for concurrent use
type Provider interface {
	DelimiterLister

	// Close releases any resources held by the provider.
	Close() error
}

// ObjectSummary contains basic metadata returned from listing operations.
type ObjectSummary struct {
	// Key is the full object key (path) in the bucket.
	Key string

	// Size is the object size in bytes.
	Size int64

	// ETag is the entity tag, typically an MD5 hash of the object.
	ETag string

	// LastModified is when the object was last modified.
	LastModified time.Time
}

// ProviderType identifies a storage backend.
type ProviderType string

const (
	// ProviderS3 represents AWS S3 or S3-compatible storage via the AWS SDK.
	ProviderS3 ProviderType = "s3"

	// ProviderMinio represents S3-compatible storage via minio-go.
	ProviderMinio ProviderType = "minio"

	// ProviderFile represents a local directory listed as a bucket.
	ProviderFile ProviderType = "file"

	// ProviderMemory represents an in-process namespace.
	ProviderMemory ProviderType = "memory"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}

// DefaultDelimiter is the separator used when none is configured.
const DefaultDelimiter = "/"

// DefaultMaxKeys is the page size used when none is configured.
const DefaultMaxKeys = 1000

// ClampMaxKeys applies defaults and limits to a requested page size.
// If requested is <= 0, providerDefault is used. A ceiling <= 0 disables clamping.
func ClampMaxKeys(requested, providerDefault, ceiling int) int {
	if requested <= 0 {
		requested = providerDefault
	}
	if requested <= 0 {
		requested = DefaultMaxKeys
	}
	if ceiling > 0 && requested > ceiling {
		return ceiling
	}
	return requested
}
