package cmd

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/3leaps/nimbuswalk/pkg/match"
	"github.com/3leaps/nimbuswalk/pkg/provider"
)

// URI parsing errors
var (
	// ErrInvalidURI indicates the URI could not be parsed.
	ErrInvalidURI = errors.New("invalid URI")

	// ErrUnsupportedProvider indicates the URI scheme is not supported.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrMissingBucket indicates the URI is missing a bucket name.
	ErrMissingBucket = errors.New("missing bucket name")
)

// ObjectURI is a parsed walk address.
//
// Example URIs:
//   - s3://bucket/prefix/
//   - s3://bucket/prefix/**/*.parquet
//   - minio://bucket/prefix/ (endpoint from --endpoint)
//   - file:///var/data (the directory is the bucket)
type ObjectURI struct {
	// Provider is the storage provider: s3, minio or file.
	Provider string

	// Bucket is the bucket name, or the directory for file URIs.
	Bucket string

	// Key is the prefix to walk from. May be empty for the bucket root.
	Key string

	// Pattern is set if the path contains glob characters.
	// When set, Key is the literal prefix before the first glob segment.
	Pattern string
}

// String returns the URI in canonical form.
func (u *ObjectURI) String() string {
	if u.Provider == string(provider.ProviderFile) {
		return "file://" + filepath.ToSlash(u.Bucket)
	}
	if u.Pattern != "" {
		return fmt.Sprintf("%s://%s/%s", u.Provider, u.Bucket, u.Pattern)
	}
	if u.Key != "" {
		return fmt.Sprintf("%s://%s/%s", u.Provider, u.Bucket, u.Key)
	}
	return fmt.Sprintf("%s://%s/", u.Provider, u.Bucket)
}

// IsPattern returns true if the URI contains glob pattern characters.
func (u *ObjectURI) IsPattern() bool {
	return u.Pattern != ""
}

// IsPrefix returns true if the URI represents a prefix (ends with /).
func (u *ObjectURI) IsPrefix() bool {
	return strings.HasSuffix(u.Key, "/") || u.Key == ""
}

// ParseURI parses a walk address into its components.
//
// Supported formats:
//   - s3://bucket, s3://bucket/, s3://bucket/prefix/
//   - s3://bucket/prefix/**/*.parquet
//   - minio://bucket/prefix/
//   - file:///abs/dir, file://relative/dir
func ParseURI(uri string) (*ObjectURI, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty URI", ErrInvalidURI)
	}

	// Parsed by hand: url.Parse treats the ? glob as a query delimiter.
	schemeEnd := strings.Index(uri, "://")
	if schemeEnd == -1 {
		return nil, fmt.Errorf("%w: missing scheme (expected s3://, minio:// or file://)", ErrInvalidURI)
	}

	scheme := strings.ToLower(uri[:schemeEnd])
	remainder := uri[schemeEnd+3:]

	switch provider.ProviderType(scheme) {
	case provider.ProviderS3, provider.ProviderMinio:
		return parseBucketURI(uri, scheme, remainder)
	case provider.ProviderFile:
		return parseFileURI(uri, remainder)
	default:
		return nil, fmt.Errorf("%w: %s (supported: s3, minio, file)", ErrUnsupportedProvider, scheme)
	}
}

func parseBucketURI(uri, scheme, remainder string) (*ObjectURI, error) {
	var bucket, key string
	if i := strings.Index(remainder, "/"); i == -1 {
		bucket = remainder
	} else {
		bucket = remainder[:i]
		key = remainder[i+1:]
	}
	if bucket == "" {
		return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, uri)
	}
	if _, err := url.Parse(scheme + "://" + bucket + "/"); err != nil {
		return nil, fmt.Errorf("%w: invalid bucket name %q", ErrInvalidURI, bucket)
	}

	result := &ObjectURI{Provider: scheme, Bucket: bucket, Key: match.DerivePrefix(key)}
	if match.IsGlobPattern(key) {
		result.Pattern = key
	}
	return result, nil
}

func parseFileURI(uri, remainder string) (*ObjectURI, error) {
	if remainder == "" {
		return nil, fmt.Errorf("%w: in %s", ErrMissingBucket, uri)
	}
	if match.IsGlobPattern(remainder) {
		return nil, fmt.Errorf("%w: glob patterns are not supported in file URIs, use --include", ErrInvalidURI)
	}
	dir := filepath.Clean(filepath.FromSlash(remainder))
	return &ObjectURI{Provider: string(provider.ProviderFile), Bucket: dir}, nil
}
