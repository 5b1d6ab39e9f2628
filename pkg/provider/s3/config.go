// Package s3 implements delimiter listing for AWS S3 and S3-compatible storage.
package s3

// Config configures an S3 provider.
//
// Authentication priority (AWS SDK v2 default chain):
//  1. Explicit AccessKeyID/SecretAccessKey (if provided)
//  2. Environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY)
//  3. Shared credentials file (~/.aws/credentials)
//  4. Shared config file (~/.aws/config) with profile
//  5. EC2 instance metadata / ECS task role / EKS IRSA
//
// Region handling:
//   - Explicit Region, then environment/profile resolution by the SDK.
//   - If still unresolved and RegionFromIMDS is set, the EC2 instance
//     metadata service is asked.
//   - For AWS S3 the final fallback is us-east-1. When Endpoint is set no
//     default region is applied.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string

	// Region is the AWS region.
	Region string

	// RegionFromIMDS asks the EC2 instance metadata service for the region
	// when neither config nor environment provides one.
	RegionFromIMDS bool

	// Endpoint is a custom endpoint URL for S3-compatible stores.
	// Leave empty for AWS S3.
	Endpoint string

	// Profile is the AWS profile name to use from shared config.
	Profile string

	// AccessKeyID is an explicit access key. If set, SecretAccessKey must also be set.
	AccessKeyID string

	// SecretAccessKey is an explicit secret key. Required if AccessKeyID is set.
	SecretAccessKey string

	// ForcePathStyle forces path-style URLs (bucket in path, not subdomain).
	ForcePathStyle bool

	// MaxKeys is the default page size for listing.
	// Zero uses the provider default (1000). Values over 1000 are clamped.
	MaxKeys int

	// TraceHTTP, when set, receives a dump of every HTTP round trip.
	TraceHTTP func(string, ...interface{})
}

// DefaultMaxKeys is the default page size for listing.
const DefaultMaxKeys = 1000

// MaxAllowedKeys is the maximum page size allowed by S3.
const MaxAllowedKeys = 1000

// DefaultAWSRegion is the fallback region for AWS S3 when not specified.
const DefaultAWSRegion = "us-east-1"

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return &ConfigError{Field: "Bucket", Message: "bucket name is required"}
	}

	if (c.AccessKeyID != "") != (c.SecretAccessKey != "") {
		return &ConfigError{
			Field:   "AccessKeyID/SecretAccessKey",
			Message: "both access key ID and secret access key must be provided together",
		}
	}

	if c.MaxKeys < 0 {
		return &ConfigError{Field: "MaxKeys", Message: "must not be negative"}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "s3 config: " + e.Field + ": " + e.Message
}
