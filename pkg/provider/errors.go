package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for listing operations.
var (
	// ErrAccessDenied indicates insufficient permissions.
	ErrAccessDenied = errors.New("access denied")

	// ErrBucketNotFound indicates the bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrProviderUnavailable indicates the provider service is unavailable.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrThrottled indicates the request was rate limited by the provider.
	ErrThrottled = errors.New("request throttled")

	// ErrInvalidCursor indicates a continuation token was not recognized.
	ErrInvalidCursor = errors.New("invalid continuation token")

	// ErrUnsupportedDelimiter indicates the backend cannot group by the requested delimiter.
	ErrUnsupportedDelimiter = errors.New("unsupported delimiter")
)

// ListingError wraps backend-specific errors with the listing context.
type ListingError struct {
	// Op is the operation that failed (e.g., "ListWithDelimiter", "New").
	Op string

	// Provider is the provider type (e.g., "s3").
	Provider ProviderType

	// Bucket is the bucket name, if applicable.
	Bucket string

	// Prefix is the prefix being listed, if applicable.
	Prefix string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ListingError) Error() string {
	if e.Prefix != "" {
		return fmt.Sprintf("%s %s: %s/%s: %v", e.Provider, e.Op, e.Bucket, e.Prefix, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("%s %s: %s: %v", e.Provider, e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ListingError) Unwrap() error {
	return e.Err
}

// IsAccessDenied returns true if the error indicates insufficient permissions.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsBucketNotFound returns true if the error indicates the bucket does not exist.
func IsBucketNotFound(err error) bool {
	return errors.Is(err, ErrBucketNotFound)
}

// IsInvalidCredentials returns true if the error indicates authentication failed.
func IsInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

// IsProviderUnavailable returns true if the error indicates the provider service is unavailable.
func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

// IsThrottled returns true if the error indicates the request was rate limited.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}

// IsInvalidCursor returns true if the error indicates a bad continuation token.
func IsInvalidCursor(err error) bool {
	return errors.Is(err, ErrInvalidCursor)
}

// Code returns a stable machine-readable code for a listing error.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case IsAccessDenied(err):
		return "ACCESS_DENIED"
	case IsBucketNotFound(err):
		return "BUCKET_NOT_FOUND"
	case IsInvalidCredentials(err):
		return "INVALID_CREDENTIALS"
	case IsThrottled(err):
		return "THROTTLED"
	case IsProviderUnavailable(err):
		return "PROVIDER_UNAVAILABLE"
	case IsInvalidCursor(err):
		return "INVALID_CURSOR"
	case errors.Is(err, ErrUnsupportedDelimiter):
		return "UNSUPPORTED_DELIMITER"
	default:
		return "INTERNAL"
	}
}
