package s3

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/kenshaw/httplog"

	"github.com/3leaps/nimbuswalk/pkg/provider"
)

// imdsTimeout bounds the instance metadata region lookup off EC2.
const imdsTimeout = 2 * time.Second

// Provider implements provider.Provider for AWS S3 and S3-compatible storage.
type Provider struct {
	client  s3.ListObjectsV2APIClient
	bucket  string
	maxKeys int
}

var _ provider.Provider = (*Provider)(nil)

// New creates a new S3 provider with the given configuration.
//
// The provider uses AWS SDK v2's default credential chain unless explicit
// credentials are provided in the config.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, &provider.ListingError{
			Op:       "New",
			Provider: provider.ProviderS3,
			Bucket:   cfg.Bucket,
			Err:      err,
		}
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}
		},
	}

	// Custom endpoint for S3-compatible stores
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return NewWithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

// NewWithClient wraps an existing ListObjectsV2 client.
//
// The config is used only for Bucket and MaxKeys; no validation or
// credential resolution is performed.
func NewWithClient(client s3.ListObjectsV2APIClient, cfg Config) *Provider {
	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	return &Provider{
		client:  client,
		bucket:  cfg.Bucket,
		maxKeys: maxKeys,
	}
}

// loadAWSConfig builds the AWS configuration with appropriate credentials.
func loadAWSConfig(ctx context.Context, cfg Config) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error

	// Only apply explicit region if user set one in config.
	// Let SDK resolve from env/profile first.
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		staticCreds := credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"", // session token (empty for long-term credentials)
		)
		opts = append(opts, config.WithCredentialsProvider(staticCreds))
	}

	if cfg.TraceHTTP != nil {
		opts = append(opts, config.WithHTTPClient(&http.Client{
			Transport: httplog.NewPrefixedRoundTripLogger(http.DefaultTransport, cfg.TraceHTTP),
		}))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, err
	}

	sdkRegion := awsCfg.Region
	if sdkRegion == "" && cfg.RegionFromIMDS && cfg.Endpoint == "" {
		sdkRegion = regionFromIMDS(ctx, awsCfg)
	}
	awsCfg.Region = resolveRegion(cfg.Region, cfg.Endpoint, sdkRegion)

	return awsCfg, nil
}

// regionFromIMDS asks the instance metadata service for the region.
// Returns "" when the service is unreachable.
func regionFromIMDS(ctx context.Context, awsCfg aws.Config) string {
	ctx, cancel := context.WithTimeout(ctx, imdsTimeout)
	defer cancel()

	out, err := imds.NewFromConfig(awsCfg).GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return ""
	}
	return out.Region
}

// ListWithDelimiter returns one page of common prefixes and direct objects.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	maxKeys := clampMaxKeys(opts.MaxKeys, p.maxKeys)

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(p.bucket),
		MaxKeys: aws.Int32(int32(maxKeys)),
	}
	if opts.Prefix != "" {
		input.Prefix = aws.String(opts.Prefix)
	}
	if opts.Delimiter != "" {
		input.Delimiter = aws.String(opts.Delimiter)
	}
	if opts.ContinuationToken != "" {
		input.ContinuationToken = aws.String(opts.ContinuationToken)
	}

	output, err := p.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, p.wrapError("ListWithDelimiter", opts.Prefix, err)
	}

	result := &provider.ListWithDelimiterResult{
		Objects:        make([]provider.ObjectSummary, 0, len(output.Contents)),
		CommonPrefixes: make([]string, 0, len(output.CommonPrefixes)),
		IsTruncated:    aws.ToBool(output.IsTruncated),
	}
	for _, obj := range output.Contents {
		result.Objects = append(result.Objects, provider.ObjectSummary{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			ETag:         cleanETag(aws.ToString(obj.ETag)),
			LastModified: aws.ToTime(obj.LastModified),
		})
	}
	for _, cp := range output.CommonPrefixes {
		if cp.Prefix == nil {
			continue
		}
		result.CommonPrefixes = append(result.CommonPrefixes, *cp.Prefix)
	}
	if result.IsTruncated && output.NextContinuationToken != nil {
		result.ContinuationToken = *output.NextContinuationToken
	}

	return result, nil
}

// Close releases any resources held by the provider.
// The S3 client doesn't require explicit cleanup, but this satisfies the interface.
func (p *Provider) Close() error {
	return nil
}

// wrapError converts S3 errors to listing errors with appropriate sentinel errors.
func (p *Provider) wrapError(op, prefix string, err error) error {
	wrapped := &provider.ListingError{
		Op:       op,
		Provider: provider.ProviderS3,
		Bucket:   p.bucket,
		Prefix:   prefix,
		Err:      err,
	}

	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		wrapped.Err = provider.ErrBucketNotFound
		return wrapped
	}

	// Check smithy API errors for error codes
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if sentinel := sentinelForCode(apiErr.ErrorCode()); sentinel != nil {
			wrapped.Err = sentinel
		}
		return wrapped
	}

	// Fallback: check error message for common cases
	errMsg := err.Error()
	switch {
	case strings.Contains(errMsg, "NoSuchBucket"):
		wrapped.Err = provider.ErrBucketNotFound
	case strings.Contains(errMsg, "AccessDenied") || strings.Contains(errMsg, "Forbidden") || strings.Contains(errMsg, "403"):
		wrapped.Err = provider.ErrAccessDenied
	case strings.Contains(errMsg, "InvalidAccessKeyId") || strings.Contains(errMsg, "SignatureDoesNotMatch"):
		wrapped.Err = provider.ErrInvalidCredentials
	case strings.Contains(errMsg, "SlowDown") || strings.Contains(errMsg, "Throttling") || strings.Contains(errMsg, "429"):
		wrapped.Err = provider.ErrThrottled
	case strings.Contains(errMsg, "ServiceUnavailable") || strings.Contains(errMsg, "503"):
		wrapped.Err = provider.ErrProviderUnavailable
	}

	return wrapped
}

// sentinelForCode maps an S3 error code to a provider sentinel, or nil.
func sentinelForCode(code string) error {
	switch code {
	case "NoSuchBucket":
		return provider.ErrBucketNotFound
	case "AccessDenied", "Forbidden", "AllAccessDisabled":
		return provider.ErrAccessDenied
	case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		return provider.ErrInvalidCredentials
	case "SlowDown", "Throttling", "RequestLimitExceeded":
		return provider.ErrThrottled
	case "ServiceUnavailable", "InternalError":
		return provider.ErrProviderUnavailable
	}
	return nil
}

// cleanETag removes surrounding quotes from an ETag value.
// S3 returns ETags with quotes, e.g., "d41d8cd98f00b204e9800998ecf8427e".
func cleanETag(etag string) string {
	return strings.Trim(etag, "\"")
}

// clampMaxKeys applies defaults and limits to maxKeys values.
func clampMaxKeys(requested, providerDefault int) int {
	return provider.ClampMaxKeys(requested, providerDefault, MaxAllowedKeys)
}

// resolveRegion determines the final region to use after SDK config loading.
//
// The sdkRegion parameter already incorporates explicit cfgRegion, env/profile
// resolution, and the optional IMDS lookup. This function only applies the
// fallback default for AWS S3 (no custom endpoint).
func resolveRegion(cfgRegion, endpoint, sdkRegion string) string {
	if sdkRegion != "" {
		return sdkRegion
	}
	if cfgRegion != "" {
		return cfgRegion
	}
	if endpoint == "" {
		return DefaultAWSRegion
	}
	return ""
}
