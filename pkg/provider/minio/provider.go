// Package minio implements delimiter listing for S3-compatible stores using minio-go.
//
// The high-level minio client hides pagination behind a channel, so this
// backend talks to minio.Core, which exposes ListObjectsV2 continuation
// tokens directly and lets the walker own the pagination sequence.
package minio

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/kenshaw/httplog"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/3leaps/nimbuswalk/pkg/provider"
)

// MaxAllowedKeys is the maximum page size accepted by S3-compatible servers.
const MaxAllowedKeys = 1000

// Config configures a minio provider.
type Config struct {
	// Bucket is the bucket name (required).
	Bucket string

	// Endpoint is the server URL, e.g. http://localhost:9000 (required).
	// A bare host:port is treated as https.
	Endpoint string

	// Region is sent with requests when set.
	Region string

	// AccessKeyID and SecretAccessKey authenticate requests. When both are
	// empty, credentials are read from MINIO_ROOT_USER/MINIO_ROOT_PASSWORD,
	// MINIO_ACCESS_KEY/MINIO_SECRET_KEY or AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY.
	AccessKeyID     string
	SecretAccessKey string

	// MaxKeys is the default page size. Zero uses 1000.
	MaxKeys int

	// TraceHTTP, when set, receives a dump of every HTTP round trip.
	TraceHTTP func(string, ...interface{})
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	switch {
	case c.Bucket == "":
		return errors.New("minio config: Bucket: bucket name is required")
	case c.Endpoint == "":
		return errors.New("minio config: Endpoint: endpoint is required")
	case (c.AccessKeyID != "") != (c.SecretAccessKey != ""):
		return errors.New("minio config: AccessKeyID/SecretAccessKey: both must be provided together")
	}
	return nil
}

// lister is the subset of minio.Core used by the provider.
type lister interface {
	ListObjectsV2(bucketName, objectPrefix, startAfter, continuationToken, delimiter string, maxkeys int) (minio.ListBucketV2Result, error)
}

// Provider implements provider.Provider on top of minio.Core.
type Provider struct {
	core    lister
	bucket  string
	maxKeys int
}

var _ provider.Provider = (*Provider)(nil)

// New creates a minio provider.
func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	host, secure, err := splitEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, &provider.ListingError{Op: "New", Provider: provider.ProviderMinio, Bucket: cfg.Bucket, Err: err}
	}

	opts := &minio.Options{
		Creds:  resolveCredentials(cfg),
		Secure: secure,
		Region: cfg.Region,
	}
	if cfg.TraceHTTP != nil {
		tr, err := minio.DefaultTransport(secure)
		if err != nil {
			return nil, &provider.ListingError{Op: "New", Provider: provider.ProviderMinio, Bucket: cfg.Bucket, Err: err}
		}
		opts.Transport = httplog.NewPrefixedRoundTripLogger(tr, cfg.TraceHTTP)
	}

	core, err := minio.NewCore(host, opts)
	if err != nil {
		return nil, &provider.ListingError{Op: "New", Provider: provider.ProviderMinio, Bucket: cfg.Bucket, Err: err}
	}
	return newWithLister(core, cfg), nil
}

func newWithLister(l lister, cfg Config) *Provider {
	return &Provider{core: l, bucket: cfg.Bucket, maxKeys: cfg.MaxKeys}
}

func resolveCredentials(cfg Config) *credentials.Credentials {
	if cfg.AccessKeyID != "" {
		return credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}
	return credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvMinio{},
		&credentials.EnvAWS{},
	})
}

// splitEndpoint turns an endpoint URL into the host[:port] minio expects.
func splitEndpoint(endpoint string) (string, bool, error) {
	if !strings.Contains(endpoint, "://") {
		return strings.TrimSuffix(endpoint, "/"), true, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, err
	}
	switch u.Scheme {
	case "http":
		return u.Host, false, nil
	case "https":
		return u.Host, true, nil
	default:
		return "", false, errors.New("endpoint scheme must be http or https")
	}
}

// ListWithDelimiter returns one page of common prefixes and direct objects.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	// minio.Core.ListObjectsV2 takes no context; honour cancellation up front.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	maxKeys := provider.ClampMaxKeys(opts.MaxKeys, p.maxKeys, MaxAllowedKeys)
	out, err := p.core.ListObjectsV2(p.bucket, opts.Prefix, "", opts.ContinuationToken, opts.Delimiter, maxKeys)
	if err != nil {
		return nil, p.wrapError(opts.Prefix, err)
	}

	res := &provider.ListWithDelimiterResult{
		Objects:        make([]provider.ObjectSummary, 0, len(out.Contents)),
		CommonPrefixes: make([]string, 0, len(out.CommonPrefixes)),
		IsTruncated:    out.IsTruncated,
	}
	for _, obj := range out.Contents {
		res.Objects = append(res.Objects, provider.ObjectSummary{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         strings.Trim(obj.ETag, "\""),
			LastModified: obj.LastModified,
		})
	}
	for _, cp := range out.CommonPrefixes {
		res.CommonPrefixes = append(res.CommonPrefixes, cp.Prefix)
	}
	if out.IsTruncated {
		res.ContinuationToken = out.NextContinuationToken
	}
	return res, nil
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error { return nil }

func (p *Provider) wrapError(prefix string, err error) error {
	wrapped := &provider.ListingError{
		Op:       "ListWithDelimiter",
		Provider: provider.ProviderMinio,
		Bucket:   p.bucket,
		Prefix:   prefix,
		Err:      err,
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchBucket":
		wrapped.Err = provider.ErrBucketNotFound
	case "AccessDenied", "AllAccessDisabled":
		wrapped.Err = provider.ErrAccessDenied
	case "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
		wrapped.Err = provider.ErrInvalidCredentials
	case "SlowDown", "SlowDownRead", "RequestLimitExceeded":
		wrapped.Err = provider.ErrThrottled
	case "ServiceUnavailable", "InternalError", "XMinioServerNotInitialized":
		wrapped.Err = provider.ErrProviderUnavailable
	default:
		switch resp.StatusCode {
		case http.StatusForbidden:
			wrapped.Err = provider.ErrAccessDenied
		case http.StatusTooManyRequests:
			wrapped.Err = provider.ErrThrottled
		case http.StatusServiceUnavailable:
			wrapped.Err = provider.ErrProviderUnavailable
		}
	}
	return wrapped
}
