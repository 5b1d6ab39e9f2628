// Package cloudtest seeds throwaway buckets on a local moto server so the
// S3 provider can be listed against a real ListObjectsV2 implementation.
//
// Callers are tagged //go:build cloudintegration and start with
// SkipIfUnavailable.
package cloudtest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Moto accepts any credentials; these are the ones the tests send.
const (
	TestAccessKeyID     = "testing"
	TestSecretAccessKey = "testing"
)

var (
	// Endpoint is the moto server URL (MOTO_ENDPOINT, default port 5555).
	Endpoint = envOr("MOTO_ENDPOINT", "http://localhost:5555")

	// Region is the region requests are signed for (MOTO_REGION).
	Region = envOr("MOTO_REGION", "us-east-1")

	invalidBucketChars = regexp.MustCompile(`[^a-z0-9-]+`)

	sharedClient = sync.OnceValues(func() (*s3.Client, error) {
		cfg, err := config.LoadDefaultConfig(context.Background(),
			config.WithRegion(Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(TestAccessKeyID, TestSecretAccessKey, "")),
		)
		if err != nil {
			return nil, fmt.Errorf("cloudtest: load config: %w", err)
		}
		return s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(Endpoint)
			o.UsePathStyle = true
		}), nil
	})
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// SkipIfUnavailable skips t unless the moto control API answers.
func SkipIfUnavailable(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, Endpoint+"/moto-api/", nil)
	if err == nil {
		var resp *http.Response
		if resp, err = http.DefaultClient.Do(req); err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
	}
	t.Skipf("moto not reachable at %s (set MOTO_ENDPOINT)", Endpoint)
}

// Client returns the shared moto client or fails t.
func Client(t *testing.T) *s3.Client {
	t.Helper()
	c, err := sharedClient()
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// CreateBucket creates a uniquely named bucket that is emptied and removed
// when t finishes.
func CreateBucket(t *testing.T, ctx context.Context) string {
	t.Helper()
	c := Client(t)

	base := invalidBucketChars.ReplaceAllString(strings.ToLower(t.Name()), "-")
	if len(base) > 40 {
		base = base[:40]
	}
	name := strings.Trim(base, "-") + "-" + uuid.NewString()[:8]

	if _, err := c.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)}); err != nil {
		t.Fatalf("create bucket %s: %v", name, err)
	}
	t.Cleanup(func() { removeBucket(t, c, name) })
	return name
}

func removeBucket(t *testing.T, c *s3.Client, bucket string) {
	ctx := context.Background()
	pages := s3.NewListObjectsV2Paginator(c, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			t.Logf("cleanup %s: %v", bucket, err)
			return
		}
		for _, obj := range page.Contents {
			if _, err := c.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: obj.Key}); err != nil {
				t.Logf("cleanup %s/%s: %v", bucket, aws.ToString(obj.Key), err)
			}
		}
	}
	if _, err := c.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
		t.Logf("cleanup %s: %v", bucket, err)
	}
}

// PutObjects writes one small object per key. The body is the key itself.
func PutObjects(t *testing.T, ctx context.Context, bucket string, keys []string) {
	t.Helper()
	c := Client(t)
	for _, key := range keys {
		_, err := c.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader([]byte(key)),
		})
		if err != nil {
			t.Fatalf("put %s/%s: %v", bucket, key, err)
		}
	}
}
