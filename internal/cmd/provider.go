package cmd

import (
	"context"
	"fmt"

	"github.com/3leaps/nimbuswalk/internal/observability"
	"github.com/3leaps/nimbuswalk/pkg/manifest"
	"github.com/3leaps/nimbuswalk/pkg/provider"
	"github.com/3leaps/nimbuswalk/pkg/provider/file"
	"github.com/3leaps/nimbuswalk/pkg/provider/minio"
	"github.com/3leaps/nimbuswalk/pkg/provider/s3"
)

// openProvider creates the lister for a manifest connection.
func openProvider(ctx context.Context, conn manifest.ConnectionConfig, maxKeys int, traceHTTP bool) (provider.Provider, error) {
	var trace func(string, ...interface{})
	if traceHTTP {
		trace = observability.CLILogger.Sugar().Debugf
	}

	var (
		p   provider.Provider
		err error
	)
	switch provider.ProviderType(conn.Provider) {
	case provider.ProviderS3:
		p, err = s3.New(ctx, s3.Config{
			Bucket:         conn.Bucket,
			Region:         conn.Region,
			RegionFromIMDS: conn.RegionFromIMDS,
			Endpoint:       conn.Endpoint,
			Profile:        conn.Profile,
			// S3-compatible services (moto, MinIO, etc.) require path-style URLs.
			ForcePathStyle: conn.Endpoint != "",
			MaxKeys:        maxKeys,
			TraceHTTP:      trace,
		})
	case provider.ProviderMinio:
		p, err = minio.New(minio.Config{
			Bucket:    conn.Bucket,
			Endpoint:  conn.Endpoint,
			Region:    conn.Region,
			MaxKeys:   maxKeys,
			TraceHTTP: trace,
		})
	case provider.ProviderFile:
		p, err = file.New(file.Config{BaseDir: conn.Bucket, MaxKeys: maxKeys})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, conn.Provider)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// connectionFromURI fills the provider and bucket of conn from u.
func connectionFromURI(u *ObjectURI, conn manifest.ConnectionConfig) manifest.ConnectionConfig {
	conn.Provider = u.Provider
	conn.Bucket = u.Bucket
	if u.Provider != string(provider.ProviderS3) {
		conn.RegionFromIMDS = false
	}
	return conn
}
