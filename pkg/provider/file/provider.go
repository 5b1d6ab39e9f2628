// Package file lists a local directory as if it were a bucket.
//
// Keys are slash-separated paths relative to BaseDir. Directories map to
// common prefixes ("dir/") and regular files to objects, so a directory tree
// walks exactly like a delimiter-grouped object store. Only "/" is supported
// as a delimiter.
package file

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/3leaps/nimbuswalk/pkg/provider"
)

// Provider implements provider.Provider for local filesystem paths.
type Provider struct {
	baseDir string
	maxKeys int
}

var _ provider.Provider = (*Provider)(nil)

// Config configures a file provider.
type Config struct {
	// BaseDir is the directory treated as the bucket root (required).
	BaseDir string

	// MaxKeys is the default page size. Zero uses provider.DefaultMaxKeys.
	MaxKeys int
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("base dir is required")
	}
	return nil
}

// New creates a file provider rooted at cfg.BaseDir.
func New(cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := filepath.Clean(cfg.BaseDir)
	st, err := os.Stat(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &provider.ListingError{Op: "New", Provider: provider.ProviderFile, Bucket: base, Err: provider.ErrBucketNotFound}
		}
		return nil, &provider.ListingError{Op: "New", Provider: provider.ProviderFile, Bucket: base, Err: err}
	}
	if !st.IsDir() {
		return nil, &provider.ListingError{Op: "New", Provider: provider.ProviderFile, Bucket: base, Err: fmt.Errorf("not a directory")}
	}
	return &Provider{baseDir: base, maxKeys: cfg.MaxKeys}, nil
}

func (p *Provider) Close() error { return nil }

type entry struct {
	key      string
	isPrefix bool
	info     os.FileInfo
}

// ListWithDelimiter lists one directory level.
//
// A prefix that does not end in "/" selects the entries of its parent
// directory whose names start with the trailing fragment, matching object
// store prefix semantics. The continuation token is the last key returned.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	delimiter := opts.Delimiter
	if delimiter == "" {
		delimiter = provider.DefaultDelimiter
	}
	if delimiter != "/" {
		return nil, p.wrapError(opts.Prefix, provider.ErrUnsupportedDelimiter)
	}

	entries, err := p.entries(opts.Prefix)
	if err != nil {
		return nil, p.wrapError(opts.Prefix, err)
	}

	start := 0
	if opts.ContinuationToken != "" {
		if !strings.HasPrefix(opts.ContinuationToken, opts.Prefix) {
			return nil, p.wrapError(opts.Prefix, provider.ErrInvalidCursor)
		}
		start = sort.Search(len(entries), func(i int) bool { return entries[i].key > opts.ContinuationToken })
	}

	maxKeys := provider.ClampMaxKeys(opts.MaxKeys, p.maxKeys, 0)
	end := start + maxKeys
	if end > len(entries) {
		end = len(entries)
	}

	res := &provider.ListWithDelimiterResult{}
	for _, e := range entries[start:end] {
		if e.isPrefix {
			res.CommonPrefixes = append(res.CommonPrefixes, e.key)
			continue
		}
		res.Objects = append(res.Objects, provider.ObjectSummary{
			Key:          e.key,
			Size:         e.info.Size(),
			LastModified: e.info.ModTime(),
		})
	}
	if end < len(entries) {
		res.IsTruncated = true
		res.ContinuationToken = entries[end-1].key
	}
	return res, nil
}

// entries reads the directory addressed by prefix and returns sorted entries.
func (p *Provider) entries(prefix string) ([]entry, error) {
	prefix = strings.TrimPrefix(prefix, "/")
	dirKey, fragment := path.Split(prefix)

	dir, err := p.fullPath(dirKey)
	if err != nil {
		return nil, err
	}
	des, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]entry, 0, len(des))
	for _, de := range des {
		if !strings.HasPrefix(de.Name(), fragment) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		key := dirKey + de.Name()
		switch {
		case info.IsDir():
			out = append(out, entry{key: key + "/", isPrefix: true})
		case info.Mode().IsRegular():
			out = append(out, entry{key: key, info: info})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].key < out[j].key })
	return out, nil
}

func (p *Provider) fullPath(key string) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	// Prevent path traversal.
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return "", fmt.Errorf("invalid key path %q", key)
		}
	}
	clean := strings.TrimPrefix(filepath.Clean("/"+key), "/")
	return filepath.Join(p.baseDir, filepath.FromSlash(clean)), nil
}

func (p *Provider) wrapError(prefix string, err error) error {
	wrapped := &provider.ListingError{Op: "ListWithDelimiter", Provider: provider.ProviderFile, Bucket: p.baseDir, Prefix: prefix, Err: err}
	if os.IsPermission(err) {
		wrapped.Err = provider.ErrAccessDenied
	}
	return wrapped
}
