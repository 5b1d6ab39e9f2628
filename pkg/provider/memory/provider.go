// Package memory implements an in-process namespace with S3 listing semantics.
//
// It is used for tests and for embedding walks over synthetic key spaces.
// Keys are grouped by delimiter exactly like ListObjectsV2: the remainder
// after the prefix is cut at the first delimiter and reported once as a
// common prefix. Continuation tokens are opaque and resume strictly after the
// last entry returned.
package memory

import (
	"context"
	"encoding/base64"
	"sort"
	"strings"
	"sync"

	"github.com/3leaps/nimbuswalk/pkg/provider"
)

// Provider is an in-memory bucket.
type Provider struct {
	bucket  string
	maxKeys int

	mu      sync.RWMutex
	objects map[string]provider.ObjectSummary
	sorted  []string
	dirty   bool
}

var _ provider.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithMaxKeys sets the default page size. Small values force pagination.
func WithMaxKeys(n int) Option {
	return func(p *Provider) {
		p.maxKeys = n
	}
}

// New creates an empty in-memory bucket.
func New(bucket string, opts ...Option) *Provider {
	p := &Provider{
		bucket:  bucket,
		maxKeys: provider.DefaultMaxKeys,
		objects: make(map[string]provider.ObjectSummary),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Put stores objects, replacing any existing object with the same key.
func (p *Provider) Put(objs ...provider.ObjectSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, obj := range objs {
		p.objects[obj.Key] = obj
	}
	p.dirty = true
}

// PutKeys stores zero-byte objects for each key.
func (p *Provider) PutKeys(keys ...string) {
	objs := make([]provider.ObjectSummary, 0, len(keys))
	for _, k := range keys {
		objs = append(objs, provider.ObjectSummary{Key: k})
	}
	p.Put(objs...)
}

// Len returns the number of stored objects.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.objects)
}

// Close is a no-op.
func (p *Provider) Close() error { return nil }

type entry struct {
	key      string
	isPrefix bool
}

// ListWithDelimiter returns one page of the listing under opts.Prefix.
func (p *Provider) ListWithDelimiter(ctx context.Context, opts provider.ListWithDelimiterOptions) (*provider.ListWithDelimiterResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	after := ""
	if opts.ContinuationToken != "" {
		raw, err := base64.RawURLEncoding.DecodeString(opts.ContinuationToken)
		if err != nil || len(raw) == 0 {
			return nil, p.wrapError(opts.Prefix, provider.ErrInvalidCursor)
		}
		after = string(raw)
	}

	maxKeys := provider.ClampMaxKeys(opts.MaxKeys, p.maxKeys, 0)
	entries := p.entries(opts.Prefix, opts.Delimiter)

	start := 0
	if after != "" {
		start = sort.Search(len(entries), func(i int) bool { return entries[i].key > after })
	}

	res := &provider.ListWithDelimiterResult{}
	end := start + maxKeys
	if end > len(entries) {
		end = len(entries)
	}

	p.mu.RLock()
	for _, e := range entries[start:end] {
		if e.isPrefix {
			res.CommonPrefixes = append(res.CommonPrefixes, e.key)
			continue
		}
		res.Objects = append(res.Objects, p.objects[e.key])
	}
	p.mu.RUnlock()

	if end < len(entries) {
		res.IsTruncated = true
		res.ContinuationToken = base64.RawURLEncoding.EncodeToString([]byte(entries[end-1].key))
	}
	return res, nil
}

// entries returns the sorted, grouped listing entries under prefix.
func (p *Provider) entries(prefix, delimiter string) []entry {
	keys := p.sortedKeys()

	first := sort.SearchStrings(keys, prefix)
	var out []entry
	for _, k := range keys[first:] {
		if !strings.HasPrefix(k, prefix) {
			break
		}
		rest := k[len(prefix):]
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				cp := prefix + rest[:idx+len(delimiter)]
				// Keys sharing a common prefix are contiguous in sorted order.
				if n := len(out); n > 0 && out[n-1].isPrefix && out[n-1].key == cp {
					continue
				}
				out = append(out, entry{key: cp, isPrefix: true})
				continue
			}
		}
		out = append(out, entry{key: k})
	}
	return out
}

func (p *Provider) sortedKeys() []string {
	p.mu.RLock()
	if !p.dirty {
		keys := p.sorted
		p.mu.RUnlock()
		return keys
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dirty {
		keys := make([]string, 0, len(p.objects))
		for k := range p.objects {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		p.sorted = keys
		p.dirty = false
	}
	return p.sorted
}

func (p *Provider) wrapError(prefix string, err error) error {
	return &provider.ListingError{
		Op:       "ListWithDelimiter",
		Provider: provider.ProviderMemory,
		Bucket:   p.bucket,
		Prefix:   prefix,
		Err:      err,
	}
}
