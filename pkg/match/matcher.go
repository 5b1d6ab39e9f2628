// Package match filters object keys with doublestar glob patterns.
//
// A walk lists everything under its root prefix; the matcher decides which
// leaf keys are emitted and which sub-prefixes are worth descending into.
package match

import (
	"errors"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher evaluates include and exclude patterns against object keys.
//
// A key matches when it matches at least one include pattern and no exclude
// pattern. With ExcludeHidden set, keys with a path segment below the root
// that starts with '.' are skipped as well.
//
// The Matcher is safe for concurrent use after creation.
type Matcher struct {
	includes      []pattern
	excludes      []pattern
	excludeHidden bool
	root          string
}

type pattern struct {
	raw     string
	literal string // unescaped text before the first glob metacharacter
}

// Config configures a Matcher.
type Config struct {
	// Includes are glob patterns a key must match (at least one).
	// Empty means "**".
	Includes []string

	// Excludes are glob patterns a key must not match.
	Excludes []string

	// ExcludeHidden skips keys and prefixes with dot-prefixed segments.
	ExcludeHidden bool

	// Root is the prefix the walk starts from. Its own segments are never
	// considered hidden.
	Root string
}

// Errors returned by New.
var (
	ErrInvalidPattern = errors.New("invalid glob pattern")
)

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// New compiles a Matcher.
//
// Backslashes that do not escape a glob metacharacter are treated as path
// separators so Windows-style patterns behave as expected.
func New(cfg Config) (*Matcher, error) {
	includes := cfg.Includes
	if len(includes) == 0 {
		includes = []string{"**"}
	}

	inc, err := compile(includes)
	if err != nil {
		return nil, err
	}
	exc, err := compile(cfg.Excludes)
	if err != nil {
		return nil, err
	}

	return &Matcher{
		includes:      inc,
		excludes:      exc,
		excludeHidden: cfg.ExcludeHidden,
		root:          cfg.Root,
	}, nil
}

func compile(raws []string) ([]pattern, error) {
	out := make([]pattern, 0, len(raws))
	for _, raw := range raws {
		normalized := normalizePattern(raw)
		if !doublestar.ValidatePattern(normalized) {
			return nil, &PatternError{Pattern: raw, Err: ErrInvalidPattern}
		}
		out = append(out, pattern{raw: normalized, literal: literalPrefix(normalized)})
	}
	return out, nil
}

// Match reports whether key passes the include/exclude patterns.
//
// Keys are matched as-is; object keys are opaque and any character is valid.
func (m *Matcher) Match(key string) bool {
	if m.hidden(key) {
		return false
	}

	matched := false
	for _, inc := range m.includes {
		if matchPattern(inc.raw, key) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	for _, exc := range m.excludes {
		if matchPattern(exc.raw, key) {
			return false
		}
	}
	return true
}

// CanContain reports whether any key under prefix could match an include
// pattern. A false result means the whole subtree can be skipped.
//
// The check only compares literal pattern prefixes, so it may return true for
// subtrees that end up matching nothing.
func (m *Matcher) CanContain(prefix string) bool {
	if m.hidden(strings.TrimSuffix(prefix, "/")) {
		return false
	}
	for _, inc := range m.includes {
		if strings.HasPrefix(prefix, inc.literal) || strings.HasPrefix(inc.literal, prefix) {
			return true
		}
	}
	return false
}

func (m *Matcher) hidden(key string) bool {
	if !m.excludeHidden || strings.HasPrefix(m.root, key) {
		return false
	}
	rel, ok := strings.CutPrefix(key, m.root)
	if !ok {
		return IsHidden(key)
	}
	// A root ending mid-segment ("logs/.ca") leaves the rest of that segment.
	if m.root != "" && !strings.HasSuffix(m.root, "/") {
		if i := strings.IndexByte(rel, '/'); i >= 0 {
			rel = rel[i+1:]
		} else {
			return false
		}
	}
	return IsHidden(rel)
}

// ExcludesHidden reports whether dot-prefixed segments are skipped.
func (m *Matcher) ExcludesHidden() bool {
	return m.excludeHidden
}

// IncludePatterns returns the normalized include patterns.
func (m *Matcher) IncludePatterns() []string {
	return raws(m.includes)
}

// ExcludePatterns returns the normalized exclude patterns.
func (m *Matcher) ExcludePatterns() []string {
	return raws(m.excludes)
}

func raws(ps []pattern) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.raw
	}
	return out
}

// IsHidden returns true if any '/'-separated segment of key starts with a dot.
func IsHidden(key string) bool {
	for _, seg := range strings.Split(key, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

func matchPattern(pattern, key string) bool {
	matched, err := doublestar.Match(pattern, key)
	if err != nil {
		// validated in New
		return false
	}
	return matched
}

const globMeta = `*?[]{}\`

// normalizePattern converts unescaped backslashes to '/', keeping escapes of
// glob metacharacters intact.
func normalizePattern(p string) string {
	var b strings.Builder
	b.Grow(len(p))
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(p) && strings.IndexByte(globMeta, p[i+1]) >= 0 {
			b.WriteByte('\\')
			b.WriteByte(p[i+1])
			i++
			continue
		}
		b.WriteByte('/')
	}
	return b.String()
}

// literalPrefix returns the unescaped text before the first unescaped
// metacharacter of a normalized pattern.
func literalPrefix(p string) string {
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch c {
		case '\\':
			if i+1 < len(p) {
				b.WriteByte(p[i+1])
				i++
			}
		case '*', '?', '[', '{':
			return b.String()
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// IsGlobPattern reports whether p contains an unescaped glob metacharacter.
func IsGlobPattern(p string) bool {
	for i := 0; i < len(p); i++ {
		switch p[i] {
		case '\\':
			i++
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}

// DerivePrefix returns the listing prefix for p: its literal text up to the
// last '/' before the first metacharacter. Plain keys are returned unescaped
// in full.
func DerivePrefix(p string) string {
	lit := literalPrefix(normalizePattern(p))
	if !IsGlobPattern(p) {
		return lit
	}
	if i := strings.LastIndexByte(lit, '/'); i >= 0 {
		return lit[:i+1]
	}
	return ""
}
