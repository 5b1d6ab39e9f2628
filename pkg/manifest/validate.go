package manifest

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrValidationFailed indicates the manifest failed validation.
var ErrValidationFailed = errors.New("manifest validation failed")

// ValidationError represents a single validation issue.
type ValidationError struct {
	// Path is the dotted path to the problematic field (e.g., "walk.concurrency").
	Path string

	// Message describes the validation failure.
	Message string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "manifest validation failed with %d errors:\n", len(e))
	for i, err := range e {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e ValidationErrors) Unwrap() error {
	return ErrValidationFailed
}

// Supported connection providers.
var providers = []string{"s3", "minio", "file"}

// Validate checks field values. It reports every problem, not just the first.
func (m *Manifest) Validate() error {
	var errs ValidationErrors
	add := func(path, format string, args ...any) {
		errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if m.Version != DefaultVersion {
		add("version", "must be %q, got %q", DefaultVersion, m.Version)
	}

	c := m.Connection
	switch {
	case c.Provider == "":
		add("connection.provider", "is required")
	case !slices.Contains(providers, c.Provider):
		add("connection.provider", "must be one of %s, got %q", strings.Join(providers, ", "), c.Provider)
	}
	if c.Bucket == "" {
		add("connection.bucket", "is required")
	}
	if c.Provider == "minio" && c.Endpoint == "" {
		add("connection.endpoint", "is required for minio")
	}
	if c.RegionFromIMDS && c.Provider != "s3" {
		add("connection.region_from_imds", "only applies to s3")
	}

	w := m.Walk
	if w.Concurrency < 0 || w.Concurrency > 256 {
		add("walk.concurrency", "must be between 1 and 256, got %d", w.Concurrency)
	}
	if w.MaxKeys < 0 {
		add("walk.max_keys", "must not be negative")
	}
	if w.RateLimit < 0 {
		add("walk.rate_limit", "must not be negative")
	}
	if w.ProgressEvery < 0 {
		add("walk.progress_every", "must not be negative")
	}

	for i, p := range m.Match.Includes {
		if !doublestar.ValidatePattern(p) {
			add(fmt.Sprintf("match.includes[%d]", i), "invalid glob pattern %q", p)
		}
	}
	for i, p := range m.Match.Excludes {
		if !doublestar.ValidatePattern(p) {
			add(fmt.Sprintf("match.excludes[%d]", i), "invalid glob pattern %q", p)
		}
	}

	o := m.Output
	if o.Format != "" && o.Format != "text" && o.Format != "jsonl" {
		add("output.format", "must be text or jsonl, got %q", o.Format)
	}
	if o.Destination != "" && o.Destination != "stdout" {
		if !strings.HasPrefix(o.Destination, "file:") || len(o.Destination) == len("file:") {
			add("output.destination", "must be stdout or file:<path>, got %q", o.Destination)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
