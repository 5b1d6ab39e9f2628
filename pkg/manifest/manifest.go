// Package manifest loads walk job manifests.
//
// A job manifest is a YAML or JSON file that describes one walk: where to
// connect, where to start, how hard to push the provider, which keys to keep,
// and how to write them.
//
// Example manifest (YAML):
//
//	version: "1.0"
//	connection:
//	  provider: s3
//	  bucket: store
//	  region: us-east-1
//	walk:
//	  root: data/
//	  concurrency: 8
//	match:
//	  includes:
//	    - "data/**/*.parquet"
//	  excludes:
//	    - "**/_temporary/**"
//	output:
//	  format: jsonl
//	  destination: file:/tmp/store.jsonl
package manifest

// Manifest represents a validated walk job.
type Manifest struct {
	// Version is the manifest format version. Must be "1.0".
	Version string `json:"version" yaml:"version"`

	Connection ConnectionConfig `json:"connection" yaml:"connection"`
	Walk       WalkConfig       `json:"walk,omitempty" yaml:"walk,omitempty"`
	Match      MatchConfig      `json:"match,omitempty" yaml:"match,omitempty"`
	Output     OutputConfig     `json:"output,omitempty" yaml:"output,omitempty"`
}

// ConnectionConfig configures the storage provider connection.
type ConnectionConfig struct {
	// Provider is one of "s3", "minio" or "file".
	Provider string `json:"provider" yaml:"provider"`

	// Bucket is the bucket name, or the base directory for "file".
	Bucket string `json:"bucket" yaml:"bucket"`

	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Profile  string `json:"profile,omitempty" yaml:"profile,omitempty"`

	// RegionFromIMDS asks the EC2 instance metadata service for the region
	// when none is configured. s3 only.
	RegionFromIMDS bool `json:"region_from_imds,omitempty" yaml:"region_from_imds,omitempty"`
}

// WalkConfig configures the traversal.
type WalkConfig struct {
	// Root is the prefix to start from. Empty walks the whole bucket.
	Root string `json:"root,omitempty" yaml:"root,omitempty"`

	// Concurrency is the number of concurrent listing calls. Range 1-256.
	Concurrency int `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`

	Delimiter     string  `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
	MaxKeys       int     `json:"max_keys,omitempty" yaml:"max_keys,omitempty"`
	RateLimit     float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	ProgressEvery int     `json:"progress_every,omitempty" yaml:"progress_every,omitempty"`
}

// MatchConfig configures key filtering. An empty Includes keeps everything.
type MatchConfig struct {
	Includes      []string `json:"includes,omitempty" yaml:"includes,omitempty"`
	Excludes      []string `json:"excludes,omitempty" yaml:"excludes,omitempty"`
	ExcludeHidden bool     `json:"exclude_hidden,omitempty" yaml:"exclude_hidden,omitempty"`
}

// OutputConfig configures where and how results are written.
type OutputConfig struct {
	// Format is "text" (one key per line) or "jsonl".
	Format string `json:"format,omitempty" yaml:"format,omitempty"`

	// Destination is "stdout" or "file:/path/to/output".
	Destination string `json:"destination,omitempty" yaml:"destination,omitempty"`

	// Sort buffers all keys and writes them sorted once the walk completes.
	Sort bool `json:"sort,omitempty" yaml:"sort,omitempty"`

	// Progress enables progress records in jsonl output. Default: true.
	Progress *bool `json:"progress,omitempty" yaml:"progress,omitempty"`
}

// Default values for optional fields.
const (
	DefaultVersion       = "1.0"
	DefaultConcurrency   = 8
	DefaultDelimiter     = "/"
	DefaultProgressEvery = 100
	DefaultFormat        = "text"
	DefaultDestination   = "stdout"
	DefaultProgress      = true
)

// ApplyDefaults fills in default values for optional fields.
func (m *Manifest) ApplyDefaults() {
	if m.Walk.Concurrency == 0 {
		m.Walk.Concurrency = DefaultConcurrency
	}
	if m.Walk.Delimiter == "" {
		m.Walk.Delimiter = DefaultDelimiter
	}
	if m.Walk.ProgressEvery == 0 {
		m.Walk.ProgressEvery = DefaultProgressEvery
	}
	// MaxKeys 0 means provider default; RateLimit 0 means unlimited.

	if m.Output.Format == "" {
		m.Output.Format = DefaultFormat
	}
	if m.Output.Destination == "" {
		m.Output.Destination = DefaultDestination
	}
	if m.Output.Progress == nil {
		p := DefaultProgress
		m.Output.Progress = &p
	}
}

// ProgressEnabled returns whether progress records should be emitted.
func (o *OutputConfig) ProgressEnabled() bool {
	if o.Progress == nil {
		return DefaultProgress
	}
	return *o.Progress
}
