package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validManifestYAML() string {
	return `version: "1.0"
connection:
  provider: s3
  bucket: store
`
}

func validManifestJSON() string {
	return `{
  "version": "1.0",
  "connection": {
    "provider": "s3",
    "bucket": "store"
  }
}`
}

func fullManifestYAML() string {
	return `version: "1.0"
connection:
  provider: minio
  bucket: store
  region: eu-west-1
  endpoint: http://localhost:9000
walk:
  root: data/
  concurrency: 16
  delimiter: "|"
  max_keys: 250
  rate_limit: 50.5
  progress_every: 10
match:
  includes:
    - "data/**/*.parquet"
  excludes:
    - "**/_temporary/**"
  exclude_hidden: true
output:
  format: jsonl
  destination: file:/tmp/store.jsonl
  sort: true
  progress: false
`
}

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		filename    string
		errContains string
		validate    func(t *testing.T, m *Manifest)
	}{
		{
			name:     "minimal YAML",
			content:  validManifestYAML(),
			filename: "job.yaml",
			validate: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "s3", m.Connection.Provider)
				assert.Equal(t, "store", m.Connection.Bucket)
				assert.Equal(t, "", m.Walk.Root)
				assert.Equal(t, DefaultConcurrency, m.Walk.Concurrency)
				assert.Equal(t, DefaultDelimiter, m.Walk.Delimiter)
				assert.Equal(t, DefaultProgressEvery, m.Walk.ProgressEvery)
				assert.Equal(t, DefaultFormat, m.Output.Format)
				assert.Equal(t, DefaultDestination, m.Output.Destination)
				assert.True(t, m.Output.ProgressEnabled())
			},
		},
		{
			name:     "minimal JSON",
			content:  validManifestJSON(),
			filename: "job.json",
			validate: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "store", m.Connection.Bucket)
				assert.Equal(t, DefaultConcurrency, m.Walk.Concurrency)
			},
		},
		{
			name:     "JSON content with unknown extension parses as YAML",
			content:  validManifestJSON(),
			filename: "job.conf",
			validate: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "s3", m.Connection.Provider)
			},
		},
		{
			name:     "all fields",
			content:  fullManifestYAML(),
			filename: "job.yml",
			validate: func(t *testing.T, m *Manifest) {
				assert.Equal(t, "http://localhost:9000", m.Connection.Endpoint)
				assert.Equal(t, "eu-west-1", m.Connection.Region)
				assert.Equal(t, WalkConfig{
					Root:          "data/",
					Concurrency:   16,
					Delimiter:     "|",
					MaxKeys:       250,
					RateLimit:     50.5,
					ProgressEvery: 10,
				}, m.Walk)
				assert.Equal(t, []string{"data/**/*.parquet"}, m.Match.Includes)
				assert.Equal(t, []string{"**/_temporary/**"}, m.Match.Excludes)
				assert.True(t, m.Match.ExcludeHidden)
				assert.Equal(t, "jsonl", m.Output.Format)
				assert.Equal(t, "file:/tmp/store.jsonl", m.Output.Destination)
				assert.True(t, m.Output.Sort)
				assert.False(t, m.Output.ProgressEnabled())
			},
		},
		{
			name:        "unknown YAML field",
			content:     validManifestYAML() + "crawl:\n  concurrency: 4\n",
			filename:    "job.yaml",
			errContains: "invalid YAML in manifest",
		},
		{
			name:        "unknown JSON field",
			content:     `{"version": "1.0", "connection": {"provider": "s3", "bucket": "b", "token": "x"}}`,
			filename:    "job.json",
			errContains: "invalid JSON in manifest",
		},
		{
			name:        "malformed YAML",
			content:     "version: [1.0",
			filename:    "job.yaml",
			errContains: "invalid YAML in manifest",
		},
		{
			name:        "empty file",
			content:     "  \n",
			filename:    "job.yaml",
			errContains: "manifest file is empty",
		},
		{
			name:        "missing bucket",
			content:     "version: \"1.0\"\nconnection:\n  provider: s3\n",
			filename:    "job.yaml",
			errContains: "connection.bucket: is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Load(writeManifest(t, tt.filename, tt.content))
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			tt.validate(t, m)
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manifest file not found")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadFromReader(t *testing.T) {
	m, err := LoadFromReader(strings.NewReader(validManifestYAML()), "")
	require.NoError(t, err)
	assert.Equal(t, "store", m.Connection.Bucket)
}

func TestValidate(t *testing.T) {
	base := func() Manifest {
		return Manifest{
			Version:    "1.0",
			Connection: ConnectionConfig{Provider: "s3", Bucket: "store"},
		}
	}

	tests := []struct {
		name   string
		mutate func(m *Manifest)
		paths  []string
	}{
		{"valid", func(m *Manifest) {}, nil},
		{"wrong version", func(m *Manifest) { m.Version = "2.0" }, []string{"version"}},
		{"unknown provider", func(m *Manifest) { m.Connection.Provider = "gcs" }, []string{"connection.provider"}},
		{"minio without endpoint", func(m *Manifest) { m.Connection.Provider = "minio" }, []string{"connection.endpoint"}},
		{"imds on file", func(m *Manifest) {
			m.Connection.Provider = "file"
			m.Connection.RegionFromIMDS = true
		}, []string{"connection.region_from_imds"}},
		{"concurrency too high", func(m *Manifest) { m.Walk.Concurrency = 1000 }, []string{"walk.concurrency"}},
		{"negative numbers", func(m *Manifest) {
			m.Walk.MaxKeys = -1
			m.Walk.RateLimit = -1
		}, []string{"walk.max_keys", "walk.rate_limit"}},
		{"bad pattern", func(m *Manifest) { m.Match.Excludes = []string{"ok/**", "[bad"} }, []string{"match.excludes[1]"}},
		{"bad format", func(m *Manifest) { m.Output.Format = "csv" }, []string{"output.format"}},
		{"bad destination", func(m *Manifest) { m.Output.Destination = "file:" }, []string{"output.destination"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.mutate(&m)

			err := m.Validate()
			if tt.paths == nil {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidationFailed)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			var paths []string
			for _, v := range verrs {
				paths = append(paths, v.Path)
			}
			assert.Equal(t, tt.paths, paths)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	one := ValidationErrors{{Path: "walk.concurrency", Message: "too high"}}
	assert.Equal(t, "walk.concurrency: too high", one.Error())

	two := ValidationErrors{{Path: "a", Message: "x"}, {Message: "y"}}
	assert.Equal(t, "manifest validation failed with 2 errors:\n  - a: x\n  - y", two.Error())
}

func TestValidateRaw(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr bool
	}{
		{name: "minimal", json: validManifestJSON()},
		{name: "unknown top-level field", json: `{"version": "1.0", "connection": {"provider": "s3", "bucket": "b"}, "crawl": {}}`, wantErr: true},
		{name: "wrong version", json: `{"version": "2.0", "connection": {"provider": "s3", "bucket": "b"}}`, wantErr: true},
		{name: "unknown provider", json: `{"version": "1.0", "connection": {"provider": "gcs", "bucket": "b"}}`, wantErr: true},
		{name: "concurrency too high", json: `{"version": "1.0", "connection": {"provider": "s3", "bucket": "b"}, "walk": {"concurrency": 1000}}`, wantErr: true},
		{name: "bad destination", json: `{"version": "1.0", "connection": {"provider": "s3", "bucket": "b"}, "output": {"destination": "s3://x"}}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRaw([]byte(tt.json))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidationFailed)
		})
	}
}

func TestValidateSchema_LoadedManifest(t *testing.T) {
	m, err := LoadFromBytes([]byte(fullManifestYAML()), "job.yaml")
	require.NoError(t, err)
	assert.NoError(t, ValidateSchema(m))
}
