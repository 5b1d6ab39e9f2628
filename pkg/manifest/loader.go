package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads, validates and defaults a manifest from a file.
//
// .json files are parsed as JSON; anything else is parsed as YAML, which also
// accepts JSON. Unknown fields are rejected in both formats.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest file not found: %s: %w", path, err)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading manifest: %s: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromReader reads a manifest from r. path is used for format detection.
func LoadFromReader(r io.Reader, path string) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes parses, validates and defaults a manifest.
func LoadFromBytes(data []byte, path string) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("manifest file is empty")
	}

	var m *Manifest
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		m, err = parseJSON(data)
	} else {
		m, err = parseYAML(data)
	}
	if err != nil {
		return nil, err
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateSchema(m); err != nil {
		return nil, err
	}
	m.ApplyDefaults()
	return m, nil
}

func parseJSON(data []byte) (*Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("invalid JSON in manifest: %w", err)
	}
	return &m, nil
}

func parseYAML(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("invalid YAML in manifest: %w", err)
	}
	return &m, nil
}
