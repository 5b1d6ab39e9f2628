// Package output writes walk results.
//
// Two formats are supported: JSONL, where every line is a typed record
// envelope that can be parsed on its own, and plain text, one object key per
// line.
package output

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: nimbuswalk.<type>.v<version>
const (
	// TypeObject identifies object listing records.
	TypeObject = "nimbuswalk.object.v1"

	// TypeError identifies error records.
	TypeError = "nimbuswalk.error.v1"

	// TypeProgress identifies progress update records.
	TypeProgress = "nimbuswalk.progress.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "nimbuswalk.summary.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	// Type identifies the record type (e.g., "nimbuswalk.object.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created.
	TS time.Time `json:"ts"`

	// JobID is the correlation ID for this walk.
	JobID string `json:"job_id"`

	// Provider identifies the storage provider (e.g., "s3", "minio").
	Provider string `json:"provider"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// ObjectRecord is the data payload for one discovered leaf object.
type ObjectRecord struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// ErrorRecord is the data payload for the error that aborted a walk.
type ErrorRecord struct {
	// Code is a machine-readable error code (see provider.Code).
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Prefix is the prefix being listed when the error occurred.
	Prefix string `json:"prefix,omitempty"`
}

// ProgressRecord is the data payload for periodic progress updates.
type ProgressRecord struct {
	// Phase indicates the current walk phase.
	Phase string `json:"phase"`

	Prefixes       int64 `json:"prefixes"`
	Pages          int64 `json:"pages"`
	ObjectsListed  int64 `json:"objects_listed"`
	ObjectsMatched int64 `json:"objects_matched"`
	BytesTotal     int64 `json:"bytes_total"`

	// Prefix is the prefix whose page was just listed, if applicable.
	Prefix string `json:"prefix,omitempty"`
}

// Progress phase constants.
const (
	PhaseStarting = "starting"
	PhaseListing  = "listing"
	PhaseComplete = "complete"
)

// SummaryRecord is the data payload for the final summary of a walk.
type SummaryRecord struct {
	// Root is the prefix the walk started from.
	Root string `json:"root"`

	Prefixes       int64 `json:"prefixes"`
	Pages          int64 `json:"pages"`
	ObjectsListed  int64 `json:"objects_listed"`
	ObjectsMatched int64 `json:"objects_matched"`
	BytesTotal     int64 `json:"bytes_total"`

	// Duration is the total walk duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")

	// ErrUnknownFormat is returned by New for an unsupported format name.
	ErrUnknownFormat = errors.New("unknown output format")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
