package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Writer outputs walk results.
//
// Implementations must be safe for concurrent use: many walkers emit objects
// at once. Each call writes a complete line.
type Writer interface {
	WriteObject(ctx context.Context, obj *ObjectRecord) error
	WriteError(ctx context.Context, err *ErrorRecord) error
	WriteProgress(ctx context.Context, prog *ProgressRecord) error
	WriteSummary(ctx context.Context, sum *SummaryRecord) error

	// Close flushes any buffered output. The underlying io.Writer is not closed.
	Close() error
}

// Format names accepted by New.
const (
	FormatText  = "text"
	FormatJSONL = "jsonl"
)

// New returns a writer for the named format.
func New(format string, w io.Writer, jobID, provider string) (Writer, error) {
	switch format {
	case "", FormatText:
		return NewTextWriter(w), nil
	case FormatJSONL:
		return NewJSONLWriter(w, jobID, provider), nil
	default:
		return nil, fmt.Errorf("%w %q (want text or jsonl)", ErrUnknownFormat, format)
	}
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// Writes are serialized with a mutex so lines never interleave.
type JSONLWriter struct {
	w        io.Writer
	jobID    string
	provider string
	mu       sync.Mutex
	closed   bool
}

// NewJSONLWriter creates a new JSONL writer.
func NewJSONLWriter(w io.Writer, jobID, provider string) *JSONLWriter {
	return &JSONLWriter{
		w:        w,
		jobID:    jobID,
		provider: provider,
	}
}

func (jw *JSONLWriter) WriteObject(ctx context.Context, obj *ObjectRecord) error {
	return jw.writeRecord(ctx, TypeObject, obj)
}

func (jw *JSONLWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, err)
}

func (jw *JSONLWriter) WriteProgress(ctx context.Context, prog *ProgressRecord) error {
	return jw.writeRecord(ctx, TypeProgress, prog)
}

func (jw *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, sum)
}

// Close marks the writer as closed.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Payload is marshalled outside the lock.
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	recordBytes, err := json.Marshal(Record{
		Type:     recordType,
		TS:       time.Now().UTC(),
		JobID:    jw.jobID,
		Provider: jw.provider,
		Data:     dataBytes,
	})
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	if err := writeAll(jw.w, append(recordBytes, '\n')); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// writeAll writes all of p, looping over short writes.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

var _ Writer = (*JSONLWriter)(nil)
