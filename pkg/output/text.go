package output

import (
	"context"
	"io"
	"sync"
)

// TextWriter prints one object key per line. Progress, summary and error
// records are not printed; they go to the log instead.
type TextWriter struct {
	w      io.Writer
	mu     sync.Mutex
	closed bool
}

// NewTextWriter creates a text writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w}
}

func (tw *TextWriter) WriteObject(ctx context.Context, obj *ObjectRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line := make([]byte, 0, len(obj.Key)+1)
	line = append(line, obj.Key...)
	line = append(line, '\n')

	tw.mu.Lock()
	defer tw.mu.Unlock()

	if tw.closed {
		return ErrWriterClosed
	}
	if err := writeAll(tw.w, line); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

func (tw *TextWriter) WriteError(context.Context, *ErrorRecord) error       { return nil }
func (tw *TextWriter) WriteProgress(context.Context, *ProgressRecord) error { return nil }
func (tw *TextWriter) WriteSummary(context.Context, *SummaryRecord) error   { return nil }

func (tw *TextWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()

	tw.closed = true
	return nil
}

var _ Writer = (*TextWriter)(nil)
