package output

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer

	w, err := New("", &buf, "job", "s3")
	require.NoError(t, err)
	assert.IsType(t, &TextWriter{}, w)

	w, err = New(FormatJSONL, &buf, "job", "s3")
	require.NoError(t, err)
	assert.IsType(t, &JSONLWriter{}, w)

	_, err = New("csv", &buf, "job", "s3")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Contains(t, err.Error(), `"csv"`)
}

func TestJSONLWriter_WriteObject(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	obj := &ObjectRecord{
		Key:          "b/c/y.txt",
		Size:         1048576,
		ETag:         "abc123",
		LastModified: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, w.WriteObject(context.Background(), obj))

	var record Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, TypeObject, record.Type)
	assert.Equal(t, "job-123", record.JobID)
	assert.Equal(t, "s3", record.Provider)
	assert.False(t, record.TS.IsZero())

	var data ObjectRecord
	require.NoError(t, json.Unmarshal(record.Data, &data))
	assert.Equal(t, *obj, data)
}

func TestJSONLWriter_WriteError(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "minio")

	require.NoError(t, w.WriteError(context.Background(), &ErrorRecord{
		Code:    "ACCESS_DENIED",
		Message: "list s3: store/b/: access denied",
		Prefix:  "b/",
	}))

	var record Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, TypeError, record.Type)

	var data ErrorRecord
	require.NoError(t, json.Unmarshal(record.Data, &data))
	assert.Equal(t, "ACCESS_DENIED", data.Code)
	assert.Equal(t, "b/", data.Prefix)
}

func TestJSONLWriter_WriteProgress(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	require.NoError(t, w.WriteProgress(context.Background(), &ProgressRecord{
		Phase:          PhaseListing,
		Prefixes:       12,
		Pages:          40,
		ObjectsListed:  3900,
		ObjectsMatched: 3800,
		BytesTotal:     1 << 30,
	}))

	var record Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, TypeProgress, record.Type)

	var data ProgressRecord
	require.NoError(t, json.Unmarshal(record.Data, &data))
	assert.Equal(t, PhaseListing, data.Phase)
	assert.Equal(t, int64(40), data.Pages)
	assert.Equal(t, int64(1<<30), data.BytesTotal)
}

func TestJSONLWriter_WriteSummary(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	require.NoError(t, w.WriteSummary(context.Background(), &SummaryRecord{
		Root:           "data/",
		Prefixes:       3,
		Pages:          5,
		ObjectsListed:  5000,
		ObjectsMatched: 2500,
		BytesTotal:     10737418240,
		Duration:       30 * time.Second,
		DurationHuman:  "30s",
	}))

	var record Record
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, TypeSummary, record.Type)

	var data SummaryRecord
	require.NoError(t, json.Unmarshal(record.Data, &data))
	assert.Equal(t, "data/", data.Root)
	assert.Equal(t, int64(2500), data.ObjectsMatched)
	assert.Equal(t, 30*time.Second, data.Duration)
	assert.Equal(t, "30s", data.DurationHuman)
}

func TestJSONLWriter_Close(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	require.NoError(t, w.Close())

	err := w.WriteObject(context.Background(), &ObjectRecord{Key: "file.txt"})
	assert.ErrorIs(t, err, ErrWriterClosed)
}

func TestJSONLWriter_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	const numWriters = 10
	const writesPerWriter = 100

	var wg sync.WaitGroup
	wg.Add(numWriters)
	for i := 0; i < numWriters; i++ {
		go func(writerID int) {
			defer wg.Done()
			for j := 0; j < writesPerWriter; j++ {
				_ = w.WriteObject(context.Background(), &ObjectRecord{
					Key:  "file.txt",
					Size: int64(writerID*writesPerWriter + j),
				})
			}
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, numWriters*writesPerWriter)
	for i, line := range lines {
		var record Record
		assert.NoError(t, json.Unmarshal([]byte(line), &record), "line %d: %s", i, line)
	}
}

func TestJSONLWriter_ContextCancellation(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf, "job-123", "s3")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.WriteObject(ctx, &ObjectRecord{Key: "file.txt"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, buf.String())
}

func TestJSONLWriter_WriteFailure(t *testing.T) {
	w := NewJSONLWriter(&failingWriter{err: errors.New("disk full")}, "job-123", "s3")

	err := w.WriteObject(context.Background(), &ObjectRecord{Key: "file.txt"})
	require.Error(t, err)

	var writeErr *WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, "write", writeErr.Op)
}

func TestJSONLWriter_ShortWrite(t *testing.T) {
	sw := &shortWriteWriter{bytesPerWrite: 10}
	w := NewJSONLWriter(sw, "job-123", "s3")

	require.NoError(t, w.WriteObject(context.Background(), &ObjectRecord{Key: "data/2024/file.parquet", Size: 1}))

	lines := strings.Split(strings.TrimSpace(sw.buf.String()), "\n")
	require.Len(t, lines, 1)

	var record Record
	assert.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, TypeObject, record.Type)
}

func TestJSONLWriter_ZeroWrite(t *testing.T) {
	w := NewJSONLWriter(zeroWriteWriter{}, "job-123", "s3")

	err := w.WriteObject(context.Background(), &ObjectRecord{Key: "file.txt"})
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

func TestTextWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewTextWriter(&buf)
	ctx := context.Background()

	require.NoError(t, w.WriteObject(ctx, &ObjectRecord{Key: "a/1.txt"}))
	require.NoError(t, w.WriteProgress(ctx, &ProgressRecord{Phase: PhaseListing}))
	require.NoError(t, w.WriteObject(ctx, &ObjectRecord{Key: "a/2.txt"}))
	require.NoError(t, w.WriteSummary(ctx, &SummaryRecord{}))
	require.NoError(t, w.WriteError(ctx, &ErrorRecord{Code: "INTERNAL"}))

	assert.Equal(t, "a/1.txt\na/2.txt\n", buf.String())

	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.WriteObject(ctx, &ObjectRecord{Key: "x"}), ErrWriterClosed)
}

func TestTextWriter_WriteFailure(t *testing.T) {
	w := NewTextWriter(&failingWriter{err: errors.New("broken pipe")})

	var writeErr *WriteError
	err := w.WriteObject(context.Background(), &ObjectRecord{Key: "k"})
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, "output: write: broken pipe", err.Error())
}

func TestErrorRecord_OmitEmpty(t *testing.T) {
	data, err := json.Marshal(&ErrorRecord{Code: "INTERNAL", Message: "boom"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "prefix")
}

type failingWriter struct {
	err error
}

func (f *failingWriter) Write(p []byte) (int, error) {
	return 0, f.err
}

// shortWriteWriter writes at most bytesPerWrite bytes per call.
type shortWriteWriter struct {
	buf           bytes.Buffer
	bytesPerWrite int
}

func (sw *shortWriteWriter) Write(p []byte) (int, error) {
	if len(p) > sw.bytesPerWrite {
		p = p[:sw.bytesPerWrite]
	}
	return sw.buf.Write(p)
}

type zeroWriteWriter struct{}

func (zeroWriteWriter) Write(p []byte) (int, error) {
	return 0, nil
}

func BenchmarkJSONLWriter_WriteObject(b *testing.B) {
	w := NewJSONLWriter(io.Discard, "job-123", "s3")
	obj := &ObjectRecord{
		Key:          "data/year=2024/month=01/part-00000.parquet",
		Size:         1048576,
		ETag:         "abc123",
		LastModified: time.Now().UTC(),
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = w.WriteObject(ctx, obj)
	}
}
