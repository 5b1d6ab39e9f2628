package walker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/nimbuswalk/pkg/output"
	"github.com/3leaps/nimbuswalk/pkg/provider"
)

func TestCollector(t *testing.T) {
	c := NewCollector()
	ctx := context.Background()

	require.NoError(t, c.Accept(ctx, "a/", objs("a/1", "a/2")))
	require.NoError(t, c.Accept(ctx, "b/", objs("b/1")))

	assert.Equal(t, []string{"a/1", "a/2", "b/1"}, c.Keys())
	assert.Equal(t, 3, c.Len())

	got := c.Objects()
	got[0].Key = "mutated"
	assert.Equal(t, "a/1", c.Objects()[0].Key)
}

func TestChannelSink_Forwards(t *testing.T) {
	s := NewChannelSink(3)
	require.NoError(t, s.Accept(context.Background(), "p/", objs("p/1", "p/2", "p/3")))
	s.Close()

	var keys []string
	for o := range s.C() {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{"p/1", "p/2", "p/3"}, keys)
}

func TestChannelSink_CancelWhileFull(t *testing.T) {
	s := NewChannelSink(1)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := s.Accept(ctx, "p/", objs("p/1", "p/2"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, s.C(), 1)
}

func TestRecordSink(t *testing.T) {
	var buf bytes.Buffer
	w := output.NewJSONLWriter(&buf, "job-1", "memory")
	s := NewRecordSink(w)

	modified := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	err := s.Accept(context.Background(), "a/", []provider.ObjectSummary{
		{Key: "a/1.txt", Size: 3, ETag: "e", LastModified: modified},
		{Key: "a/2.txt", Size: 4},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var rec output.Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, output.TypeObject, rec.Type)

	var obj output.ObjectRecord
	require.NoError(t, json.Unmarshal(rec.Data, &obj))
	assert.Equal(t, output.ObjectRecord{Key: "a/1.txt", Size: 3, ETag: "e", LastModified: modified}, obj)
}

func TestRecordSink_WriterError(t *testing.T) {
	w := output.NewTextWriter(&bytes.Buffer{})
	require.NoError(t, w.Close())

	err := NewRecordSink(w).Accept(context.Background(), "", objs("k"))
	assert.ErrorIs(t, err, output.ErrWriterClosed)
}

func TestSinkError(t *testing.T) {
	cause := errors.New("broken pipe")
	err := &SinkError{Prefix: "b/", Err: cause}

	assert.Equal(t, `walker: sink rejected objects from "b/": broken pipe`, err.Error())
	assert.ErrorIs(t, err, cause)
}
