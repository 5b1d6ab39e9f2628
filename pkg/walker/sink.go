package walker

import (
	"context"
	"slices"
	"sync"

	"github.com/3leaps/nimbuswalk/pkg/output"
	"github.com/3leaps/nimbuswalk/pkg/provider"
)

// Sink receives leaf objects as walkers discover them.
//
// Accept is called concurrently from up to Concurrency walkers. objs holds
// one page's matched objects in listing order; the slice is not reused by the
// walker. A non-nil error aborts the walk.
type Sink interface {
	Accept(ctx context.Context, prefix string, objs []provider.ObjectSummary) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, prefix string, objs []provider.ObjectSummary) error

func (f SinkFunc) Accept(ctx context.Context, prefix string, objs []provider.ObjectSummary) error {
	return f(ctx, prefix, objs)
}

// Collector buffers every object in memory.
type Collector struct {
	mu   sync.Mutex
	objs []provider.ObjectSummary
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Accept(_ context.Context, _ string, objs []provider.ObjectSummary) error {
	c.mu.Lock()
	c.objs = append(c.objs, objs...)
	c.mu.Unlock()
	return nil
}

// Objects returns a copy of the collected objects in arrival order.
func (c *Collector) Objects() []provider.ObjectSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.objs)
}

// Keys returns the collected keys in arrival order.
func (c *Collector) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, len(c.objs))
	for i, o := range c.objs {
		keys[i] = o.Key
	}
	return keys
}

// Len returns the number of collected objects.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.objs)
}

// ChannelSink forwards objects to a bounded channel.
//
// Accept blocks while the channel is full but returns as soon as ctx is
// done, so a stalled consumer cannot hold a walker slot past a shutdown.
// The owner calls Close after Run returns.
type ChannelSink struct {
	ch chan provider.ObjectSummary
}

// NewChannelSink creates a sink with the given buffer capacity.
func NewChannelSink(capacity int) *ChannelSink {
	if capacity < 0 {
		capacity = 0
	}
	return &ChannelSink{ch: make(chan provider.ObjectSummary, capacity)}
}

// C returns the receive side of the sink.
func (s *ChannelSink) C() <-chan provider.ObjectSummary {
	return s.ch
}

func (s *ChannelSink) Accept(ctx context.Context, _ string, objs []provider.ObjectSummary) error {
	for _, o := range objs {
		select {
		case s.ch <- o:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close closes the channel. It must not be called while a walk is running.
func (s *ChannelSink) Close() {
	close(s.ch)
}

// RecordSink writes each object as an output record.
type RecordSink struct {
	w output.Writer
}

// NewRecordSink creates a sink that writes to w.
func NewRecordSink(w output.Writer) *RecordSink {
	return &RecordSink{w: w}
}

func (s *RecordSink) Accept(ctx context.Context, _ string, objs []provider.ObjectSummary) error {
	for i := range objs {
		o := &objs[i]
		if err := s.w.WriteObject(ctx, &output.ObjectRecord{
			Key:          o.Key,
			Size:         o.Size,
			ETag:         o.ETag,
			LastModified: o.LastModified,
		}); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ Sink = SinkFunc(nil)
	_ Sink = (*Collector)(nil)
	_ Sink = (*ChannelSink)(nil)
	_ Sink = (*RecordSink)(nil)
)
