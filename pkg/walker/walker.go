// Package walker enumerates every object under a prefix of a
// delimiter-listed object store.
//
// A Walker treats each (prefix, cursor) pair as an independent unit of work.
// Listing a unit yields sub-prefixes, which become new units, leaf objects,
// which go to a Sink, and possibly a cursor, which becomes a continuation unit
// for the same prefix. Units wait in a FIFO Queue; at most Concurrency of them
// are listed at once.
//
// The walk is complete when the queue is empty and no listing is in flight.
// The first listing or sink error cancels the walk: no further units are
// dispatched, in-flight listings are cancelled and awaited, and Run returns
// the error.
package walker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/nimbuswalk/pkg/match"
	"github.com/3leaps/nimbuswalk/pkg/output"
	"github.com/3leaps/nimbuswalk/pkg/provider"
)

// DefaultConcurrency is the default number of concurrent listing calls.
const DefaultConcurrency = 8

// Config configures walker behavior.
type Config struct {
	// Concurrency is the maximum number of listing calls in flight.
	// Default: 8
	Concurrency int

	// Delimiter groups keys into prefixes.
	// Default: "/"
	Delimiter string

	// MaxKeys is the page size requested from the provider.
	// Zero uses the provider default.
	MaxKeys int

	// RateLimit is the maximum listing calls per second.
	// Zero means unlimited.
	RateLimit float64

	// ProgressEvery reports progress every N pages.
	// Default: 100
	ProgressEvery int
}

// DefaultConfig returns the default walker configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:   DefaultConcurrency,
		Delimiter:     provider.DefaultDelimiter,
		ProgressEvery: 100,
	}
}

// Stats are running counters of a walk.
type Stats struct {
	// Prefixes is the number of distinct prefixes listed.
	Prefixes int64

	// Pages is the number of listing calls that returned successfully.
	Pages int64

	// ObjectsListed is the number of leaf objects returned by the provider.
	ObjectsListed int64

	// ObjectsMatched is the number of objects passed to the sink.
	ObjectsMatched int64

	// BytesTotal is the cumulative size of matched objects.
	BytesTotal int64
}

// Summary contains aggregate statistics from a completed walk.
type Summary struct {
	Stats

	// Root is the prefix the walk started from.
	Root string

	// Duration is the total time spent walking.
	Duration time.Duration
}

// Record converts the summary to its output record.
func (s *Summary) Record() *output.SummaryRecord {
	return &output.SummaryRecord{
		Root:           s.Root,
		Prefixes:       s.Prefixes,
		Pages:          s.Pages,
		ObjectsListed:  s.ObjectsListed,
		ObjectsMatched: s.ObjectsMatched,
		BytesTotal:     s.BytesTotal,
		Duration:       s.Duration,
		DurationHuman:  s.Duration.Round(time.Millisecond).String(),
	}
}

// ProgressRecord converts a counter snapshot to a progress record.
func (s Stats) ProgressRecord(phase, prefix string) *output.ProgressRecord {
	return &output.ProgressRecord{
		Phase:          phase,
		Prefixes:       s.Prefixes,
		Pages:          s.Pages,
		ObjectsListed:  s.ObjectsListed,
		ObjectsMatched: s.ObjectsMatched,
		BytesTotal:     s.BytesTotal,
		Prefix:         prefix,
	}
}

// ProgressFunc receives a snapshot of the counters and the prefix whose page
// was just listed. It is called from walker goroutines and must be safe for
// concurrent use.
type ProgressFunc func(stats Stats, prefix string)

// Walker traverses a prefix tree through a provider.DelimiterLister.
//
// A Walker is single use. Create a new one for each walk.
type Walker struct {
	lister   provider.DelimiterLister
	sink     Sink
	matcher  *match.Matcher
	logger   *zap.Logger
	progress ProgressFunc
	config   Config

	queue   *Queue
	limiter *rate.Limiter
	started atomic.Bool

	prefixes       atomic.Int64
	pages          atomic.Int64
	objectsListed  atomic.Int64
	objectsMatched atomic.Int64
	bytesTotal     atomic.Int64
}

// New creates a walker that lists through l and emits objects to s.
// Zero config fields take their defaults.
func New(l provider.DelimiterLister, s Sink, cfg Config) *Walker {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Delimiter == "" {
		cfg.Delimiter = def.Delimiter
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = def.ProgressEvery
	}

	w := &Walker{
		lister: l,
		sink:   s,
		logger: zap.NewNop(),
		config: cfg,
		queue:  NewQueue(),
	}
	if cfg.RateLimit > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return w
}

// WithMatcher filters emitted objects and prunes sub-prefixes that cannot
// contain a match.
func (w *Walker) WithMatcher(m *match.Matcher) *Walker {
	w.matcher = m
	return w
}

// WithLogger sets the logger. The default discards everything.
func (w *Walker) WithLogger(l *zap.Logger) *Walker {
	if l != nil {
		w.logger = l
	}
	return w
}

// WithProgress sets a callback invoked every ProgressEvery pages.
func (w *Walker) WithProgress(fn ProgressFunc) *Walker {
	w.progress = fn
	return w
}

// Config returns the effective configuration.
func (w *Walker) Config() Config {
	return w.config
}

// Stats returns a snapshot of the running counters.
func (w *Walker) Stats() Stats {
	return Stats{
		Prefixes:       w.prefixes.Load(),
		Pages:          w.pages.Load(),
		ObjectsListed:  w.objectsListed.Load(),
		ObjectsMatched: w.objectsMatched.Load(),
		BytesTotal:     w.bytesTotal.Load(),
	}
}

// completion is sent by a walker goroutine after its page has been fully
// processed.
type completion struct {
	unit Unit
	err  error
}

// Run walks every prefix reachable from root and returns summary statistics.
//
// Run blocks until the tree is exhausted, ctx is cancelled, or a listing or
// sink call fails. On cancellation the partial summary is returned alongside
// ctx's error; on any other failure the summary is nil.
func (w *Walker) Run(ctx context.Context, root string) (*Summary, error) {
	if !w.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}
	start := time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	limit := w.config.Concurrency
	// Buffered to the slot count so a finished walker never blocks on send.
	done := make(chan completion, limit)
	active := 0

	var firstErr error
	fail := func(err error) {
		if firstErr != nil {
			return
		}
		firstErr = err
		cancel()
		w.queue.Close()
	}
	settle := func(c completion) {
		if active <= 0 {
			panic(fmt.Sprintf("walker: completion for %q with no active walkers", c.unit.Prefix))
		}
		active--
		if c.err != nil {
			fail(c.err)
		}
	}

	w.logger.Debug("walk starting",
		zap.String("root", root),
		zap.Int("concurrency", limit),
		zap.String("delimiter", w.config.Delimiter),
	)
	w.queue.Push(Unit{Prefix: root})

	for {
		for firstErr == nil && active < limit {
			u, ok := w.queue.TryPop()
			if !ok {
				break
			}
			active++
			go func(u Unit) {
				done <- completion{unit: u, err: w.walkPage(ctx, u)}
			}(u)
		}

		// Every completion has been settled and pushes happen before a
		// walker reports, so nothing can refill the queue from here.
		if active == 0 {
			break
		}

		if firstErr != nil {
			settle(<-done)
			continue
		}
		select {
		case c := <-done:
			settle(c)
		case <-ctx.Done():
			fail(ctx.Err())
		}
	}

	summary := &Summary{
		Stats:    w.Stats(),
		Root:     root,
		Duration: time.Since(start),
	}

	if firstErr != nil {
		if errors.Is(firstErr, context.Canceled) || errors.Is(firstErr, context.DeadlineExceeded) {
			w.logger.Info("walk cancelled", zap.Error(firstErr), zap.Int64("pages", summary.Pages))
			return summary, firstErr
		}
		w.logger.Debug("walk failed", zap.Error(firstErr), zap.Int("pending", w.queue.Len()))
		return nil, firstErr
	}

	w.logger.Debug("walk complete",
		zap.String("root", root),
		zap.Int64("prefixes", summary.Prefixes),
		zap.Int64("pages", summary.Pages),
		zap.Int64("objects_matched", summary.ObjectsMatched),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}
