package walker

import (
	"context"

	"go.uber.org/zap"

	"github.com/3leaps/nimbuswalk/pkg/provider"
)

// walkPage lists exactly one page for u.
//
// Sub-prefixes and the continuation, if any, are pushed to the queue and
// matched objects are handed to the sink before walkPage returns, so the
// scheduler sees all follow-up work by the time it learns u is finished.
func (w *Walker) walkPage(ctx context.Context, u Unit) error {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	page, err := w.lister.ListWithDelimiter(ctx, provider.ListWithDelimiterOptions{
		Prefix:            u.Prefix,
		Delimiter:         w.config.Delimiter,
		ContinuationToken: u.Cursor,
		MaxKeys:           w.config.MaxKeys,
	})
	if err != nil {
		return err
	}
	if page == nil {
		page = &provider.ListWithDelimiterResult{}
	}
	if page.HasMore() && page.ContinuationToken == u.Cursor {
		return &provider.ListingError{
			Op:     "ListWithDelimiter",
			Prefix: u.Prefix,
			Err:    ErrCursorNotAdvancing,
		}
	}

	pages := w.pages.Add(1)
	if !u.IsContinuation() {
		w.prefixes.Add(1)
	}

	next := make([]Unit, 0, len(page.CommonPrefixes)+1)
	for _, p := range page.CommonPrefixes {
		// A prefix that lists itself would never terminate.
		if p == u.Prefix {
			continue
		}
		if w.matcher != nil && !w.matcher.CanContain(p) {
			w.logger.Debug("prefix pruned", zap.String("prefix", p))
			continue
		}
		next = append(next, Unit{Prefix: p})
	}
	if page.HasMore() {
		next = append(next, Unit{Prefix: u.Prefix, Cursor: page.ContinuationToken})
	}
	if len(next) > 0 && !w.queue.Push(next...) {
		// Closed by a failure elsewhere; the walk is already over.
		return ctx.Err()
	}

	w.objectsListed.Add(int64(len(page.Objects)))
	matched := w.filter(page.Objects)
	if len(matched) > 0 {
		var bytes int64
		for i := range matched {
			bytes += matched[i].Size
		}
		if err := w.sink.Accept(ctx, u.Prefix, matched); err != nil {
			return &SinkError{Prefix: u.Prefix, Err: err}
		}
		w.objectsMatched.Add(int64(len(matched)))
		w.bytesTotal.Add(bytes)
	}

	if pages%int64(w.config.ProgressEvery) == 0 {
		w.reportProgress(u.Prefix)
	}
	return nil
}

func (w *Walker) filter(objs []provider.ObjectSummary) []provider.ObjectSummary {
	if w.matcher == nil {
		return objs
	}
	out := make([]provider.ObjectSummary, 0, len(objs))
	for _, o := range objs {
		if w.matcher.Match(o.Key) {
			out = append(out, o)
		}
	}
	return out
}

func (w *Walker) reportProgress(prefix string) {
	stats := w.Stats()
	w.logger.Info("walk progress",
		zap.Int64("prefixes", stats.Prefixes),
		zap.Int64("pages", stats.Pages),
		zap.Int64("objects_listed", stats.ObjectsListed),
		zap.Int64("objects_matched", stats.ObjectsMatched),
		zap.Int("pending", w.queue.Len()),
		zap.String("prefix", prefix),
	)
	if w.progress != nil {
		w.progress(stats, prefix)
	}
}
