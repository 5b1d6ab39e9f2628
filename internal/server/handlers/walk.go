package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3leaps/nimbuswalk/internal/server/httperr"
	"github.com/3leaps/nimbuswalk/pkg/match"
	"github.com/3leaps/nimbuswalk/pkg/output"
	"github.com/3leaps/nimbuswalk/pkg/provider"
	"github.com/3leaps/nimbuswalk/pkg/walker"
)

// ErrBadTarget marks Opener errors caused by the request rather than the
// provider. They are reported as 400.
var ErrBadTarget = errors.New("bad walk target")

// Target is an opened walk destination.
type Target struct {
	Lister   provider.Provider
	Root     string
	Provider string

	// Pattern is a glob from the address itself, added to the includes.
	Pattern string
}

// Opener resolves a target address such as s3://bucket/prefix/.
type Opener func(ctx context.Context, uri string) (*Target, error)

// WalkHandler serves GET /v1/walk?uri=...: the walk is streamed back as
// JSONL records, objects first, then a summary or an error record.
//
// Query parameters: uri (required), concurrency, max_keys, delimiter,
// include and exclude (repeatable), exclude_hidden.
type WalkHandler struct {
	Open           Opener
	Logger         *zap.Logger
	Defaults       walker.Config
	MaxConcurrency int
}

func (h *WalkHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	q := r.URL.Query()

	uri := q.Get("uri")
	if uri == "" {
		badRequest(w, "uri is required")
		return
	}

	cfg := h.Defaults
	var err error
	if raw := q.Get("concurrency"); raw != "" {
		if cfg.Concurrency, err = strconv.Atoi(raw); err != nil {
			badRequest(w, "concurrency: "+err.Error())
			return
		}
		if cfg.Concurrency < 1 || (h.MaxConcurrency > 0 && cfg.Concurrency > h.MaxConcurrency) {
			badRequest(w, fmt.Sprintf("concurrency must be between 1 and %d", h.MaxConcurrency))
			return
		}
	} else {
		cfg.Concurrency = h.defaultConcurrency()
	}
	if cfg.MaxKeys, err = intParam(q.Get("max_keys"), cfg.MaxKeys); err != nil || cfg.MaxKeys < 0 {
		badRequest(w, "max_keys must be a non-negative integer")
		return
	}
	if d := q.Get("delimiter"); d != "" {
		cfg.Delimiter = d
	}
	var excludeHidden bool
	if raw := q.Get("exclude_hidden"); raw != "" {
		if excludeHidden, err = strconv.ParseBool(raw); err != nil {
			badRequest(w, "exclude_hidden must be a boolean")
			return
		}
	}

	matchCfg := match.Config{
		Includes:      q["include"],
		Excludes:      q["exclude"],
		ExcludeHidden: excludeHidden,
	}
	if _, err := match.New(matchCfg); err != nil {
		badRequest(w, err.Error())
		return
	}

	target, err := h.Open(r.Context(), uri)
	if err != nil {
		if errors.Is(err, ErrBadTarget) {
			badRequest(w, err.Error())
			return
		}
		httperr.Write(w, http.StatusBadGateway, httperr.CodeBadGateway, err.Error(),
			map[string]any{"provider_code": provider.Code(err)})
		return
	}
	defer func() { _ = target.Lister.Close() }()

	matchCfg.Root = target.Root
	if target.Pattern != "" {
		matchCfg.Includes = append(matchCfg.Includes, target.Pattern)
	}
	matcher, err := match.New(matchCfg)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	jobID := uuid.NewString()
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Job-Id", jobID)
	w.WriteHeader(http.StatusOK)

	writer := output.NewJSONLWriter(newFlushWriter(w), jobID, target.Provider)
	defer func() { _ = writer.Close() }()

	logger = logger.With(zap.String("job_id", jobID), zap.String("uri", uri))
	summary, err := walker.New(target.Lister, walker.NewRecordSink(writer), cfg).
		WithMatcher(matcher).
		WithLogger(logger).
		Run(r.Context(), target.Root)
	if err != nil {
		logger.Warn("walk failed", zap.Error(err))
		rec := &output.ErrorRecord{Code: provider.Code(err), Message: err.Error()}
		var le *provider.ListingError
		if errors.As(err, &le) {
			rec.Prefix = le.Prefix
		}
		// The client may be gone; nothing more to do if this fails.
		_ = writer.WriteError(context.WithoutCancel(r.Context()), rec)
		return
	}

	_ = writer.WriteSummary(r.Context(), summary.Record())
}

// defaultConcurrency is the concurrency used when a request names none:
// the configured default, capped at MaxConcurrency.
func (h *WalkHandler) defaultConcurrency() int {
	c := h.Defaults.Concurrency
	if c <= 0 {
		c = walker.DefaultConcurrency
	}
	if h.MaxConcurrency > 0 {
		c = min(c, h.MaxConcurrency)
	}
	return c
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func badRequest(w http.ResponseWriter, msg string) {
	httperr.Write(w, http.StatusBadRequest, httperr.CodeInvalidArgument, msg, nil)
}

// flushWriter flushes the response after every record.
type flushWriter struct {
	w  io.Writer
	rc *http.ResponseController
}

func newFlushWriter(w http.ResponseWriter) *flushWriter {
	return &flushWriter{w: w, rc: http.NewResponseController(w)}
}

func (f *flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if err == nil {
		// Unsupported by some writers; buffered output still arrives at the end.
		_ = f.rc.Flush()
	}
	return n, err
}
