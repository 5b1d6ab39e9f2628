// Package middleware provides HTTP middleware for the nimbuswalk service.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/3leaps/nimbuswalk/internal/server/httperr"
)

// Recovery converts a handler panic into a 500 JSON error.
//
// If the handler already started a streamed response the status cannot be
// changed; the connection is left to the client to notice the truncation.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			var msg string
			switch v := rec.(type) {
			case error:
				msg = "panic: " + v.Error()
			default:
				msg = fmt.Sprintf("panic: %v", v)
			}
			httperr.Write(w, http.StatusInternalServerError, httperr.CodeInternal, msg, nil)
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			)
		})
	}
}
