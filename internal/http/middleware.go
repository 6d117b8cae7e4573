package http

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/storycast/internal/logging"
	"github.com/nextlevelbuilder/storycast/pkg/protocol"
)

// RequestIDHeader is echoed on every response.
const RequestIDHeader = "X-Request-Id"

// statusRecorder captures the status and size of a response while keeping
// http.Flusher available to streaming handlers.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += int64(n)
	return n, err
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// withMiddleware wraps h with request IDs, access logging and panic recovery.
// A panic after the response started only ends the response.
func withMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, reqID)

		logger := slog.Default().With("request_id", reqID)
		rec := &statusRecorder{ResponseWriter: w}
		r = r.WithContext(logging.WithContext(r.Context(), logger))

		defer func() {
			if p := recover(); p != nil {
				logger.Error("http.panic", "path", r.URL.Path, "panic", p, "stack", string(debug.Stack()))
				if rec.status == 0 {
					writeError(rec, http.StatusInternalServerError, protocol.ErrInternal, "internal error")
				}
			}
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"bytes", rec.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}()

		h.ServeHTTP(rec, r)
	})
}
