// Package request holds the HTTP middleware chain shared by every pool route:
// panic recovery, request ids, access logging, timeouts and latency metrics.
package request

import (
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mutualpool/pkg/platform/httputil"
	"mutualpool/pkg/requestcontext"
)

// MaxRequestIDLength caps a client-supplied X-Request-ID.
const MaxRequestIDLength = 128

const headerRequestID = "X-Request-ID"

var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// quietPaths are scraped constantly; they are only logged on server errors.
var quietPaths = map[string]bool{"/health": true, "/metrics": true}

// Recovery turns a handler panic into a 500 and logs the stack.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				ctx := r.Context()
				logger.ErrorContext(ctx, "handler panic",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
					"stack", string(debug.Stack()),
				)
				httputil.WriteJSON(w, http.StatusInternalServerError, map[string]string{
					"error":             "internal_error",
					"error_description": "internal server error",
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID reuses a well-formed client X-Request-ID or mints a UUID, stores
// it on the context and echoes it back.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if !acceptableRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), id)))
	})
}

func acceptableRequestID(id string) bool {
	return id != "" && len(id) <= MaxRequestIDLength && requestIDPattern.MatchString(id)
}

// Logger writes one access line per request with the authenticated caller.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			if quietPaths[r.URL.Path] && sw.status < http.StatusInternalServerError {
				return
			}
			ctx := r.Context()
			level := slog.LevelInfo
			if sw.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(ctx, level, "http request",
				"method", r.Method,
				"route", routePattern(r),
				"path", r.URL.Path,
				"status", sw.status,
				"bytes", sw.written,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", requestcontext.RequestID(ctx),
				"caller", requestcontext.Caller(ctx).String(),
			)
		})
	}
}

// statusWriter remembers the status and body size written by the handler.
type statusWriter struct {
	http.ResponseWriter
	status      int
	written     int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	n, err := sw.ResponseWriter.Write(b)
	sw.written += n
	return n, err
}

func (sw *statusWriter) Unwrap() http.ResponseWriter { return sw.ResponseWriter }

// Timeout bounds handler execution. Engine operations observe the context and
// roll back when it expires.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, `{"error":"timeout","error_description":"request timed out"}`)
	}
}

// ContentTypeJSON rejects bodies on mutating methods unless they are JSON.
// An absent Content-Type is tolerated.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if ct := r.Header.Get("Content-Type"); ct != "" {
				mediaType, _, err := mime.ParseMediaType(ct)
				if err != nil || mediaType != "application/json" {
					httputil.WriteJSON(w, http.StatusUnsupportedMediaType, map[string]string{
						"error":             "invalid_content_type",
						"error_description": "Content-Type must be application/json",
					})
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// LatencyMiddleware observes request duration labelled by the matched chi
// route. A nil Metrics disables observation.
func LatencyMiddleware(m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m.InFlight.Inc()
			defer m.InFlight.Dec()

			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			m.observe(r.Method, routePattern(r), sw.status, time.Since(start).Seconds())
		})
	}
}

// routePattern returns the chi pattern that served r, or "unmatched". chi
// fills the pattern in while routing, so this is only meaningful after
// next.ServeHTTP returns.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
