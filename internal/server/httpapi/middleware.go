package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/miloc/internal/common"
	"github.com/dmitrijs2005/miloc/internal/logging"
	"github.com/google/uuid"
)

// Interceptor wraps a handler. Interceptors run in slice order, the first one
// outermost.
type Interceptor func(http.Handler) http.Handler

// Chain applies interceptors around h.
func Chain(h http.Handler, interceptors ...Interceptor) http.Handler {
	for i := len(interceptors) - 1; i >= 0; i-- {
		h = interceptors[i](h)
	}
	return h
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Recover turns a handler panic into a 500.
func Recover(logger logging.Logger) Interceptor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				if p := recover(); p != nil {
					if p == http.ErrAbortHandler {
						panic(p)
					}
					logger.Error(r.Context(), "panic in handler", "panic", p, "path", r.URL.Path)
					if rec.status == 0 {
						writeError(rec, http.StatusInternalServerError, msgInternal)
					}
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

// RequestLog assigns a request id and logs one line per request.
func RequestLog(logger logging.Logger) Interceptor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(common.RequestIDHeaderName)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set(common.RequestIDHeaderName, id)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info(r.Context(), "request",
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", rec.bytes,
				"duration", time.Since(start),
			)
		})
	}
}

// SecurityHeaders sets response headers common to every route.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
