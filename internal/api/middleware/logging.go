package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// responseMeter captures the status code and body size written by a
// handler.
type responseMeter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (m *responseMeter) WriteHeader(code int) {
	m.status = code
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeter) Write(p []byte) (int, error) {
	n, err := m.ResponseWriter.Write(p)
	m.bytes += n
	return n, err
}

// Logger emits one structured line per request. Job routes carry the job
// id so a request can be correlated with the pipeline logs for that job.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		meter := &responseMeter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(meter, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", meter.status,
			"bytes", meter.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		}
		if jobID := chi.URLParam(r, "jobID"); jobID != "" {
			attrs = append(attrs, "job_id", jobID)
		}
		slog.Info("request", attrs...)
	})
}
