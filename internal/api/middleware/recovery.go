package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"

	"voicediary/internal/api/response"
)

// Recovery converts a handler panic into a 500 error envelope instead of a
// dropped connection. The panic value and stack go to the log, never to the
// client.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			attrs := []any{
				"panic", v,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			}
			if jobID := chi.URLParam(r, "jobID"); jobID != "" {
				attrs = append(attrs, "job_id", jobID)
			}
			slog.Error("handler panic", attrs...)
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Internal server error", nil)
		}()
		next.ServeHTTP(w, r)
	})
}
