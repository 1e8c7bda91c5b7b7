package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"voicediary/internal/api/handler"
	mw "voicediary/internal/api/middleware"
)

// Dependencies holds all handler and middleware dependencies for the
// router.
type Dependencies struct {
	RateLimit *mw.RateLimit
	Jobs      *handler.Jobs

	HealthHandler http.HandlerFunc
}

// NewRouter builds the chi router with the middleware stack and all routes.
// Admission control applies only to submission; reads are unlimited.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/health", deps.HealthHandler)

	r.With(deps.RateLimit.Limit).Post("/jobs", deps.Jobs.Submit)

	r.Get("/jobs", deps.Jobs.List)
	r.Get("/jobs/{jobID}", deps.Jobs.Get)
	r.Get("/jobs/{jobID}/transcription", deps.Jobs.Transcription)
	r.Get("/jobs/{jobID}/note", deps.Jobs.DiaryNote)
	r.Post("/jobs/{jobID}/cancel", deps.Jobs.Cancel)
	r.Delete("/jobs/{jobID}", deps.Jobs.Delete)

	return r
}
