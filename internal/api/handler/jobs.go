// Package handler implements the HTTP handlers: thin CRUD over the status
// store plus intake into the pipeline.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"voicediary/internal/api/response"
	"voicediary/internal/jobs"
	"voicediary/internal/queue"
	"voicediary/internal/storage"
	"voicediary/internal/store"
)

// Jobs serves the job endpoints.
type Jobs struct {
	store   store.Store
	archive store.Archive
	queue   queue.Queue
	files   *storage.FileStore
}

// NewJobs creates the job handlers. archive may be nil; listing then
// reports the archive as unavailable.
func NewJobs(st store.Store, archive store.Archive, q queue.Queue, files *storage.FileStore) *Jobs {
	return &Jobs{store: st, archive: archive, queue: q, files: files}
}

type submitRequest struct {
	AudioURL     string        `json:"audio_url"`
	Priority     jobs.Priority `json:"priority"`
	WhisperModel string        `json:"whisper_model"`
}

type submitResponse struct {
	JobID               uuid.UUID     `json:"job_id"`
	Status              jobs.Status   `json:"status"`
	Priority            jobs.Priority `json:"priority"`
	CreatedAt           time.Time     `json:"created_at"`
	EstimatedCompletion time.Time     `json:"estimated_completion"`
}

// Submit validates the request, creates a pending job, and publishes it to
// the transcription queue.
func (h *Jobs) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", nil)
		return
	}

	if !validAudioURL(req.AudioURL) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"audio_url must be a valid http(s) URL", nil)
		return
	}
	if req.Priority == "" {
		req.Priority = jobs.PriorityMedium
	}
	if !jobs.ValidPriority(req.Priority) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"priority must be one of urgent, high, medium, low", nil)
		return
	}

	job := jobs.NewJob(req.AudioURL, req.Priority, req.WhisperModel)
	if err := h.store.Create(r.Context(), job); err != nil {
		response.Error(w, http.StatusInternalServerError, "SUBMIT_FAILED",
			"Failed to create job. Please try again.", nil)
		return
	}

	task := jobs.TranscriptionTask{
		JobID:        job.ID,
		AudioURL:     job.AudioURL,
		WhisperModel: job.WhisperModel,
		Priority:     job.Priority,
		Timestamp:    time.Now().UTC(),
	}
	payload, _ := json.Marshal(task)

	receivers, err := h.queue.Publish(r.Context(), jobs.TranscriptionChannel, payload)
	if err != nil {
		slog.Error("publish transcription task", "job_id", job.ID, "error", err)
		response.Error(w, http.StatusServiceUnavailable, "TRANSPORT_UNAVAILABLE",
			"Failed to enqueue job. Please try again.", nil)
		return
	}
	if receivers == 0 {
		slog.Warn("no transcription workers subscribed", "job_id", job.ID)
	}

	slog.Info("job submitted", "job_id", job.ID, "priority", job.Priority)

	response.Accepted(w, submitResponse{
		JobID:               job.ID,
		Status:              job.Status,
		Priority:            job.Priority,
		CreatedAt:           job.CreatedAt,
		EstimatedCompletion: job.CreatedAt.Add(job.Priority.ETA()),
	})
}

// Get returns the full job record. Terminal jobs observed here are
// backfilled into the archive, covering jobs that turned terminal while
// the archive was down or not yet configured.
func (h *Jobs) Get(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if jobs.Terminal(job.Status) && h.archive != nil {
		if err := h.archive.Record(r.Context(), job); err != nil {
			slog.Warn("archiving terminal job", "job_id", job.ID, "error", err)
		}
	}

	response.JSON(w, job)
}

// List pages through archived jobs, newest first.
func (h *Jobs) List(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		response.Error(w, http.StatusServiceUnavailable, "ARCHIVE_UNAVAILABLE",
			"Job archive is not configured", nil)
		return
	}

	filter := store.ArchiveFilter{
		Status: jobs.Status(r.URL.Query().Get("status")),
		Page:   intQuery(r, "page", 1),
		Limit:  intQuery(r, "limit", 20),
	}
	// Clamp here so the meta block reflects the page actually served.
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Status != "" && !jobs.Valid(filter.Status) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "unknown status filter", nil)
		return
	}

	list, total, err := h.archive.List(r.Context(), filter)
	if err != nil {
		slog.Error("list archived jobs", "error", err)
		response.Error(w, http.StatusInternalServerError, "LIST_FAILED", "Failed to list jobs", nil)
		return
	}

	response.Collection(w, list, response.PaginationMeta{
		Page:    filter.Page,
		Limit:   filter.Limit,
		Total:   total,
		HasNext: filter.Page*filter.Limit < total,
	})
}

// Cancel marks a pending or downloading job cancelled.
func (h *Jobs) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := jobID(w, r)
	if !ok {
		return
	}

	err := h.store.Cancel(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
		return
	case errors.Is(err, store.ErrInvalidState):
		response.Error(w, http.StatusConflict, "INVALID_STATE",
			"Job cannot be cancelled in current status", nil)
		return
	case err != nil:
		slog.Error("cancel job", "job_id", id, "error", err)
		response.Error(w, http.StatusInternalServerError, "CANCEL_FAILED", "Failed to cancel job", nil)
		return
	}

	slog.Info("job cancelled", "job_id", id)
	response.JSON(w, map[string]string{"message": "Job cancelled successfully"})
}

// Delete removes the job record, its stored artifacts, and its archive row.
func (h *Jobs) Delete(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := h.files.Remove(job.TranscriptionPath, job.DiaryNotePath); err != nil {
		slog.Warn("removing job artifacts", "job_id", job.ID, "error", err)
	}
	if h.archive != nil {
		if err := h.archive.Delete(r.Context(), job.ID); err != nil {
			slog.Warn("removing archive row", "job_id", job.ID, "error", err)
		}
	}
	if err := h.store.Delete(r.Context(), job.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Error("delete job", "job_id", job.ID, "error", err)
		response.Error(w, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete job", nil)
		return
	}

	slog.Info("job deleted", "job_id", job.ID)
	response.JSON(w, map[string]string{"message": "Job deleted successfully"})
}

// lookup parses the path id and fetches the job, writing the error response
// on failure.
func (h *Jobs) lookup(w http.ResponseWriter, r *http.Request) (*jobs.Job, bool) {
	id, ok := jobID(w, r)
	if !ok {
		return nil, false
	}

	job, err := h.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
		return nil, false
	}
	if err != nil {
		slog.Error("get job", "job_id", id, "error", err)
		response.Error(w, http.StatusInternalServerError, "GET_FAILED", "Failed to fetch job", nil)
		return nil, false
	}
	return job, true
}

func jobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid job id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func validAudioURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func intQuery(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
