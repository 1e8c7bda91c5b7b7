package handler

import (
	"net/http"

	"voicediary/internal/api/response"
	"voicediary/internal/jobs"
)

// Transcription returns a job's transcript once transcription has finished.
// Returns 409 while the transcript does not exist yet.
func (h *Jobs) Transcription(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if job.Status != jobs.StatusGeneratingNotes && job.Status != jobs.StatusCompleted {
		response.Error(w, http.StatusConflict, "INVALID_STATE",
			"Transcription not available in current status", map[string]string{
				"status": string(job.Status),
			})
		return
	}

	text := job.Transcription
	if text == "" && job.TranscriptionPath != "" {
		var err error
		text, err = h.files.Read(job.TranscriptionPath)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "ARTIFACT_READ_FAILED",
				"Failed to read transcription", nil)
			return
		}
	}

	response.JSON(w, map[string]any{
		"job_id":        job.ID,
		"transcription": text,
	})
}

// DiaryNote returns a job's generated diary note once the job completed.
func (h *Jobs) DiaryNote(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if job.Status != jobs.StatusCompleted {
		response.Error(w, http.StatusConflict, "INVALID_STATE",
			"Diary note not available in current status", map[string]string{
				"status": string(job.Status),
			})
		return
	}

	note := job.DiaryNote
	if note == "" && job.DiaryNotePath != "" {
		var err error
		note, err = h.files.Read(job.DiaryNotePath)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "ARTIFACT_READ_FAILED",
				"Failed to read diary note", nil)
			return
		}
	}

	response.JSON(w, map[string]any{
		"job_id":          job.ID,
		"diary_note":      note,
		"note_provenance": job.NoteProvenance,
	})
}
