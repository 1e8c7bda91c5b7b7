// Package jobs contains the job lifecycle model shared by the API and the
// pipeline workers.
package jobs

import (
	"time"

	"github.com/google/uuid"
)

// Priority affects the ETA reported to clients, not queue ordering.
type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ValidPriority reports whether p is a known priority value.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ETA returns the client-visible completion estimate for a priority.
func (p Priority) ETA() time.Duration {
	switch p {
	case PriorityUrgent:
		return 5 * time.Minute
	case PriorityHigh:
		return 15 * time.Minute
	case PriorityLow:
		return 60 * time.Minute
	default:
		return 30 * time.Minute
	}
}

// Field names of the job record in the status store. Workers merge partial
// updates keyed by these names; no worker ever replaces a whole record.
const (
	FieldStatus            = "status"
	FieldPriority          = "priority"
	FieldAudioURL          = "audio_url"
	FieldWhisperModel      = "whisper_model"
	FieldTranscription     = "transcription"
	FieldTranscriptionPath = "transcription_path"
	FieldDiaryNote         = "diary_note"
	FieldDiaryNotePath     = "diary_note_path"
	FieldNoteProvenance    = "note_provenance"
	FieldAudioHash         = "audio_hash"
	FieldErrorMessage      = "error_message"
	FieldCreatedAt         = "created_at"
	FieldUpdatedAt         = "updated_at"
)

// Job is the full status record for one unit of work.
type Job struct {
	ID                uuid.UUID `json:"job_id"`
	Status            Status    `json:"status"`
	Priority          Priority  `json:"priority"`
	AudioURL          string    `json:"audio_url"`
	WhisperModel      string    `json:"whisper_model,omitempty"`
	Transcription     string    `json:"transcription,omitempty"`
	TranscriptionPath string    `json:"transcription_path,omitempty"`
	DiaryNote         string    `json:"diary_note,omitempty"`
	DiaryNotePath     string    `json:"diary_note_path,omitempty"`
	NoteProvenance    string    `json:"note_provenance,omitempty"`
	AudioHash         string    `json:"audio_hash,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewJob creates a pending job for the given audio URL.
func NewJob(audioURL string, priority Priority, whisperModel string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:           uuid.New(),
		Status:       StatusPending,
		Priority:     priority,
		AudioURL:     audioURL,
		WhisperModel: whisperModel,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
