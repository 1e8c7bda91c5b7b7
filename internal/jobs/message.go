package jobs

import (
	"time"

	"github.com/google/uuid"
)

// Stage queue channel names. One channel per pipeline stage; each channel
// has exactly one consumer role.
const (
	TranscriptionChannel = "transcription_queue"
	NotesChannel         = "notes_queue"
)

// TranscriptionTask is the envelope published by intake and consumed by the
// transcription worker.
type TranscriptionTask struct {
	JobID        uuid.UUID `json:"job_id"`
	AudioURL     string    `json:"audio_url"`
	WhisperModel string    `json:"whisper_model"`
	Priority     Priority  `json:"priority"`
	Timestamp    time.Time `json:"timestamp"`
}

// NoteTask is the envelope published by the transcription worker and
// consumed by the note-generation worker. Transcription may arrive inline
// or via its storage path when large.
type NoteTask struct {
	JobID             uuid.UUID `json:"job_id"`
	Transcription     string    `json:"transcription,omitempty"`
	TranscriptionPath string    `json:"transcription_path,omitempty"`
	Priority          Priority  `json:"priority"`
	Timestamp         time.Time `json:"timestamp"`
}
