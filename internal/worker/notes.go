package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"voicediary/internal/jobs"
	"voicediary/internal/llm"
	"voicediary/internal/storage"
	"voicediary/internal/store"
)

// NoteStage is the final pipeline stage: it turns a transcript into a diary
// note via the provider router and completes the job.
type NoteStage struct {
	store   store.Store
	files   *storage.FileStore
	router  *llm.Router
	timeout time.Duration
}

// NewNoteStage wires the note-generation stage handler. timeout bounds the
// whole router call for one job.
func NewNoteStage(st store.Store, files *storage.FileStore, router *llm.Router, timeout time.Duration) *NoteStage {
	return &NoteStage{store: st, files: files, router: router, timeout: timeout}
}

// Handle processes one NoteTask payload.
func (s *NoteStage) Handle(ctx context.Context, payload []byte) error {
	var task jobs.NoteTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("decode note task: %w", err)
	}

	log := slog.With("job_id", task.JobID)
	log.Info("note generation job received", "text_length", len(task.Transcription))

	if err := s.store.SetStatus(ctx, task.JobID, jobs.StatusGeneratingNotes, nil); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrNotFound) {
			log.Warn("skipping job", "error", err)
			return nil
		}
		return fmt.Errorf("mark generating_notes: %w", err)
	}

	transcription := task.Transcription
	if transcription == "" && task.TranscriptionPath != "" {
		var err error
		transcription, err = s.files.Read(task.TranscriptionPath)
		if err != nil {
			return s.fail(ctx, task.JobID, fmt.Errorf("read transcript: %w", err))
		}
	}
	if transcription == "" {
		return s.fail(ctx, task.JobID, fmt.Errorf("no transcription content available"))
	}

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	note, provenance := s.router.Generate(genCtx, DiaryPrompt(transcription), DiarySystemPrompt)
	log.Info("note generation completed",
		"duration_ms", time.Since(start).Milliseconds(),
		"provenance", provenance,
		"note_length", len(note))

	path, err := s.files.SaveDiaryNote(task.JobID, note)
	if err != nil {
		return s.fail(ctx, task.JobID, fmt.Errorf("persist diary note: %w", err))
	}

	err = s.store.SetStatus(ctx, task.JobID, jobs.StatusCompleted, map[string]string{
		jobs.FieldDiaryNote:      note,
		jobs.FieldDiaryNotePath:  path,
		jobs.FieldNoteProvenance: provenance,
	})
	if err != nil {
		return s.fail(ctx, task.JobID, fmt.Errorf("mark completed: %w", err))
	}

	log.Info("job completed")
	return nil
}

func (s *NoteStage) fail(ctx context.Context, id uuid.UUID, cause error) error {
	err := s.store.SetStatus(ctx, id, jobs.StatusFailed, map[string]string{
		jobs.FieldErrorMessage: cause.Error(),
	})
	if err != nil {
		slog.Error("marking job failed", "job_id", id, "error", err)
	}
	return cause
}
