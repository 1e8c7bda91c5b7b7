package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"voicediary/internal/cache"
	"voicediary/internal/jobs"
	"voicediary/internal/queue"
	"voicediary/internal/storage"
	"voicediary/internal/store"
	"voicediary/internal/transcribe"
)

// TranscribeStage handles stage 1+2 of the pipeline: download the audio,
// dedup-check by content hash, transcribe on miss, persist the transcript,
// and forward the job to the notes queue.
type TranscribeStage struct {
	store       store.Store
	cache       cache.TranscriptCache
	queue       queue.Queue
	files       *storage.FileStore
	downloader  transcribe.Downloader
	transcriber transcribe.Transcriber
	cacheTTL    time.Duration
}

// NewTranscribeStage wires the transcription stage handler.
func NewTranscribeStage(
	st store.Store,
	ca cache.TranscriptCache,
	q queue.Queue,
	files *storage.FileStore,
	dl transcribe.Downloader,
	tr transcribe.Transcriber,
	cacheTTL time.Duration,
) *TranscribeStage {
	return &TranscribeStage{
		store:       st,
		cache:       ca,
		queue:       q,
		files:       files,
		downloader:  dl,
		transcriber: tr,
		cacheTTL:    cacheTTL,
	}
}

// Handle processes one TranscriptionTask payload.
func (s *TranscribeStage) Handle(ctx context.Context, payload []byte) error {
	var task jobs.TranscriptionTask
	if err := json.Unmarshal(payload, &task); err != nil {
		// No job id to fail; the message is malformed and dropped.
		return fmt.Errorf("decode transcription task: %w", err)
	}

	log := slog.With("job_id", task.JobID)
	log.Info("transcription job received", "priority", task.Priority)

	// Optimistic in-progress transition. A duplicate delivery or an already
	// cancelled job fails here and is skipped without touching the record.
	if err := s.store.SetStatus(ctx, task.JobID, jobs.StatusDownloading, nil); err != nil {
		if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrNotFound) {
			log.Warn("skipping job", "error", err)
			return nil
		}
		return fmt.Errorf("mark downloading: %w", err)
	}

	audio, err := s.downloader.Download(ctx, task.AudioURL)
	if err != nil {
		return s.fail(ctx, task.JobID, fmt.Errorf("download audio: %w", err))
	}

	hash := cache.HashBytes(audio)
	log = log.With("audio_hash", hash)

	text, hit, err := s.cache.Lookup(ctx, hash)
	if err != nil {
		// Cache trouble degrades to a miss.
		log.Warn("cache lookup failed", "error", err)
		hit = false
	}

	if hit {
		log.Info("transcript cache hit, skipping transcription")
	} else {
		if err := s.store.SetStatus(ctx, task.JobID, jobs.StatusTranscribing, nil); err != nil {
			return s.fail(ctx, task.JobID, fmt.Errorf("mark transcribing: %w", err))
		}

		start := time.Now()
		text, err = s.transcriber.Transcribe(ctx, audio, task.WhisperModel)
		if err != nil {
			return s.fail(ctx, task.JobID, fmt.Errorf("transcribe audio: %w", err))
		}
		log.Info("transcription completed",
			"duration_ms", time.Since(start).Milliseconds(), "text_length", len(text))

		if err := s.cache.Store(ctx, hash, text, s.cacheTTL); err != nil {
			log.Warn("caching transcript failed", "error", err)
		}
	}

	path, err := s.files.SaveTranscription(task.JobID, text)
	if err != nil {
		return s.fail(ctx, task.JobID, fmt.Errorf("persist transcript: %w", err))
	}

	err = s.store.SetStatus(ctx, task.JobID, jobs.StatusTranscribing, map[string]string{
		jobs.FieldTranscription:     text,
		jobs.FieldTranscriptionPath: path,
		jobs.FieldAudioHash:         hash,
	})
	if err != nil {
		return s.fail(ctx, task.JobID, fmt.Errorf("record transcript: %w", err))
	}

	// Advisory cancellation check: a job cancelled while we worked is not
	// forwarded. Best-effort; cancellation racing this read may still slip
	// through to the next stage's own transition check.
	current, err := s.store.Get(ctx, task.JobID)
	if err != nil {
		return s.fail(ctx, task.JobID, fmt.Errorf("re-read job: %w", err))
	}
	if current.Status == jobs.StatusCancelled {
		log.Info("job cancelled during transcription, not forwarding")
		return nil
	}

	note := jobs.NoteTask{
		JobID:             task.JobID,
		Transcription:     text,
		TranscriptionPath: path,
		Priority:          task.Priority,
		Timestamp:         time.Now().UTC(),
	}
	body, err := json.Marshal(note)
	if err != nil {
		return s.fail(ctx, task.JobID, fmt.Errorf("encode note task: %w", err))
	}

	receivers, err := s.queue.Publish(ctx, jobs.NotesChannel, body)
	if err != nil {
		return s.fail(ctx, task.JobID, fmt.Errorf("publish note task: %w", err))
	}
	if receivers == 0 {
		log.Warn("no note workers subscribed, message lost", "channel", jobs.NotesChannel)
	}

	log.Info("job forwarded to note generation")
	return nil
}

// fail marks the job failed with the error message; the original error is
// returned for the loop's log line.
func (s *TranscribeStage) fail(ctx context.Context, id uuid.UUID, cause error) error {
	err := s.store.SetStatus(ctx, id, jobs.StatusFailed, map[string]string{
		jobs.FieldErrorMessage: cause.Error(),
	})
	if err != nil {
		slog.Error("marking job failed", "job_id", id, "error", err)
	}
	return cause
}
