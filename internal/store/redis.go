package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"voicediary/internal/jobs"
)

// txRetries bounds optimistic-lock retries on concurrent status writes.
const txRetries = 3

// RedisStore implements Store with one Redis hash per job. Field merges map
// directly onto HSET, which updates only the named fields of the hash.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore from a Redis URL.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// NewRedisStoreFromClient wraps an existing client, sharing its connection
// pool with the queue and cache.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func jobKey(id uuid.UUID) string {
	return fmt.Sprintf("job:%s", id)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Create(ctx context.Context, job *jobs.Job) error {
	key := jobKey(job.ID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check job exists: %w", err)
	}
	if exists > 0 {
		return ErrAlreadyExists
	}

	if err := s.client.HSet(ctx, key, jobToFields(job)).Err(); err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	fields, err := s.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return jobFromFields(id, fields), nil
}

// SetStatus validates the transition and merges fields inside a WATCH
// transaction, so two workers racing on the same record (broadcast fan-out
// duplicates) cannot interleave read-validate-write.
func (s *RedisStore) SetStatus(ctx context.Context, id uuid.UUID, status jobs.Status, extra map[string]string) error {
	key := jobKey(id)

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, jobs.FieldStatus).Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read current status: %w", err)
		}
		if !jobs.CanTransition(jobs.Status(current), status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
		}

		fields := make(map[string]string, len(extra)+2)
		for k, v := range extra {
			fields[k] = v
		}
		fields[jobs.FieldStatus] = string(status)
		fields[jobs.FieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339Nano)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < txRetries; i++ {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("set status: transaction contention: %w", err)
}

func (s *RedisStore) Cancel(ctx context.Context, id uuid.UUID) error {
	key := jobKey(id)

	txf := func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, jobs.FieldStatus).Result()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("read current status: %w", err)
		}
		if !jobs.Cancellable(jobs.Status(current)) {
			return fmt.Errorf("%w: cannot cancel %s job", ErrInvalidState, current)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, map[string]string{
				jobs.FieldStatus:    string(jobs.StatusCancelled),
				jobs.FieldUpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
			})
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < txRetries; i++ {
		err = s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("cancel: transaction contention: %w", err)
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.client.Del(ctx, jobKey(id)).Result()
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}

func jobToFields(job *jobs.Job) map[string]string {
	fields := map[string]string{
		jobs.FieldStatus:    string(job.Status),
		jobs.FieldPriority:  string(job.Priority),
		jobs.FieldAudioURL:  job.AudioURL,
		jobs.FieldCreatedAt: job.CreatedAt.UTC().Format(time.RFC3339Nano),
		jobs.FieldUpdatedAt: job.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if job.WhisperModel != "" {
		fields[jobs.FieldWhisperModel] = job.WhisperModel
	}
	return fields
}

func jobFromFields(id uuid.UUID, fields map[string]string) *jobs.Job {
	job := &jobs.Job{
		ID:                id,
		Status:            jobs.Status(fields[jobs.FieldStatus]),
		Priority:          jobs.Priority(fields[jobs.FieldPriority]),
		AudioURL:          fields[jobs.FieldAudioURL],
		WhisperModel:      fields[jobs.FieldWhisperModel],
		Transcription:     fields[jobs.FieldTranscription],
		TranscriptionPath: fields[jobs.FieldTranscriptionPath],
		DiaryNote:         fields[jobs.FieldDiaryNote],
		DiaryNotePath:     fields[jobs.FieldDiaryNotePath],
		NoteProvenance:    fields[jobs.FieldNoteProvenance],
		AudioHash:         fields[jobs.FieldAudioHash],
		ErrorMessage:      fields[jobs.FieldErrorMessage],
	}
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields[jobs.FieldCreatedAt])
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields[jobs.FieldUpdatedAt])
	return job
}

var _ Store = (*RedisStore)(nil)
