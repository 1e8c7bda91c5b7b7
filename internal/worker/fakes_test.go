package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"voicediary/internal/jobs"
	"voicediary/internal/queue"
	"voicediary/internal/store"
)

// memStore is an in-memory store.Store with the same transition rules as
// the Redis implementation.
type memStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*jobs.Job
	// afterSet, when non-nil, runs on the record after each successful
	// SetStatus. Used to inject races like a cancel landing mid-stage.
	afterSet func(j *jobs.Job, extra map[string]string)
}

func newMemStore(seed ...*jobs.Job) *memStore {
	s := &memStore{jobs: make(map[uuid.UUID]*jobs.Job)}
	for _, j := range seed {
		cp := *j
		s.jobs[j.ID] = &cp
	}
	return s
}

func (s *memStore) Create(ctx context.Context, job *jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return store.ErrAlreadyExists
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memStore) Get(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *memStore) SetStatus(ctx context.Context, id uuid.UUID, status jobs.Status, extra map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if !jobs.CanTransition(j.Status, status) {
		return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, j.Status, status)
	}
	j.Status = status
	for k, v := range extra {
		switch k {
		case jobs.FieldTranscription:
			j.Transcription = v
		case jobs.FieldTranscriptionPath:
			j.TranscriptionPath = v
		case jobs.FieldAudioHash:
			j.AudioHash = v
		case jobs.FieldDiaryNote:
			j.DiaryNote = v
		case jobs.FieldDiaryNotePath:
			j.DiaryNotePath = v
		case jobs.FieldNoteProvenance:
			j.NoteProvenance = v
		case jobs.FieldErrorMessage:
			j.ErrorMessage = v
		}
	}
	j.UpdatedAt = time.Now().UTC()
	if s.afterSet != nil {
		s.afterSet(j, extra)
	}
	return nil
}

func (s *memStore) Cancel(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if !jobs.Cancellable(j.Status) {
		return fmt.Errorf("%w: status %s", store.ErrInvalidState, j.Status)
	}
	j.Status = jobs.StatusCancelled
	j.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.jobs, id)
	return nil
}

func (s *memStore) Ping(ctx context.Context) error { return nil }

func (s *memStore) mustGet(id uuid.UUID) *jobs.Job {
	j, err := s.Get(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return j
}

// memCache is an in-memory TranscriptCache. TTLs are ignored.
type memCache struct {
	mu        sync.Mutex
	entries   map[string]string
	lookupErr error
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]string)}
}

func (c *memCache) Lookup(ctx context.Context, hash string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lookupErr != nil {
		return "", false, c.lookupErr
	}
	v, ok := c.entries[hash]
	return v, ok, nil
}

func (c *memCache) Store(ctx context.Context, hash, transcript string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[hash] = transcript
	return nil
}

func (c *memCache) Ping(ctx context.Context) error { return nil }

func (c *memCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// memArchive is an in-memory store.Archive capturing Record calls.
type memArchive struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*jobs.Job
}

func newMemArchive() *memArchive {
	return &memArchive{rows: make(map[uuid.UUID]*jobs.Job)}
}

func (a *memArchive) Record(ctx context.Context, job *jobs.Job) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := *job
	a.rows[job.ID] = &cp
	return nil
}

func (a *memArchive) Get(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	j, ok := a.rows[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (a *memArchive) List(ctx context.Context, filter store.ArchiveFilter) ([]*jobs.Job, int, error) {
	return nil, 0, nil
}

func (a *memArchive) Delete(ctx context.Context, id uuid.UUID) error { return nil }
func (a *memArchive) Ping(ctx context.Context) error                 { return nil }

// recordQueue captures publishes. receivers is returned from Publish.
type recordQueue struct {
	mu        sync.Mutex
	published []publishedMsg
	receivers int64
}

type publishedMsg struct {
	channel string
	payload []byte
}

func (q *recordQueue) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, publishedMsg{channel: channel, payload: payload})
	return q.receivers, nil
}

func (q *recordQueue) Subscribe(ctx context.Context, channel string) (queue.Subscription, error) {
	return nil, errors.New("not implemented")
}

type stubDownloader struct {
	audio []byte
	err   error
}

func (d *stubDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	return d.audio, d.err
}

type stubTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (t *stubTranscriber) Transcribe(ctx context.Context, audio []byte, model string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.err != nil {
		return "", t.err
	}
	return t.text, nil
}

func (t *stubTranscriber) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}
