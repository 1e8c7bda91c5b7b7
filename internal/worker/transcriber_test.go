package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicediary/internal/cache"
	"voicediary/internal/jobs"
	"voicediary/internal/storage"
	"voicediary/internal/worker"
)

func newTranscribeFixture(t *testing.T, st *memStore, ca *memCache, dl *stubDownloader, tr *stubTranscriber) (*worker.TranscribeStage, *recordQueue, *storage.FileStore) {
	t.Helper()
	files, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	q := &recordQueue{receivers: 1}
	stage := worker.NewTranscribeStage(st, ca, q, files, dl, tr, time.Hour)
	return stage, q, files
}

func taskPayload(t *testing.T, job *jobs.Job) []byte {
	t.Helper()
	body, err := json.Marshal(jobs.TranscriptionTask{
		JobID:        job.ID,
		AudioURL:     job.AudioURL,
		WhisperModel: job.WhisperModel,
		Priority:     job.Priority,
		Timestamp:    time.Now().UTC(),
	})
	require.NoError(t, err)
	return body
}

func TestTranscribeStage_Success(t *testing.T) {
	job := jobs.NewJob("https://example.com/a.ogg", jobs.PriorityMedium, "")
	st := newMemStore(job)
	ca := newMemCache()
	tr := &stubTranscriber{text: "today was a good day"}
	stage, q, files := newTranscribeFixture(t, st, ca, &stubDownloader{audio: []byte("audio-bytes")}, tr)

	require.NoError(t, stage.Handle(context.Background(), taskPayload(t, job)))

	got := st.mustGet(job.ID)
	assert.Equal(t, jobs.StatusTranscribing, got.Status)
	assert.Equal(t, "today was a good day", got.Transcription)
	assert.NotEmpty(t, got.TranscriptionPath)
	assert.Equal(t, cache.HashBytes([]byte("audio-bytes")), got.AudioHash)

	text, err := files.Read(got.TranscriptionPath)
	require.NoError(t, err)
	assert.Equal(t, "today was a good day", text)

	// Transcript is cached for dedup.
	cached, hit, err := ca.Lookup(context.Background(), got.AudioHash)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "today was a good day", cached)

	// Job forwarded to the notes channel.
	require.Len(t, q.published, 1)
	assert.Equal(t, jobs.NotesChannel, q.published[0].channel)
	var note jobs.NoteTask
	require.NoError(t, json.Unmarshal(q.published[0].payload, &note))
	assert.Equal(t, job.ID, note.JobID)
	assert.Equal(t, "today was a good day", note.Transcription)
	assert.Equal(t, got.TranscriptionPath, note.TranscriptionPath)
}

func TestTranscribeStage_CacheHitSkipsTranscription(t *testing.T) {
	job := jobs.NewJob("https://example.com/a.ogg", jobs.PriorityHigh, "")
	st := newMemStore(job)
	ca := newMemCache()
	audio := []byte("previously seen audio")
	require.NoError(t, ca.Store(context.Background(), cache.HashBytes(audio), "cached transcript", time.Hour))

	tr := &stubTranscriber{text: "should not be called"}
	stage, q, _ := newTranscribeFixture(t, st, ca, &stubDownloader{audio: audio}, tr)

	require.NoError(t, stage.Handle(context.Background(), taskPayload(t, job)))

	assert.Equal(t, 0, tr.callCount())
	got := st.mustGet(job.ID)
	assert.Equal(t, "cached transcript", got.Transcription)
	require.Len(t, q.published, 1)
}

func TestTranscribeStage_CacheErrorDegradesToMiss(t *testing.T) {
	job := jobs.NewJob("https://example.com/a.ogg", jobs.PriorityMedium, "")
	st := newMemStore(job)
	ca := newMemCache()
	ca.lookupErr = errors.New("redis down")

	tr := &stubTranscriber{text: "fresh transcript"}
	stage, _, _ := newTranscribeFixture(t, st, ca, &stubDownloader{audio: []byte("audio")}, tr)

	require.NoError(t, stage.Handle(context.Background(), taskPayload(t, job)))

	assert.Equal(t, 1, tr.callCount())
	assert.Equal(t, "fresh transcript", st.mustGet(job.ID).Transcription)
}

func TestTranscribeStage_DownloadFailureMarksFailed(t *testing.T) {
	job := jobs.NewJob("https://example.com/a.ogg", jobs.PriorityMedium, "")
	st := newMemStore(job)
	stage, q, _ := newTranscribeFixture(t, st, newMemCache(),
		&stubDownloader{err: errors.New("connection refused")}, &stubTranscriber{})

	err := stage.Handle(context.Background(), taskPayload(t, job))
	require.Error(t, err)

	got := st.mustGet(job.ID)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "connection refused")
	assert.Empty(t, q.published)
}

func TestTranscribeStage_TranscribeFailureMarksFailed(t *testing.T) {
	job := jobs.NewJob("https://example.com/a.ogg", jobs.PriorityMedium, "")
	st := newMemStore(job)
	stage, q, _ := newTranscribeFixture(t, st, newMemCache(),
		&stubDownloader{audio: []byte("audio")}, &stubTranscriber{err: errors.New("model load failed")})

	err := stage.Handle(context.Background(), taskPayload(t, job))
	require.Error(t, err)

	got := st.mustGet(job.ID)
	assert.Equal(t, jobs.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "model load failed")
	assert.Empty(t, q.published)
}

func TestTranscribeStage_DuplicateDeliverySkipped(t *testing.T) {
	job := jobs.NewJob("https://example.com/a.ogg", jobs.PriorityMedium, "")
	job.Status = jobs.StatusCompleted
	st := newMemStore(job)
	stage, q, _ := newTranscribeFixture(t, st, newMemCache(),
		&stubDownloader{audio: []byte("audio")}, &stubTranscriber{text: "x"})

	// Terminal job: the in-progress transition fails and the message is
	// dropped without error.
	require.NoError(t, stage.Handle(context.Background(), taskPayload(t, job)))

	assert.Equal(t, jobs.StatusCompleted, st.mustGet(job.ID).Status)
	assert.Empty(t, q.published)
}

func TestTranscribeStage_UnknownJobSkipped(t *testing.T) {
	job := jobs.NewJob("https://example.com/a.ogg", jobs.PriorityMedium, "")
	st := newMemStore() // job never created
	stage, q, _ := newTranscribeFixture(t, st, newMemCache(),
		&stubDownloader{audio: []byte("audio")}, &stubTranscriber{text: "x"})

	require.NoError(t, stage.Handle(context.Background(), taskPayload(t, job)))
	assert.Empty(t, q.published)
}

func TestTranscribeStage_CancelledJobNotForwarded(t *testing.T) {
	job := jobs.NewJob("https://example.com/a.ogg", jobs.PriorityMedium, "")
	st := newMemStore(job)
	// Simulate a cancel landing right after the transcript is recorded.
	st.afterSet = func(j *jobs.Job, extra map[string]string) {
		if _, ok := extra[jobs.FieldTranscription]; ok {
			j.Status = jobs.StatusCancelled
		}
	}
	stage, q, _ := newTranscribeFixture(t, st, newMemCache(),
		&stubDownloader{audio: []byte("audio")}, &stubTranscriber{text: "x"})

	require.NoError(t, stage.Handle(context.Background(), taskPayload(t, job)))
	assert.Empty(t, q.published)
}

func TestTranscribeStage_MalformedPayloadDropped(t *testing.T) {
	stage, q, _ := newTranscribeFixture(t, newMemStore(), newMemCache(),
		&stubDownloader{}, &stubTranscriber{})

	err := stage.Handle(context.Background(), []byte("{not json"))
	require.Error(t, err)
	assert.Empty(t, q.published)
}

func TestTranscribeStage_DuplicateAudioSharesTranscript(t *testing.T) {
	audio := []byte("the same recording submitted twice")
	first := jobs.NewJob("https://example.com/a.ogg", jobs.PriorityMedium, "")
	second := jobs.NewJob("https://example.com/b.ogg", jobs.PriorityMedium, "")
	st := newMemStore(first, second)
	ca := newMemCache()
	tr := &stubTranscriber{text: "same words"}
	stage, q, _ := newTranscribeFixture(t, st, ca, &stubDownloader{audio: audio}, tr)

	require.NoError(t, stage.Handle(context.Background(), taskPayload(t, first)))
	require.NoError(t, stage.Handle(context.Background(), taskPayload(t, second)))

	// The model ran once; the second job reused the cached transcript.
	assert.Equal(t, 1, tr.callCount())

	a, b := st.mustGet(first.ID), st.mustGet(second.ID)
	assert.Equal(t, "same words", a.Transcription)
	assert.Equal(t, a.Transcription, b.Transcription)
	assert.Equal(t, a.AudioHash, b.AudioHash)
	assert.NotEqual(t, a.TranscriptionPath, b.TranscriptionPath)

	// One cache entry for the shared hash, both jobs forwarded.
	assert.Equal(t, 1, ca.size())
	assert.Len(t, q.published, 2)
}
