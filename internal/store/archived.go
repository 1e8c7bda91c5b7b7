package store

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"voicediary/internal/jobs"
)

// archivedStore decorates a Store so that every write of a terminal status
// also lands a row in the archive. Workers and the API wrap their store
// with this, making archival happen where the terminal transition happens
// instead of waiting for someone to read the job back.
type archivedStore struct {
	Store
	archive Archive
}

// WithArchive returns s decorated to mirror terminal jobs into archive.
// Archival is best effort: an archive failure is logged and does not fail
// the status write. A nil archive returns s unchanged.
func WithArchive(s Store, archive Archive) Store {
	if archive == nil {
		return s
	}
	return &archivedStore{Store: s, archive: archive}
}

func (s *archivedStore) SetStatus(ctx context.Context, id uuid.UUID, status jobs.Status, extra map[string]string) error {
	if err := s.Store.SetStatus(ctx, id, status, extra); err != nil {
		return err
	}
	if jobs.Terminal(status) {
		s.record(ctx, id)
	}
	return nil
}

func (s *archivedStore) Cancel(ctx context.Context, id uuid.UUID) error {
	if err := s.Store.Cancel(ctx, id); err != nil {
		return err
	}
	s.record(ctx, id)
	return nil
}

// record snapshots the merged job and upserts its archive row.
func (s *archivedStore) record(ctx context.Context, id uuid.UUID) {
	job, err := s.Store.Get(ctx, id)
	if err != nil {
		slog.Warn("re-read job for archival", "job_id", id, "error", err)
		return
	}
	if err := s.archive.Record(ctx, job); err != nil {
		slog.Warn("archiving terminal job", "job_id", id, "error", err)
	}
}
