package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"voicediary/internal/jobs"
)

// Archive is the durable record of jobs that reached a terminal status.
// The live status store expires with Redis; the archive backs job listing
// and survives restarts.
type Archive interface {
	// Record upserts the archive row for a terminal job. Idempotent.
	Record(ctx context.Context, job *jobs.Job) error
	Get(ctx context.Context, id uuid.UUID) (*jobs.Job, error)
	List(ctx context.Context, filter ArchiveFilter) ([]*jobs.Job, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
}

// ArchiveFilter narrows and pages List results.
type ArchiveFilter struct {
	Status jobs.Status
	Page   int
	Limit  int
}

// PostgresArchive implements Archive using pgx/v5.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

// NewPostgresArchive creates a new PostgresArchive.
func NewPostgresArchive(pool *pgxpool.Pool) *PostgresArchive {
	return &PostgresArchive{pool: pool}
}

func (a *PostgresArchive) Ping(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

func (a *PostgresArchive) Record(ctx context.Context, job *jobs.Job) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO jobs (id, status, priority, audio_url, audio_hash,
		                   transcription_path, diary_note_path, note_provenance,
		                   error_message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (id) DO UPDATE SET
		   status = EXCLUDED.status,
		   audio_hash = EXCLUDED.audio_hash,
		   transcription_path = EXCLUDED.transcription_path,
		   diary_note_path = EXCLUDED.diary_note_path,
		   note_provenance = EXCLUDED.note_provenance,
		   error_message = EXCLUDED.error_message,
		   updated_at = EXCLUDED.updated_at`,
		job.ID, job.Status, job.Priority, job.AudioURL, job.AudioHash,
		job.TranscriptionPath, job.DiaryNotePath, job.NoteProvenance,
		job.ErrorMessage, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	return nil
}

func (a *PostgresArchive) Get(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	var j jobs.Job
	err := a.pool.QueryRow(ctx,
		`SELECT id, status, priority, audio_url, audio_hash, transcription_path,
		        diary_note_path, note_provenance, error_message, created_at, updated_at
		 FROM jobs WHERE id = $1`, id,
	).Scan(&j.ID, &j.Status, &j.Priority, &j.AudioURL, &j.AudioHash, &j.TranscriptionPath,
		&j.DiaryNotePath, &j.NoteProvenance, &j.ErrorMessage, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get archived job: %w", err)
	}
	return &j, nil
}

func (a *PostgresArchive) List(ctx context.Context, filter ArchiveFilter) ([]*jobs.Job, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	where := ""
	args := []any{}
	if filter.Status != "" {
		where = "WHERE status = $1"
		args = append(args, filter.Status)
	}

	var total int
	if err := a.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM jobs %s`, where), args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count archived jobs: %w", err)
	}

	offset := (filter.Page - 1) * filter.Limit
	query := fmt.Sprintf(
		`SELECT id, status, priority, audio_url, audio_hash, transcription_path,
		        diary_note_path, note_provenance, error_message, created_at, updated_at
		 FROM jobs %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, offset)

	rows, err := a.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list archived jobs: %w", err)
	}
	defer rows.Close()

	var out []*jobs.Job
	for rows.Next() {
		var j jobs.Job
		if err := rows.Scan(&j.ID, &j.Status, &j.Priority, &j.AudioURL, &j.AudioHash,
			&j.TranscriptionPath, &j.DiaryNotePath, &j.NoteProvenance, &j.ErrorMessage,
			&j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan archived job: %w", err)
		}
		out = append(out, &j)
	}
	return out, total, rows.Err()
}

func (a *PostgresArchive) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := a.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete archived job: %w", err)
	}
	return nil
}

var _ Archive = (*PostgresArchive)(nil)
