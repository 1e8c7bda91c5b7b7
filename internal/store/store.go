// Package store holds the job status store, the single source of truth for
// job state, and the Postgres archive of terminal jobs.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"voicediary/internal/jobs"
)

var (
	ErrNotFound          = errors.New("job not found")
	ErrAlreadyExists     = errors.New("job already exists")
	ErrInvalidTransition = errors.New("illegal status transition")
	ErrInvalidState      = errors.New("operation not allowed in current status")
)

// Store is the status-store interface. All job state reads and writes go
// through here; workers mutate records via field-merging SetStatus calls,
// never full replacement, so concurrent partial updates from different
// stages cannot clobber each other's fields.
type Store interface {
	// Create stores a new job record. Returns ErrAlreadyExists if the id is
	// already taken.
	Create(ctx context.Context, job *jobs.Job) error
	// Get returns the full merged record, or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*jobs.Job, error)
	// SetStatus merges extra into the record and overwrites status and
	// updated_at. The transition is validated against the forward-only
	// lifecycle graph; illegal moves return ErrInvalidTransition.
	SetStatus(ctx context.Context, id uuid.UUID, status jobs.Status, extra map[string]string) error
	// Cancel marks a job cancelled. Legal only while the job is pending or
	// downloading; otherwise ErrInvalidState. Advisory: an in-flight worker
	// is not interrupted, it observes the flag before publishing onward.
	Cancel(ctx context.Context, id uuid.UUID) error
	// Delete removes the record. Irreversible.
	Delete(ctx context.Context, id uuid.UUID) error
	Ping(ctx context.Context) error
}
