// Package store defines the persistence contracts for import jobs and the
// permanent ledger. Implementations live in subpackages: bigquery for
// production, inmemory for local mode and tests.
package store

import (
	"context"
	"errors"

	"github.com/dcastellanos/extracto/internal/domain"
)

var (
	// ErrNotFound is returned when no job exists with the given ID.
	ErrNotFound = errors.New("store: job not found")

	// ErrStatusConflict is returned when a Transition's expected current
	// status no longer matches the persisted one. The caller lost the race
	// and must re-read before deciding anything.
	ErrStatusConflict = errors.New("store: job status conflict")
)

// JobUpdate carries the optional fields written together with a status
// transition. Nil / zero fields leave the persisted value untouched.
type JobUpdate struct {
	// Error is the user-facing failure message, set when non-empty.
	Error string

	// Result attaches the reviewed extraction output.
	Result *domain.ExtractionResult

	// Stage replaces the persisted intermediate payload when non-nil.
	Stage *domain.StagePayload

	// ClearStage drops the persisted intermediate payload.
	ClearStage bool
}

// JobStore persists import jobs. Transition is the only mutation path after
// creation; it compare-and-swaps on the expected current status so concurrent
// workers and user actions can never double-apply a stage.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.ImportJob) error
	GetJob(ctx context.Context, id string) (*domain.ImportJob, error)
	ListJobs(ctx context.Context, userID string, limit int) ([]*domain.ImportJob, error)

	// Transition moves the job from one status to another, applying upd
	// atomically with the status change. Progress is derived from the target
	// status and never decreases. Returns ErrStatusConflict when the job is
	// not currently in the from status.
	Transition(ctx context.Context, id string, from, to domain.JobStatus, upd JobUpdate) (*domain.ImportJob, error)
}

// LedgerWriter commits a confirmed job's accounts and transactions to
// permanent storage. It reports how many of each were written.
type LedgerWriter interface {
	Commit(ctx context.Context, job *domain.ImportJob) (accounts, transactions int, err error)
}
