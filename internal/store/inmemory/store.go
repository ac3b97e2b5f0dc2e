// Package inmemory holds mutex-guarded implementations of the store
// contracts. Data is lost on restart; use the bigquery package for
// persistence.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dcastellanos/extracto/internal/domain"
	"github.com/dcastellanos/extracto/internal/store"
)

// Store is an in-memory JobStore, safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*domain.ImportJob
}

var _ store.JobStore = (*Store)(nil)

// NewStore creates an empty in-memory job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*domain.ImportJob)}
}

func (s *Store) CreateJob(_ context.Context, job *domain.ImportJob) error {
	if job.ID == "" {
		return fmt.Errorf("CreateJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("CreateJob: job %s already exists", job.ID)
	}

	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*domain.ImportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *Store) ListJobs(_ context.Context, userID string, limit int) ([]*domain.ImportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.ImportJob
	for _, job := range s.jobs {
		if userID != "" && job.UserID != userID {
			continue
		}
		cp := *job
		out = append(out, &cp)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Transition(_ context.Context, id string, from, to domain.JobStatus, upd store.JobUpdate) (*domain.ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if job.Status != from {
		return nil, store.ErrStatusConflict
	}
	if !domain.ValidTransition(from, to) {
		return nil, fmt.Errorf("Transition: %s -> %s is not a valid move", from, to)
	}

	job.Status = to
	if p := domain.ProgressFor(to); p > job.Progress {
		job.Progress = p
	}
	if upd.Error != "" {
		job.Error = upd.Error
	}
	if upd.Result != nil {
		job.Result = upd.Result
	}
	if upd.Stage != nil {
		job.Stage = upd.Stage
	}
	if upd.ClearStage {
		job.Stage = nil
	}
	job.UpdatedAt = time.Now()

	cp := *job
	return &cp, nil
}

// Ledger is an in-memory LedgerWriter that records committed results.
type Ledger struct {
	mu        sync.Mutex
	committed map[string]*domain.ExtractionResult
}

var _ store.LedgerWriter = (*Ledger)(nil)

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{committed: make(map[string]*domain.ExtractionResult)}
}

func (l *Ledger) Commit(_ context.Context, job *domain.ImportJob) (int, int, error) {
	if job.Result == nil {
		return 0, 0, fmt.Errorf("Commit: job %s has no result", job.ID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.committed[job.ID] = job.Result
	return len(job.Result.Accounts), len(job.Result.Transactions), nil
}

// Committed returns the result committed for a job, or nil.
func (l *Ledger) Committed(jobID string) *domain.ExtractionResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.committed[jobID]
}
