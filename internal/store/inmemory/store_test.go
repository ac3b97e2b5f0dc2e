package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcastellanos/extracto/internal/domain"
	"github.com/dcastellanos/extracto/internal/store"
)

func newJob(id string) *domain.ImportJob {
	return &domain.ImportJob{
		ID:        id,
		UserID:    "user-1",
		FileKey:   "uploads/2024/01/01/" + id + ".pdf",
		FileName:  "extracto.pdf",
		MimeType:  "application/pdf",
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
	}
}

func TestCreateAndGetReturnsCopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.CreateJob(ctx, newJob("j1")))

	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)

	// Mutating the returned copy must not leak into the store.
	got.Status = domain.StatusFailed
	again, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, again.Status)
}

func TestGetMissing(t *testing.T) {
	_, err := NewStore().GetJob(context.Background(), "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateDuplicate(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.CreateJob(ctx, newJob("j1")))
	assert.Error(t, s.CreateJob(ctx, newJob("j1")))
}

func TestTransitionCAS(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.CreateJob(ctx, newJob("j1")))

	job, err := s.Transition(ctx, "j1", domain.StatusPending, domain.StatusProcessing, store.JobUpdate{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, job.Status)
	assert.Equal(t, 10, job.Progress)

	// A second worker expecting PENDING loses the race.
	_, err = s.Transition(ctx, "j1", domain.StatusPending, domain.StatusProcessing, store.JobUpdate{})
	assert.ErrorIs(t, err, store.ErrStatusConflict)
}

func TestTransitionRejectsSkips(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.CreateJob(ctx, newJob("j1")))

	_, err := s.Transition(ctx, "j1", domain.StatusPending, domain.StatusReview, store.JobUpdate{})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrStatusConflict)
}

func TestTransitionProgressMonotonic(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.CreateJob(ctx, newJob("j1")))

	statuses := []domain.JobStatus{
		domain.StatusProcessing, domain.StatusParsing, domain.StatusCategorizing, domain.StatusReview,
	}
	prev := domain.StatusPending
	lastProgress := 0
	for _, next := range statuses {
		job, err := s.Transition(ctx, "j1", prev, next, store.JobUpdate{})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, job.Progress, lastProgress)
		lastProgress = job.Progress
		prev = next
	}

	// Cancellation from REVIEW keeps progress where it was.
	job, err := s.Transition(ctx, "j1", domain.StatusReview, domain.StatusCancelled, store.JobUpdate{})
	require.NoError(t, err)
	assert.Equal(t, lastProgress, job.Progress)
}

func TestTransitionTerminalImmutable(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.CreateJob(ctx, newJob("j1")))

	_, err := s.Transition(ctx, "j1", domain.StatusPending, domain.StatusFailed, store.JobUpdate{Error: "boom"})
	require.NoError(t, err)

	_, err = s.Transition(ctx, "j1", domain.StatusFailed, domain.StatusProcessing, store.JobUpdate{})
	assert.Error(t, err)
}

func TestTransitionStageLifecycle(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.CreateJob(ctx, newJob("j1")))

	stage := &domain.StagePayload{Source: domain.SourceText}
	_, err := s.Transition(ctx, "j1", domain.StatusPending, domain.StatusProcessing, store.JobUpdate{})
	require.NoError(t, err)
	job, err := s.Transition(ctx, "j1", domain.StatusProcessing, domain.StatusParsing, store.JobUpdate{Stage: stage})
	require.NoError(t, err)
	require.NotNil(t, job.Stage)

	result := &domain.ExtractionResult{Confidence: 90}
	_, err = s.Transition(ctx, "j1", domain.StatusParsing, domain.StatusCategorizing, store.JobUpdate{Stage: stage})
	require.NoError(t, err)
	job, err = s.Transition(ctx, "j1", domain.StatusCategorizing, domain.StatusReview, store.JobUpdate{Result: result, ClearStage: true})
	require.NoError(t, err)
	assert.Nil(t, job.Stage)
	require.NotNil(t, job.Result)
	assert.Equal(t, 90, job.Result.Confidence)
}

func TestListJobsFiltersAndLimits(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	j1 := newJob("j1")
	j1.CreatedAt = time.Now().Add(-2 * time.Hour)
	j2 := newJob("j2")
	j2.CreatedAt = time.Now().Add(-1 * time.Hour)
	j3 := newJob("j3")
	j3.UserID = "user-2"
	require.NoError(t, s.CreateJob(ctx, j1))
	require.NoError(t, s.CreateJob(ctx, j2))
	require.NoError(t, s.CreateJob(ctx, j3))

	jobs, err := s.ListJobs(ctx, "user-1", 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j2", jobs[0].ID) // newest first

	jobs, err = s.ListJobs(ctx, "user-1", 1)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestLedgerCommit(t *testing.T) {
	l := NewLedger()
	job := newJob("j1")
	job.Result = &domain.ExtractionResult{
		Accounts:     []domain.DetectedAccount{{Name: "Cuenta"}},
		Transactions: []domain.NormalizedTransaction{{Date: "2024-01-01"}, {Date: "2024-01-02"}},
	}

	accounts, txs, err := l.Commit(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, accounts)
	assert.Equal(t, 2, txs)
	assert.NotNil(t, l.Committed("j1"))

	// Commit is idempotent per job: replaying overwrites, never duplicates.
	accounts, txs, err = l.Commit(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 1, accounts)
	assert.Equal(t, 2, txs)

	_, _, err = l.Commit(context.Background(), newJob("j2"))
	assert.Error(t, err)
}
