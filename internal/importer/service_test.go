package importer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcastellanos/extracto/internal/domain"
	"github.com/dcastellanos/extracto/internal/store"
	"github.com/dcastellanos/extracto/internal/store/inmemory"
)

// fakePublisher records published job IDs.
type fakePublisher struct {
	published []string
}

func (f *fakePublisher) PublishImport(_ context.Context, jobID string) error {
	f.published = append(f.published, jobID)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func newService() (*Service, *inmemory.Store, *inmemory.Ledger, *fakePublisher) {
	jobs := inmemory.NewStore()
	ledger := inmemory.NewLedger()
	pub := &fakePublisher{}
	return NewService(jobs, newFakeBlob(), ledger, pub), jobs, ledger, pub
}

func TestCreateImportJob(t *testing.T) {
	svc, jobs, _, pub := newService()
	ctx := context.Background()

	job, err := svc.CreateImportJob(ctx, CreateImportInput{
		UserID:   "user-1",
		FileName: "extracto diciembre.pdf",
		MimeType: "application/pdf",
		Password: "clave123",
		Data:     []byte("%PDF-fake"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, job.Status)
	assert.Equal(t, 0, job.Progress)
	assert.Contains(t, job.FileKey, "uploads/")

	stored, err := jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "clave123", stored.Password)
	assert.Equal(t, []string{job.ID}, pub.published)
}

func TestCreateImportJobRejectsBadUploads(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateImportInput
	}{
		{"unsupported mime", CreateImportInput{FileName: "x.docx", MimeType: "application/msword", Data: []byte("x")}},
		{"empty file", CreateImportInput{FileName: "x.pdf", MimeType: "application/pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateImportJob(ctx, tt.in)
			assert.ErrorIs(t, err, ErrUnsupportedFile)
		})
	}
}

// driveToReview walks a freshly created job to REVIEW through the store.
func driveToReview(t *testing.T, jobs store.JobStore, id string, result *domain.ExtractionResult) {
	t.Helper()
	ctx := context.Background()
	steps := []struct {
		from, to domain.JobStatus
		upd      store.JobUpdate
	}{
		{domain.StatusPending, domain.StatusProcessing, store.JobUpdate{}},
		{domain.StatusProcessing, domain.StatusParsing, store.JobUpdate{}},
		{domain.StatusParsing, domain.StatusCategorizing, store.JobUpdate{}},
		{domain.StatusCategorizing, domain.StatusReview, store.JobUpdate{Result: result}},
	}
	for _, s := range steps {
		_, err := jobs.Transition(ctx, id, s.from, s.to, s.upd)
		require.NoError(t, err)
	}
}

func TestConfirmImportJobCommitsLedger(t *testing.T) {
	svc, jobs, ledger, _ := newService()
	ctx := context.Background()

	job, err := svc.CreateImportJob(ctx, CreateImportInput{
		UserID: "user-1", FileName: "x.pdf", MimeType: "application/pdf", Data: []byte("%PDF-"),
	})
	require.NoError(t, err)

	result := &domain.ExtractionResult{
		Accounts:     []domain.DetectedAccount{{Name: "Cuenta de Ahorros Bancolombia"}},
		Transactions: []domain.NormalizedTransaction{{Date: "2023-12-05", Description: "PAGO", Amount: 100, Type: domain.TxIncome}},
		Confidence:   90,
	}
	driveToReview(t, jobs, job.ID, result)

	confirmed, err := svc.ConfirmImportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, confirmed.Status)
	assert.Equal(t, 100, confirmed.Progress)
	require.NotNil(t, ledger.Committed(job.ID))

	// A second confirm must not double-commit.
	_, err = svc.ConfirmImportJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrNotReviewable)
}

// flakyLedger fails the first N commits, then delegates.
type flakyLedger struct {
	inner *inmemory.Ledger
	fails int
}

func (f *flakyLedger) Commit(ctx context.Context, job *domain.ImportJob) (int, int, error) {
	if f.fails > 0 {
		f.fails--
		return 0, 0, errors.New("streaming insert quota exceeded")
	}
	return f.inner.Commit(ctx, job)
}

func TestConfirmRetryableAfterLedgerFailure(t *testing.T) {
	jobs := inmemory.NewStore()
	ledger := &flakyLedger{inner: inmemory.NewLedger(), fails: 1}
	svc := NewService(jobs, newFakeBlob(), ledger, &fakePublisher{})
	ctx := context.Background()

	job, err := svc.CreateImportJob(ctx, CreateImportInput{
		UserID: "user-1", FileName: "x.pdf", MimeType: "application/pdf", Data: []byte("%PDF-"),
	})
	require.NoError(t, err)
	driveToReview(t, jobs, job.ID, &domain.ExtractionResult{Confidence: 90})

	_, err = svc.ConfirmImportJob(ctx, job.ID)
	require.Error(t, err)

	// A failed commit must not strand the job: it stays in REVIEW so the
	// confirm can simply be repeated.
	cur, err := jobs.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReview, cur.Status)

	confirmed, err := svc.ConfirmImportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, confirmed.Status)
	assert.NotNil(t, ledger.inner.Committed(job.ID))
}

func TestConfirmRequiresReview(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()

	job, err := svc.CreateImportJob(ctx, CreateImportInput{
		UserID: "user-1", FileName: "x.pdf", MimeType: "application/pdf", Data: []byte("%PDF-"),
	})
	require.NoError(t, err)

	_, err = svc.ConfirmImportJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrNotReviewable)
}

func TestCancelImportJob(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()

	job, err := svc.CreateImportJob(ctx, CreateImportInput{
		UserID: "user-1", FileName: "x.pdf", MimeType: "application/pdf", Data: []byte("%PDF-"),
	})
	require.NoError(t, err)

	cancelled, err := svc.CancelImportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	// Cancelling again is a no-op, not an error.
	again, err := svc.CancelImportJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, again.Status)
}

func TestCancelConfirmedJob(t *testing.T) {
	svc, jobs, _, _ := newService()
	ctx := context.Background()

	job, err := svc.CreateImportJob(ctx, CreateImportInput{
		UserID: "user-1", FileName: "x.pdf", MimeType: "application/pdf", Data: []byte("%PDF-"),
	})
	require.NoError(t, err)
	driveToReview(t, jobs, job.ID, &domain.ExtractionResult{Confidence: 90})
	_, err = svc.ConfirmImportJob(ctx, job.ID)
	require.NoError(t, err)

	_, err = svc.CancelImportJob(ctx, job.ID)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestListImportJobs(t *testing.T) {
	svc, _, _, _ := newService()
	ctx := context.Background()

	for _, user := range []string{"user-1", "user-1", "user-2"} {
		_, err := svc.CreateImportJob(ctx, CreateImportInput{
			UserID: user, FileName: "x.pdf", MimeType: "application/pdf", Data: []byte("%PDF-"),
		})
		require.NoError(t, err)
	}

	jobs, err := svc.ListImportJobs(ctx, "user-1", 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}
