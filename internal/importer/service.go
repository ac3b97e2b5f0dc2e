package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dcastellanos/extracto/internal/blob"
	"github.com/dcastellanos/extracto/internal/domain"
	"github.com/dcastellanos/extracto/internal/logger"
	"github.com/dcastellanos/extracto/internal/queue"
	"github.com/dcastellanos/extracto/internal/store"
)

// maxUploadBytes bounds statement uploads. Statements run a few hundred KB;
// 25 MB leaves room for high-resolution photos.
const maxUploadBytes = 25 << 20

// allowedMimeTypes are the upload types the pipeline can process.
var allowedMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
}

var (
	// ErrUnsupportedFile is returned for uploads outside the allowed types
	// or size bound.
	ErrUnsupportedFile = errors.New("importer: unsupported file")

	// ErrNotReviewable is returned when confirm is called on a job that is
	// not awaiting review.
	ErrNotReviewable = errors.New("importer: job is not awaiting review")

	// ErrAlreadyTerminal is returned when cancel is called on a finished job.
	ErrAlreadyTerminal = errors.New("importer: job already finished")
)

// CreateImportInput is one statement upload.
type CreateImportInput struct {
	UserID   string
	FileName string
	MimeType string
	Password string
	Data     []byte
}

// Service is the user-facing surface of the import pipeline: it accepts
// uploads, reports job state and applies the review decisions. Stage
// execution happens in the workers, not here.
type Service struct {
	jobs   store.JobStore
	blobs  blob.Store
	ledger store.LedgerWriter
	pub    queue.Publisher
}

// NewService wires the service.
func NewService(jobs store.JobStore, blobs blob.Store, ledger store.LedgerWriter, pub queue.Publisher) *Service {
	return &Service{jobs: jobs, blobs: blobs, ledger: ledger, pub: pub}
}

// CreateImportJob stores the uploaded file, creates the job in PENDING and
// enqueues it. The returned job is what pollers will see first.
func (s *Service) CreateImportJob(ctx context.Context, in CreateImportInput) (*domain.ImportJob, error) {
	if !allowedMimeTypes[in.MimeType] {
		return nil, fmt.Errorf("%w: mime type %q", ErrUnsupportedFile, in.MimeType)
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedFile)
	}
	if len(in.Data) > maxUploadBytes {
		return nil, fmt.Errorf("%w: file exceeds %d bytes", ErrUnsupportedFile, maxUploadBytes)
	}

	key := blob.NewKey(in.FileName)
	if err := s.blobs.Put(ctx, key, in.Data, in.MimeType); err != nil {
		return nil, fmt.Errorf("CreateImportJob: storing file: %w", err)
	}

	now := time.Now()
	job := &domain.ImportJob{
		ID:        uuid.New().String(),
		UserID:    in.UserID,
		FileKey:   key,
		FileName:  in.FileName,
		MimeType:  in.MimeType,
		Password:  in.Password,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("CreateImportJob: creating job: %w", err)
	}

	if err := s.pub.PublishImport(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("CreateImportJob: enqueueing job: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("job_id", job.ID).
		Str("file", in.FileName).
		Str("mime", in.MimeType).
		Msg("import job created")
	return job, nil
}

// GetImportJob returns the job's current state.
func (s *Service) GetImportJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	return s.jobs.GetJob(ctx, id)
}

// ListImportJobs lists jobs newest first, optionally filtered by user.
func (s *Service) ListImportJobs(ctx context.Context, userID string, limit int) ([]*domain.ImportJob, error) {
	return s.jobs.ListJobs(ctx, userID, limit)
}

// ConfirmImportJob commits the reviewed result to the permanent ledger and
// transitions REVIEW → CONFIRMED. The commit happens first: it is idempotent
// per job, so a failed commit leaves the job in REVIEW where confirm can be
// retried, and concurrent confirms dedup to identical rows with only one
// winning the status swap.
func (s *Service) ConfirmImportJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusReview {
		return nil, fmt.Errorf("%w: status %s", ErrNotReviewable, job.Status)
	}

	accounts, txs, err := s.ledger.Commit(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("ConfirmImportJob: committing ledger: %w", err)
	}

	confirmed, err := s.jobs.Transition(ctx, id, domain.StatusReview, domain.StatusConfirmed, store.JobUpdate{})
	if err != nil {
		if errors.Is(err, store.ErrStatusConflict) {
			return nil, fmt.Errorf("%w: confirmed or cancelled concurrently", ErrNotReviewable)
		}
		return nil, fmt.Errorf("ConfirmImportJob: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("job_id", id).
		Int("accounts", accounts).
		Int("transactions", txs).
		Msg("import confirmed")
	return confirmed, nil
}

// CancelImportJob moves a non-terminal job to CANCELLED. Whatever stage is in
// flight loses its compare-and-swap and its output is discarded.
func (s *Service) CancelImportJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	for {
		job, err := s.jobs.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status.Terminal() {
			if job.Status == domain.StatusCancelled {
				return job, nil
			}
			return nil, fmt.Errorf("%w: status %s", ErrAlreadyTerminal, job.Status)
		}

		cancelled, err := s.jobs.Transition(ctx, id, job.Status, domain.StatusCancelled, store.JobUpdate{})
		if errors.Is(err, store.ErrStatusConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("CancelImportJob: %w", err)
		}
		return cancelled, nil
	}
}
