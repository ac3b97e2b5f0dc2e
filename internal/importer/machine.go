// Package importer runs uploaded statement files through the import
// pipeline: PENDING → PROCESSING (extraction) → PARSING (detection) →
// CATEGORIZING → REVIEW, with FAILED and CANCELLED reachable from any
// non-terminal state. Every transition is a compare-and-swap on the expected
// current status, so a stage can never be applied twice and a cancellation
// that wins a race silently discards the in-flight stage result.
package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dcastellanos/extracto/internal/blob"
	"github.com/dcastellanos/extracto/internal/categorize"
	"github.com/dcastellanos/extracto/internal/domain"
	"github.com/dcastellanos/extracto/internal/logger"
	"github.com/dcastellanos/extracto/internal/pdftext"
	"github.com/dcastellanos/extracto/internal/statement"
	"github.com/dcastellanos/extracto/internal/store"
	"github.com/dcastellanos/extracto/internal/vision"
)

// TextExtractor pulls machine text out of a PDF.
type TextExtractor interface {
	Extract(data []byte, password string) (*pdftext.Document, error)
}

// StatementParser parses extracted statement text.
type StatementParser interface {
	Parse(text string) (*statement.ParseOutput, error)
}

// VisionExtractor extracts statement data from document pages.
type VisionExtractor interface {
	Extract(ctx context.Context, pages []vision.Page) (*domain.ExtractionResult, error)
}

// AccountDetector builds the reviewed result from parsed statement data.
type AccountDetector interface {
	Detect(meta domain.StatementMetadata, raw []domain.RawTransaction) *domain.ExtractionResult
}

// Machine advances import jobs through the pipeline one stage at a time.
type Machine struct {
	jobs        store.JobStore
	blobs       blob.Store
	text        TextExtractor
	parser      StatementParser
	vision      VisionExtractor
	detector    AccountDetector
	categorizer categorize.Categorizer
	maxRetries  uint64
}

// NewMachine wires the pipeline stages together. maxRetries bounds how many
// times Run re-attempts a transiently failing stage.
func NewMachine(
	jobs store.JobStore,
	blobs blob.Store,
	text TextExtractor,
	parser StatementParser,
	visionClient VisionExtractor,
	detector AccountDetector,
	categorizer categorize.Categorizer,
	maxRetries int,
) *Machine {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Machine{
		jobs:        jobs,
		blobs:       blobs,
		text:        text,
		parser:      parser,
		vision:      visionClient,
		detector:    detector,
		categorizer: categorizer,
		maxRetries:  uint64(maxRetries),
	}
}

// Run drives a job to REVIEW or a terminal state. Transient stage failures
// are retried with exponential backoff; input and internal failures fail the
// job with a user-facing message. A job that another actor moved (cancelled,
// or claimed by a second worker) is left alone.
func (m *Machine) Run(ctx context.Context, jobID string) error {
	log := logger.FromContext(ctx).With().Str("job_id", jobID).Logger()
	ctx = logger.WithContext(ctx, log)

	backoff := retry.WithMaxRetries(m.maxRetries, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		for {
			done, err := m.ProcessStage(ctx, jobID)
			if err != nil {
				if AsFailure(err).Kind == FailureTransient {
					return retry.RetryableError(err)
				}
				return err
			}
			if done {
				return nil
			}
		}
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		// Shutdown: leave the job where it is; the persisted stage payload
		// lets the next run resume without repeating completed work.
		return ctx.Err()
	}

	failure := AsFailure(err)
	log.Error().Err(failure.Err).Str("kind", string(failure.Kind)).Msg("import failed")
	if failErr := m.fail(ctx, jobID, failure.UserMessage); failErr != nil {
		return fmt.Errorf("Run: marking job failed: %w", failErr)
	}
	return err
}

// ProcessStage reads the job's persisted state and advances it exactly one
// stage. It is safe to call again after a crash: each stage stores its output
// with the transition that leaves it, so completed external calls are never
// repeated. done is true once the job needs no further worker action.
func (m *Machine) ProcessStage(ctx context.Context, jobID string) (done bool, err error) {
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return true, inputFailure(msgInternal, err)
		}
		return false, transientFailure(fmt.Errorf("ProcessStage: reading job: %w", err))
	}

	switch job.Status {
	case domain.StatusPending:
		return m.claim(ctx, job)
	case domain.StatusProcessing:
		return m.extract(ctx, job)
	case domain.StatusParsing:
		return m.detect(ctx, job)
	case domain.StatusCategorizing:
		return m.categorize(ctx, job)
	default:
		// REVIEW and terminal states need no worker action.
		return true, nil
	}
}

func (m *Machine) claim(ctx context.Context, job *domain.ImportJob) (bool, error) {
	_, err := m.jobs.Transition(ctx, job.ID, domain.StatusPending, domain.StatusProcessing, store.JobUpdate{})
	return m.afterTransition(err)
}

// extract runs the PROCESSING stage: fetch the blob, pull text out of PDFs
// and parse it, or send image pages (and unreadable scans) to vision. The
// stage output is persisted with the transition into PARSING.
func (m *Machine) extract(ctx context.Context, job *domain.ImportJob) (bool, error) {
	log := logger.FromContext(ctx)

	data, err := m.blobs.Get(ctx, job.FileKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return false, internalFailure(fmt.Errorf("extract: file %s missing: %w", job.FileKey, err))
		}
		return false, transientFailure(fmt.Errorf("extract: fetching file: %w", err))
	}

	if isImageMime(job.MimeType) {
		return m.extractVision(ctx, job, []vision.Page{{MIMEType: job.MimeType, Data: data}})
	}

	doc, err := m.text.Extract(data, job.Password)
	if err != nil {
		switch pdftext.KindOf(err) {
		case pdftext.PasswordRequired:
			return false, inputFailure(msgPasswordRequired, err)
		case pdftext.PasswordIncorrect:
			return false, inputFailure(msgPasswordIncorrect, err)
		case pdftext.CorruptDocument:
			return false, inputFailure(msgCorruptDocument, err)
		case pdftext.NoExtractableText:
			// Scanned statement: the whole PDF rides to vision as one part.
			log.Info().Str("file", job.FileName).Msg("no machine text, falling back to vision")
			return m.extractVision(ctx, job, []vision.Page{{MIMEType: "application/pdf", Data: data}})
		default:
			return false, internalFailure(fmt.Errorf("extract: %w", err))
		}
	}

	parsed, err := m.parser.Parse(doc.Text)
	if err != nil {
		if errors.Is(err, statement.ErrNotStatement) {
			return false, inputFailure(msgNotStatement, err)
		}
		return false, internalFailure(fmt.Errorf("extract: parsing text: %w", err))
	}

	log.Info().Int("pages", doc.PageCount).Int("transactions", len(parsed.Transactions)).
		Msg("text extraction complete")

	stage := &domain.StagePayload{
		Source:          domain.SourceText,
		RawTransactions: parsed.Transactions,
		Metadata:        &parsed.Metadata,
	}
	_, err = m.jobs.Transition(ctx, job.ID, domain.StatusProcessing, domain.StatusParsing, store.JobUpdate{Stage: stage})
	return m.afterTransition(err)
}

func (m *Machine) extractVision(ctx context.Context, job *domain.ImportJob, pages []vision.Page) (bool, error) {
	res, err := m.vision.Extract(ctx, pages)
	if err != nil {
		// Only cancellation reaches here; the result is discarded and the
		// job stays in PROCESSING for the next run.
		return false, err
	}

	stage := &domain.StagePayload{Source: domain.SourceVision, Vision: res}
	_, err = m.jobs.Transition(ctx, job.ID, domain.StatusProcessing, domain.StatusParsing, store.JobUpdate{Stage: stage})
	return m.afterTransition(err)
}

// detect runs the PARSING stage: text-path output goes through account
// detection and normalization; vision output is already in reviewed shape.
// Either way the pending result is persisted with the transition.
func (m *Machine) detect(ctx context.Context, job *domain.ImportJob) (bool, error) {
	if job.Stage == nil {
		return false, internalFailure(fmt.Errorf("detect: job %s has no stage payload", job.ID))
	}

	stage := *job.Stage
	switch stage.Source {
	case domain.SourceText:
		meta := domain.StatementMetadata{}
		if stage.Metadata != nil {
			meta = *stage.Metadata
		}
		stage.Pending = m.detector.Detect(meta, stage.RawTransactions)
	case domain.SourceVision:
		if stage.Vision == nil {
			return false, internalFailure(fmt.Errorf("detect: job %s vision payload missing", job.ID))
		}
		stage.Pending = stage.Vision
	default:
		return false, internalFailure(fmt.Errorf("detect: job %s unknown stage source %q", job.ID, stage.Source))
	}

	_, err := m.jobs.Transition(ctx, job.ID, domain.StatusParsing, domain.StatusCategorizing, store.JobUpdate{Stage: &stage})
	return m.afterTransition(err)
}

// categorize runs the CATEGORIZING stage and attaches the final result with
// the transition into REVIEW, clearing the intermediate payload.
func (m *Machine) categorize(ctx context.Context, job *domain.ImportJob) (bool, error) {
	if job.Stage == nil || job.Stage.Pending == nil {
		return false, internalFailure(fmt.Errorf("categorize: job %s has no pending result", job.ID))
	}

	result := job.Stage.Pending
	categorize.Apply(m.categorizer, result.Transactions)

	_, err := m.jobs.Transition(ctx, job.ID, domain.StatusCategorizing, domain.StatusReview, store.JobUpdate{
		Result:     result,
		ClearStage: true,
	})
	return m.afterTransition(err)
}

// afterTransition folds a Transition result into ProcessStage's contract: a
// status conflict means another actor moved the job, so the next loop
// iteration re-reads and reacts; store errors are worth retrying.
func (m *Machine) afterTransition(err error) (bool, error) {
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, store.ErrStatusConflict):
		return false, nil
	case errors.Is(err, store.ErrNotFound):
		return true, nil
	default:
		return false, transientFailure(fmt.Errorf("persisting transition: %w", err))
	}
}

// fail moves the job to FAILED from whatever non-terminal status it is in.
func (m *Machine) fail(ctx context.Context, jobID, userMessage string) error {
	for {
		job, err := m.jobs.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if job.Status.Terminal() {
			return nil
		}
		_, err = m.jobs.Transition(ctx, jobID, job.Status, domain.StatusFailed, store.JobUpdate{Error: userMessage})
		if errors.Is(err, store.ErrStatusConflict) {
			continue
		}
		return err
	}
}

func isImageMime(mime string) bool {
	return strings.HasPrefix(mime, "image/")
}
