// Package bigquery persists import jobs and the confirmed ledger in BigQuery.
// Jobs are mutated exclusively through DML with an expected-status predicate;
// the DML statistics tell us whether the compare-and-swap won.
package bigquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dcastellanos/extracto/internal/domain"
	"github.com/dcastellanos/extracto/internal/store"
)

const (
	jobsTable         = "import_jobs"
	accountsTable     = "accounts"
	transactionsTable = "transactions"
)

// Store is a BigQuery-backed JobStore.
type Store struct {
	client  *bigquery.Client
	dataset string
}

var _ store.JobStore = (*Store)(nil)

// NewStore wraps an existing BigQuery client. The caller owns the client's
// lifecycle.
func NewStore(client *bigquery.Client, dataset string) *Store {
	return &Store{client: client, dataset: dataset}
}

// jobRow is the import_jobs table shape. Result and Stage are JSON columns:
// they are opaque to every query this package runs.
type jobRow struct {
	JobID    string `bigquery:"job_id"`
	UserID   string `bigquery:"user_id"`
	FileKey  string `bigquery:"file_key"`
	FileName string `bigquery:"file_name"`
	MimeType string `bigquery:"mime_type"`
	Password string `bigquery:"password"`

	Status   string `bigquery:"status"`
	Progress int    `bigquery:"progress"`
	Error    string `bigquery:"error"`
	Result   string `bigquery:"result"`
	Stage    string `bigquery:"stage"`

	CreatedAt time.Time `bigquery:"created_at"`
	UpdatedAt time.Time `bigquery:"updated_at"`
}

func toRow(job *domain.ImportJob) (*jobRow, error) {
	row := &jobRow{
		JobID:     job.ID,
		UserID:    job.UserID,
		FileKey:   job.FileKey,
		FileName:  job.FileName,
		MimeType:  job.MimeType,
		Password:  job.Password,
		Status:    string(job.Status),
		Progress:  job.Progress,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if job.Result != nil {
		b, err := json.Marshal(job.Result)
		if err != nil {
			return nil, fmt.Errorf("toRow: marshal result: %w", err)
		}
		row.Result = string(b)
	}
	if job.Stage != nil {
		b, err := json.Marshal(job.Stage)
		if err != nil {
			return nil, fmt.Errorf("toRow: marshal stage: %w", err)
		}
		row.Stage = string(b)
	}
	return row, nil
}

func fromRow(row *jobRow) (*domain.ImportJob, error) {
	job := &domain.ImportJob{
		ID:        row.JobID,
		UserID:    row.UserID,
		FileKey:   row.FileKey,
		FileName:  row.FileName,
		MimeType:  row.MimeType,
		Password:  row.Password,
		Status:    domain.JobStatus(row.Status),
		Progress:  row.Progress,
		Error:     row.Error,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.Result != "" {
		job.Result = &domain.ExtractionResult{}
		if err := json.Unmarshal([]byte(row.Result), job.Result); err != nil {
			return nil, fmt.Errorf("fromRow: unmarshal result: %w", err)
		}
	}
	if row.Stage != "" {
		job.Stage = &domain.StagePayload{}
		if err := json.Unmarshal([]byte(row.Stage), job.Stage); err != nil {
			return nil, fmt.Errorf("fromRow: unmarshal stage: %w", err)
		}
	}
	return job, nil
}

func (s *Store) CreateJob(ctx context.Context, job *domain.ImportJob) error {
	row, err := toRow(job)
	if err != nil {
		return fmt.Errorf("CreateJob: %w", err)
	}

	inserter := s.client.Dataset(s.dataset).Table(jobsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("CreateJob: inserting row: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT * FROM %s.%s
		WHERE job_id = @job_id
		LIMIT 1
	`, s.dataset, jobsTable))
	q.Parameters = []bigquery.QueryParameter{{Name: "job_id", Value: id}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetJob: query read: %w", err)
	}

	var row jobRow
	switch err := it.Next(&row); {
	case errors.Is(err, iterator.Done):
		return nil, store.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("GetJob: scanning row: %w", err)
	}
	return fromRow(&row)
}

func (s *Store) ListJobs(ctx context.Context, userID string, limit int) ([]*domain.ImportJob, error) {
	if limit <= 0 {
		limit = 100
	}
	q := s.client.Query(fmt.Sprintf(`
		SELECT * FROM %s.%s
		WHERE (@user_id = '' OR user_id = @user_id)
		ORDER BY created_at DESC
		LIMIT @limit
	`, s.dataset, jobsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "limit", Value: int64(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListJobs: query read: %w", err)
	}

	var out []*domain.ImportJob
	for {
		var row jobRow
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListJobs: scanning row: %w", err)
		}
		job, err := fromRow(&row)
		if err != nil {
			return nil, fmt.Errorf("ListJobs: %w", err)
		}
		out = append(out, job)
	}
	return out, nil
}

func (s *Store) Transition(ctx context.Context, id string, from, to domain.JobStatus, upd store.JobUpdate) (*domain.ImportJob, error) {
	if !domain.ValidTransition(from, to) {
		return nil, fmt.Errorf("Transition: %s -> %s is not a valid move", from, to)
	}

	var (
		resultJSON string
		stageJSON  string
	)
	if upd.Result != nil {
		b, err := json.Marshal(upd.Result)
		if err != nil {
			return nil, fmt.Errorf("Transition: marshal result: %w", err)
		}
		resultJSON = string(b)
	}
	if upd.Stage != nil {
		b, err := json.Marshal(upd.Stage)
		if err != nil {
			return nil, fmt.Errorf("Transition: marshal stage: %w", err)
		}
		stageJSON = string(b)
	}

	// Progress never decreases; GREATEST keeps whatever a concurrent
	// observer already saw. The status predicate is the CAS.
	q := s.client.Query(fmt.Sprintf(`
		UPDATE %s.%s
		SET status = @to_status,
		    progress = GREATEST(progress, @progress),
		    error = IF(@error = '', error, @error),
		    result = IF(@result = '', result, @result),
		    stage = IF(@clear_stage, '', IF(@stage = '', stage, @stage)),
		    updated_at = CURRENT_TIMESTAMP()
		WHERE job_id = @job_id AND status = @from_status
	`, s.dataset, jobsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "job_id", Value: id},
		{Name: "from_status", Value: string(from)},
		{Name: "to_status", Value: string(to)},
		{Name: "progress", Value: int64(progressFloor(to))},
		{Name: "error", Value: upd.Error},
		{Name: "result", Value: resultJSON},
		{Name: "stage", Value: stageJSON},
		{Name: "clear_stage", Value: upd.ClearStage},
	}

	bqJob, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("Transition: run update: %w", err)
	}
	status, err := bqJob.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("Transition: wait update: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("Transition: update failed: %w", err)
	}

	qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics)
	if !ok || qs.DMLStats == nil || qs.DMLStats.UpdatedRowCount == 0 {
		// Nothing matched: either the job doesn't exist or its status moved.
		if _, err := s.GetJob(ctx, id); errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, store.ErrStatusConflict
	}

	return s.GetJob(ctx, id)
}

// progressFloor is the progress written on entering a status; terminal
// failure states write 0 so GREATEST leaves the existing value alone.
func progressFloor(to domain.JobStatus) int {
	if p := domain.ProgressFor(to); p > 0 {
		return p
	}
	return 0
}
