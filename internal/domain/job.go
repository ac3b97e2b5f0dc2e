package domain

import (
	"time"
)

// JobStatus is the lifecycle state of an import job.
type JobStatus string

const (
	StatusPending      JobStatus = "PENDING"
	StatusProcessing   JobStatus = "PROCESSING"
	StatusParsing      JobStatus = "PARSING"
	StatusCategorizing JobStatus = "CATEGORIZING"
	StatusReview       JobStatus = "REVIEW"
	StatusConfirmed    JobStatus = "CONFIRMED"
	StatusFailed       JobStatus = "FAILED"
	StatusCancelled    JobStatus = "CANCELLED"
)

// stageOrder gives each non-terminal pipeline stage a rank so callers can
// verify that observed statuses only ever move forward.
var stageOrder = map[JobStatus]int{
	StatusPending:      0,
	StatusProcessing:   1,
	StatusParsing:      2,
	StatusCategorizing: 3,
	StatusReview:       4,
	StatusConfirmed:    5,
}

// stageProgress maps each status to the progress percentage reported when a
// job enters it. FAILED and CANCELLED freeze progress where it was.
var stageProgress = map[JobStatus]int{
	StatusPending:      0,
	StatusProcessing:   10,
	StatusParsing:      40,
	StatusCategorizing: 80,
	StatusReview:       95,
	StatusConfirmed:    100,
}

// ProgressFor returns the progress percentage for entering a status, or -1
// for statuses that keep the current progress.
func ProgressFor(s JobStatus) int {
	if p, ok := stageProgress[s]; ok {
		return p
	}
	return -1
}

// Terminal reports whether the status is final. Terminal jobs are immutable.
func (s JobStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed || s == StatusCancelled
}

// Rank returns the pipeline position of a status, or -1 for FAILED/CANCELLED.
func (s JobStatus) Rank() int {
	if r, ok := stageOrder[s]; ok {
		return r
	}
	return -1
}

// ValidTransition reports whether moving from one status to another respects
// the pipeline ordering. FAILED and CANCELLED are reachable from any
// non-terminal status; forward moves must advance exactly one stage.
func ValidTransition(from, to JobStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed || to == StatusCancelled {
		return true
	}
	fr, tr := from.Rank(), to.Rank()
	return fr >= 0 && tr == fr+1
}

// ImportJob tracks one uploaded statement file through the pipeline.
//
// Progress is advisory and monotonically non-decreasing while the job is
// non-terminal. Result is set only once the job reaches REVIEW; Stage carries
// intermediate pipeline output between stage boundaries so a worker can
// resume after a crash without repeating completed external calls, and is
// cleared when Result is attached.
type ImportJob struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	FileKey  string `json:"file_key"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`

	// Password is the optional PDF password supplied at upload. Never
	// included in API responses.
	Password string `json:"-"`

	Status   JobStatus         `json:"status"`
	Progress int               `json:"progress"`
	Error    string            `json:"error,omitempty"`
	Result   *ExtractionResult `json:"result,omitempty"`
	Stage    *StagePayload     `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StageSource identifies which extraction path produced a stage payload.
type StageSource string

const (
	SourceText   StageSource = "TEXT"
	SourceVision StageSource = "VISION"
)

// StagePayload is the persisted intermediate state between pipeline stages.
type StagePayload struct {
	Source StageSource `json:"source"`

	// Text path output (set after PROCESSING when the PDF had machine text).
	RawTransactions []RawTransaction   `json:"raw_transactions,omitempty"`
	Metadata        *StatementMetadata `json:"metadata,omitempty"`

	// Vision path output (set after PROCESSING when the file was an image
	// or a scanned PDF).
	Vision *ExtractionResult `json:"vision,omitempty"`

	// Pending is the detected-and-normalized result awaiting categorization
	// (set after PARSING).
	Pending *ExtractionResult `json:"pending,omitempty"`
}
