package bigquery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcastellanos/extracto/internal/domain"
)

func TestJobRowCarriesResultAndStage(t *testing.T) {
	job := &domain.ImportJob{
		ID:       "j1",
		UserID:   "u1",
		FileKey:  "uploads/2024/01/01/x.pdf",
		Status:   domain.StatusParsing,
		Progress: 40,
		Stage: &domain.StagePayload{
			Source: domain.SourceText,
			RawTransactions: []domain.RawTransaction{
				{Date: "2024-01-05", Description: "ABONO", Amount: 100},
			},
		},
		CreatedAt: time.Now(),
	}

	row, err := toRow(job)
	require.NoError(t, err)
	assert.Empty(t, row.Result)
	assert.NotEmpty(t, row.Stage)

	back, err := fromRow(row)
	require.NoError(t, err)
	assert.Equal(t, job.Status, back.Status)
	require.NotNil(t, back.Stage)
	require.Len(t, back.Stage.RawTransactions, 1)
	assert.Equal(t, "ABONO", back.Stage.RawTransactions[0].Description)
	assert.Nil(t, back.Result)
}

func TestJobRowRejectsMalformedJSON(t *testing.T) {
	_, err := fromRow(&jobRow{JobID: "j1", Result: "{not json"})
	assert.Error(t, err)
}

func TestProgressFloorFreezesTerminalFailures(t *testing.T) {
	assert.Equal(t, 0, progressFloor(domain.StatusFailed))
	assert.Equal(t, 0, progressFloor(domain.StatusCancelled))
	assert.Equal(t, 95, progressFloor(domain.StatusReview))
}
