package bigquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerRowIDsAreStable(t *testing.T) {
	// Replayed commits must produce the same rows, so IDs are a pure function
	// of the job and the row's position.
	assert.Equal(t, accountID("job-1", 0), accountID("job-1", 0))
	assert.Equal(t, transactionID("job-1", 3), transactionID("job-1", 3))

	assert.NotEqual(t, accountID("job-1", 0), accountID("job-1", 1))
	assert.NotEqual(t, accountID("job-1", 0), accountID("job-2", 0))
	assert.NotEqual(t, accountID("job-1", 0), transactionID("job-1", 0))
}
