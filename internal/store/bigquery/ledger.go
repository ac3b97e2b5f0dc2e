package bigquery

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/dcastellanos/extracto/internal/domain"
	"github.com/dcastellanos/extracto/internal/store"
)

// Ledger writes confirmed accounts and transactions to BigQuery.
type Ledger struct {
	client  *bigquery.Client
	dataset string
}

var _ store.LedgerWriter = (*Ledger)(nil)

// NewLedger wraps an existing BigQuery client.
func NewLedger(client *bigquery.Client, dataset string) *Ledger {
	return &Ledger{client: client, dataset: dataset}
}

type accountRow struct {
	AccountID      string    `bigquery:"account_id"`
	JobID          string    `bigquery:"job_id"`
	UserID         string    `bigquery:"user_id"`
	Name           string    `bigquery:"name"`
	BankName       string    `bigquery:"bank_name"`
	NumberLast4    string    `bigquery:"number_last4"`
	AccountType    string    `bigquery:"account_type"`
	InitialBalance float64   `bigquery:"initial_balance"`
	Currency       string    `bigquery:"currency"`
	Color          string    `bigquery:"color"`
	Icon           string    `bigquery:"icon"`
	CreatedAt      time.Time `bigquery:"created_at"`
}

type transactionRow struct {
	TransactionID string                 `bigquery:"transaction_id"`
	JobID         string                 `bigquery:"job_id"`
	UserID        string                 `bigquery:"user_id"`
	AccountID     string                 `bigquery:"account_id"`
	Date          civil.Date             `bigquery:"transaction_date"`
	Description   string                 `bigquery:"description"`
	Amount        float64                `bigquery:"amount"`
	Type          string                 `bigquery:"type"`
	Merchant      string                 `bigquery:"merchant"`
	Category      string                 `bigquery:"category"`
	Balance       bigquery.NullFloat64   `bigquery:"balance_after"`
	RawData       string                 `bigquery:"raw_data"`
	CreatedAt     time.Time              `bigquery:"created_at"`
}

var (
	accountSchema     = mustSchema(accountRow{})
	transactionSchema = mustSchema(transactionRow{})
)

func mustSchema(v interface{}) bigquery.Schema {
	schema, err := bigquery.InferSchema(v)
	if err != nil {
		panic(err)
	}
	return schema
}

// accountID and transactionID derive stable row IDs from the job, so a
// replayed commit produces identical rows instead of duplicates.
func accountID(jobID string, i int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("account:"+jobID+":"+strconv.Itoa(i))).String()
}

func transactionID(jobID string, i int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("transaction:"+jobID+":"+strconv.Itoa(i))).String()
}

// Commit inserts the job's reviewed accounts and transactions. Transactions
// are attributed to the first account; multi-account statements keep their
// account rows but share the transaction list, matching what review showed.
//
// Commit is idempotent per job: row IDs are derived from the job ID and ride
// as streaming insert IDs, so a retried or racing commit dedups instead of
// double-writing.
func (l *Ledger) Commit(ctx context.Context, job *domain.ImportJob) (int, int, error) {
	if job.Result == nil {
		return 0, 0, fmt.Errorf("Commit: job %s has no result", job.ID)
	}

	now := time.Now()

	accountRows := make([]*accountRow, 0, len(job.Result.Accounts))
	for i, a := range job.Result.Accounts {
		accountRows = append(accountRows, &accountRow{
			AccountID:      accountID(job.ID, i),
			JobID:          job.ID,
			UserID:         job.UserID,
			Name:           a.Name,
			BankName:       a.BankName,
			NumberLast4:    a.AccountNumberLast4,
			AccountType:    string(a.AccountType),
			InitialBalance: a.InitialBalance,
			Currency:       a.Currency,
			Color:          a.SuggestedColor,
			Icon:           a.SuggestedIcon,
			CreatedAt:      now,
		})
	}

	var primaryAccountID string
	if len(accountRows) > 0 {
		primaryAccountID = accountRows[0].AccountID
	}

	txRows := make([]*transactionRow, 0, len(job.Result.Transactions))
	for i, tx := range job.Result.Transactions {
		date, err := civil.ParseDate(tx.Date)
		if err != nil {
			return 0, 0, fmt.Errorf("Commit: transaction date %q: %w", tx.Date, err)
		}
		row := &transactionRow{
			TransactionID: transactionID(job.ID, i),
			JobID:         job.ID,
			UserID:        job.UserID,
			AccountID:     primaryAccountID,
			Date:          date,
			Description:   tx.Description,
			Amount:        tx.Amount,
			Type:          string(tx.Type),
			Merchant:      tx.Merchant,
			Category:      tx.Category,
			RawData:       tx.RawData,
			CreatedAt:     now,
		}
		if tx.Balance != nil {
			row.Balance = bigquery.NullFloat64{Float64: *tx.Balance, Valid: true}
		}
		txRows = append(txRows, row)
	}

	if len(accountRows) > 0 {
		savers := make([]*bigquery.StructSaver, 0, len(accountRows))
		for _, row := range accountRows {
			savers = append(savers, &bigquery.StructSaver{Schema: accountSchema, InsertID: row.AccountID, Struct: row})
		}
		inserter := l.client.Dataset(l.dataset).Table(accountsTable).Inserter()
		if err := inserter.Put(ctx, savers); err != nil {
			return 0, 0, fmt.Errorf("Commit: inserting accounts: %w", err)
		}
	}
	if len(txRows) > 0 {
		savers := make([]*bigquery.StructSaver, 0, len(txRows))
		for _, row := range txRows {
			savers = append(savers, &bigquery.StructSaver{Schema: transactionSchema, InsertID: row.TransactionID, Struct: row})
		}
		inserter := l.client.Dataset(l.dataset).Table(transactionsTable).Inserter()
		if err := inserter.Put(ctx, savers); err != nil {
			return len(accountRows), 0, fmt.Errorf("Commit: inserting transactions: %w", err)
		}
	}

	return len(accountRows), len(txRows), nil
}
