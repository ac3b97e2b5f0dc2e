// Package blob provides content storage for uploaded statement files, with a
// Google Cloud Storage backend and a local-disk fallback for development.
package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no object exists under the requested key.
var ErrNotFound = errors.New("blob: object not found")

// Store is the minimal contract the import pipeline needs: put bytes under a
// key at upload time, fetch them back by key inside a worker.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// NewKey builds a date-sharded object key for an uploaded file,
// e.g. "uploads/2026/08/23/3f2a…-extracto_enero.pdf".
func NewKey(fileName string) string {
	return fmt.Sprintf("uploads/%s/%s-%s",
		time.Now().UTC().Format("2006/01/02"),
		uuid.NewString(),
		path.Base(fileName))
}
