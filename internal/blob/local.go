package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local stores objects under a base directory, mirroring the key as a
// relative path. Suitable for development and tests only.
type Local struct {
	baseDir string
}

// NewLocal creates a disk-backed store rooted at baseDir.
func NewLocal(baseDir string) (*Local, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("blob: create base dir %s: %w", baseDir, err)
	}
	return &Local{baseDir: baseDir}, nil
}

// resolve maps a key to a path inside baseDir, rejecting traversal attempts.
func (l *Local) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("blob: invalid key %q", key)
	}
	return filepath.Join(l.baseDir, clean), nil
}

// Put writes data to disk under the key's relative path.
func (l *Local) Put(ctx context.Context, key string, data []byte, contentType string) error {
	p, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("blob: create dir for %s: %w", key, err)
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return fmt.Errorf("blob: write %s: %w", key, err)
	}
	return nil
}

// Get reads the object stored under key.
func (l *Local) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blob: read %s: %w", key, err)
	}
	return data, nil
}

var _ Store = (*Local)(nil)
