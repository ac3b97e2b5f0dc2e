// Package config loads service configuration from the environment. A .env
// file is honored when present so local runs don't need exported variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorageGCS   = "gcs"
	StorageLocal = "local"
)

// Config holds everything the API and worker binaries need to start.
type Config struct {
	HTTPAddr string

	// Blob storage.
	StorageBackend string // "gcs" or "local"
	GCSBucket      string
	LocalBlobPath  string

	// Job persistence. When BigQueryProject is empty the in-memory store is
	// used (local mode / tests).
	BigQueryProject string
	BigQueryDataset string

	// Vision extraction.
	GeminiModel   string
	GeminiAPIKey  string
	VisionTimeout time.Duration

	// Worker pool.
	WorkerCount     int
	QueueBuffer     int
	MaxStageRetries int
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		StorageBackend:  getenv("STORAGE_BACKEND", StorageLocal),
		GCSBucket:       os.Getenv("GCS_BUCKET"),
		LocalBlobPath:   getenv("LOCAL_BLOB_PATH", "./uploads"),
		BigQueryProject: os.Getenv("BIGQUERY_PROJECT"),
		BigQueryDataset: getenv("BIGQUERY_DATASET", "finanzas"),
		GeminiModel:     getenv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
	}

	var err error
	if cfg.VisionTimeout, err = getenvDuration("VISION_TIMEOUT", 90*time.Second); err != nil {
		return nil, err
	}
	if cfg.WorkerCount, err = getenvInt("WORKER_COUNT", 4); err != nil {
		return nil, err
	}
	if cfg.QueueBuffer, err = getenvInt("QUEUE_BUFFER", 100); err != nil {
		return nil, err
	}
	if cfg.MaxStageRetries, err = getenvInt("MAX_STAGE_RETRIES", 3); err != nil {
		return nil, err
	}

	if cfg.StorageBackend != StorageGCS && cfg.StorageBackend != StorageLocal {
		return nil, fmt.Errorf("config: unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
	if cfg.StorageBackend == StorageGCS && cfg.GCSBucket == "" {
		return nil, fmt.Errorf("config: STORAGE_BACKEND=gcs requires GCS_BUCKET")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
