// The api binary serves the import HTTP API and runs the in-process worker
// pool that drives uploaded statements through the extraction pipeline.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dcastellanos/extracto/internal/api/handlers"
	"github.com/dcastellanos/extracto/internal/api/middleware"
	"github.com/dcastellanos/extracto/internal/blob"
	"github.com/dcastellanos/extracto/internal/categorize"
	"github.com/dcastellanos/extracto/internal/config"
	"github.com/dcastellanos/extracto/internal/detect"
	"github.com/dcastellanos/extracto/internal/importer"
	"github.com/dcastellanos/extracto/internal/logger"
	"github.com/dcastellanos/extracto/internal/pdftext"
	"github.com/dcastellanos/extracto/internal/queue"
	"github.com/dcastellanos/extracto/internal/statement"
	"github.com/dcastellanos/extracto/internal/store"
	bqstore "github.com/dcastellanos/extracto/internal/store/bigquery"
	"github.com/dcastellanos/extracto/internal/store/inmemory"
	"github.com/dcastellanos/extracto/internal/vision"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := logger.WithContext(context.Background(), log)

	var blobs blob.Store
	switch cfg.StorageBackend {
	case config.StorageGCS:
		gcs, err := blob.NewGCS(ctx, cfg.GCSBucket)
		if err != nil {
			log.Fatal().Err(err).Str("bucket", cfg.GCSBucket).Msg("Failed to open GCS bucket")
		}
		defer gcs.Close()
		blobs = gcs
	default:
		local, err := blob.NewLocal(cfg.LocalBlobPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.LocalBlobPath).Msg("Failed to open local blob store")
		}
		blobs = local
	}

	var (
		jobStore store.JobStore
		ledger   store.LedgerWriter
	)
	if cfg.BigQueryProject != "" {
		client, err := bigquery.NewClient(ctx, cfg.BigQueryProject)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		defer client.Close()
		jobStore = bqstore.NewStore(client, cfg.BigQueryDataset)
		ledger = bqstore.NewLedger(client, cfg.BigQueryDataset)
		log.Info().Str("project", cfg.BigQueryProject).Str("dataset", cfg.BigQueryDataset).Msg("Using BigQuery persistence")
	} else {
		jobStore = inmemory.NewStore()
		ledger = inmemory.NewLedger()
		log.Warn().Msg("BIGQUERY_PROJECT not set, using in-memory persistence")
	}

	visionClient, err := vision.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.VisionTimeout, cfg.MaxStageRetries)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vision client")
	}

	machine := importer.NewMachine(
		jobStore, blobs, pdftext.New(), statement.New(), visionClient,
		detect.New(), categorize.NewKeyword(), cfg.MaxStageRetries,
	)

	jobQueue := queue.NewMemory(cfg.QueueBuffer, cfg.WorkerCount)
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	if err := jobQueue.Start(workerCtx, machine.Run); err != nil {
		log.Fatal().Err(err).Msg("Failed to start worker pool")
	}
	log.Info().Int("workers", cfg.WorkerCount).Msg("Worker pool started")

	svc := importer.NewService(jobStore, blobs, ledger, jobQueue)
	imports := handlers.NewImportsHandler(svc, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/api/imports", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			imports.Create(w, r)
		case http.MethodGet:
			imports.List(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})
	mux.HandleFunc("/api/imports/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/imports/"), "/"), "/")
		switch {
		case len(parts) == 1 && parts[0] != "" && r.Method == http.MethodGet:
			imports.Get(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "confirm" && r.Method == http.MethodPost:
			imports.Confirm(w, r, parts[0])
		case len(parts) == 2 && parts[1] == "cancel" && r.Method == http.MethodPost:
			imports.Cancel(w, r, parts[0])
		default:
			middleware.WriteError(w, http.StatusNotFound, "Not found")
		}
	})

	handler := middleware.Recovery(log)(middleware.Logger(log)(middleware.RequestID(middleware.CORS(mux))))

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	stopWorkers()
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Worker pool shutdown timed out")
	}

	log.Info().Msg("Shutdown complete")
}
