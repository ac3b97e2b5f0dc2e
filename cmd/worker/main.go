// The worker binary drains unfinished import jobs. The API normally processes
// jobs in-process; this tool picks up work left behind by a crashed or
// redeployed instance by scanning the store for non-terminal jobs and running
// each one through the pipeline from its persisted stage.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/bigquery"

	"github.com/dcastellanos/extracto/internal/blob"
	"github.com/dcastellanos/extracto/internal/categorize"
	"github.com/dcastellanos/extracto/internal/config"
	"github.com/dcastellanos/extracto/internal/detect"
	"github.com/dcastellanos/extracto/internal/domain"
	"github.com/dcastellanos/extracto/internal/importer"
	"github.com/dcastellanos/extracto/internal/logger"
	"github.com/dcastellanos/extracto/internal/pdftext"
	"github.com/dcastellanos/extracto/internal/statement"
	bqstore "github.com/dcastellanos/extracto/internal/store/bigquery"
	"github.com/dcastellanos/extracto/internal/vision"
)

func main() {
	limit := flag.Int("limit", 500, "maximum number of jobs to scan")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.BigQueryProject == "" {
		log.Fatal().Msg("BIGQUERY_PROJECT is required, the worker resumes jobs from persistent storage")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

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

	client, err := bigquery.NewClient(ctx, cfg.BigQueryProject)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()
	jobStore := bqstore.NewStore(client, cfg.BigQueryDataset)

	visionClient, err := vision.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.VisionTimeout, cfg.MaxStageRetries)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vision client")
	}

	machine := importer.NewMachine(
		jobStore, blobs, pdftext.New(), statement.New(), visionClient,
		detect.New(), categorize.NewKeyword(), cfg.MaxStageRetries,
	)

	jobs, err := jobStore.ListJobs(ctx, "", *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list jobs")
	}

	var resumed, failed int
	for _, job := range jobs {
		if job.Status.Terminal() || job.Status == domain.StatusReview {
			continue
		}
		if ctx.Err() != nil {
			log.Warn().Msg("Interrupted, stopping")
			break
		}

		log.Info().Str("job_id", job.ID).Str("status", string(job.Status)).Msg("Resuming job")
		if err := machine.Run(ctx, job.ID); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("Job failed")
			failed++
			continue
		}
		resumed++
	}

	log.Info().Int("resumed", resumed).Int("failed", failed).Msg("Drain complete")
	if failed > 0 {
		os.Exit(1)
	}
}
