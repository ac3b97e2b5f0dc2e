// Package queue distributes import jobs to workers. The interfaces allow the
// in-memory channel implementation to be swapped for Cloud Tasks or Pub/Sub
// without touching the pipeline; the channel version suits single-instance
// deployments and tests.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/dcastellanos/extracto/internal/logger"
)

// Handler processes one queued import job, identified by its ID. The handler
// owns all retry decisions; the queue delivers each ID exactly once.
type Handler func(ctx context.Context, jobID string) error

// Publisher enqueues import jobs for asynchronous processing.
type Publisher interface {
	PublishImport(ctx context.Context, jobID string) error
	Close() error
}

// Consumer runs the worker pool against a handler.
type Consumer interface {
	Start(ctx context.Context, handler Handler) error
	Stop(ctx context.Context) error
}

// Memory is an in-memory Publisher/Consumer backed by a buffered channel.
// Safe for concurrent use.
type Memory struct {
	jobChan   chan string
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	workers   int
	closed    bool
}

var (
	_ Publisher = (*Memory)(nil)
	_ Consumer  = (*Memory)(nil)
)

// NewMemory creates an in-memory queue. bufferSize bounds how many jobs can
// wait before PublishImport blocks; workers is the pool size.
func NewMemory(bufferSize, workers int) *Memory {
	if workers <= 0 {
		workers = 1
	}
	return &Memory{
		jobChan:   make(chan string, bufferSize),
		closeChan: make(chan struct{}),
		workers:   workers,
	}
}

func (q *Memory) PublishImport(ctx context.Context, jobID string) error {
	if jobID == "" {
		return fmt.Errorf("PublishImport: job ID is required")
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return fmt.Errorf("PublishImport: queue is closed")
	}

	select {
	case q.jobChan <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("PublishImport: queue is closed")
	}
}

func (q *Memory) Start(ctx context.Context, handler Handler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("Start: queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Memory) worker(ctx context.Context, handler Handler) {
	defer q.wg.Done()

	log := logger.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case jobID := <-q.jobChan:
			if jobID == "" {
				return
			}
			if err := handler(ctx, jobID); err != nil {
				log.Error().Err(err).Str("job_id", jobID).Msg("job handler failed")
			}
		}
	}
}

// Stop closes the queue and waits for in-flight jobs to finish, bounded by
// the context.
func (q *Memory) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Memory) Close() error {
	return q.Stop(context.Background())
}
