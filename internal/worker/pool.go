package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mimicryml/style-transfer/internal/engine"
	"github.com/mimicryml/style-transfer/internal/interfaces"
	"github.com/mimicryml/style-transfer/internal/logger"
	"github.com/mimicryml/style-transfer/internal/metrics"
	"github.com/mimicryml/style-transfer/internal/styles"
)

// Notifier receives job records after every transition the pool commits.
// Used to push live updates to websocket clients and the message bus.
type Notifier interface {
	NotifyJobUpdate(job *interfaces.Job)
}

// Pool is a bounded set of workers that poll the store for pending jobs,
// claim them and run them through the transformation engine. One claimed
// job is only ever mutated by the worker that claimed it.
type Pool struct {
	store    interfaces.JobStore
	engine   engine.Engine
	catalog  *styles.Catalog
	notifier Notifier

	outputDir    string
	workerCount  int
	pollInterval time.Duration
	jobTimeout   time.Duration // zero means no server-side timeout

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	wake   chan struct{}
}

// NewPool creates a worker pool writing results under outputDir.
// jobTimeout bounds a single engine invocation; pass zero to let jobs
// run to completion.
func NewPool(store interfaces.JobStore, eng engine.Engine, catalog *styles.Catalog, outputDir string, workerCount int, jobTimeout time.Duration) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		store:        store,
		engine:       eng,
		catalog:      catalog,
		outputDir:    outputDir,
		workerCount:  workerCount,
		jobTimeout:   jobTimeout,
		ctx:          ctx,
		cancel:       cancel,
		pollInterval: 1 * time.Second,
		wake:         make(chan struct{}, 1),
	}
}

// SetNotifier registers the transition listener. Must be called before
// Start.
func (p *Pool) SetNotifier(n Notifier) {
	p.notifier = n
}

// Start launches the workers and returns immediately
func (p *Pool) Start() {
	logger.Logger.Info().Int("worker_count", p.workerCount).Msg("Starting worker pool")
	metrics.ActiveWorkers.Set(float64(p.workerCount))

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop shuts the pool down: no new jobs are claimed, and Stop blocks
// until every in-flight job has committed its terminal state.
func (p *Pool) Stop() {
	logger.Logger.Info().Msg("Stopping worker pool")
	p.cancel()
	p.wg.Wait()
	metrics.ActiveWorkers.Set(0)
	logger.Logger.Info().Msg("Worker pool stopped")
}

// Wake nudges the pool to poll immediately instead of waiting for the
// next tick. Safe to call from any goroutine; extra nudges coalesce.
func (p *Pool) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger.Logger.Info().Int("worker_id", id).Msg("Worker started")

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			logger.Logger.Info().Int("worker_id", id).Msg("Worker shutting down")
			return
		case <-ticker.C:
			p.drain(id)
		case <-p.wake:
			p.drain(id)
		}
	}
}

// drain claims and processes pending jobs until the queue is empty or
// the pool is stopped.
func (p *Pool) drain(workerID int) {
	for p.ctx.Err() == nil {
		job, err := p.claimNext()
		if err != nil {
			logger.Logger.Error().Int("worker_id", workerID).Err(err).Msg("Error claiming pending job")
			return
		}
		if job == nil {
			return
		}
		p.processJob(workerID, job)
	}
}

// claimNext picks the oldest pending job and flips it to processing.
// Losing the claim race to another worker is normal; that job is simply
// skipped and the next one is tried. Store outages are retried with
// backoff before being reported, since a job abandoned in pending is
// unrecoverable.
func (p *Pool) claimNext() (*interfaces.Job, error) {
	for {
		job, err := p.store.NextPending()
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, nil
		}

		err = p.withRetry(p.ctx, func() error { return p.store.SetProcessing(job.ID) },
			interfaces.ErrNotPending, interfaces.ErrNotFound)
		if err != nil {
			if errors.Is(err, interfaces.ErrNotPending) || errors.Is(err, interfaces.ErrNotFound) {
				continue // another worker won the claim
			}
			return nil, fmt.Errorf("failed to claim job %s: %w", job.ID, err)
		}

		job.Status = interfaces.StatusProcessing
		p.notify(job)
		return job, nil
	}
}

// processJob drives one claimed job to a terminal state. Every exit path
// commits either completed or failed; a job never silently stays in
// processing.
func (p *Pool) processJob(workerID int, job *interfaces.Job) {
	log := logger.WithJobID(job.ID)
	log.Info().
		Int("worker_id", workerID).
		Str("style", job.StyleName).
		Msg("Processing job")

	style, err := p.catalog.ResolveAsset(job.StyleName)
	if err != nil {
		p.failJob(workerID, job, err)
		return
	}

	outputPath := filepath.Join(p.outputDir, job.ID+".jpg")

	// The run is deliberately not bound to the pool's shutdown context:
	// once claimed, a job must reach a terminal state even while the pool
	// is stopping, or it would be stranded in processing. Stop waits for
	// in-flight jobs via the WaitGroup.
	ctx := context.Background()
	if p.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.jobTimeout)
		defer cancel()
	}

	startTime := time.Now()
	err = p.engine.Apply(ctx, job.OriginalPath, style.AssetPath, outputPath)
	elapsed := time.Since(startTime).Seconds()
	metrics.ProcessingDuration.Observe(elapsed)

	if err != nil {
		p.failJob(workerID, job, fmt.Errorf("transformation failed: %w", err))
		return
	}

	if err := p.commit(func() error {
		return p.store.SetCompleted(job.ID, outputPath, elapsed)
	}); err != nil {
		log.Error().Int("worker_id", workerID).Err(err).Msg("Failed to commit completed job")
		return
	}

	now := time.Now()
	job.Status = interfaces.StatusCompleted
	job.OutputPath = outputPath
	job.ProcessingTime = elapsed
	job.CompletedAt = &now
	p.notify(job)

	metrics.JobsCompletedTotal.Inc()
	log.Info().Int("worker_id", workerID).Float64("seconds", elapsed).Msg("Job completed")
}

func (p *Pool) failJob(workerID int, job *interfaces.Job, cause error) {
	log := logger.WithJobID(job.ID)
	log.Error().Int("worker_id", workerID).Err(cause).Msg("Job failed")

	if err := p.commit(func() error {
		return p.store.SetFailed(job.ID, cause.Error())
	}); err != nil {
		log.Error().Int("worker_id", workerID).Err(err).Msg("Failed to commit failed job")
		return
	}

	now := time.Now()
	job.Status = interfaces.StatusFailed
	job.ErrorMessage = cause.Error()
	job.CompletedAt = &now
	p.notify(job)

	metrics.JobsFailedTotal.Inc()
}

// commit writes a terminal transition, retrying transient store errors
// with exponential backoff. Losing this write would strand the job in
// processing forever, so the retries run under a fresh context rather
// than the pool's shutdown context.
func (p *Pool) commit(write func() error) error {
	return p.withRetry(context.Background(), write, interfaces.ErrNotProcessing, interfaces.ErrNotFound)
}

// withRetry runs op under exponential backoff. Errors matching one of
// the permanent sentinels are returned immediately; anything else is
// treated as a transient store failure.
func (p *Pool) withRetry(ctx context.Context, op func() error, permanent ...error) error {
	backoff := retry.WithMaxRetries(5, retry.NewExponential(200*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op()
		if err == nil {
			return nil
		}
		for _, sentinel := range permanent {
			if errors.Is(err, sentinel) {
				return err
			}
		}
		return retry.RetryableError(err)
	})
}

func (p *Pool) notify(job *interfaces.Job) {
	if p.notifier == nil {
		return
	}
	cp := *job
	p.notifier.NotifyJobUpdate(&cp)
}
