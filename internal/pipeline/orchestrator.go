package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/splinegest/internal/cache"
	"github.com/dgallion1/splinegest/internal/config"
	"github.com/dgallion1/splinegest/internal/metrics"
	"github.com/dgallion1/splinegest/internal/pathstore"
	"github.com/dgallion1/splinegest/internal/stats"
)

// cleaner is implemented by caches that need periodic eviction.
type cleaner interface {
	Cleanup()
}

// Orchestrator manages the spline import pipeline.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	cache  cache.Cache
	ps     *pathstore.Client
	window *stats.Window
	log    *slog.Logger
	cfg    config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. ps may be nil when persistence is
// disabled.
func NewOrchestrator(cfg config.Config, c cache.Cache, ps *pathstore.Client, log *slog.Logger) *Orchestrator {
	if c == nil {
		c = cache.NullCache{}
	}
	return &Orchestrator{
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, cfg.MaxQueueSize),
		cache:  c,
		ps:     ps,
		window: stats.NewWindow(cfg.StatsWindow),
		log:    log,
		cfg:    cfg,
	}
}

// newWorker avoids handing the worker a typed nil store.
func (o *Orchestrator) newWorker() *Worker {
	var store SplineStore
	if o.ps != nil {
		store = o.ps
	}
	return NewWorker(o.cache, store, o.window, o.log, o.cfg.CacheTTL, o.cfg.MaxConcurrentStore)
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.cfg.WorkerCount; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := o.newWorker()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					metrics.QueueDepth.Set(float64(len(o.queue)))
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
				if c, ok := o.cache.(cleaner); ok {
					c.Cleanup()
				}
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		metrics.QueueDepth.Set(float64(len(o.queue)))
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Stats returns import latency and outcome counts for the rolling window.
func (o *Orchestrator) Stats() stats.Snapshot {
	return o.window.Snapshot()
}

// PathstoreClient returns the pathstore client for direct use by API
// handlers, or nil when persistence is disabled.
func (o *Orchestrator) PathstoreClient() *pathstore.Client {
	return o.ps
}
