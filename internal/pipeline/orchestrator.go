package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgallion1/pagewash/internal/config"
)

// Orchestrator manages the daemon's cleaning jobs: a bounded queue fed
// by the API, drained by worker goroutines that each run the full
// pipeline for one uploaded document.
type Orchestrator struct {
	jobs  *JobStore
	queue chan *Job
	cfg   config.Config
	log   *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the orchestrator. Call Start to launch
// workers.
func NewOrchestrator(cfg config.Config, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:  NewJobStore(cfg.JobTTL),
		queue: make(chan *Job, cfg.MaxQueueSize),
		cfg:   cfg,
		log:   log,
	}
}

// Start launches worker goroutines and the job store cleanup loop.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.processJob(workerCtx, job)
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
			}
		}
	}()
}

// Stop gracefully shuts down the workers.
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

// processJob stages the upload on disk, runs the pipeline with the
// stateless HTTP cleaner, and stores the merged document on the job.
func (o *Orchestrator) processJob(ctx context.Context, job *Job) {
	log := o.log.With("job_id", job.ID, "filename", job.Filename)

	dir, err := os.MkdirTemp("", "pagewash-job-*")
	if err != nil {
		log.Error("create job workspace", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "staging")
		return
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input"+filepath.Ext(job.Filename))
	if err := os.WriteFile(input, job.FileData(), 0o600); err != nil {
		log.Error("stage upload", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "staging")
		return
	}
	output := filepath.Join(dir, "output.pdf")

	cfg := o.cfg
	cfg.Input = input
	cfg.Output = output
	cfg.Density = job.Options.Density
	cfg.FirstPage = job.Options.FirstPage
	cfg.LastPage = job.Options.LastPage
	cfg.Clean = job.Options.Clean
	cfg.Recognize = job.Options.Recognize
	// The daemon never drives a browser; jobs always go through the
	// HTTP cleaner under the parallel strategy.
	cfg.Interactive = false
	cfg.TextSidecar = ""

	// Expand once; the same request list feeds both the progress total
	// and the run itself.
	reqs, err := ExpandRequests(cfg)
	if err != nil {
		log.Error("expand input", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "processing")
		return
	}
	job.SetTotalPages(len(reqs))

	job.SetStatus(StatusProcessing, "processing")
	err = ExecuteRequests(ctx, cfg, log, reqs, func(done, total int) {
		job.SetPagesDone(done)
	})
	if err != nil {
		log.Error("pipeline failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "processing")
		return
	}

	job.SetStatus(StatusAssembling, "reading output")
	result, err := os.ReadFile(output)
	if err != nil {
		log.Error("read output", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "assembling")
		return
	}
	job.SetResult(result)
	job.SetStatus(StatusCompleted, "done")
	log.Info("job complete", "bytes", len(result))
}
