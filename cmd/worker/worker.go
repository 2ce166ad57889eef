package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taxledger/pkg/logger"
)

// Job is a periodic task. Run returns how many rows it touched.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) (int64, error)
}

// Worker runs each job on its own ticker until the context ends.
type Worker struct {
	jobs []Job
	log  *logger.Logger
}

// NewWorker creates a worker.
func NewWorker(log *logger.Logger, jobs []Job) *Worker {
	return &Worker{
		jobs: jobs,
		log:  log.WithComponent("worker"),
	}
}

// Run starts every job, runs it once immediately, and blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range w.jobs {
		if job.Interval <= 0 {
			w.log.Warnw("job disabled", "job", job.Name)
			continue
		}
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			w.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (w *Worker) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	w.runOnce(ctx, job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx, job)
		}
	}
}

// runOnce executes one pass. A panic or error in one job never stops the others.
func (w *Worker) runOnce(ctx context.Context, job Job) (n int64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
		if err != nil && ctx.Err() == nil {
			w.log.Errorw("job failed", "job", job.Name, "error", err)
		}
	}()

	start := time.Now()
	n, err = job.Run(ctx)
	if err == nil && n > 0 {
		w.log.Infow("job completed", "job", job.Name, "count", n, "duration", time.Since(start))
	}
	return n, err
}
