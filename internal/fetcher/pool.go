package fetcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tiktokgraph/pkg/graph"
	"tiktokgraph/pkg/logger"
)

// Lookup resolves the node of one handle
type Lookup func(ctx context.Context, handle string) (graph.Node, error)

// Job is a single user info lookup
type Job struct {
	Index  int
	Handle string
}

// Result is the outcome of a Job
type Result struct {
	Job      Job
	Node     graph.Node
	Error    error
	Duration time.Duration
}

// WorkerPool resolves handles with a fixed number of workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	lookup      Lookup
	logger      logger.Logger
}

// NewWorkerPool creates a pool bound to ctx. Workers stop taking jobs once
// ctx is cancelled.
func NewWorkerPool(ctx context.Context, numWorkers int, lookup Lookup, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		lookup:      lookup,
		logger:      log,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting lookup pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for running jobs and closes Results
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// Submit queues a job
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("lookup pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		result := Result{Job: job}
		if err := wp.ctx.Err(); err != nil {
			result.Error = err
		} else {
			start := time.Now()
			result.Node, result.Error = wp.lookup(wp.ctx, job.Handle)
			result.Duration = time.Since(start)
		}

		if result.Error != nil {
			wp.logger.DebugWithFields("Lookup failed", map[string]interface{}{
				"worker_id": id,
				"handle":    job.Handle,
				"error":     result.Error.Error(),
			})
		}

		// results are always delivered so Resolve can account for every job
		wp.resultQueue <- result
	}
}

// Resolve looks up every handle with numWorkers workers and returns the
// nodes in input order. The first lookup to fail cancels the rest and its
// error is returned.
func Resolve(ctx context.Context, handles []string, numWorkers int, lookup Lookup, log logger.Logger) (graph.Nodes, error) {
	if len(handles) == 0 {
		return graph.Nodes{}, nil
	}
	if numWorkers > len(handles) {
		numWorkers = len(handles)
	}

	pool := NewWorkerPool(ctx, numWorkers, lookup, log)
	pool.Start()

	go func() {
		defer pool.Stop()
		for i, handle := range handles {
			if err := pool.Submit(Job{Index: i, Handle: handle}); err != nil {
				return
			}
		}
	}()

	nodes := make(graph.Nodes, len(handles))
	var firstErr error
	seen := 0
	for result := range pool.Results() {
		seen++
		if result.Error != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("user info for %s: %w", result.Job.Handle, result.Error)
				pool.cancel()
			}
			continue
		}
		nodes[result.Job.Index] = result.Node
	}

	if firstErr != nil {
		return nil, firstErr
	}
	if seen < len(handles) {
		return nil, fmt.Errorf("lookup interrupted: %w", ctx.Err())
	}
	return nodes, nil
}
