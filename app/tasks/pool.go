package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

var _ PoolInterface = (*Pool)(nil)

const (
	defaultTaskTimeout = 5 * time.Minute
	maxRetryDelay      = 30 * time.Second
)

// Summary reports how a batch ended.
type Summary struct {
	Succeeded int
	Failed    []string // source names of tasks that exhausted their retries
}

// Pool executes a batch of tasks with a fixed number of workers. Failed
// tasks are retried with exponential backoff until their retry budget runs
// out.
type Pool struct {
	workerCount int
	retryBase   time.Duration
	taskTimeout time.Duration
}

func NewPool(workerCount int) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Pool{
		workerCount: workerCount,
		retryBase:   time.Second,
		taskTimeout: defaultTaskTimeout,
	}
}

type batchState struct {
	ctx     context.Context
	queue   chan TaskInterface
	pending sync.WaitGroup
	mu      sync.Mutex
	summary Summary
}

// Run blocks until every task has succeeded, failed for good or the context
// is cancelled.
func (p *Pool) Run(ctx context.Context, batch []TaskInterface) Summary {
	if len(batch) == 0 {
		return Summary{}
	}

	state := &batchState{
		ctx:   ctx,
		queue: make(chan TaskInterface, len(batch)),
	}

	state.pending.Add(len(batch))
	for _, task := range batch {
		state.queue <- task
	}

	var workers sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		workers.Add(1)
		go func(id int) {
			defer workers.Done()
			p.worker(id, state)
		}(i)
	}

	state.pending.Wait()
	close(state.queue)
	workers.Wait()

	return state.summary
}

func (p *Pool) worker(id int, state *batchState) {
	for task := range state.queue {
		p.executeTask(id, task, state)
	}
}

func (p *Pool) executeTask(workerID int, task TaskInterface, state *batchState) {
	if err := state.ctx.Err(); err != nil {
		p.finish(task, state, err)
		return
	}

	task.Start()

	taskCtx, cancel := context.WithTimeout(state.ctx, p.taskTimeout)
	err := task.Execute(taskCtx)
	cancel()

	if err == nil {
		p.finish(task, state, nil)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() || state.ctx.Err() != nil {
		p.finish(task, state, err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := p.retryBase * time.Duration(1<<uint(task.GetRetryCount()-1))
	if retryDelay > maxRetryDelay {
		retryDelay = maxRetryDelay
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-state.ctx.Done():
			p.finish(task, state, state.ctx.Err())
		case <-timer.C:
			state.queue <- task
		}
	}()
}

func (p *Pool) finish(task TaskInterface, state *batchState, err error) {
	state.mu.Lock()
	if err == nil {
		state.summary.Succeeded++
	} else {
		state.summary.Failed = append(state.summary.Failed, task.GetSourceName())
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
	}
	state.mu.Unlock()

	state.pending.Done()
}
