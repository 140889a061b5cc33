package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeTask struct {
	Task
	failures int32
	calls    atomic.Int32
}

func newFakeTask(name string, failures int32) *fakeTask {
	return &fakeTask{Task: NewTask(TaskTypeCollectFeed, name), failures: failures}
}

func (f *fakeTask) Execute(ctx context.Context) error {
	if f.calls.Add(1) <= f.failures {
		return errors.New("upstream unavailable")
	}
	return nil
}

func testPool(workers int) *Pool {
	p := NewPool(workers)
	p.retryBase = time.Millisecond
	return p
}

func TestPoolRunsAllTasks(t *testing.T) {
	batch := []TaskInterface{newFakeTask("a", 0), newFakeTask("b", 0), newFakeTask("c", 0)}

	summary := testPool(2).Run(context.Background(), batch)

	if summary.Succeeded != 3 {
		t.Errorf("Expected 3 succeeded tasks, got %d", summary.Succeeded)
	}
	if len(summary.Failed) != 0 {
		t.Errorf("Expected no failures, got %v", summary.Failed)
	}
}

func TestPoolRetriesUntilSuccess(t *testing.T) {
	task := newFakeTask("flaky", 2)

	summary := testPool(1).Run(context.Background(), []TaskInterface{task})

	if summary.Succeeded != 1 {
		t.Errorf("Expected task to succeed after retries, got %+v", summary)
	}
	if task.calls.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", task.calls.Load())
	}
	if task.GetRetryCount() != 2 {
		t.Errorf("Expected retry count 2, got %d", task.GetRetryCount())
	}
}

func TestPoolGivesUpAfterMaxRetries(t *testing.T) {
	task := newFakeTask("broken", 100)

	summary := testPool(1).Run(context.Background(), []TaskInterface{task, newFakeTask("ok", 0)})

	if summary.Succeeded != 1 {
		t.Errorf("Expected 1 succeeded task, got %d", summary.Succeeded)
	}
	if len(summary.Failed) != 1 || summary.Failed[0] != "broken" {
		t.Errorf("Expected [broken] to fail, got %v", summary.Failed)
	}
	if task.calls.Load() != DefaultMaxRetries+1 {
		t.Errorf("Expected %d attempts, got %d", DefaultMaxRetries+1, task.calls.Load())
	}
}

func TestPoolCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := testPool(2).Run(ctx, []TaskInterface{newFakeTask("a", 0), newFakeTask("b", 0)})

	if len(summary.Failed) != 2 {
		t.Errorf("Expected both tasks to fail, got %+v", summary)
	}
}

func TestPoolEmptyBatch(t *testing.T) {
	summary := testPool(2).Run(context.Background(), nil)
	if summary.Succeeded != 0 || len(summary.Failed) != 0 {
		t.Errorf("Expected empty summary, got %+v", summary)
	}
}
