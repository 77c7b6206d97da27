package workqueue

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/retry"
)

// RetryConfig bounds how often a task that fails with a transient error is
// run again, and how long the queue waits between runs.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig retries transient failures after 500ms, 1s and 2s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
	}
}

// backoff returns initial * factor^(n-1), capped at MaxBackoff, with
// ±10% jitter. n counts retries from 1.
func (c RetryConfig) backoff(n int) time.Duration {
	d := float64(c.InitialBackoff) * math.Pow(c.BackoffFactor, float64(n-1))
	d = math.Min(d, float64(c.MaxBackoff))
	return time.Duration(d * (0.9 + 0.2*rand.Float64()))
}

// Queue runs tasks in kind lanes. Tasks may enqueue follow-ups while they
// run; Wait returns once every task, follow-ups included, has finished.
type Queue struct {
	mu       sync.Mutex
	states   []*TaskState
	stopped  bool
	lanes    ConcurrencyStrategy
	retry    RetryConfig
	onUpdate func([]TaskSnapshot)

	// idle is closed whenever no task is pending or running.
	idle    chan struct{}
	running sync.WaitGroup

	ctx    context.Context
	stop   context.CancelFunc
	logger *zap.Logger
}

type QueueOption func(*Queue)

// WithStrategy replaces the default one-task-per-kind lanes.
func WithStrategy(strategy ConcurrencyStrategy) QueueOption {
	return func(q *Queue) {
		if strategy != nil {
			q.lanes = strategy
		}
	}
}

func WithRetryConfig(config RetryConfig) QueueOption {
	return func(q *Queue) {
		q.retry = config
	}
}

// New returns an empty queue. Without options it runs one task per kind at a
// time and retries with DefaultRetryConfig.
func New(logger *zap.Logger, opts ...QueueOption) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, stop := context.WithCancel(context.Background())
	q := &Queue{
		lanes:  NewSerializedStrategy(),
		retry:  DefaultRetryConfig(),
		idle:   make(chan struct{}),
		ctx:    ctx,
		stop:   stop,
		logger: logger.Named("workqueue"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// SetOnUpdate registers a callback that receives every state change. It runs
// under the queue lock and must not call back into the queue.
func (q *Queue) SetOnUpdate(callback func([]TaskSnapshot)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onUpdate = callback
}

// Enqueue schedules task. It is ignored once the queue has been cancelled.
func (q *Queue) Enqueue(task Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		q.logger.Warn("Dropping task enqueued after cancel", zap.String("task", task.Name()))
		return
	}

	// A new batch after an idle period needs a fresh idle signal.
	select {
	case <-q.idle:
		q.idle = make(chan struct{})
	default:
	}

	q.states = append(q.states, NewTaskState(task))
	q.logger.Debug("Task enqueued",
		zap.String("task", task.Name()),
		zap.String("kind", string(task.Kind())))

	q.publishLocked()
	q.dispatchLocked()
}

// dispatchLocked starts pending tasks, oldest first, while their lane has
// room.
func (q *Queue) dispatchLocked() {
	if q.stopped {
		return
	}
	for _, ts := range q.states {
		if ts.GetStatus() != TaskStatusPending || !q.lanes.CanStart(ts.Task.Kind()) {
			continue
		}
		q.lanes.OnStart(ts.Task.Kind())
		ts.SetStatus(TaskStatusRunning)
		q.publishLocked()

		q.running.Add(1)
		go q.run(ts)
	}
}

// run executes ts until it succeeds, fails permanently or runs out of
// retries.
func (q *Queue) run(ts *TaskState) {
	defer q.running.Done()
	name := ts.Task.Name()

	var err error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			wait := q.retry.backoff(attempt)
			q.logger.Info("Retrying task",
				zap.String("task", name),
				zap.Int("retry", attempt),
				zap.Duration("backoff", wait))
			select {
			case <-q.ctx.Done():
				q.finish(ts, q.ctx.Err())
				return
			case <-time.After(wait):
			}
		}

		if err = ts.Task.Execute(q.ctx, q); err == nil {
			break
		}
		if !retry.IsRetryable(err) {
			break
		}
		if attempt >= q.retry.MaxRetries {
			q.logger.Error("Task out of retries",
				zap.String("task", name),
				zap.Int("retries", ts.GetRetryCount()),
				zap.Error(err))
			break
		}
		ts.IncrementRetryCount()
		q.logger.Warn("Transient task failure", zap.String("task", name), zap.Error(err))
	}
	q.finish(ts, err)
}

// finish records the outcome of ts, frees its lane and starts whatever can
// run next.
func (q *Queue) finish(ts *TaskState, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.lanes.OnComplete(ts.Task.Kind())
	switch {
	case err == nil:
		ts.SetStatus(TaskStatusCompleted)
		q.logger.Debug("Task completed",
			zap.String("task", ts.Task.Name()),
			zap.Int("retries", ts.GetRetryCount()))
	case errors.Is(err, context.Canceled):
		ts.SetStatus(TaskStatusCancelled)
		q.logger.Info("Task cancelled", zap.String("task", ts.Task.Name()))
	default:
		ts.SetError(err)
		ts.SetStatus(TaskStatusFailed)
		q.logger.Error("Task failed", zap.String("task", ts.Task.Name()), zap.Error(err))
	}

	q.publishLocked()
	if q.busyLocked() {
		q.dispatchLocked()
		return
	}
	q.signalIdleLocked()
}

func (q *Queue) busyLocked() bool {
	for _, ts := range q.states {
		if s := ts.GetStatus(); s == TaskStatusPending || s == TaskStatusRunning {
			return true
		}
	}
	return false
}

func (q *Queue) signalIdleLocked() {
	select {
	case <-q.idle:
	default:
		close(q.idle)
	}
}

func (q *Queue) publishLocked() {
	if q.onUpdate != nil {
		q.onUpdate(q.snapshotsLocked())
	}
}

func (q *Queue) snapshotsLocked() []TaskSnapshot {
	out := make([]TaskSnapshot, len(q.states))
	for i, ts := range q.states {
		out[i] = ts.Snapshot()
	}
	return out
}

// Wait blocks until the queue is idle and returns the failed tasks' errors
// joined. If ctx ends first it cancels the queue, waits for running tasks to
// return and reports ctx.Err().
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	if len(q.states) == 0 {
		q.mu.Unlock()
		return nil
	}
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
	case <-ctx.Done():
		q.Cancel()
		q.running.Wait()
		return ctx.Err()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	var errs []error
	for _, ts := range q.states {
		if ts.GetStatus() == TaskStatusFailed {
			errs = append(errs, ts.GetError())
		}
	}
	return errors.Join(errs...)
}

// Cancel stops the queue: running tasks see their context end, pending tasks
// are marked cancelled and later Enqueue calls are dropped.
func (q *Queue) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	q.stopped = true
	q.stop()
	q.logger.Info("Queue cancelled")

	for _, ts := range q.states {
		if ts.GetStatus() == TaskStatusPending {
			ts.SetStatus(TaskStatusCancelled)
		}
	}
	q.publishLocked()
	if !q.busyLocked() {
		q.signalIdleLocked()
	}
}

// Close releases the task context once the queue is drained.
func (q *Queue) Close() {
	q.stop()
}

// HasFailures reports whether any task ended in failure.
func (q *Queue) HasFailures() bool {
	return q.Progress().Failed > 0
}

// Progress summarizes the current task states.
func (q *Queue) Progress() Progress {
	q.mu.Lock()
	defer q.mu.Unlock()
	return ProgressOf(q.snapshotsLocked())
}

// ProgressOf summarizes a snapshot list, such as the one passed to SetOnUpdate.
func ProgressOf(snapshots []TaskSnapshot) Progress {
	p := Progress{Total: len(snapshots)}
	for _, s := range snapshots {
		switch s.Status {
		case TaskStatusPending:
			p.Pending++
		case TaskStatusRunning:
			p.Running++
		case TaskStatusCompleted:
			p.Completed++
		case TaskStatusFailed:
			p.Failed++
		case TaskStatusCancelled:
			p.Cancelled++
		}
	}
	return p
}

// Progress counts tasks by status.
type Progress struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// Percentage returns the share of finished tasks, 0 to 100.
func (p Progress) Percentage() int {
	if p.Total == 0 {
		return 100
	}
	return (p.Completed + p.Failed + p.Cancelled) * 100 / p.Total
}
