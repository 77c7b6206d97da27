package workqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// testTask is a simple task for testing.
type testTask struct {
	BaseTask
	executeFunc func(ctx context.Context, enqueuer TaskEnqueuer) error
}

func newTestTask(name string, kind TaskKind, fn func(ctx context.Context, enqueuer TaskEnqueuer) error) *testTask {
	return &testTask{
		BaseTask:    NewBaseTask(name, kind),
		executeFunc: fn,
	}
}

func (t *testTask) Execute(ctx context.Context, enqueuer TaskEnqueuer) error {
	if t.executeFunc != nil {
		return t.executeFunc(ctx, enqueuer)
	}
	return nil
}

func fastRetry() QueueOption {
	return WithRetryConfig(RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2,
	})
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestQueue_EnqueueAndComplete(t *testing.T) {
	q := New(zap.NewNop())

	var executed atomic.Bool
	q.Enqueue(newTestTask("generate credit_card", KindGenerate, func(ctx context.Context, enqueuer TaskEnqueuer) error {
		executed.Store(true)
		return nil
	}))

	if err := q.Wait(waitCtx(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !executed.Load() {
		t.Error("task was not executed")
	}
	if p := q.Progress(); p.Completed != 1 || p.Percentage() != 100 {
		t.Errorf("unexpected progress %+v", p)
	}
}

func TestQueue_TaskFailuresAreJoined(t *testing.T) {
	q := New(zap.NewNop(), WithStrategy(NewLaneStrategy(2, 1)))

	errA := errors.New("generator a failed")
	errB := errors.New("generator b failed")
	q.Enqueue(newTestTask("a", KindGenerate, func(ctx context.Context, _ TaskEnqueuer) error { return errA }))
	q.Enqueue(newTestTask("b", KindGenerate, func(ctx context.Context, _ TaskEnqueuer) error { return errB }))

	err := q.Wait(waitCtx(t))
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both errors, got %v", err)
	}
	if !q.HasFailures() {
		t.Error("expected HasFailures")
	}
}

func TestQueue_RetriesTransientErrors(t *testing.T) {
	q := New(zap.NewNop(), fastRetry())

	var mu sync.Mutex
	var last []TaskSnapshot
	q.SetOnUpdate(func(snapshots []TaskSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		last = snapshots
	})

	var calls atomic.Int32
	q.Enqueue(newTestTask("load sink", KindIO, func(ctx context.Context, _ TaskEnqueuer) error {
		if calls.Add(1) < 3 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	}))

	if err := q.Wait(waitCtx(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
	mu.Lock()
	defer mu.Unlock()
	if got := last[0].RetryCount; got != 2 {
		t.Errorf("expected retry count 2, got %d", got)
	}
}

func TestQueue_DoesNotRetryPermanentErrors(t *testing.T) {
	q := New(zap.NewNop(), fastRetry())

	var calls atomic.Int32
	q.Enqueue(newTestTask("load sink", KindIO, func(ctx context.Context, _ TaskEnqueuer) error {
		calls.Add(1)
		return errors.New("permission denied")
	}))

	if err := q.Wait(waitCtx(t)); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

// maxConcurrent runs n tasks of kind and reports the peak overlap.
func maxConcurrent(t *testing.T, q *Queue, kind TaskKind, n int) int32 {
	t.Helper()
	var running, peak atomic.Int32
	for i := 0; i < n; i++ {
		q.Enqueue(newTestTask("task", kind, func(ctx context.Context, _ TaskEnqueuer) error {
			cur := running.Add(1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			running.Add(-1)
			return nil
		}))
	}
	if err := q.Wait(waitCtx(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return peak.Load()
}

func TestLaneStrategy_Limits(t *testing.T) {
	tests := []struct {
		name        string
		maxGenerate int
		kind        TaskKind
		want        int32
	}{
		{name: "serialized generate", maxGenerate: 1, kind: KindGenerate, want: 1},
		{name: "three generate lanes", maxGenerate: 3, kind: KindGenerate, want: 3},
		{name: "io lane stays single", maxGenerate: 3, kind: KindIO, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := New(zap.NewNop(), WithStrategy(NewLaneStrategy(tt.maxGenerate, 1)))
			if got := maxConcurrent(t, q, tt.kind, 6); got != tt.want {
				t.Errorf("expected peak %d, got %d", tt.want, got)
			}
		})
	}
}

func TestLaneStrategy_LanesAreIndependent(t *testing.T) {
	s := NewSerializedStrategy()
	s.OnStart(KindGenerate)
	if s.CanStart(KindGenerate) {
		t.Error("generate lane should be full")
	}
	if !s.CanStart(KindIO) {
		t.Error("io lane should be free")
	}
	s.OnComplete(KindGenerate)
	s.OnComplete(KindGenerate)
	if !s.CanStart(KindGenerate) {
		t.Error("generate lane should be free again")
	}
}

func TestQueue_TaskEnqueuesFollowUps(t *testing.T) {
	q := New(zap.NewNop())

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, name)
	}

	q.Enqueue(newTestTask("generate", KindGenerate, func(ctx context.Context, enqueuer TaskEnqueuer) error {
		record("generate")
		enqueuer.Enqueue(newTestTask("export", KindIO, func(ctx context.Context, _ TaskEnqueuer) error {
			record("export")
			return nil
		}))
		return nil
	}))

	if err := q.Wait(waitCtx(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "generate" || order[1] != "export" {
		t.Errorf("unexpected order %v", order)
	}
}

func TestQueue_WaitCancelsRunningTasks(t *testing.T) {
	q := New(zap.NewNop())

	started := make(chan struct{})
	q.Enqueue(newTestTask("long", KindGenerate, func(ctx context.Context, _ TaskEnqueuer) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	q.Enqueue(newTestTask("pending", KindGenerate, nil))
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := q.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	p := q.Progress()
	if p.Cancelled != 2 {
		t.Errorf("expected 2 cancelled, got %+v", p)
	}

	// A cancelled queue ignores new work.
	q.Enqueue(newTestTask("late", KindIO, nil))
	if q.Progress().Total != 2 {
		t.Error("expected enqueue after cancel to be ignored")
	}
}

func TestQueue_OnUpdate(t *testing.T) {
	q := New(zap.NewNop())

	var mu sync.Mutex
	var last Progress
	q.SetOnUpdate(func(snapshots []TaskSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		last = ProgressOf(snapshots)
	})

	q.Enqueue(newTestTask("a", KindIO, nil))
	if err := q.Wait(waitCtx(t)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if last.Completed != 1 || last.Total != 1 {
		t.Errorf("unexpected final progress %+v", last)
	}
}

func TestQueue_MultipleBatches(t *testing.T) {
	q := New(zap.NewNop())

	for batch := 0; batch < 2; batch++ {
		q.Enqueue(newTestTask("batch", KindIO, nil))
		if err := q.Wait(waitCtx(t)); err != nil {
			t.Fatalf("batch %d: unexpected error: %v", batch, err)
		}
	}
	if q.Progress().Completed != 2 {
		t.Errorf("expected 2 completed, got %+v", q.Progress())
	}
}

func TestRetryConfig_Backoff(t *testing.T) {
	c := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, BackoffFactor: 2}
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{6, time.Second},
	}
	for _, tt := range tests {
		got := c.backoff(tt.retry)
		lo, hi := time.Duration(float64(tt.want)*0.9), time.Duration(float64(tt.want)*1.1)
		if got < lo || got > hi {
			t.Errorf("retry %d: backoff %s outside [%s, %s]", tt.retry, got, lo, hi)
		}
	}
}

func TestEmptyQueue(t *testing.T) {
	q := New(nil)
	if err := q.Wait(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if (Progress{}).Percentage() != 100 {
		t.Error("empty progress should be 100%")
	}
}

func TestTaskState_SetStatus(t *testing.T) {
	ts := NewTaskState(newTestTask("a", KindIO, nil))
	ts.SetStatus(TaskStatusRunning)
	if ts.StartedAt == nil {
		t.Error("expected StartedAt")
	}
	ts.SetStatus(TaskStatusFailed)
	ts.SetError(errors.New("x"))
	snap := ts.Snapshot()
	if snap.CompletedAt == nil || snap.Error != "x" || snap.Kind != KindIO {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}
