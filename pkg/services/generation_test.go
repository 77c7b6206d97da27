package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/assembler"
	"github.com/ekaya-inc/ekaya-datagen/pkg/export"
	"github.com/ekaya-inc/ekaya-datagen/pkg/generators"
	_ "github.com/ekaya-inc/ekaya-datagen/pkg/generators/loanrisk"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/params"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
	"github.com/ekaya-inc/ekaya-datagen/pkg/services/workqueue"
)

// sparseGenerator finds an empty population for every seed below emptyBelow.
type sparseGenerator struct {
	emptyBelow int64
}

func (g *sparseGenerator) Info() generators.Info {
	return generators.Info{Key: "test_sparse", DisplayName: "Sparse"}
}

func (g *sparseGenerator) Generate(ctx context.Context, rng *randstream.Stream) (*models.Dataset, error) {
	ds := models.NewDataset("test_sparse", rng.Seed())
	roots := 3
	if rng.Seed() < g.emptyBelow {
		roots = 0
	}
	err := assembler.New(ds, nil).
		Stage("roots", func(ctx context.Context, ds *models.Dataset) error {
			t := models.NewTable("roots", models.Col("ID", models.ColumnTypeInt))
			for i := 0; i < roots; i++ {
				t.Append(i)
			}
			ds.Add(t)
			return nil
		}).
		Stage("children", func(ctx context.Context, ds *models.Dataset) error {
			return assembler.RequireNonEmpty(ds, "children", "roots", roots)
		}).
		Run(ctx)
	return generators.Finish(ds, err)
}

// stallGenerator blocks until its context ends.
type stallGenerator struct{}

func (stallGenerator) Info() generators.Info {
	return generators.Info{Key: "test_stall", DisplayName: "Stall"}
}

func (stallGenerator) Generate(ctx context.Context, rng *randstream.Stream) (*models.Dataset, error) {
	ds := models.NewDataset("test_stall", rng.Seed())
	err := assembler.New(ds, nil).
		Stage("wait", func(ctx context.Context, ds *models.Dataset) error {
			<-ctx.Done()
			return ctx.Err()
		}).
		Run(ctx)
	return generators.Finish(ds, err)
}

func init() {
	generators.Register(generators.Registration{
		Info:       generators.Info{Key: "test_sparse", DisplayName: "Sparse"},
		Parameters: []params.Spec{params.Integer("empty_below", "Empty Below", 0, 1000, 0)},
		Factory: func(values params.Values, _ *zap.Logger) (generators.Generator, error) {
			return &sparseGenerator{emptyBelow: int64(values.Int("empty_below"))}, nil
		},
	})
	generators.Register(generators.Registration{
		Info: generators.Info{Key: "test_stall", DisplayName: "Stall"},
		Factory: func(params.Values, *zap.Logger) (generators.Generator, error) {
			return stallGenerator{}, nil
		},
	})
}

type fakeSink struct {
	mu        sync.Mutex
	failFirst int
	failErr   error
	calls     int
	loaded    []string
}

func (s *fakeSink) Load(ctx context.Context, ds *models.Dataset) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failFirst {
		return 0, s.failErr
	}
	s.loaded = append(s.loaded, ds.Generator)
	return int64(ds.RowCount()), nil
}

func (s *fakeSink) Ping(ctx context.Context) error { return nil }
func (s *fakeSink) Close() error                   { return nil }

type fakeRunRepository struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*models.GenerationRun
}

func newFakeRunRepository() *fakeRunRepository {
	return &fakeRunRepository{runs: make(map[uuid.UUID]*models.GenerationRun)}
}

func (r *fakeRunRepository) Create(ctx context.Context, run *models.GenerationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *run
	r.runs[run.ID] = &cp
	return nil
}

func (r *fakeRunRepository) Complete(ctx context.Context, run *models.GenerationRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.runs[run.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	existing.Seed = run.Seed
	existing.Status = run.Status
	existing.TableCounts = run.TableCounts
	existing.RowCount = run.RowCount
	existing.Archive = run.Archive
	existing.Error = run.Error
	now := time.Now().UTC()
	existing.FinishedAt = &now
	return nil
}

func (r *fakeRunRepository) Get(ctx context.Context, id uuid.UUID) (*models.GenerationRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *run
	return &cp, nil
}

func (r *fakeRunRepository) ListRecent(ctx context.Context, generator string, limit int) ([]*models.GenerationRun, error) {
	return nil, nil
}

func (r *fakeRunRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func seed(v int64) *int64 { return &v }

func testOptions(formats ...string) GenerationOptions {
	return GenerationOptions{
		Seed:        seed(100),
		Concurrency: 2,
		Timeout:     time.Minute,
		Formats:     formats,
		IORetry: workqueue.RetryConfig{
			MaxRetries:     3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			BackoffFactor:  2,
		},
	}
}

func filesWithExt(paths []string, ext string) []string {
	var out []string
	for _, p := range paths {
		if filepath.Ext(p) == ext {
			out = append(out, p)
		}
	}
	return out
}

func TestGenerationService_Run_ExportsLoadsAndRecords(t *testing.T) {
	dir := t.TempDir()
	snk := &fakeSink{}
	runs := newFakeRunRepository()

	svc := NewGenerationService(testOptions(export.FormatCSV, export.FormatZIP), GenerationDeps{
		Writer: export.NewWriter(dir, zap.NewNop()),
		Sink:   snk,
		Runs:   runs,
	}, zap.NewNop())

	results, err := svc.Run(context.Background(), []GenerationRequest{
		{Generator: "loan_risk", Overrides: map[string]any{"num_companies": 10}},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, models.GenerationRunSucceeded, r.Status)
	assert.Equal(t, int64(100), r.Seed)
	assert.Equal(t, 1, r.Attempts)
	assert.False(t, r.CacheHit)
	assert.NotEmpty(t, r.Counts)

	total := 0
	for _, n := range r.Counts {
		total += n
	}
	assert.Equal(t, int64(total), r.SinkRows)
	assert.Equal(t, []string{"loan_risk"}, snk.loaded)

	require.Len(t, filesWithExt(r.Files, ".zip"), 1)
	assert.Len(t, filesWithExt(r.Files, ".csv"), len(r.Counts))
	for _, f := range r.Files {
		_, statErr := os.Stat(f)
		assert.NoError(t, statErr, f)
	}

	run, err := runs.Get(context.Background(), r.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationRunSucceeded, run.Status)
	assert.Equal(t, total, run.RowCount)
	assert.Equal(t, filesWithExt(r.Files, ".zip")[0], run.Archive)
	assert.Nil(t, run.Error)
	assert.NotNil(t, run.FinishedAt)
}

func TestGenerationService_Run_ConfigurationErrorsFailFast(t *testing.T) {
	snk := &fakeSink{}
	runs := newFakeRunRepository()
	svc := NewGenerationService(testOptions(), GenerationDeps{Sink: snk, Runs: runs}, nil)

	results, err := svc.Run(context.Background(), []GenerationRequest{
		{Generator: "loan_risk", Overrides: map[string]any{"num_companies": 10}},
		{Generator: "loan_risk", Overrides: map[string]any{"num_companies": 5}},
		{Generator: "no_such_generator"},
	})
	require.Error(t, err)
	assert.Nil(t, results)
	assert.ErrorIs(t, err, apperrors.ErrConfiguration)
	assert.ErrorIs(t, err, apperrors.ErrUnknownGenerator)

	// Nothing ran, not even the valid request.
	assert.Zero(t, snk.calls)
	assert.Empty(t, runs.runs)
}

func TestGenerationService_Run_RetryEmptyReseeds(t *testing.T) {
	opts := testOptions()
	opts.RetryEmpty = 2
	svc := NewGenerationService(opts, GenerationDeps{}, nil)

	results, err := svc.Run(context.Background(), []GenerationRequest{
		{Generator: "test_sparse", Overrides: map[string]any{"empty_below": 102}},
	})
	require.NoError(t, err)

	r := results[0]
	assert.Equal(t, models.GenerationRunSucceeded, r.Status)
	assert.Equal(t, int64(102), r.Seed)
	assert.Equal(t, 3, r.Attempts)
	assert.Equal(t, map[string]int{"roots": 3}, r.Counts)
}

func TestGenerationService_Run_PartialWhenRetriesExhausted(t *testing.T) {
	dir := t.TempDir()
	snk := &fakeSink{}
	runs := newFakeRunRepository()
	opts := testOptions(export.FormatCSV)
	opts.RetryEmpty = 1

	svc := NewGenerationService(opts, GenerationDeps{
		Writer: export.NewWriter(dir, nil),
		Sink:   snk,
		Runs:   runs,
	}, nil)

	results, err := svc.Run(context.Background(), []GenerationRequest{
		{Generator: "test_sparse", Overrides: map[string]any{"empty_below": 1000}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrEmptyPopulation)

	r := results[0]
	assert.Equal(t, models.GenerationRunPartial, r.Status)
	assert.Equal(t, 2, r.Attempts)
	assert.Equal(t, int64(101), r.Seed)
	assert.Equal(t, map[string]int{"roots": 0}, r.Counts)

	var empty *apperrors.EmptyPopulationError
	require.ErrorAs(t, r.Err, &empty)
	assert.Equal(t, "children", empty.Stage)

	// The completed tables are still published.
	assert.Len(t, filesWithExt(r.Files, ".csv"), 1)
	assert.Equal(t, []string{"test_sparse"}, snk.loaded)

	run, err := runs.Get(context.Background(), r.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationRunPartial, run.Status)
	require.NotNil(t, run.Error)
	assert.Contains(t, *run.Error, "roots")
}

func TestGenerationService_Run_Timeout(t *testing.T) {
	opts := testOptions()
	opts.Timeout = 50 * time.Millisecond
	runs := newFakeRunRepository()
	svc := NewGenerationService(opts, GenerationDeps{Runs: runs}, nil)

	results, err := svc.Run(context.Background(), []GenerationRequest{
		{Generator: "test_stall"},
		{Generator: "test_sparse"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrGenerationTimeout)

	stalled := results[0]
	assert.Equal(t, models.GenerationRunFailed, stalled.Status)
	var timeout *apperrors.GenerationTimeout
	require.ErrorAs(t, stalled.Err, &timeout)
	assert.Equal(t, "wait", timeout.Stage)
	assert.ErrorIs(t, stalled.Err, context.DeadlineExceeded)

	// A slow generator does not affect the others.
	assert.Equal(t, models.GenerationRunSucceeded, results[1].Status)

	run, err := runs.Get(context.Background(), stalled.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationRunFailed, run.Status)
}

func TestGenerationService_Run_SinkRetriesTransientFailures(t *testing.T) {
	snk := &fakeSink{failFirst: 1, failErr: errors.New("write tcp: connection reset by peer")}
	svc := NewGenerationService(testOptions(), GenerationDeps{Sink: snk}, nil)

	results, err := svc.Run(context.Background(), []GenerationRequest{{Generator: "test_sparse"}})
	require.NoError(t, err)

	r := results[0]
	assert.Equal(t, models.GenerationRunSucceeded, r.Status)
	assert.Equal(t, int64(3), r.SinkRows)
	assert.Equal(t, 2, snk.calls)
}

func TestGenerationService_Run_SinkPermanentFailure(t *testing.T) {
	snk := &fakeSink{failFirst: 10, failErr: errors.New("permission denied for schema synthetic")}
	runs := newFakeRunRepository()
	svc := NewGenerationService(testOptions(), GenerationDeps{Sink: snk, Runs: runs}, nil)

	results, err := svc.Run(context.Background(), []GenerationRequest{{Generator: "test_sparse"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")

	r := results[0]
	assert.Equal(t, models.GenerationRunFailed, r.Status)
	assert.Equal(t, 1, snk.calls)

	run, err := runs.Get(context.Background(), r.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationRunFailed, run.Status)
}

func TestGenerationService_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewGenerationService(testOptions(), GenerationDeps{}, nil)
	results, err := svc.Run(ctx, []GenerationRequest{{Generator: "test_stall"}})
	require.Error(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.GenerationRunFailed, results[0].Status)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerationService_Run_UnseededRunsAreReplayable(t *testing.T) {
	runs := newFakeRunRepository()
	generate := func(opts GenerationOptions) *GenerationResult {
		t.Helper()
		svc := NewGenerationService(opts, GenerationDeps{
			Writer: export.NewWriter(t.TempDir(), nil),
			Runs:   runs,
		}, nil)
		results, err := svc.Run(context.Background(), []GenerationRequest{
			{Generator: "loan_risk", Overrides: map[string]any{"num_companies": 10}},
		})
		require.NoError(t, err)
		return results[0]
	}

	opts := testOptions(export.FormatCSV)
	opts.Seed = nil
	first, second := generate(opts), generate(opts)
	assert.NotEqual(t, first.Seed, second.Seed)

	run, err := runs.Get(context.Background(), first.RunID)
	require.NoError(t, err)
	assert.Equal(t, first.Seed, run.Seed)

	opts.Seed = seed(first.Seed)
	replay := generate(opts)
	assert.Equal(t, first.Seed, replay.Seed)
	assert.Equal(t, first.Counts, replay.Counts)

	csvs := func(r *GenerationResult) map[string][]byte {
		out := make(map[string][]byte)
		for _, f := range filesWithExt(r.Files, ".csv") {
			data, err := os.ReadFile(f)
			require.NoError(t, err)
			out[filepath.Base(f)] = data
		}
		return out
	}
	want := csvs(first)
	require.NotEmpty(t, want)
	assert.Equal(t, want, csvs(replay))
}

func TestGenerationService_Run_ReportsProgress(t *testing.T) {
	var mu sync.Mutex
	var seen []workqueue.Progress
	opts := testOptions()
	opts.OnProgress = func(p workqueue.Progress) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, p)
	}
	snk := &fakeSink{}
	svc := NewGenerationService(opts, GenerationDeps{Sink: snk}, nil)

	_, err := svc.Run(context.Background(), []GenerationRequest{{Generator: "test_sparse"}})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	last := seen[len(seen)-1]
	// The generate task and its sink load.
	assert.Equal(t, 2, last.Total)
	assert.Equal(t, 2, last.Completed)
	assert.Equal(t, 100, last.Percentage())
	assert.True(t, slices.ContainsFunc(seen, func(p workqueue.Progress) bool { return p.Running > 0 }))
}
