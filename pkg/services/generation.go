package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/adapters/sink"
	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/cache"
	"github.com/ekaya-inc/ekaya-datagen/pkg/export"
	"github.com/ekaya-inc/ekaya-datagen/pkg/generators"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/params"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
	"github.com/ekaya-inc/ekaya-datagen/pkg/repositories"
	"github.com/ekaya-inc/ekaya-datagen/pkg/retry"
	"github.com/ekaya-inc/ekaya-datagen/pkg/services/workqueue"
)

// GenerationOptions are the runner settings taken from configuration.
type GenerationOptions struct {
	// Seed is the base seed. Nil draws a fresh seed for every generator; the
	// drawn seed is recorded on the result and in the run log.
	Seed        *int64
	Concurrency int
	Timeout     time.Duration
	// RetryEmpty is how many times a run that hits an empty population is
	// repeated with the next seed.
	RetryEmpty int
	Formats    []string
	// IORetry governs retries of transient export and sink failures. The
	// zero value means workqueue.DefaultRetryConfig.
	IORetry workqueue.RetryConfig
	// OnProgress receives the batch progress after every task state change.
	// It must not block.
	OnProgress func(workqueue.Progress)
}

// GenerationDeps are the optional collaborators of the runner. Nil members
// disable the corresponding step.
type GenerationDeps struct {
	Writer *export.Writer
	Sink   sink.Sink
	Cache  *cache.DatasetCache
	Runs   repositories.GenerationRunRepository
}

// GenerationRequest names one generator and its parameter overrides.
type GenerationRequest struct {
	Generator string
	Overrides map[string]any
}

// GenerationResult reports one generator's run.
type GenerationResult struct {
	RunID     uuid.UUID
	Generator string
	// Seed is the seed that produced the dataset, after any reseeding.
	Seed     int64
	Attempts int
	Status   models.GenerationRunStatus
	Counts   map[string]int
	Files    []string
	SinkRows int64
	CacheHit bool
	Err      error

	startedAt time.Time
	values    params.Values
	// ioErrs holds the latest error of each publishing task that has not
	// yet succeeded; the queue may still retry it.
	ioErrs map[string]error
	mu     sync.Mutex
}

func (r *GenerationResult) setIOErr(task string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.ioErrs, task)
		return
	}
	if r.ioErrs == nil {
		r.ioErrs = make(map[string]error)
	}
	r.ioErrs[task] = err
}

func (r *GenerationResult) addFiles(paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Files = append(r.Files, paths...)
}

func (r *GenerationResult) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Err = errors.Join(r.Err, err)
	if r.Status != models.GenerationRunPartial {
		r.Status = models.GenerationRunFailed
	}
}

// GenerationService runs generators as whole pipelines on a work queue and
// publishes each dataset to files, a database sink and the archive cache.
type GenerationService struct {
	opts   GenerationOptions
	deps   GenerationDeps
	logger *zap.Logger
}

func NewGenerationService(opts GenerationOptions, deps GenerationDeps, logger *zap.Logger) *GenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.IORetry == (workqueue.RetryConfig{}) {
		opts.IORetry = workqueue.DefaultRetryConfig()
	}
	return &GenerationService{opts: opts, deps: deps, logger: logger.Named("generation")}
}

// Run builds every requested generator, failing before any generation if a
// configuration is invalid, then generates and publishes them. Results are
// returned in request order; the error joins every failed or partial run.
func (s *GenerationService) Run(ctx context.Context, requests []GenerationRequest) ([]*GenerationResult, error) {
	tasks := make([]*generateTask, 0, len(requests))
	var configErrs []error
	for _, req := range requests {
		task, err := s.newGenerateTask(req)
		if err != nil {
			configErrs = append(configErrs, err)
			continue
		}
		tasks = append(tasks, task)
	}
	if err := errors.Join(configErrs...); err != nil {
		return nil, err
	}

	q := workqueue.New(s.logger,
		workqueue.WithStrategy(workqueue.NewLaneStrategy(s.opts.Concurrency, 2)),
		workqueue.WithRetryConfig(s.opts.IORetry))
	defer q.Close()
	q.SetOnUpdate(func(snapshots []workqueue.TaskSnapshot) {
		p := workqueue.ProgressOf(snapshots)
		s.logger.Debug("Progress",
			zap.Int("percent", p.Percentage()),
			zap.Int("running", p.Running),
			zap.Int("total", p.Total))
		if s.opts.OnProgress != nil {
			s.opts.OnProgress(p)
		}
	})

	results := make([]*GenerationResult, len(tasks))
	for i, task := range tasks {
		results[i] = task.result
		s.startRun(ctx, task.result)
		q.Enqueue(task)
	}

	// Task failures are already recorded on the results.
	_ = q.Wait(ctx)
	s.logBatch(q)
	if err := ctx.Err(); err != nil {
		for _, r := range results {
			if r.Status == models.GenerationRunRunning {
				r.fail(err)
			}
		}
	}

	var errs []error
	for _, r := range results {
		s.completeRun(r)
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Generator, r.Err))
		}
	}
	return results, errors.Join(errs...)
}

func (s *GenerationService) logBatch(q *workqueue.Queue) {
	p := q.Progress()
	fields := []zap.Field{
		zap.Int("tasks", p.Total),
		zap.Int("completed", p.Completed),
		zap.Int("failed", p.Failed),
		zap.Int("cancelled", p.Cancelled),
	}
	if q.HasFailures() {
		s.logger.Warn("Batch finished with failed tasks", fields...)
		return
	}
	s.logger.Info("Batch finished", fields...)
}

// seedStream returns the configured seed's stream, or one seeded from the
// operating system when no seed is configured.
func (s *GenerationService) seedStream(generator string) *randstream.Stream {
	if s.opts.Seed != nil {
		return randstream.New(*s.opts.Seed)
	}
	rng := randstream.NewUnseeded()
	s.logger.Info("No seed configured, drew one",
		zap.String("generator", generator),
		zap.Int64("seed", rng.Seed()))
	return rng
}

// caching reports whether archives are cached. Unseeded runs never repeat,
// so they skip the cache.
func (s *GenerationService) caching() bool {
	return s.deps.Cache != nil && s.opts.Seed != nil
}

func (s *GenerationService) newGenerateTask(req GenerationRequest) (*generateTask, error) {
	reg, ok := generators.Lookup(req.Generator)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownGenerator, req.Generator)
	}
	values, err := params.Resolve(reg.Parameters, req.Overrides)
	if err != nil {
		return nil, fmt.Errorf("generator %s: %w", req.Generator, err)
	}
	gen, err := reg.Factory(values, s.logger)
	if err != nil {
		return nil, fmt.Errorf("generator %s: %w", req.Generator, err)
	}

	rng := s.seedStream(req.Generator)
	return &generateTask{
		BaseTask:  workqueue.NewBaseTask("generate "+req.Generator, workqueue.KindGenerate),
		service:   s,
		generator: gen,
		seed:      rng.Seed(),
		result: &GenerationResult{
			RunID:     uuid.New(),
			Generator: req.Generator,
			Seed:      rng.Seed(),
			Status:    models.GenerationRunRunning,
			startedAt: time.Now().UTC(),
			values:    values,
		},
	}, nil
}

// archiveOnly reports whether the cached archive can stand in for a run.
func (s *GenerationService) archiveOnly() bool {
	return s.caching() && s.deps.Writer != nil && s.deps.Sink == nil &&
		len(s.opts.Formats) == 1 && s.opts.Formats[0] == export.FormatZIP
}

func (s *GenerationService) startRun(ctx context.Context, r *GenerationResult) {
	if s.deps.Runs == nil {
		return
	}
	run := &models.GenerationRun{
		ID:        r.RunID,
		Generator: r.Generator,
		Seed:      r.Seed,
		Params:    r.values,
		Status:    models.GenerationRunRunning,
		StartedAt: r.startedAt,
	}
	err := retry.DoIfRetryable(ctx, nil, func() error { return s.deps.Runs.Create(ctx, run) })
	if err != nil {
		s.logger.Warn("Failed to record run start", zap.String("generator", r.Generator), zap.Error(err))
	}
}

// completeRun records the terminal state. It uses a fresh context so an
// aborted batch is still logged.
func (s *GenerationService) completeRun(r *GenerationResult) {
	for _, task := range slices.Sorted(maps.Keys(r.ioErrs)) {
		r.fail(r.ioErrs[task])
	}
	if r.Status == models.GenerationRunRunning {
		r.Status = models.GenerationRunSucceeded
	}
	if s.deps.Runs == nil {
		return
	}

	run := &models.GenerationRun{
		ID:          r.RunID,
		Generator:   r.Generator,
		Seed:        r.Seed,
		Status:      r.Status,
		TableCounts: r.Counts,
	}
	for _, n := range r.Counts {
		run.RowCount += n
	}
	for _, f := range r.Files {
		if filepath.Ext(f) == ".zip" {
			run.Archive = f
		}
	}
	if r.Err != nil {
		msg := r.Err.Error()
		run.Error = &msg
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := retry.DoIfRetryable(ctx, nil, func() error { return s.deps.Runs.Complete(ctx, run) })
	if err != nil {
		s.logger.Warn("Failed to record run completion", zap.String("generator", r.Generator), zap.Error(err))
	}
}

// generateTask runs one generator pipeline and schedules its publishing.
type generateTask struct {
	workqueue.BaseTask
	service   *GenerationService
	generator generators.Generator
	// seed is the base seed; attempt n runs with seed+n.
	seed   int64
	result *GenerationResult
}

func (t *generateTask) Execute(ctx context.Context, enqueuer workqueue.TaskEnqueuer) error {
	s, r := t.service, t.result
	logger := s.logger.With(zap.String("generator", r.Generator))

	fingerprint, err := cache.Fingerprint(r.Generator, t.seed, r.values)
	if err != nil {
		r.fail(err)
		return err
	}

	if s.archiveOnly() {
		release, err := s.deps.Cache.Lock(ctx, fingerprint, s.opts.Timeout)
		if err != nil {
			logger.Warn("Cache lock unavailable", zap.Error(err))
		}
		defer release()

		if data, ok, err := s.deps.Cache.Get(ctx, fingerprint); err != nil {
			logger.Warn("Cache lookup failed", zap.Error(err))
		} else if ok {
			path, err := s.deps.Writer.SaveArchive(r.Generator, data)
			if err != nil {
				r.fail(err)
				return err
			}
			r.CacheHit = true
			r.addFiles(path)
			logger.Info("Served archive from cache", zap.String("path", path))
			return nil
		}
	}

	ds, err := t.generate(ctx, logger)
	if ds != nil {
		r.Counts = ds.Counts()
	}

	var empty *apperrors.EmptyPopulationError
	switch {
	case err == nil:
		logger.Info("Generated dataset", zap.String("summary", ds.Summary()))
	case errors.As(err, &empty):
		r.Status = models.GenerationRunPartial
		r.Err = err
		logger.Warn("Generated partial dataset", zap.String("stage", empty.Stage), zap.Error(err))
	default:
		r.fail(err)
		return err
	}

	if s.deps.Writer != nil && len(s.opts.Formats) > 0 {
		enqueuer.Enqueue(&exportTask{
			BaseTask:    workqueue.NewBaseTask("export "+r.Generator, workqueue.KindIO),
			service:     s,
			dataset:     ds,
			result:      r,
			fingerprint: fingerprint,
		})
	}
	if s.deps.Sink != nil {
		enqueuer.Enqueue(&sinkTask{
			BaseTask: workqueue.NewBaseTask("load "+r.Generator, workqueue.KindIO),
			sink:     s.deps.Sink,
			dataset:  ds,
			result:   r,
		})
	}
	return nil
}

// generate runs the pipeline under the configured timeout, reseeding after
// an empty population up to RetryEmpty times.
func (t *generateTask) generate(ctx context.Context, logger *zap.Logger) (*models.Dataset, error) {
	s, r := t.service, t.result

	var ds *models.Dataset
	var err error
	for attempt := 0; attempt <= s.opts.RetryEmpty; attempt++ {
		rng := randstream.New(t.seed + int64(attempt))
		r.Seed, r.Attempts = rng.Seed(), attempt+1

		runCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		ds, err = t.generator.Generate(runCtx, rng)
		cancel()

		if !errors.Is(err, apperrors.ErrEmptyPopulation) || attempt == s.opts.RetryEmpty {
			break
		}
		logger.Info("Empty population, retrying with next seed",
			zap.Int64("seed", r.Seed),
			zap.Error(err))
	}
	return ds, err
}

// exportTask writes the dataset files and stores the archive in the cache.
type exportTask struct {
	workqueue.BaseTask
	service     *GenerationService
	dataset     *models.Dataset
	result      *GenerationResult
	fingerprint string
}

func (t *exportTask) Execute(ctx context.Context, _ workqueue.TaskEnqueuer) error {
	s := t.service
	paths, err := s.deps.Writer.Write(t.dataset, s.opts.Formats)
	t.result.setIOErr(t.Name(), err)
	if err != nil {
		return err
	}
	t.result.addFiles(paths...)

	// Partial datasets are never cached.
	if !s.caching() || t.result.Status == models.GenerationRunPartial ||
		!slices.Contains(s.opts.Formats, export.FormatZIP) {
		return nil
	}
	var buf bytes.Buffer
	if err := export.WriteZIP(&buf, t.dataset, time.Now()); err != nil {
		return fmt.Errorf("archive for cache: %w", err)
	}
	if err := s.deps.Cache.Put(ctx, t.fingerprint, buf.Bytes()); err != nil {
		s.logger.Warn("Failed to cache archive", zap.String("generator", t.dataset.Generator), zap.Error(err))
	}
	return nil
}

// sinkTask loads the dataset into the database sink. Loads replace tables,
// so the queue may retry transient failures.
type sinkTask struct {
	workqueue.BaseTask
	sink    sink.Sink
	dataset *models.Dataset
	result  *GenerationResult
}

func (t *sinkTask) Execute(ctx context.Context, _ workqueue.TaskEnqueuer) error {
	n, err := t.sink.Load(ctx, t.dataset)
	t.result.setIOErr(t.Name(), err)
	if err != nil {
		return err
	}
	t.result.mu.Lock()
	t.result.SinkRows = n
	t.result.mu.Unlock()
	return nil
}
