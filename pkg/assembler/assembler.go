// Package assembler runs a generator's stages in dependency order so that
// child tables are only built from parents that are already materialized.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// StageFunc builds one or more tables into the dataset. It must leave every
// table it adds complete and internally valid before returning.
type StageFunc func(ctx context.Context, ds *models.Dataset) error

type stage struct {
	name string
	fn   StageFunc
}

// Assembler executes stages sequentially against one dataset.
type Assembler struct {
	dataset *models.Dataset
	logger  *zap.Logger
	stages  []stage
}

func New(ds *models.Dataset, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		dataset: ds,
		logger:  logger.Named("assembler").With(zap.String("generator", ds.Generator)),
	}
}

// Stage appends a named stage and returns the assembler for chaining.
func (a *Assembler) Stage(name string, fn StageFunc) *Assembler {
	a.stages = append(a.stages, stage{name: name, fn: fn})
	return a
}

// StageNames lists stages in execution order.
func (a *Assembler) StageNames() []string {
	names := make([]string, len(a.stages))
	for i, s := range a.stages {
		names[i] = s.name
	}
	return names
}

// Dataset returns the dataset being assembled. After a failed Run it holds
// the tables completed before the failure.
func (a *Assembler) Dataset() *models.Dataset {
	return a.dataset
}

// Run executes all stages in order. Cancellation is observed between stages,
// and by long stages that return ctx.Err(); either way it is reported as a
// GenerationTimeout naming the stage. An EmptyPopulationError stops the run
// with completed tables intact.
func (a *Assembler) Run(ctx context.Context) error {
	started := time.Now()

	for _, s := range a.stages {
		if err := ctx.Err(); err != nil {
			a.logger.Warn("Generation aborted",
				zap.String("stage", s.name),
				zap.Error(err))
			return &apperrors.GenerationTimeout{Generator: a.dataset.Generator, Stage: s.name, Cause: err}
		}

		stageStart := time.Now()
		if err := s.fn(ctx, a.dataset); err != nil {
			var empty *apperrors.EmptyPopulationError
			if errors.As(err, &empty) {
				a.logger.Info("Stage found an empty upstream population",
					zap.String("stage", s.name),
					zap.String("collection", empty.Collection))
				return err
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				a.logger.Warn("Generation aborted inside stage",
					zap.String("stage", s.name),
					zap.Error(err))
				return &apperrors.GenerationTimeout{Generator: a.dataset.Generator, Stage: s.name, Cause: err}
			}
			a.logger.Error("Stage failed",
				zap.String("stage", s.name),
				zap.Error(err))
			return fmt.Errorf("stage %s: %w", s.name, err)
		}

		a.logger.Debug("Stage complete",
			zap.String("stage", s.name),
			zap.Int("rows", a.dataset.RowCount()),
			zap.Duration("elapsed", time.Since(stageStart)))
	}

	a.logger.Debug("All stages complete",
		zap.Int("stages", len(a.stages)),
		zap.Int("tables", len(a.dataset.Names())),
		zap.Duration("elapsed", time.Since(started)))
	return nil
}

// RequireNonEmpty returns an EmptyPopulationError for stage when n is zero.
func RequireNonEmpty(ds *models.Dataset, stage, collection string, n int) error {
	if n > 0 {
		return nil
	}
	return apperrors.NewEmptyPopulationError(stage, collection, ds.Counts())
}
