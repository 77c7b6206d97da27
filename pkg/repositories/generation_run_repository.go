package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/database"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// GenerationRunRepository defines data access for the run log.
type GenerationRunRepository interface {
	Create(ctx context.Context, run *models.GenerationRun) error
	Complete(ctx context.Context, run *models.GenerationRun) error
	Get(ctx context.Context, id uuid.UUID) (*models.GenerationRun, error)
	ListRecent(ctx context.Context, generator string, limit int) ([]*models.GenerationRun, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type generationRunRepository struct {
	db *database.DB
}

// NewGenerationRunRepository creates a run-log repository on db.
func NewGenerationRunRepository(db *database.DB) GenerationRunRepository {
	return &generationRunRepository{db: db}
}

// Create inserts a run in the running state.
func (r *generationRunRepository) Create(ctx context.Context, run *models.GenerationRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = models.GenerationRunRunning
	}

	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}

	query := `
		INSERT INTO generation_runs (id, generator, seed, params, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = r.db.Exec(ctx, query,
		run.ID,
		run.Generator,
		run.Seed,
		params,
		run.Status,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create generation run: %w", err)
	}
	return nil
}

// Complete records the terminal status, counts and error of a run.
func (r *generationRunRepository) Complete(ctx context.Context, run *models.GenerationRun) error {
	if !run.Status.IsTerminal() {
		return fmt.Errorf("run %s: status %q is not terminal", run.ID, run.Status)
	}
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	counts, err := json.Marshal(run.TableCounts)
	if err != nil {
		return fmt.Errorf("failed to marshal table counts: %w", err)
	}

	query := `
		UPDATE generation_runs
		SET status = $2,
		    table_counts = $3,
		    row_count = $4,
		    archive = NULLIF($5, ''),
		    error = $6,
		    finished_at = $7
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		run.ID,
		run.Status,
		counts,
		run.RowCount,
		run.Archive,
		run.Error,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to complete generation run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

const selectRun = `
	SELECT id, generator, seed, params, status, table_counts, row_count,
	       COALESCE(archive, ''), error, started_at, finished_at
	FROM generation_runs`

func (r *generationRunRepository) Get(ctx context.Context, id uuid.UUID) (*models.GenerationRun, error) {
	run, err := scanRun(r.db.QueryRow(ctx, selectRun+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get generation run: %w", err)
	}
	return run, nil
}

// ListRecent returns the newest runs first. An empty generator lists all.
func (r *generationRunRepository) ListRecent(ctx context.Context, generator string, limit int) ([]*models.GenerationRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := selectRun + `
		WHERE ($1 = '' OR generator = $1)
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, generator, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list generation runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.GenerationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan generation run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating generation runs: %w", err)
	}
	return runs, nil
}

// DeleteOlderThan removes finished runs started before cutoff.
func (r *generationRunRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM generation_runs WHERE started_at < $1 AND status <> $2`,
		cutoff, models.GenerationRunRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to delete generation runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRun(row pgx.Row) (*models.GenerationRun, error) {
	var run models.GenerationRun
	var params, counts []byte

	err := row.Scan(
		&run.ID,
		&run.Generator,
		&run.Seed,
		&params,
		&run.Status,
		&counts,
		&run.RowCount,
		&run.Archive,
		&run.Error,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(params, &run.Params); err != nil {
		return nil, fmt.Errorf("failed to unmarshal params: %w", err)
	}
	if len(counts) > 0 {
		if err := json.Unmarshal(counts, &run.TableCounts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal table counts: %w", err)
		}
	}
	return &run, nil
}
