package models

import (
	"time"

	"github.com/google/uuid"
)

// GenerationRunStatus is the lifecycle state of one generator run.
//
//	running → succeeded
//	        → partial   (empty population; earlier tables kept)
//	        → failed
type GenerationRunStatus string

const (
	GenerationRunRunning   GenerationRunStatus = "running"
	GenerationRunSucceeded GenerationRunStatus = "succeeded"
	GenerationRunPartial   GenerationRunStatus = "partial"
	GenerationRunFailed    GenerationRunStatus = "failed"
)

// IsTerminal reports whether the run has finished.
func (s GenerationRunStatus) IsTerminal() bool {
	return s != GenerationRunRunning
}

// GenerationRun is the persisted record of one generator invocation.
type GenerationRun struct {
	ID          uuid.UUID           `json:"id"`
	Generator   string              `json:"generator"`
	Seed        int64               `json:"seed"`
	Params      map[string]any      `json:"params"`
	Status      GenerationRunStatus `json:"status"`
	TableCounts map[string]int      `json:"table_counts,omitempty"`
	RowCount    int                 `json:"row_count"`
	Archive     string              `json:"archive,omitempty"`
	Error       *string             `json:"error,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	FinishedAt  *time.Time          `json:"finished_at,omitempty"`
}
