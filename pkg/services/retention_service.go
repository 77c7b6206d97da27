package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/repositories"
)

// DefaultRetentionDays is the default retention period for run records and archives.
const DefaultRetentionDays = 30

// PruneResult counts what one prune removed.
type PruneResult struct {
	Runs     int64
	Archives int
}

// RetentionService removes old run log records and exported archives.
type RetentionService interface {
	// Prune removes records and archives older than the retention period.
	Prune(ctx context.Context, retentionDays int) (PruneResult, error)
}

type retentionService struct {
	runs      repositories.GenerationRunRepository
	outputDir string
	logger    *zap.Logger
}

// NewRetentionService prunes the run log through runs and archives under
// outputDir. Either may be empty.
func NewRetentionService(runs repositories.GenerationRunRepository, outputDir string, logger *zap.Logger) RetentionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retentionService{
		runs:      runs,
		outputDir: outputDir,
		logger:    logger.Named("retention-service"),
	}
}

var _ RetentionService = (*retentionService)(nil)

func (s *retentionService) Prune(ctx context.Context, retentionDays int) (PruneResult, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	var result PruneResult
	if s.runs != nil {
		n, err := s.runs.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			s.logger.Error("Failed to prune run log", zap.Error(err))
			return result, fmt.Errorf("failed to prune run log: %w", err)
		}
		result.Runs = n
	}

	if s.outputDir != "" {
		n, err := s.pruneArchives(cutoff)
		result.Archives = n
		if err != nil {
			s.logger.Error("Failed to prune archives",
				zap.String("dir", s.outputDir),
				zap.Error(err))
			return result, fmt.Errorf("failed to prune archives: %w", err)
		}
	}

	if result.Runs > 0 || result.Archives > 0 {
		s.logger.Info("Retention cleanup completed",
			zap.Int("retention_days", retentionDays),
			zap.Int64("runs_deleted", result.Runs),
			zap.Int("archives_deleted", result.Archives))
	}
	return result, nil
}

// pruneArchives removes .zip and .xlsx files modified before cutoff. CSV
// files are overwritten by every run and are left alone.
func (s *retentionService) pruneArchives(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.outputDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".zip", ".xlsx":
		default:
			continue
		}
		info, err := e.Info()
		if err != nil {
			return deleted, err
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.outputDir, e.Name())); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
