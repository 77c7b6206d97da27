// Package sqlite loads datasets into a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/adapters/sink"
	"github.com/ekaya-inc/ekaya-datagen/pkg/config"
	"github.com/ekaya-inc/ekaya-datagen/pkg/export"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

const Type = config.SinkSQLite

// SQLite limits a statement to 32766 bind parameters.
var Dialect = sink.Dialect{
	Name:  Type,
	Quote: func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` },
	Types: map[models.ColumnType]string{
		models.ColumnTypeString:    "TEXT",
		models.ColumnTypeInt:       "INTEGER",
		models.ColumnTypeFloat:     "REAL",
		models.ColumnTypeMoney:     "NUMERIC",
		models.ColumnTypeDate:      "TEXT",
		models.ColumnTypeTimestamp: "TEXT",
		models.ColumnTypeBool:      "INTEGER",
	},
	Placeholder: sink.QuestionMark,
	MaxParams:   32766,
}

// Sink writes tables into the database file at cfg.Path. Schema is ignored.
type Sink struct {
	db     *sql.DB
	loader *sink.SQLLoader
}

var _ sink.Sink = (*Sink)(nil)

func New(ctx context.Context, cfg config.SinkConfig, logger *zap.Logger) (*Sink, error) {
	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
	}
	// A single connection keeps ":memory:" databases alive across statements.
	db.SetMaxOpenConns(1)
	return &Sink{
		db: db,
		loader: &sink.SQLLoader{
			DB:        db,
			Dialect:   Dialect,
			Prefix:    cfg.TablePrefix,
			BatchSize: cfg.BatchSize,
			Convert:   convert,
			Logger:    logger,
		},
	}, nil
}

// DB exposes the underlying handle.
func (s *Sink) DB() *sql.DB { return s.db }

func (s *Sink) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Sink) Load(ctx context.Context, ds *models.Dataset) (int64, error) {
	return s.loader.Load(ctx, ds)
}

func (s *Sink) Close() error {
	return s.db.Close()
}

// Dates and timestamps are stored as the same ISO text the CSV export uses.
func convert(col models.Column, v any) any {
	if v == nil {
		return nil
	}
	switch col.Type {
	case models.ColumnTypeDate, models.ColumnTypeTimestamp:
		return export.FormatCell(col, v)
	}
	if d, ok := v.(decimal.Decimal); ok {
		return d.StringFixed(2)
	}
	return v
}
