// Package postgres loads datasets into PostgreSQL with COPY.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/adapters/sink"
	"github.com/ekaya-inc/ekaya-datagen/pkg/config"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// Type is the sink.type value for this package.
const Type = config.SinkPostgres

var columnTypes = map[models.ColumnType]string{
	models.ColumnTypeString:    "TEXT",
	models.ColumnTypeInt:       "BIGINT",
	models.ColumnTypeFloat:     "DOUBLE PRECISION",
	models.ColumnTypeMoney:     "NUMERIC(18,2)",
	models.ColumnTypeDate:      "DATE",
	models.ColumnTypeTimestamp: "TIMESTAMP",
	models.ColumnTypeBool:      "BOOLEAN",
}

// Dialect is the DDL dialect used for PostgreSQL.
var Dialect = sink.Dialect{
	Name:        Type,
	Quote:       func(s string) string { return pgx.Identifier{s}.Sanitize() },
	Types:       columnTypes,
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	MaxParams:   65535,
}

// Sink writes tables with CopyFrom inside one transaction per table.
type Sink struct {
	pool   *pgxpool.Pool
	cfg    config.SinkConfig
	logger *zap.Logger
}

var _ sink.Sink = (*Sink)(nil)

// ConnectionString builds a PostgreSQL URL with escaped credentials.
func ConnectionString(cfg config.SinkConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		config.ResolveHostForDocker(cfg.Host),
		port,
		url.QueryEscape(cfg.Database),
		sslMode,
	)
}

func New(ctx context.Context, cfg config.SinkConfig, logger *zap.Logger) (*Sink, error) {
	pool, err := pgxpool.New(ctx, ConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return &Sink{pool: pool, cfg: cfg, logger: logger}, nil
}

func (s *Sink) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

func (s *Sink) Load(ctx context.Context, ds *models.Dataset) (int64, error) {
	if s.cfg.Schema != "" {
		if _, err := s.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+Dialect.Quote(s.cfg.Schema)); err != nil {
			return 0, fmt.Errorf("create schema: %w", err)
		}
	}

	var total int64
	for _, t := range ds.Tables() {
		n, err := s.loadTable(ctx, t)
		if err != nil {
			return total, fmt.Errorf("load %s: %w", t.Name, err)
		}
		total += n
	}
	return total, nil
}

func (s *Sink) loadTable(ctx context.Context, t *models.Table) (int64, error) {
	if err := sink.CheckTable(s.cfg.TablePrefix, t); err != nil {
		return 0, err
	}
	started := time.Now()
	name := s.cfg.TablePrefix + t.Name
	qualified := Dialect.Qualified(s.cfg.Schema, name)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+qualified); err != nil {
		return 0, fmt.Errorf("drop: %w", err)
	}
	if _, err := tx.Exec(ctx, Dialect.CreateTable(qualified, t)); err != nil {
		return 0, fmt.Errorf("create: %w", err)
	}

	ident := pgx.Identifier{name}
	if s.cfg.Schema != "" {
		ident = pgx.Identifier{s.cfg.Schema, name}
	}
	n, err := tx.CopyFrom(ctx, ident, t.ColumnNames(), &rowSource{table: t, idx: -1})
	if err != nil {
		return 0, fmt.Errorf("copy: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("Copied table",
		zap.String("table", qualified),
		zap.Int64("rows", n),
		zap.Duration("elapsed", time.Since(started)))
	return n, nil
}

func (s *Sink) Close() error {
	s.pool.Close()
	return nil
}

// rowSource adapts a table to pgx.CopyFromSource.
type rowSource struct {
	table *models.Table
	idx   int
	err   error
}

func (r *rowSource) Next() bool {
	r.idx++
	return r.idx < len(r.table.Rows)
}

func (r *rowSource) Values() ([]any, error) {
	row := r.table.Rows[r.idx]
	values := make([]any, len(row))
	for i, v := range row {
		converted, err := convert(v)
		if err != nil {
			r.err = fmt.Errorf("row %d column %s: %w", r.idx, r.table.Columns[i].Name, err)
			return nil, r.err
		}
		values[i] = converted
	}
	return values, nil
}

func (r *rowSource) Err() error { return r.err }

func convert(v any) (any, error) {
	d, ok := v.(decimal.Decimal)
	if !ok {
		return v, nil
	}
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return nil, err
	}
	return n, nil
}
