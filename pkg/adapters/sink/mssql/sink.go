// Package mssql loads datasets into SQL Server with bulk copy.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/adapters/sink"
	"github.com/ekaya-inc/ekaya-datagen/pkg/config"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

const Type = config.SinkMSSQL

// Dialect is the DDL dialect used for SQL Server.
var Dialect = sink.Dialect{
	Name:  Type,
	Quote: quoteName,
	Types: map[models.ColumnType]string{
		models.ColumnTypeString:    "NVARCHAR(255)",
		models.ColumnTypeInt:       "BIGINT",
		models.ColumnTypeFloat:     "FLOAT",
		models.ColumnTypeMoney:     "DECIMAL(18,2)",
		models.ColumnTypeDate:      "DATE",
		models.ColumnTypeTimestamp: "DATETIME2(0)",
		models.ColumnTypeBool:      "BIT",
	},
	Placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
	MaxParams:   2100,
}

// quoteName is the equivalent of QUOTENAME().
func quoteName(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

// ConnectionString builds a sqlserver:// URL for SQL authentication.
func ConnectionString(cfg config.SinkConfig) string {
	query := url.Values{}
	query.Add("database", cfg.Database)
	if cfg.SSLMode == "disable" {
		query.Add("encrypt", "false")
	} else {
		query.Add("encrypt", "true")
		query.Add("TrustServerCertificate", "true")
	}

	port := cfg.Port
	if port == 0 {
		port = 1433
	}
	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		config.ResolveHostForDocker(cfg.Host),
		port,
		query.Encode(),
	)
}

// Sink writes tables with mssql.CopyIn inside one transaction per table.
type Sink struct {
	db     *sql.DB
	cfg    config.SinkConfig
	logger *zap.Logger
}

var _ sink.Sink = (*Sink)(nil)

func New(ctx context.Context, cfg config.SinkConfig, logger *zap.Logger) (*Sink, error) {
	db, err := sql.Open("sqlserver", ConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("open SQL auth connection: %w", err)
	}
	return &Sink{db: db, cfg: cfg, logger: logger}, nil
}

func (s *Sink) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

func (s *Sink) Load(ctx context.Context, ds *models.Dataset) (int64, error) {
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

func (s *Sink) loadTable(ctx context.Context, t *models.Table) (n int64, err error) {
	if err := sink.CheckTable(s.cfg.TablePrefix, t); err != nil {
		return 0, err
	}
	started := time.Now()
	qualified := Dialect.Qualified(s.cfg.Schema, s.cfg.TablePrefix+t.Name)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+qualified); err != nil {
		return 0, fmt.Errorf("drop: %w", err)
	}
	if _, err = tx.ExecContext(ctx, Dialect.CreateTable(qualified, t)); err != nil {
		return 0, fmt.Errorf("create: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(qualified, mssql.BulkOptions{Tablock: true}, t.ColumnNames()...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk copy: %w", err)
	}
	defer stmt.Close()

	for i, row := range t.Rows {
		if _, err = stmt.ExecContext(ctx, convertRow(row)...); err != nil {
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("flush bulk copy: %w", err)
	}
	n, _ = res.RowsAffected()

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("Bulk copied table",
		zap.String("table", qualified),
		zap.Int64("rows", n),
		zap.Duration("elapsed", time.Since(started)))
	return n, nil
}

func (s *Sink) Close() error {
	return s.db.Close()
}

func convertRow(row models.Row) []any {
	values := make([]any, len(row))
	for i, v := range row {
		if d, ok := v.(decimal.Decimal); ok {
			values[i] = d.InexactFloat64()
			continue
		}
		values[i] = v
	}
	return values
}
