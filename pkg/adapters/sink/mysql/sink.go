// Package mysql loads datasets into MySQL with batched multi-row inserts.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/adapters/sink"
	"github.com/ekaya-inc/ekaya-datagen/pkg/config"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

const Type = config.SinkMySQL

// Dialect is the DDL dialect used for MySQL.
var Dialect = sink.Dialect{
	Name:  Type,
	Quote: func(s string) string { return "`" + strings.ReplaceAll(s, "`", "``") + "`" },
	Types: map[models.ColumnType]string{
		models.ColumnTypeString:    "VARCHAR(255)",
		models.ColumnTypeInt:       "BIGINT",
		models.ColumnTypeFloat:     "DOUBLE",
		models.ColumnTypeMoney:     "DECIMAL(18,2)",
		models.ColumnTypeDate:      "DATE",
		models.ColumnTypeTimestamp: "DATETIME",
		models.ColumnTypeBool:      "BOOLEAN",
	},
	Placeholder: sink.QuestionMark,
	MaxParams:   65535,
	Swap:        swap,
}

// swap replaces live with staging in one RENAME TABLE, which MySQL applies
// atomically. DROP and CREATE commit implicitly, so they only ever touch the
// scratch tables.
func swap(staging, live, retired string) []string {
	return []string{
		"DROP TABLE IF EXISTS " + retired,
		"CREATE TABLE IF NOT EXISTS " + live + " LIKE " + staging,
		"RENAME TABLE " + live + " TO " + retired + ", " + staging + " TO " + live,
		"DROP TABLE " + retired,
	}
}

// DSN builds a go-sql-driver DSN. The schema, when set, is the database.
func DSN(cfg config.SinkConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	mc.Addr = fmt.Sprintf("%s:%d", config.ResolveHostForDocker(cfg.Host), port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	if cfg.SSLMode != "" && cfg.SSLMode != "disable" {
		mc.TLSConfig = "skip-verify"
	}
	return mc.FormatDSN()
}

// Sink writes tables through database/sql.
type Sink struct {
	db     *sql.DB
	loader *sink.SQLLoader
}

var _ sink.Sink = (*Sink)(nil)

func New(ctx context.Context, cfg config.SinkConfig, logger *zap.Logger) (*Sink, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}
	return &Sink{
		db: db,
		loader: &sink.SQLLoader{
			DB:        db,
			Dialect:   Dialect,
			Schema:    cfg.Schema,
			Prefix:    cfg.TablePrefix,
			BatchSize: cfg.BatchSize,
			Convert:   convert,
			Logger:    logger,
		},
	}, nil
}

func (s *Sink) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

func (s *Sink) Load(ctx context.Context, ds *models.Dataset) (int64, error) {
	return s.loader.Load(ctx, ds)
}

func (s *Sink) Close() error {
	return s.db.Close()
}

func convert(_ models.Column, v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return d.StringFixed(2)
	}
	return v
}
