package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/logging"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// Dialect captures what differs between database/sql sinks.
type Dialect struct {
	Name string

	// Quote returns a quoted identifier.
	Quote func(string) string

	// Types maps column types to column definitions.
	Types map[models.ColumnType]string

	// Placeholder returns the n-th (1-based) bind parameter.
	Placeholder func(n int) string

	// MaxParams bounds bind parameters per statement.
	MaxParams int

	// Swap, when set, returns the statements that replace live with staging,
	// using retired as scratch space. Dialects whose DDL commits implicitly
	// set it: the loader then fills a staging table and swaps it in, so a
	// failed load leaves the previous table in place.
	Swap func(staging, live, retired string) []string
}

// Suffixes of the scratch tables used by a swapping load.
const (
	StagingSuffix = "__staging"
	RetiredSuffix = "__retired"
)

// Qualified returns the quoted, optionally schema-qualified table name.
func (d Dialect) Qualified(schema, table string) string {
	if schema == "" {
		return d.Quote(table)
	}
	return d.Quote(schema) + "." + d.Quote(table)
}

// CreateTable returns the CREATE TABLE statement for t.
func (d Dialect) CreateTable(qualified string, t *models.Table) string {
	defs := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		def := d.Quote(col.Name) + " " + d.Types[col.Type]
		if !col.Nullable {
			def += " NOT NULL"
		}
		defs[i] = def
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", qualified, strings.Join(defs, ", "))
}

// InsertPrefix returns "INSERT INTO t (cols) VALUES ".
func (d Dialect) InsertPrefix(qualified string, t *models.Table) string {
	cols := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		cols[i] = d.Quote(col.Name)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES ", qualified, strings.Join(cols, ", "))
}

// RowsPerStatement is how many rows fit in one multi-row insert.
func (d Dialect) RowsPerStatement(columns, batchSize int) int {
	n := batchSize
	if d.MaxParams > 0 && columns > 0 {
		n = min(n, d.MaxParams/columns)
	}
	return max(n, 1)
}

// Convert maps a finalized cell to a driver value.
type Convert func(col models.Column, v any) any

// SQLLoader loads tables through database/sql with multi-row inserts. Each
// table is replaced in one transaction, or, for dialects with Swap, filled
// under a staging name and swapped in.
type SQLLoader struct {
	DB        *sql.DB
	Dialect   Dialect
	Schema    string
	Prefix    string
	BatchSize int
	Convert   Convert
	Logger    *zap.Logger
}

// Load replaces every table of ds and returns the rows inserted.
func (l *SQLLoader) Load(ctx context.Context, ds *models.Dataset) (int64, error) {
	var total int64
	for _, t := range ds.Tables() {
		n, err := l.loadTable(ctx, t)
		if err != nil {
			return total, fmt.Errorf("load %s: %w", t.Name, err)
		}
		total += n
	}
	return total, nil
}

func (l *SQLLoader) loadTable(ctx context.Context, t *models.Table) (n int64, err error) {
	if err := CheckTable(l.Prefix, t); err != nil {
		return 0, err
	}
	started := time.Now()
	name := l.Prefix + t.Name
	qualified := l.Dialect.Qualified(l.Schema, name)

	if l.Dialect.Swap != nil {
		n, err = l.loadStaged(ctx, t, name)
	} else {
		n, err = l.loadInTx(ctx, t, qualified)
	}
	if err != nil {
		return 0, err
	}
	l.Logger.Debug("Loaded table",
		zap.String("table", qualified),
		zap.Int64("rows", n),
		zap.Duration("elapsed", time.Since(started)))
	return n, nil
}

// loadInTx drops, recreates and fills the table in one transaction.
func (l *SQLLoader) loadInTx(ctx context.Context, t *models.Table, qualified string) (n int64, err error) {
	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = l.recreate(ctx, tx, t, qualified); err != nil {
		return 0, err
	}
	if n, err = l.fill(ctx, tx, t, qualified); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// loadStaged fills name+StagingSuffix and then swaps it in for name. The
// live table is untouched until the staging table is complete.
func (l *SQLLoader) loadStaged(ctx context.Context, t *models.Table, name string) (n int64, err error) {
	if len(name)+len(RetiredSuffix) > maxIdentifier {
		return 0, &IdentifierError{Field: "table", Value: name + RetiredSuffix}
	}
	live := l.Dialect.Qualified(l.Schema, name)
	staging := l.Dialect.Qualified(l.Schema, name+StagingSuffix)
	retired := l.Dialect.Qualified(l.Schema, name+RetiredSuffix)

	if err = l.recreate(ctx, l.DB, t, staging); err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_, _ = l.DB.ExecContext(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS "+staging)
		}
	}()

	tx, err := l.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	if n, err = l.fill(ctx, tx, t, staging); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	for _, stmt := range l.Dialect.Swap(staging, live, retired) {
		if _, err = l.DB.ExecContext(ctx, stmt); err != nil {
			return 0, fmt.Errorf("swap: %w", err)
		}
	}
	return n, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (l *SQLLoader) recreate(ctx context.Context, db execer, t *models.Table, qualified string) error {
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+qualified); err != nil {
		return fmt.Errorf("drop: %w", err)
	}
	create := l.Dialect.CreateTable(qualified, t)
	if _, err := db.ExecContext(ctx, create); err != nil {
		l.Logger.Error("Create table failed", zap.String("statement", logging.SanitizeStatement(create)))
		return fmt.Errorf("create: %w", err)
	}
	return nil
}

func (l *SQLLoader) fill(ctx context.Context, db execer, t *models.Table, qualified string) (int64, error) {
	var n int64
	prefix := l.Dialect.InsertPrefix(qualified, t)
	per := l.Dialect.RowsPerStatement(len(t.Columns), l.BatchSize)
	for start := 0; start < len(t.Rows); start += per {
		end := min(start+per, len(t.Rows))
		stmt, args := l.batch(prefix, t, t.Rows[start:end])
		res, err := db.ExecContext(ctx, stmt, args...)
		if err != nil {
			return 0, fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
		}
		if affected, affErr := res.RowsAffected(); affErr == nil {
			n += affected
		}
	}
	return n, nil
}

func (l *SQLLoader) batch(prefix string, t *models.Table, rows []models.Row) (string, []any) {
	var sb strings.Builder
	sb.WriteString(prefix)
	args := make([]any, 0, len(rows)*len(t.Columns))
	for r, row := range rows {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for i, col := range t.Columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			args = append(args, l.Convert(col, row[i]))
			sb.WriteString(l.Dialect.Placeholder(len(args)))
		}
		sb.WriteByte(')')
	}
	return sb.String(), args
}

// QuestionMark is the placeholder style of MySQL and SQLite.
func QuestionMark(int) string { return "?" }
