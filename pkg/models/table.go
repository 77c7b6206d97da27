package models

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// ============================================================================
// Column Types
// ============================================================================

// ColumnType is the semantic type a column is coerced to before output.
type ColumnType string

const (
	ColumnTypeString    ColumnType = "string"
	ColumnTypeInt       ColumnType = "int"
	ColumnTypeFloat     ColumnType = "float"
	ColumnTypeMoney     ColumnType = "money"
	ColumnTypeDate      ColumnType = "date"
	ColumnTypeTimestamp ColumnType = "timestamp"
	ColumnTypeBool      ColumnType = "bool"
)

// ValidColumnTypes contains all valid column type values.
var ValidColumnTypes = []ColumnType{
	ColumnTypeString,
	ColumnTypeInt,
	ColumnTypeFloat,
	ColumnTypeMoney,
	ColumnTypeDate,
	ColumnTypeTimestamp,
	ColumnTypeBool,
}

// IsValidColumnType checks if the given type is valid.
func IsValidColumnType(t ColumnType) bool {
	for _, v := range ValidColumnTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ============================================================================
// Tables
// ============================================================================

// Column describes one output column. Scale is the number of decimal places
// kept for float columns; money is always two.
type Column struct {
	Name     string     `json:"name" yaml:"name"`
	Type     ColumnType `json:"type" yaml:"type"`
	Scale    int        `json:"scale,omitempty" yaml:"scale,omitempty"`
	Nullable bool       `json:"nullable,omitempty" yaml:"nullable,omitempty"`
}

// Col is shorthand for a non-nullable column.
func Col(name string, t ColumnType) Column {
	return Column{Name: name, Type: t}
}

// NullCol is shorthand for a nullable column.
func NullCol(name string, t ColumnType) Column {
	return Column{Name: name, Type: t, Nullable: true}
}

// FloatCol is a float column rounded to scale places.
func FloatCol(name string, scale int) Column {
	return Column{Name: name, Type: ColumnTypeFloat, Scale: scale}
}

// NullFloatCol is a nullable float column rounded to scale places.
func NullFloatCol(name string, scale int) Column {
	return Column{Name: name, Type: ColumnTypeFloat, Scale: scale, Nullable: true}
}

// Row is one record, positionally aligned with the table's columns. A nil
// cell is null.
type Row []any

// Table is an ordered sequence of records with a uniform schema.
type Table struct {
	Name    string
	Columns []Column
	Rows    []Row
	// SortKey names the columns the finalizer orders by.
	SortKey []string

	index map[string]int
}

func NewTable(name string, columns ...Column) *Table {
	t := &Table{Name: name, Columns: columns, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		t.index[c.Name] = i
	}
	return t
}

// SortBy sets the natural ordering and returns the table for chaining.
func (t *Table) SortBy(columns ...string) *Table {
	t.SortKey = columns
	return t
}

// Append adds a record. It panics when the value count does not match the
// schema, which is always a programming error.
func (t *Table) Append(values ...any) {
	if len(values) != len(t.Columns) {
		panic(fmt.Sprintf("table %s: got %d values for %d columns", t.Name, len(values), len(t.Columns)))
	}
	t.Rows = append(t.Rows, Row(values))
}

func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of name, or -1.
func (t *Table) ColumnIndex(name string) int {
	if t.index != nil {
		if i, ok := t.index[name]; ok {
			return i
		}
		return -1
	}
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Value returns the cell at row for column name.
func (t *Table) Value(row int, name string) any {
	i := t.ColumnIndex(name)
	if i < 0 {
		return nil
	}
	return t.Rows[row][i]
}

// Values returns a column's cells in row order.
func (t *Table) Values(name string) []any {
	i := t.ColumnIndex(name)
	if i < 0 {
		return nil
	}
	out := make([]any, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// ColumnNames returns the header in schema order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ============================================================================
// Naming
// ============================================================================

// TableName derives a snake_case plural table name from an entity name,
// e.g. "CompanyProfile" becomes "company_profiles".
func TableName(entity string) string {
	words := splitWords(entity)
	if len(words) == 0 {
		return ""
	}
	last := len(words) - 1
	words[last] = inflection.Plural(words[last])
	return strings.Join(words, "_")
}

func splitWords(s string) []string {
	var words []string
	var cur []rune
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == ' ' || r == '_' || r == '-':
			if len(cur) > 0 {
				words = append(words, strings.ToLower(string(cur)))
				cur = cur[:0]
			}
			continue
		case unicode.IsUpper(r) && len(cur) > 0:
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (unicode.IsUpper(runes[i-1]) && nextLower) {
				words = append(words, strings.ToLower(string(cur)))
				cur = cur[:0]
			}
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		words = append(words, strings.ToLower(string(cur)))
	}
	return words
}
