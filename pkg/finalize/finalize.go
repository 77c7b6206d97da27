// Package finalize coerces generated tables to their declared column types
// and puts rows in their natural order.
package finalize

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// MoneyScale is the number of decimal places money columns keep.
const MoneyScale = 2

// Dataset finalizes every table in ds.
func Dataset(ds *models.Dataset) error {
	for _, t := range ds.Tables() {
		if err := Table(t); err != nil {
			return err
		}
	}
	return nil
}

// Table coerces each cell to its column type and stable-sorts rows by the
// table's SortKey. Null cells stay null; a null in a non-nullable column is
// an error.
func Table(t *models.Table) error {
	for r, row := range t.Rows {
		for c, col := range t.Columns {
			v, err := coerce(col, row[c])
			if err != nil {
				return fmt.Errorf("table %s row %d column %s: %w", t.Name, r, col.Name, err)
			}
			row[c] = v
		}
	}

	if len(t.SortKey) == 0 {
		return nil
	}
	keys := make([]int, 0, len(t.SortKey))
	for _, name := range t.SortKey {
		i := t.ColumnIndex(name)
		if i < 0 {
			return fmt.Errorf("table %s: sort column %s does not exist", t.Name, name)
		}
		keys = append(keys, i)
	}
	sort.SliceStable(t.Rows, func(a, b int) bool {
		for _, k := range keys {
			if c := Compare(t.Rows[a][k], t.Rows[b][k]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return nil
}

func coerce(col models.Column, v any) (any, error) {
	if v == nil {
		if !col.Nullable {
			return nil, fmt.Errorf("null value in non-nullable %s column", col.Type)
		}
		return nil, nil
	}

	switch col.Type {
	case models.ColumnTypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return fmt.Sprint(v), nil

	case models.ColumnTypeInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			return int64(math.Round(n)), nil
		}

	case models.ColumnTypeFloat:
		f, ok := asFloat(v)
		if !ok {
			break
		}
		if col.Scale > 0 {
			f = Round(f, col.Scale)
		}
		return f, nil

	case models.ColumnTypeMoney:
		switch n := v.(type) {
		case decimal.Decimal:
			return n.Round(MoneyScale), nil
		case float64:
			return decimal.NewFromFloat(n).Round(MoneyScale), nil
		case int:
			return decimal.NewFromInt(int64(n)), nil
		case int64:
			return decimal.NewFromInt(n), nil
		}

	case models.ColumnTypeDate:
		if ts, ok := v.(time.Time); ok {
			y, m, d := ts.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}

	case models.ColumnTypeTimestamp:
		if ts, ok := v.(time.Time); ok {
			return ts.UTC().Truncate(time.Second), nil
		}

	case models.ColumnTypeBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	}

	return nil, fmt.Errorf("cannot coerce %T to %s", v, col.Type)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case decimal.Decimal:
		return n.InexactFloat64(), true
	}
	return 0, false
}

// Round rounds f half away from zero to places decimals.
func Round(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}

// Compare orders two finalized cells. Nulls sort after every value; cells of
// different types compare by their string form.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}

	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Compare(y)
		}
	case int64:
		if y, ok := b.(int64); ok {
			return cmpOrdered(x, y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return cmpOrdered(x, y)
		}
	case string:
		if y, ok := b.(string); ok {
			return strings.Compare(x, y)
		}
	case decimal.Decimal:
		if y, ok := b.(decimal.Decimal); ok {
			return x.Cmp(y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0
			case !x:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
