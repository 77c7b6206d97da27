// Package export writes finalized datasets as CSV files, ZIP archives of
// CSVs and XLSX workbooks. It only reads tables; nothing here affects how
// data is generated.
package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02T15:04:05Z"

	// archiveStamp is the timestamp layout of archive file names.
	archiveStamp = "20060102_150405"
)

// ArchiveName returns "{generator}_data_{YYYYMMDD_HHMMSS}.{ext}".
func ArchiveName(generator string, at time.Time, ext string) string {
	return fmt.Sprintf("%s_data_%s.%s", generator, at.UTC().Format(archiveStamp), ext)
}

// FormatCell renders a finalized cell as text: ISO-8601 dates, money with
// two decimals, and nulls as the empty string.
func FormatCell(col models.Column, v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		if col.Scale > 0 {
			return strconv.FormatFloat(x, 'f', col.Scale, 64)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case decimal.Decimal:
		return x.StringFixed(2)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if col.Type == models.ColumnTypeDate {
			return x.Format(DateLayout)
		}
		return x.UTC().Format(TimestampLayout)
	default:
		return fmt.Sprint(x)
	}
}
