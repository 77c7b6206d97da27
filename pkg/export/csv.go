package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// WriteCSV writes t with a header row of column names.
func WriteCSV(w io.Writer, t *models.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.ColumnNames()); err != nil {
		return fmt.Errorf("write %s header: %w", t.Name, err)
	}

	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			record[i] = FormatCell(col, row[i])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write %s row: %w", t.Name, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
