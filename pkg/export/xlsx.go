package export

import (
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// maxSheetName is Excel's limit on sheet name length.
const maxSheetName = 31

type sheetStyles struct {
	header    int
	date      int
	timestamp int
	money     int
}

// WriteXLSX writes a workbook with one sheet per table, named after it.
// Rows are streamed, so large tables do not build a full cell model.
func WriteXLSX(w io.Writer, ds *models.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	styles, err := newSheetStyles(f)
	if err != nil {
		return err
	}

	for i, t := range ds.Tables() {
		name := sheetName(t.Name)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return fmt.Errorf("rename first sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create sheet %s: %w", name, err)
		}
		if err := writeSheet(f, name, t, styles); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func newSheetStyles(f *excelize.File) (sheetStyles, error) {
	var s sheetStyles
	var err error
	if s.header, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return s, fmt.Errorf("header style: %w", err)
	}
	dateFmt, tsFmt := "yyyy-mm-dd", "yyyy-mm-dd hh:mm:ss"
	if s.date, err = f.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt}); err != nil {
		return s, fmt.Errorf("date style: %w", err)
	}
	if s.timestamp, err = f.NewStyle(&excelize.Style{CustomNumFmt: &tsFmt}); err != nil {
		return s, fmt.Errorf("timestamp style: %w", err)
	}
	// Built-in format 2 is "0.00".
	if s.money, err = f.NewStyle(&excelize.Style{NumFmt: 2}); err != nil {
		return s, fmt.Errorf("money style: %w", err)
	}
	return s, nil
}

func writeSheet(f *excelize.File, sheet string, t *models.Table, styles sheetStyles) error {
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("stream %s: %w", sheet, err)
	}

	header := make([]any, len(t.Columns))
	for i, col := range t.Columns {
		header[i] = excelize.Cell{StyleID: styles.header, Value: col.Name}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}

	for r, row := range t.Rows {
		cells := make([]any, len(row))
		for i, col := range t.Columns {
			cells[i] = xlsxCell(col, row[i], styles)
		}
		axis, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(axis, cells); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, r+1, err)
		}
	}
	return sw.Flush()
}

func xlsxCell(col models.Column, v any, styles sheetStyles) any {
	switch x := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return excelize.Cell{StyleID: styles.money, Value: x.InexactFloat64()}
	case time.Time:
		if col.Type == models.ColumnTypeDate {
			return excelize.Cell{StyleID: styles.date, Value: x}
		}
		return excelize.Cell{StyleID: styles.timestamp, Value: x}
	default:
		return x
	}
}

func sheetName(table string) string {
	if len(table) > maxSheetName {
		return table[:maxSheetName]
	}
	return table
}
