package audit

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	maxSheetName = 31
	cellTime     = "2006-01-02 15:04:05 UTC"
	columnWidth  = 18
)

// ExcelizeWriter implements ExcelWriter using excelize library.
type ExcelizeWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
	headerStyle  int
}

// NewExcelizeWriter creates a new Excel writer.
func NewExcelizeWriter() ExcelWriter {
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		style = 0
	}
	return &ExcelizeWriter{file: f, headerStyle: style}
}

// AddSheet adds a new sheet with the given name. The workbook's default
// sheet is renamed on first use.
func (w *ExcelizeWriter) AddSheet(name string) error {
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes bold column headers, freezes them and sizes the
// columns.
func (w *ExcelizeWriter) WriteHeader(columns []string) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	if len(columns) == 0 {
		return nil
	}

	row := make([]interface{}, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	start, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, start, &row); err != nil {
		return err
	}

	end, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow)
	if w.headerStyle != 0 {
		_ = w.file.SetCellStyle(w.currentSheet, start, end, w.headerStyle)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(columns))
	_ = w.file.SetColWidth(w.currentSheet, "A", lastCol, columnWidth)
	_ = w.file.SetPanes(w.currentSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	w.currentRow++
	return nil
}

// WriteRow writes a data row to current sheet. Times are written as UTC
// text and nil pointers as empty cells.
func (w *ExcelizeWriter) WriteRow(row []interface{}) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = cellValue(v)
	}
	start, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, start, &values); err != nil {
		return err
	}

	w.currentRow++
	return nil
}

func cellValue(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(cellTime)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.UTC().Format(cellTime)
	case nil:
		return ""
	}
	return v
}

// Save writes the Excel file to the writer.
func (w *ExcelizeWriter) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

// SaveToFile writes the Excel file to disk.
func (w *ExcelizeWriter) SaveToFile(path string) error {
	return w.file.SaveAs(path)
}

// Close releases resources.
func (w *ExcelizeWriter) Close() error {
	return w.file.Close()
}
