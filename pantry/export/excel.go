// pantry/export/excel.go
package export

import (
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// Excel is a builder-style xlsx exporter.
type Excel struct {
	file        *excelize.File
	sheets      []*ExcelSheet
	activeSheet string
}

// ExcelSheet is one worksheet being built.
type ExcelSheet struct {
	excel     *Excel
	name      string
	headers   []string
	rows      [][]string
	colWidths map[int]float64
	freeze    bool
	built     bool
}

// NewExcel creates a new Excel workbook.
func NewExcel() *Excel {
	return &Excel{file: excelize.NewFile()}
}

// Sheet creates or gets a sheet by name. The first sheet created becomes
// active and replaces the default "Sheet1".
func (e *Excel) Sheet(name string) *ExcelSheet {
	for _, s := range e.sheets {
		if s.name == name {
			return s
		}
	}

	idx, err := e.file.NewSheet(name)
	if err != nil {
		idx, _ = e.file.GetSheetIndex(name)
	}
	if e.activeSheet == "" {
		e.file.SetActiveSheet(idx)
		e.activeSheet = name
		if name != "Sheet1" {
			_ = e.file.DeleteSheet("Sheet1")
		}
	}

	s := &ExcelSheet{excel: e, name: name, colWidths: make(map[int]float64)}
	e.sheets = append(e.sheets, s)
	return s
}

// Headers sets the column headers.
func (s *ExcelSheet) Headers(headers ...string) *ExcelSheet {
	s.headers = headers
	return s
}

// Rows adds rows.
func (s *ExcelSheet) Rows(rows [][]string) *ExcelSheet {
	s.rows = append(s.rows, rows...)
	return s
}

// AutoWidth sizes each column to its widest cell, between 10 and 50.
func (s *ExcelSheet) AutoWidth() *ExcelSheet {
	for i, h := range s.headers {
		s.widen(i+1, float64(utf8.RuneCountInString(h))*1.2)
	}
	for _, row := range s.rows {
		for i, v := range row {
			s.widen(i+1, float64(utf8.RuneCountInString(v))*1.1)
		}
	}
	return s
}

func (s *ExcelSheet) widen(col int, width float64) {
	width = min(max(width, 10), 50)
	if width > s.colWidths[col] {
		s.colWidths[col] = width
	}
}

// FreezeHeader keeps the header row visible while scrolling.
func (s *ExcelSheet) FreezeHeader() *ExcelSheet {
	s.freeze = true
	return s
}

func (s *ExcelSheet) build() error {
	if s.built {
		return nil
	}
	s.built = true
	f := s.excel.file
	row := 1

	if len(s.headers) > 0 {
		if err := f.SetSheetRow(s.name, "A1", &s.headers); err != nil {
			return err
		}
		style, err := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true},
			Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
			Border: []excelize.Border{
				{Type: "bottom", Color: "#000000", Style: 1},
			},
		})
		if err != nil {
			return err
		}
		end, _ := excelize.CoordinatesToCellName(len(s.headers), 1)
		if err := f.SetCellStyle(s.name, "A1", end, style); err != nil {
			return err
		}
		row++
	}

	for _, r := range s.rows {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(s.name, cell, &r); err != nil {
			return err
		}
		row++
	}

	for col, width := range s.colWidths {
		name, _ := excelize.ColumnNumberToName(col)
		if err := f.SetColWidth(s.name, name, name, width); err != nil {
			return err
		}
	}

	if s.freeze && len(s.headers) > 0 {
		return f.SetPanes(s.name, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}

func (e *Excel) buildAll() error {
	for _, s := range e.sheets {
		if err := s.build(); err != nil {
			return err
		}
	}
	return nil
}

// Write writes the workbook to w.
func (e *Excel) Write(w io.Writer) error {
	if err := e.buildAll(); err != nil {
		return err
	}
	return e.file.Write(w)
}

// Save saves the workbook to filename.
func (e *Excel) Save(filename string) error {
	if err := e.buildAll(); err != nil {
		return err
	}
	return e.file.SaveAs(filename)
}

// Close releases the workbook's resources.
func (e *Excel) Close() error {
	return e.file.Close()
}
