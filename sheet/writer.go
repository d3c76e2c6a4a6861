package sheet

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

const (
	DefaultSheetName = "Data"
	defaultWidth     = 18
)

const (
	headerFill    = "305496"
	headerFont    = "FFFFFF"
	borderColor   = "ADD8E6"
	failedFill    = "FCE4D6"
	cancelledFill = "EDEDED"
)

// Column widths and alignment of the known export columns. Unknown columns get the
// default width and left aligned wrapped text.
var (
	columnWidths = map[string]float64{
		"Case Code":              15,
		"Model No.":              20,
		"Progr.Stat.":            11,
		"S/W Ver.":               15,
		"Title":                  40,
		"Problem":                40,
		"Content":                50,
		"Resolve Option(Medium)": 25,
		"Module":                 20,
		"Sub-Module":             20,
		"Issue Type":             15,
		"Sub-Issue Type":         18,
		"Summarized Problem":     40,
		"Severity":               10,
		"Severity Reason":        20,
		"Resolve Type":           15,
		"R&D Comment":            40,
		"Sentiment":              12,
		types.ErrorColumn:        40,
	}
	centered = map[string]bool{
		"Progr.Stat.":    true,
		"Module":         true,
		"Sub-Module":     true,
		"Issue Type":     true,
		"Sub-Issue Type": true,
		"Severity":       true,
		"Resolve Type":   true,
		"Sentiment":      true,
	}
)

type cellKind struct {
	center  bool
	outcome types.RowOutcome
}

// writer caches one style id per (alignment, row outcome) pair.
type writer struct {
	f      *excelize.File
	sheet  string
	styles map[cellKind]int
}

func border() []excelize.Border {
	sides := []string{"left", "right", "top", "bottom"}
	out := make([]excelize.Border, len(sides))
	for i, s := range sides {
		out[i] = excelize.Border{Type: s, Color: borderColor, Style: 1}
	}
	return out
}

func (w *writer) style(k cellKind) (int, error) {
	if id, ok := w.styles[k]; ok {
		return id, nil
	}
	horizontal := "left"
	if k.center {
		horizontal = "center"
	}
	st := &excelize.Style{
		Border:    border(),
		Font:      &excelize.Font{Family: "Calibri", Size: 11, Color: "000000"},
		Alignment: &excelize.Alignment{Horizontal: horizontal, Vertical: "center", WrapText: true},
	}
	switch k.outcome {
	case types.RowFailed:
		st.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{failedFill}}
	case types.RowCancelled:
		st.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{cancelledFill}}
	}
	id, err := w.f.NewStyle(st)
	if err != nil {
		return 0, fmt.Errorf("failed to create style: %w", err)
	}
	w.styles[k] = id
	return id, nil
}

// WriteXLSX renders rows into a single-sheet workbook: a bold white-on-blue frozen
// header with an autofilter, per-column widths, centered category columns, and failed
// or cancelled rows tinted.
func WriteXLSX(columns []string, rows []types.MergedRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	w := &writer{f: f, sheet: DefaultSheetName, styles: make(map[cellKind]int)}
	if err := f.SetSheetName("Sheet1", w.sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := w.header(columns); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if err := w.row(i+2, columns, row); err != nil {
			return nil, err
		}
	}
	if err := w.layout(columns, len(rows)); err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf, nil
}

func (w *writer) header(columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	if err := w.f.SetSheetRow(w.sheet, "A1", &values); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	id, err := w.f.NewStyle(&excelize.Style{
		Border:    border(),
		Font:      &excelize.Font{Bold: true, Color: headerFont, Size: 12},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerFill}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(columns), 1)
	if err != nil {
		return err
	}
	if err := w.f.SetCellStyle(w.sheet, "A1", last, id); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	return w.f.SetRowHeight(w.sheet, 1, 24)
}

func (w *writer) row(n int, columns []string, row types.MergedRow) error {
	flat := row.Flatten(columns)
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = flat[c]
	}
	start, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	if err := w.f.SetSheetRow(w.sheet, start, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", n, err)
	}
	for i, c := range columns {
		id, err := w.style(cellKind{center: centered[c], outcome: row.Outcome})
		if err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(i+1, n)
		if err != nil {
			return err
		}
		if err := w.f.SetCellStyle(w.sheet, cell, cell, id); err != nil {
			return fmt.Errorf("failed to style %s: %w", cell, err)
		}
	}
	return nil
}

func (w *writer) layout(columns []string, rowCount int) error {
	if len(columns) == 0 {
		return nil
	}
	for i, c := range columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		width, ok := columnWidths[c]
		if !ok {
			width = defaultWidth
		}
		if err := w.f.SetColWidth(w.sheet, name, name, width); err != nil {
			return fmt.Errorf("failed to set width of %s: %w", c, err)
		}
	}
	if err := w.f.SetPanes(w.sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}
	showGrid := false
	if err := w.f.SetSheetView(w.sheet, 0, &excelize.ViewOptions{ShowGridLines: &showGrid}); err != nil {
		return fmt.Errorf("failed to set sheet view: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(columns), max(rowCount+1, 2))
	if err != nil {
		return err
	}
	if err := w.f.AutoFilter(w.sheet, "A1:"+last, nil); err != nil {
		return fmt.Errorf("failed to add autofilter: %w", err)
	}
	return nil
}
