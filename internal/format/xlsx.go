package format

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/cleaner/internal/table"
)

// SheetName is the worksheet name used for spreadsheet output.
const SheetName = "CleanedData"

// ParseXLSX reads the first worksheet of a workbook into a table. The first
// row is the header; rows with no values are skipped.
//
// Cells keep their displayed text, except where that text only presents a
// number (thousands separators, currency, percent). Those cells take the
// stored numeric value so the column is recognised as numeric.
//
// A column holding any present cell stored as text ("01234" typed as a
// string) is a text column whatever its values look like, so serializing
// it again writes the same strings back.
func ParseXLSX(r io.Reader) (*table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no worksheets", ErrParse)
	}

	shown, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %v", ErrParse, sheet, err)
	}
	stored, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: sheet %q: %v", ErrParse, sheet, err)
	}

	var records [][]string
	textCols := make(map[int]bool)
	for i, row := range shown {
		var raw []string
		if i < len(stored) {
			raw = stored[i]
		}
		rec := make([]string, len(row))
		blank := true
		for c, text := range row {
			rec[c] = cellValue(text, at(raw, c))
			if strings.TrimSpace(rec[c]) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}

		// The header row never decides a column's kind.
		if len(records) > 0 {
			for c, v := range rec {
				if textCols[c] || table.IsMissing(v) {
					continue
				}
				isText, err := storedAsText(f, sheet, c+1, i+1)
				if err != nil {
					return nil, fmt.Errorf("%w: sheet %q: %v", ErrParse, sheet, err)
				}
				textCols[c] = isText
			}
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no columns to parse from file", ErrParse)
	}

	header, rows := records[0], records[1:]
	width := len(header)
	for _, row := range rows {
		width = max(width, len(row))
	}
	// GetRows drops trailing empty cells, so a header can be shorter than
	// its data. Missing header cells become unnamed columns.
	for len(header) < width {
		header = append(header, "")
	}

	t, err := table.New(header, rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	for c, isText := range textCols {
		if isText && c < len(t.Columns) {
			t.Columns[c].Kind = table.KindText
		}
	}
	return t, nil
}

// storedAsText reports whether the cell at col, row (1-based) holds a
// string rather than a number. Formulas with a string result count as text.
func storedAsText(f *excelize.File, sheet string, col, row int) (bool, error) {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false, err
	}
	typ, err := f.GetCellType(sheet, name)
	if err != nil {
		return false, err
	}
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula:
		return true, nil
	}
	return false, nil
}

func at(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// cellValue picks between the displayed and stored text of a cell.
func cellValue(shown, stored string) string {
	if shown == stored || stored == "" {
		return shown
	}
	if _, ok := table.ParseNumber(stored); !ok {
		return shown
	}
	if presentsNumber(shown) {
		return stored
	}
	return shown
}

// presentsNumber reports whether text is a number decorated with grouping,
// currency or percent signs.
func presentsNumber(text string) bool {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '\u00a0', '$', '€', '£', '¥', '%':
			return -1
		}
		return r
	}, text)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}
	_, ok := table.ParseNumber(s)
	return ok
}

// EncodeXLSX writes the table to a single-sheet workbook named SheetName.
// The header row is bold. Numeric columns are written as numbers, other
// cells as text, and missing cells are left empty.
func EncodeXLSX(t *table.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialize, err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialize, err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialize, err)
	}

	header := make([]interface{}, t.NumCols())
	for i, name := range t.Names() {
		header[i] = excelize.Cell{StyleID: bold, Value: name}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialize, err)
	}

	for r := 0; r < t.NumRows(); r++ {
		values := make([]interface{}, t.NumCols())
		for c, col := range t.Columns {
			values[c] = xlsxValue(col, col.Cells[r])
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerialize, err)
		}
		if err := sw.SetRow(cell, values); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrSerialize, r+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialize, err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialize, err)
	}
	return buf.Bytes(), nil
}

func xlsxValue(col *table.Column, cell table.Cell) interface{} {
	if cell.Missing {
		return nil
	}
	if col.Kind == table.KindNumeric {
		if d, ok := table.ParseNumber(cell.Raw); ok {
			v, _ := d.Float64()
			return v
		}
	}
	return cell.Raw
}
