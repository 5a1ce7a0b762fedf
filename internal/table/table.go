// Package table holds the in-memory representation of an uploaded file.
//
// A Table is an ordered list of named columns. Every column keeps the
// original text of its cells so that a table which is parsed and written
// back without modification reproduces the input. Each column also carries
// an inferred Kind which decides whether imputation applies to it.
//
// Tables live for a single request: they are built by the format package,
// optionally passed through Impute and Project, and then serialized.
package table

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Kind is the inferred scalar type of a column.
type Kind string

const (
	KindNumeric Kind = "numeric"
	KindText    Kind = "text"
)

// Cell is a single value. Raw is the text as read from the file; Missing
// reports whether the value counts as absent (empty or an NA marker).
type Cell struct {
	Raw     string
	Missing bool
}

// NewCell builds a cell from raw text, classifying it as missing or not.
func NewCell(raw string) Cell {
	return Cell{Raw: raw, Missing: IsMissing(raw)}
}

// Column is a named, ordered sequence of cells.
type Column struct {
	Name  string
	Kind  Kind
	Cells []Cell
}

// MissingCount returns the number of missing cells in the column.
func (c *Column) MissingCount() int {
	n := 0
	for _, cell := range c.Cells {
		if cell.Missing {
			n++
		}
	}
	return n
}

// Table is an ordered set of equally long columns.
type Table struct {
	Columns []*Column
}

// New builds a table from a header row and data rows. Header names are
// normalised (see NormalizeHeaders). Rows shorter than the header are padded
// with missing cells; rows longer than the header are an error, callers that
// want to accept them must widen the header first.
func New(header []string, rows [][]string) (*Table, error) {
	names := NormalizeHeaders(header)

	cols := make([]*Column, len(names))
	for i, name := range names {
		cols[i] = &Column{Name: name, Cells: make([]Cell, 0, len(rows))}
	}

	for r, row := range rows {
		if len(row) > len(names) {
			return nil, fmt.Errorf("row %d: expected %d fields, saw %d", r+1, len(names), len(row))
		}
		for i, col := range cols {
			if i < len(row) {
				col.Cells = append(col.Cells, NewCell(row[i]))
			} else {
				col.Cells = append(col.Cells, Cell{Missing: true})
			}
		}
	}

	t := &Table{Columns: cols}
	t.InferKinds()
	return t, nil
}

// InferKinds recomputes the Kind of every column.
//
// A column is numeric when every non-missing cell parses as a number. A
// column with no values at all is numeric as well: it has nothing to
// contradict it and behaves like an empty float column.
func (t *Table) InferKinds() {
	for _, col := range t.Columns {
		col.Kind = inferKind(col.Cells)
	}
}

func inferKind(cells []Cell) Kind {
	for _, cell := range cells {
		if cell.Missing {
			continue
		}
		if _, ok := ParseNumber(cell.Raw); !ok {
			return KindText
		}
	}
	return KindNumeric
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Cells)
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	return len(t.Columns)
}

// Names returns the column names in order.
func (t *Table) Names() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for _, col := range t.Columns {
		if col.Name == name {
			return col
		}
	}
	return nil
}

// Row returns the cells of row i across all columns.
func (t *Table) Row(i int) []Cell {
	row := make([]Cell, len(t.Columns))
	for c, col := range t.Columns {
		row[c] = col.Cells[i]
	}
	return row
}

// Records returns the table as string records: the header followed by one
// record per row. Missing cells are written as empty strings.
func (t *Table) Records() [][]string {
	records := make([][]string, 0, t.NumRows()+1)
	records = append(records, t.Names())
	for i := 0; i < t.NumRows(); i++ {
		rec := make([]string, len(t.Columns))
		for c, col := range t.Columns {
			if cell := col.Cells[i]; !cell.Missing {
				rec[c] = cell.Raw
			}
		}
		records = append(records, rec)
	}
	return records
}

// Head returns up to n rows as display strings, the way a preview shows them.
func (t *Table) Head(n int) [][]string {
	if n > t.NumRows() {
		n = t.NumRows()
	}
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rec := make([]string, len(t.Columns))
		for c, col := range t.Columns {
			rec[c] = col.Cells[i].Raw
			if col.Cells[i].Missing {
				rec[c] = ""
			}
		}
		rows[i] = rec
	}
	return rows
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{Columns: make([]*Column, len(t.Columns))}
	for i, col := range t.Columns {
		cells := make([]Cell, len(col.Cells))
		copy(cells, col.Cells)
		out.Columns[i] = &Column{Name: col.Name, Kind: col.Kind, Cells: cells}
	}
	return out
}

// missingMarkers are the values treated as absent in addition to blank text.
var missingMarkers = map[string]struct{}{
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {},
	"N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {},
	"nan": {}, "null": {},
}

// IsMissing reports whether raw represents an absent value.
func IsMissing(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return true
	}
	_, ok := missingMarkers[s]
	return ok
}

// maxExponent bounds the decimal exponent of a parsed number. float64 spans
// roughly 1e-324 to 1e308, so nothing a spreadsheet holds needs more.
const maxExponent = 350

// ParseNumber parses a numeric cell. Leading and trailing blanks are
// ignored. Infinities, NaN and hexadecimal forms are not accepted.
//
// Values whose exponent lies beyond float64 range (1e-30000000 underflows
// to 0) take their float64 value, so arithmetic on the result stays cheap.
func ParseNumber(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, false
	}
	// decimal accepts a few forms ParseFloat rejects and vice versa; require both.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if e := d.Exponent(); e < -maxExponent || e > maxExponent {
		return decimal.NewFromFloat(f), true
	}
	return d, true
}
