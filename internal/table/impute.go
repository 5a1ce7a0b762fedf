package table

import (
	"github.com/shopspring/decimal"
)

// ColumnFill describes what imputation did to one numeric column.
type ColumnFill struct {
	Column string `json:"column"`
	// Mean is the fill value as written into the cells. Empty when the
	// column had no values to average.
	Mean    string `json:"mean,omitempty"`
	Filled  int    `json:"filled"`
	Skipped bool   `json:"skipped,omitempty"`
}

// ImputeReport lists the numeric columns imputation looked at.
type ImputeReport struct {
	Columns []ColumnFill `json:"columns"`
}

// Filled returns the total number of cells filled. A nil report filled
// nothing.
func (r *ImputeReport) Filled() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, c := range r.Columns {
		n += c.Filled
	}
	return n
}

// Impute replaces every missing cell of each numeric column with the mean
// of that column's present values. Text columns are left untouched.
//
// A numeric column without any present value has no mean; its cells stay
// missing and the column is reported as skipped.
func Impute(t *Table) ImputeReport {
	var report ImputeReport

	for _, col := range t.Columns {
		if col.Kind != KindNumeric {
			continue
		}

		mean, ok := columnMean(col)
		if !ok {
			report.Columns = append(report.Columns, ColumnFill{
				Column:  col.Name,
				Filled:  0,
				Skipped: true,
			})
			continue
		}

		fill := mean.String()
		filled := 0
		for i := range col.Cells {
			if col.Cells[i].Missing {
				col.Cells[i] = Cell{Raw: fill}
				filled++
			}
		}

		report.Columns = append(report.Columns, ColumnFill{
			Column: col.Name,
			Mean:   fill,
			Filled: filled,
		})
	}

	return report
}

// columnMean averages the present cells of a column. ok is false when the
// column has no present cells.
func columnMean(col *Column) (mean decimal.Decimal, ok bool) {
	sum := decimal.Zero
	n := int64(0)
	for _, cell := range col.Cells {
		if cell.Missing {
			continue
		}
		v, valid := ParseNumber(cell.Raw)
		if !valid {
			continue
		}
		sum = sum.Add(v)
		n++
	}
	if n == 0 {
		return decimal.Zero, false
	}
	return sum.Div(decimal.NewFromInt(n)), true
}

// Mean returns the mean of the present values of a numeric column.
func Mean(col *Column) (decimal.Decimal, bool) {
	return columnMean(col)
}
