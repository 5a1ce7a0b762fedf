package table

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownColumn is returned by Project when a requested column does not
// exist in the table.
var ErrUnknownColumn = errors.New("unknown column")

// Project returns a table that holds only the requested columns, in the
// order they appear in t. Rows are unchanged. An empty request selects every
// column. Repeated names in the request are ignored.
//
// The returned table shares cell storage with t.
func Project(t *Table, columns []string) (*Table, error) {
	if len(columns) == 0 {
		return &Table{Columns: append([]*Column(nil), t.Columns...)}, nil
	}

	want := make(map[string]bool, len(columns))
	var unknown []string
	for _, name := range columns {
		if t.Column(name) == nil {
			unknown = append(unknown, name)
			continue
		}
		want[name] = true
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, strings.Join(quoteAll(unknown), ", "))
	}

	out := &Table{Columns: make([]*Column, 0, len(want))}
	for _, col := range t.Columns {
		if want[col.Name] {
			out.Columns = append(out.Columns, col)
		}
	}
	return out, nil
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = fmt.Sprintf("%q", n)
	}
	return out
}
