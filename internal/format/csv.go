package format

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/cleaner/internal/table"
)

// ParseCSV reads comma-separated text into a table. The first record is the
// header. Blank lines are skipped. A record with more fields than the header
// is an error; shorter records are padded with missing cells.
func ParseCSV(r io.Reader) (*table.Table, error) {
	cr := csv.NewReader(wrapText(r))
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: no columns to parse from file", ErrParse)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var rows [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}
		if len(rec) > len(header) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d: expected %d fields, saw %d", ErrParse, line, len(header), len(rec))
		}
		rows = append(rows, rec)
	}

	t, err := table.New(header, rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return t, nil
}

// EncodeCSV writes the table as comma-separated text with a header line.
// Missing cells are written as empty fields.
func EncodeCSV(t *table.Table) ([]byte, error) {
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	w := csv.NewWriter(bw)

	for _, rec := range t.Records() {
		// A lone empty field would be written as a blank line, which
		// readers skip. Quote it so the row survives.
		if len(rec) == 1 && rec[0] == "" {
			w.Flush()
			if _, err := bw.WriteString("\"\"\n"); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrSerialize, err)
			}
			continue
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerialize, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialize, err)
	}
	if err := bw.Flush(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialize, err)
	}
	return buf.Bytes(), nil
}
