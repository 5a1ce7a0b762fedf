// Package format reads and writes the file formats the cleaner accepts.
//
// Format is decided by the file name suffix alone. Parsing turns the bytes
// into a table.Table; the Serializer turns a table back into the same format
// the upload came in.
package format

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/JonMunkholm/cleaner/internal/table"
)

// Format identifies a supported file format.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// Sentinel errors. Callers match them with errors.Is; the wrapped message
// carries the detail.
var (
	ErrUnsupportedFormat      = errors.New("unsupported file format")
	ErrParse                  = errors.New("failed to parse file")
	ErrSerialize              = errors.New("failed to write file")
	ErrSpreadsheetUnavailable = errors.New("spreadsheet output unavailable")
)

const (
	mimeCSV  = "text/csv"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Detect returns the format of a file from its name. The suffix match is
// case-insensitive.
func Detect(name string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch Format(ext) {
	case CSV:
		return CSV, nil
	case XLSX:
		return XLSX, nil
	}
	if ext == "" {
		return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, name)
	}
	return "", fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
}

// MIMEType returns the content type used when offering a file of this format.
func (f Format) MIMEType() string {
	if f == XLSX {
		return mimeXLSX
	}
	return mimeCSV
}

// DownloadName returns the name under which a cleaned file is offered.
func DownloadName(name string) string {
	return "cleaned_" + filepath.Base(name)
}

// Parse reads a file into a table, choosing the codec by name.
func Parse(name string, r io.Reader) (*table.Table, Format, error) {
	f, err := Detect(name)
	if err != nil {
		return nil, "", err
	}

	var t *table.Table
	switch f {
	case CSV:
		t, err = ParseCSV(r)
	case XLSX:
		t, err = ParseXLSX(r)
	}
	if err != nil {
		return nil, f, err
	}
	return t, f, nil
}
