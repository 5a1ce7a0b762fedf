package format

import (
	"fmt"

	"github.com/JonMunkholm/cleaner/internal/table"
)

// Serializer encodes tables into the format of their upload.
type Serializer struct {
	caps Capabilities
}

// NewSerializer returns a Serializer limited to the given capabilities.
func NewSerializer(caps Capabilities) *Serializer {
	return &Serializer{caps: caps}
}

// Capabilities returns the capabilities the serializer was built with.
func (s *Serializer) Capabilities() Capabilities {
	return s.caps
}

// Encode writes t in format f. Spreadsheet output fails with
// ErrSpreadsheetUnavailable when the capability probe disabled it.
func (s *Serializer) Encode(t *table.Table, f Format) ([]byte, error) {
	switch f {
	case CSV:
		return EncodeCSV(t)
	case XLSX:
		if !s.caps.Spreadsheet {
			if s.caps.Reason != "" {
				return nil, fmt.Errorf("%w: %s", ErrSpreadsheetUnavailable, s.caps.Reason)
			}
			return nil, ErrSpreadsheetUnavailable
		}
		return EncodeXLSX(t)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}
