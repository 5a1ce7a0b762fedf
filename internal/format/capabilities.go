package format

import (
	"bytes"
	"io"

	"github.com/JonMunkholm/cleaner/internal/table"
)

// Capabilities describes which output formats work in this process.
type Capabilities struct {
	Spreadsheet bool   `json:"spreadsheet"`
	Reason      string `json:"reason,omitempty"`
}

// Probe checks whether spreadsheet output can be produced. It is run once
// at startup; enabled reflects configuration. When enabled, a small workbook
// is encoded and read back, and any failure disables spreadsheet output.
func Probe(enabled bool) Capabilities {
	if !enabled {
		return Capabilities{Reason: "spreadsheet output is disabled by configuration"}
	}
	return probeWith(EncodeXLSX, ParseXLSX)
}

func probeWith(encode func(*table.Table) ([]byte, error), decode func(io.Reader) (*table.Table, error)) Capabilities {
	sample, err := table.New([]string{"probe"}, [][]string{{"1"}})
	if err != nil {
		return Capabilities{Reason: err.Error()}
	}
	data, err := encode(sample)
	if err != nil {
		return Capabilities{Reason: err.Error()}
	}
	if _, err := decode(bytes.NewReader(data)); err != nil {
		return Capabilities{Reason: err.Error()}
	}
	return Capabilities{Spreadsheet: true}
}
