package format

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/cleaner/internal/table"
)

func TestParseCSV(t *testing.T) {
	input := "\xEF\xBB\xBFid,name,score\n1,\"Smith, J\",3.5\n\n2,bob,NA\n3,carol\n"

	tbl, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "score"}, tbl.Names())
	assert.Equal(t, 3, tbl.NumRows(), "blank line is skipped")
	assert.Equal(t, "Smith, J", tbl.Column("name").Cells[0].Raw)
	assert.Equal(t, table.KindNumeric, tbl.Column("score").Kind)
	assert.Equal(t, 2, tbl.Column("score").MissingCount(), "NA and the padded cell are missing")
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantMsg string
	}{
		{
			name:    "empty file",
			input:   "",
			wantMsg: "no columns to parse",
		},
		{
			name:    "only blank lines",
			input:   "\n\n",
			wantMsg: "no columns to parse",
		},
		{
			name:    "row wider than header",
			input:   "a,b\n1,2\n1,2,3\n",
			wantMsg: "line 3: expected 2 fields, saw 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParse))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	tbl, err := ParseCSV(strings.NewReader("a,b\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, tbl.Names())
	assert.Zero(t, tbl.NumRows())
}

func TestCSVRoundTrip(t *testing.T) {
	input := "id,note,amount\n1,\"quoted, comma\",10.50\n2,\"line\nbreak\",-3\n3,plain,\n"

	tbl, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)

	out, err := EncodeCSV(tbl)
	require.NoError(t, err)

	again, err := ParseCSV(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, tbl.Records(), again.Records())
	assert.Equal(t, input, string(out))
}

func TestEncodeCSV_SingleColumnMissingRow(t *testing.T) {
	tbl, err := table.New([]string{"v"}, [][]string{{"1"}, {""}, {"3"}})
	require.NoError(t, err)

	out, err := EncodeCSV(tbl)
	require.NoError(t, err)
	assert.Equal(t, "v\n1\n\"\"\n3\n", string(out))

	again, err := ParseCSV(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 3, again.NumRows())
}

func TestEncodeCSV_WritesMarkersAsEmpty(t *testing.T) {
	tbl, err := table.New([]string{"a", "b"}, [][]string{{"NA", "x"}})
	require.NoError(t, err)

	out, err := EncodeCSV(tbl)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n,x\n", string(out))
}
