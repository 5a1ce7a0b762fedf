package format

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/cleaner/internal/table"
)

// workbook builds an xlsx file in memory. set is called with the default
// sheet name.
func workbook(t *testing.T, set func(f *excelize.File, sheet string)) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	set(f, f.GetSheetName(0))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	data := workbook(t, func(f *excelize.File, sheet string) {
		require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"id", "name", "amount"}))
		require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{1, "alice", 10.5}))
		require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{2, "bob"}))
		require.NoError(t, f.SetSheetRow(sheet, "A5", &[]interface{}{3, "carol", 7}))
	})

	tbl, err := ParseXLSX(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "amount"}, tbl.Names())
	assert.Equal(t, 3, tbl.NumRows(), "empty row 4 is skipped")
	assert.Equal(t, table.KindNumeric, tbl.Column("amount").Kind)
	assert.Equal(t, "10.5", tbl.Column("amount").Cells[0].Raw)
	assert.True(t, tbl.Column("amount").Cells[1].Missing)
}

func TestParseXLSX_FormattedNumbersUseStoredValue(t *testing.T) {
	data := workbook(t, func(f *excelize.File, sheet string) {
		thousands, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
		require.NoError(t, err)

		require.NoError(t, f.SetCellValue(sheet, "A1", "amount"))
		require.NoError(t, f.SetCellValue(sheet, "A2", 1234.5))
		require.NoError(t, f.SetCellStyle(sheet, "A2", "A2", thousands))
		require.NoError(t, f.SetCellValue(sheet, "A3", 2))
	})

	tbl, err := ParseXLSX(bytes.NewReader(data))
	require.NoError(t, err)

	col := tbl.Column("amount")
	require.NotNil(t, col)
	assert.Equal(t, "1234.5", col.Cells[0].Raw)
	assert.Equal(t, table.KindNumeric, col.Kind)
}

func TestParseXLSX_DatesKeepDisplayText(t *testing.T) {
	data := workbook(t, func(f *excelize.File, sheet string) {
		require.NoError(t, f.SetCellValue(sheet, "A1", "when"))
		require.NoError(t, f.SetCellValue(sheet, "A2", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
	})

	tbl, err := ParseXLSX(bytes.NewReader(data))
	require.NoError(t, err)

	col := tbl.Column("when")
	require.NotNil(t, col)
	assert.Equal(t, table.KindText, col.Kind)
	assert.NotEqual(t, "45306", col.Cells[0].Raw)
}

func TestParseXLSX_Errors(t *testing.T) {
	t.Run("not a workbook", func(t *testing.T) {
		_, err := ParseXLSX(strings.NewReader("id,name\n1,a\n"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrParse))
	})

	t.Run("empty sheet", func(t *testing.T) {
		data := workbook(t, func(*excelize.File, string) {})
		_, err := ParseXLSX(bytes.NewReader(data))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrParse))
		assert.Contains(t, err.Error(), "no columns to parse")
	})
}

func TestEncodeXLSX(t *testing.T) {
	tbl, err := table.New(
		[]string{"id", "name", "score"},
		[][]string{{"1", "alice", "2.5"}, {"2", "NA", ""}},
	)
	require.NoError(t, err)

	data, err := EncodeXLSX(tbl)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	styleID, err := f.GetCellStyle(SheetName, "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)

	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "name", "score"}, rows[0])
	assert.Equal(t, []string{"1", "alice", "2.5"}, rows[1])
	assert.Equal(t, []string{"2"}, rows[2], "missing cells are left empty")
}

func TestXLSXRoundTrip(t *testing.T) {
	tbl, err := table.New(
		[]string{"A", "B"},
		[][]string{{"1", "x"}, {"", "y"}, {"3", "z"}},
	)
	require.NoError(t, err)
	table.Impute(tbl)

	data, err := EncodeXLSX(tbl)
	require.NoError(t, err)

	again, err := ParseXLSX(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, tbl.Records(), again.Records())
}

func TestXLSXRoundTrip_NumericLookingText(t *testing.T) {
	data := workbook(t, func(f *excelize.File, sheet string) {
		require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"zip", "account", "amount"}))
		require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"01234", "12345678901234567890", 1.5}))
		require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{"00501", "98765432109876543210", 2}))
		require.NoError(t, f.SetCellStr(sheet, "A4", ""))
		require.NoError(t, f.SetCellStr(sheet, "B4", "NA"))
		require.NoError(t, f.SetCellValue(sheet, "C4", 3))
	})

	tbl, err := ParseXLSX(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, table.KindText, tbl.Column("zip").Kind)
	assert.Equal(t, table.KindText, tbl.Column("account").Kind)
	assert.Equal(t, table.KindNumeric, tbl.Column("amount").Kind)

	table.Impute(tbl)
	assert.True(t, tbl.Column("zip").Cells[2].Missing, "text columns are not imputed")

	out, err := EncodeXLSX(tbl)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"01234", "12345678901234567890", "1.5"}, rows[1])
	assert.Equal(t, []string{"00501", "98765432109876543210", "2"}, rows[2])

	typ, err := f.GetCellType(SheetName, "A2")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeNumber, typ)
	assert.NotEqual(t, excelize.CellTypeUnset, typ)
}
