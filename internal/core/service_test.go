package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/cleaner/internal/format"
	"github.com/JonMunkholm/cleaner/internal/history"
)

type memRecorder struct {
	mu   sync.Mutex
	runs []history.Run
}

func (m *memRecorder) Record(_ context.Context, run history.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memRecorder) Recent(context.Context, int) ([]history.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]history.Run(nil), m.runs...), nil
}

func newTestService(t *testing.T, caps format.Capabilities, opts ...Option) *Service {
	t.Helper()
	return NewService(Config{PreviewRows: 3, Workers: 2, MaxConcurrent: 2, MaxWait: time.Second}, format.NewSerializer(caps), opts...)
}

func xlsxFixture(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestClean_ImputeFillsMean(t *testing.T) {
	svc := newTestService(t, format.Capabilities{Spreadsheet: true})

	res, err := svc.Clean(context.Background(), FileRequest{
		Name:    "data.csv",
		Data:    []byte("A,B\n1,x\n,y\n3,z\n"),
		Options: Options{Impute: true},
	})
	require.NoError(t, err)

	require.Equal(t, StatusOK, res.Status, "message: %+v", res.Message)
	require.NotNil(t, res.Artifact)
	assert.Equal(t, "cleaned_data.csv", res.Artifact.DownloadName)
	assert.Equal(t, "text/csv", res.Artifact.MIMEType)

	a, err := svc.Download(res.Artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, "A,B\n1,x\n2,y\n3,z\n", string(a.Data))

	require.NotNil(t, res.Imputed)
	assert.Equal(t, 1, res.Imputed.Filled())
	assert.Equal(t, [][]string{{"1", "x"}, {"2", "y"}, {"3", "z"}}, res.Preview.Head)
}

func TestClean_WithoutImputeKeepsGaps(t *testing.T) {
	svc := newTestService(t, format.Capabilities{Spreadsheet: true})

	res, err := svc.Clean(context.Background(), FileRequest{
		Name: "data.csv",
		Data: []byte("A,B\n1,x\nNA,y\n"),
	})
	require.NoError(t, err)
	require.Equal(t, StatusOK, res.Status)
	assert.Nil(t, res.Imputed)

	a, err := svc.Download(res.Artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, "A,B\n1,x\n,y\n", string(a.Data))
}

func TestClean_ProjectsColumns(t *testing.T) {
	svc := newTestService(t, format.Capabilities{Spreadsheet: true})

	res, err := svc.Clean(context.Background(), FileRequest{
		Name:    "data.csv",
		Data:    []byte("A,B,C\n1,x,true\n2,y,false\n"),
		Options: Options{Columns: []string{"C", "A"}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusOK, res.Status)

	a, err := svc.Download(res.Artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, "A,C\n1,true\n2,false\n", string(a.Data))
	assert.Len(t, res.Preview.Columns, 2)
}

func TestClean_UnknownColumn(t *testing.T) {
	svc := newTestService(t, format.Capabilities{Spreadsheet: true})

	res, err := svc.Clean(context.Background(), FileRequest{
		Name:    "data.csv",
		Data:    []byte("A\n1\n"),
		Options: Options{Columns: []string{"Z"}},
	})
	require.NoError(t, err)

	assert.Equal(t, StatusError, res.Status)
	require.NotNil(t, res.Message)
	assert.Equal(t, "COL001", res.Message.Code)
	assert.Contains(t, res.Detail, `"Z"`)
	assert.Nil(t, res.Artifact)
}

func TestCleanBatch_UnsupportedFileDoesNotStopOthers(t *testing.T) {
	svc := newTestService(t, format.Capabilities{Spreadsheet: true})

	batch, err := svc.CleanBatch(context.Background(), []FileRequest{
		{Name: "a.csv", Data: []byte("x\n1\n")},
		{Name: "notes.txt", Data: []byte("hello")},
		{Name: "b.xlsx", Data: xlsxFixture(t, [][]interface{}{{"n", "s"}, {1, "a"}, {nil, "b"}, {3, "c"}})},
		{Name: "broken.csv", Data: []byte("a,b\n1,2,3\n")},
	})
	require.NoError(t, err)
	require.Len(t, batch.Files, 4)

	names := make([]string, len(batch.Files))
	for i, f := range batch.Files {
		names[i] = f.FileName
	}
	assert.Equal(t, []string{"a.csv", "notes.txt", "b.xlsx", "broken.csv"}, names, "results keep upload order")

	assert.Equal(t, StatusOK, batch.Files[0].Status)
	assert.Equal(t, StatusError, batch.Files[1].Status)
	assert.Equal(t, "FMT001", batch.Files[1].Message.Code)
	assert.Equal(t, StatusOK, batch.Files[2].Status)
	assert.Equal(t, format.XLSX.MIMEType(), batch.Files[2].Artifact.MIMEType)
	assert.Equal(t, StatusError, batch.Files[3].Status)
	assert.Equal(t, "PARSE001", batch.Files[3].Message.Code)

	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 2, batch.Failed)
	assert.NotEmpty(t, batch.BatchID)
}

func TestCleanBatch_SpreadsheetUnavailable(t *testing.T) {
	svc := newTestService(t, format.Capabilities{Reason: "spreadsheet output is disabled by configuration"})

	batch, err := svc.CleanBatch(context.Background(), []FileRequest{
		{Name: "a.xlsx", Data: xlsxFixture(t, [][]interface{}{{"v"}, {1}})},
		{Name: "b.csv", Data: []byte("v\n1\n")},
	})
	require.NoError(t, err)

	x := batch.Files[0]
	assert.Equal(t, StatusWarning, x.Status)
	assert.Equal(t, "CAP001", x.Message.Code)
	assert.Nil(t, x.Artifact)
	require.NotNil(t, x.Preview, "the table is still previewed")
	assert.Equal(t, 1, x.Preview.Rows)

	assert.Equal(t, StatusOK, batch.Files[1].Status)
	assert.Equal(t, 1, batch.Warnings)
}

func TestCleanBatch_XLSXRoundTrip(t *testing.T) {
	svc := newTestService(t, format.Capabilities{Spreadsheet: true})

	batch, err := svc.CleanBatch(context.Background(), []FileRequest{{
		Name:    "b.xlsx",
		Data:    xlsxFixture(t, [][]interface{}{{"n", "s"}, {1, "a"}, {nil, "b"}, {3, "c"}}),
		Options: Options{Impute: true},
	}})
	require.NoError(t, err)
	require.Equal(t, StatusOK, batch.Files[0].Status)

	a, err := svc.Download(batch.Files[0].Artifact.ID)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(a.Data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(format.SheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"n", "s"}, {"1", "a"}, {"2", "b"}, {"3", "c"}}, rows)
}

func TestCleanBatch_NoFiles(t *testing.T) {
	svc := newTestService(t, format.Capabilities{})

	_, err := svc.CleanBatch(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrNoFiles))
}

func TestCleanBatch_CancelledContext(t *testing.T) {
	svc := NewService(Config{MaxConcurrent: 1}, format.NewSerializer(format.Capabilities{}))
	require.NoError(t, svc.Limiter().Acquire(context.Background()))
	defer svc.Limiter().Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.CleanBatch(ctx, []FileRequest{{Name: "a.csv", Data: []byte("a\n1\n")}})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCleanBatch_RecordsHistory(t *testing.T) {
	rec := &memRecorder{}
	svc := newTestService(t, format.Capabilities{}, WithRecorder(rec))

	ctx := ContextWithClient(context.Background(), "203.0.113.9", "test-agent")
	batch, err := svc.CleanBatch(ctx, []FileRequest{
		{Name: "a.csv", Data: []byte("x,y\n1,a\n2,b\n"), Options: Options{Impute: true}},
		{Name: "b.txt", Data: []byte("x")},
	})
	require.NoError(t, err)

	runs, err := svc.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byName := map[string]history.Run{}
	for _, r := range runs {
		byName[r.FileName] = r
		assert.Equal(t, batch.BatchID, r.BatchID.String())
		assert.Equal(t, "203.0.113.9", r.ClientIP)
	}
	assert.Equal(t, "ok", byName["a.csv"].Status)
	assert.Equal(t, 2, byName["a.csv"].Rows)
	assert.Equal(t, 2, byName["a.csv"].Columns)
	assert.True(t, byName["a.csv"].Imputed)
	assert.Equal(t, "FMT001", byName["b.txt"].Code)
}

func TestInspect(t *testing.T) {
	svc := newTestService(t, format.Capabilities{})

	var data bytes.Buffer
	data.WriteString("id,name,score\n")
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&data, "%d,n%d,\n", i, i)
	}

	p, err := svc.Inspect(context.Background(), "big.csv", data.Bytes())
	require.NoError(t, err)

	assert.Equal(t, 10, p.Rows)
	assert.Len(t, p.Head, 3)
	assert.Equal(t, []ColumnSummary{
		{Name: "id", Kind: "numeric", Missing: 0},
		{Name: "name", Kind: "text", Missing: 0},
		{Name: "score", Kind: "numeric", Missing: 10},
	}, p.Columns)

	_, err = svc.Inspect(context.Background(), "x.json", []byte("{}"))
	assert.True(t, errors.Is(err, format.ErrUnsupportedFormat))
}

func TestParse_UsesDetectedFormat(t *testing.T) {
	svc := newTestService(t, format.Capabilities{})

	// The codec follows the format passed in, not the name.
	tbl, err := svc.parse(context.Background(), FileRequest{Name: "export.dat", Data: []byte("a,b\n1,2\n")}, format.CSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Names())

	_, err = svc.parse(context.Background(), FileRequest{Name: "a.csv", Data: []byte("a\n1\n")}, format.Format("json"))
	assert.True(t, errors.Is(err, format.ErrUnsupportedFormat))
}

func TestStage_CleanByID(t *testing.T) {
	svc := newTestService(t, format.Capabilities{})

	id := svc.Stage("a.csv", []byte("A,B\n1,x\n,y\n"))

	req, err := svc.Staged(id)
	require.NoError(t, err)
	assert.Equal(t, "a.csv", req.Name)

	req.Options = Options{Impute: true}
	res, err := svc.Clean(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, StatusOK, res.Status)

	_, err = svc.Download(id)
	assert.True(t, errors.Is(err, ErrArtifactNotFound), "staged files are not downloads")

	_, err = svc.Staged("missing")
	assert.True(t, errors.Is(err, ErrUploadExpired))
}
