package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"benchmd/internal/benchmark"
)

func testParser(t *testing.T) *Parser {
	t.Helper()
	return NewParser(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParseCSV(t *testing.T) {
	t.Run("header on first row", func(t *testing.T) {
		csvData := strings.Join([]string{
			"Specialty,Region,TCC_P50,wRVU_P50",
			"Cardiology,National,495000,9000",
			"Dermatology,National,420000,7200",
		}, "\n")

		table, err := testParser(t).ParseCSV(context.Background(), "SurveyA", strings.NewReader(csvData))
		require.NoError(t, err)
		assert.Equal(t, "SurveyA", table.Source)
		assert.Equal(t, []string{"Specialty", "Region", "TCC_P50", "wRVU_P50"}, table.Columns)
		require.Len(t, table.Rows, 2)
		assert.Equal(t, "Cardiology", table.Rows[0]["Specialty"])
		assert.Equal(t, "495000", table.Rows[0]["TCC_P50"])
	})

	t.Run("strips a UTF-8 byte order mark", func(t *testing.T) {
		csvData := "\xef\xbb\xbf" + strings.Join([]string{
			"Specialty,Region,TCC_P50",
			"Cardiology,National,495000",
		}, "\n")

		table, err := testParser(t).ParseCSV(context.Background(), "SurveyA", strings.NewReader(csvData))
		require.NoError(t, err)
		// The first header comes through clean, not BOM-prefixed.
		assert.Equal(t, []string{"Specialty", "Region", "TCC_P50"}, table.Columns)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, "Cardiology", table.Rows[0]["Specialty"])
	})

	t.Run("skips decorative rows above the header", func(t *testing.T) {
		csvData := strings.Join([]string{
			"2025 Provider Compensation Survey,,,",
			",,,",
			"Specialty,Variable,p25,p50,p75,p90",
			"Cardiology,TCC,450000,500000,560000,625000",
		}, "\n")

		table, err := testParser(t).ParseCSV(context.Background(), "SurveyB", strings.NewReader(csvData))
		require.NoError(t, err)
		assert.Equal(t, []string{"Specialty", "Variable", "p25", "p50", "p75", "p90"}, table.Columns)
		require.Len(t, table.Rows, 1)
		assert.Equal(t, "500000", table.Rows[0]["p50"])
	})

	t.Run("ragged and empty rows", func(t *testing.T) {
		csvData := strings.Join([]string{
			"Specialty,TCC_P50,wRVU_P50",
			"Cardiology,495000",
			",,",
			"Dermatology,420000,7200,extra",
		}, "\n")

		table, err := testParser(t).ParseCSV(context.Background(), "SurveyA", strings.NewReader(csvData))
		require.NoError(t, err)
		require.Len(t, table.Rows, 2)
		assert.Equal(t, "", table.Rows[0]["wRVU_P50"], "short rows read as empty cells")
		assert.Equal(t, "7200", table.Rows[1]["wRVU_P50"], "cells beyond the header are ignored")
	})

	t.Run("duplicate and empty headers collapse", func(t *testing.T) {
		csvData := strings.Join([]string{
			"Specialty,,TCC_P50,TCC_P50",
			"Cardiology,ignored,495000,777",
		}, "\n")

		table, err := testParser(t).ParseCSV(context.Background(), "SurveyA", strings.NewReader(csvData))
		require.NoError(t, err)
		assert.Equal(t, []string{"Specialty", "TCC_P50"}, table.Columns)
		assert.Equal(t, "495000", table.Rows[0]["TCC_P50"], "first column wins")
	})

	t.Run("no header row", func(t *testing.T) {
		csvData := strings.Join([]string{
			"just,some,numbers",
			"1,2,3",
		}, "\n")

		_, err := testParser(t).ParseCSV(context.Background(), "SurveyA", strings.NewReader(csvData))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no header row")
	})
}

func TestParseExcel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "survey.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Notes"))
	require.NoError(t, f.SetCellValue("Notes", "A1", "Methodology notes"))
	_, err := f.NewSheet("Data")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Data", "A1", &[]any{"2025 Provider Compensation Survey"}))
	require.NoError(t, f.SetSheetRow("Data", "A3", &[]any{"Specialty", "Region", "TCC_P50", "wRVU_P50"}))
	require.NoError(t, f.SetSheetRow("Data", "A4", &[]any{"Cardiology", "National", 495000, 9000}))
	require.NoError(t, f.SetSheetRow("Data", "A5", &[]any{"Dermatology", "National", 420000, 7200}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	table, err := testParser(t).ParseExcel(context.Background(), "SurveyA", path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Specialty", "Region", "TCC_P50", "wRVU_P50"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Cardiology", table.Rows[0]["Specialty"])
	assert.Equal(t, "495000", table.Rows[0]["TCC_P50"])
	assert.Equal(t, benchmark.FormatWide, benchmark.DetectFormat(table.Columns))
}

func TestParseExcelNoDataSheet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "nothing here"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	_, err := testParser(t).ParseExcel(context.Background(), "SurveyA", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no survey data sheet")
}

func TestParseFile(t *testing.T) {
	t.Run("dispatches csv", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "survey.csv")
		require.NoError(t, os.WriteFile(path, []byte("Specialty,TCC_P50\nCardiology,495000\n"), 0o644))

		table, err := testParser(t).ParseFile(context.Background(), "SurveyA", path)
		require.NoError(t, err)
		assert.Len(t, table.Rows, 1)
	})

	t.Run("rejects unknown extensions", func(t *testing.T) {
		_, err := testParser(t).ParseFile(context.Background(), "SurveyA", "survey.pdf")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported survey file type")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := testParser(t).ParseFile(context.Background(), "SurveyA", filepath.Join(t.TempDir(), "absent.csv"))
		assert.Error(t, err)
	})
}
