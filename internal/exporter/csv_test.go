package exporter

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVWriter_WriteCSV(t *testing.T) {
	w := NewCSVWriter(nil)
	path := filepath.Join(t.TempDir(), "out.csv")

	err := w.WriteCSV(path, WriteOptions{
		Headers: []string{"specialty", "metric"},
		Records: [][]string{
			{"Cardiology", "Total Cash Compensation"},
			{"Family Medicine", "Work RVUs"},
		},
	})
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	lines, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"specialty", "metric"}, lines[0])
}

func TestCSVWriter_Append(t *testing.T) {
	w := NewCSVWriter(nil)
	path := filepath.Join(t.TempDir(), "out.csv")

	require.NoError(t, w.WriteCSV(path, WriteOptions{
		Headers: []string{"specialty"},
		Records: [][]string{{"Cardiology"}},
	}))

	// Appending must not re-emit the header or BOM.
	require.NoError(t, w.WriteCSV(path, WriteOptions{
		Headers: []string{"specialty"},
		Records: [][]string{{"Dermatology"}},
		Append:  true,
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Equal(t, "Dermatology", lines[2][0])
}

func TestCSVWriter_WriteTo_QuotesCommas(t *testing.T) {
	w := NewCSVWriter(nil)

	var buf bytes.Buffer
	err := w.WriteTo(&buf, WriteOptions{
		Headers: []string{"specialty"},
		Records: [][]string{{"Hematology, Oncology"}},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"Hematology, Oncology"`)
}

func TestStreamWriter(t *testing.T) {
	w := NewCSVWriter(nil)
	path := filepath.Join(t.TempDir(), "stream.csv")

	sw, err := w.CreateStreamWriter(path, []string{"specialty", "p50"})
	require.NoError(t, err)

	require.NoError(t, sw.WriteRecord([]string{"Cardiology", "475000.00"}))
	require.NoError(t, sw.WriteRecord([]string{"Dermatology", "420000.00"}))
	require.NoError(t, sw.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, utf8BOM, data[:3])

	lines, err := csv.NewReader(bytes.NewReader(data[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 3)
}
