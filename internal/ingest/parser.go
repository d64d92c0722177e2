// Package ingest reads raw survey files into tables the engine can
// normalize. CSV and Excel workbooks are supported; vendors ship both,
// usually with decorative title rows above the real header.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"benchmd/internal/benchmark"
)

// utf8BOM is the byte order mark Excel prepends when exporting CSV.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// maxHeaderScan bounds how many leading rows are inspected while looking
// for the header row.
const maxHeaderScan = 10

// preferredSheets are tried by name before scanning a workbook's sheets
// for survey data.
var preferredSheets = []string{"Data", "Survey Data", "Benchmarks", "Benchmark Data", "Sheet1"}

// Parser reads survey files into raw tables.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// ParseFile reads a survey file, dispatching on its extension. The source
// name is stamped onto the returned table.
func (p *Parser) ParseFile(ctx context.Context, source, path string) (*benchmark.RawTable, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return p.ParseCSV(ctx, source, f)
	case ".xlsx", ".xlsm":
		return p.ParseExcel(ctx, source, path)
	default:
		return nil, fmt.Errorf("unsupported survey file type %q", ext)
	}
}

// ParseCSV reads CSV survey data. Rows above the detected header are
// discarded; ragged data rows are tolerated.
func (p *Parser) ParseCSV(ctx context.Context, source string, r io.Reader) (*benchmark.RawTable, error) {
	buffered := bufio.NewReader(r)
	if lead, err := buffered.Peek(len(utf8BOM)); err == nil && bytes.Equal(lead, utf8BOM) {
		buffered.Discard(len(utf8BOM))
	}
	reader := csv.NewReader(buffered)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv for %s: %w", source, err)
	}
	return p.buildTable(ctx, source, records)
}

// ParseExcel reads the survey sheet of an Excel workbook. Preferred sheet
// names are tried first, then every sheet is scanned for one whose
// leading rows contain a recognizable header.
func (p *Parser) ParseExcel(ctx context.Context, source, path string) (*benchmark.RawTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	var rows [][]string
	var sheetName string

	for _, name := range preferredSheets {
		candidate, err := f.GetRows(name)
		if err != nil || len(candidate) == 0 {
			continue
		}
		if headerIndex(candidate) >= 0 {
			rows, sheetName = candidate, name
			break
		}
	}
	if sheetName == "" {
		for _, name := range f.GetSheetList() {
			candidate, err := f.GetRows(name)
			if err != nil || len(candidate) == 0 {
				continue
			}
			if headerIndex(candidate) >= 0 {
				rows, sheetName = candidate, name
				break
			}
		}
	}
	if sheetName == "" {
		return nil, fmt.Errorf("no survey data sheet found in %s", path)
	}

	p.logger.DebugContext(ctx, "survey sheet selected",
		slog.String("source", source),
		slog.String("sheet", sheetName))

	return p.buildTable(ctx, source, rows)
}

// buildTable locates the header row and converts everything below it into
// raw rows keyed by header. Columns with empty or duplicate headers are
// dropped (first occurrence wins), and fully empty rows are skipped.
func (p *Parser) buildTable(ctx context.Context, source string, records [][]string) (*benchmark.RawTable, error) {
	headerRow := headerIndex(records)
	if headerRow < 0 {
		return nil, fmt.Errorf("no header row found for %s within the first %d rows", source, maxHeaderScan)
	}

	var columns []string
	colIndex := make(map[int]string)
	seen := make(map[string]bool)
	for i, header := range records[headerRow] {
		header = strings.TrimSpace(header)
		if header == "" || seen[header] {
			continue
		}
		seen[header] = true
		columns = append(columns, header)
		colIndex[i] = header
	}

	table := &benchmark.RawTable{Source: source, Columns: columns}
	for _, record := range records[headerRow+1:] {
		if rowEmpty(record) {
			continue
		}
		row := make(benchmark.RawRow, len(colIndex))
		for i, header := range colIndex {
			if i < len(record) {
				row[header] = strings.TrimSpace(record[i])
			} else {
				row[header] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}

	p.logger.InfoContext(ctx, "survey file parsed",
		slog.String("source", source),
		slog.Int("header_row", headerRow),
		slog.Int("columns", len(columns)),
		slog.Int("rows", len(table.Rows)),
		slog.String("format", benchmark.DetectFormat(columns).String()))

	return table, nil
}

// headerIndex finds the first leading row that reads as a survey header:
// either the row's cells classify as a known layout, or they include a
// specialty column alongside at least one other named column.
func headerIndex(records [][]string) int {
	limit := len(records)
	if limit > maxHeaderScan {
		limit = maxHeaderScan
	}
	for i := 0; i < limit; i++ {
		cells := trimmedCells(records[i])
		if len(cells) < 2 {
			continue
		}
		if benchmark.DetectFormat(cells) != benchmark.FormatUnrecognized {
			return i
		}
		if hasSpecialtyHeader(cells) {
			return i
		}
	}
	return -1
}

func trimmedCells(record []string) []string {
	var cells []string
	for _, cell := range record {
		cell = strings.TrimSpace(cell)
		if cell != "" {
			cells = append(cells, cell)
		}
	}
	return cells
}

func hasSpecialtyHeader(cells []string) bool {
	for _, cell := range cells {
		if strings.Contains(strings.ToLower(cell), "specialty") {
			return true
		}
	}
	return false
}

func rowEmpty(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
