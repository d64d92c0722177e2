package benchmark

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
)

// builtinAliases maps normalized headers to canonical fields when no
// column mapping says otherwise. These cover the spellings recurring
// across published compensation surveys.
var builtinAliases = map[string]string{
	"specialty":            FieldSpecialty,
	"specialty_name":       FieldSpecialty,
	"medical_specialty":    FieldSpecialty,
	"physician_specialty":  FieldSpecialty,
	"provider_specialty":   FieldSpecialty,
	"provider_type":        FieldProviderType,
	"provider_category":    FieldProviderType,
	"position":             FieldProviderType,
	"role":                 FieldProviderType,
	"staff_type":           FieldProviderType,
	"region":               FieldRegion,
	"geographic_region":    FieldRegion,
	"geography":            FieldRegion,
	"geo_region":           FieldRegion,
	"census_region":        FieldRegion,
	"n_orgs":               FieldNOrgs,
	"norgs":                FieldNOrgs,
	"n_org":                FieldNOrgs,
	"orgs":                 FieldNOrgs,
	"org_count":            FieldNOrgs,
	"organizations":        FieldNOrgs,
	"number_of_orgs":       FieldNOrgs,
	"n_incumbents":         FieldNIncumbents,
	"nincumbents":          FieldNIncumbents,
	"incumbents":           FieldNIncumbents,
	"n_inc":                FieldNIncumbents,
	"incumbent_count":      FieldNIncumbents,
	"n_providers":          FieldNIncumbents,
	"provider_count":       FieldNIncumbents,
	"number_of_incumbents": FieldNIncumbents,
	"n":                    FieldNIncumbents,
}

// missingTokens are cell values treated as absent rather than zero.
var missingTokens = map[string]bool{
	"": true, "-": true, "--": true, "*": true, "**": true,
	"n/a": true, "na": true, "null": true, "nr": true, ".": true,
}

// Normalizer turns raw tables into canonical survey rows. Column mappings
// take precedence over the built-in header aliases; headers neither
// covers pass through untouched so custom variables are never dropped.
type Normalizer struct {
	columns *ColumnMappings
	logger  *slog.Logger
}

// NewNormalizer creates a normalizer. columns may be nil when no column
// mappings exist, leaving only the built-in aliases active.
func NewNormalizer(columns *ColumnMappings, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{columns: columns, logger: logger}
}

// NormalizeTable converts one source's table into canonical rows. Long
// rows map 1:1; wide rows fan out into one row per discovered metric.
// Rows that end up with no specialty or no metric value are dropped and
// counted per source in the diagnostics. Tables matching neither layout
// return a *FormatError.
func (n *Normalizer) NormalizeTable(ctx context.Context, table *RawTable) ([]SurveyRow, Diagnostics, error) {
	var diags Diagnostics

	format := DetectFormat(table.Columns)
	if format == FormatUnrecognized {
		return nil, diags, &FormatError{Source: table.Source, Columns: table.Columns}
	}

	fields := n.fieldIndex(table.Source, table.Columns)

	var rows []SurveyRow
	switch format {
	case FormatLong:
		rows = n.normalizeLong(table, fields, &diags)
	case FormatWide:
		rows = n.normalizeWide(table, fields, &diags)
	}

	for i := range rows {
		if !rows[i].IsMonotonic() {
			diags.AddMonotonicity(MonotonicityWarning{
				SurveySource: rows[i].SurveySource,
				Specialty:    rows[i].Specialty,
				Variable:     rows[i].Variable,
				Detail:       "row percentiles out of order, values retained",
			})
			n.logger.WarnContext(ctx, "percentiles out of order",
				slog.String("source", rows[i].SurveySource),
				slog.String("specialty", rows[i].Specialty),
				slog.String("variable", rows[i].Variable))
		}
	}

	n.logger.DebugContext(ctx, "table normalized",
		slog.String("source", table.Source),
		slog.String("format", format.String()),
		slog.Int("raw_rows", len(table.Rows)),
		slog.Int("survey_rows", len(rows)),
		slog.Int("unmappable", diags.UnmappableRows[table.Source]))

	return rows, diags, nil
}

// fieldIndex resolves each column header to the canonical field it feeds,
// column mappings first, built-in aliases second. The first header to
// claim a field keeps it.
func (n *Normalizer) fieldIndex(source string, columns []string) map[string]string {
	fields := make(map[string]string)
	claim := func(field, col string) {
		if _, taken := fields[field]; !taken {
			fields[field] = col
		}
	}
	for _, col := range columns {
		norm := normalizeHeader(col)

		if standardized, ok := n.columns.Resolve(source, col); ok {
			std := normalizeHeader(standardized)
			if key, isPctl := percentileKey(std); isPctl {
				claim(key, col)
			} else {
				claim(std, col)
			}
			continue
		}

		if field, ok := builtinAliases[norm]; ok {
			claim(field, col)
			continue
		}
		if isVariableHeader(norm) {
			claim(FieldVariable, col)
			continue
		}
		if key, ok := percentileKey(norm); ok {
			claim(key, col)
		}
	}
	return fields
}

func (n *Normalizer) normalizeLong(table *RawTable, fields map[string]string, diags *Diagnostics) []SurveyRow {
	rows := make([]SurveyRow, 0, len(table.Rows))
	for _, raw := range table.Rows {
		row := SurveyRow{
			SurveySource: table.Source,
			Specialty:    cellValue(raw, fields, FieldSpecialty),
			ProviderType: cellValue(raw, fields, FieldProviderType),
			Region:       cellValue(raw, fields, FieldRegion),
			Variable:     n.metricName(table.Source, cellValue(raw, fields, FieldVariable)),
			NOrgs:        parseCount(cellValue(raw, fields, FieldNOrgs)),
			NIncumbents:  parseCount(cellValue(raw, fields, FieldNIncumbents)),
			SourceFormat: FormatLong,
		}
		for _, key := range PercentileKeys {
			if col, ok := fields[key]; ok {
				row.SetPercentile(key, parseNullableFloat(raw[col]))
			}
		}
		if row.Specialty == "" || row.Variable == "" || !row.HasValue() {
			diags.AddUnmappable(table.Source)
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func (n *Normalizer) normalizeWide(table *RawTable, fields map[string]string, diags *Diagnostics) []SurveyRow {
	descriptors := DiscoverColumns(table.Columns)
	rows := make([]SurveyRow, 0, len(table.Rows))

	for _, raw := range table.Rows {
		specialty := cellValue(raw, fields, FieldSpecialty)
		providerType := cellValue(raw, fields, FieldProviderType)
		region := cellValue(raw, fields, FieldRegion)
		rowOrgs := parseCount(cellValue(raw, fields, FieldNOrgs))
		rowIncumbents := parseCount(cellValue(raw, fields, FieldNIncumbents))

		emitted := 0
		for i := range descriptors {
			desc := &descriptors[i]
			row := SurveyRow{
				SurveySource: table.Source,
				Specialty:    specialty,
				ProviderType: providerType,
				Region:       region,
				Variable:     n.metricName(table.Source, desc.Name),
				SourceFormat: FormatWide,
			}
			for _, key := range PercentileKeys {
				if col, ok := desc.Columns[key]; ok {
					row.SetPercentile(key, parseNullableFloat(raw[col]))
				}
			}
			if !row.HasValue() {
				continue
			}

			// Metric-scoped sample sizes win over row-level ones.
			row.NOrgs = rowOrgs
			if col, ok := desc.Columns[FieldNOrgs]; ok {
				row.NOrgs = parseCount(raw[col])
			}
			row.NIncumbents = rowIncumbents
			if col, ok := desc.Columns[FieldNIncumbents]; ok {
				row.NIncumbents = parseCount(raw[col])
			}

			if specialty != "" {
				rows = append(rows, row)
			}
			emitted++
		}

		if specialty == "" || emitted == 0 {
			diags.AddUnmappable(table.Source)
		}
	}
	return rows
}

// metricName applies the column mapping to a raw metric name and returns
// the canonical normalized form. Unmapped names pass through so sources
// can publish variables the taxonomy has not cataloged yet.
func (n *Normalizer) metricName(source, raw string) string {
	if raw == "" {
		return ""
	}
	if standardized, ok := n.columns.Resolve(source, raw); ok {
		return normalizeHeader(standardized)
	}
	return normalizeHeader(raw)
}

func cellValue(raw RawRow, fields map[string]string, field string) string {
	col, ok := fields[field]
	if !ok {
		return ""
	}
	return strings.TrimSpace(raw[col])
}

// parseNullableFloat parses a survey cell into a float, treating missing
// tokens and unparseable text as absent. Currency symbols, thousands
// separators and surrounding whitespace are tolerated.
func parseNullableFloat(s string) *float64 {
	cleaned := strings.TrimSpace(s)
	if missingTokens[strings.ToLower(cleaned)] {
		return nil
	}
	cleaned = strings.NewReplacer("$", "", ",", "", " ", "").Replace(cleaned)
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseCount parses a sample size cell, returning 0 for anything missing
// or negative. Some vendors publish counts with decimal points.
func parseCount(s string) int {
	v := parseNullableFloat(s)
	if v == nil || *v < 0 {
		return 0
	}
	return int(math.Round(*v))
}
