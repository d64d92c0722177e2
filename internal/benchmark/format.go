package benchmark

import "strings"

// DetectFormat classifies a table's layout from its column headers alone.
//
// A table is long when it carries a variable (or benchmark) column next to
// all four percentile columns, so each row names the metric it describes.
// A table is wide when at least one header matches <metric>_<percentile>,
// so each row fans out across metric-specific columns. Anything else is
// unrecognized and must be rejected by callers before normalization.
//
// Long is checked first: a long table never carries metric-prefixed
// percentile headers, while a malformed wide table could coincidentally
// carry a "variable" column.
func DetectFormat(columns []string) Format {
	if len(columns) == 0 {
		return FormatUnrecognized
	}

	hasVariable := false
	percentiles := make(map[string]bool, 4)
	wide := false

	for _, col := range columns {
		norm := normalizeHeader(col)
		if isVariableHeader(norm) {
			hasVariable = true
		}
		if key, ok := percentileKey(norm); ok {
			percentiles[key] = true
		}
		if _, _, ok := splitWideHeader(norm); ok {
			wide = true
		}
	}

	if hasVariable && len(percentiles) == len(PercentileKeys) {
		return FormatLong
	}
	if wide {
		return FormatWide
	}
	return FormatUnrecognized
}

// normalizeHeader lowercases a header and collapses every run of
// non-alphanumeric characters into a single underscore, so "Provider Type",
// "provider-type" and "PROVIDER_TYPE" all compare equal.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isVariableHeader reports whether a normalized header names the metric
// column of a long-format table.
func isVariableHeader(norm string) bool {
	for _, tok := range strings.Split(norm, "_") {
		if tok == "variable" || tok == "benchmark" || tok == "metric" {
			return true
		}
	}
	return false
}

// percentileVariants maps the stripped form of a header (all separators
// removed) to its canonical percentile key. Covers the spellings survey
// vendors actually ship: "P50", "50th %ile", "Median", "Percentile 25".
var percentileVariants = map[string]string{
	"p25": P25, "25th": P25, "25thile": P25, "25thpercentile": P25, "pct25": P25, "percentile25": P25,
	"p50": P50, "50th": P50, "50thile": P50, "50thpercentile": P50, "pct50": P50, "percentile50": P50, "median": P50,
	"p75": P75, "75th": P75, "75thile": P75, "75thpercentile": P75, "pct75": P75, "percentile75": P75,
	"p90": P90, "90th": P90, "90thile": P90, "90thpercentile": P90, "pct90": P90, "percentile90": P90,
}

// percentileKey resolves a whole normalized header to a canonical
// percentile key. Used for long-format columns, where the header is the
// percentile and nothing else.
func percentileKey(norm string) (string, bool) {
	key, ok := percentileVariants[strings.ReplaceAll(norm, "_", "")]
	return key, ok
}

// wideSuffixes are the percentile suffixes recognized in wide headers.
var wideSuffixes = map[string]string{
	"p25": P25, "25th": P25,
	"p50": P50, "50th": P50,
	"p75": P75, "75th": P75,
	"p90": P90, "90th": P90,
}

// splitWideHeader splits a normalized header of the form
// <metric>_<percentile> into its metric prefix and canonical percentile
// key. The prefix must be non-empty, so a bare "p50" column stays a
// long-format percentile rather than a wide metric.
func splitWideHeader(norm string) (metric, key string, ok bool) {
	idx := strings.LastIndexByte(norm, '_')
	if idx <= 0 || idx == len(norm)-1 {
		return "", "", false
	}
	key, ok = wideSuffixes[norm[idx+1:]]
	if !ok {
		return "", "", false
	}
	return norm[:idx], key, true
}
