package benchmark

import "strings"

// countSuffixes are tried longest-first against wide headers to find the
// per-metric sample size columns that accompany percentile columns.
var countSuffixes = []struct {
	suffix string
	field  string
}{
	{"_n_incumbents", FieldNIncumbents},
	{"_nincumbents", FieldNIncumbents},
	{"_incumbents", FieldNIncumbents},
	{"_n_inc", FieldNIncumbents},
	{"_n_orgs", FieldNOrgs},
	{"_norgs", FieldNOrgs},
	{"_n_org", FieldNOrgs},
	{"_orgs", FieldNOrgs},
	{"_n", FieldNIncumbents},
}

// DiscoverColumns scans wide-format headers and groups every
// <metric>_<percentile> column under its metric. Descriptors come back in
// first-appearance order with each metric's percentile and sample size
// columns keyed by canonical field name. Headers that match no metric
// pattern are ignored here; normalization decides what to do with them.
func DiscoverColumns(columns []string) []VariableDescriptor {
	var order []string
	byMetric := make(map[string]*VariableDescriptor)

	for _, col := range columns {
		norm := normalizeHeader(col)
		metric, key, ok := splitWideHeader(norm)
		if !ok {
			continue
		}
		desc := byMetric[metric]
		if desc == nil {
			desc = &VariableDescriptor{
				Name:     metric,
				Category: ClassifyVariable(metric),
				Columns:  make(map[string]string, 4),
			}
			byMetric[metric] = desc
			order = append(order, metric)
		}
		// First column wins when a file repeats a percentile header.
		if _, exists := desc.Columns[key]; !exists {
			desc.Columns[key] = col
		}
	}

	// Second pass: attach per-metric sample size columns. These only make
	// sense once the metric prefixes are known, because "tcc_n_orgs" must
	// bind to "tcc" and not be mistaken for a metric of its own.
	for _, col := range columns {
		norm := normalizeHeader(col)
		for _, cs := range countSuffixes {
			metric, found := strings.CutSuffix(norm, cs.suffix)
			if !found || metric == "" {
				continue
			}
			desc := byMetric[metric]
			if desc == nil {
				continue
			}
			if _, exists := desc.Columns[cs.field]; !exists {
				desc.Columns[cs.field] = col
			}
			break
		}
	}

	descriptors := make([]VariableDescriptor, 0, len(order))
	for _, metric := range order {
		descriptors = append(descriptors, *byMetric[metric])
	}
	return descriptors
}

// categoryRule pairs a category with the keywords that imply it.
type categoryRule struct {
	category VariableCategory
	keywords []string
}

// categoryRules is evaluated in order and the first hit wins. Ratio
// spellings embed compensation and productivity substrings, so they must
// be tried first: "tcc_per_wrvu" is a ratio, never compensation.
var categoryRules = []categoryRule{
	{CategoryRatio, []string{
		"per_rvu", "per_wrvu", "per_encounter", "per_visit", "per_hour",
		"per_fte", "per_unit", "conversion", "ratio", "cf",
	}},
	{CategoryProductivity, []string{
		"wrvu", "rvu", "encounter", "visit", "panel", "hours", "shift",
		"fte", "cfte", "productivity", "units", "procedures", "cases",
	}},
	{CategoryCompensation, []string{
		"tcc", "comp", "compensation", "salary", "cash", "pay", "bonus",
		"incentive", "base", "wage", "earnings",
	}},
}

// ClassifyVariable assigns a metric name to its category using ordered
// keyword rules. Names nothing matches land in CategoryOther.
func ClassifyVariable(name string) VariableCategory {
	norm := normalizeHeader(name)
	tokens := strings.Split(norm, "_")
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if matchKeyword(norm, tokens, kw) {
				return rule.category
			}
		}
	}
	return CategoryOther
}

// matchKeyword matches multi-word keywords as substrings and short
// keywords as whole tokens. "cf" must not fire inside "cfte".
func matchKeyword(norm string, tokens []string, kw string) bool {
	if strings.ContainsRune(kw, '_') {
		return strings.Contains(norm, kw)
	}
	if len(kw) <= 3 {
		for _, tok := range tokens {
			if tok == kw {
				return true
			}
		}
		return false
	}
	return strings.Contains(norm, kw)
}
