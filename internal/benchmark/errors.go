package benchmark

import "fmt"

// MappingNotFoundError is returned when a requested standardized name has
// no mapping of the requested type. It is distinct from a query that maps
// cleanly but matches zero rows, which succeeds with empty results.
type MappingNotFoundError struct {
	StandardizedName string
	Type             MappingType
}

func (e *MappingNotFoundError) Error() string {
	return fmt.Sprintf("no %s mapping found for %q", e.Type, e.StandardizedName)
}

// AmbiguousMappingError is returned when saving a mapping would bind the
// same (source, raw name) pair to more than one standardized name within
// a mapping type.
type AmbiguousMappingError struct {
	Type         MappingType
	SurveySource string
	RawName      string
	Existing     string
	Conflicting  string
}

func (e *AmbiguousMappingError) Error() string {
	return fmt.Sprintf("ambiguous %s mapping: %s/%q already maps to %q, cannot also map to %q",
		e.Type, e.SurveySource, e.RawName, e.Existing, e.Conflicting)
}

// FormatError is returned when a table's columns match neither the long
// nor the wide layout and the rows cannot be normalized.
type FormatError struct {
	Source  string
	Columns []string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unrecognized table format for source %q (%d columns)", e.Source, len(e.Columns))
}
