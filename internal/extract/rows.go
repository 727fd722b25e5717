package extract

import "strings"

const (
	// MaxRows caps the digest. Rows past it are never looked at.
	MaxRows = 10
	// MaxCells is how many leading cells a record keeps: company, role, location.
	MaxCells = 3

	cellDelimiter     = "|"
	DefaultLinkMarker = "https"
)

// RowMatcher decides whether a raw document line is a listing row.
// Swapping it changes detection without touching sanitizing or rendering.
type RowMatcher func(line string) bool

// TableRowWithLink matches markdown table rows that contain marker, which
// keeps data rows and drops header and separator rows.
func TableRowWithLink(marker string) RowMatcher {
	if marker == "" {
		marker = DefaultLinkMarker
	}
	return func(line string) bool {
		return strings.HasPrefix(strings.TrimSpace(line), cellDelimiter) && strings.Contains(line, marker)
	}
}

// IsListingRow is the default detection rule.
var IsListingRow = TableRowWithLink(DefaultLinkMarker)

// SplitCells splits a table row on the delimiter and drops the first and
// last segments, which are what sits outside the outer pipes.
func SplitCells(line string) []string {
	parts := strings.Split(strings.TrimSpace(line), cellDelimiter)
	if len(parts) < 2 {
		return nil
	}
	return parts[1 : len(parts)-1]
}

// SelectRows returns at most limit matching lines in document order.
func SelectRows(lines []string, match RowMatcher, limit int) []string {
	if match == nil {
		match = IsListingRow
	}
	var out []string
	for _, l := range lines {
		if len(out) >= limit {
			break
		}
		if match(l) {
			out = append(out, l)
		}
	}
	return out
}
