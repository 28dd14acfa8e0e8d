package core

// convert.go turns spreadsheet cell text into typed record values.
//
// These functions handle the messy reality of exported inventory sheets:
//   - Expiry dates as MM/DD/YYYY or the short MM/YY printed on packaging
//   - Quantities with thousands separators or a trailing ".0" from Excel
//   - Various boolean representations (yes/no, true/false, 1/0)
//   - Excel formula prefixes (="value") and stray quotes
//
// Every Parse* function returns an error describing the problem so the
// caller can attach it to the record as a validation message.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	isoDateLayout     = "2006-01-02"
	longExpiryLayout  = "1/2/2006"
	shortExpiryLayout = "1/06"

	// MaxQuantity is the largest quantity accepted for a single row.
	MaxQuantity = 999999
)

// integerRegex accepts an optionally signed integer after separators are removed.
var integerRegex = regexp.MustCompile(`^[+-]?\d+$`)

// decimalRegex accepts a plain positive decimal.
var decimalRegex = regexp.MustCompile(`^\d+(\.\d+)?$`)

// ParseExpiry parses an expiry in MM/DD/YYYY or MM/YY form.
// The short form resolves to the last day of the month. The result is a
// calendar date at UTC midnight.
func ParseExpiry(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("invalid date: empty")
	}

	if strings.Count(s, "/") == 2 {
		t, err := time.Parse(longExpiryLayout, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date %q (use MM/DD/YYYY or MM/YY)", s)
		}
		return t, nil
	}

	t, err := time.Parse(shortExpiryLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use MM/DD/YYYY or MM/YY)", s)
	}
	// First day of the following month, minus one day.
	return t.AddDate(0, 1, -1), nil
}

// ParseQuantity parses a positive whole quantity no larger than MaxQuantity.
func ParseQuantity(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("required field is empty")
	}

	s = strings.ReplaceAll(s, ",", "")
	// Excel writes whole numbers as "50.0" in some exports.
	if whole, frac, ok := strings.Cut(s, "."); ok && strings.Trim(frac, "0") == "" {
		s = whole
	}

	if !integerRegex.MatchString(s) {
		return 0, fmt.Errorf("invalid number %q: must be a whole number", s)
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: out of range", s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be a positive whole number, got %d", n)
	}
	if n > MaxQuantity {
		return 0, fmt.Errorf("must not exceed %d, got %d", MaxQuantity, n)
	}
	return n, nil
}

// ParseBool accepts true/false, yes/no, t/f, y/n, 1/0.
func ParseBool(s string) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "true", "t", "yes", "y", "1":
		return true, nil
	case "false", "f", "no", "n", "0":
		return false, nil
	default:
		return false, fmt.Errorf("must be yes/no, true/false, or 1/0")
	}
}

// ParseDosageAmount validates a positive decimal strength such as "500" or "2.5".
func ParseDosageAmount(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !decimalRegex.MatchString(s) {
		return "", fmt.Errorf("invalid number %q", s)
	}
	if v, _ := strconv.ParseFloat(s, 64); v <= 0 {
		return "", fmt.Errorf("must be greater than zero")
	}
	return s, nil
}

// NormalizeHeader maps a column header to its canonical key:
// lower case, trimmed, with spaces and dashes turned into underscores.
func NormalizeHeader(h string) string {
	h = strings.ToLower(CleanCell(h))
	h = strings.Join(strings.Fields(h), "_")
	return strings.ReplaceAll(h, "-", "_")
}

// HeaderIndex maps canonical column names to their position in a row.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a header row.
// When a header repeats, the first occurrence wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := NormalizeHeader(h)
		if key == "" {
			continue
		}
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}
