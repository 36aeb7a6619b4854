// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// Distinct removes duplicates and blank entries from a slice of string-like values,
// trimming whitespace from each element. Order of first occurrence is preserved.
//
// Example:
//
//	Distinct([]domain.ProductID{" wing6", "tofu", "wing6", ""})
//	// Returns: []domain.ProductID{"wing6", "tofu"}
func Distinct[T ~string](values []T) []T {
	if len(values) == 0 {
		return values
	}

	seen := make(map[T]struct{}, len(values))
	result := make([]T, 0, len(values))
	for _, v := range values {
		trimmed := T(strings.TrimSpace(string(v)))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}
	return result
}

// SplitList parses a comma separated list (as found in environment variables),
// lower-casing, trimming and de-duplicating the entries.
//
// Example:
//
//	SplitList(" Owner@Deli.tw, staff@deli.tw,owner@deli.tw ")
//	// Returns: []string{"owner@deli.tw", "staff@deli.tw"}
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i, p := range parts {
		parts[i] = strings.ToLower(p)
	}
	return Distinct(parts)
}
