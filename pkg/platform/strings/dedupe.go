// Package strings provides string list helpers for query parameters.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
//	DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "})
//	// []string{"foo", "bar"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
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

// SplitCommaList splits a comma-separated query value such as "a, b,,a" into
// its distinct non-empty elements. An empty input yields nil.
func SplitCommaList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(raw, ","))
}
