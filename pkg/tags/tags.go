// Package tags provides utilities for parsing and formatting endpoint tag sets.
package tags

import (
	"fmt"
	"slices"
	"strings"
)

// Parse converts a slice of tag arguments to a normalized set. Each argument may
// itself be a comma-separated list ("green,large"). Returns an error if a tag
// is empty or contains whitespace.
func Parse(args []string) ([]string, error) {
	var result []string
	for _, arg := range args {
		for _, t := range strings.Split(arg, ",") {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if strings.ContainsAny(t, " \t\n") {
				return nil, fmt.Errorf("invalid tag %q: contains whitespace", t)
			}
			result = append(result, t)
		}
	}
	return Normalize(result), nil
}

// Normalize returns a sorted copy of tags with duplicates and empty entries removed.
func Normalize(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Format converts a tag set to a display string.
// Returns "-" for empty sets.
func Format(tags []string) string {
	if len(tags) == 0 {
		return "-"
	}
	return strings.Join(Normalize(tags), ", ")
}

// Set builds a lookup set from tags.
func Set(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

// Equal reports whether a and b hold the same tags, ignoring order and duplicates.
func Equal(a, b []string) bool {
	return slices.Equal(Normalize(a), Normalize(b))
}

// HasAll returns true if have contains every tag in required.
func HasAll(have map[string]struct{}, required []string) bool {
	for _, t := range required {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}

// HasAny returns true if have contains at least one tag in candidates.
func HasAny(have map[string]struct{}, candidates []string) bool {
	for _, t := range candidates {
		if _, ok := have[t]; ok {
			return true
		}
	}
	return false
}
