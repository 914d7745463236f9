// Package strings holds the string cleanup helpers shared by snapshot
// normalisation.
package strings

import "strings"

// DedupeAndTrim trims each value and drops blanks and repeats, keeping
// first-occurrence order. Set-valued snapshot fields such as alert codes
// go through this before diffing and hashing, so padding or repetition in
// the source feed never reads as a change.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
