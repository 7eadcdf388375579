package utils

import (
	"strings"
)

// phone number handling shared by recipient resolution, dedup keys and
// the provider client. Numbers are normalized to bare digit strings the
// gateway accepts; a leading international "+" is dropped rather than
// converted, the raw country code digits stay in place.

// NormalizePhone strips every character except digits and "+" from the
// raw value, then drops a single leading "+". Returns the empty string
// when nothing usable remains.
func NormalizePhone(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	s = strings.TrimPrefix(s, "+")
	return s
}

// LooksLikePhone reports whether the value plausibly is a phone number:
// at least 8 digits once separators are removed.
func LooksLikePhone(raw string) bool {
	digits := 0
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 8
}

// SplitCandidateNumbers splits a free-form value on the common list
// separators (comma, semicolon, pipe, newline) and returns the
// normalized numbers that pass LooksLikePhone, in input order.
func SplitCandidateNumbers(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '\n'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || !LooksLikePhone(p) {
			continue
		}
		if n := NormalizePhone(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// DedupeNumbers removes duplicate numbers while preserving first-seen
// order. Two numbers are the same when their digit-only forms match, so
// "+98912..." and "98912..." collapse to one entry.
func DedupeNumbers(numbers []string) []string {
	seen := make(map[string]struct{}, len(numbers))
	out := make([]string, 0, len(numbers))
	for _, n := range numbers {
		key := digitsOnly(n)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
