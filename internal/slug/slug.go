// Package slug derives stable, human-readable identifiers from titles
// and terms. Slugs are the public handles inline links refer to, so the
// derivation must be deterministic and a derived slug must never change
// once reserved.
package slug

import (
	"fmt"
	"strings"
	"unicode"
)

// Fallback is used when a title slugifies to nothing.
const Fallback = "untitled"

// Make lowercases and hyphenates a title: runs of anything that is not
// a letter or digit collapse to a single hyphen, leading and trailing
// hyphens are trimmed.
func Make(title string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	if b.Len() == 0 {
		return Fallback
	}
	return b.String()
}

// Candidate returns the n-th candidate in the collision sequence for a
// base slug: base, base-2, base-3, ...
func Candidate(base string, n int) string {
	if n <= 1 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}

// Valid reports whether s is a well-formed slug: non-empty, lowercase
// letters, digits and interior single hyphens only.
func Valid(s string) bool {
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "-") || strings.HasSuffix(s, "-") || strings.Contains(s, "--") {
		return false
	}
	for _, r := range s {
		if r == '-' || unicode.IsDigit(r) || (unicode.IsLetter(r) && unicode.IsLower(r)) {
			continue
		}
		return false
	}
	return true
}
