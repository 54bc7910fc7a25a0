// Package parser normalizes listing names and matches capacity tokens.
package parser

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// NormalizeName canonicalizes a listing name for keyword and capacity
// matching: full-width digits and letters fold to half-width, all
// whitespace runs are removed, and the result is lower-cased. Total
// function; empty or invalid input yields an empty string.
func NormalizeName(s string) string {
	if s == "" {
		return ""
	}
	folded := width.Fold.String(s)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// CapacityMatcher checks whether a normalized listing name carries a
// token consistent with one target capacity. Build one per catalog
// entry; Match is safe for repeated use.
type CapacityMatcher struct {
	token string
	re    *regexp.Regexp
}

// NewCapacityMatcher builds a matcher for the given target capacity in
// kilograms. A non-positive capacity returns nil: no capacity
// assertion is enforced and Match trivially succeeds.
func NewCapacityMatcher(capacityKg float64) *CapacityMatcher {
	if capacityKg <= 0 {
		return nil
	}

	var token string
	if capacityKg >= 1.0 {
		token = fmt.Sprintf("%dkg", int(math.Round(capacityKg)))
	} else {
		token = fmt.Sprintf("%dg", int(math.Round(capacityKg*1000)))
	}

	// Allow 3kg / 3kg×1 / 3kgx1 / 3kg(…) / 3kg入り and similar
	// pack/bag/unit continuations. Half-width ﾊﾟｯｸ folds to パック
	// during normalization, so only the folded form is listed.
	re := regexp.MustCompile(token + `(?:$|[×x()0-9]|入り|パック|袋|個)`)

	return &CapacityMatcher{token: token, re: re}
}

// Match reports whether the normalized name is consistent with the
// target capacity: either the suffix-qualified token or a bare
// substring occurrence.
func (m *CapacityMatcher) Match(normalized string) bool {
	if m == nil {
		return true
	}
	if m.re.MatchString(normalized) {
		return true
	}
	return strings.Contains(normalized, m.token)
}

// Token returns the capacity token the matcher looks for, e.g. "3kg".
func (m *CapacityMatcher) Token() string {
	if m == nil {
		return ""
	}
	return m.token
}
