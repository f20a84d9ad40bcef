package scoring

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Normalize trims surrounding whitespace and case-folds s so that guesses
// like " Rioja " and "rioja" compare equal to "Rioja".
func Normalize(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// equalScalar compares two attribute values after normalization.
func equalScalar(guess, actual string) bool {
	g, a := Normalize(guess), Normalize(actual)
	if g == "" || a == "" {
		return false
	}
	return g == a
}

// equalVintage compares vintages numerically when both sides parse as
// integers ("2018" == "02018"), and falls back to normalized text otherwise
// ("NV" == "nv").
func equalVintage(guess, actual string) bool {
	g, gErr := strconv.Atoi(strings.TrimSpace(guess))
	a, aErr := strconv.Atoi(strings.TrimSpace(actual))
	if gErr == nil && aErr == nil {
		return g == a
	}
	return equalScalar(guess, actual)
}

// tokenSet normalizes a varietal list into a set, dropping blanks and
// duplicates. The returned slice keeps first-seen order for stable output.
func tokenSet(values []string) (map[string]struct{}, []string) {
	set := make(map[string]struct{}, len(values))
	ordered := make([]string, 0, len(values))
	for _, v := range values {
		n := Normalize(v)
		if n == "" {
			continue
		}
		if _, seen := set[n]; seen {
			continue
		}
		set[n] = struct{}{}
		ordered = append(ordered, n)
	}
	return set, ordered
}
