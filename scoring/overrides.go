package scoring

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// VarietalTogglePrefix marks a per-grape toggle, e.g. "varietal:syrah". Only
// valid when the rule awards points per matched varietal.
const VarietalTogglePrefix = "varietal:"

// ErrUnknownToggle is returned for a toggle key that does not name a scored
// attribute of the guess under the current rule.
var ErrUnknownToggle = errors.New("unknown override toggle")

// Adjustment is the result of applying a host's toggle set to a fresh
// breakdown.
type Adjustment struct {
	// AutoScore is the engine total the toggles were applied to.
	AutoScore int `json:"auto_score"`
	// Desired is the corrected total, never below zero.
	Desired int `json:"desired"`
	// Delta is Desired - AutoScore; this is what gets stored, not Desired.
	Delta int `json:"delta"`
	// Toggles are the effective toggles, normalized and sorted. Toggles on
	// attributes worth zero points are dropped.
	Toggles []string `json:"toggles"`
}

// VarietalToggle builds the toggle key for a grape.
func VarietalToggle(token string) string {
	return VarietalTogglePrefix + Normalize(token)
}

// ApplyToggles flips the listed attributes of b between counted and not
// counted. An attribute the engine matched loses its value; one it missed
// gains it.
func ApplyToggles(b Breakdown, rule Rule, toggles []string) (Adjustment, error) {
	adj := Adjustment{AutoScore: b.Total, Desired: b.Total, Toggles: []string{}}
	seen := make(map[string]struct{}, len(toggles))

	for _, raw := range toggles {
		key := strings.TrimSpace(raw)
		var (
			matched bool
			value   int
		)

		if strings.HasPrefix(key, VarietalTogglePrefix) {
			if !rule.AnyVarietalPoint {
				return Adjustment{}, fmt.Errorf("%w: %q requires per-varietal scoring", ErrUnknownToggle, raw)
			}
			token := Normalize(strings.TrimPrefix(key, VarietalTogglePrefix))
			v, ok := b.Varietal(token)
			if !ok {
				return Adjustment{}, fmt.Errorf("%w: varietal %q was not guessed", ErrUnknownToggle, token)
			}
			key = VarietalTogglePrefix + token
			matched, value = v.Matched, rule.Varietals
		} else {
			key = Normalize(key)
			f := Field(key)
			res, ok := b.Field(f)
			if !ok {
				return Adjustment{}, fmt.Errorf("%w: %q", ErrUnknownToggle, raw)
			}
			if f == FieldVarietals && rule.AnyVarietalPoint {
				return Adjustment{}, fmt.Errorf("%w: toggle individual varietals with %q", ErrUnknownToggle, VarietalTogglePrefix)
			}
			matched, value = res.Matched, res.Value
		}

		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if value <= 0 {
			continue
		}
		if matched {
			adj.Desired -= value
		} else {
			adj.Desired += value
		}
		adj.Toggles = append(adj.Toggles, key)
	}

	if adj.Desired < 0 {
		adj.Desired = 0
	}
	adj.Delta = adj.Desired - adj.AutoScore
	sort.Strings(adj.Toggles)
	return adj, nil
}
