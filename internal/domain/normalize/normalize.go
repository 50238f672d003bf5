// Package normalize maps free-form benchmark column labels onto the canonical
// label set used by the leaderboard.
package normalize

import (
	"strings"
	"unicode"
)

// Canonical benchmark labels, in display order.
const (
	ARCChallenge    = "ARC Challenge"
	ARCEasy         = "ARC Easy"
	BoolQ           = "BoolQ"
	FDA             = "FDA"
	HellaSwag       = "HellaSwag"
	LambadaOpenAI   = "LAMBDA OpenAI"
	OpenBookQA      = "OpenBookQA"
	PIQA            = "PIQA"
	SocialIQA       = "Social IQA"
	SQuADCompletion = "SQuAD Completion"
	SWDE            = "SWDE"
	WinoGrande      = "WinoGrande"

	// Average is the pre-computed mean some records carry instead of, or in
	// addition to, per-benchmark values.
	Average = "Average"
)

// benchmarks is the fixed benchmark set in display order.
var benchmarks = [...]string{
	ARCChallenge, ARCEasy, BoolQ, FDA, HellaSwag, LambadaOpenAI,
	OpenBookQA, PIQA, SocialIQA, SQuADCompletion, SWDE, WinoGrande,
}

// canonical is keyed by lookupKey(label).
var canonical = map[string]string{
	"arcchallenge":    ARCChallenge,
	"arceasy":         ARCEasy,
	"boolq":           BoolQ,
	"fda":             FDA,
	"hellaswag":       HellaSwag,
	"lambadaopenai":   LambadaOpenAI,
	"lambdaopenai":    LambadaOpenAI,
	"openbookqa":      OpenBookQA,
	"piqa":            PIQA,
	"socialiqa":       SocialIQA,
	"squadcompletion": SQuADCompletion,
	"swde":            SWDE,
	"winogrande":      WinoGrande,
	"average":         Average,
}

// Benchmarks returns the 12 canonical benchmark labels in display order.
func Benchmarks() []string {
	out := make([]string, len(benchmarks))
	copy(out, benchmarks[:])
	return out
}

// IsBenchmark reports whether label is one of the canonical benchmark labels.
func IsBenchmark(label string) bool {
	for _, b := range benchmarks {
		if b == label {
			return true
		}
	}
	return false
}

// Label returns the canonical form of label. Known benchmark names match
// regardless of case, surrounding whitespace, underscores, hyphens or inner
// spaces. Anything else comes back trimmed and title-cased. Label is
// idempotent: Label(Label(x)) == Label(x).
func Label(label string) string {
	trimmed := strings.TrimSpace(label)
	if c, ok := canonical[lookupKey(trimmed)]; ok {
		return c
	}
	titled := titleCase(trimmed)
	// Case mapping is not closed under folding ("ſ" upper-cases to "S"), so
	// the title-cased form can land on a key the raw label missed.
	if c, ok := canonical[lookupKey(titled)]; ok {
		return c
	}
	return titled
}

// lookupKey folds case and drops separators.
func lookupKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// titleCase upper-cases the first cased rune of every word and lower-cases the
// rest. A word starts after any rune that has no case, so "my_metric" becomes
// "My_Metric" and "acc@1" becomes "Acc@1".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevCased := false
	for _, r := range s {
		cased := unicode.IsUpper(r) || unicode.IsLower(r) || unicode.IsTitle(r)
		switch {
		case cased && prevCased:
			b.WriteRune(unicode.ToLower(r))
		case cased:
			b.WriteRune(unicode.ToUpper(r))
		default:
			b.WriteRune(r)
		}
		prevCased = cased
	}
	return b.String()
}
