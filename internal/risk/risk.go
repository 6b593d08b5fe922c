// Package risk implements the crisis keyword classifier that gates every
// generation run. It is pure string matching: no scoring, no negation
// handling. A false positive costs the patient a safety message; a false
// negative is the failure mode we cannot afford, so the lists err wide.
package risk

import "strings"

// Category identifies the kind of crisis detected in an entry.
type Category string

const (
	CategoryNone     Category = "none"
	CategorySuicide  Category = "suicide"
	CategoryViolence Category = "violence"
	CategorySelfHarm Category = "self-harm"
)

// Keyword lists are checked in priority order: suicide first, then
// violence/stalking, then self-harm. At most one category per call.
var suicideKeywords = []string{
	"suicid",
	"togliermi la vita",
	"farla finita",
	"non voglio più vivere",
	"non vale la pena vivere",
	"voglio morire",
	"meglio morto",
	"end it all",
	"kill myself",
	"want to die",
	"better off dead",
	"take my own life",
}

var violenceKeywords = []string{
	"mi perseguita",
	"mi minaccia",
	"ho paura di lui",
	"ho paura di lei",
	"mi ha picchiat",
	"violenza",
	"stalking",
	"mi segue ovunque",
	"stalking me",
	"threatens me",
	"hit me",
	"hurt me",
	"afraid of him",
	"afraid of her",
}

var selfHarmKeywords = []string{
	"farmi del male",
	"tagliarmi",
	"ferirmi",
	"autolesion",
	"hurt myself",
	"cut myself",
	"harm myself",
	"self-harm",
	"self harm",
}

// Classify reports whether text contains crisis language and, if so, the
// highest-priority category it matched. Empty input returns (false, none).
func Classify(text string) (bool, Category) {
	if text == "" {
		return false, CategoryNone
	}
	lower := strings.ToLower(text)

	for _, kw := range suicideKeywords {
		if strings.Contains(lower, kw) {
			return true, CategorySuicide
		}
	}
	for _, kw := range violenceKeywords {
		if strings.Contains(lower, kw) {
			return true, CategoryViolence
		}
	}
	for _, kw := range selfHarmKeywords {
		if strings.Contains(lower, kw) {
			return true, CategorySelfHarm
		}
	}
	return false, CategoryNone
}
