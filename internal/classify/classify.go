// Package classify validates model output for the emotion and social-context
// classifications against closed vocabularies. Extraction is total: any input,
// including garbage, yields a valid label and a non-empty explanation.
package classify

import "strings"

// Result is a validated classification: a label drawn from the vocabulary and
// a short natural-language justification.
type Result struct {
	Label       string
	Explanation string
}

const fallbackExplanation = "Il modello non ha fornito una motivazione per questa classificazione."

// Extract parses the two labeled lines the classification prompts request
// ("<campo>: <valore>") and validates the value against vocab. The cascade is
// exact match, then substring containment, then the synonym table, then the
// vocabulary fallback label.
func Extract(raw string, labelField, explanationField string, vocab Vocabulary) Result {
	var labelLine, explanation string

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if v, ok := fieldValue(line, labelField); ok && labelLine == "" {
			labelLine = v
			continue
		}
		if v, ok := fieldValue(line, explanationField); ok && explanation == "" {
			explanation = v
		}
	}

	// Models that ignore the output grammar often reply with a bare label.
	if labelLine == "" {
		labelLine = strings.TrimSpace(raw)
	}

	result := Result{
		Label:       resolveLabel(labelLine, vocab),
		Explanation: explanation,
	}
	if result.Explanation == "" {
		result.Explanation = fallbackExplanation
	}
	return result
}

// fieldValue matches "<field>: value" with a case-insensitive prefix.
func fieldValue(line, field string) (string, bool) {
	if len(line) < len(field)+1 {
		return "", false
	}
	if !strings.EqualFold(line[:len(field)], field) {
		return "", false
	}
	rest := strings.TrimSpace(line[len(field):])
	rest = strings.TrimLeft(rest, ":-")
	return strings.TrimSpace(rest), true
}

func resolveLabel(value string, vocab Vocabulary) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.Trim(value, `"'.,!`)

	if value == "" {
		return vocab.Fallback
	}

	for _, label := range vocab.Labels {
		if value == label {
			return label
		}
	}

	// Substring containment in either direction: "molta ansia" contains
	// "ansia"; a truncated "tristezz" is contained by "tristezza".
	for _, label := range vocab.Labels {
		if strings.Contains(value, label) || strings.Contains(label, value) {
			return label
		}
	}

	if canonical, ok := vocab.Synonyms[value]; ok {
		return canonical
	}
	for syn, canonical := range vocab.Synonyms {
		if strings.Contains(value, syn) {
			return canonical
		}
	}

	return vocab.Fallback
}

// ExtractEmotion validates raw model output for the emotion classification.
func ExtractEmotion(raw string) Result {
	return Extract(raw, "Emozione", "Spiegazione", Emotions)
}

// ExtractContext validates raw model output for the social-context classification.
func ExtractContext(raw string) Result {
	return Extract(raw, "Contesto", "Spiegazione", Contexts)
}
