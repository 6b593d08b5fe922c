package ollama

import (
	"regexp"
	"strings"
)

// Unavailable is stored when the backend returns nothing usable.
const Unavailable = "Generazione non disponibile."

// Models routinely open with a conversational lead-in despite the prompts
// telling them not to. Stripping happens unconditionally on every response.
var (
	leadInPattern = regexp.MustCompile(`(?i)^\s*(?:la tua risposta[:\-\s]*|risposta del modello[:\-\s]*|risposta[:\-\s]*|ecco la risposta[:\-\s]*|output[:\-\s]*|answer[:\-\s]*|response[:\-\s]*|here is the answer[:\-\s]*|>\s*)+`)

	clinicalLeadInPattern = regexp.MustCompile(`(?i)^\s*(?:ecco la nota clinica[:\-\s]*|nota clinica[:\-\s]*|valutazione clinica[:\-\s]*|here is the clinical note[:\-\s]*)+`)

	markerPattern = regexp.MustCompile(`^['"“«\s\-\x{2022}>]+`)
)

// Clean strips conversational and clinical lead-ins plus leading quote and
// bullet markers from generated text.
func Clean(text string) string {
	text = strings.TrimSpace(text)
	text = leadInPattern.ReplaceAllString(text, "")
	text = clinicalLeadInPattern.ReplaceAllString(text, "")
	text = markerPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// CleanOrFallback cleans text and substitutes the unavailable sentinel when
// nothing survives the stripping.
func CleanOrFallback(text string) string {
	cleaned := Clean(text)
	if cleaned == "" {
		return Unavailable
	}
	return cleaned
}
