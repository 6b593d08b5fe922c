// Package prompt renders the generation prompts from clinician configuration,
// the entry text, and the assembled history context. Templates instruct the
// model in English and demand Italian output, which in practice steers small
// local models better than all-Italian instructions.
package prompt

import (
	"fmt"
	"strings"
)

// Kind selects which prompt to build.
type Kind string

const (
	KindSupport       Kind = "support"
	KindClinical      Kind = "clinical"
	KindEmotion       Kind = "emotion"
	KindSocialContext Kind = "social-context"
)

// Structure is the clinician's preferred clinical-note shape.
type Structure string

const (
	Structured Structure = "structured"
	Freeform   Structure = "freeform"
)

// Length is the clinician's preferred clinical-note length.
type Length string

const (
	Short Length = "short"
	Long  Length = "long"
)

// Parameter is one clinician-declared assessment field for structured notes.
type Parameter struct {
	Label    string `json:"label"`
	Guidance string `json:"guidance"`
}

// Preferences is the per-clinician generation configuration. Parameters are
// an ordered list and are used only when Structure is Structured.
type Preferences struct {
	Structure  Structure   `json:"structure"`
	Length     Length      `json:"length"`
	Parameters []Parameter `json:"parameters"`
}

// DefaultPreferences applies when a clinician has never configured generation.
func DefaultPreferences() Preferences {
	return Preferences{Structure: Freeform, Length: Short}
}

// MaxChars returns the soft character budget for a clinical note under prefs.
func (p Preferences) MaxChars() int {
	if p.Length == Long {
		return longNoteChars
	}
	return shortNoteChars
}

// Character budgets per prompt kind. Soft bounds: the templates forbid
// mid-sentence truncation, so the gateway budget includes headroom.
const (
	shortNoteChars = 300
	longNoteChars  = 600
	// SupportChars bounds the empathetic patient-facing response.
	SupportChars = 400
	// ClassificationChars bounds the two labeled-line classifications.
	ClassificationChars = 200
	// SummaryChars bounds the period case summary.
	SummaryChars = 900
)

// disambiguation is prepended whenever the patient's name is known. Diary
// text constantly names other people; without this, small models attribute
// third-party feelings and actions to the author.
const disambiguation = `Important: the diary author is %s. Any other person named in the text (friends, family, colleagues) is someone else, NOT the author. Never attribute a third party's actions or feelings to the author.

`

// rules are the cross-cutting constraints shared by every clinical variant.
const rules = `Rules:
- Base about 90% of your analysis on the current entry; use prior entries only to note pattern continuity.
- When you reference a prior entry, cite its full date and time (e.g. "nell'entrata del 12/03/2025 18:40"), never an index number.
- Never cut a sentence short: finish every sentence you start.
- Do not begin with a lead-in phrase such as "Ecco la nota clinica" or "Risposta:". Start directly with the content.`

// Support renders the empathetic patient-facing prompt. Single variant.
func Support(text, patientName string) string {
	var b strings.Builder
	writeDisambiguation(&b, patientName)
	fmt.Fprintf(&b, `You are a supportive assistant for a therapy diary. Write a warm, empathetic response to the diary entry below, in Italian. Acknowledge the feelings expressed, offer gentle encouragement, and suggest one small concrete step. At most %d characters, never cut mid-sentence, no lists, no lead-in phrase.

Diary entry:
%s`, SupportChars, text)
	return b.String()
}

// Clinical renders one of four clinical-assessment variants selected by the
// structure and length preferences.
func Clinical(text, patientName string, prefs Preferences, historyContext string) string {
	var b strings.Builder
	writeDisambiguation(&b, patientName)

	b.WriteString("You are a psychotherapist specializing in CBT. Analyze the diary entry below and write a clinical assessment for the treating clinician. Respond only in Italian.\n\n")

	if prefs.Structure == Structured {
		b.WriteString("Produce exactly one line per field, in this order, in the format \"Label: value\". No prose outside the fields, no markdown.\n\nFields:\n")
		for _, p := range prefs.Parameters {
			fmt.Fprintf(&b, "- %s: %s\n", p.Label, p.Guidance)
		}
		if prefs.Length == Long {
			b.WriteString("\nEach field value should be two or three full sentences.\n")
		} else {
			b.WriteString("\nEach field value must be a single concise sentence.\n")
		}
	} else {
		if prefs.Length == Long {
			fmt.Fprintf(&b, "Write a thorough discursive assessment in plain prose, at most %d characters. No lists, no markdown, no headings.\n", longNoteChars)
		} else {
			fmt.Fprintf(&b, "Write a brief discursive assessment in plain prose, at most %d characters. No lists, no markdown, no headings.\n", shortNoteChars)
		}
	}

	b.WriteString("\n")
	b.WriteString(rules)
	fmt.Fprintf(&b, "\n\nPrior entries (context only):\n%s\n\nCurrent entry:\n%s", historyContext, text)
	return b.String()
}

// Emotion renders the predominant-emotion classification prompt.
func Emotion(text, patientName string, vocabulary []string) string {
	var b strings.Builder
	writeDisambiguation(&b, patientName)
	fmt.Fprintf(&b, `Classify the predominant emotion of the diary author in the entry below. Choose exactly one label from this list: %s.

Reply in Italian with exactly two lines, nothing else:
Emozione: <label from the list>
Spiegazione: <one short sentence justifying the choice>

Diary entry:
%s`, strings.Join(vocabulary, ", "), text)
	return b.String()
}

// SocialContext renders the social-context classification prompt.
func SocialContext(text, patientName string, vocabulary []string) string {
	var b strings.Builder
	writeDisambiguation(&b, patientName)
	fmt.Fprintf(&b, `Classify the main social context the diary entry below revolves around. Choose exactly one label from this list: %s.

Reply in Italian with exactly two lines, nothing else:
Contesto: <label from the list>
Spiegazione: <one short sentence justifying the choice>

Diary entry:
%s`, strings.Join(vocabulary, ", "), text)
	return b.String()
}

// CaseSummary renders the clinician-requested period summary prompt.
// entriesBlock is the formatted sequence of entries in the period.
func CaseSummary(patientName, periodLabel, entriesBlock string) string {
	var b strings.Builder
	writeDisambiguation(&b, patientName)
	fmt.Fprintf(&b, `You are a psychotherapist specializing in CBT. Summarize the clinical picture emerging from the diary entries below, covering %s. Respond only in Italian, plain prose, at most %d characters. Describe mood trajectory, recurring themes and social contexts, and any change over the period. Cite entries by their full date and time, never by index. Never cut a sentence short and do not begin with a lead-in phrase.

Entries:
%s`, periodLabel, SummaryChars, entriesBlock)
	return b.String()
}

func writeDisambiguation(b *strings.Builder, patientName string) {
	if patientName != "" {
		fmt.Fprintf(b, disambiguation, patientName)
	}
}
