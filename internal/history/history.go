// Package history builds the prior-entry context supplied to clinical
// generation. The window is rebuilt on every call, never cached.
package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/souldiary/notegen/internal/store"
)

// DefaultLimit is the maximum number of prior entries in a window.
const DefaultLimit = 5

// NoPriorEntries is rendered instead of an empty string so prompt templates
// never see blank context silently.
const NoPriorEntries = "Nessuna entrata precedente."

const (
	maxBodyChars = 150
	dateFormat   = "02/01/2006 15:04"
)

// EntrySource lists a patient's entries newest-first.
type EntrySource interface {
	ListByPatient(ctx context.Context, patientID, excludeID uuid.UUID, limit int) ([]store.Entry, error)
}

type Assembler struct {
	source EntrySource
}

func NewAssembler(source EntrySource) *Assembler {
	return &Assembler{source: source}
}

// Assemble formats up to limit prior entries for patientID, excluding
// excludeID (the entry being processed, so regeneration never feeds an entry
// its own text). The store returns newest-first; presentation is oldest-first.
func (a *Assembler) Assemble(ctx context.Context, patientID, excludeID uuid.UUID, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	entries, err := a.source.ListByPatient(ctx, patientID, excludeID, limit)
	if err != nil {
		return "", fmt.Errorf("load prior entries: %w", err)
	}
	if len(entries) == 0 {
		return NoPriorEntries, nil
	}

	// Reverse newest-first into oldest-first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	var b strings.Builder
	for i, e := range entries {
		emotion := e.Emotion
		if emotion == "" {
			emotion = "non specificata"
		}
		fmt.Fprintf(&b, "%d) %s — emozione: %s\n%s\n",
			i+1, e.CreatedAt.Format(dateFormat), emotion, truncateBody(e.Text))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func truncateBody(text string) string {
	runes := []rune(text)
	if len(runes) <= maxBodyChars {
		return text
	}
	return string(runes[:maxBodyChars]) + "..."
}
