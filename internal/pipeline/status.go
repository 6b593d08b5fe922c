package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/souldiary/notegen/internal/history"
	"github.com/souldiary/notegen/internal/ollama"
	"github.com/souldiary/notegen/internal/prompt"
)

// Status is the polling contract: optional fields are present only once
// in_progress has cleared.
type Status struct {
	InProgress         bool   `json:"in_progress"`
	ClinicalText       string `json:"clinical_text,omitempty"`
	Emotion            string `json:"emotion,omitempty"`
	EmotionExplanation string `json:"emotion_explanation,omitempty"`
	Context            string `json:"context,omitempty"`
	ContextExplanation string `json:"context_explanation,omitempty"`
}

// Status reports the generation state of one entry. Idempotent and
// side-effect-free; safe to poll.
func (o *Orchestrator) Status(ctx context.Context, entryID uuid.UUID) (Status, error) {
	entry, err := o.store.GetEntry(ctx, entryID)
	if err != nil {
		return Status{}, err
	}
	if entry.InProgress {
		return Status{InProgress: true}, nil
	}
	return Status{
		InProgress:         false,
		ClinicalText:       entry.ClinicalText,
		Emotion:            entry.Emotion,
		EmotionExplanation: entry.EmotionExplanation,
		Context:            entry.Context,
		ContextExplanation: entry.ContextExplanation,
	}, nil
}

// RegenerateClinical re-runs clinical generation for a finalized entry,
// synchronously, touching only the clinical field. The entry is excluded from
// its own history context.
func (o *Orchestrator) RegenerateClinical(ctx context.Context, entryID uuid.UUID) (string, error) {
	entry, err := o.store.GetEntry(ctx, entryID)
	if err != nil {
		return "", err
	}
	if entry.InProgress {
		return "", ErrInProgress
	}

	patient, err := o.store.GetPatient(ctx, entry.PatientID)
	if err != nil {
		return "", fmt.Errorf("load patient: %w", err)
	}

	prefs, err := o.store.GetPreferences(ctx, patient.ClinicianID)
	if err != nil {
		o.logger.Error("failed to load preferences, using defaults", "entry_id", entryID, "error", err)
		prefs = prompt.DefaultPreferences()
	}

	historyContext, err := o.hist.Assemble(ctx, patient.ID, entryID, history.DefaultLimit)
	if err != nil {
		o.logger.Error("history assembly failed", "entry_id", entryID, "error", err)
		historyContext = history.NoPriorEntries
	}

	raw, err := o.gen.Generate(ctx, prompt.Clinical(entry.Text, patient.FullName(), prefs, historyContext),
		prefs.MaxChars(), clinicalTemperature)
	var clinicalText string
	if err != nil {
		o.logger.Error("clinical regeneration failed", "entry_id", entryID, "error", err)
		clinicalText = ollama.FallbackMessage(err)
	} else {
		clinicalText = ollama.CleanOrFallback(raw)
	}

	if err := o.store.UpdateClinical(ctx, entryID, clinicalText); err != nil {
		return "", fmt.Errorf("store regenerated clinical text: %w", err)
	}

	o.logger.Info("clinical text regenerated", "entry_id", entryID)
	return clinicalText, nil
}
