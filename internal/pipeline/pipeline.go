// Package pipeline orchestrates note generation: risk gating, the synchronous
// crisis branch, the bounded background generation units, the status-polling
// contract, and clinical-text regeneration.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/souldiary/notegen/internal/classify"
	"github.com/souldiary/notegen/internal/events"
	"github.com/souldiary/notegen/internal/history"
	"github.com/souldiary/notegen/internal/ollama"
	"github.com/souldiary/notegen/internal/prompt"
	"github.com/souldiary/notegen/internal/risk"
	"github.com/souldiary/notegen/internal/store"
)

var (
	// ErrEmptyText rejects submissions with no body.
	ErrEmptyText = errors.New("entry text is empty")
	// ErrInProgress rejects regeneration of an entry still being generated.
	ErrInProgress = errors.New("entry generation still in progress")
)

// genericFailure is stored in the clinical field when a background unit dies
// for any reason not already mapped to a gateway fallback.
const genericFailure = "La generazione della nota non è riuscita. Il testo del diario è stato salvato."

// Per-kind sampling temperatures, carried over from the original tuning.
const (
	supportTemperature  = 0.3
	clinicalTemperature = 0.6
	classifyTemperature = 0.2
)

// DefaultWorkers bounds concurrent background units when the config does not.
const DefaultWorkers = 4

// NoteStore is the persistence surface the orchestrator needs.
type NoteStore interface {
	CreateEntry(ctx context.Context, e store.Entry) (uuid.UUID, error)
	GetEntry(ctx context.Context, id uuid.UUID) (store.Entry, error)
	UpdateGenerated(ctx context.Context, id uuid.UUID, f store.GeneratedFields) error
	UpdateClinical(ctx context.Context, id uuid.UUID, clinicalText string) error
	GetPatient(ctx context.Context, id uuid.UUID) (store.Patient, error)
	GetClinician(ctx context.Context, id uuid.UUID) (store.Clinician, error)
	GetPreferences(ctx context.Context, clinicianID uuid.UUID) (prompt.Preferences, error)
	history.EntrySource
}

// Generator is the text-generation backend surface.
type Generator interface {
	Generate(ctx context.Context, promptText string, maxChars int, temperature float64) (string, error)
}

type Orchestrator struct {
	store   NoteStore
	gen     Generator
	hist    *history.Assembler
	bus     *events.Bus
	logger  *slog.Logger
	workers *semaphore.Weighted
	wg      sync.WaitGroup
}

func New(s NoteStore, gen Generator, bus *events.Bus, workers int, logger *slog.Logger) *Orchestrator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Orchestrator{
		store:   s,
		gen:     gen,
		hist:    history.NewAssembler(s),
		bus:     bus,
		logger:  logger,
		workers: semaphore.NewWeighted(int64(workers)),
	}
}

// Submit runs the risk check and either finalizes a crisis entry immediately
// (no generation) or persists an in-progress placeholder and spawns a
// background generation unit. It returns as soon as the entry row exists;
// generated content arrives via polling.
func (o *Orchestrator) Submit(ctx context.Context, patientID uuid.UUID, text string, wantSupport bool) (uuid.UUID, error) {
	if text == "" {
		return uuid.Nil, ErrEmptyText
	}

	patient, err := o.store.GetPatient(ctx, patientID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load patient: %w", err)
	}

	crisis, category := risk.Classify(text)
	if crisis {
		return o.finalizeCrisis(ctx, patient, text, category)
	}

	entryID, err := o.store.CreateEntry(ctx, store.Entry{
		PatientID:  patientID,
		Text:       text,
		CreatedAt:  time.Now().UTC(),
		InProgress: true,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("create placeholder entry: %w", err)
	}

	o.logger.Info("entry accepted", "entry_id", entryID, "patient_id", patientID, "want_support", wantSupport)

	o.wg.Add(1)
	go o.runBackgroundUnit(entryID, patient, text, wantSupport)

	return entryID, nil
}

// finalizeCrisis persists a complete crisis entry in the foreground. Policy:
// never auto-generate supportive or clinical text over a detected crisis;
// route the patient to a human contact instead.
func (o *Orchestrator) finalizeCrisis(ctx context.Context, patient store.Patient, text string, category risk.Category) (uuid.UUID, error) {
	clinician, err := o.store.GetClinician(ctx, patient.ClinicianID)
	if err != nil {
		// The safety message still renders with the emergency number alone.
		o.logger.Error("failed to load clinician for crisis entry", "patient_id", patient.ID, "error", err)
		clinician = store.Clinician{}
	}

	safety := SafetyMessage(category, clinician)

	entryID, err := o.store.CreateEntry(ctx, store.Entry{
		PatientID:     patient.ID,
		Text:          text,
		CreatedAt:     time.Now().UTC(),
		RiskFlag:      true,
		RiskCategory:  category,
		SafetyMessage: safety,
		InProgress:    false,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("create crisis entry: %w", err)
	}

	o.logger.Warn("crisis entry finalized", "entry_id", entryID, "patient_id", patient.ID, "category", category)

	if err := o.bus.Publish(events.SubjectEntryCrisis, events.CrisisEvent{
		EntryID:       entryID.String(),
		PatientID:     patient.ID.String(),
		Category:      string(category),
		SafetyMessage: safety,
		DetectedAt:    time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		o.logger.Error("failed to publish crisis event", "entry_id", entryID, "error", err)
	}

	return entryID, nil
}

// runBackgroundUnit is the failure-containment boundary of the whole system.
// Whatever happens inside, the entry is finalized: in_progress cleared and at
// worst a generic failure string in the clinical field.
func (o *Orchestrator) runBackgroundUnit(entryID uuid.UUID, patient store.Patient, text string, wantSupport bool) {
	defer o.wg.Done()

	// Background units outlive the submission request; no cancellation beyond
	// the gateway's own per-call timeout.
	ctx := context.Background()

	if err := o.workers.Acquire(ctx, 1); err != nil {
		o.finalizeFailed(ctx, entryID, genericFailure)
		return
	}
	defer o.workers.Release(1)

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("background unit panicked", "entry_id", entryID, "panic", r)
			o.finalizeFailed(ctx, entryID, genericFailure)
		}
	}()

	fields := o.generate(ctx, entryID, patient, text, wantSupport)

	if err := o.store.UpdateGenerated(ctx, entryID, fields); err != nil {
		o.logger.Error("failed to finalize entry", "entry_id", entryID, "error", err)
		return
	}

	o.logger.Info("entry finalized", "entry_id", entryID, "emotion", fields.Emotion)

	if err := o.bus.Publish(events.SubjectEntryFinalized, events.FinalizedEvent{
		EntryID:   entryID.String(),
		PatientID: patient.ID.String(),
		Emotion:   fields.Emotion,
		Failed:    fields.ClinicalText == genericFailure,
	}); err != nil {
		o.logger.Error("failed to publish finalized event", "entry_id", entryID, "error", err)
	}
}

// generate produces every generated field. Gateway failures degrade to
// fallback strings per field; this function never returns an error.
func (o *Orchestrator) generate(ctx context.Context, entryID uuid.UUID, patient store.Patient, text string, wantSupport bool) store.GeneratedFields {
	var fields store.GeneratedFields

	// Preferences are snapshot once per unit, not re-read mid-flight.
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

	name := patient.FullName()

	if wantSupport {
		fields.SupportText = o.generateText(ctx, entryID, "support",
			prompt.Support(text, name), prompt.SupportChars, supportTemperature)
	}

	fields.ClinicalText = o.generateText(ctx, entryID, "clinical",
		prompt.Clinical(text, name, prefs, historyContext), prefs.MaxChars(), clinicalTemperature)

	emotion := o.classify(ctx, entryID, "emotion",
		prompt.Emotion(text, name, classify.Emotions.Labels), classify.ExtractEmotion, classify.Emotions)
	fields.Emotion = emotion.Label
	fields.EmotionExplanation = emotion.Explanation

	socialContext := o.classify(ctx, entryID, "social-context",
		prompt.SocialContext(text, name, classify.Contexts.Labels), classify.ExtractContext, classify.Contexts)
	fields.Context = socialContext.Label
	fields.ContextExplanation = socialContext.Explanation

	return fields
}

// generateText runs one gateway call and maps failures to the user-safe
// fallback for that failure kind.
func (o *Orchestrator) generateText(ctx context.Context, entryID uuid.UUID, kind, promptText string, maxChars int, temperature float64) string {
	raw, err := o.gen.Generate(ctx, promptText, maxChars, temperature)
	if err != nil {
		o.logger.Error("generation failed", "entry_id", entryID, "kind", kind, "error", err)
		return ollama.FallbackMessage(err)
	}
	return ollama.CleanOrFallback(raw)
}

// classify runs one gateway call and validates the output against vocab.
// A gateway failure yields the vocabulary fallback label with the user-safe
// message as explanation; extraction itself is total.
func (o *Orchestrator) classify(ctx context.Context, entryID uuid.UUID, kind, promptText string, extract func(string) classify.Result, vocab classify.Vocabulary) classify.Result {
	raw, err := o.gen.Generate(ctx, promptText, prompt.ClassificationChars, classifyTemperature)
	if err != nil {
		o.logger.Error("classification generation failed", "entry_id", entryID, "kind", kind, "error", err)
		return classify.Result{Label: vocab.Fallback, Explanation: ollama.FallbackMessage(err)}
	}
	return extract(raw)
}

func (o *Orchestrator) finalizeFailed(ctx context.Context, entryID uuid.UUID, clinicalText string) {
	if err := o.store.UpdateGenerated(ctx, entryID, store.GeneratedFields{
		ClinicalText: clinicalText,
	}); err != nil {
		o.logger.Error("failed to finalize failed entry", "entry_id", entryID, "error", err)
	}
}

// Shutdown waits for in-flight background units to finish, up to ctx's
// deadline. New submissions should be stopped by the HTTP layer first.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown: %w", ctx.Err())
	}
}
