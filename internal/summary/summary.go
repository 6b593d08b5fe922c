// Package summary generates clinician-requested case summaries over a fixed
// period of a patient's diary.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/souldiary/notegen/internal/ollama"
	"github.com/souldiary/notegen/internal/prompt"
	"github.com/souldiary/notegen/internal/store"
)

// Period selects the summary window.
type Period string

const (
	Period7Days   Period = "7days"
	Period30Days  Period = "30days"
	Period3Months Period = "3months"
	PeriodYear    Period = "year"
)

var (
	// ErrUnknownPeriod rejects periods outside the fixed set.
	ErrUnknownPeriod = errors.New("unknown summary period")
	// ErrNoEntries is returned when the window contains nothing to summarize.
	ErrNoEntries = errors.New("no entries in period")
)

var periodLabels = map[Period]string{
	Period7Days:   "gli ultimi 7 giorni",
	Period30Days:  "l'ultimo mese",
	Period3Months: "gli ultimi 3 mesi",
	PeriodYear:    "l'ultimo anno",
}

const (
	summaryTemperature = 0.5
	maxEntryChars      = 300
	dateFormat         = "02/01/2006 15:04"
)

// Store is the persistence surface the summary service needs.
type Store interface {
	ListBetween(ctx context.Context, patientID uuid.UUID, from, to time.Time) ([]store.Entry, error)
	GetPatient(ctx context.Context, id uuid.UUID) (store.Patient, error)
	CreateSummary(ctx context.Context, cs store.CaseSummary) (uuid.UUID, error)
}

// Generator is the text-generation backend surface.
type Generator interface {
	Generate(ctx context.Context, promptText string, maxChars int, temperature float64) (string, error)
}

type Service struct {
	store  Store
	gen    Generator
	logger *slog.Logger
}

func NewService(s Store, gen Generator, logger *slog.Logger) *Service {
	return &Service{store: s, gen: gen, logger: logger}
}

// Generate builds and persists a case summary for the patient over period.
// Runs synchronously within the clinician's request.
func (s *Service) Generate(ctx context.Context, patientID, clinicianID uuid.UUID, period Period) (store.CaseSummary, error) {
	label, ok := periodLabels[period]
	if !ok {
		return store.CaseSummary{}, fmt.Errorf("%q: %w", period, ErrUnknownPeriod)
	}

	patient, err := s.store.GetPatient(ctx, patientID)
	if err != nil {
		return store.CaseSummary{}, fmt.Errorf("load patient: %w", err)
	}

	now := time.Now().UTC()
	entries, err := s.store.ListBetween(ctx, patientID, periodStart(period, now), now)
	if err != nil {
		return store.CaseSummary{}, fmt.Errorf("load entries: %w", err)
	}
	if len(entries) == 0 {
		return store.CaseSummary{}, ErrNoEntries
	}

	promptText := prompt.CaseSummary(patient.FullName(), label, formatEntries(entries))

	raw, err := s.gen.Generate(ctx, promptText, prompt.SummaryChars, summaryTemperature)
	var text string
	if err != nil {
		s.logger.Error("summary generation failed", "patient_id", patientID, "period", period, "error", err)
		text = ollama.FallbackMessage(err)
	} else {
		text = ollama.CleanOrFallback(raw)
	}

	cs := store.CaseSummary{
		PatientID:   patientID,
		ClinicianID: clinicianID,
		Period:      string(period),
		Text:        text,
		GeneratedAt: now,
	}
	id, err := s.store.CreateSummary(ctx, cs)
	if err != nil {
		return store.CaseSummary{}, fmt.Errorf("store summary: %w", err)
	}
	cs.ID = id

	s.logger.Info("case summary generated", "summary_id", id, "patient_id", patientID, "period", period, "entries", len(entries))
	return cs, nil
}

func periodStart(period Period, now time.Time) time.Time {
	switch period {
	case Period7Days:
		return now.AddDate(0, 0, -7)
	case Period30Days:
		return now.AddDate(0, -1, 0)
	case Period3Months:
		return now.AddDate(0, -3, 0)
	default:
		return now.AddDate(-1, 0, 0)
	}
}

// formatEntries renders the oldest-first entry blocks fed to the summary
// prompt. Same shape as the history window, with a larger body budget.
func formatEntries(entries []store.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		emotion := e.Emotion
		if emotion == "" {
			emotion = "non specificata"
		}
		body := e.Text
		if runes := []rune(body); len(runes) > maxEntryChars {
			body = string(runes[:maxEntryChars]) + "..."
		}
		fmt.Fprintf(&b, "%s — emozione: %s\n%s\n\n", e.CreatedAt.Format(dateFormat), emotion, body)
	}
	return strings.TrimRight(b.String(), "\n")
}
