package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/souldiary/notegen/internal/ollama"
	"github.com/souldiary/notegen/internal/prompt"
	"github.com/souldiary/notegen/internal/store"
)

// fakeStore is an in-memory NoteStore.
type fakeStore struct {
	mu         sync.Mutex
	entries    map[uuid.UUID]store.Entry
	patients   map[uuid.UUID]store.Patient
	clinicians map[uuid.UUID]store.Clinician
	prefs      map[uuid.UUID]prompt.Preferences
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entries:    map[uuid.UUID]store.Entry{},
		patients:   map[uuid.UUID]store.Patient{},
		clinicians: map[uuid.UUID]store.Clinician{},
		prefs:      map[uuid.UUID]prompt.Preferences{},
	}
}

func (f *fakeStore) CreateEntry(_ context.Context, e store.Entry) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	f.entries[e.ID] = e
	return e.ID, nil
}

func (f *fakeStore) GetEntry(_ context.Context, id uuid.UUID) (store.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return store.Entry{}, fmt.Errorf("entry %s: %w", id, store.ErrNotFound)
	}
	return e, nil
}

func (f *fakeStore) UpdateGenerated(_ context.Context, id uuid.UUID, g store.GeneratedFields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return store.ErrNotFound
	}
	e.SupportText = g.SupportText
	e.ClinicalText = g.ClinicalText
	e.Emotion = g.Emotion
	e.EmotionExplanation = g.EmotionExplanation
	e.Context = g.Context
	e.ContextExplanation = g.ContextExplanation
	e.InProgress = false
	f.entries[id] = e
	return nil
}

func (f *fakeStore) UpdateClinical(_ context.Context, id uuid.UUID, clinicalText string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return store.ErrNotFound
	}
	e.ClinicalText = clinicalText
	f.entries[id] = e
	return nil
}

func (f *fakeStore) GetPatient(_ context.Context, id uuid.UUID) (store.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patients[id]
	if !ok {
		return store.Patient{}, fmt.Errorf("patient %s: %w", id, store.ErrNotFound)
	}
	return p, nil
}

func (f *fakeStore) GetClinician(_ context.Context, id uuid.UUID) (store.Clinician, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clinicians[id]
	if !ok {
		return store.Clinician{}, fmt.Errorf("clinician %s: %w", id, store.ErrNotFound)
	}
	return c, nil
}

func (f *fakeStore) GetPreferences(_ context.Context, clinicianID uuid.UUID) (prompt.Preferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.prefs[clinicianID]; ok {
		return p, nil
	}
	return prompt.DefaultPreferences(), nil
}

func (f *fakeStore) ListByPatient(_ context.Context, patientID, excludeID uuid.UUID, limit int) ([]store.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Entry
	for _, e := range f.entries {
		if e.PatientID == patientID && e.ID != excludeID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) entry(t *testing.T, id uuid.UUID) store.Entry {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		t.Fatalf("entry %s not in store", id)
	}
	return e
}

// fakeGenerator sniffs the prompt kind and answers accordingly.
type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	err     error
	panics  bool
	block   chan struct{} // if non-nil, Generate waits until closed
}

func (g *fakeGenerator) Generate(_ context.Context, promptText string, maxChars int, temperature float64) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, promptText)
	block := g.block
	g.mu.Unlock()

	if block != nil {
		<-block
	}
	if g.panics {
		panic("model exploded")
	}
	if g.err != nil {
		return "", g.err
	}

	switch {
	case strings.Contains(promptText, "Emozione:"):
		return "Emozione: tristezza\nSpiegazione: tono deflesso.", nil
	case strings.Contains(promptText, "Contesto:"):
		return "Contesto: lavoro\nSpiegazione: parla del licenziamento.", nil
	case strings.Contains(promptText, "supportive assistant"):
		return "Mi dispiace per la tua giornata. Un passo alla volta.", nil
	default:
		return "Il paziente presenta un tono dell'umore deflesso.", nil
	}
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

func (g *fakeGenerator) allPrompts() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.prompts...)
}

func testSetup(t *testing.T, gen *fakeGenerator) (*Orchestrator, *fakeStore, store.Patient) {
	t.Helper()
	fs := newFakeStore()
	clinician := store.Clinician{
		ID:          uuid.New(),
		FirstName:   "Anna",
		LastName:    "Rossi",
		MobilePhone: "+39 333 1234567",
		OfficePhone: "+39 06 555123",
		Email:       "anna.rossi@example.org",
	}
	patient := store.Patient{
		ID:          uuid.New(),
		FirstName:   "Giulia",
		LastName:    "Bianchi",
		ClinicianID: clinician.ID,
	}
	fs.clinicians[clinician.ID] = clinician
	fs.patients[patient.ID] = patient

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(fs, gen, nil, 2, logger), fs, patient
}

func drain(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSubmit_NormalBranchLifecycle(t *testing.T) {
	gen := &fakeGenerator{block: make(chan struct{})}
	o, fs, patient := testSetup(t, gen)

	entryID, err := o.Submit(context.Background(), patient.ID, "Oggi ho perso il lavoro", true)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// Placeholder is persisted in-progress before Submit returns.
	e := fs.entry(t, entryID)
	if !e.InProgress {
		t.Error("expected in_progress=true immediately after submit")
	}
	if e.ClinicalText != "" || e.Emotion != "" {
		t.Error("placeholder must have empty generated fields")
	}

	close(gen.block)
	drain(t, o)

	e = fs.entry(t, entryID)
	if e.InProgress {
		t.Fatal("entry left in progress")
	}
	if e.SupportText == "" {
		t.Error("expected support text (caller opted in)")
	}
	if e.ClinicalText == "" {
		t.Error("expected clinical text")
	}
	if e.Emotion != "tristezza" {
		t.Errorf("expected tristezza, got %q", e.Emotion)
	}
	if e.Context != "lavoro" {
		t.Errorf("expected lavoro, got %q", e.Context)
	}
	if e.EmotionExplanation == "" || e.ContextExplanation == "" {
		t.Error("expected classification explanations")
	}
	if gen.calls() != 4 {
		t.Errorf("expected 4 generation calls (support+clinical+2 classifications), got %d", gen.calls())
	}
}

func TestSubmit_NoSupportOptOut(t *testing.T) {
	gen := &fakeGenerator{}
	o, fs, patient := testSetup(t, gen)

	entryID, err := o.Submit(context.Background(), patient.ID, "giornata tranquilla", false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	drain(t, o)

	e := fs.entry(t, entryID)
	if e.SupportText != "" {
		t.Errorf("support text generated without opt-in: %q", e.SupportText)
	}
	if gen.calls() != 3 {
		t.Errorf("expected 3 generation calls, got %d", gen.calls())
	}
}

func TestSubmit_CrisisBranch(t *testing.T) {
	gen := &fakeGenerator{}
	o, fs, patient := testSetup(t, gen)

	entryID, err := o.Submit(context.Background(), patient.ID, "I want to end it all", true)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	drain(t, o)

	e := fs.entry(t, entryID)
	if e.InProgress {
		t.Error("crisis entry must be finalized immediately")
	}
	if !e.RiskFlag || e.RiskCategory != "suicide" {
		t.Errorf("expected suicide risk fields, got flag=%v category=%s", e.RiskFlag, e.RiskCategory)
	}
	if e.SupportText != "" {
		t.Error("crisis branch must never generate support text, even with opt-in")
	}
	if e.ClinicalText != "" {
		t.Error("crisis branch must not generate clinical text")
	}
	if e.SafetyMessage == "" {
		t.Fatal("expected safety message")
	}
	if !strings.Contains(e.SafetyMessage, EmergencyNumber) {
		t.Error("safety message missing emergency number")
	}
	if !strings.Contains(e.SafetyMessage, "+39 333 1234567") {
		t.Error("safety message missing clinician mobile phone")
	}
	if gen.calls() != 0 {
		t.Errorf("crisis branch made %d generation calls, want 0", gen.calls())
	}
}

func TestSubmit_GatewayFailureStillFinalizes(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("%w: dial tcp", ollama.ErrTimeout)}
	o, fs, patient := testSetup(t, gen)

	entryID, err := o.Submit(context.Background(), patient.ID, "una giornata qualunque", false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	drain(t, o)

	e := fs.entry(t, entryID)
	if e.InProgress {
		t.Fatal("entry left in progress under gateway failure")
	}
	if e.ClinicalText != ollama.FallbackMessage(ollama.ErrTimeout) {
		t.Errorf("expected timeout fallback in clinical field, got %q", e.ClinicalText)
	}
	if e.Emotion != "confusione" {
		t.Errorf("expected fallback emotion, got %q", e.Emotion)
	}
	if e.Context != "altro" {
		t.Errorf("expected fallback context, got %q", e.Context)
	}
}

func TestSubmit_PanicStillFinalizes(t *testing.T) {
	gen := &fakeGenerator{panics: true}
	o, fs, patient := testSetup(t, gen)

	entryID, err := o.Submit(context.Background(), patient.ID, "testo", false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	drain(t, o)

	e := fs.entry(t, entryID)
	if e.InProgress {
		t.Fatal("entry left in progress after panic")
	}
	if e.ClinicalText != genericFailure {
		t.Errorf("expected generic failure string, got %q", e.ClinicalText)
	}
}

func TestSubmit_EmptyText(t *testing.T) {
	gen := &fakeGenerator{}
	o, _, patient := testSetup(t, gen)

	if _, err := o.Submit(context.Background(), patient.ID, "", false); err != ErrEmptyText {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestStatus_Contract(t *testing.T) {
	gen := &fakeGenerator{block: make(chan struct{})}
	o, _, patient := testSetup(t, gen)

	entryID, err := o.Submit(context.Background(), patient.ID, "testo", false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	st, err := o.Status(context.Background(), entryID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !st.InProgress {
		t.Error("expected in_progress=true")
	}
	if st.ClinicalText != "" || st.Emotion != "" {
		t.Error("optional fields must be absent while in progress")
	}

	close(gen.block)
	drain(t, o)

	st, err = o.Status(context.Background(), entryID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.InProgress {
		t.Error("expected in_progress=false")
	}
	if st.ClinicalText == "" || st.Emotion == "" || st.Context == "" {
		t.Error("expected generated fields once finalized")
	}
}

func TestStatus_UnknownEntry(t *testing.T) {
	gen := &fakeGenerator{}
	o, _, _ := testSetup(t, gen)
	if _, err := o.Status(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error for unknown entry")
	}
}

func TestRegenerateClinical_RoundTrip(t *testing.T) {
	gen := &fakeGenerator{}
	o, fs, patient := testSetup(t, gen)

	entryID, err := o.Submit(context.Background(), patient.ID, "ho litigato con mia sorella", false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	drain(t, o)

	before := fs.entry(t, entryID)

	newText, err := o.RegenerateClinical(context.Background(), entryID)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if newText == "" {
		t.Fatal("expected regenerated text")
	}

	after := fs.entry(t, entryID)
	if after.Emotion != before.Emotion || after.EmotionExplanation != before.EmotionExplanation {
		t.Error("regeneration altered the emotion fields")
	}
	if after.Context != before.Context || after.ContextExplanation != before.ContextExplanation {
		t.Error("regeneration altered the context fields")
	}
	if after.InProgress {
		t.Error("regeneration altered in_progress")
	}
	if after.ClinicalText != newText {
		t.Error("clinical text not updated")
	}

	// The entry must not feed itself as history: with no other entries the
	// regeneration prompt carries the no-prior-entries sentinel.
	prompts := gen.allPrompts()
	last := prompts[len(prompts)-1]
	if !strings.Contains(last, "Nessuna entrata precedente.") {
		t.Error("expected sentinel context; entry leaked into its own history")
	}
}

func TestRegenerateClinical_RejectsInProgress(t *testing.T) {
	gen := &fakeGenerator{block: make(chan struct{})}
	o, _, patient := testSetup(t, gen)

	entryID, err := o.Submit(context.Background(), patient.ID, "testo", false)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := o.RegenerateClinical(context.Background(), entryID); err != ErrInProgress {
		t.Errorf("expected ErrInProgress, got %v", err)
	}

	close(gen.block)
	drain(t, o)
}

func TestSafetyMessage_ContactPreferenceOrder(t *testing.T) {
	full := store.Clinician{MobilePhone: "333", OfficePhone: "06", Email: "a@b.c"}
	if msg := SafetyMessage("suicide", full); !strings.Contains(msg, "333") {
		t.Error("expected mobile phone preferred")
	}

	office := store.Clinician{OfficePhone: "06", Email: "a@b.c"}
	if msg := SafetyMessage("suicide", office); !strings.Contains(msg, "06") {
		t.Error("expected office phone fallback")
	}

	emailOnly := store.Clinician{Email: "a@b.c"}
	if msg := SafetyMessage("suicide", emailOnly); !strings.Contains(msg, "a@b.c") {
		t.Error("expected email fallback")
	}

	none := store.Clinician{}
	msg := SafetyMessage("violence", none)
	if !strings.Contains(msg, "via email") {
		t.Error("expected generic email instruction")
	}
	if !strings.Contains(msg, EmergencyNumber) {
		t.Error("every safety message carries the emergency number")
	}
}

func TestSafetyMessage_CategorySpecific(t *testing.T) {
	c := store.Clinician{MobilePhone: "333"}
	msgs := map[string]string{
		"suicide":   SafetyMessage("suicide", c),
		"violence":  SafetyMessage("violence", c),
		"self-harm": SafetyMessage("self-harm", c),
	}
	seen := map[string]bool{}
	for cat, msg := range msgs {
		if msg == "" {
			t.Errorf("empty safety message for %s", cat)
		}
		if seen[msg] {
			t.Errorf("safety message for %s duplicates another category", cat)
		}
		seen[msg] = true
	}
}
