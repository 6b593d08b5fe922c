package store

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/souldiary/notegen/internal/risk"
)

// Entry is one diary entry with its generated fields. risk_flag entries are
// finalized on the crisis branch and never carry generated text.
type Entry struct {
	ID                 uuid.UUID     `json:"id"`
	PatientID          uuid.UUID     `json:"patient_id"`
	Text               string        `json:"text"`
	CreatedAt          time.Time     `json:"created_at"`
	SupportText        string        `json:"support_text,omitempty"`
	ClinicalText       string        `json:"clinical_text,omitempty"`
	ClinicianNote      string        `json:"clinician_note,omitempty"`
	Emotion            string        `json:"emotion,omitempty"`
	EmotionExplanation string        `json:"emotion_explanation,omitempty"`
	Context            string        `json:"context,omitempty"`
	ContextExplanation string        `json:"context_explanation,omitempty"`
	RiskFlag           bool          `json:"risk_flag"`
	RiskCategory       risk.Category `json:"risk_category,omitempty"`
	SafetyMessage      string        `json:"safety_message,omitempty"`
	InProgress         bool          `json:"in_progress"`
}

// GeneratedFields is the finalizing write of a background generation unit.
// Every field lands in one UPDATE together with in_progress = false.
type GeneratedFields struct {
	SupportText        string
	ClinicalText       string
	Emotion            string
	EmotionExplanation string
	Context            string
	ContextExplanation string
}

// Clinician is the contact record used for safety messages.
type Clinician struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	OfficePhone string    `json:"office_phone,omitempty"`
	MobilePhone string    `json:"mobile_phone,omitempty"`
	Email       string    `json:"email"`
}

type Patient struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	ClinicianID uuid.UUID `json:"clinician_id"`
}

func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// CaseSummary is a clinician-requested period summary over a patient's entries.
type CaseSummary struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	ClinicianID uuid.UUID `json:"clinician_id"`
	Period      string    `json:"period"`
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`
}
