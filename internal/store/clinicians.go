package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/souldiary/notegen/internal/prompt"
)

// GetPatient fetches a patient by id.
func (s *Store) GetPatient(ctx context.Context, id uuid.UUID) (Patient, error) {
	var p Patient
	err := s.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, clinician_id FROM patients WHERE id = $1`, id).
		Scan(&p.ID, &p.FirstName, &p.LastName, &p.ClinicianID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Patient{}, fmt.Errorf("patient %s: %w", id, ErrNotFound)
		}
		return Patient{}, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

// GetClinician fetches a clinician's contact record by id.
func (s *Store) GetClinician(ctx context.Context, id uuid.UUID) (Clinician, error) {
	var c Clinician
	err := s.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, office_phone, mobile_phone, email
		FROM clinicians WHERE id = $1`, id).
		Scan(&c.ID, &c.FirstName, &c.LastName, &c.OfficePhone, &c.MobilePhone, &c.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Clinician{}, fmt.Errorf("clinician %s: %w", id, ErrNotFound)
		}
		return Clinician{}, fmt.Errorf("get clinician: %w", err)
	}
	return c, nil
}

// GetPreferences loads a clinician's generation preferences. Clinicians who
// never configured generation get the defaults.
func (s *Store) GetPreferences(ctx context.Context, clinicianID uuid.UUID) (prompt.Preferences, error) {
	var structure, length string
	var params []byte
	err := s.pool.QueryRow(ctx, `
		SELECT structure, length, parameters FROM clinician_preferences WHERE clinician_id = $1`,
		clinicianID).Scan(&structure, &length, &params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return prompt.DefaultPreferences(), nil
		}
		return prompt.Preferences{}, fmt.Errorf("get preferences: %w", err)
	}

	prefs := prompt.Preferences{
		Structure: prompt.Structure(structure),
		Length:    prompt.Length(length),
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &prefs.Parameters); err != nil {
			return prompt.Preferences{}, fmt.Errorf("decode preference parameters: %w", err)
		}
	}
	return prefs, nil
}

// SavePreferences upserts a clinician's generation preferences. Parameters are
// stored as a jsonb ordered list, never as a delimiter-joined string.
func (s *Store) SavePreferences(ctx context.Context, clinicianID uuid.UUID, prefs prompt.Preferences) error {
	params, err := json.Marshal(prefs.Parameters)
	if err != nil {
		return fmt.Errorf("encode preference parameters: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO clinician_preferences (clinician_id, structure, length, parameters)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (clinician_id) DO UPDATE
		SET structure = EXCLUDED.structure, length = EXCLUDED.length, parameters = EXCLUDED.parameters`,
		clinicianID, string(prefs.Structure), string(prefs.Length), params,
	)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// CreateSummary stores a generated case summary and returns its id.
func (s *Store) CreateSummary(ctx context.Context, cs CaseSummary) (uuid.UUID, error) {
	id := cs.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO case_summaries (id, patient_id, clinician_id, period, text, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, cs.PatientID, cs.ClinicianID, cs.Period, cs.Text, cs.GeneratedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert case summary: %w", err)
	}
	return id, nil
}
