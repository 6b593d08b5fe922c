package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const entryColumns = `id, patient_id, text, created_at, support_text, clinical_text,
	clinician_note, emotion, emotion_explanation, context, context_explanation,
	risk_flag, risk_category, safety_message, in_progress`

// CreateEntry inserts a new entry row and returns its id. The caller decides
// the in_progress and risk fields: the crisis branch creates finalized rows,
// the normal branch creates in-progress placeholders.
func (s *Store) CreateEntry(ctx context.Context, e Entry) (uuid.UUID, error) {
	id := e.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO entries (id, patient_id, text, created_at, support_text, clinical_text,
			clinician_note, emotion, emotion_explanation, context, context_explanation,
			risk_flag, risk_category, safety_message, in_progress)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		id, e.PatientID, e.Text, createdAt, e.SupportText, e.ClinicalText,
		e.ClinicianNote, e.Emotion, e.EmotionExplanation, e.Context, e.ContextExplanation,
		e.RiskFlag, e.RiskCategory, e.SafetyMessage, e.InProgress,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert entry: %w", err)
	}
	return id, nil
}

// GetEntry fetches one entry by id.
func (s *Store) GetEntry(ctx context.Context, id uuid.UUID) (Entry, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = $1`, id)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("entry %s: %w", id, ErrNotFound)
		}
		return Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// UpdateGenerated writes every generated field and clears in_progress in a
// single statement. This is the finalizing write of a background unit; pollers
// never observe in_progress=false with the fields still missing.
func (s *Store) UpdateGenerated(ctx context.Context, id uuid.UUID, f GeneratedFields) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE entries SET support_text = $1, clinical_text = $2,
			emotion = $3, emotion_explanation = $4,
			context = $5, context_explanation = $6,
			in_progress = false
		WHERE id = $7`,
		f.SupportText, f.ClinicalText, f.Emotion, f.EmotionExplanation,
		f.Context, f.ContextExplanation, id,
	)
	if err != nil {
		return fmt.Errorf("update generated fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateClinical replaces only the clinical text. Used by regeneration; the
// other generated fields and in_progress are left untouched.
func (s *Store) UpdateClinical(ctx context.Context, id uuid.UUID, clinicalText string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE entries SET clinical_text = $1 WHERE id = $2`, clinicalText, id)
	if err != nil {
		return fmt.Errorf("update clinical text: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateAnnotation stores the clinician-authored note for an entry.
func (s *Store) UpdateAnnotation(ctx context.Context, id uuid.UUID, note string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE entries SET clinician_note = $1 WHERE id = $2`, note, id)
	if err != nil {
		return fmt.Errorf("update annotation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListByPatient returns the patient's entries newest-first, optionally
// excluding one entry id and capping the result.
func (s *Store) ListByPatient(ctx context.Context, patientID, excludeID uuid.UUID, limit int) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries
		WHERE patient_id = $1 AND ($2::uuid IS NULL OR id != $2)
		ORDER BY created_at DESC`
	args := []any{patientID, nullableUUID(excludeID)}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// ListBetween returns the patient's entries created in [from, to), oldest-first.
// Used by period case summaries.
func (s *Store) ListBetween(ctx context.Context, patientID uuid.UUID, from, to time.Time) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+entryColumns+` FROM entries
		WHERE patient_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC`, patientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list entries between: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// DeleteEntry removes an entry, guarded by ownership: only the patient who
// created it may delete it.
func (s *Store) DeleteEntry(ctx context.Context, id, patientID uuid.UUID) error {
	var owner uuid.UUID
	err := s.pool.QueryRow(ctx, `SELECT patient_id FROM entries WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("entry %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("check entry owner: %w", err)
	}
	if owner != patientID {
		return fmt.Errorf("entry %s is not owned by %s: %w", id, patientID, ErrForbidden)
	}

	if _, err := s.pool.Exec(ctx, `DELETE FROM entries WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.PatientID, &e.Text, &e.CreatedAt, &e.SupportText,
		&e.ClinicalText, &e.ClinicianNote, &e.Emotion, &e.EmotionExplanation,
		&e.Context, &e.ContextExplanation, &e.RiskFlag, &e.RiskCategory,
		&e.SafetyMessage, &e.InProgress)
	return e, err
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
