package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/souldiary/notegen/internal/pipeline"
	"github.com/souldiary/notegen/internal/prompt"
	"github.com/souldiary/notegen/internal/store"
	"github.com/souldiary/notegen/internal/summary"
)

type submitRequest struct {
	Text        string `json:"text"`
	WantSupport bool   `json:"want_support"`
}

// submitEntry accepts a diary submission and returns the entry id. Generated
// content is not in the response; callers poll the status endpoint.
func (s *Server) submitEntry(w http.ResponseWriter, r *http.Request) {
	patientID, err := headerUUID(r, "X-Patient-ID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	entryID, err := s.pipeline.Submit(r.Context(), patientID, req.Text, req.WantSupport)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrEmptyText):
			writeError(w, http.StatusBadRequest, "entry text is required")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "patient not found")
		default:
			s.logger.Error("submit failed", "patient_id", patientID, "error", err)
			writeError(w, http.StatusInternalServerError, "submission failed")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"entry_id": entryID.String()})
}

// entryStatus implements the polling contract. Safe to call repeatedly; never
// mutates state.
func (s *Server) entryStatus(w http.ResponseWriter, r *http.Request) {
	entryID, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	status, err := s.pipeline.Status(r.Context(), entryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		s.logger.Error("status failed", "entry_id", entryID, "error", err)
		writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	entry, err := s.store.GetEntry(r.Context(), entryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		s.logger.Error("get entry failed", "entry_id", entryID, "error", err)
		writeError(w, http.StatusInternalServerError, "entry lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) regenerateEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	clinicalText, err := s.pipeline.RegenerateClinical(r.Context(), entryID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "entry not found")
		case errors.Is(err, pipeline.ErrInProgress):
			writeError(w, http.StatusConflict, "entry generation still in progress")
		default:
			s.logger.Error("regeneration failed", "entry_id", entryID, "error", err)
			writeError(w, http.StatusInternalServerError, "regeneration failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"clinical_text": clinicalText})
}

type annotationRequest struct {
	Text string `json:"text"`
}

func (s *Server) updateAnnotation(w http.ResponseWriter, r *http.Request) {
	entryID, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	var req annotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.store.UpdateAnnotation(r.Context(), entryID, req.Text); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		s.logger.Error("annotation update failed", "entry_id", entryID, "error", err)
		writeError(w, http.StatusInternalServerError, "annotation update failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry id")
		return
	}
	patientID, err := headerUUID(r, "X-Patient-ID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.DeleteEntry(r.Context(), entryID, patientID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "entry not found")
		case errors.Is(err, store.ErrForbidden):
			writeError(w, http.StatusForbidden, "entry belongs to another patient")
		default:
			s.logger.Error("delete failed", "entry_id", entryID, "error", err)
			writeError(w, http.StatusInternalServerError, "delete failed")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getPreferences(w http.ResponseWriter, r *http.Request) {
	clinicianID, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid clinician id")
		return
	}

	prefs, err := s.store.GetPreferences(r.Context(), clinicianID)
	if err != nil {
		s.logger.Error("preferences lookup failed", "clinician_id", clinicianID, "error", err)
		writeError(w, http.StatusInternalServerError, "preferences lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) savePreferences(w http.ResponseWriter, r *http.Request) {
	clinicianID, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid clinician id")
		return
	}

	var prefs prompt.Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if prefs.Structure != prompt.Structured && prefs.Structure != prompt.Freeform {
		writeError(w, http.StatusBadRequest, "structure must be structured or freeform")
		return
	}
	if prefs.Length != prompt.Short && prefs.Length != prompt.Long {
		writeError(w, http.StatusBadRequest, "length must be short or long")
		return
	}

	if err := s.store.SavePreferences(r.Context(), clinicianID, prefs); err != nil {
		s.logger.Error("preferences save failed", "clinician_id", clinicianID, "error", err)
		writeError(w, http.StatusInternalServerError, "preferences save failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type summaryRequest struct {
	PatientID   string `json:"patient_id"`
	ClinicianID string `json:"clinician_id"`
	Period      string `json:"period"`
}

func (s *Server) createSummary(w http.ResponseWriter, r *http.Request) {
	var req summaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	patientID, err := parseUUIDField(req.PatientID, "patient_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	clinicianID, err := parseUUIDField(req.ClinicianID, "clinician_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cs, err := s.summaries.Generate(r.Context(), patientID, clinicianID, summary.Period(req.Period))
	if err != nil {
		switch {
		case errors.Is(err, summary.ErrUnknownPeriod):
			writeError(w, http.StatusBadRequest, "period must be one of 7days, 30days, 3months, year")
		case errors.Is(err, summary.ErrNoEntries):
			writeError(w, http.StatusNotFound, "no entries in the requested period")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "patient not found")
		default:
			s.logger.Error("summary generation failed", "patient_id", patientID, "error", err)
			writeError(w, http.StatusInternalServerError, "summary generation failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, cs)
}
