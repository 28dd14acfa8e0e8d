package web

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/rxstock/internal/core"
)

type addRecordRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=999999"`
	// Expiry is YYYY-MM-DD, M/D/YYYY or M/YY.
	Expiry string `json:"expiry"`
}

type resolveRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

// editRecordRequest carries a corrected sheet row keyed by column name.
type editRecordRequest struct {
	Values map[string]string `json:"values" validate:"required,min=1"`
}

func (s *Server) handleAddRecord(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathUUID(r, "sessionID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req addRecordRequest
	if err := s.decodeJSON(w, r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}

	var expiry *time.Time
	if req.Expiry != "" {
		t, err := parseRequestDate(req.Expiry)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		expiry = &t
	}

	rec, err := s.service.AddRecord(r.Context(), sessionID, req.ProductID, req.Quantity, expiry)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleEditRecord(w http.ResponseWriter, r *http.Request) {
	sessionID, recordID, ok := s.recordPath(w, r)
	if !ok {
		return
	}
	var req editRecordRequest
	if err := s.decodeJSON(w, r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}

	values := make(map[string]string, len(req.Values))
	for k, v := range req.Values {
		values[core.NormalizeHeader(k)] = core.CleanCell(v)
	}
	rec, err := s.service.EditRecord(r.Context(), sessionID, recordID, core.RawRow{Values: values})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRemoveRecord(w http.ResponseWriter, r *http.Request) {
	sessionID, recordID, ok := s.recordPath(w, r)
	if !ok {
		return
	}
	if err := s.service.RemoveRecord(r.Context(), sessionID, recordID); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	sessionID, recordID, ok := s.recordPath(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if err := s.decodeJSON(w, r, &req, false); err != nil {
		s.respondError(w, r, err)
		return
	}
	rec, err := s.service.Resolve(r.Context(), sessionID, recordID, req.ProductID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	sessionID, recordID, ok := s.recordPath(w, r)
	if !ok {
		return
	}
	rec, err := s.service.Undo(r.Context(), sessionID, recordID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) recordPath(w http.ResponseWriter, r *http.Request) (sessionID, recordID uuid.UUID, ok bool) {
	sid, err := pathUUID(r, "sessionID")
	if err != nil {
		s.respondError(w, r, err)
		return sessionID, recordID, false
	}
	rid, err := pathUUID(r, "recordID")
	if err != nil {
		s.respondError(w, r, err)
		return sessionID, recordID, false
	}
	return sid, rid, true
}

// parseRequestDate accepts ISO dates besides the sheet formats.
func parseRequestDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := core.ParseExpiry(s)
	if err != nil {
		return time.Time{}, core.ValidationError{Field: core.ColExpiry, Value: s, Message: "invalid date"}
	}
	return t, nil
}
