package web

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/rxstock/internal/core"
)

func (s *Server) handleListModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListModes())
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.service.ListCategories(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

// handleListAudit lists audit entries, newest first. Filters: session,
// action, since (RFC 3339), limit, offset.
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	var f core.AuditFilter
	if v := q.Get("session"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			s.respondError(w, r, badRequest("invalid session", err))
			return
		}
		f.SessionID = id
	}
	f.Action = core.AuditAction(q.Get("action"))
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(w, r, badRequest("invalid since", err))
			return
		}
		f.Since = t
	}

	var err error
	if f.Limit, err = queryInt(r, "limit", core.DefaultAuditLimit); err != nil {
		s.respondError(w, r, err)
		return
	}
	if f.Offset, err = queryInt(r, "offset", 0); err != nil {
		s.respondError(w, r, err)
		return
	}
	f.Limit = min(f.Limit, 1000)

	entries, err := s.audit.ListAudit(r.Context(), f)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
