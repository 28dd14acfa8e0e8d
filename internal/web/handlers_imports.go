package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/rxstock/internal/core"
	"github.com/JonMunkholm/rxstock/internal/logging"
)

// multipartOverhead is allowed on top of the file size for form framing.
const multipartOverhead = 1 << 20

// handleCreateImport reads the "file" part of a multipart upload and
// returns the new session's summary and match stats.
func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = s.cfg.Import.DefaultMode
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		s.respondError(w, r, badRequest("expected a multipart upload", err))
		return
	}

	for {
		part, err := mr.NextPart()
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				s.respondError(w, r, core.ErrFileTooLarge)
				return
			}
			s.respondError(w, r, badRequest("no file provided", err))
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		log := logging.WithFields(r.Context(), "mode", mode, "file", part.FileName())
		result, err := s.service.CreateSession(r.Context(), mode, part.FileName(), part)
		part.Close()
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		log.Info("import session created", "session_id", result.Summary.SessionID, "records", result.Summary.Total)
		writeJSON(w, http.StatusCreated, result)
		return
	}
}

func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "sessionID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	status := core.RecordStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		s.respondError(w, r, badRequest("unknown status "+string(status), nil))
		return
	}

	view, err := s.service.GetSession(id, status)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDiscardImport(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "sessionID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.DiscardSession(r.Context(), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
