package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JonMunkholm/rxstock/internal/core"
)

// sseHeartbeat keeps idle progress streams alive through proxies.
const sseHeartbeat = 15 * time.Second

type commitRequest struct {
	AcknowledgeSkipped bool `json:"acknowledge_skipped"`
}

func (s *Server) handleCommitPlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "sessionID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	plan, err := s.service.CommitPlan(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// handleStartCommit starts the commit in the background and answers 202
// with the plan. Progress is read from the SSE stream or the result route.
func (s *Server) handleStartCommit(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "sessionID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	var req commitRequest
	if err := s.decodeJSON(w, r, &req, true); err != nil {
		s.respondError(w, r, err)
		return
	}

	plan, err := s.service.StartCommit(r.Context(), id, req.AcknowledgeSkipped)
	if errors.Is(err, core.ErrSkippedNotAcknowledged) {
		s.respondErrorBody(w, r, err, ErrorResponse{Plan: &plan})
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/imports/%s/commit/result", id))
	writeJSON(w, http.StatusAccepted, plan)
}

// handleCommitProgress streams progress as Server-Sent Events. Each event
// id is the number of committed records, so a reconnecting client that
// sends Last-Event-ID skips what it already has. A final "complete" event
// carries the outcome.
func (s *Server) handleCommitProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "sessionID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	lastSeen := -1
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			lastSeen = n
		}
	}

	progress, stop, err := s.service.SubscribeProgress(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer stop()

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, errors.New("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case p, ok := <-progress:
			if !ok {
				outcome, _ := s.service.CommitStatus(id)
				writeEvent(w, "complete", "", outcome)
				flusher.Flush()
				return
			}
			if p.Current <= lastSeen {
				continue
			}
			lastSeen = p.Current
			writeEvent(w, "progress", strconv.Itoa(p.Current), p)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event, id string, v any) {
	data, _ := json.Marshal(v)
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func (s *Server) handleCommitResult(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "sessionID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	outcome, err := s.service.CommitStatus(id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleCancelCommit(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "sessionID")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.service.CancelCommit(id); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}
