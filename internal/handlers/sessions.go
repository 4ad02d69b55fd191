package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/gembooth/internal/modes"
	"github.com/lehigh-university-libraries/gembooth/internal/session"
)

func (h *Handler) HandleModes(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, modes.List())
}

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.sessionStore.IDs())
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	s := session.New(h.sessionOpts)
	if !h.sessionStore.Add(s.ID(), s, h.limits.MaxSessions) {
		_ = s.Close(r.Context())
		h.writeError(w, "Too many open sessions", http.StatusServiceUnavailable)
		return
	}
	slog.Info("Session created", "session_id", s.ID())
	h.writeJSONStatus(w, http.StatusCreated, s.State())
}

func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, s.State())
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessionStore.Delete(r.PathValue("session"))
	if !ok {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return
	}

	// short grace period for in-flight transformations
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		slog.Warn("Session closed with transformations still running", "session_id", s.ID(), "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleSessionModes(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, s.Modes())
}

func (h *Handler) HandleSetMode(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		Mode *modes.Key `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	if request.Mode == nil {
		h.writeError(w, "mode is required", http.StatusBadRequest)
		return
	}

	if err := s.SetMode(*request.Mode); err != nil {
		h.writeSessionError(w, err)
		return
	}
	h.writeJSON(w, s.State())
}

func (h *Handler) HandleSetCustomInstruction(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var request struct {
		Instruction string `json:"instruction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.SetCustomInstruction(request.Instruction); err != nil {
		h.writeSessionError(w, err)
		return
	}
	h.writeJSON(w, s.State())
}

func (h *Handler) writeSessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrClosed) {
		h.writeError(w, "Session closed", http.StatusGone)
		return
	}
	h.writeError(w, err.Error(), http.StatusInternalServerError)
}
