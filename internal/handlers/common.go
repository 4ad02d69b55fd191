package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/gembooth/internal/session"
	"github.com/lehigh-university-libraries/gembooth/internal/storage"
)

// Limits bounds the sessions a Handler keeps alive. Zero values disable a
// limit.
type Limits struct {
	// MaxSessions caps concurrently open sessions
	MaxSessions int
	// IdleTimeout closes sessions without activity for that long
	IdleTimeout time.Duration
}

type Handler struct {
	sessionStore *storage.SessionStore[*session.Session]
	sessionOpts  session.Options
	staticDir    string
	limits       Limits
}

// New returns a Handler creating sessions with opts. Files under staticDir
// are served for every path outside /api/.
func New(opts session.Options, staticDir string, limits Limits) *Handler {
	opts.ID = ""
	return &Handler{
		sessionStore: storage.NewSessionStore[*session.Session](),
		sessionOpts:  opts,
		staticDir:    staticDir,
		limits:       limits,
	}
}

// Register adds the handler's routes to mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/modes", h.HandleModes)
	mux.HandleFunc("GET /api/sessions", h.HandleListSessions)
	mux.HandleFunc("POST /api/sessions", h.HandleCreateSession)
	mux.HandleFunc("GET /api/sessions/{session}", h.HandleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{session}", h.HandleDeleteSession)
	mux.HandleFunc("GET /api/sessions/{session}/modes", h.HandleSessionModes)
	mux.HandleFunc("PUT /api/sessions/{session}/mode", h.HandleSetMode)
	mux.HandleFunc("PUT /api/sessions/{session}/custom", h.HandleSetCustomInstruction)
	mux.HandleFunc("GET /api/sessions/{session}/photos", h.HandleListPhotos)
	mux.HandleFunc("POST /api/sessions/{session}/photos", h.HandleSnap)
	mux.HandleFunc("GET /api/sessions/{session}/photos/{photo}", h.HandleGetPhoto)
	mux.HandleFunc("DELETE /api/sessions/{session}/photos/{photo}", h.HandleDeletePhoto)
	mux.HandleFunc("GET /api/sessions/{session}/photos/{photo}/{kind}", h.HandlePhotoImage)
	mux.HandleFunc("/", h.HandleStatic)
}

// Close closes every live session
func (h *Handler) Close(ctx context.Context) {
	var wg sync.WaitGroup
	for id := range h.sessionStore.GetAll() {
		s, ok := h.sessionStore.Delete(id)
		if !ok {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Close(ctx); err != nil {
				slog.Error("Unable to close session", "session_id", id, "err", err)
			}
		}()
	}
	wg.Wait()
}

// ExpireIdle closes every session idle since before now minus the idle
// timeout and returns how many were closed.
func (h *Handler) ExpireIdle(ctx context.Context, now time.Time) int {
	if h.limits.IdleTimeout <= 0 {
		return 0
	}

	var expired int
	for id, s := range h.sessionStore.GetAll() {
		if now.Sub(s.LastActive()) < h.limits.IdleTimeout {
			continue
		}
		if _, ok := h.sessionStore.Delete(id); !ok {
			continue
		}
		expired++
		slog.Info("Expiring idle session", "session_id", id, "last_active", s.LastActive())
		if err := s.Close(ctx); err != nil {
			slog.Warn("Session closed with transformations still running", "session_id", id, "err", err)
		}
	}
	return expired
}

// RunExpiry calls ExpireIdle every interval until ctx is done.
func (h *Handler) RunExpiry(ctx context.Context, interval time.Duration) {
	if h.limits.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if n := h.ExpireIdle(closeCtx, now); n > 0 {
				slog.Info("Expired idle sessions", "count", n, "open", h.sessionStore.Len())
			}
			cancel()
		}
	}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data interface{}) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Debug(message, "code", code)
	}
	http.Error(w, message, code)
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, exists := h.sessionStore.Get(r.PathValue("session"))
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return s, true
}
