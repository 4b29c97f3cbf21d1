// Package endpoints serves the HTTP control and status API.
package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/EasterCompany/dex-voice-bridge/bridge"
	logger "github.com/EasterCompany/dex-voice-bridge/log"
	"github.com/EasterCompany/dex-voice-bridge/metrics"
	"github.com/EasterCompany/dex-voice-bridge/notes"
	"github.com/EasterCompany/dex-voice-bridge/system"
	"github.com/go-chi/chi/v5"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping() error
}

type Options struct {
	Metrics *metrics.Metrics
	// Cache is optional; nil reports the cache as disabled.
	Cache  Pinger
	Sample func() (system.Snapshot, error)
	Logger logger.Logger
}

type Server struct {
	sessions Sessions
	opts     Options
}

func New(sessions Sessions, opts Options) *Server {
	return &Server{sessions: sessions, opts: opts}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.opts.Metrics.Handler().ServeHTTP(w, r)
	})

	r.Get("/sessions", s.handleListSessions)
	r.Post("/sessions/{guildID}", s.handleStartSession)
	r.Delete("/sessions/{guildID}", s.handleStopSession)
	r.Get("/sessions/{guildID}", s.handleGetSession)
	r.Get("/sessions/{guildID}/notes", s.handleGetNotes)
	return r
}

type startRequest struct {
	ChannelID    string `json:"channel_id"`
	Voice        string `json:"voice"`
	Instructions string `json:"instructions"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")

	var req startRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.ChannelID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "channel_id is required")
		return
	}

	status, err := s.sessions.Start(r.Context(), guildID, bridge.StartOptions{
		ChannelID:    req.ChannelID,
		Voice:        req.Voice,
		Instructions: req.Instructions,
	})
	if err != nil {
		if s.opts.Logger != nil {
			s.opts.Logger.Error(fmt.Sprintf("Starting realtime call for guild %s", guildID), err)
		}
		code, httpStatus := startErrorStatus(err)
		respondError(w, httpStatus, code, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, status)
}

func startErrorStatus(err error) (string, int) {
	switch {
	case errors.Is(err, bridge.ErrSessionExists):
		return "session_exists", http.StatusConflict
	case errors.Is(err, bridge.ErrUnknownVoice), errors.Is(err, bridge.ErrInvalidOptions):
		return "invalid_request", http.StatusBadRequest
	case errors.Is(err, bridge.ErrMissingCredentials):
		return "not_configured", http.StatusServiceUnavailable
	default:
		return "start_failed", http.StatusBadGateway
	}
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	if !s.sessions.Stop(guildID) {
		respondError(w, http.StatusNotFound, "session_not_found", "no running session for guild "+guildID)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"guild_id": guildID, "stopped": true})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	status, _ := s.sessions.Status(chi.URLParam(r, "guildID"))
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"sessions": s.sessions.List()})
}

func (s *Server) handleGetNotes(w http.ResponseWriter, r *http.Request) {
	guildID := chi.URLParam(r, "guildID")
	list, ok := s.sessions.Notes(guildID)
	if !ok {
		respondError(w, http.StatusNotFound, "session_not_found", "no running session for guild "+guildID)
		return
	}
	if list == nil {
		list = []notes.Note{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"guild_id": guildID, "notes": list})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{
		"status":   "ok",
		"sessions": len(s.sessions.List()),
		"cache":    "disabled",
	}
	if s.opts.Cache != nil {
		if err := s.opts.Cache.Ping(); err != nil {
			body["cache"] = "error: " + err.Error()
			body["status"] = "degraded"
		} else {
			body["cache"] = "ok"
		}
	}
	if s.opts.Sample != nil {
		if snap, err := s.opts.Sample(); err == nil {
			body["system"] = snap
		}
	}
	respondJSON(w, http.StatusOK, body)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
