package bridge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/EasterCompany/dex-voice-bridge/notes"
	"github.com/EasterCompany/dex-voice-bridge/realtime"
)

// Registry owns the guild -> session map. At most one session exists per guild.
type Registry struct {
	cfg  Config
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(cfg Config, deps Deps) *Registry {
	return &Registry{
		cfg:      cfg.withDefaults(),
		deps:     deps.withDefaults(),
		sessions: make(map[string]*Session),
	}
}

// StartSession runs a call for the guild. It reports false when a session
// already exists, the configuration is incomplete, or connecting fails; the
// reason is logged.
func (r *Registry) StartSession(ctx context.Context, guildID string, opts StartOptions) bool {
	_, err := r.Start(ctx, guildID, opts)
	if err != nil {
		r.deps.Logger.Error(fmt.Sprintf("Starting realtime call for guild %s", guildID), err)
		return false
	}
	return true
}

// Start is StartSession with the session and error exposed.
func (r *Registry) Start(ctx context.Context, guildID string, opts StartOptions) (*Session, error) {
	s, err := r.register(guildID, opts)
	if err != nil {
		return nil, err
	}
	if err := s.start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Registry) register(guildID string, opts StartOptions) (*Session, error) {
	if strings.TrimSpace(r.cfg.APIKey) == "" {
		return nil, ErrMissingCredentials
	}
	if guildID == "" || opts.ChannelID == "" {
		return nil, ErrInvalidOptions
	}
	if opts.Voice == "" {
		opts.Voice = r.cfg.DefaultVoice
	}
	if !realtime.ValidVoice(opts.Voice) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVoice, opts.Voice)
	}
	if strings.TrimSpace(opts.Instructions) == "" {
		opts.Instructions = r.cfg.DefaultInstructions
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[guildID]; ok {
		return nil, ErrSessionExists
	}

	s := newSession(guildID, opts, r.cfg, r.deps, r.loadNotes(guildID))
	s.onClosed = r.remove
	s.mu.Lock()
	s.starting = true
	s.setStateLocked(StateConnecting)
	s.mu.Unlock()
	r.sessions[guildID] = s
	r.deps.Metrics.SessionOpened()
	return s, nil
}

func (r *Registry) loadNotes(guildID string) []notes.Note {
	if r.deps.NoteLoader == nil {
		return nil
	}
	existing, err := r.deps.NoteLoader.LoadNotes(guildID)
	if err != nil {
		r.deps.Logger.Error(fmt.Sprintf("Loading notes for guild %s", guildID), err)
		return nil
	}
	return existing
}

// remove deletes the registry entry and closes the session in one step.
func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[s.guildID]; ok && current == s {
		delete(r.sessions, s.guildID)
		r.deps.Metrics.SessionClosed()
	}
	s.markClosed()
}

// StopSession ends the guild's session. It reports false when there is none
// or it is already ending.
func (r *Registry) StopSession(guildID string) bool {
	s, ok := r.Get(guildID)
	if !ok {
		return false
	}
	return s.Stop("stop requested")
}

// IsActive reports whether the guild has a session that is connecting or live.
func (r *Registry) IsActive(guildID string) bool {
	s, ok := r.Get(guildID)
	if !ok {
		return false
	}
	switch s.State() {
	case StateConnecting, StateActive:
		return true
	default:
		return false
	}
}

func (r *Registry) Get(guildID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[guildID]
	return s, ok
}

// GuildIDs lists the guilds with a registered session, sorted.
func (r *Registry) GuildIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown stops every session and waits for them to close or ctx to end.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Stop("shutting down")
	}
	for _, s := range sessions {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return
		}
	}
}
