package endpoints

import (
	"context"

	"github.com/EasterCompany/dex-voice-bridge/bridge"
	"github.com/EasterCompany/dex-voice-bridge/notes"
)

// SessionStatus is the public view of one guild's session.
type SessionStatus struct {
	GuildID    string `json:"guild_id"`
	SessionID  string `json:"session_id"`
	State      string `json:"state"`
	Active     bool   `json:"active"`
	AISpeaking bool   `json:"ai_speaking"`
	Muted      bool   `json:"muted"`
	NoteCount  int    `json:"note_count"`
}

// Sessions is what the HTTP API controls.
type Sessions interface {
	Start(ctx context.Context, guildID string, opts bridge.StartOptions) (SessionStatus, error)
	Stop(guildID string) bool
	Status(guildID string) (SessionStatus, bool)
	Notes(guildID string) ([]notes.Note, bool)
	List() []SessionStatus
}

// RegistrySessions serves Sessions from a bridge registry.
type RegistrySessions struct {
	Registry *bridge.Registry
}

func (rs RegistrySessions) Start(ctx context.Context, guildID string, opts bridge.StartOptions) (SessionStatus, error) {
	s, err := rs.Registry.Start(ctx, guildID, opts)
	if err != nil {
		return SessionStatus{}, err
	}
	return statusOf(s), nil
}

func (rs RegistrySessions) Stop(guildID string) bool {
	return rs.Registry.StopSession(guildID)
}

func (rs RegistrySessions) Status(guildID string) (SessionStatus, bool) {
	s, ok := rs.Registry.Get(guildID)
	if !ok {
		return SessionStatus{GuildID: guildID, State: bridge.StateClosed.String()}, false
	}
	return statusOf(s), true
}

func (rs RegistrySessions) Notes(guildID string) ([]notes.Note, bool) {
	s, ok := rs.Registry.Get(guildID)
	if !ok {
		return nil, false
	}
	return s.Notes(), true
}

func (rs RegistrySessions) List() []SessionStatus {
	ids := rs.Registry.GuildIDs()
	out := make([]SessionStatus, 0, len(ids))
	for _, id := range ids {
		if st, ok := rs.Status(id); ok {
			out = append(out, st)
		}
	}
	return out
}

func statusOf(s *bridge.Session) SessionStatus {
	state := s.State()
	return SessionStatus{
		GuildID:    s.GuildID(),
		SessionID:  s.ID(),
		State:      state.String(),
		Active:     state == bridge.StateConnecting || state == bridge.StateActive,
		AISpeaking: s.IsAiSpeaking(),
		Muted:      s.IsMuted(),
		NoteCount:  len(s.Notes()),
	}
}
