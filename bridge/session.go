package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/EasterCompany/dex-voice-bridge/interfaces"
	logger "github.com/EasterCompany/dex-voice-bridge/log"
	"github.com/EasterCompany/dex-voice-bridge/notes"
	"github.com/EasterCompany/dex-voice-bridge/realtime"
	"github.com/google/uuid"
)

// Session bridges one guild's voice channel and one realtime AI session.
// All state below mu is touched only while holding mu; voice callbacks, AI
// events and timers all take it before doing anything.
type Session struct {
	id      string
	guildID string
	opts    StartOptions
	cfg     Config
	deps    Deps
	log     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// onClosed removes the session from its registry and marks it closed.
	onClosed func(*Session)

	mu           sync.Mutex
	state        State
	isAiSpeaking bool
	isMuted      bool
	muteGen      int
	muteTimer    Timer
	endTimer     Timer
	endReason    string
	pendingCalls map[string]*callAccumulator
	downlink     [][]byte
	capturing    map[string]bool
	notes        *notes.Log

	// starting is true while start is running. A Stop in that window leaves
	// the final close to start, which still owns whatever it is connecting.
	starting     bool
	closePending bool

	conn   interfaces.VoiceConnection
	player interfaces.Player
	ai     interfaces.AIConn
}

func newSession(guildID string, opts StartOptions, cfg Config, deps Deps, existing []notes.Note) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:           uuid.NewString(),
		guildID:      guildID,
		opts:         opts,
		cfg:          cfg,
		deps:         deps,
		log:          deps.Logger,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		state:        StateIdle,
		pendingCalls: make(map[string]*callAccumulator),
		capturing:    make(map[string]bool),
	}
	s.notes = notes.NewLog(guildID, existing, deps.Notes, func(err error) {
		s.log.Error(fmt.Sprintf("Persisting notes for guild %s", guildID), err)
	})
	return s
}

func (s *Session) ID() string      { return s.id }
func (s *Session) GuildID() string { return s.guildID }

// Done is closed once the session reaches StateClosed.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) IsAiSpeaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isAiSpeaking
}

func (s *Session) IsMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isMuted
}

func (s *Session) Notes() []notes.Note {
	return s.notes.Notes()
}

func (s *Session) logf(format string, args ...any) {
	s.log.Info(fmt.Sprintf("[%s] ", s.guildID) + fmt.Sprintf(format, args...))
}

func (s *Session) setStateLocked(to State) bool {
	from := s.state
	if !canTransition(from, to) {
		return false
	}
	s.state = to
	s.deps.Metrics.SessionTransition(to.String())
	if s.deps.OnStateChange != nil {
		s.deps.OnStateChange(s.guildID, from, to)
	}
	return true
}

// start joins the voice channel, connects the AI transport and sends the
// session configuration. No lock is held while either network call is in
// flight; a concurrent Stop cancels them and start releases whatever it got.
func (s *Session) start(ctx context.Context) error {
	defer s.finishStart()

	connectCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	conn, err := s.deps.Voice.Join(connectCtx, s.guildID, s.opts.ChannelID)
	if err != nil {
		s.Stop("voice join failed")
		return fmt.Errorf("join voice channel %s: %w", s.opts.ChannelID, err)
	}
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		if err := conn.Destroy(); err != nil {
			s.log.Error("Releasing voice connection of a stopped session", err)
		}
		return ErrSessionClosed
	}
	s.conn = conn
	s.player = conn.Player()
	s.mu.Unlock()

	ai, err := s.deps.AI.Connect(connectCtx, s.cfg.APIKey)
	if err != nil {
		s.Stop("realtime connect failed")
		return fmt.Errorf("connect realtime transport: %w", err)
	}
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		_ = ai.Close()
		return ErrSessionClosed
	}
	s.ai = ai
	s.mu.Unlock()

	if err := ai.Send(realtime.SessionUpdate(s.sessionConfig())); err != nil {
		s.Stop("session configuration failed")
		return fmt.Errorf("configure realtime session: %w", err)
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.player.OnStateChange(s.onPlaybackState)
	conn.OnSpeakingStart(s.onSpeakingStart)
	s.setStateLocked(StateActive)
	s.mu.Unlock()

	go s.pump(ai)
	s.logf("Realtime call %s active with voice %q", s.id, s.opts.Voice)
	return nil
}

// pump feeds AI events into the session until the transport closes.
func (s *Session) pump(ai interfaces.AIConn) {
	for ev := range ai.Events() {
		s.handleServerEvent(ev)
	}
	if err := ai.Err(); err != nil {
		s.log.Error(fmt.Sprintf("Realtime transport for guild %s failed", s.guildID), err)
		s.Stop("realtime transport error")
	}
}

func (s *Session) handleServerEvent(ev realtime.ServerEvent) {
	s.deps.Metrics.RealtimeEvent(ev.Kind.String())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return
	}

	switch ev.Kind {
	case realtime.EventSessionCreated:
		s.logf("Realtime session created")
	case realtime.EventSessionUpdated:
		s.logf("Realtime session updated")
	case realtime.EventSpeechStarted:
		s.logf("Speech detected")
	case realtime.EventSpeechStopped:
		s.logf("Speech ended")
	case realtime.EventResponseCreated:
		s.logf("AI generating response")
	case realtime.EventAudioDelta:
		s.appendDownlinkLocked(ev.Delta)
	case realtime.EventFunctionCallStarted:
		s.startCallLocked(ev.Item)
	case realtime.EventFunctionCallArgumentsDelta:
		s.appendCallArgumentsLocked(ev.CallID, ev.Delta)
	case realtime.EventFunctionCallArgumentsDone:
		s.finishCallLocked(ev.CallID, ev.Name, ev.Arguments)
	case realtime.EventResponseDone:
		s.flushDownlinkLocked()
	case realtime.EventError:
		if ev.Error != nil {
			s.log.Error(fmt.Sprintf("Realtime error event in guild %s", s.guildID), ev.Error)
		} else {
			s.log.Error(fmt.Sprintf("Realtime error event in guild %s", s.guildID), fmt.Errorf("%s", ev.Raw))
		}
	case realtime.EventOther:
	}
}

// Stop tears the session down. It is safe from any state and from any
// goroutine; only the first call does anything and reports true.
func (s *Session) Stop(reason string) bool {
	s.mu.Lock()
	if !s.setStateLocked(StateEnding) {
		s.mu.Unlock()
		return false
	}
	s.logf("Ending realtime call %s: %s", s.id, reason)
	s.cancel()

	if s.muteTimer != nil {
		s.muteTimer.Stop()
		s.muteTimer = nil
	}
	if s.endTimer != nil {
		s.endTimer.Stop()
		s.endTimer = nil
	}
	s.downlink = nil
	s.pendingCalls = make(map[string]*callAccumulator)

	conn, player, ai := s.conn, s.player, s.ai
	s.conn, s.player, s.ai = nil, nil, nil
	s.mu.Unlock()

	if player != nil {
		player.OnStateChange(nil)
		player.Stop()
	}
	if ai != nil {
		if err := ai.Close(); err != nil {
			s.log.Error(fmt.Sprintf("Closing realtime transport for guild %s", s.guildID), err)
		}
	}
	if conn != nil {
		conn.OnSpeakingStart(nil)
		if err := conn.Destroy(); err != nil {
			s.log.Error(fmt.Sprintf("Releasing voice connection for guild %s", s.guildID), err)
		}
	}

	s.mu.Lock()
	if s.starting {
		s.closePending = true
		s.mu.Unlock()
		return true
	}
	s.mu.Unlock()
	s.close()
	return true
}

// finishStart runs once start has released or handed over everything it
// connected, and completes a Stop that arrived in the meantime.
func (s *Session) finishStart() {
	s.mu.Lock()
	s.starting = false
	pending := s.closePending
	s.closePending = false
	s.mu.Unlock()
	if pending {
		s.close()
	}
}

func (s *Session) close() {
	if s.onClosed != nil {
		s.onClosed(s)
	} else {
		s.markClosed()
	}
}

// markClosed is the final transition. The registry calls it while removing
// the session so that no new session for the guild can observe it half closed.
func (s *Session) markClosed() {
	s.mu.Lock()
	closed := s.setStateLocked(StateClosed)
	s.mu.Unlock()
	if closed {
		close(s.done)
		s.logf("Realtime call %s closed", s.id)
	}
}
