package bridge

import (
	"errors"
	"os"
	"time"

	"github.com/EasterCompany/dex-voice-bridge/interfaces"
	logger "github.com/EasterCompany/dex-voice-bridge/log"
	"github.com/EasterCompany/dex-voice-bridge/metrics"
	"github.com/EasterCompany/dex-voice-bridge/notes"
	"github.com/EasterCompany/dex-voice-bridge/realtime"
)

var (
	ErrMissingCredentials = errors.New("realtime api key is not configured")
	ErrSessionExists      = errors.New("a session is already running for this guild")
	ErrSessionClosed      = errors.New("session was stopped")
	ErrUnknownVoice       = errors.New("unknown voice")
	ErrInvalidOptions     = errors.New("guild and channel are required")
)

const (
	DefaultSilenceTimeout = 1500 * time.Millisecond
	DefaultEndCallGrace   = 2000 * time.Millisecond
	DefaultMuteDuration   = 5 * time.Second
	MaxMuteDuration       = 30 * time.Second

	DefaultInstructions = "You are a helpful voice assistant in a Discord server. Be conversational and friendly. Keep responses concise but natural."
)

// Config holds the behaviour shared by every session.
type Config struct {
	APIKey              string
	Model               string
	DefaultVoice        string
	DefaultInstructions string
	Speed               float64
	TurnDetection       realtime.TurnDetection

	SilenceTimeout time.Duration
	EndCallGrace   time.Duration
	MuteDefault    time.Duration
	MuteMax        time.Duration
}

// DefaultTurnDetection is the server VAD setup. Responses are requested
// explicitly after each utterance, so the server never creates them itself.
func DefaultTurnDetection() realtime.TurnDetection {
	return realtime.TurnDetection{
		Type:              "server_vad",
		Threshold:         0.8,
		PrefixPaddingMs:   300,
		SilenceDurationMs: 1000,
		CreateResponse:    false,
	}
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = realtime.DefaultModel
	}
	if c.DefaultVoice == "" {
		c.DefaultVoice = realtime.DefaultVoice
	}
	if c.DefaultInstructions == "" {
		c.DefaultInstructions = DefaultInstructions
	}
	if c.Speed <= 0 {
		c.Speed = 1.0
	}
	if c.TurnDetection.Type == "" {
		c.TurnDetection = DefaultTurnDetection()
	}
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = DefaultSilenceTimeout
	}
	if c.EndCallGrace <= 0 {
		c.EndCallGrace = DefaultEndCallGrace
	}
	if c.MuteDefault <= 0 {
		c.MuteDefault = DefaultMuteDuration
	}
	if c.MuteMax <= 0 {
		c.MuteMax = MaxMuteDuration
	}
	return c
}

// StartOptions are chosen per call.
type StartOptions struct {
	ChannelID    string
	Voice        string
	Instructions string
}

// Deps are the collaborators a session uses. Voice and AI are required.
type Deps struct {
	Voice      interfaces.VoiceJoiner
	AI         interfaces.AITransport
	Notes      notes.Store
	NoteLoader notes.Loader
	Logger     logger.Logger
	Metrics    *metrics.Metrics
	Scheduler  Scheduler
	Now        func() time.Time

	// OnStateChange observes every transition. It runs under the session lock
	// and must not block or call back into the registry.
	OnStateChange func(guildID string, from, to State)
}

func (d Deps) withDefaults() Deps {
	if d.Scheduler == nil {
		d.Scheduler = clockScheduler{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Logger == nil {
		d.Logger = logger.New(os.Stdout)
	}
	return d
}
