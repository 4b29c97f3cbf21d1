// Package interfaces defines the collaborator boundaries the bridge depends on.
package interfaces

import (
	"context"
	"time"
)

// PlaybackStatus is the state of a playback sink.
type PlaybackStatus int

const (
	PlaybackIdle PlaybackStatus = iota
	PlaybackPlaying
)

func (s PlaybackStatus) String() string {
	switch s {
	case PlaybackPlaying:
		return "playing"
	default:
		return "idle"
	}
}

// Player plays 48kHz stereo PCM into a voice channel. Play replaces whatever
// is currently playing. State changes are reported from the player's own
// goroutine, never from inside Play or Stop.
type Player interface {
	Play(pcm []byte) error
	Stop()
	OnStateChange(fn func(from, to PlaybackStatus))
}

// SpeakerEvent is one item of a speaker subscription. Exactly one of PCM, Err
// or End is set. The channel is closed right after the End event.
type SpeakerEvent struct {
	PCM []byte
	Err error
	End bool
}

// VoiceConnection is a joined voice channel.
type VoiceConnection interface {
	// OnSpeakingStart registers the callback for participants that start
	// speaking. Passing nil detaches it.
	OnSpeakingStart(fn func(userID string))
	// Subscribe streams the decoded 48kHz stereo PCM of one participant until
	// silence has lasted for the given window.
	Subscribe(userID string, silence time.Duration) (<-chan SpeakerEvent, error)
	Player() Player
	Destroy() error
}

// VoiceJoiner joins voice channels.
type VoiceJoiner interface {
	Join(ctx context.Context, guildID, channelID string) (VoiceConnection, error)
}
