package bridge

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/EasterCompany/dex-voice-bridge/audio"
	"github.com/EasterCompany/dex-voice-bridge/interfaces"
)

func (s *Session) appendDownlinkLocked(delta string) {
	pcm, err := base64.StdEncoding.DecodeString(delta)
	if err != nil {
		s.log.Error(fmt.Sprintf("Decoding AI audio delta in guild %s", s.guildID), err)
		return
	}
	if len(pcm) == 0 {
		return
	}
	s.downlink = append(s.downlink, audio.UpsampleMonoToStereo(pcm))
}

// flushDownlinkLocked plays the whole turn as one resource, or drops it while muted.
func (s *Session) flushDownlinkLocked() {
	if len(s.downlink) == 0 {
		return
	}
	chunks := s.downlink
	s.downlink = nil

	if s.isMuted {
		s.logf("Muted, discarding %d audio chunks", len(chunks))
		s.deps.Metrics.Turn("muted")
		return
	}
	if s.player == nil {
		return
	}

	payload := bytes.Join(chunks, nil)
	if err := s.player.Play(payload); err != nil {
		s.log.Error(fmt.Sprintf("Playing AI response in guild %s", s.guildID), err)
		s.deps.Metrics.Turn("failed")
		return
	}
	s.deps.Metrics.Turn("played")
}

// onPlaybackState is the only writer of isAiSpeaking.
func (s *Session) onPlaybackState(from, to interfaces.PlaybackStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return
	}
	switch {
	case to == interfaces.PlaybackPlaying:
		if !s.isAiSpeaking {
			s.logf("AI started speaking, user input blocked")
		}
		s.isAiSpeaking = true
	case to == interfaces.PlaybackIdle && from == interfaces.PlaybackPlaying:
		s.isAiSpeaking = false
		s.logf("AI finished speaking, user input enabled")
	}
}
