package bridge

import (
	"bytes"
	"fmt"
	"time"

	"github.com/EasterCompany/dex-voice-bridge/audio"
	"github.com/EasterCompany/dex-voice-bridge/interfaces"
	"github.com/EasterCompany/dex-voice-bridge/realtime"
)

// onSpeakingStart is the voice connection callback for a participant that
// started talking. Speech is ignored while the AI is talking.
func (s *Session) onSpeakingStart(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive || s.conn == nil {
		return
	}
	if s.isAiSpeaking {
		s.logf("Ignoring speech from %s while the AI is speaking", userID)
		s.deps.Metrics.SpeechDropped()
		return
	}
	if s.capturing[userID] {
		return
	}

	stream, err := s.conn.Subscribe(userID, s.cfg.SilenceTimeout)
	if err != nil {
		s.log.Error(fmt.Sprintf("Subscribing to speaker %s in guild %s", userID, s.guildID), err)
		return
	}
	s.capturing[userID] = true
	go s.captureUtterance(userID, stream)
}

// captureUtterance converts one speaker's audio until the stream ends.
// The chunks are local to this goroutine until the flush.
func (s *Session) captureUtterance(userID string, stream <-chan interfaces.SpeakerEvent) {
	var chunks [][]byte
	for ev := range stream {
		if ev.Err != nil {
			s.log.Error(fmt.Sprintf("Dropping audio chunk from %s in guild %s", userID, s.guildID), ev.Err)
			continue
		}
		if ev.End {
			break
		}
		if mono := audio.DownsampleStereoToMono(ev.PCM); len(mono) > 0 {
			chunks = append(chunks, mono)
		}
	}
	s.flushUtterance(userID, chunks)
}

// flushUtterance sends append, commit and response.create back to back under
// the session lock so two utterances never interleave.
func (s *Session) flushUtterance(userID string, chunks [][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.capturing, userID)

	if s.state != StateActive || s.ai == nil {
		return
	}
	if len(chunks) == 0 {
		s.deps.Metrics.Utterance("empty", 0)
		return
	}

	pcm := bytes.Join(chunks, nil)
	for _, ev := range []realtime.ClientEvent{
		realtime.AppendAudio(pcm),
		realtime.CommitAudio(),
		realtime.CreateResponse(),
	} {
		if err := s.ai.Send(ev); err != nil {
			s.log.Error(fmt.Sprintf("Sending utterance from %s in guild %s", userID, s.guildID), err)
			s.deps.Metrics.Utterance("failed", 0)
			return
		}
	}

	length := time.Duration(len(pcm)/2) * time.Second / audio.UplinkRate
	s.deps.Metrics.Utterance("sent", length)
	s.logf("Sent %s of audio from %s", length.Round(time.Millisecond), userID)
}
