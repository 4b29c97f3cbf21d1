package audio

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/EasterCompany/dex-voice-bridge/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu       sync.Mutex
	speaking []bool
	frames   [][]byte
}

func (s *fakeSink) Speaking(b bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = append(s.speaking, b)
	return nil
}

func (s *fakeSink) SendOpus(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

func (s *fakeSink) snapshot() ([]bool, [][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.speaking...), append([][]byte(nil), s.frames...)
}

// markEncoder encodes a frame as its first sample so tests can tell frames apart.
type markEncoder struct{ fail bool }

func (e markEncoder) Encode(pcm []int16, frameSize, _ int) ([]byte, error) {
	if e.fail {
		return nil, errors.New("encoder broken")
	}
	if len(pcm) != frameSize*Channels {
		return nil, errors.New("short frame")
	}
	return []byte{byte(pcm[0])}, nil
}

type stateRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *stateRecorder) record(from, to interfaces.PlaybackStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, from.String()+"->"+to.String())
}

func (r *stateRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func constantFrames(values ...int16) []byte {
	var samples []int16
	for _, v := range values {
		for i := 0; i < FrameSize*Channels; i++ {
			samples = append(samples, v)
		}
	}
	return Int16ToBytes(samples)
}

func newTestPlayer() (*Player, *fakeSink, *stateRecorder) {
	sink := &fakeSink{}
	p := NewPlayer(sink, markEncoder{})
	p.interval = time.Millisecond
	rec := &stateRecorder{}
	p.OnStateChange(rec.record)
	return p, sink, rec
}

func TestPlayer_PlaysFramesThenGoesIdle(t *testing.T) {
	p, sink, rec := newTestPlayer()
	p.Start()
	defer p.Stop()

	require.NoError(t, p.Play(constantFrames(1, 2, 3)))

	require.Eventually(t, func() bool {
		return len(rec.all()) == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, []string{"idle->playing", "playing->idle"}, rec.all())

	speaking, frames := sink.snapshot()
	assert.Equal(t, []bool{true, false}, speaking)
	require.Len(t, frames, 3+trailingSilence)
	assert.Equal(t, []byte{1}, frames[0])
	assert.Equal(t, []byte{2}, frames[1])
	assert.Equal(t, []byte{3}, frames[2])
	assert.Equal(t, []byte{0}, frames[3])
	assert.Equal(t, interfaces.PlaybackIdle, p.Status())
}

func TestPlayer_PadsPartialFrame(t *testing.T) {
	frames := splitFrames(make([]byte, FrameBytes+10))
	require.Len(t, frames, 2)
	assert.Len(t, frames[1], FrameSize*Channels)
	assert.Nil(t, splitFrames(nil))
}

func TestPlayer_PlayReplacesQueue(t *testing.T) {
	sink := &fakeSink{}
	p := NewPlayer(sink, markEncoder{})

	require.NoError(t, p.Play(constantFrames(1, 1, 1)))
	require.NoError(t, p.Play(constantFrames(7)))

	frame, ok := p.next()
	require.True(t, ok)
	assert.Equal(t, int16(7), frame[0])
	_, ok = p.next()
	assert.False(t, ok)
}

func TestPlayer_StopReleasesSpeaking(t *testing.T) {
	p, sink, rec := newTestPlayer()
	p.Start()

	require.NoError(t, p.Play(constantFrames(make([]int16, 500)...)))
	require.Eventually(t, func() bool {
		return len(rec.all()) == 1
	}, time.Second, time.Millisecond)

	p.Stop()
	speaking, _ := sink.snapshot()
	assert.Equal(t, []bool{true, false}, speaking)

	assert.ErrorIs(t, p.Play(constantFrames(1)), ErrPlayerStopped)
	p.Stop()
}

func TestPlayer_DetachedObserver(t *testing.T) {
	p, _, rec := newTestPlayer()
	p.OnStateChange(nil)
	p.Start()
	defer p.Stop()

	require.NoError(t, p.Play(constantFrames(1)))
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, rec.all())
}

func TestPlayer_EncodeErrorSkipsFrame(t *testing.T) {
	sink := &fakeSink{}
	p := NewPlayer(sink, markEncoder{fail: true})
	p.send(make([]int16, FrameSize*Channels))

	_, frames := sink.snapshot()
	assert.Empty(t, frames)
}
