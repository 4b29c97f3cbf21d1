package audio

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/EasterCompany/dex-voice-bridge/interfaces"
)

// trailingSilence is how many silent frames follow a clip before the
// speaking flag is dropped (100ms).
const trailingSilence = 5

var ErrPlayerStopped = errors.New("player stopped")

// OpusSink is the sending half of a voice connection.
type OpusSink interface {
	Speaking(speaking bool) error
	SendOpus(frame []byte) error
}

// Player paces 48kHz stereo PCM onto a voice connection one 20ms frame at a
// time. A new Play replaces whatever is still queued.
type Player struct {
	sink     OpusSink
	encoder  FrameEncoder
	interval time.Duration

	mu      sync.Mutex
	frames  [][]int16
	status  interfaces.PlaybackStatus
	onState func(from, to interfaces.PlaybackStatus)
	running bool
	stopped bool

	stopChan chan struct{}
	done     chan struct{}
}

func NewPlayer(sink OpusSink, encoder FrameEncoder) *Player {
	return &Player{
		sink:     sink,
		encoder:  encoder,
		interval: 20 * time.Millisecond,
		status:   interfaces.PlaybackIdle,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the send loop.
func (p *Player) Start() {
	p.mu.Lock()
	if p.running || p.stopped {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	go p.runLoop()
}

// Play queues pcm, dropping anything that has not been sent yet.
func (p *Player) Play(pcm []byte) error {
	frames := splitFrames(pcm)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrPlayerStopped
	}
	p.frames = frames
	return nil
}

// Stop ends the send loop and waits for it to release the speaking flag.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.frames = nil
	running := p.running
	close(p.stopChan)
	p.mu.Unlock()

	if running {
		<-p.done
	}
}

// OnStateChange registers the playback observer; nil detaches it. The
// observer runs on the player goroutine.
func (p *Player) OnStateChange(fn func(from, to interfaces.PlaybackStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = fn
}

func (p *Player) Status() interfaces.PlaybackStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Player) setStatus(to interfaces.PlaybackStatus) {
	p.mu.Lock()
	from := p.status
	p.status = to
	fn := p.onState
	p.mu.Unlock()

	if fn != nil && from != to {
		fn(from, to)
	}
}

func (p *Player) next() ([]int16, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.frames) == 0 {
		return nil, false
	}
	frame := p.frames[0]
	p.frames = p.frames[1:]
	return frame, true
}

func (p *Player) runLoop() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var isSpeaking bool
	var silenceFrames int
	zeros := make([]int16, FrameSize*Channels)

	defer func() {
		if isSpeaking {
			_ = p.sink.Speaking(false)
		}
	}()

	for {
		select {
		case <-p.stopChan:
			return
		case <-ticker.C:
			frame, ok := p.next()
			if ok {
				if !isSpeaking {
					if err := p.sink.Speaking(true); err != nil {
						log.Printf("Player Speaking(true) error: %v", err)
					}
					isSpeaking = true
					p.setStatus(interfaces.PlaybackPlaying)
				}
				silenceFrames = 0
				p.send(frame)
				continue
			}

			if !isSpeaking {
				continue
			}
			silenceFrames++
			p.send(zeros)
			if silenceFrames >= trailingSilence {
				if err := p.sink.Speaking(false); err != nil {
					log.Printf("Player Speaking(false) error: %v", err)
				}
				isSpeaking = false
				p.setStatus(interfaces.PlaybackIdle)
			}
		}
	}
}

func (p *Player) send(frame []int16) {
	opus, err := p.encoder.Encode(frame, FrameSize, FrameBytes)
	if err != nil {
		log.Printf("Player encode error: %v", err)
		return
	}
	if err := p.sink.SendOpus(opus); err != nil {
		log.Printf("Player send error: %v", err)
	}
}

// splitFrames cuts pcm into whole frames, padding the last one with silence.
func splitFrames(pcm []byte) [][]int16 {
	samples := BytesToInt16(pcm)
	if len(samples) == 0 {
		return nil
	}
	per := FrameSize * Channels
	frames := make([][]int16, 0, (len(samples)+per-1)/per)
	for start := 0; start < len(samples); start += per {
		frame := make([]int16, per)
		copy(frame, samples[start:min(start+per, len(samples))])
		frames = append(frames, frame)
	}
	return frames
}
