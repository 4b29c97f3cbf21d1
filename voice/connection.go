package voice

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/EasterCompany/dex-voice-bridge/audio"
	"github.com/EasterCompany/dex-voice-bridge/interfaces"
	logger "github.com/EasterCompany/dex-voice-bridge/log"
	"github.com/bwmarrin/discordgo"
)

// speakingGap is the packet gap after which the next packet counts as a new
// start of speech.
const speakingGap = 250 * time.Millisecond

var (
	ErrConnectionClosed  = errors.New("voice connection closed")
	ErrAlreadySubscribed = errors.New("speaker already subscribed")
)

type subscription struct {
	userID    string
	events    chan interfaces.SpeakerEvent
	decoder   audio.FrameDecoder
	silence   time.Duration
	last      time.Time
	recording *audio.Recording
}

// Connection is a joined voice channel. It maps SSRCs to users, reports the
// start of speech and decodes the audio of subscribed speakers.
type Connection struct {
	guildID    string
	selfID     string
	link       link
	player     *audio.Player
	newDecoder func() (audio.FrameDecoder, error)
	recordings audio.RecordingStore
	log        logger.Logger
	now        func() time.Time
	sweepEvery time.Duration

	mu         sync.Mutex
	ssrcUsers  map[uint32]string
	lastPacket map[uint32]time.Time
	onSpeaking func(userID string)
	subs       map[string]*subscription
	closed     bool

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

type connectionOptions struct {
	guildID    string
	selfID     string
	encoder    audio.FrameEncoder
	newDecoder func() (audio.FrameDecoder, error)
	recordings audio.RecordingStore
	log        logger.Logger
	now        func() time.Time
	sweepEvery time.Duration
}

func newConnection(l link, opts connectionOptions) *Connection {
	if opts.now == nil {
		opts.now = time.Now
	}
	if opts.sweepEvery <= 0 {
		opts.sweepEvery = 100 * time.Millisecond
	}
	c := &Connection{
		guildID:    opts.guildID,
		selfID:     opts.selfID,
		link:       l,
		player:     audio.NewPlayer(l, opts.encoder),
		newDecoder: opts.newDecoder,
		recordings: opts.recordings,
		log:        opts.log,
		now:        opts.now,
		sweepEvery: opts.sweepEvery,
		ssrcUsers:  make(map[uint32]string),
		lastPacket: make(map[uint32]time.Time),
		subs:       make(map[string]*subscription),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	l.OnSpeakingUpdate(c.mapSSRC)
	c.player.Start()
	go c.receiveLoop()
	return c
}

func (c *Connection) Player() interfaces.Player { return c.player }

func (c *Connection) OnSpeakingStart(fn func(userID string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSpeaking = fn
}

// Subscribe streams the decoded audio of one speaker until silence has lasted
// for the given duration. The stream then yields End and is closed.
func (c *Connection) Subscribe(userID string, silence time.Duration) (<-chan interfaces.SpeakerEvent, error) {
	decoder, err := c.newDecoder()
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrConnectionClosed
	}
	if _, ok := c.subs[userID]; ok {
		return nil, ErrAlreadySubscribed
	}

	now := c.now()
	sub := &subscription{
		userID:  userID,
		events:  make(chan interfaces.SpeakerEvent, 256),
		decoder: decoder,
		silence: silence,
		last:    now,
	}
	if c.recordings != nil {
		rec, err := audio.NewRecording(audio.RecordingName(c.guildID, userID, now), c.recordings)
		if err != nil {
			c.log.Error(fmt.Sprintf("Starting capture for %s in guild %s", userID, c.guildID), err)
		} else {
			sub.recording = rec
		}
	}
	c.subs[userID] = sub
	return sub.events, nil
}

// Destroy leaves the channel. Open subscriptions end.
func (c *Connection) Destroy() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		<-c.done
		c.player.Stop()

		c.mu.Lock()
		c.closed = true
		c.onSpeaking = nil
		subs := c.subs
		c.subs = make(map[string]*subscription)
		c.mu.Unlock()

		for _, sub := range subs {
			c.finish(sub)
		}
		err = c.link.Disconnect()
	})
	return err
}

func (c *Connection) mapSSRC(userID string, ssrc uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ssrcUsers[ssrc] = userID
}

func (c *Connection) receiveLoop() {
	defer close(c.done)

	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	packets := c.link.Packets()
	for {
		select {
		case <-c.stop:
			return
		case p, ok := <-packets:
			if !ok {
				return
			}
			c.handlePacket(p)
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Connection) handlePacket(p *discordgo.Packet) {
	now := c.now()

	c.mu.Lock()
	userID, known := c.ssrcUsers[p.SSRC]
	if !known || userID == c.selfID {
		// audio before the speaking update that maps it
		c.mu.Unlock()
		return
	}
	last, seen := c.lastPacket[p.SSRC]
	c.lastPacket[p.SSRC] = now
	started := !seen || now.Sub(last) > speakingGap
	onSpeaking := c.onSpeaking
	c.mu.Unlock()

	if started && onSpeaking != nil {
		onSpeaking(userID)
	}

	c.mu.Lock()
	sub, ok := c.subs[userID]
	if ok {
		sub.last = now
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	if sub.recording != nil {
		if err := sub.recording.WritePacket(p); err != nil {
			c.log.Error(fmt.Sprintf("Capturing packet from %s in guild %s", userID, c.guildID), err)
		}
	}

	pcm, err := sub.decoder.Decode(p.Opus, audio.FrameSize, false)
	ev := interfaces.SpeakerEvent{PCM: audio.Int16ToBytes(pcm)}
	if err != nil {
		ev = interfaces.SpeakerEvent{Err: fmt.Errorf("decode opus from %s: %w", userID, err)}
	}
	select {
	case sub.events <- ev:
	default:
		c.log.Error(fmt.Sprintf("Speaker stream for %s in guild %s is full", userID, c.guildID), errors.New("audio chunk dropped"))
	}
}

// sweep ends subscriptions whose speaker has been silent long enough.
func (c *Connection) sweep() {
	now := c.now()

	c.mu.Lock()
	var ended []*subscription
	for userID, sub := range c.subs {
		if now.Sub(sub.last) >= sub.silence {
			ended = append(ended, sub)
			delete(c.subs, userID)
		}
	}
	c.mu.Unlock()

	for _, sub := range ended {
		c.finish(sub)
	}
}

func (c *Connection) finish(sub *subscription) {
	select {
	case sub.events <- interfaces.SpeakerEvent{End: true}:
	default:
	}
	close(sub.events)

	if sub.recording != nil {
		if err := sub.recording.Finish(); err != nil {
			c.log.Error(fmt.Sprintf("Saving capture %s", sub.recording.Name()), err)
		}
	}
}
