// Package voice joins Discord voice channels and adapts them to the bridge.
package voice

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/EasterCompany/dex-voice-bridge/audio"
	"github.com/EasterCompany/dex-voice-bridge/interfaces"
	logger "github.com/EasterCompany/dex-voice-bridge/log"
	"github.com/bwmarrin/discordgo"
)

const (
	defaultJoinRetries  = 3
	defaultReadyTimeout = 10 * time.Second
)

// JoinerOptions tune how channels are joined. Zero values use defaults.
type JoinerOptions struct {
	Retries      int
	ReadyTimeout time.Duration
	// Recordings receives an ogg capture of every utterance when set.
	Recordings audio.RecordingStore
}

// Joiner joins voice channels through a discordgo session.
type Joiner struct {
	session *discordgo.Session
	log     logger.Logger
	opts    JoinerOptions
}

func NewJoiner(s *discordgo.Session, log logger.Logger, opts JoinerOptions) *Joiner {
	if opts.Retries <= 0 {
		opts.Retries = defaultJoinRetries
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = defaultReadyTimeout
	}
	return &Joiner{session: s, log: log, opts: opts}
}

// Join connects unmuted and undeafened, retrying with exponential backoff.
func (j *Joiner) Join(ctx context.Context, guildID, channelID string) (interfaces.VoiceConnection, error) {
	var vc *discordgo.VoiceConnection
	var err error

	for i := 0; i < j.opts.Retries; i++ {
		vc, err = j.session.ChannelVoiceJoin(guildID, channelID, false, false)
		if err == nil {
			break
		}
		j.log.Error(fmt.Sprintf("Attempt %d to join voice channel %s failed", i+1, channelID), err)
		if i == j.opts.Retries-1 {
			break
		}
		retry := time.Duration(math.Pow(2, float64(i))) * time.Second
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retry):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("join voice channel after %d attempts: %w", j.opts.Retries, err)
	}

	if err := waitReady(ctx, vc, j.opts.ReadyTimeout); err != nil {
		_ = vc.Disconnect()
		return nil, err
	}

	encoder, err := audio.NewOpusEncoder()
	if err != nil {
		_ = vc.Disconnect()
		return nil, fmt.Errorf("create opus encoder: %w", err)
	}

	var selfID string
	if j.session.State != nil && j.session.State.User != nil {
		selfID = j.session.State.User.ID
	}
	return newConnection(discordLink{vc: vc}, connectionOptions{
		guildID:    guildID,
		selfID:     selfID,
		encoder:    encoder,
		newDecoder: audio.NewOpusDecoder,
		recordings: j.opts.Recordings,
		log:        j.log,
	}), nil
}

func waitReady(ctx context.Context, vc *discordgo.VoiceConnection, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		vc.RLock()
		ready := vc.Ready
		vc.RUnlock()
		if ready {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("voice connection not ready after %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}
