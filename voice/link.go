package voice

import (
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
)

var errSendTimeout = errors.New("opus send timed out")

// link is the part of a discordgo voice connection the bridge uses.
type link interface {
	Packets() <-chan *discordgo.Packet
	Speaking(speaking bool) error
	SendOpus(frame []byte) error
	OnSpeakingUpdate(fn func(userID string, ssrc uint32))
	Disconnect() error
}

type discordLink struct {
	vc *discordgo.VoiceConnection
}

func (l discordLink) Packets() <-chan *discordgo.Packet { return l.vc.OpusRecv }

func (l discordLink) Speaking(speaking bool) error { return l.vc.Speaking(speaking) }

// SendOpus drops the frame if the connection does not take it within a second.
func (l discordLink) SendOpus(frame []byte) error {
	if l.vc.OpusSend == nil {
		return errors.New("voice connection has no send channel")
	}
	select {
	case l.vc.OpusSend <- frame:
		return nil
	case <-time.After(time.Second):
		return errSendTimeout
	}
}

// OnSpeakingUpdate maps SSRCs regardless of the speaking flag; discord sends
// the update on join as well as on speech.
func (l discordLink) OnSpeakingUpdate(fn func(userID string, ssrc uint32)) {
	l.vc.AddHandler(func(vc *discordgo.VoiceConnection, p *discordgo.VoiceSpeakingUpdate) {
		fn(p.UserID, uint32(p.SSRC))
	})
}

func (l discordLink) Disconnect() error { return l.vc.Disconnect() }
