package audio

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3/pkg/media/oggwriter"
)

var rtpPacketPool = sync.Pool{
	New: func() any {
		return &rtp.Packet{
			Header: rtp.Header{
				Version:     2,
				PayloadType: 0x78,
			},
		}
	},
}

// RecordingStore keeps finished utterance recordings.
type RecordingStore interface {
	SaveRecording(name string, data []byte) error
}

// RecordingStores saves to every store and joins the failures.
type RecordingStores []RecordingStore

func (s RecordingStores) SaveRecording(name string, data []byte) error {
	var errs []error
	for _, store := range s {
		if err := store.SaveRecording(name, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DirStore writes recordings as files under Dir.
type DirStore struct {
	Dir string
}

func (d DirStore) SaveRecording(name string, data []byte) error {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return fmt.Errorf("create capture dir: %w", err)
	}
	path := filepath.Join(d.Dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	return os.Rename(tmp, path)
}

// RecordingName is <guild>_<user>_<unixnano>.ogg.
func RecordingName(guildID, userID string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d.ogg", guildID, userID, at.UnixNano())
}

// Recording captures the raw opus packets of one utterance into an ogg container.
type Recording struct {
	name    string
	store   RecordingStore
	buffer  *bytes.Buffer
	ogg     *oggwriter.OggWriter
	packets int
}

func NewRecording(name string, store RecordingStore) (*Recording, error) {
	buffer := new(bytes.Buffer)
	ogg, err := oggwriter.NewWith(buffer, SampleRate, Channels)
	if err != nil {
		return nil, fmt.Errorf("create ogg writer: %w", err)
	}
	return &Recording{name: name, store: store, buffer: buffer, ogg: ogg}, nil
}

func (r *Recording) Name() string { return r.name }

// WritePacket appends one received voice packet.
func (r *Recording) WritePacket(p *discordgo.Packet) error {
	if len(p.Opus) == 0 {
		return nil
	}
	rtpPacket := rtpPacketPool.Get().(*rtp.Packet)
	defer rtpPacketPool.Put(rtpPacket)
	rtpPacket.SequenceNumber = p.Sequence
	rtpPacket.Timestamp = p.Timestamp
	rtpPacket.SSRC = p.SSRC
	rtpPacket.Payload = p.Opus
	if err := r.ogg.WriteRTP(rtpPacket); err != nil {
		return err
	}
	r.packets++
	return nil
}

// Finish closes the container and hands it to the store. Recordings without
// packets are discarded.
func (r *Recording) Finish() error {
	if err := r.ogg.Close(); err != nil {
		return fmt.Errorf("close ogg writer: %w", err)
	}
	if r.packets == 0 || r.store == nil {
		return nil
	}
	return r.store.SaveRecording(r.name, r.buffer.Bytes())
}
