package audio

import "layeh.com/gopus"

const (
	FrameSize  = 960 // 20ms at 48kHz
	Channels   = 2
	SampleRate = VoiceRate
	FrameBytes = FrameSize * Channels * 2
)

// FrameEncoder turns one frame of interleaved samples into an opus packet.
type FrameEncoder interface {
	Encode(pcm []int16, frameSize, maxBytes int) ([]byte, error)
}

// FrameDecoder turns one opus packet into interleaved samples.
type FrameDecoder interface {
	Decode(data []byte, frameSize int, fec bool) ([]int16, error)
}

// NewOpusEncoder returns a 48kHz stereo encoder tuned for speech.
func NewOpusEncoder() (FrameEncoder, error) {
	return gopus.NewEncoder(SampleRate, Channels, gopus.Voip)
}

// NewOpusDecoder returns a 48kHz stereo decoder.
func NewOpusDecoder() (FrameDecoder, error) {
	return gopus.NewDecoder(SampleRate, Channels)
}
