package audio

import "encoding/binary"

const (
	// VoiceRate is the rate of the decoded voice channel stream (stereo).
	VoiceRate = 48000
	// AIOutputRate is the rate of AI audio deltas (mono).
	AIOutputRate = 24000
	// UplinkRate is the rate sent upstream after DownsampleStereoToMono.
	UplinkRate = VoiceRate / 3

	sampleBytes = 2
	stereoBytes = sampleBytes * 2
)

// UpsampleMonoToStereo converts 16-bit little-endian mono PCM into stereo PCM at
// twice the input rate. Every input sample is written to both channels of two
// consecutive output frames (zero-order hold). It is cheap and low fidelity.
// A trailing odd byte is ignored.
func UpsampleMonoToStereo(pcm []byte) []byte {
	samples := len(pcm) / sampleBytes
	if samples == 0 {
		return []byte{}
	}

	out := make([]byte, samples*2*stereoBytes)
	for i := 0; i < samples; i++ {
		s := binary.LittleEndian.Uint16(pcm[i*sampleBytes:])
		o := i * 2 * stereoBytes
		binary.LittleEndian.PutUint16(out[o:], s)
		binary.LittleEndian.PutUint16(out[o+2:], s)
		binary.LittleEndian.PutUint16(out[o+4:], s)
		binary.LittleEndian.PutUint16(out[o+6:], s)
	}
	return out
}

// DownsampleStereoToMono keeps one out of every three stereo frames and writes
// the mean of its left and right samples, rounded down. There is no
// anti-alias filter.
// Trailing partial frames are dropped.
func DownsampleStereoToMono(pcm []byte) []byte {
	frames := len(pcm) / stereoBytes
	outSamples := frames / 3
	if outSamples == 0 {
		return []byte{}
	}

	out := make([]byte, outSamples*sampleBytes)
	for i := 0; i < outSamples; i++ {
		in := i * 3 * stereoBytes
		left := int32(int16(binary.LittleEndian.Uint16(pcm[in:])))
		right := int32(int16(binary.LittleEndian.Uint16(pcm[in+2:])))
		mono := int16((left + right) >> 1)
		binary.LittleEndian.PutUint16(out[i*sampleBytes:], uint16(mono))
	}
	return out
}

// Int16ToBytes encodes interleaved samples as little-endian PCM.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*sampleBytes)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*sampleBytes:], uint16(s))
	}
	return out
}

// BytesToInt16 decodes little-endian PCM. A trailing odd byte is ignored.
func BytesToInt16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/sampleBytes)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*sampleBytes:]))
	}
	return out
}
