package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsampleMonoToStereo_Length(t *testing.T) {
	for _, samples := range []int{1, 2, 3, 240, 4800} {
		in := make([]byte, samples*2)
		assert.Len(t, UpsampleMonoToStereo(in), samples*4*2)
	}
}

func TestUpsampleMonoToStereo_DuplicatesSamples(t *testing.T) {
	in := Int16ToBytes([]int16{100, -200})
	out := BytesToInt16(UpsampleMonoToStereo(in))
	assert.Equal(t, []int16{100, 100, 100, 100, -200, -200, -200, -200}, out)
}

func TestUpsampleMonoToStereo_DeltaSize(t *testing.T) {
	assert.Len(t, UpsampleMonoToStereo(make([]byte, 480)), 1920)
}

func TestDownsampleStereoToMono_Length(t *testing.T) {
	for _, frames := range []int{0, 1, 2, 3, 4, 960, 961} {
		in := make([]byte, frames*4)
		assert.Len(t, DownsampleStereoToMono(in), (frames/3)*2)
	}
}

func TestDownsampleStereoToMono_AveragesKeptFrames(t *testing.T) {
	in := Int16ToBytes([]int16{
		100, 300, // kept
		1, 1,
		2, 2,
		-400, 0, // kept
		5, 5,
		6, 6,
	})
	assert.Equal(t, []int16{200, -200}, BytesToInt16(DownsampleStereoToMono(in)))
}

func TestDownsampleStereoToMono_MeanRoundsDown(t *testing.T) {
	cases := []struct {
		left, right int16
		want        int16
	}{
		{-1, 0, -1},
		{0, -1, -1},
		{1, 0, 0},
		{-3, -4, -4},
		{math.MinInt16, math.MinInt16, math.MinInt16},
		{math.MaxInt16, math.MaxInt16, math.MaxInt16},
	}
	for _, c := range cases {
		in := Int16ToBytes([]int16{c.left, c.right, 0, 0, 0, 0})
		out := BytesToInt16(DownsampleStereoToMono(in))
		require.Len(t, out, 1)
		assert.Equal(t, c.want, out[0], "left=%d right=%d", c.left, c.right)
	}
}

func TestCodec_EmptyAndPartialInput(t *testing.T) {
	assert.Empty(t, UpsampleMonoToStereo(nil))
	assert.Empty(t, UpsampleMonoToStereo([]byte{1}))
	assert.Empty(t, DownsampleStereoToMono(nil))
	assert.Empty(t, DownsampleStereoToMono([]byte{1, 2, 3}))

	// a trailing partial stereo frame is dropped, never read
	out := DownsampleStereoToMono(append(make([]byte, 12), 9, 9))
	assert.Len(t, out, 2)
}

func TestCodec_Deterministic(t *testing.T) {
	in := Int16ToBytes([]int16{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	assert.Equal(t, DownsampleStereoToMono(in), DownsampleStereoToMono(in))
	assert.Equal(t, UpsampleMonoToStereo(in), UpsampleMonoToStereo(in))
}

func TestCodec_SineStaysInRange(t *testing.T) {
	const frames = 4800
	samples := make([]int16, frames*2)
	for i := 0; i < frames; i++ {
		v := int16(math.Round(math.Sin(2*math.Pi*440*float64(i)/VoiceRate) * math.MaxInt16))
		samples[i*2] = v
		samples[i*2+1] = v
	}

	mono := DownsampleStereoToMono(Int16ToBytes(samples))
	back := BytesToInt16(UpsampleMonoToStereo(mono))
	require.NotEmpty(t, back)

	assert.LessOrEqual(t, peak(back), peak(samples))
}

func peak(samples []int16) int {
	top := 0
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > top {
			top = v
		}
	}
	return top
}
