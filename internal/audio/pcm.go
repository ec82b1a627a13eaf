package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// DefaultSampleRate is the rate capture and transcription work at
const DefaultSampleRate = 16000

// Normalize converts integer PCM of the given bit depth to floats in
// [-1, 1]. Interleaved channels are averaged down to mono.
func Normalize(data []int, bitDepth, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	full := float64(int64(1)<<(bitDepth-1) - 1)

	frames := len(data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(data[i*channels+c])
		}
		out[i] = clamp(sum / float64(channels) / full)
	}
	return out
}

// FromS16LE decodes raw little-endian signed 16-bit mono PCM
func FromS16LE(b []byte) []float32 {
	out := make([]float32, len(b)/2)
	for i := range out {
		v := int16(binary.LittleEndian.Uint16(b[2*i:]))
		out[i] = clamp(float64(v) / math.MaxInt16)
	}
	return out
}

// ToInt16 converts normalized samples back to 16-bit PCM values
func ToInt16(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		out[i] = int(math.Round(float64(clamp(float64(s))) * math.MaxInt16))
	}
	return out
}

// Duration is how long n samples last at rate
func Duration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}

func clamp(v float64) float32 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return float32(v)
	}
}
