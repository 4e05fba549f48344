package voice

import (
	"encoding/binary"
	"math"
)

// EncodePCM16LE converts floating-point samples in [-1, 1] to signed
// 16-bit little-endian PCM. Samples are clamped before scaling so 1.0 maps
// to 32767 instead of overflowing to the negative range.
func EncodePCM16LE(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 0x8000)
		} else {
			v = int16(s * 0x7FFF)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// Level maps a frame's root-mean-square loudness through gain into [0, 1].
func Level(samples []float32, gain float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))

	level := rms * gain
	if level > 1 {
		level = 1
	}
	return level
}

// DecodeF32LE reinterprets little-endian float32 bytes as samples. Used by
// capture sources that deliver raw device buffers.
func DecodeF32LE(b []byte) []float32 {
	n := len(b) / 4
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(b[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}
