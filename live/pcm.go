package live

import (
	"encoding/binary"
	"time"
)

// FloatTo16BitPCM converts float32 samples to little-endian 16-bit
// signed PCM. Samples are clamped to [-1, 1] first; negatives scale by
// 32768 and non-negatives by 32767 so both endpoints map onto the full
// int16 range without overflow.
func FloatTo16BitPCM(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, f := range samples {
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		var v int16
		if f < 0 {
			v = int16(f * 32768)
		} else {
			v = int16(f * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// PCMDuration reports the play time of n bytes of 16-bit mono PCM at
// the given sample rate.
func PCMDuration(n int, sampleRate int) time.Duration {
	if sampleRate <= 0 || n <= 0 {
		return 0
	}
	samples := n / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
