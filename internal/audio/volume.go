package audio

import (
	"encoding/binary"
	"math"
)

// Volume returns the RMS loudness of a block of little-endian int16 mono
// samples, normalised by the full 16-bit range. The result is in [0, 1].
// An empty block yields 0 and a trailing odd byte is ignored.
func Volume(block []byte) float64 {
	n := len(block) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(block[i*2:]))) / 32768.0
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(n))
	if rms > 1 {
		return 1
	}
	return rms
}
