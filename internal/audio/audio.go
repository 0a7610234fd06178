// Package audio holds the PCM primitives shared by capture, the recorder and
// the converter: the canonical upload format, loudness measurement and the
// pure-Go down-mix/resample used when ffmpeg is not available.
package audio

import (
	"encoding/binary"
	"fmt"
)

// Format describes a PCM stream.
type Format struct {
	SampleRate int
	BitDepth   int
	Channels   int
}

// Canonical is the format used for capture and required for upload.
var Canonical = Format{SampleRate: 44100, BitDepth: 16, Channels: 1}

// IsCanonical reports whether f equals Canonical.
func (f Format) IsCanonical() bool {
	return f == Canonical
}

// BytesPerSecond returns the PCM data rate of f.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * f.BitDepth / 8
}

func (f Format) String() string {
	ch := "mono"
	switch {
	case f.Channels == 2:
		ch = "stereo"
	case f.Channels > 2:
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %d-bit %s", f.SampleRate, f.BitDepth, ch)
}

// Int16ToBytes encodes samples as little-endian int16 PCM.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// BytesToInt16 decodes little-endian int16 PCM. A trailing odd byte is ignored.
func BytesToInt16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}
