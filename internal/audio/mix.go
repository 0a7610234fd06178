package audio

// DownmixToMono averages all channels of interleaved samples per frame.
// Samples must already be scaled to the int16 range. When channels is 1 the
// input is converted without mixing.
func DownmixToMono(interleaved []int, channels int) []int16 {
	if channels <= 1 {
		out := make([]int16, len(interleaved))
		for i, v := range interleaved {
			out[i] = clamp16(int64(v))
		}
		return out
	}
	frames := len(interleaved) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int64
		for ch := 0; ch < channels; ch++ {
			sum += int64(interleaved[i*channels+ch])
		}
		out[i] = clamp16(sum / int64(channels))
	}
	return out
}

// ScaleTo16 rescales integer samples decoded at bitDepth to the int16 range.
// 8-bit WAV data is unsigned and is re-centred around zero.
func ScaleTo16(samples []int, bitDepth int) []int {
	out := make([]int, len(samples))
	switch bitDepth {
	case 8:
		for i, v := range samples {
			out[i] = (v - 128) << 8
		}
	case 16:
		copy(out, samples)
	case 24:
		for i, v := range samples {
			out[i] = v >> 8
		}
	case 32:
		for i, v := range samples {
			out[i] = v >> 16
		}
	default:
		copy(out, samples)
	}
	return out
}

// ResampleMono16 resamples int16 mono samples from srcRate to dstRate using
// linear interpolation. Equal rates return the input unchanged.
func ResampleMono16(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}
	out := make([]int16, dstLen)
	ratio := float64(srcRate) / float64(dstRate)
	for i := 0; i < dstLen; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		s0 := samples[idx]
		s1 := s0
		if idx+1 < len(samples) {
			s1 = samples[idx+1]
		}
		out[i] = int16(float64(s0)*(1-frac) + float64(s1)*frac)
	}
	return out
}

func clamp16(v int64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
