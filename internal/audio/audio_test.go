package audio_test

import (
	"math"
	"testing"

	"recwhisper/internal/audio"
)

func TestVolumeSilentBlockIsZero(t *testing.T) {
	block := make([]byte, 2048)
	if v := audio.Volume(block); v != 0 {
		t.Fatalf("expected 0, got %v", v)
	}
}

func TestVolumeEmptyAndOddBlocks(t *testing.T) {
	if v := audio.Volume(nil); v != 0 {
		t.Fatalf("expected 0 for nil block, got %v", v)
	}
	if v := audio.Volume([]byte{0x7f}); v != 0 {
		t.Fatalf("expected 0 for single byte, got %v", v)
	}
	// trailing byte is ignored: one full-scale sample plus garbage
	block := append(audio.Int16ToBytes([]int16{-32768}), 0x55)
	if v := audio.Volume(block); v != 1 {
		t.Fatalf("expected 1, got %v", v)
	}
}

func TestVolumeFullScaleAlternatingApproachesOne(t *testing.T) {
	samples := make([]int16, 1024)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 32767
		} else {
			samples[i] = -32768
		}
	}
	v := audio.Volume(audio.Int16ToBytes(samples))
	if v < 0.999 || v > 1 {
		t.Fatalf("expected volume close to 1, got %v", v)
	}
}

func TestVolumeBounded(t *testing.T) {
	blocks := [][]int16{
		{1, -1, 2, -2},
		{32767, 32767, 32767},
		{-32768, -32768},
		{1000, -20000, 30000, 5},
	}
	for _, b := range blocks {
		v := audio.Volume(audio.Int16ToBytes(b))
		if v < 0 || v > 1 || math.IsNaN(v) {
			t.Errorf("volume %v out of range for %v", v, b)
		}
	}
}

func TestVolumeKnownValue(t *testing.T) {
	// constant amplitude a gives RMS a/32768
	samples := make([]int16, 512)
	for i := range samples {
		samples[i] = 3277
	}
	got := audio.Volume(audio.Int16ToBytes(samples))
	want := 3277.0 / 32768.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDownmixToMonoAveragesChannels(t *testing.T) {
	stereo := []int{100, 200, -100, -200}
	got := audio.DownmixToMono(stereo, 2)
	want := []int16{150, -150}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}

	quad := []int{4, 8, 12, 16}
	if got := audio.DownmixToMono(quad, 4); len(got) != 1 || got[0] != 10 {
		t.Fatalf("expected [10], got %v", got)
	}
}

func TestDownmixToMonoClamps(t *testing.T) {
	got := audio.DownmixToMono([]int{40000}, 1)
	if got[0] != 32767 {
		t.Fatalf("expected clamp to 32767, got %d", got[0])
	}
}

func TestScaleTo16(t *testing.T) {
	if got := audio.ScaleTo16([]int{128, 255, 0}, 8); got[0] != 0 || got[1] != 127<<8 || got[2] != -128<<8 {
		t.Fatalf("unexpected 8-bit scaling: %v", got)
	}
	if got := audio.ScaleTo16([]int{1 << 16}, 24); got[0] != 1<<8 {
		t.Fatalf("unexpected 24-bit scaling: %v", got)
	}
	if got := audio.ScaleTo16([]int{1 << 30}, 32); got[0] != 1<<14 {
		t.Fatalf("unexpected 32-bit scaling: %v", got)
	}
}

func TestResampleMono16(t *testing.T) {
	in := make([]int16, 48000)
	out := audio.ResampleMono16(in, 48000, 44100)
	if len(out) != 44100 {
		t.Fatalf("expected 44100 samples, got %d", len(out))
	}

	same := []int16{1, 2, 3}
	if got := audio.ResampleMono16(same, 44100, 44100); len(got) != 3 {
		t.Fatalf("expected passthrough, got %v", got)
	}

	up := audio.ResampleMono16([]int16{0, 100}, 1, 2)
	want := []int16{0, 50, 100, 100}
	for i := range want {
		if up[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, up[i], want[i])
		}
	}
}

func TestBytesRoundTripHelpers(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	got := audio.BytesToInt16(audio.Int16ToBytes(in))
	for i := range in {
		if got[i] != in[i] {
			t.Fatalf("sample %d: got %d, want %d", i, got[i], in[i])
		}
	}
}

func TestFormatCanonical(t *testing.T) {
	if !audio.Canonical.IsCanonical() {
		t.Fatal("canonical format must report canonical")
	}
	stereo := audio.Format{SampleRate: 44100, BitDepth: 16, Channels: 2}
	if stereo.IsCanonical() {
		t.Fatal("stereo must not be canonical")
	}
	if audio.Canonical.BytesPerSecond() != 88200 {
		t.Fatalf("unexpected byte rate %d", audio.Canonical.BytesPerSecond())
	}
	if s := stereo.String(); s != "44100Hz 16-bit stereo" {
		t.Fatalf("unexpected string %q", s)
	}
}
