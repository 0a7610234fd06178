package ffmpeg

import (
	"context"
	"errors"
	"testing"

	"recwhisper/internal/audio"
)

func TestMissingBinaryIsUnavailable(t *testing.T) {
	r := New("recwhisper-no-such-ffmpeg", nil)
	if r.Available() {
		t.Fatal("expected binary to be unavailable")
	}
	_, err := r.Resample(context.Background(), "in.wav", audio.Canonical)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPCMCodecFor(t *testing.T) {
	cases := map[int]string{8: "pcm_u8", 16: "pcm_s16le", 24: "pcm_s24le", 32: "pcm_s32le"}
	for depth, want := range cases {
		got, ok := pcmCodecFor(depth)
		if !ok || got != want {
			t.Errorf("depth %d: got %q ok=%v, want %q", depth, got, ok, want)
		}
	}
	if _, ok := pcmCodecFor(12); ok {
		t.Error("12-bit must be unsupported")
	}
}
