package event

import (
	"errors"
	"testing"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
	var got []Kind
	d := NewDispatcher(4, func(e Event) { got = append(got, e.Kind) })
	d.Emit(Event{Kind: RecordingStarted})
	d.Emit(Event{Kind: RecordingStopped})
	d.Emit(Event{Kind: TranscriptionFailed, Err: errors.New("boom")})
	d.Close()

	want := []Kind{RecordingStarted, RecordingStopped, TranscriptionFailed}
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDispatcherFansOutAndStamps(t *testing.T) {
	var a, b int
	d := NewDispatcher(0,
		func(e Event) {
			if e.At.IsZero() {
				t.Error("event not timestamped")
			}
			a++
		},
		func(Event) { b++ },
	)
	d.Emit(Event{Kind: TranscriptionEmpty})
	d.Close()
	d.Close()
	if a != 1 || b != 1 {
		t.Fatalf("expected both handlers called once, got %d/%d", a, b)
	}
}

func TestKindString(t *testing.T) {
	if TranscriptionCompleted.String() != "transcription_completed" {
		t.Fatalf("unexpected %q", TranscriptionCompleted.String())
	}
	if Kind(99).String() != "unknown" {
		t.Fatalf("unexpected %q", Kind(99).String())
	}
}

func TestEmitAfterCloseIsDropped(t *testing.T) {
	n := 0
	d := NewDispatcher(1, func(Event) { n++ })
	d.Close()
	d.Emit(Event{Kind: RecordingStarted})
	if n != 0 {
		t.Fatalf("event delivered after close")
	}
}
