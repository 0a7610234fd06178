package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"recwhisper/internal/record"
)

type fakeController struct {
	calls []string
	state record.State
	err   error
}

func (f *fakeController) StartRecording(path, suffix string) error {
	f.calls = append(f.calls, "start")
	f.state = record.StateRecording
	return f.err
}

func (f *fakeController) StopRecording() error {
	f.calls = append(f.calls, "stop")
	f.state = record.StateIdle
	return nil
}

func (f *fakeController) ToggleRecording() error {
	f.calls = append(f.calls, "toggle")
	return nil
}

func (f *fakeController) State() record.State { return f.state }

func (f *fakeController) Current() (record.Session, bool) {
	if f.state != record.StateRecording {
		return record.Session{}, false
	}
	return record.Session{ID: "abc", Trigger: record.TriggerManual, StartedAt: time.Now(), AudioPath: "/r/audio.wav"}, true
}

func TestConsoleCommands(t *testing.T) {
	rec := &fakeController{}
	var out strings.Builder
	quit := false
	c := &console{rec: rec, out: &out, quit: func() { quit = true }}

	in := strings.NewReader("start\nstatus\n\nstop\ntoggle\nbogus\nquit\nstart\n")
	if err := c.run(context.Background(), in); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !quit {
		t.Fatal("quit not requested")
	}
	want := []string{"start", "stop", "toggle"}
	if strings.Join(rec.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	text := out.String()
	if !strings.Contains(text, "session abc") || !strings.Contains(text, `unknown command "bogus"`) {
		t.Fatalf("unexpected output:\n%s", text)
	}
}

func TestConsoleReportsErrors(t *testing.T) {
	rec := &fakeController{err: errors.New("device busy")}
	var out strings.Builder
	c := &console{rec: rec, out: &out, quit: func() {}}
	if c.exec("start") {
		t.Fatal("start must not exit")
	}
	if !strings.Contains(out.String(), "error: device busy") {
		t.Fatalf("error not shown: %q", out.String())
	}
}

func TestConsoleEOFDoesNotQuit(t *testing.T) {
	quit := false
	c := &console{rec: &fakeController{}, out: new(strings.Builder), quit: func() { quit = true }}
	if err := c.run(context.Background(), strings.NewReader("")); err != nil {
		t.Fatal(err)
	}
	if quit {
		t.Fatal("EOF requested quit")
	}
}
