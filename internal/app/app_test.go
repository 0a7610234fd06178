package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"recwhisper/internal/clipboard"
	"recwhisper/internal/config"
	"recwhisper/internal/event"
	"recwhisper/internal/transcribe"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeWAV(t *testing.T, path string, frames int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	enc := wav.NewEncoder(f, 44100, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 44100},
		Data:           make([]int, frames),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func testConfig(serverURL string) config.Config {
	cfg := config.DefaultConfig()
	cfg.ServerURL = serverURL
	cfg.CopyToClipboard = false
	cfg.Notification = false
	return cfg
}

func TestRunFileModeWritesTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":" hello from the server "}`)
	}))
	defer srv.Close()

	dir := t.TempDir()
	in := filepath.Join(dir, "audio.wav")
	writeWAV(t, in, 44100)
	outPath := filepath.Join(dir, "out.txt")

	var stdout bytes.Buffer
	err := RunFileMode(context.Background(), testConfig(srv.URL), in, outPath, Options{Log: quietLogger(), Stdout: &stdout})
	if err != nil {
		t.Fatalf("file mode: %v", err)
	}
	if strings.TrimSpace(stdout.String()) != "hello from the server" {
		t.Fatalf("unexpected stdout %q", stdout.String())
	}
	got, err := os.ReadFile(outPath)
	if err != nil || string(got) != "hello from the server" {
		t.Fatalf("output file %q %v", got, err)
	}
	body, err := os.ReadFile(filepath.Join(dir, transcribe.TranscriptFileName))
	if err != nil {
		t.Fatalf("transcript missing: %v", err)
	}
	if !strings.Contains(string(body), "Duration: 00:01\n") || !strings.HasSuffix(string(body), "Transcription:\nhello from the server") {
		t.Fatalf("unexpected transcript:\n%s", body)
	}
}

func TestRunFileModeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	in := filepath.Join(t.TempDir(), "audio.wav")
	writeWAV(t, in, 100)
	err := RunFileMode(context.Background(), testConfig(srv.URL), in, "", Options{Log: quietLogger(), Stdout: io.Discard})
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected server error, got %v", err)
	}
}

func TestRunFileModeMissingInput(t *testing.T) {
	err := RunFileMode(context.Background(), testConfig("http://127.0.0.1:1"), filepath.Join(t.TempDir(), "nope.wav"), "", Options{Log: quietLogger()})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not exist, got %v", err)
	}
}

func TestRunProbeModePrintsAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	var out bytes.Buffer
	if err := RunProbeMode(context.Background(), testConfig(srv.URL), Options{Log: quietLogger(), Stdout: &out}); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if !strings.Contains(out.String(), "-> 404") || !strings.Contains(out.String(), "is reachable") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestRunProbeModeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var out bytes.Buffer
	if err := RunProbeMode(context.Background(), testConfig(url), Options{Log: quietLogger(), Stdout: &out}); err == nil {
		t.Fatal("expected unreachable error")
	}
	if !strings.Contains(out.String(), "error:") {
		t.Fatalf("attempt errors not printed:\n%s", out.String())
	}
}

func TestDelivererFallsBackToCopy(t *testing.T) {
	var copied []string
	beeps := 0
	d := newDeliverer(quietLogger(), true, true, func() { beeps++ })
	d.paste = func(string) error { return clipboard.ErrUnsupported }
	d.copy = func(s string) error {
		copied = append(copied, s)
		return nil
	}

	d.Handle(event.Event{Kind: event.TranscriptionEmpty})
	d.Handle(event.Event{Kind: event.TranscriptionCompleted, Text: "hi"})
	if len(copied) != 1 || copied[0] != "hi" || beeps != 1 {
		t.Fatalf("copied %v, beeps %d", copied, beeps)
	}

	d.update(false, false)
	d.Handle(event.Event{Kind: event.TranscriptionCompleted, Text: "again"})
	if len(copied) != 1 {
		t.Fatal("copied while disabled")
	}
}

func TestRestartOnly(t *testing.T) {
	a := config.DefaultConfig()
	b := a
	b.VolumeThreshold = 0.3
	if keys := restartOnly(a, b); len(keys) != 0 {
		t.Fatalf("live setting reported as restart-only: %v", keys)
	}
	b.MetricsAddr = ":9100"
	b.EnableHTTP2 = false
	keys := restartOnly(a, b)
	if strings.Join(keys, ",") != "ENABLE_HTTP2,METRICS_ADDR" {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewLogger(&buf, "warn", "json")
	if err != nil {
		t.Fatal(err)
	}
	log.Info("hidden")
	log.Warn("shown", "k", 1)
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), `"msg":"shown"`) {
		t.Fatalf("unexpected log output %q", buf.String())
	}
	if _, err := NewLogger(&buf, "loud", "text"); err == nil {
		t.Fatal("expected unknown level error")
	}
}
