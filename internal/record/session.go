package record

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// AudioFileName is the name of the WAV file inside a session directory.
const AudioFileName = "audio.wav"

// Trigger records what started a session.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerVoice  Trigger = "voice"
)

// StopReason records what ended a session.
type StopReason string

const (
	StopManual   StopReason = "manual"
	StopToggle   StopReason = "toggle"
	StopSilence  StopReason = "silence"
	StopShutdown StopReason = "shutdown"
)

// SessionState is the lifecycle state of a Session.
type SessionState int

const (
	SessionRecording SessionState = iota
	SessionClosed
)

// Session is one recording. The recorder owns it while recording; once
// closed it is handed out by value and never changes.
type Session struct {
	ID         string
	StartedAt  time.Time
	EndedAt    time.Time
	Dir        string
	AudioPath  string
	Trigger    Trigger
	StopReason StopReason
	State      SessionState
}

// Duration is the wall-clock length of a closed session.
func (s Session) Duration() time.Duration {
	if s.EndedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// newSession creates <base>/<yyyy-MM-dd_HH-mm-ss><suffix>/ and returns a
// session recording into audio.wav inside it.
func newSession(base, suffix string, now time.Time) (*Session, error) {
	if base == "" {
		cwd, _ := os.Getwd()
		base = cwd
	}
	dir := filepath.Join(base, now.Format("2006-01-02_15-04-05")+suffix)
	if _, err := os.Stat(dir); err == nil {
		// two sessions in the same second
		dir = fmt.Sprintf("%s_%s", dir, uuid.New().String()[:8])
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create recording folder: %w", err)
	}
	return &Session{
		ID:        uuid.New().String(),
		StartedAt: now,
		Dir:       dir,
		AudioPath: filepath.Join(dir, AudioFileName),
		State:     SessionRecording,
	}, nil
}

// FileSession wraps an existing audio file as a closed session, so a
// recording can be transcribed again.
func FileSession(path string) Session {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	s := Session{
		ID:         uuid.New().String(),
		Dir:        filepath.Dir(abs),
		AudioPath:  abs,
		Trigger:    TriggerManual,
		StopReason: StopManual,
		State:      SessionClosed,
	}
	if info, err := os.Stat(abs); err == nil {
		s.StartedAt = info.ModTime()
		s.EndedAt = info.ModTime()
	}
	return s
}
