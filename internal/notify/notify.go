// Package notify turns recorder and pipeline events into desktop
// notifications and sounds.
package notify

import (
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/gen2brain/beeep"

	"recwhisper/internal/event"
)

// Settings select which events produce a notification.
type Settings struct {
	Enabled   bool
	Recording bool
	Verbose   bool
	Clipboard bool
}

// Notifier shows notifications for events. It is safe for concurrent use.
type Notifier struct {
	log  *slog.Logger
	show func(title, message string) error
	beep func() error

	mu sync.Mutex
	s  Settings
}

// New creates a notifier backed by beeep.
func New(s Settings, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		log:  log.With("component", "notify"),
		show: func(title, message string) error { return beeep.Notify(title, message, "") },
		beep: func() error { return beeep.Beep(beeep.DefaultFreq, 120) },
		s:    s,
	}
}

// UpdateSettings replaces the settings.
func (n *Notifier) UpdateSettings(s Settings) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.s = s
}

func (n *Notifier) settings() Settings {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.s
}

// Notify shows title and message when notifications are enabled.
func (n *Notifier) Notify(title, message string) {
	if !n.settings().Enabled {
		return
	}
	if err := n.show(title, message); err != nil {
		n.log.Debug("notification failed", "title", title, "err", err)
	}
}

// Beep plays the short confirmation sound.
func (n *Notifier) Beep() {
	if !n.settings().Enabled {
		return
	}
	if err := n.beep(); err != nil {
		n.log.Debug("beep failed", "err", err)
	}
}

// Handle is an event.Handler.
func (n *Notifier) Handle(e event.Event) {
	s := n.settings()
	folder := filepath.Base(filepath.Dir(e.AudioPath))
	switch e.Kind {
	case event.RecordingStarted:
		if s.Recording {
			n.Notify("Recording Started", "Recording to: "+folder)
		}
	case event.RecordingStopped:
		if s.Recording && s.Verbose {
			n.Notify("Recording Stopped", "Saved to: "+folder)
		}
	case event.TranscriptionCompleted:
		if s.Verbose {
			msg := "Text saved alongside audio file"
			if s.Clipboard {
				msg = "Text saved and copied to clipboard"
			}
			n.Notify("Transcription Complete", msg)
		}
	case event.TranscriptionEmpty:
		if s.Verbose {
			n.Notify("Transcription", "No speech detected in recording")
		}
	case event.TranscriptionFailed:
		msg := "transcription failed"
		if e.Err != nil {
			msg = e.Err.Error()
		}
		n.Notify("Transcription Error", msg)
	}
}
