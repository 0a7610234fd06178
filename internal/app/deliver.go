package app

import (
	"errors"
	"log/slog"
	"sync"

	"recwhisper/internal/clipboard"
	"recwhisper/internal/event"
)

// deliverer hands completed transcripts to the clipboard.
type deliverer struct {
	log   *slog.Logger
	copy  func(string) error
	paste func(string) error
	done  func()

	mu        sync.Mutex
	enabled   bool
	autoPaste bool
}

func newDeliverer(log *slog.Logger, enabled, autoPaste bool, done func()) *deliverer {
	if done == nil {
		done = func() {}
	}
	return &deliverer{
		log:       log,
		copy:      clipboard.Copy,
		paste:     clipboard.Paste,
		done:      done,
		enabled:   enabled,
		autoPaste: autoPaste,
	}
}

func (d *deliverer) update(enabled, autoPaste bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled, d.autoPaste = enabled, autoPaste
}

// Handle is an event.Handler.
func (d *deliverer) Handle(e event.Event) {
	if e.Kind != event.TranscriptionCompleted {
		return
	}
	d.mu.Lock()
	enabled, autoPaste := d.enabled, d.autoPaste
	d.mu.Unlock()
	if !enabled {
		return
	}

	if autoPaste {
		err := d.paste(e.Text)
		if err == nil {
			d.done()
			return
		}
		if !errors.Is(err, clipboard.ErrUnsupported) {
			d.log.Warn("paste failed, copying only", "session", e.SessionID, "err", err)
		}
	}
	if err := d.copy(e.Text); err != nil {
		d.log.Error("copy to clipboard failed", "session", e.SessionID, "err", err)
		return
	}
	d.log.Info("transcript copied to clipboard", "session", e.SessionID, "chars", len(e.Text))
	d.done()
}
