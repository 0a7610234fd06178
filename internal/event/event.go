// Package event defines the notifications the recorder and the transcription
// pipeline publish to collaborators (tray, clipboard, notifications).
package event

import (
	"sync"
	"time"
)

// Kind identifies an event.
type Kind int

const (
	RecordingStarted Kind = iota + 1
	RecordingStopped
	TranscriptionCompleted
	TranscriptionEmpty
	TranscriptionFailed
)

func (k Kind) String() string {
	switch k {
	case RecordingStarted:
		return "recording_started"
	case RecordingStopped:
		return "recording_stopped"
	case TranscriptionCompleted:
		return "transcription_completed"
	case TranscriptionEmpty:
		return "transcription_empty"
	case TranscriptionFailed:
		return "transcription_failed"
	default:
		return "unknown"
	}
}

// Event is a single notification. Text is set for TranscriptionCompleted,
// Err for TranscriptionFailed.
type Event struct {
	Kind      Kind
	SessionID string
	AudioPath string
	Text      string
	Err       error
	At        time.Time
}

// Handler receives events.
type Handler func(Event)

// Discard drops every event.
func Discard(Event) {}

// Dispatcher delivers events to its handlers in order on one goroutine, so
// publishers never run collaborator code on their own goroutine.
type Dispatcher struct {
	ch       chan Event
	handlers []Handler
	done     chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts a dispatcher with a queue of size events.
func NewDispatcher(size int, handlers ...Handler) *Dispatcher {
	if size <= 0 {
		size = 64
	}
	d := &Dispatcher{
		ch:       make(chan Event, size),
		handlers: handlers,
		done:     make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.ch {
		for _, h := range d.handlers {
			h(e)
		}
	}
}

// Emit queues e. It blocks only while the queue is full. Events emitted
// after Close are dropped.
func (d *Dispatcher) Emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	d.ch <- e
}

// Close stops accepting events and waits until queued ones are handled.
// Handlers must not call Emit on the dispatcher they run on.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.ch)
	}
	d.mu.Unlock()
	<-d.done
}
