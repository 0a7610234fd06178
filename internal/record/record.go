// Package record implements the recorder: a state machine over the capture
// engine that starts and stops sessions manually or by voice activation and
// ends them after a configurable stretch of silence.
//
// All state transitions run on a single goroutine owned by the Recorder.
// Public methods, capture blocks and watchdog expiries are messages to that
// goroutine, so no two transitions ever interleave.
package record

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"recwhisper/internal/audio"
	"recwhisper/internal/capture"
	"recwhisper/internal/event"
	"recwhisper/internal/metrics"
)

// State represents recorder state.
type State int32

const (
	StateIdle State = iota
	StateMonitoring
	StateRecording
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMonitoring:
		return "monitoring"
	case StateRecording:
		return "recording"
	default:
		return "unknown"
	}
}

var (
	// ErrRecordingFailed wraps any failure to open the device or create the
	// output file when a session starts.
	ErrRecordingFailed = errors.New("record: recording failed to start")
	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("record: recorder closed")
)

// Engine is the capture side the recorder drives. *capture.Engine
// implements it.
type Engine interface {
	Open(deviceIndex int) error
	Start(consumer capture.Consumer, opts ...capture.StartOption) error
	Stop() error
}

// Settings is the recorder configuration. Threshold is an RMS volume in
// [0,1]; SilenceTimeout must be positive when VolumeActivation is set.
type Settings struct {
	RecordingsPath   string
	FolderSuffix     string
	InputDevice      int
	VolumeActivation bool
	VolumeThreshold  float64
	SilenceTimeout   time.Duration
}

func (s Settings) validate() error {
	if s.VolumeThreshold < 0 || s.VolumeThreshold > 1 {
		return fmt.Errorf("record: volume threshold %v outside [0,1]", s.VolumeThreshold)
	}
	if s.VolumeActivation && s.SilenceTimeout <= 0 {
		return fmt.Errorf("record: silence timeout must be positive, got %v", s.SilenceTimeout)
	}
	return nil
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithHandler sets the handler that receives RecordingStarted and
// RecordingStopped events. It runs on the recorder goroutine and must not
// call back into the Recorder; pass a Dispatcher's Emit to decouple.
func WithHandler(h event.Handler) Option {
	return func(r *Recorder) {
		if h != nil {
			r.handler = h
		}
	}
}

// WithClock overrides time.Now for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

type command struct {
	fn    func() error
	reply chan error
}

type blockMsg struct {
	gen  uint64
	data []byte
}

// Recorder drives an Engine through idle, monitoring and recording.
type Recorder struct {
	engine  Engine
	log     *slog.Logger
	metrics *metrics.Metrics
	handler event.Handler
	now     func() time.Time

	cmds     chan command
	blocks   chan blockMsg
	expiries chan uint64
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once

	published atomic.Int32
	skipped   atomic.Uint64

	// owned by the run goroutine
	settings Settings
	state    State
	gen      uint64
	session  *Session
	watchdog *Watchdog
}

// New creates a recorder and starts its goroutine. If volume activation is
// enabled in s it begins monitoring immediately; a device failure at that
// point is logged and the recorder stays idle.
func New(engine Engine, s Settings, opts ...Option) (*Recorder, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	r := &Recorder{
		engine:   engine,
		log:      slog.Default(),
		metrics:  metrics.Discard(),
		handler:  event.Discard,
		now:      time.Now,
		cmds:     make(chan command),
		blocks:   make(chan blockMsg, 128),
		expiries: make(chan uint64, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		settings: s,
	}
	for _, o := range opts {
		o(r)
	}
	r.log = r.log.With("component", "recorder")
	go r.run()
	if s.VolumeActivation {
		if err := r.do(r.startMonitoring); err != nil {
			r.log.Warn("volume activation unavailable", "err", err)
		}
	}
	return r, nil
}

// State returns the last published state.
func (r *Recorder) State() State {
	return State(r.published.Load())
}

// Current returns the open session, if any.
func (r *Recorder) Current() (Session, bool) {
	var s Session
	var ok bool
	err := r.do(func() error {
		if r.session != nil {
			s, ok = *r.session, true
		}
		return nil
	})
	if err != nil {
		return Session{}, false
	}
	return s, ok
}

// StartRecording opens a new session under path with the folder suffix.
// Empty arguments fall back to the configured values for this session only.
// It is a no-op while already recording and cancels monitoring first when
// monitoring.
func (r *Recorder) StartRecording(path, suffix string) error {
	return r.do(func() error {
		if path == "" {
			path = r.settings.RecordingsPath
		}
		if suffix == "" {
			suffix = r.settings.FolderSuffix
		}
		return r.beginRecording(TriggerManual, path, suffix, nil)
	})
}

// StopRecording closes the open session. It is a no-op when not recording.
func (r *Recorder) StopRecording() error {
	return r.do(func() error {
		r.endRecording(StopManual)
		return nil
	})
}

// ToggleRecording stops when recording and starts otherwise.
func (r *Recorder) ToggleRecording() error {
	return r.do(func() error {
		if r.state == StateRecording {
			r.endRecording(StopToggle)
			return nil
		}
		return r.beginRecording(TriggerManual, r.settings.RecordingsPath, r.settings.FolderSuffix, nil)
	})
}

// SetVolumeActivation updates the voice trigger. Enabling it while idle
// starts monitoring; disabling it while monitoring releases the device.
// An open session keeps recording, with the silence watchdog armed or
// cancelled to match.
func (r *Recorder) SetVolumeActivation(enabled bool, threshold float64, timeout time.Duration) error {
	return r.do(func() error {
		next := r.settings
		next.VolumeActivation = enabled
		next.VolumeThreshold = threshold
		next.SilenceTimeout = timeout
		if err := next.validate(); err != nil {
			return err
		}
		r.settings = next

		switch r.state {
		case StateIdle:
			if enabled {
				return r.startMonitoring()
			}
		case StateMonitoring:
			if !enabled {
				r.stopMonitoring()
			}
		case StateRecording:
			if enabled {
				r.armWatchdog()
			} else {
				r.cancelWatchdog()
			}
		}
		return nil
	})
}

// SetInputDevice selects the capture device. Monitoring restarts on the new
// device; an open session keeps its device until it ends.
func (r *Recorder) SetInputDevice(index int) error {
	return r.do(func() error {
		r.settings.InputDevice = index
		if r.state == StateMonitoring {
			r.stopMonitoring()
			return r.startMonitoring()
		}
		return nil
	})
}

// Close ends any open session with reason shutdown, releases the device and
// stops the recorder goroutine.
func (r *Recorder) Close(ctx context.Context) error {
	r.once.Do(func() { close(r.done) })
	select {
	case <-r.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) do(fn func() error) error {
	c := command{fn: fn, reply: make(chan error, 1)}
	select {
	case r.cmds <- c:
	case <-r.done:
		return ErrClosed
	}
	select {
	case err := <-c.reply:
		return err
	case <-r.stopped:
		select {
		case err := <-c.reply:
			return err
		default:
			return ErrClosed
		}
	}
}

func (r *Recorder) run() {
	defer close(r.stopped)
	for {
		select {
		case <-r.done:
			r.shutdown()
			return
		case c := <-r.cmds:
			c.reply <- c.fn()
		case b := <-r.blocks:
			r.handleBlock(b)
		case gen := <-r.expiries:
			r.handleExpiry(gen)
		}
	}
}

func (r *Recorder) shutdown() {
	switch r.state {
	case StateRecording:
		r.endRecording(StopShutdown)
	case StateMonitoring:
		r.stopMonitoring()
	}
	if n := r.skipped.Load(); n > 0 {
		r.log.Debug("volume blocks skipped", "count", n)
	}
}

// consumer tags blocks with the capture generation that produced them so
// blocks from a stream that has since been stopped are ignored.
func (r *Recorder) consumer(gen uint64) capture.Consumer {
	return func(block []byte) {
		select {
		case r.blocks <- blockMsg{gen: gen, data: block}:
		default:
			r.skipped.Add(1)
		}
	}
}

func (r *Recorder) handleBlock(b blockMsg) {
	if b.gen != r.gen {
		return
	}
	vol := audio.Volume(b.data)
	r.metrics.InputVolume.Set(vol)
	if !r.settings.VolumeActivation || vol <= r.settings.VolumeThreshold {
		return
	}
	switch r.state {
	case StateMonitoring:
		r.log.Debug("voice detected", "volume", vol, "threshold", r.settings.VolumeThreshold)
		if err := r.beginRecording(TriggerVoice, r.settings.RecordingsPath, r.settings.FolderSuffix, b.data); err != nil {
			return
		}
	case StateRecording:
		if r.watchdog != nil {
			r.watchdog.Reset()
		}
	}
}

func (r *Recorder) handleExpiry(gen uint64) {
	if gen != r.gen || r.state != StateRecording {
		return
	}
	r.log.Info("silence timeout reached", "timeout", r.settings.SilenceTimeout)
	r.endRecording(StopSilence)
}

func (r *Recorder) beginRecording(trigger Trigger, base, suffix string, preroll []byte) error {
	switch r.state {
	case StateRecording:
		return nil
	case StateMonitoring:
		r.stopMonitoring()
	}

	s, err := newSession(base, suffix, r.now())
	if err != nil {
		return r.fail(err)
	}
	s.Trigger = trigger
	if err := r.engine.Open(r.settings.InputDevice); err != nil {
		_ = os.Remove(s.Dir)
		return r.fail(err)
	}
	r.gen++
	opts := []capture.StartOption{capture.WithOutputFile(s.AudioPath)}
	if len(preroll) > 0 {
		opts = append(opts, capture.WithPreroll(preroll))
	}
	if err := r.engine.Start(r.consumer(r.gen), opts...); err != nil {
		_ = r.engine.Stop()
		_ = os.RemoveAll(s.Dir)
		return r.fail(err)
	}

	r.session = s
	r.setState(StateRecording)
	if r.settings.VolumeActivation {
		r.armWatchdog()
	}
	r.metrics.RecordingsStarted.WithLabelValues(string(trigger)).Inc()
	r.log.Info("recording started", "session", s.ID, "path", s.AudioPath, "trigger", trigger)
	r.handler(event.Event{Kind: event.RecordingStarted, SessionID: s.ID, AudioPath: s.AudioPath})
	return nil
}

func (r *Recorder) fail(err error) error {
	r.metrics.RecordingFailures.Inc()
	r.setState(StateIdle)
	err = fmt.Errorf("%w: %w", ErrRecordingFailed, err)
	r.log.Error("recording failed", "err", err)
	return err
}

func (r *Recorder) endRecording(reason StopReason) {
	if r.state != StateRecording {
		return
	}
	r.cancelWatchdog()
	if err := r.engine.Stop(); err != nil {
		r.log.Error("stop capture", "err", err)
	}
	r.gen++

	s := *r.session
	s.EndedAt = r.now()
	s.StopReason = reason
	s.State = SessionClosed
	r.session = nil
	r.setState(StateIdle)

	r.metrics.RecordingsStopped.WithLabelValues(string(reason)).Inc()
	r.metrics.SessionDuration.Observe(s.Duration().Seconds())
	r.log.Info("recording stopped", "session", s.ID, "path", s.AudioPath, "reason", reason, "duration", s.Duration())
	r.handler(event.Event{Kind: event.RecordingStopped, SessionID: s.ID, AudioPath: s.AudioPath})

	if reason != StopShutdown && r.settings.VolumeActivation {
		if err := r.startMonitoring(); err != nil {
			r.log.Warn("resume monitoring", "err", err)
		}
	}
}

func (r *Recorder) startMonitoring() error {
	if r.state != StateIdle || !r.settings.VolumeActivation {
		return nil
	}
	if err := r.engine.Open(r.settings.InputDevice); err != nil {
		return fmt.Errorf("record: start monitoring: %w", err)
	}
	r.gen++
	if err := r.engine.Start(r.consumer(r.gen)); err != nil {
		_ = r.engine.Stop()
		return fmt.Errorf("record: start monitoring: %w", err)
	}
	r.setState(StateMonitoring)
	r.log.Debug("monitoring", "threshold", r.settings.VolumeThreshold, "device", r.settings.InputDevice)
	return nil
}

func (r *Recorder) stopMonitoring() {
	if r.state != StateMonitoring {
		return
	}
	if err := r.engine.Stop(); err != nil {
		r.log.Error("stop monitoring", "err", err)
	}
	r.gen++
	r.setState(StateIdle)
}

func (r *Recorder) armWatchdog() {
	r.cancelWatchdog()
	gen := r.gen
	r.watchdog = NewWatchdog(r.settings.SilenceTimeout, func() {
		select {
		case r.expiries <- gen:
		case <-r.stopped:
		}
	})
	r.watchdog.Arm()
}

func (r *Recorder) cancelWatchdog() {
	if r.watchdog != nil {
		r.watchdog.Cancel()
		r.watchdog = nil
	}
}

func (r *Recorder) setState(s State) {
	r.state = s
	r.published.Store(int32(s))
	r.metrics.RecorderState.Set(float64(s))
}
