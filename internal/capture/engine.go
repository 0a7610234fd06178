package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"recwhisper/internal/audio"
	"recwhisper/internal/metrics"
)

const (
	defaultFramesPerBlock = 1024
	// ~6s of audio at 1024 frames/44.1kHz before the driver starts dropping.
	defaultQueueSize = 256
)

// Engine owns one Source and guarantees it is never opened twice.
type Engine struct {
	src            Source
	format         audio.Format
	framesPerBlock int
	queueSize      int
	log            *slog.Logger
	metrics        *metrics.Metrics

	mu      sync.Mutex
	opened  bool
	running bool
	queue   chan []byte
	sink    *wavSink
	wg      sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithFramesPerBlock sets the device buffer size in frames.
func WithFramesPerBlock(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.framesPerBlock = n
		}
	}
}

// WithQueueSize sets how many blocks may wait for delivery before the driver
// callback starts dropping.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

// NewEngine creates an engine capturing in the canonical format.
func NewEngine(src Source, opts ...Option) *Engine {
	e := &Engine{
		src:            src,
		format:         audio.Canonical,
		framesPerBlock: defaultFramesPerBlock,
		queueSize:      defaultQueueSize,
		log:            slog.Default(),
		metrics:        metrics.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("component", "capture")
	return e
}

// StartOption configures a single Start call.
type StartOption func(*startOptions)

type startOptions struct {
	path    string
	preroll [][]byte
}

// WithOutputFile streams every delivered block into a WAV file at path.
func WithOutputFile(path string) StartOption {
	return func(o *startOptions) { o.path = path }
}

// WithPreroll writes blocks to the output file before live audio.
func WithPreroll(blocks ...[]byte) StartOption {
	return func(o *startOptions) { o.preroll = append(o.preroll, blocks...) }
}

// Format returns the capture format.
func (e *Engine) Format() audio.Format { return e.format }

// Open prepares the input device. deviceIndex DefaultDevice selects the
// system default.
func (e *Engine) Open(deviceIndex int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.opened {
		return ErrBusy
	}
	if err := e.src.Open(deviceIndex, e.format, e.framesPerBlock); err != nil {
		return err
	}
	e.opened = true
	e.log.Debug("device opened", "device", deviceIndex, "format", e.format.String())
	return nil
}

// Start begins delivering blocks to consumer. It returns once the device is
// running; delivery continues until Stop.
func (e *Engine) Start(consumer Consumer, opts ...StartOption) error {
	var so startOptions
	for _, opt := range opts {
		opt(&so)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.opened {
		return ErrNotOpen
	}
	if e.running {
		return ErrBusy
	}

	var sink *wavSink
	if so.path != "" {
		var err error
		if sink, err = createWAVSink(so.path, e.format); err != nil {
			return err
		}
		for _, b := range so.preroll {
			if err := sink.Write(b); err != nil {
				_ = sink.Close()
				return err
			}
		}
	}

	q := make(chan []byte, e.queueSize)
	e.wg.Add(1)
	go e.deliver(q, consumer, sink)

	if err := e.src.Start(func(samples []int16) { e.push(q, samples) }); err != nil {
		close(q)
		e.wg.Wait()
		if sink != nil {
			_ = sink.Close()
		}
		return fmt.Errorf("capture: start stream: %w", err)
	}
	e.queue = q
	e.sink = sink
	e.running = true
	e.log.Debug("capture started", "file", so.path)
	return nil
}

// push runs on the driver thread.
func (e *Engine) push(q chan<- []byte, samples []int16) {
	if len(samples) == 0 {
		return
	}
	block := audio.Int16ToBytes(samples)
	select {
	case q <- block:
	default:
		e.metrics.CaptureBlocksDropped.Inc()
	}
}

func (e *Engine) deliver(q <-chan []byte, consumer Consumer, sink *wavSink) {
	defer e.wg.Done()
	for block := range q {
		e.metrics.CaptureBlocks.Inc()
		if sink != nil {
			if err := sink.Write(block); err != nil {
				e.metrics.CaptureWriteErrors.Inc()
				e.log.Error("block write failed", "path", sink.path, "err", err)
			}
		}
		if consumer != nil {
			consumer(block)
		}
	}
}

// Stop releases the device, drains queued blocks and finalises the output
// file. Calling Stop on a stopped engine is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.opened {
		return nil
	}
	var errs []error
	if err := e.src.Close(); err != nil {
		errs = append(errs, fmt.Errorf("capture: close device: %w", err))
	}
	if e.running {
		close(e.queue)
		e.wg.Wait()
		if e.sink != nil {
			if err := e.sink.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	e.queue = nil
	e.sink = nil
	e.opened = false
	e.running = false
	e.log.Debug("capture stopped")
	return errors.Join(errs...)
}

// Running reports whether blocks are being delivered.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}
