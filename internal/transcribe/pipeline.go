// Package transcribe runs finished recordings through conversion, upload
// and transcript persistence, off the capture path.
package transcribe

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"recwhisper/internal/asr"
	"recwhisper/internal/audio/convert"
	"recwhisper/internal/event"
	"recwhisper/internal/metrics"
	"recwhisper/internal/record"
)

// ErrShutdown is returned by Submit after Shutdown.
var ErrShutdown = errors.New("transcribe: pipeline shut down")

// Converter produces canonical audio. *convert.Converter implements it.
type Converter interface {
	Convert(ctx context.Context, path string) (convert.Result, error)
}

// Transcriber uploads audio. *asr.Client implements it.
type Transcriber interface {
	Transcribe(ctx context.Context, req asr.Request) (asr.Result, error)
}

// Settings are the per-run request parameters.
type Settings struct {
	ServerURL       string
	APIKey          string
	Language        string
	KeepRawResponse bool
}

// Outcome is what one run produced. Kind is one of TranscriptionCompleted,
// TranscriptionEmpty or TranscriptionFailed.
type Outcome struct {
	Kind           event.Kind
	Text           string
	TranscriptPath string
	Tier           convert.Tier
	Err            error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithHandler sets the receiver of transcription events.
func WithHandler(h event.Handler) Option {
	return func(p *Pipeline) {
		if h != nil {
			p.handler = h
		}
	}
}

// WithConcurrency bounds the number of runs in flight. Default 2.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithClock overrides time.Now for transcript timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// Pipeline converts, uploads and persists recordings. Runs are independent:
// each binds to its own session and shares only the read-only settings
// snapshot taken when it starts.
type Pipeline struct {
	conv        Converter
	client      Transcriber
	log         *slog.Logger
	metrics     *metrics.Metrics
	handler     event.Handler
	now         func() time.Time
	concurrency int
	sem         *semaphore.Weighted

	mu       sync.Mutex
	settings Settings
	closed   bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a pipeline.
func New(conv Converter, client Transcriber, s Settings, opts ...Option) *Pipeline {
	p := &Pipeline{
		conv:        conv,
		client:      client,
		log:         slog.Default(),
		metrics:     metrics.Discard(),
		handler:     event.Discard,
		now:         time.Now,
		concurrency: 2,
		settings:    s,
	}
	for _, o := range opts {
		o(p)
	}
	p.log = p.log.With("component", "pipeline")
	p.sem = semaphore.NewWeighted(int64(p.concurrency))
	p.ctx, p.cancel = context.WithCancel(context.Background())
	return p
}

// UpdateSettings replaces the settings used by runs started afterwards.
func (p *Pipeline) UpdateSettings(s Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = s
}

func (p *Pipeline) snapshot() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// Submit runs the pipeline for s in the background.
func (p *Pipeline) Submit(s record.Session) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrShutdown
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			p.log.Warn("run abandoned before start", "session", s.ID, "err", err)
			return
		}
		defer p.sem.Release(1)
		p.Run(p.ctx, s)
	}()
	return nil
}

// Shutdown stops accepting sessions and waits for in-flight runs. When ctx
// ends first the remaining runs are cancelled and ctx.Err() is returned.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

// Run converts, transcribes and persists s, emits the outcome event and
// returns the outcome. It never retries; on failure the audio file is left
// untouched.
func (p *Pipeline) Run(ctx context.Context, s record.Session) Outcome {
	p.metrics.TranscriptionsActive.Inc()
	defer p.metrics.TranscriptionsActive.Dec()

	out := p.run(ctx, s)
	switch out.Kind {
	case event.TranscriptionCompleted:
		p.metrics.Transcriptions.WithLabelValues("completed").Inc()
		p.log.Info("transcription completed", "session", s.ID, "chars", len(out.Text), "transcript", out.TranscriptPath)
	case event.TranscriptionEmpty:
		p.metrics.Transcriptions.WithLabelValues("empty").Inc()
		p.log.Warn("no speech detected", "session", s.ID, "audio", s.AudioPath)
	default:
		p.metrics.Transcriptions.WithLabelValues("failed").Inc()
		p.log.Error("transcription failed", "session", s.ID, "audio", s.AudioPath, "err", out.Err)
	}
	p.handler(event.Event{
		Kind:      out.Kind,
		SessionID: s.ID,
		AudioPath: s.AudioPath,
		Text:      out.Text,
		Err:       out.Err,
	})
	return out
}

func (p *Pipeline) run(ctx context.Context, s record.Session) Outcome {
	cfg := p.snapshot()

	conv, err := p.conv.Convert(ctx, s.AudioPath)
	if err != nil {
		return Outcome{Kind: event.TranscriptionFailed, Err: err}
	}

	res, err := p.client.Transcribe(ctx, asr.Request{
		Audio:     conv.Data,
		FileName:  filepath.Base(s.AudioPath),
		Language:  cfg.Language,
		ServerURL: cfg.ServerURL,
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return Outcome{Kind: event.TranscriptionFailed, Tier: conv.Tier, Err: err}
	}
	if cfg.KeepRawResponse && len(res.Raw) > 0 {
		if _, err := writeRawResponse(s.AudioPath, res.Raw); err != nil {
			p.log.Warn("raw response not saved", "session", s.ID, "err", err)
		}
	}
	if res.Empty() {
		return Outcome{Kind: event.TranscriptionEmpty, Tier: conv.Tier}
	}

	out := Outcome{Kind: event.TranscriptionCompleted, Text: res.Text, Tier: conv.Tier}
	path, err := writeTranscript(p.now(), s.AudioPath, res.Text)
	if err != nil {
		// the text still reaches collaborators
		out.Err = err
		p.log.Error("transcript not saved", "session", s.ID, "err", err)
		return out
	}
	out.TranscriptPath = path
	return out
}
