// Package convert turns recorded audio files into the canonical upload
// format. It never fails a conversion it can degrade instead: when the
// primary resampler is missing or fails it down-mixes in Go, and when that
// fails too it hands back the original bytes.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"recwhisper/internal/audio"
	"recwhisper/internal/metrics"
)

const wavFormatPCM = 1

// Tier identifies which conversion path produced a Result.
type Tier int

const (
	TierPassthrough Tier = iota
	TierResampled
	TierDownmixed
	TierOriginal
)

func (t Tier) String() string {
	switch t {
	case TierPassthrough:
		return "passthrough"
	case TierResampled:
		return "resampled"
	case TierDownmixed:
		return "downmixed"
	case TierOriginal:
		return "original"
	default:
		return "unknown"
	}
}

// Resampler is the high-quality conversion path. It returns a complete WAV
// file in format f.
type Resampler interface {
	Resample(ctx context.Context, path string, f audio.Format) ([]byte, error)
}

// Result is converted audio.
type Result struct {
	Data   []byte
	Tier   Tier
	Source audio.Format
}

// Degraded reports whether the audio came from a fallback path.
func (r Result) Degraded() bool {
	return r.Tier == TierDownmixed || r.Tier == TierOriginal
}

// Info describes a WAV file.
type Info struct {
	Format   audio.Format
	PCM      bool
	Duration time.Duration
}

// Inspect reads the header of the WAV file at path.
func Inspect(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()
	return inspect(f)
}

func inspect(r io.ReadSeeker) (Info, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Info{}, errors.New("convert: not a valid WAV file")
	}
	info := Info{
		Format: audio.Format{
			SampleRate: int(dec.SampleRate),
			BitDepth:   int(dec.BitDepth),
			Channels:   int(dec.NumChans),
		},
		PCM: dec.WavAudioFormat == wavFormatPCM,
	}
	if d, err := dec.Duration(); err == nil {
		info.Duration = d
	}
	return info, nil
}

// Option configures a Converter.
type Option func(*Converter)

// WithResampler sets the primary resampler. Without one the converter goes
// straight to the Go down-mix.
func WithResampler(r Resampler) Option {
	return func(c *Converter) { c.resampler = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Converter) {
		if m != nil {
			c.metrics = m
		}
	}
}

// Converter converts WAV files to audio.Canonical.
type Converter struct {
	resampler Resampler
	log       *slog.Logger
	metrics   *metrics.Metrics
}

// New creates a converter.
func New(opts ...Option) *Converter {
	c := &Converter{log: slog.Default(), metrics: metrics.Discard()}
	for _, o := range opts {
		o(c)
	}
	c.log = c.log.With("component", "convert")
	return c
}

// Convert returns the file at path as canonical WAV bytes. The only error is
// failing to read the original file.
func (c *Converter) Convert(ctx context.Context, path string) (Result, error) {
	res, err := c.convert(ctx, path)
	if err != nil {
		return Result{}, err
	}
	c.metrics.Conversions.WithLabelValues(res.Tier.String()).Inc()
	if res.Degraded() {
		c.log.Warn("conversion degraded", "path", path, "tier", res.Tier, "source", res.Source.String())
	} else {
		c.log.Debug("converted", "path", path, "tier", res.Tier, "bytes", len(res.Data))
	}
	return res, nil
}

func (c *Converter) convert(ctx context.Context, path string) (Result, error) {
	info, inspectErr := Inspect(path)
	if inspectErr == nil && info.PCM && info.Format.IsCanonical() {
		data, err := os.ReadFile(path)
		if err != nil {
			return Result{}, fmt.Errorf("convert: read %s: %w", path, err)
		}
		return Result{Data: data, Tier: TierPassthrough, Source: info.Format}, nil
	}

	if c.resampler != nil {
		data, err := c.resampler.Resample(ctx, path, audio.Canonical)
		if err == nil {
			err = checkCanonical(data)
		}
		if err == nil {
			return Result{Data: data, Tier: TierResampled, Source: info.Format}, nil
		}
		c.log.Warn("primary resampler failed", "path", path, "err", err)
	}

	if inspectErr == nil {
		data, err := downmix(path)
		if err == nil {
			return Result{Data: data, Tier: TierDownmixed, Source: info.Format}, nil
		}
		c.log.Warn("fallback down-mix failed", "path", path, "err", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("convert: read %s: %w", path, err)
	}
	return Result{Data: data, Tier: TierOriginal, Source: info.Format}, nil
}

func checkCanonical(data []byte) error {
	info, err := inspect(bytes.NewReader(data))
	if err != nil {
		return err
	}
	if !info.PCM || !info.Format.IsCanonical() {
		return fmt.Errorf("convert: resampler produced %s", info.Format.String())
	}
	return nil
}

// downmix averages all channels per frame, scales to 16 bits and linearly
// resamples to the canonical rate.
func downmix(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.New("convert: not a valid WAV file")
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("convert: unsupported WAV encoding %d", dec.WavAudioFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("convert: decode: %w", err)
	}
	channels := int(dec.NumChans)
	if channels <= 0 {
		return nil, errors.New("convert: no channels")
	}

	scaled := audio.ScaleTo16(buf.Data, int(dec.BitDepth))
	mono := audio.DownmixToMono(scaled, channels)
	mono = audio.ResampleMono16(mono, int(dec.SampleRate), audio.Canonical.SampleRate)
	return encode(mono, audio.Canonical)
}

func encode(samples []int16, f audio.Format) ([]byte, error) {
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	ws := &memWriteSeeker{}
	enc := wav.NewEncoder(ws, f.SampleRate, f.BitDepth, f.Channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
		Data:           data,
		SourceBitDepth: f.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("convert: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("convert: encode: %w", err)
	}
	return ws.buf, nil
}

// memWriteSeeker is the in-memory io.WriteSeeker the WAV encoder needs to
// patch its header on Close.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if need := m.pos + len(p); need > len(m.buf) {
		if need > cap(m.buf) {
			grown := make([]byte, need, 2*need)
			copy(grown, m.buf)
			m.buf = grown
		} else {
			m.buf = m.buf[:need]
		}
	}
	n := copy(m.buf[m.pos:], p)
	m.pos += n
	return n, nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("convert: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("convert: negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
