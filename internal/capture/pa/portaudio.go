// Package pa implements capture.Source on top of PortAudio.
package pa

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"recwhisper/internal/audio"
	"recwhisper/internal/capture"
)

// Device describes an input device as seen by the user. Index is the value
// accepted by Source.Open.
type Device struct {
	Index      int
	Name       string
	Channels   int
	SampleRate float64
	Default    bool
}

// Source is a PortAudio-backed capture.Source.
type Source struct {
	log *slog.Logger

	mu     sync.Mutex
	inited bool
	params portaudio.StreamParameters
	stream *portaudio.Stream
	device *portaudio.DeviceInfo
}

// New creates a PortAudio source.
func New(log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}
	return &Source{log: log.With("component", "portaudio")}
}

// Devices lists the input devices in the order Open indexes them.
func Devices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init failed: %w", err)
	}
	defer portaudio.Terminate()

	inputs, err := inputDevices()
	if err != nil {
		return nil, err
	}
	def, _ := portaudio.DefaultInputDevice()
	out := make([]Device, 0, len(inputs))
	for i, d := range inputs {
		out = append(out, Device{
			Index:      i,
			Name:       d.Name,
			Channels:   d.MaxInputChannels,
			SampleRate: d.DefaultSampleRate,
			Default:    def != nil && def.Name == d.Name && def.HostApi == d.HostApi,
		})
	}
	return out, nil
}

func inputDevices() ([]*portaudio.DeviceInfo, error) {
	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices failed: %w", err)
	}
	var inputs []*portaudio.DeviceInfo
	for _, d := range all {
		if d.MaxInputChannels > 0 {
			inputs = append(inputs, d)
		}
	}
	return inputs, nil
}

// Open selects the device and prepares stream parameters.
func (s *Source) Open(deviceIndex int, format audio.Format, framesPerBlock int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inited {
		return capture.ErrBusy
	}
	if format.BitDepth != 16 {
		return fmt.Errorf("portaudio: unsupported bit depth %d", format.BitDepth)
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: portaudio init failed: %v", capture.ErrDeviceUnavailable, err)
	}

	dev, err := s.pick(deviceIndex)
	if err != nil {
		_ = portaudio.Terminate()
		return err
	}
	s.params = portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: format.Channels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(format.SampleRate),
		FramesPerBuffer: framesPerBlock,
	}
	s.device = dev
	s.inited = true
	s.log.Info("using input device", "index", deviceIndex, "name", dev.Name)
	return nil
}

func (s *Source) pick(deviceIndex int) (*portaudio.DeviceInfo, error) {
	if deviceIndex == capture.DefaultDevice {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: no default input device: %v", capture.ErrDeviceUnavailable, err)
		}
		return dev, nil
	}
	inputs, err := inputDevices()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", capture.ErrDeviceUnavailable, err)
	}
	if deviceIndex < 0 || deviceIndex >= len(inputs) {
		return nil, fmt.Errorf("%w: index %d out of range (have %d)", capture.ErrDeviceUnavailable, deviceIndex, len(inputs))
	}
	return inputs[deviceIndex], nil
}

// Start opens the callback stream. The callback runs on PortAudio's thread.
func (s *Source) Start(deliver func(samples []int16)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inited {
		return capture.ErrNotOpen
	}
	if s.stream != nil {
		return capture.ErrBusy
	}
	stream, err := portaudio.OpenStream(s.params, func(in []int16) {
		deliver(in)
	})
	if err != nil {
		return fmt.Errorf("%w: open stream failed: %v", capture.ErrDeviceUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return fmt.Errorf("start stream failed: %w", err)
	}
	s.stream = stream
	return nil
}

// Close stops the stream and terminates PortAudio. Stream.Stop waits for the
// pending callback, so no delivery happens after Close returns.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inited {
		return nil
	}
	var errs []error
	if s.stream != nil {
		if err := s.stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop stream failed: %w", err))
		}
		if err := s.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stream failed: %w", err))
		}
		s.stream = nil
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, err)
	}
	s.inited = false
	s.device = nil
	return errors.Join(errs...)
}
