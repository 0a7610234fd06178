// Package capture owns the audio input device. It turns the driver's push
// callbacks into an ordered block stream delivered on a single goroutine and
// optionally streams those blocks into a WAV file.
package capture

import (
	"errors"

	"recwhisper/internal/audio"
)

var (
	// ErrDeviceUnavailable is returned when the requested input device does
	// not exist or cannot be opened.
	ErrDeviceUnavailable = errors.New("capture: input device unavailable")
	// ErrBusy is returned when the engine is already open or running.
	ErrBusy = errors.New("capture: engine busy")
	// ErrNotOpen is returned by Start before a successful Open.
	ErrNotOpen = errors.New("capture: engine not open")
)

// DefaultDevice selects the system default input device.
const DefaultDevice = -1

// Source is an audio input device driver.
//
// Deliver callbacks may run on a driver-owned thread and must return
// quickly. The samples slice is only valid for the duration of the call.
// After Close returns no further callbacks are made.
type Source interface {
	Open(deviceIndex int, format audio.Format, framesPerBlock int) error
	Start(deliver func(samples []int16)) error
	Close() error
}

// Consumer receives captured blocks of little-endian int16 mono PCM. It is
// called on the engine's delivery goroutine and owns the block it is given.
type Consumer func(block []byte)
