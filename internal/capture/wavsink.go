package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"recwhisper/internal/audio"
)

// Offsets of the RIFF and data chunk sizes in the canonical 44 byte header
// the go-audio encoder writes when no metadata is attached.
const (
	riffSizeOffset = 4
	dataSizeOffset = 40
	wavHeaderSize  = 44
)

// wavSink streams PCM blocks into a WAV file. After every block the header
// sizes are patched so the file stays playable if the process dies.
type wavSink struct {
	path   string
	file   *os.File
	enc    *wav.Encoder
	format *goaudio.Format
	buf    []int
	frames int
}

func createWAVSink(path string, f audio.Format) (*wavSink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("capture: create wav %s: %w", path, err)
	}
	return &wavSink{
		path:   path,
		file:   file,
		enc:    wav.NewEncoder(file, f.SampleRate, f.BitDepth, f.Channels, 1),
		format: &goaudio.Format{NumChannels: f.Channels, SampleRate: f.SampleRate},
	}, nil
}

// Write appends one block and checkpoints the header.
func (s *wavSink) Write(block []byte) error {
	n := len(block) / 2
	if n == 0 {
		return nil
	}
	if cap(s.buf) < n {
		s.buf = make([]int, n)
	}
	s.buf = s.buf[:n]
	for i := 0; i < n; i++ {
		s.buf[i] = int(int16(binary.LittleEndian.Uint16(block[i*2:])))
	}
	ib := &goaudio.IntBuffer{Format: s.format, Data: s.buf, SourceBitDepth: 16}
	if err := s.enc.Write(ib); err != nil {
		return fmt.Errorf("capture: wav write: %w", err)
	}
	s.frames += n
	return s.checkpoint()
}

func (s *wavSink) checkpoint() error {
	total := s.enc.WrittenBytes
	if total < wavHeaderSize {
		return nil
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(total-8))
	if _, err := s.file.WriteAt(b[:], riffSizeOffset); err != nil {
		return fmt.Errorf("capture: wav checkpoint: %w", err)
	}
	binary.LittleEndian.PutUint32(b[:], uint32(total-wavHeaderSize))
	if _, err := s.file.WriteAt(b[:], dataSizeOffset); err != nil {
		return fmt.Errorf("capture: wav checkpoint: %w", err)
	}
	return nil
}

// Close finalises the header and releases the file handle.
func (s *wavSink) Close() error {
	var errs []error
	if s.frames == 0 {
		// the encoder only writes its header with the first buffer
		if err := s.enc.Write(&goaudio.IntBuffer{Format: s.format, Data: []int{}, SourceBitDepth: 16}); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.enc.Close(); err != nil {
		errs = append(errs, fmt.Errorf("capture: wav close: %w", err))
	}
	if err := s.file.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
