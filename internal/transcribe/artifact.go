package transcribe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"recwhisper/internal/audio/convert"
)

const (
	TranscriptFileName  = "transcription.txt"
	RawResponseFileName = "transcription.json"
)

// FormatDuration renders d as mm:ss, or hh:mm:ss from one hour up.
func FormatDuration(d time.Duration) string {
	total := int(d.Round(time.Second) / time.Second)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func audioDuration(path string) string {
	info, err := convert.Inspect(path)
	if err != nil || info.Duration <= 0 {
		return "Unknown"
	}
	return FormatDuration(info.Duration)
}

// renderTranscript builds the transcript file body.
func renderTranscript(generated time.Time, audioPath, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transcription generated on: %s\n", generated.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Audio file: %s\n", filepath.Base(audioPath))
	fmt.Fprintf(&b, "Duration: %s\n\n", audioDuration(audioPath))
	fmt.Fprintf(&b, "Transcription:\n%s", text)
	return b.String()
}

// writeTranscript writes transcription.txt next to audioPath and returns its
// path.
func writeTranscript(generated time.Time, audioPath, text string) (string, error) {
	path := filepath.Join(filepath.Dir(audioPath), TranscriptFileName)
	if err := writeFileAtomic(path, []byte(renderTranscript(generated, audioPath, text))); err != nil {
		return "", fmt.Errorf("transcribe: save transcript: %w", err)
	}
	return path, nil
}

func writeRawResponse(audioPath string, raw []byte) (string, error) {
	path := filepath.Join(filepath.Dir(audioPath), RawResponseFileName)
	if err := writeFileAtomic(path, raw); err != nil {
		return "", fmt.Errorf("transcribe: save raw response: %w", err)
	}
	return path, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
