// Package clipboard puts transcripts on the system clipboard.
package clipboard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
)

// ErrUnsupported is returned by Paste on platforms without key injection.
var ErrUnsupported = errors.New("clipboard: paste not supported on this platform")

const (
	copyAttempts = 3
	retryDelay   = 100 * time.Millisecond
)

// write is swapped in tests.
var write = clipboard.WriteAll

// CleanText replaces NUL with a space, trims text, normalizes line breaks to
// the platform form and drops other control characters except tab.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n':
			b.WriteString(lineEnding)
		case r == '\t':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Copy cleans text and writes it to the clipboard, retrying while the
// clipboard is held by another process.
func Copy(text string) error {
	clean := CleanText(text)
	if clean == "" {
		return nil
	}
	var errs []error
	for attempt := 0; attempt < copyAttempts; attempt++ {
		err := write(clean)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
		if attempt < copyAttempts-1 {
			time.Sleep(retryDelay)
		}
	}
	return fmt.Errorf("clipboard: copy failed after %d attempts: %w", copyAttempts, errors.Join(errs...))
}
