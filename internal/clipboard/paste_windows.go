//go:build windows

package clipboard

import (
	"time"

	"github.com/atotto/clipboard"
	"github.com/micmonay/keybd_event"
)

const lineEnding = "\r\n"

// Paste copies text, sends Ctrl+V to the focused window and then puts the
// previous clipboard content back.
func Paste(text string) error {
	orig, _ := clipboard.ReadAll()
	if err := Copy(text); err != nil {
		return err
	}
	time.Sleep(80 * time.Millisecond)

	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return err
	}
	kb.HasCTRL(true)
	kb.SetKeys(keybd_event.VK_V)
	if err := kb.Launching(); err != nil {
		return err
	}
	time.Sleep(120 * time.Millisecond)
	if orig != "" {
		_ = clipboard.WriteAll(orig)
	}
	return nil
}
