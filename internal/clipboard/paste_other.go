//go:build !windows

package clipboard

const lineEnding = "\n"

// Paste is not available on this platform.
func Paste(string) error {
	return ErrUnsupported
}
