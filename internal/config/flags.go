package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// FlagValues holds parsed flags with explicit set tracking.
type FlagValues struct {
	ServerURL               string
	ServerURLSet            bool
	APIKey                  string
	APIKeySet               bool
	Language                string
	LanguageSet             bool
	TEXTPath                string
	TEXTPathSet             bool
	RequestTimeout          int
	RequestTimeoutSet       bool
	EnableHTTP2             bool
	EnableHTTP2Set          bool
	VerifySSL               bool
	VerifySSLSet            bool
	RecordingsPath          string
	RecordingsPathSet       bool
	FolderSuffix            string
	FolderSuffixSet         bool
	InputDevice             int
	InputDeviceSet          bool
	VolumeActivation        bool
	VolumeActivationSet     bool
	VolumeThreshold         float64
	VolumeThresholdSet      bool
	SilenceTimeoutMs        int
	SilenceTimeoutMsSet     bool
	TranscriptionEnabled    bool
	TranscriptionEnabledSet bool
	KeepRawResponse         bool
	KeepRawResponseSet      bool
	FFmpegPath              string
	FFmpegPathSet           bool
	CopyToClipboard         bool
	CopyToClipboardSet      bool
	AutoPaste               bool
	AutoPasteSet            bool
	Notification            bool
	NotificationSet         bool
	MetricsAddr             string
	MetricsAddrSet          bool
	LogLevel                string
	LogLevelSet             bool

	OutputPath    string
	OutputPathSet bool
}

type stringFlag struct {
	target *string
	set    *bool
}

func (s *stringFlag) String() string {
	if s == nil || s.target == nil {
		return ""
	}
	return *s.target
}

func (s *stringFlag) Set(v string) error {
	if s.target != nil {
		*s.target = v
	}
	if s.set != nil {
		*s.set = true
	}
	return nil
}

type intFlag struct {
	target *int
	set    *bool
}

func (i *intFlag) String() string {
	if i == nil || i.target == nil {
		return ""
	}
	return fmt.Sprintf("%d", *i.target)
}

func (i *intFlag) Set(v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	if i.target != nil {
		*i.target = n
	}
	if i.set != nil {
		*i.set = true
	}
	return nil
}

type floatFlag struct {
	target *float64
	set    *bool
}

func (f *floatFlag) String() string {
	if f == nil || f.target == nil {
		return ""
	}
	return fmt.Sprintf("%v", *f.target)
}

func (f *floatFlag) Set(v string) error {
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return err
	}
	if f.target != nil {
		*f.target = n
	}
	if f.set != nil {
		*f.set = true
	}
	return nil
}

type boolFlag struct {
	target *bool
	set    *bool
}

func (b *boolFlag) String() string {
	if b == nil || b.target == nil {
		return ""
	}
	return fmt.Sprintf("%v", *b.target)
}

func parseBoolExt(v string) (bool, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch v {
	case "1", "true", "yes", "y":
		return true, nil
	case "0", "false", "no", "n":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean: %s", v)
}

func (b *boolFlag) Set(v string) error {
	n, err := parseBoolExt(v)
	if err != nil {
		return err
	}
	if b.target != nil {
		*b.target = n
	}
	if b.set != nil {
		*b.set = true
	}
	return nil
}

// BindFlags registers all flags and returns the populated FlagValues.
func BindFlags(fs *flag.FlagSet) *FlagValues {
	fv := &FlagValues{}

	fs.Var(&stringFlag{&fv.ServerURL, &fv.ServerURLSet}, "server-url", "transcription server base URL")
	fs.Var(&stringFlag{&fv.APIKey, &fv.APIKeySet}, "api-key", "bearer token for the transcription server")
	fs.Var(&stringFlag{&fv.Language, &fv.LanguageSet}, "language", "language code or auto")
	fs.Var(&stringFlag{&fv.TEXTPath, &fv.TEXTPathSet}, "text-path", "JSON path to extract text from non-standard responses")
	fs.Var(&intFlag{&fv.RequestTimeout, &fv.RequestTimeoutSet}, "request-timeout", "upload timeout seconds")
	fs.Var(&boolFlag{&fv.EnableHTTP2, &fv.EnableHTTP2Set}, "enable-http2", "enable HTTP/2 (true/false)")
	fs.Var(&boolFlag{&fv.VerifySSL, &fv.VerifySSLSet}, "verify-ssl", "verify TLS certificates (true/false)")

	fs.Var(&stringFlag{&fv.RecordingsPath, &fv.RecordingsPathSet}, "recordings-path", "directory for recording sessions")
	fs.Var(&stringFlag{&fv.FolderSuffix, &fv.FolderSuffixSet}, "folder-suffix", "suffix appended to session folder names")
	fs.Var(&intFlag{&fv.InputDevice, &fv.InputDeviceSet}, "input-device", "input device index (-1 for default)")
	fs.Var(&boolFlag{&fv.VolumeActivation, &fv.VolumeActivationSet}, "volume-activation", "start recording on voice (true/false)")
	fs.Var(&floatFlag{&fv.VolumeThreshold, &fv.VolumeThresholdSet}, "volume-threshold", "RMS volume threshold 0..1")
	fs.Var(&intFlag{&fv.SilenceTimeoutMs, &fv.SilenceTimeoutMsSet}, "silence-timeout", "silence timeout milliseconds")

	fs.Var(&boolFlag{&fv.TranscriptionEnabled, &fv.TranscriptionEnabledSet}, "transcription", "transcribe finished recordings (true/false)")
	fs.Var(&boolFlag{&fv.KeepRawResponse, &fv.KeepRawResponseSet}, "keep-raw-response", "save raw server JSON next to the transcript (true/false)")
	fs.Var(&stringFlag{&fv.FFmpegPath, &fv.FFmpegPathSet}, "ffmpeg", "ffmpeg binary path")

	fs.Var(&boolFlag{&fv.CopyToClipboard, &fv.CopyToClipboardSet}, "clipboard", "copy transcripts to the clipboard (true/false)")
	fs.Var(&boolFlag{&fv.AutoPaste, &fv.AutoPasteSet}, "auto-paste", "paste after copying (true/false)")
	fs.Var(&boolFlag{&fv.Notification, &fv.NotificationSet}, "notification", "enable notifications (true/false)")

	fs.Var(&stringFlag{&fv.MetricsAddr, &fv.MetricsAddrSet}, "metrics-addr", "listen address for /metrics, empty disables")
	fs.Var(&stringFlag{&fv.LogLevel, &fv.LogLevelSet}, "log-level", "debug, info, warn or error")

	fs.Var(&stringFlag{&fv.OutputPath, &fv.OutputPathSet}, "output", "output txt path for -file mode")

	return fv
}

// ApplyFlags applies present flags to the config.
func ApplyFlags(cfg *Config, fv *FlagValues) {
	if fv.ServerURLSet {
		cfg.ServerURL = fv.ServerURL
	}
	if fv.APIKeySet {
		cfg.APIKey = fv.APIKey
	}
	if fv.LanguageSet {
		cfg.Language = fv.Language
	}
	if fv.TEXTPathSet {
		cfg.TEXTPath = fv.TEXTPath
	}
	if fv.RequestTimeoutSet {
		cfg.RequestTimeout = fv.RequestTimeout
	}
	if fv.EnableHTTP2Set {
		cfg.EnableHTTP2 = fv.EnableHTTP2
	}
	if fv.VerifySSLSet {
		cfg.VerifySSL = fv.VerifySSL
	}

	if fv.RecordingsPathSet {
		cfg.RecordingsPath = fv.RecordingsPath
	}
	if fv.FolderSuffixSet {
		cfg.FolderSuffix = fv.FolderSuffix
	}
	if fv.InputDeviceSet {
		cfg.InputDevice = fv.InputDevice
	}
	if fv.VolumeActivationSet {
		cfg.VolumeActivation = fv.VolumeActivation
	}
	if fv.VolumeThresholdSet {
		cfg.VolumeThreshold = fv.VolumeThreshold
	}
	if fv.SilenceTimeoutMsSet {
		cfg.SilenceTimeoutMs = fv.SilenceTimeoutMs
	}

	if fv.TranscriptionEnabledSet {
		cfg.TranscriptionEnabled = fv.TranscriptionEnabled
	}
	if fv.KeepRawResponseSet {
		cfg.KeepRawResponse = fv.KeepRawResponse
	}
	if fv.FFmpegPathSet {
		cfg.FFmpegPath = fv.FFmpegPath
	}

	if fv.CopyToClipboardSet {
		cfg.CopyToClipboard = fv.CopyToClipboard
	}
	if fv.AutoPasteSet {
		cfg.AutoPaste = fv.AutoPaste
	}
	if fv.NotificationSet {
		cfg.Notification = fv.Notification
	}

	if fv.MetricsAddrSet {
		cfg.MetricsAddr = fv.MetricsAddr
	}
	if fv.LogLevelSet {
		cfg.LogLevel = fv.LogLevel
	}
}

// AnySet reports whether any flag was explicitly set by the user.
func (fv *FlagValues) AnySet() bool {
	return fv.ServerURLSet ||
		fv.APIKeySet ||
		fv.LanguageSet ||
		fv.TEXTPathSet ||
		fv.RequestTimeoutSet ||
		fv.EnableHTTP2Set ||
		fv.VerifySSLSet ||
		fv.RecordingsPathSet ||
		fv.FolderSuffixSet ||
		fv.InputDeviceSet ||
		fv.VolumeActivationSet ||
		fv.VolumeThresholdSet ||
		fv.SilenceTimeoutMsSet ||
		fv.TranscriptionEnabledSet ||
		fv.KeepRawResponseSet ||
		fv.FFmpegPathSet ||
		fv.CopyToClipboardSet ||
		fv.AutoPasteSet ||
		fv.NotificationSet ||
		fv.MetricsAddrSet ||
		fv.LogLevelSet ||
		fv.OutputPathSet
}
