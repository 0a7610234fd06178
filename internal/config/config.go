package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds configurable parameters.
type Config struct {
	// Transcription server
	ServerURL      string `json:"SERVER_URL" yaml:"server_url"`
	APIKey         string `json:"API_KEY" yaml:"api_key"`
	Language       string `json:"LANGUAGE" yaml:"language"`
	TEXTPath       string `json:"TEXT_PATH" yaml:"text_path"`
	RequestTimeout int    `json:"REQUEST_TIMEOUT" yaml:"request_timeout"`
	ProbeTimeout   int    `json:"PROBE_TIMEOUT" yaml:"probe_timeout"`
	EnableHTTP2    bool   `json:"ENABLE_HTTP2" yaml:"enable_http2"`
	VerifySSL      bool   `json:"VERIFY_SSL" yaml:"verify_ssl"`

	// Recording
	RecordingsPath   string  `json:"RECORDINGS_PATH" yaml:"recordings_path"`
	FolderSuffix     string  `json:"FOLDER_SUFFIX" yaml:"folder_suffix"`
	InputDevice      int     `json:"INPUT_DEVICE" yaml:"input_device"`
	VolumeActivation bool    `json:"VOLUME_ACTIVATION" yaml:"volume_activation"`
	VolumeThreshold  float64 `json:"VOLUME_THRESHOLD" yaml:"volume_threshold"`
	SilenceTimeoutMs int     `json:"SILENCE_TIMEOUT_MS" yaml:"silence_timeout_ms"`

	// Pipeline
	TranscriptionEnabled bool   `json:"TRANSCRIPTION_ENABLED" yaml:"transcription_enabled"`
	KeepRawResponse      bool   `json:"KEEP_RAW_RESPONSE" yaml:"keep_raw_response"`
	MaxConcurrent        int    `json:"MAX_CONCURRENT_TRANSCRIPTIONS" yaml:"max_concurrent_transcriptions"`
	FFmpegPath           string `json:"FFMPEG_PATH" yaml:"ffmpeg_path"`

	// Collaborators
	CopyToClipboard      bool `json:"COPY_TO_CLIPBOARD" yaml:"copy_to_clipboard"`
	AutoPaste            bool `json:"AUTO_PASTE" yaml:"auto_paste"`
	Notification         bool `json:"NOTIFICATION" yaml:"notification"`
	RecordingNotify      bool `json:"RECORDING_NOTIFICATION" yaml:"recording_notification"`
	VerboseNotifications bool `json:"VERBOSE_NOTIFICATIONS" yaml:"verbose_notifications"`
	ConsoleControl       bool `json:"CONSOLE_CONTROL" yaml:"console_control"`

	// Operations
	MetricsAddr    string `json:"METRICS_ADDR" yaml:"metrics_addr"`
	LogLevel       string `json:"LOG_LEVEL" yaml:"log_level"`
	LogFormat      string `json:"LOG_FORMAT" yaml:"log_format"`
	ReloadInterval int    `json:"RELOAD_INTERVAL" yaml:"reload_interval"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ServerURL:      "http://127.0.0.1:8080",
		APIKey:         "",
		Language:       "auto",
		TEXTPath:       "",
		RequestTimeout: 300,
		ProbeTimeout:   10,
		EnableHTTP2:    true,
		VerifySSL:      true,

		RecordingsPath:   defaultRecordingsPath(),
		FolderSuffix:     "_Recording",
		InputDevice:      -1,
		VolumeActivation: false,
		VolumeThreshold:  0.01,
		SilenceTimeoutMs: 2000,

		TranscriptionEnabled: true,
		KeepRawResponse:      false,
		MaxConcurrent:        2,
		FFmpegPath:           "",

		CopyToClipboard:      true,
		AutoPaste:            false,
		Notification:         false,
		RecordingNotify:      true,
		VerboseNotifications: false,
		ConsoleControl:       true,

		MetricsAddr:    "",
		LogLevel:       "info",
		LogFormat:      "text",
		ReloadInterval: 5,
	}
}

func defaultRecordingsPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "Documents", "Recordings")
	}
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, "Recordings")
}

// SilenceTimeout returns SilenceTimeoutMs as a duration.
func (c Config) SilenceTimeout() time.Duration {
	return time.Duration(c.SilenceTimeoutMs) * time.Millisecond
}

// RequestTimeoutDuration returns RequestTimeout seconds as a duration.
func (c Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

// ProbeTimeoutDuration returns ProbeTimeout seconds as a duration.
func (c Config) ProbeTimeoutDuration() time.Duration {
	return time.Duration(c.ProbeTimeout) * time.Second
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load loads config from a JSON or YAML file, chosen by extension. An empty
// path yields the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: open %q: %w", path, err)
	}
	return Decode(data, isYAML(path))
}

// Decode parses data over the defaults. Unknown keys are rejected.
func Decode(data []byte, asYAML bool) (Config, error) {
	cfg := DefaultConfig()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if asYAML {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("config: decode yaml: %w", err)
		}
		return cfg, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: decode json: %w", err)
	}
	return cfg, nil
}

// SaveDefault writes the default config to path, as YAML when the extension
// says so and JSON otherwise.
func SaveDefault(path string) error {
	cfg := DefaultConfig()
	var (
		b   []byte
		err error
	)
	if isYAML(path) {
		b, err = yaml.Marshal(cfg)
	} else {
		b, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Validate verifies config fields and returns every invalid value found.
func Validate(cfg *Config) error {
	var errs []error
	if cfg.ServerURL == "" {
		errs = append(errs, errors.New("SERVER_URL is empty"))
	} else if u, err := url.Parse(cfg.ServerURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid SERVER_URL: %q (want http(s)://host[:port])", cfg.ServerURL))
	}
	if cfg.Language == "" {
		errs = append(errs, errors.New("LANGUAGE is empty (use \"auto\" for detection)"))
	}
	if cfg.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid REQUEST_TIMEOUT: %d (must be > 0)", cfg.RequestTimeout))
	}
	if cfg.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid PROBE_TIMEOUT: %d (must be > 0)", cfg.ProbeTimeout))
	}
	if cfg.InputDevice < -1 {
		errs = append(errs, fmt.Errorf("invalid INPUT_DEVICE: %d (-1 for default, else >= 0)", cfg.InputDevice))
	}
	if cfg.VolumeThreshold < 0 || cfg.VolumeThreshold > 1 {
		errs = append(errs, fmt.Errorf("invalid VOLUME_THRESHOLD: %v (allowed 0..1)", cfg.VolumeThreshold))
	}
	if cfg.SilenceTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("invalid SILENCE_TIMEOUT_MS: %d (must be > 0)", cfg.SilenceTimeoutMs))
	}
	if cfg.MaxConcurrent < 1 {
		errs = append(errs, fmt.Errorf("invalid MAX_CONCURRENT_TRANSCRIPTIONS: %d (must be >= 1)", cfg.MaxConcurrent))
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL: %s (allowed: debug, info, warn, error)", cfg.LogLevel))
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid LOG_FORMAT: %s (allowed: text, json)", cfg.LogFormat))
	}
	if cfg.ReloadInterval < 0 {
		errs = append(errs, fmt.Errorf("invalid RELOAD_INTERVAL: %d (0 disables, else seconds)", cfg.ReloadInterval))
	}
	return errors.Join(errs...)
}

// InitRecordingsPath makes RecordingsPath absolute and creates it.
func InitRecordingsPath(cfg *Config) error {
	if cfg.RecordingsPath == "" {
		cfg.RecordingsPath = defaultRecordingsPath()
	}
	abs, err := filepath.Abs(cfg.RecordingsPath)
	if err != nil {
		return fmt.Errorf("config: recordings path %q: %w", cfg.RecordingsPath, err)
	}
	info, err := os.Stat(abs)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("config: recordings path %q exists but is not a directory", abs)
	case os.IsNotExist(err):
		if err := os.MkdirAll(abs, 0755); err != nil {
			return fmt.Errorf("config: create recordings path: %w", err)
		}
	case err != nil:
		return fmt.Errorf("config: recordings path %q: %w", abs, err)
	}
	cfg.RecordingsPath = abs
	return nil
}
