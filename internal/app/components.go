package app

import (
	"log/slog"

	"recwhisper/internal/asr"
	"recwhisper/internal/audio/convert"
	"recwhisper/internal/audio/ffmpeg"
	"recwhisper/internal/config"
	"recwhisper/internal/metrics"
	"recwhisper/internal/notify"
	"recwhisper/internal/record"
	"recwhisper/internal/transcribe"
)

func newASRClient(cfg config.Config, log *slog.Logger, m *metrics.Metrics) *asr.Client {
	return asr.New(
		asr.WithHTTPClient(asr.NewHTTPClient(cfg.VerifySSL, cfg.EnableHTTP2)),
		asr.WithTimeout(cfg.RequestTimeoutDuration()),
		asr.WithProbeTimeout(cfg.ProbeTimeoutDuration()),
		asr.WithTextPath(cfg.TEXTPath),
		asr.WithLogger(log),
		asr.WithMetrics(m),
	)
}

func newConverter(cfg config.Config, log *slog.Logger, m *metrics.Metrics) *convert.Converter {
	opts := []convert.Option{convert.WithLogger(log), convert.WithMetrics(m)}
	rs := ffmpeg.New(cfg.FFmpegPath, log)
	if rs.Available() {
		opts = append(opts, convert.WithResampler(rs))
	} else {
		log.Warn("ffmpeg not found, non-canonical audio uses the built-in downmix", "ffmpeg", cfg.FFmpegPath)
	}
	return convert.New(opts...)
}

func recordSettings(cfg config.Config) record.Settings {
	return record.Settings{
		RecordingsPath:   cfg.RecordingsPath,
		FolderSuffix:     cfg.FolderSuffix,
		InputDevice:      cfg.InputDevice,
		VolumeActivation: cfg.VolumeActivation,
		VolumeThreshold:  cfg.VolumeThreshold,
		SilenceTimeout:   cfg.SilenceTimeout(),
	}
}

func pipelineSettings(cfg config.Config) transcribe.Settings {
	return transcribe.Settings{
		ServerURL:       cfg.ServerURL,
		APIKey:          cfg.APIKey,
		Language:        cfg.Language,
		KeepRawResponse: cfg.KeepRawResponse,
	}
}

func notifySettings(cfg config.Config) notify.Settings {
	return notify.Settings{
		Enabled:   cfg.Notification,
		Recording: cfg.RecordingNotify,
		Verbose:   cfg.VerboseNotifications,
		Clipboard: cfg.CopyToClipboard,
	}
}

// restartOnly lists settings that are read once at startup.
func restartOnly(old, new config.Config) []string {
	var keys []string
	check := func(changed bool, key string) {
		if changed {
			keys = append(keys, key)
		}
	}
	check(old.TEXTPath != new.TEXTPath, "TEXT_PATH")
	check(old.RequestTimeout != new.RequestTimeout, "REQUEST_TIMEOUT")
	check(old.ProbeTimeout != new.ProbeTimeout, "PROBE_TIMEOUT")
	check(old.EnableHTTP2 != new.EnableHTTP2, "ENABLE_HTTP2")
	check(old.VerifySSL != new.VerifySSL, "VERIFY_SSL")
	check(old.RecordingsPath != new.RecordingsPath, "RECORDINGS_PATH")
	check(old.FolderSuffix != new.FolderSuffix, "FOLDER_SUFFIX")
	check(old.MaxConcurrent != new.MaxConcurrent, "MAX_CONCURRENT_TRANSCRIPTIONS")
	check(old.FFmpegPath != new.FFmpegPath, "FFMPEG_PATH")
	check(old.ConsoleControl != new.ConsoleControl, "CONSOLE_CONTROL")
	check(old.MetricsAddr != new.MetricsAddr, "METRICS_ADDR")
	check(old.LogLevel != new.LogLevel, "LOG_LEVEL")
	check(old.LogFormat != new.LogFormat, "LOG_FORMAT")
	check(old.ReloadInterval != new.ReloadInterval, "RELOAD_INTERVAL")
	return keys
}
