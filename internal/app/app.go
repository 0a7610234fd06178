// Package app wires the recorder, the transcription pipeline and the
// desktop collaborators into the program's run modes.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"recwhisper/internal/capture"
	"recwhisper/internal/capture/pa"
	"recwhisper/internal/config"
	"recwhisper/internal/event"
	"recwhisper/internal/metrics"
	"recwhisper/internal/notify"
	"recwhisper/internal/record"
	"recwhisper/internal/transcribe"
)

// ShutdownGrace bounds how long in-flight transcriptions may finish after
// the program is asked to exit.
const ShutdownGrace = 30 * time.Second

// Options carries what main resolved besides the config itself.
type Options struct {
	// ConfigPath is watched for live changes when set.
	ConfigPath string
	// Overrides re-applies command-line flags to every reloaded config.
	Overrides func(*config.Config)
	Log       *slog.Logger
	Stdin     io.Reader
	Stdout    io.Writer
}

func (o Options) logger() *slog.Logger {
	if o.Log != nil {
		return o.Log
	}
	return slog.Default()
}

func (o Options) stdout() io.Writer {
	if o.Stdout != nil {
		return o.Stdout
	}
	return os.Stdout
}

// RunRecordMode records from the microphone until ctx ends or the console
// receives quit. Finished sessions are transcribed in the background.
func RunRecordMode(ctx context.Context, cfg config.Config, opts Options) error {
	base := opts.logger()
	log := base.With("component", "app")
	if err := config.InitRecordingsPath(&cfg); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	notifier := notify.New(notifySettings(cfg), base)
	deliver := newDeliverer(log, cfg.CopyToClipboard, cfg.AutoPaste, notifier.Beep)

	pipeEvents := event.NewDispatcher(64, deliver.Handle, notifier.Handle)
	asrClient := newASRClient(cfg, base, m)
	pipe := transcribe.New(newConverter(cfg, base, m), asrClient, pipelineSettings(cfg),
		transcribe.WithLogger(base),
		transcribe.WithMetrics(m),
		transcribe.WithConcurrency(cfg.MaxConcurrent),
		transcribe.WithHandler(pipeEvents.Emit),
	)

	var transcribing atomic.Bool
	transcribing.Store(cfg.TranscriptionEnabled)
	submit := func(e event.Event) {
		if e.Kind != event.RecordingStopped {
			return
		}
		if !transcribing.Load() {
			log.Info("transcription disabled, recording kept", "audio", e.AudioPath)
			return
		}
		s := record.FileSession(e.AudioPath)
		s.ID = e.SessionID
		if err := pipe.Submit(s); err != nil {
			log.Warn("recording not transcribed", "session", e.SessionID, "err", err)
		}
	}
	recEvents := event.NewDispatcher(64, notifier.Handle, submit)

	engine := capture.NewEngine(pa.New(base), capture.WithLogger(base), capture.WithMetrics(m))
	rec, err := record.New(engine, recordSettings(cfg),
		record.WithLogger(base),
		record.WithMetrics(m),
		record.WithHandler(recEvents.Emit),
	)
	if err != nil {
		recEvents.Close()
		pipeEvents.Close()
		return err
	}

	var watcher *config.Watcher
	if opts.ConfigPath != "" && cfg.ReloadInterval > 0 {
		watcher, err = config.NewWatcher(opts.ConfigPath, func(prev, next config.Config) {
			if keys := restartOnly(prev, next); len(keys) > 0 {
				log.Warn("changed settings take effect after restart", "keys", keys)
			}
			if prev.VolumeActivation != next.VolumeActivation || prev.VolumeThreshold != next.VolumeThreshold || prev.SilenceTimeoutMs != next.SilenceTimeoutMs {
				if err := rec.SetVolumeActivation(next.VolumeActivation, next.VolumeThreshold, next.SilenceTimeout()); err != nil {
					log.Warn("apply volume activation", "err", err)
				}
			}
			if prev.InputDevice != next.InputDevice {
				if err := rec.SetInputDevice(next.InputDevice); err != nil {
					log.Warn("apply input device", "err", err)
				}
			}
			transcribing.Store(next.TranscriptionEnabled)
			pipe.UpdateSettings(pipelineSettings(next))
			notifier.UpdateSettings(notifySettings(next))
			deliver.update(next.CopyToClipboard, next.AutoPaste)
		},
			config.WithInterval(time.Duration(cfg.ReloadInterval)*time.Second),
			config.WithOverrides(opts.Overrides),
			config.WithWatcherLogger(base),
		)
		if err != nil {
			log.Warn("config reload disabled", "err", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			return srv.Shutdown(sctx)
		})
	}

	g.Go(func() error {
		res := asrClient.Probe(gctx, cfg.ServerURL, cfg.APIKey)
		if gctx.Err() != nil {
			return nil
		}
		if res.Reachable {
			log.Info("transcription server reachable", "url", cfg.ServerURL)
			notifier.Beep()
			return nil
		}
		log.Warn("transcription server unreachable, recordings are still saved", "url", cfg.ServerURL)
		notifier.Notify("Whisper Server Warning", "Cannot reach Whisper server - check SERVER_URL")
		return nil
	})

	if cfg.ConsoleControl && opts.Stdin != nil {
		c := &console{rec: rec, out: opts.stdout(), devices: printDevices, quit: cancel}
		g.Go(func() error { return c.run(gctx, opts.Stdin) })
	}

	log.Info("ready", "recordings", cfg.RecordingsPath, "volume_activation", cfg.VolumeActivation, "server", cfg.ServerURL)
	<-gctx.Done()
	log.Info("shutting down")

	sctx, scancel := context.WithTimeout(context.Background(), ShutdownGrace)
	defer scancel()
	var errs []error
	if watcher != nil {
		watcher.Stop()
	}
	if err := rec.Close(sctx); err != nil {
		errs = append(errs, fmt.Errorf("app: close recorder: %w", err))
	}
	recEvents.Close()
	if err := pipe.Shutdown(sctx); err != nil {
		errs = append(errs, fmt.Errorf("app: transcriptions abandoned: %w", err))
	}
	pipeEvents.Close()
	errs = append(errs, g.Wait())
	return errors.Join(errs...)
}

// RunFileMode transcribes an existing audio file. The transcript is written
// next to the file; outputPath, when set, receives the bare text too.
func RunFileMode(ctx context.Context, cfg config.Config, inputPath, outputPath string, opts Options) error {
	base := opts.logger()
	log := base.With("component", "app")
	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("file '%s' stat failed: %w", inputPath, err)
	}

	m := metrics.Discard()
	notifier := notify.New(notifySettings(cfg), base)
	deliver := newDeliverer(log, cfg.CopyToClipboard, cfg.AutoPaste, notifier.Beep)
	pipe := transcribe.New(newConverter(cfg, base, m), newASRClient(cfg, base, m), pipelineSettings(cfg),
		transcribe.WithLogger(base),
		transcribe.WithMetrics(m),
		transcribe.WithHandler(func(e event.Event) {
			deliver.Handle(e)
			notifier.Handle(e)
		}),
	)
	defer pipe.Shutdown(context.Background())

	out := pipe.Run(ctx, record.FileSession(inputPath))
	switch out.Kind {
	case event.TranscriptionFailed:
		return out.Err
	case event.TranscriptionEmpty:
		fmt.Fprintln(opts.stdout(), "no speech detected")
		return nil
	}

	fmt.Fprintln(opts.stdout(), out.Text)
	if outputPath != "" {
		if err := os.WriteFile(outputPath, []byte(out.Text), 0644); err != nil {
			return fmt.Errorf("app: write output: %w", err)
		}
	}
	return out.Err
}

// RunProbeMode checks server reachability and prints every attempt. It
// returns an error when no probe path answered.
func RunProbeMode(ctx context.Context, cfg config.Config, opts Options) error {
	client := newASRClient(cfg, opts.logger(), metrics.Discard())
	w := opts.stdout()
	res := client.Probe(ctx, cfg.ServerURL, cfg.APIKey)
	for _, a := range res.Attempts {
		if a.Err != nil {
			fmt.Fprintf(w, "GET %s%s -> error: %v (%s)\n", cfg.ServerURL, a.Path, a.Err, a.Elapsed.Round(time.Millisecond))
			continue
		}
		fmt.Fprintf(w, "GET %s%s -> %d (%s)\n", cfg.ServerURL, a.Path, a.Status, a.Elapsed.Round(time.Millisecond))
	}
	if !res.Reachable {
		return fmt.Errorf("server %s is not reachable", cfg.ServerURL)
	}
	fmt.Fprintf(w, "server %s is reachable\n", cfg.ServerURL)
	return nil
}

// RunListDevices prints the input devices with the index INPUT_DEVICE takes.
func RunListDevices(opts Options) error {
	return printDevices(opts.stdout())
}

func printDevices(w io.Writer) error {
	devs, err := pa.Devices()
	if err != nil {
		return err
	}
	if len(devs) == 0 {
		fmt.Fprintln(w, "no input devices")
		return nil
	}
	for _, d := range devs {
		mark := ""
		if d.Default {
			mark = " (default)"
		}
		fmt.Fprintf(w, "[%d] %s, %d ch, %.0f Hz%s\n", d.Index, d.Name, d.Channels, d.SampleRate, mark)
	}
	return nil
}
