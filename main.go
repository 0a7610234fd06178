package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"recwhisper/internal/app"
	"recwhisper/internal/config"
)

var defaultConfigFiles = []string{"config.yaml", "config.yml", "config.json"}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: %s [flags]

Records from the microphone into timestamped session folders and sends each
recording to a whisper server. Type "help" on the console for commands.

Modes:
  (default)          record; start/stop from the console or by voice
  -file <audio>      transcribe an existing recording and exit
  -test-connection   probe the server and exit
  -list-devices      list input devices and exit
  -init-config <p>   write a default config (.yaml or .json) and exit

Flags:
`, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = usage
	configPath := flag.String("config", "", "path to config file (.yaml, .yml or .json)")
	filePath := flag.String("file", "", "transcribe an existing audio file instead of recording")
	testConn := flag.Bool("test-connection", false, "probe the transcription server and exit")
	listDevices := flag.Bool("list-devices", false, "list input devices and exit")
	initConfig := flag.String("init-config", "", "write a default config to this path and exit")
	fv := config.BindFlags(flag.CommandLine)
	flag.Parse()

	if *initConfig != "" {
		if err := config.SaveDefault(*initConfig); err != nil {
			fmt.Fprintf(os.Stderr, "[main] failed to write default config: %v\n", err)
			return 1
		}
		fmt.Printf("[main] default config created at %s\n", *initConfig)
		return 0
	}

	opts := app.Options{Stdout: os.Stdout}
	if *listDevices {
		if err := app.RunListDevices(opts); err != nil {
			fmt.Fprintf(os.Stderr, "[main] list devices: %v\n", err)
			return 1
		}
		return 0
	}

	path := *configPath
	if path == "" {
		path = findConfig()
	}
	var cfg config.Config
	switch {
	case path != "":
		c, err := config.Load(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[main] failed to load config '%s': %v\n", path, err)
			return 1
		}
		cfg = c
	case !fv.AnySet() && *filePath == "" && !*testConn:
		// first run: write a config to edit
		if err := config.SaveDefault("config.yaml"); err != nil {
			fmt.Fprintf(os.Stderr, "[main] failed to write default config: %v\n", err)
			return 1
		}
		fmt.Println("[main] default config created at config.yaml. Please edit it and re-run.")
		return 0
	default:
		cfg = config.DefaultConfig()
	}

	config.ApplyFlags(&cfg, fv)
	if err := config.Validate(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "[main] invalid config:\n%v\n", err)
		return 1
	}

	log, err := app.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[main] %v\n", err)
		return 1
	}
	opts.Log = log
	opts.ConfigPath = path
	opts.Overrides = func(c *config.Config) { config.ApplyFlags(c, fv) }

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *testConn:
		err = app.RunProbeMode(ctx, cfg, opts)
	case *filePath != "":
		err = app.RunFileMode(ctx, cfg, *filePath, fv.OutputPath, opts)
	default:
		if cfg.ConsoleControl {
			opts.Stdin = os.Stdin
		}
		err = app.RunRecordMode(ctx, cfg, opts)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("exiting", "err", err)
		return 1
	}
	return 0
}

func findConfig() string {
	for _, name := range defaultConfigFiles {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}
