package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"recwhisper/internal/record"
)

// controller is the part of *record.Recorder the console drives.
type controller interface {
	StartRecording(path, suffix string) error
	StopRecording() error
	ToggleRecording() error
	State() record.State
	Current() (record.Session, bool)
}

const consoleHelp = "commands: start, stop, toggle, status, devices, help, quit"

// console reads commands from in, one per line, until ctx ends, quit is
// typed or in reaches EOF.
type console struct {
	rec     controller
	out     io.Writer
	devices func(io.Writer) error
	quit    func()
}

func (c *console) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(c.out, consoleHelp)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if c.exec(strings.TrimSpace(line)) {
				c.quit()
				return nil
			}
		}
	}
}

// exec runs one command and reports whether the console should exit.
func (c *console) exec(cmd string) bool {
	var err error
	switch strings.ToLower(cmd) {
	case "":
		return false
	case "start":
		err = c.rec.StartRecording("", "")
	case "stop":
		err = c.rec.StopRecording()
	case "toggle", "t":
		err = c.rec.ToggleRecording()
	case "status", "s":
		c.status()
	case "devices":
		if c.devices != nil {
			err = c.devices(c.out)
		}
	case "help", "?":
		fmt.Fprintln(c.out, consoleHelp)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(c.out, "unknown command %q; %s\n", cmd, consoleHelp)
	}
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
	}
	return false
}

func (c *console) status() {
	s, ok := c.rec.Current()
	if !ok {
		fmt.Fprintf(c.out, "state: %s\n", c.rec.State())
		return
	}
	fmt.Fprintf(c.out, "state: %s, session %s (%s, %s) -> %s\n",
		c.rec.State(), s.ID, s.Trigger, time.Since(s.StartedAt).Round(time.Second), s.AudioPath)
}
