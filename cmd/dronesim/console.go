package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/OCAP2/dronesim/internal/dispatcher"
	"github.com/OCAP2/dronesim/internal/handlers"
)

// keys maps console input to control commands, mirroring the keyboard
// shortcuts of the ready banner.
var keys = map[string]string{
	"":        handlers.CmdToggle, // Enter stands in for Space
	"space":   handlers.CmdToggle,
	"t":       handlers.CmdTakeoff,
	"l":       handlers.CmdLand,
	"r":       handlers.CmdReset,
	"h":       handlers.CmdHome,
	"esc":     handlers.CmdStop,
	"run":     handlers.CmdRun,
	"status":  handlers.CmdStatus,
	"hud":     handlers.CmdStatus,
	"takeoff": handlers.CmdTakeoff,
	"land":    handlers.CmdLand,
	"reset":   handlers.CmdReset,
	"home":    handlers.CmdHome,
	"stop":    handlers.CmdStop,
}

type console struct {
	in   io.Reader
	out  io.Writer
	disp interface {
		Dispatch(e dispatcher.Event) (any, error)
	}
}

func newConsole(in io.Reader, out io.Writer, d *dispatcher.Dispatcher) *console {
	return &console{in: in, out: out, disp: d}
}

// Run reads one key or command per line until ctx is cancelled or input ends.
// "script <line>; <line>" queues an inline script.
func (c *console) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			c.handle(line)
		}
	}
}

func (c *console) handle(line string) {
	line = strings.TrimSpace(line)
	ev := dispatcher.Event{Source: "console"}

	if rest, ok := cutPrefixFold(line, "script "); ok {
		ev.Command = handlers.CmdScript
		for _, part := range strings.Split(rest, ";") {
			ev.Args = append(ev.Args, strings.TrimSpace(part))
		}
	} else {
		cmd, ok := keys[strings.ToLower(line)]
		if !ok {
			fmt.Fprintf(c.out, "unknown key %q\n", line)
			return
		}
		ev.Command = cmd
	}

	res, err := c.disp.Dispatch(ev)
	if err != nil {
		fmt.Fprintln(c.out, err)
		return
	}
	c.print(res)
}

func (c *console) print(res any) {
	switch r := res.(type) {
	case handlers.ActionResult:
		fmt.Fprintf(c.out, "[%s] %s\n", r.State, r.Status.Detail)
	case handlers.ScriptResult:
		fmt.Fprintln(c.out, r.Status)
	case interface{ HUD() string }:
		fmt.Fprintln(c.out, r.HUD())
	}
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return "", false
	}
	return s[len(prefix):], true
}
