// Command dronesim flies scripted drone missions and records them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/OCAP2/dronesim/internal/config"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"
)

const appName = "dronesim"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "export" {
		err = runExport(ctx, os.Args[2:])
	} else {
		err = run(ctx, os.Args[1:])
	}
	if err != nil && !errors.Is(err, pflag.ErrHelp) {
		fmt.Fprintln(os.Stderr, "dronesim:", err)
		os.Exit(1)
	}
}

// loadConfig parses the command line and loads the config file it points at.
func loadConfig(args []string) error {
	fs := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	configDir := fs.String("config", ".", "directory containing "+config.FileName)
	fs.String("script", "", "mission script file")
	fs.Bool("autorun", false, "run the mission script on start-up")
	fs.String("log-level", "info", "log level: trace, debug, info, warn, error")
	fs.String("storage", "memory", "storage backend: memory, sqlite, postgres, websocket, mqtt")
	fs.Bool("console", false, "read control keys from stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := config.Load(*configDir); err != nil {
		return err
	}
	for key, flag := range map[string]string{
		"sim.scriptFile": "script",
		"sim.autorun":    "autorun",
		"logLevel":       "log-level",
		"storage.type":   "storage",
		"console":        "console",
	} {
		if err := viper.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	return nil
}
