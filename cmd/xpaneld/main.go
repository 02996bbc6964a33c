// Command xpaneld runs the panel core without a visible panel. It tracks
// tasks, manages the system tray and publishes both on the session bus.
package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type options struct {
	config    string
	logLevel  string
	display   string
	noSystray bool
	noDBus    bool
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "xpaneld",
		Short:         "Track X11 tasks and manage the system tray",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.config, "config", "c", "", "path to the YAML configuration")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level, overrides the configuration")
	flags.StringVar(&opts.display, "display", "", "X display to connect to (default $DISPLAY)")
	flags.BoolVar(&opts.noSystray, "no-systray", false, "do not become the system tray manager")
	flags.BoolVar(&opts.noDBus, "no-dbus", false, "do not publish state on the session bus")

	return cmd
}

func setLogLevel(level string) error {
	if level == "" {
		return nil
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(lvl)
	return nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
