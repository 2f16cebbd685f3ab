// Package cmd provides Cobra CLI commands for jsbridge.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	app *App

	flagConfig    string
	flagLogLevel  string
	flagLogFormat string
	flagTrace     bool

	rootCmd = &cobra.Command{
		Use:   "jsbridge",
		Short: "A messaging bridge between Go and the scripts of a webview",
		Long: `jsbridge connects a Go program to the JavaScript running inside a webview.

Both sides register named handlers and call each other's handlers with JSON
payloads; responses are routed back to the caller's callback. Messages sent
before the page is ready are buffered and delivered in order.

Hosts:
  window   a native desktop window (webview)
  serve    any browser, through a local HTTP server
  run      a headless script engine, for scripting and tests`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip initialization for commands that don't need app context
			switch cmd.Name() {
			case "help", "completion":
				return nil
			}

			var err error
			app, err = NewApp(cmd)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			cmd.SetContext(app.Context(cmd.Context()))
			return nil
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&flagConfig, "config", "c", "", "config file (default: $XDG_CONFIG_HOME/jsbridge/config.json)")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level: trace, debug, info, warn, error, disabled")
	flags.StringVar(&flagLogFormat, "log-format", "", "log format: console, json")
	flags.BoolVar(&flagTrace, "trace", false, "log every message crossing the bridge")
}

// Execute runs the root command. Interrupts cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GetApp returns the initialized app (for use by subcommands).
func GetApp() *App {
	return app
}

// SetVersion sets the version reported by --version (called from main.go before Execute).
func SetVersion(v string) {
	rootCmd.Version = v
}
