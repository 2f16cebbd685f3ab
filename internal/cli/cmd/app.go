package cmd

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bnema/jsbridge/internal/cli/styles"
	"github.com/bnema/jsbridge/internal/config"
	"github.com/bnema/jsbridge/internal/logging"
	"github.com/bnema/jsbridge/pkg/jsbridge"
)

// App holds what every command needs: configuration, logger and theme.
type App struct {
	Config  *config.Config
	Manager *config.Manager
	Log     zerolog.Logger
	Theme   *styles.Theme
}

// NewApp loads the configuration, applies the command line overrides and
// builds the logger.
func NewApp(cmd *cobra.Command) (*App, error) {
	manager, err := config.NewManager(flagConfig, logging.NewFromEnv())
	if err != nil {
		return nil, err
	}
	if err := manager.Load(); err != nil {
		return nil, err
	}

	cfg := manager.Get()
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = flagLogLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = flagLogFormat
	}
	if flags.Changed("trace") {
		cfg.Logging.Trace = flagTrace
	}

	log := logging.New(logging.Config{
		Level:      logging.ParseLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		TimeFormat: time.RFC3339,
		Output:     os.Stderr,
	})
	jsbridge.SetLogging(cfg.Logging.Trace)

	return &App{
		Config:  cfg,
		Manager: manager,
		Log:     log,
		Theme:   styles.NewTheme(),
	}, nil
}

// Context attaches the app logger to ctx.
func (a *App) Context(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.WithContext(ctx, a.Log)
}

// WatchConfig reloads the config file on change and applies the tracing
// toggle to running bridges. The --trace flag keeps tracing on.
func (a *App) WatchConfig() {
	if a.Manager == nil {
		return
	}
	a.Manager.OnConfigChange(func(c *config.Config) {
		trace := c.Logging.Trace || flagTrace
		jsbridge.SetLogging(trace)
		a.Log.Info().Bool("trace", trace).Msg("configuration reloaded")
	})
	if err := a.Manager.Watch(); err != nil {
		a.Log.Debug().Err(err).Msg("config file not watched")
	}
}
