// Package config provides configuration management for jsbridge with Viper integration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/bnema/jsbridge/pkg/jsbridge"
)

// File permission constants
const (
	dirPerm  = 0755 // Standard directory permissions (rwxr-xr-x)
	filePerm = 0644 // Standard file permissions (rw-r--r--)
)

const envPrefix = "JSBRIDGE"

// Config represents the complete configuration for jsbridge.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`
	Bridge  BridgeConfig  `mapstructure:"bridge" yaml:"bridge" json:"bridge"`
	Window  WindowConfig  `mapstructure:"window" yaml:"window" json:"window"`
	Remote  RemoteConfig  `mapstructure:"remote" yaml:"remote" json:"remote"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error,enum=disabled"`
	Format string `mapstructure:"format" yaml:"format" json:"format" jsonschema:"enum=console,enum=json"`
	// Trace logs every message crossing the bridge. Picked up on reload.
	Trace bool `mapstructure:"trace" yaml:"trace" json:"trace" jsonschema:"description=Log every message sent and received by the bridge"`
}

// BridgeConfig holds the protocol settings shared with the bootstrap script.
type BridgeConfig struct {
	Scheme         string `mapstructure:"scheme" yaml:"scheme" json:"scheme"`
	PathPrefix     string `mapstructure:"path_prefix" yaml:"path_prefix" json:"path_prefix"`
	MessageHandler string `mapstructure:"message_handler" yaml:"message_handler" json:"message_handler"`
	MissingHandler string `mapstructure:"missing_handler" yaml:"missing_handler" json:"missing_handler" jsonschema:"enum=fail-soft,enum=drop"`
	// BundleDir, when set, holds the WebViewJavascriptBridge.js to inject.
	BundleDir string `mapstructure:"bundle_dir" yaml:"bundle_dir" json:"bundle_dir,omitempty"`
}

// WindowConfig holds the desktop window settings.
type WindowConfig struct {
	Title  string `mapstructure:"title" yaml:"title" json:"title"`
	Width  int    `mapstructure:"width" yaml:"width" json:"width"`
	Height int    `mapstructure:"height" yaml:"height" json:"height"`
	Debug  bool   `mapstructure:"debug" yaml:"debug" json:"debug"`
	// Engine picks the native webview: webview (webview_go) or webkitgtk.
	Engine string `mapstructure:"engine" yaml:"engine" json:"engine" jsonschema:"enum=webview,enum=webkitgtk"`
}

// RemoteConfig holds the browser host settings.
type RemoteConfig struct {
	Listen      string `mapstructure:"listen" yaml:"listen" json:"listen"`
	OpenBrowser bool   `mapstructure:"open_browser" yaml:"open_browser" json:"open_browser"`
	// PagesDir is served instead of the built-in demo page.
	PagesDir string `mapstructure:"pages_dir" yaml:"pages_dir" json:"pages_dir,omitempty"`
}

// Options converts the bridge settings into bridge options.
func (b BridgeConfig) Options() ([]jsbridge.Option, error) {
	policy, err := jsbridge.ParseMissingHandlerPolicy(b.MissingHandler)
	if err != nil {
		return nil, err
	}
	opts := []jsbridge.Option{
		jsbridge.WithScheme(b.Scheme),
		jsbridge.WithPathPrefix(b.PathPrefix),
		jsbridge.WithMessageHandlerName(b.MessageHandler),
		jsbridge.WithMissingHandlerPolicy(policy),
	}
	if b.BundleDir != "" {
		opts = append(opts, jsbridge.WithResourceBundle(os.DirFS(b.BundleDir)))
	}
	return opts, nil
}

// Manager handles configuration loading, watching, and reloading.
type Manager struct {
	config    *Config
	viper     *viper.Viper
	log       zerolog.Logger
	explicit  bool
	mu        sync.RWMutex
	callbacks []func(*Config)
	watching  bool
}

// NewManager creates a new configuration manager. An empty configFile
// searches the XDG config directory and the working directory.
func NewManager(configFile string, log zerolog.Logger) (*Manager, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		// Will find config.yaml, config.json, config.toml, etc.
		v.SetConfigName("config")
		configDir, err := GetConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	// JSBRIDGE_BRIDGE_SCHEME, JSBRIDGE_WINDOW_WIDTH, ...
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string][]string{
		"logging.level":  {"JSBRIDGE_LOG_LEVEL", "JSBRIDGE_LOGGING_LEVEL"},
		"logging.format": {"JSBRIDGE_LOG_FORMAT", "JSBRIDGE_LOGGING_FORMAT"},
		"logging.trace":  {"JSBRIDGE_TRACE", "JSBRIDGE_LOGGING_TRACE"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	return &Manager{
		viper:    v,
		log:      log.With().Str("component", "config").Logger(),
		explicit: configFile != "",
	}, nil
}

// Load loads the configuration from file and environment variables.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setDefaults()

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if m.explicit || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := m.createDefaultConfig(); err != nil {
			return fmt.Errorf("failed to create default config: %w", err)
		}
	}

	config, err := m.decode()
	if err != nil {
		return err
	}
	m.config = config
	return nil
}

// Get returns the current configuration (thread-safe).
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return DefaultConfig()
	}
	configCopy := *m.config
	return &configCopy
}

// Watch starts watching the config file for changes and reloads automatically.
// A change that fails validation keeps the previous configuration.
func (m *Manager) Watch() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watching {
		return nil
	}
	if m.viper.ConfigFileUsed() == "" {
		return errors.New("no config file to watch")
	}

	m.viper.OnConfigChange(func(e fsnotify.Event) {
		if err := m.reload(); err != nil {
			m.log.Warn().Err(err).Str("file", e.Name).Msg("failed to reload config")
			return
		}

		m.mu.RLock()
		config := m.config
		callbacks := make([]func(*Config), len(m.callbacks))
		copy(callbacks, m.callbacks)
		m.mu.RUnlock()

		m.log.Debug().Str("file", e.Name).Msg("config reloaded")
		for _, callback := range callbacks {
			callback(config)
		}
	})
	m.viper.WatchConfig()

	m.watching = true
	return nil
}

// OnConfigChange registers a callback function to be called when config changes.
func (m *Manager) OnConfigChange(callback func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callbacks = append(m.callbacks, callback)
}

// ConfigFile returns the path of the configuration file in use.
func (m *Manager) ConfigFile() string {
	return m.viper.ConfigFileUsed()
}

func (m *Manager) reload() error {
	if err := m.viper.ReadInConfig(); err != nil {
		return err
	}
	config, err := m.decode()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.config = config
	m.mu.Unlock()
	return nil
}

func (m *Manager) decode() (*Config, error) {
	config := &Config{}
	if err := m.viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	normalize(config)
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// setDefaults sets default configuration values in Viper.
func (m *Manager) setDefaults() {
	defaults := DefaultConfig()

	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
	m.viper.SetDefault("logging.trace", defaults.Logging.Trace)

	m.viper.SetDefault("bridge.scheme", defaults.Bridge.Scheme)
	m.viper.SetDefault("bridge.path_prefix", defaults.Bridge.PathPrefix)
	m.viper.SetDefault("bridge.message_handler", defaults.Bridge.MessageHandler)
	m.viper.SetDefault("bridge.missing_handler", defaults.Bridge.MissingHandler)
	m.viper.SetDefault("bridge.bundle_dir", defaults.Bridge.BundleDir)

	m.viper.SetDefault("window.title", defaults.Window.Title)
	m.viper.SetDefault("window.width", defaults.Window.Width)
	m.viper.SetDefault("window.height", defaults.Window.Height)
	m.viper.SetDefault("window.debug", defaults.Window.Debug)
	m.viper.SetDefault("window.engine", defaults.Window.Engine)

	m.viper.SetDefault("remote.listen", defaults.Remote.Listen)
	m.viper.SetDefault("remote.open_browser", defaults.Remote.OpenBrowser)
	m.viper.SetDefault("remote.pages_dir", defaults.Remote.PagesDir)
}

// createDefaultConfig writes the defaults and their schema to the XDG
// config directory. Failures to write are logged; the defaults still apply.
func (m *Manager) createDefaultConfig() error {
	configFile, err := GetConfigFile()
	if err != nil {
		return err
	}
	configDir := filepath.Dir(configFile)
	if err := os.MkdirAll(configDir, dirPerm); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			m.log.Warn().Err(err).Str("dir", configDir).Msg("cannot create config directory, using defaults")
			return nil
		}
		return err
	}

	configData, err := json.MarshalIndent(DefaultConfig(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := os.WriteFile(configFile, configData, filePerm); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if _, err := WriteSchemaFile(configDir); err != nil {
		m.log.Warn().Err(err).Msg("failed to write config schema")
	}

	m.viper.SetConfigFile(configFile)
	m.log.Info().Str("file", configFile).Msg("created default configuration file")
	return nil
}
