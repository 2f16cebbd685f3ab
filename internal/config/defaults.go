package config

import (
	"strings"

	"github.com/bnema/jsbridge/pkg/jsbridge"
)

// Window engines
const (
	EngineWebView   = "webview"
	EngineWebKitGTK = "webkitgtk"
)

// Window defaults
const (
	defaultWindowWidth  = 960 // pixels
	defaultWindowHeight = 720 // pixels
)

// DefaultConfig returns the default configuration values for jsbridge.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Bridge: BridgeConfig{
			Scheme:         jsbridge.DefaultScheme,
			PathPrefix:     jsbridge.DefaultPathPrefix,
			MessageHandler: jsbridge.DefaultMessageHandlerName,
			MissingHandler: string(jsbridge.MissingHandlerFailSoft),
		},
		Window: WindowConfig{
			Title:  "jsbridge",
			Width:  defaultWindowWidth,
			Height: defaultWindowHeight,
			Engine: EngineWebView,
		},
		Remote: RemoteConfig{
			Listen: "127.0.0.1:0",
		},
	}
}

// normalize lowercases enumerated values.
func normalize(config *Config) {
	config.Logging.Level = strings.ToLower(strings.TrimSpace(config.Logging.Level))
	config.Logging.Format = strings.ToLower(strings.TrimSpace(config.Logging.Format))
	config.Bridge.MissingHandler = strings.ToLower(strings.TrimSpace(config.Bridge.MissingHandler))
	config.Window.Engine = strings.ToLower(strings.TrimSpace(config.Window.Engine))
}
