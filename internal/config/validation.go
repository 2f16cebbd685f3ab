package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/bnema/jsbridge/pkg/jsbridge"
)

// validateConfig performs validation of configuration values.
func validateConfig(config *Config) error {
	var validationErrors []string

	switch config.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "disabled":
		// Valid
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("logging.level must be one of: trace, debug, info, warn, error, disabled (got: %s)", config.Logging.Level))
	}
	switch config.Logging.Format {
	case "console", "json":
		// Valid
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("logging.format must be one of: console, json (got: %s)", config.Logging.Format))
	}

	if !validScheme(config.Bridge.Scheme) {
		validationErrors = append(validationErrors, fmt.Sprintf("bridge.scheme must start with a letter and contain only letters, digits, '+', '-' or '.' (got: %q)", config.Bridge.Scheme))
	}
	if p := config.Bridge.PathPrefix; p != "" && (!strings.HasPrefix(p, "/") || !strings.HasSuffix(p, "/")) {
		validationErrors = append(validationErrors, fmt.Sprintf("bridge.path_prefix must start and end with '/' (got: %q)", p))
	}
	if config.Bridge.MessageHandler == "" {
		validationErrors = append(validationErrors, "bridge.message_handler cannot be empty")
	}
	if _, err := jsbridge.ParseMissingHandlerPolicy(config.Bridge.MissingHandler); err != nil {
		validationErrors = append(validationErrors, fmt.Sprintf("bridge.missing_handler must be one of: fail-soft, drop (got: %s)", config.Bridge.MissingHandler))
	}

	if config.Window.Width <= 0 || config.Window.Height <= 0 {
		validationErrors = append(validationErrors, "window.width and window.height must be positive")
	}
	switch config.Window.Engine {
	case EngineWebView, EngineWebKitGTK:
		// Valid
	default:
		validationErrors = append(validationErrors, fmt.Sprintf("window.engine must be one of: webview, webkitgtk (got: %s)", config.Window.Engine))
	}

	if _, _, err := net.SplitHostPort(config.Remote.Listen); err != nil {
		validationErrors = append(validationErrors, fmt.Sprintf("remote.listen must be host:port (got: %q)", config.Remote.Listen))
	}

	if len(validationErrors) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(validationErrors, "\n  - "))
	}
	return nil
}

func validScheme(scheme string) bool {
	if scheme == "" {
		return false
	}
	for i, r := range scheme {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}
