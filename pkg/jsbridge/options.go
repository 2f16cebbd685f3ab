package jsbridge

import (
	"fmt"
	"io/fs"
)

// MissingHandlerPolicy decides what happens to a call addressed to a handler
// that is not registered.
type MissingHandlerPolicy string

const (
	// MissingHandlerFailSoft answers calls expecting a response with null.
	MissingHandlerFailSoft MissingHandlerPolicy = "fail-soft"
	// MissingHandlerDrop drops the call; a caller waiting for a response
	// waits forever.
	MissingHandlerDrop MissingHandlerPolicy = "drop"
)

// ParseMissingHandlerPolicy parses a policy name. An empty name is fail-soft.
func ParseMissingHandlerPolicy(name string) (MissingHandlerPolicy, error) {
	switch MissingHandlerPolicy(name) {
	case "", MissingHandlerFailSoft:
		return MissingHandlerFailSoft, nil
	case MissingHandlerDrop:
		return MissingHandlerDrop, nil
	default:
		return "", fmt.Errorf("unknown missing handler policy %q", name)
	}
}

type options struct {
	legacyDelegate     LegacyWebViewEvents
	modernDelegate     ModernWebViewEvents
	bundle             fs.FS
	scheme             string
	pathPrefix         string
	messageHandlerName string
	missingHandler     MissingHandlerPolicy
}

func defaultOptions() options {
	return options{
		scheme:             DefaultScheme,
		pathPrefix:         DefaultPathPrefix,
		messageHandlerName: DefaultMessageHandlerName,
		missingHandler:     MissingHandlerFailSoft,
	}
}

// Option configures a Bridge.
type Option func(*options)

// WithLegacyDelegate wraps the host's navigation delegate. Every event the
// bridge does not consume is forwarded to it.
func WithLegacyDelegate(delegate LegacyWebViewEvents) Option {
	return func(o *options) { o.legacyDelegate = delegate }
}

// WithModernDelegate wraps the host's navigation and script message
// delegate. Every event the bridge does not consume is forwarded to it.
func WithModernDelegate(delegate ModernWebViewEvents) Option {
	return func(o *options) { o.modernDelegate = delegate }
}

// WithResourceBundle loads the bootstrap script from bundle instead of the
// embedded copy. The file must be named BundleScriptName.
func WithResourceBundle(bundle fs.FS) Option {
	return func(o *options) { o.bundle = bundle }
}

// WithScheme overrides the notification URL scheme.
func WithScheme(scheme string) Option {
	return func(o *options) {
		if scheme != "" {
			o.scheme = scheme
		}
	}
}

// WithPathPrefix overrides the same-origin path under which bridge
// notifications are recognized. An empty prefix disables path matching.
func WithPathPrefix(prefix string) Option {
	return func(o *options) { o.pathPrefix = prefix }
}

// WithMessageHandlerName overrides the script message handler name.
func WithMessageHandlerName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.messageHandlerName = name
		}
	}
}

// WithMissingHandlerPolicy sets the policy for calls to unknown handlers,
// applied on both sides of the bridge.
func WithMissingHandlerPolicy(policy MissingHandlerPolicy) Option {
	return func(o *options) {
		if policy != "" {
			o.missingHandler = policy
		}
	}
}
