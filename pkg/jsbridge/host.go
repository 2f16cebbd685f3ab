package jsbridge

// Host is the webview a bridge is attached to.
type Host interface {
	// InjectScript installs source so it runs at document start of every
	// page, before any page script.
	InjectScript(source string) error

	// EvaluateScript evaluates a script expression in the page and reports
	// its result, converted to a string, on a later turn of the host loop.
	// done may be nil.
	EvaluateScript(source string, done func(result string, err error))

	// Dispatch runs fn on a later turn of the host loop.
	Dispatch(fn func())
}

// ScriptMessageHost is a host with a native script message channel
// (window.webkit.messageHandlers[name].postMessage).
type ScriptMessageHost interface {
	Host
	AddScriptMessageHandler(name string, events ModernWebViewEvents) error
	RemoveScriptMessageHandler(name string)
}

// NavigationHost is a host that reports navigations through a delegate and
// lets the delegate cancel them. The bridge notifications arrive as
// navigations to bridge URLs.
type NavigationHost interface {
	Host
	SetNavigationDelegate(events LegacyWebViewEvents)
}
