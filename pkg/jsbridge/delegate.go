package jsbridge

// LegacyWebViewEvents are the navigation callbacks of a webview that has no
// script message channel. Bridge notifications arrive as navigations.
type LegacyWebViewEvents interface {
	// ShouldStartLoad returns false to cancel the navigation.
	ShouldStartLoad(url string) bool
	DidStartLoad(url string)
	DidFinishLoad(url string)
	DidFailLoad(url string, err error)
}

// ModernWebViewEvents are the callbacks of a webview with a native script
// message channel.
type ModernWebViewEvents interface {
	DidReceiveScriptMessage(name, body string)
	// DecidePolicyForNavigation returns false to cancel the navigation.
	DecidePolicyForNavigation(url string) bool
	DidStartNavigation(url string)
	DidFinishNavigation(url string)
	DidFailNavigation(url string, err error)
}

// legacyEvents consumes bridge navigations and forwards the rest to next.
type legacyEvents struct {
	b    *Bridge
	next LegacyWebViewEvents
}

func (l *legacyEvents) ShouldStartLoad(url string) bool {
	if l.b.handleBridgeURL(url) {
		return false
	}
	if l.next != nil {
		return l.next.ShouldStartLoad(url)
	}
	return true
}

func (l *legacyEvents) DidStartLoad(url string) {
	l.b.navigationStarted(url)
	if l.next != nil {
		l.next.DidStartLoad(url)
	}
}

func (l *legacyEvents) DidFinishLoad(url string) {
	l.b.reinjectAfterLoad()
	if l.next != nil {
		l.next.DidFinishLoad(url)
	}
}

func (l *legacyEvents) DidFailLoad(url string, err error) {
	if l.next != nil {
		l.next.DidFailLoad(url, err)
	}
}

// modernEvents consumes the bridge's script messages and navigations and
// forwards the rest to next.
type modernEvents struct {
	b    *Bridge
	next ModernWebViewEvents
}

func (m *modernEvents) DidReceiveScriptMessage(name, body string) {
	if name == m.b.opts.messageHandlerName {
		if !m.b.handleBridgeURL(body) {
			m.b.traceEvent(warnLevel).Str("body", truncate(body)).Msg("ignoring script message that is not a bridge URL")
		}
		return
	}
	if m.next != nil {
		m.next.DidReceiveScriptMessage(name, body)
	}
}

func (m *modernEvents) DecidePolicyForNavigation(url string) bool {
	if m.b.handleBridgeURL(url) {
		return false
	}
	if m.next != nil {
		return m.next.DecidePolicyForNavigation(url)
	}
	return true
}

func (m *modernEvents) DidStartNavigation(url string) {
	m.b.navigationStarted(url)
	if m.next != nil {
		m.next.DidStartNavigation(url)
	}
}

func (m *modernEvents) DidFinishNavigation(url string) {
	if m.next != nil {
		m.next.DidFinishNavigation(url)
	}
}

func (m *modernEvents) DidFailNavigation(url string, err error) {
	if m.next != nil {
		m.next.DidFailNavigation(url, err)
	}
}
