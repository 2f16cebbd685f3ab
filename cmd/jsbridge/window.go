package main

import (
	webview "github.com/webview/webview_go"

	"github.com/bnema/jsbridge/internal/cli/cmd"
	webviewhost "github.com/bnema/jsbridge/internal/host/webview"
)

func newWindow(opts cmd.WindowOptions) webviewhost.Window {
	w := webview.New(opts.Debug)
	w.SetTitle(opts.Title)
	w.SetSize(opts.Width, opts.Height, webview.HintNone)
	return w
}
