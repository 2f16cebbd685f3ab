//go:build webkit_cgo

package main

import (
	"github.com/bnema/jsbridge/internal/cli/cmd"
	"github.com/bnema/jsbridge/internal/host/webkit"
)

func init() {
	webKitWindow = newWebKitWindow
}

func newWebKitWindow(opts cmd.WindowOptions) (webkit.Window, error) {
	return webkit.NewGTKWindow(opts.Title, opts.Width, opts.Height, opts.Debug)
}
