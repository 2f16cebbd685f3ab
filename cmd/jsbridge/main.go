// Package main provides the main entry point for the jsbridge CLI.
package main

import (
	"runtime"

	"github.com/bnema/jsbridge/internal/cli/cmd"
)

// Build-time variables (set via ldflags).
var version = "dev"

// webKitWindow is set by builds with the webkit_cgo tag.
var webKitWindow cmd.WebKitWindowFactory

func main() {
	// Native windows must run on the main thread.
	runtime.LockOSThread()

	cmd.SetVersion(version)
	cmd.SetWindowFactory(newWindow)
	cmd.SetWebKitWindowFactory(webKitWindow)
	cmd.Execute()
}
