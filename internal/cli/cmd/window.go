package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bnema/jsbridge/internal/cli/styles"
	"github.com/bnema/jsbridge/internal/config"
	"github.com/bnema/jsbridge/internal/host/webkit"
	"github.com/bnema/jsbridge/internal/host/webview"
	"github.com/bnema/jsbridge/pkg/jsbridge"
)

// WindowOptions describes the native window to open.
type WindowOptions struct {
	Title  string
	Width  int
	Height int
	Debug  bool
}

// WindowFactory opens a webview_go window.
type WindowFactory func(opts WindowOptions) webview.Window

// WebKitWindowFactory opens a WebKitGTK window.
type WebKitWindowFactory func(opts WindowOptions) (webkit.Window, error)

var (
	windowFactory       WindowFactory
	webKitWindowFactory WebKitWindowFactory
)

// SetWindowFactory sets how the window command opens windows (called from
// main.go, which owns the main thread).
func SetWindowFactory(f WindowFactory) {
	windowFactory = f
}

// SetWebKitWindowFactory enables --engine webkitgtk. Builds without the
// webkit_cgo tag leave it unset.
func SetWebKitWindowFactory(f WebKitWindowFactory) {
	webKitWindowFactory = f
}

var windowCmd = &cobra.Command{
	Use:   "window [url]",
	Short: "Open a desktop window with the bridge attached",
	Long: `Open a native webview window and attach a bridge to it.

Without a URL the built-in demo page is shown. The page can call the echo,
time and print handlers; Go greets the page once it is ready.

The webview engine (webview_go) works everywhere webview_go does. The
webkitgtk engine uses WebKitGTK's script message handlers and reports
navigations the page starts itself; it needs a build with -tags webkit_cgo.

Examples:
  jsbridge window
  jsbridge window --engine webkitgtk
  jsbridge window http://localhost:5173`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWindow,
}

func init() {
	windowCmd.Flags().StringP("engine", "e", "", "webview engine: webview or webkitgtk (default from config)")
	rootCmd.AddCommand(windowCmd)
}

func runWindow(cmd *cobra.Command, args []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}

	engine := app.Config.Window.Engine
	if flag, _ := cmd.Flags().GetString("engine"); flag != "" {
		engine = strings.ToLower(flag)
	}

	var url string
	if len(args) == 1 {
		url = args[0]
	}

	switch engine {
	case config.EngineWebKitGTK:
		if webKitWindowFactory == nil {
			return errors.New("this build has no WebKitGTK support (rebuild with -tags webkit_cgo)")
		}
		return openWebKitWindow(cmd.Context(), app, webKitWindowFactory, url, cmd.OutOrStdout())
	case config.EngineWebView, "":
		if windowFactory == nil {
			return errors.New("this build has no native window support")
		}
		return openWindow(cmd.Context(), app, windowFactory, url, cmd.OutOrStdout())
	default:
		return fmt.Errorf("unknown engine %q (want webview or webkitgtk)", engine)
	}
}

func windowOptions(cfg config.WindowConfig) WindowOptions {
	return WindowOptions{
		Title:  cfg.Title,
		Width:  cfg.Width,
		Height: cfg.Height,
		Debug:  cfg.Debug,
	}
}

// pageWindow is a native window with its bridge host.
type pageWindow struct {
	host      jsbridge.Host
	navigate  func(url string)
	setHTML   func(html string)
	run       func()
	terminate func()
}

func openWindow(ctx context.Context, app *App, factory WindowFactory, url string, out io.Writer) error {
	win := factory(windowOptions(app.Config.Window))
	defer win.Destroy()

	host, err := webview.New(ctx, win)
	if err != nil {
		return fmt.Errorf("attach window: %w", err)
	}
	return runPage(ctx, app, pageWindow{
		host:      host,
		navigate:  host.Navigate,
		setHTML:   host.SetHTML,
		run:       win.Run,
		terminate: func() { win.Dispatch(win.Terminate) },
	}, url, out)
}

func openWebKitWindow(ctx context.Context, app *App, factory WebKitWindowFactory, url string, out io.Writer) error {
	win, err := factory(windowOptions(app.Config.Window))
	if err != nil {
		return fmt.Errorf("open webkitgtk window: %w", err)
	}
	defer win.Destroy()

	host, err := webkit.New(ctx, win)
	if err != nil {
		return fmt.Errorf("attach window: %w", err)
	}
	return runPage(ctx, app, pageWindow{
		host:      host,
		navigate:  host.Navigate,
		setHTML:   host.SetHTML,
		run:       win.Run,
		terminate: func() { host.Dispatch(win.Terminate) },
	}, url, out)
}

// runPage attaches the demo bridge, loads url (or the demo page) and runs
// the window until it closes or ctx is done.
func runPage(ctx context.Context, app *App, page pageWindow, url string, out io.Writer) error {
	opts, err := app.Config.Bridge.Options()
	if err != nil {
		return err
	}

	renderer := styles.NewBridgeRenderer(app.Theme)
	b, err := jsbridge.New(ctx, page.host, demoDefaultHandler(out, renderer), opts...)
	if err != nil {
		return fmt.Errorf("create bridge: %w", err)
	}
	defer b.Close()

	registerDemoHandlers(b, out, renderer)
	greetPage(b, out, renderer)
	app.WatchConfig()

	if url != "" {
		page.navigate(url)
	} else {
		html, err := demoHTML()
		if err != nil {
			return err
		}
		page.setHTML(html)
	}

	stop := context.AfterFunc(ctx, page.terminate)
	defer stop()

	app.Log.Debug().Str("url", url).Msg("window running")
	page.run()
	return nil
}
