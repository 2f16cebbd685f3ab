package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/toqueteos/webbrowser"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/jsbridge/internal/cli/styles"
	"github.com/bnema/jsbridge/internal/host/remote"
	"github.com/bnema/jsbridge/pkg/jsbridge"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

var (
	serveListen string
	serveOpen   bool
	servePages  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a page to any browser with the bridge attached",
	Long: `Serve pages over HTTP and attach a bridge to the browser page that loads them.

Bridge notifications arrive as requests under the bridge path prefix;
scripts are evaluated over a websocket the page opens back to the server.
Without --pages the built-in demo page is served.

Examples:
  jsbridge serve --open
  jsbridge serve --listen 127.0.0.1:8080 --pages ./web`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "address to listen on (default from config)")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "open the page in the default browser")
	serveCmd.Flags().StringVar(&servePages, "pages", "", "directory of pages to serve (default: demo page)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	app := GetApp()
	if app == nil {
		return fmt.Errorf("app not initialized")
	}

	listen := app.Config.Remote.Listen
	if cmd.Flags().Changed("listen") {
		listen = serveListen
	}
	pagesDir := app.Config.Remote.PagesDir
	if cmd.Flags().Changed("pages") {
		pagesDir = servePages
	}
	open := app.Config.Remote.OpenBrowser || serveOpen

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listen, err)
	}

	app.WatchConfig()
	return serve(cmd.Context(), app, ln, pagesDir, open, cmd.OutOrStdout())
}

// serve runs the remote host on ln until ctx is done.
func serve(ctx context.Context, app *App, ln net.Listener, pagesDir string, open bool, out io.Writer) error {
	if app.Config.Bridge.PathPrefix == "" {
		_ = ln.Close()
		return errors.New("serve needs bridge.path_prefix")
	}
	opts, err := app.Config.Bridge.Options()
	if err != nil {
		_ = ln.Close()
		return err
	}

	var pages fs.FS
	if pagesDir != "" {
		pages = os.DirFS(pagesDir)
	} else if pages, err = demoPages(); err != nil {
		_ = ln.Close()
		return err
	}

	host, err := remote.New(ctx, pages, remote.WithBridgePrefix(app.Config.Bridge.PathPrefix))
	if err != nil {
		_ = ln.Close()
		return err
	}
	renderer := styles.NewBridgeRenderer(app.Theme)
	b, err := jsbridge.New(ctx, host, demoDefaultHandler(out, renderer), opts...)
	if err != nil {
		_ = ln.Close()
		return fmt.Errorf("create bridge: %w", err)
	}
	registerDemoHandlers(b, out, renderer)
	greetPage(b, out, renderer)

	srv := &http.Server{
		Handler:           host.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	url := "http://" + ln.Addr().String() + "/"
	fmt.Fprint(out, renderer.RenderServing(url))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := host.Run(gctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, remote.ErrClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		b.Close()
		host.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if open {
		if err := webbrowser.Open(url); err != nil {
			app.Log.Warn().Err(err).Str("url", url).Msg("failed to open browser")
		}
	}

	return g.Wait()
}
