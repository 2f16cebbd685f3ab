package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/bnema/jsbridge/internal/cli/styles"
	"github.com/bnema/jsbridge/internal/host/jsvm"
	"github.com/bnema/jsbridge/pkg/jsbridge"
)

var runTimeout time.Duration

var runCmd = &cobra.Command{
	Use:   "run <script.js>",
	Short: "Run a script against the bridge in a headless engine",
	Long: `Run a script as the page of a headless webview with the bridge attached.

The script can call the echo, time and print handlers and use setTimeout.
The command ends once the script has nothing left to do.

Example script:
  WebViewJavascriptBridge.callHandler('echo', { n: 1 }, function(r) {
    WebViewJavascriptBridge.callHandler('print', 'echoed ' + r.n);
  });`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil {
			return fmt.Errorf("app not initialized")
		}
		return runScript(cmd.Context(), app, args[0], runTimeout, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().DurationVarP(&runTimeout, "timeout", "t", 30*time.Second, "give up on scripts still running after this long")
}

// scriptFailure records a page script that threw while loading.
type scriptFailure struct {
	err error
}

func (s *scriptFailure) DidReceiveScriptMessage(string, string) {}
func (s *scriptFailure) DecidePolicyForNavigation(string) bool  { return true }
func (s *scriptFailure) DidStartNavigation(string)              {}
func (s *scriptFailure) DidFinishNavigation(string)             {}
func (s *scriptFailure) DidFailNavigation(_ string, err error)  { s.err = err }

func runScript(ctx context.Context, app *App, path string, timeout time.Duration, out io.Writer) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	opts, err := app.Config.Bridge.Options()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	host := jsvm.New(ctx)
	defer host.Close()

	failure := &scriptFailure{}
	renderer := styles.NewBridgeRenderer(app.Theme)
	opts = append(opts, jsbridge.WithModernDelegate(failure))
	b, err := jsbridge.New(ctx, host, demoDefaultHandler(out, renderer), opts...)
	if err != nil {
		return fmt.Errorf("create bridge: %w", err)
	}
	defer b.Close()
	registerDemoHandlers(b, out, renderer)

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	start := time.Now()
	host.Load("file://"+filepath.ToSlash(abs), string(source))
	if err := host.RunUntilIdle(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("script still running after %s", timeout)
		}
		return err
	}
	if failure.err != nil {
		return fmt.Errorf("script failed: %w", failure.err)
	}

	fmt.Fprint(out, renderer.RenderScriptDone(filepath.Base(path), time.Since(start)))
	return nil
}
