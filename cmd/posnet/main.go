package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/posnet/internal/app"
	"github.com/bft-labs/posnet/internal/cliconfig"
	"github.com/bft-labs/posnet/pkg/log"
)

const longHelp = `
Send XML requests to a POSNET payment gateway over HTTP or HTTPS.

The request is submitted in the xmldata field (POST form body by default,
or the query string with --method GET) and the raw XML reply is printed.

Configuration is read from $HOME/.posnet/config.toml, then POSNET_*
environment variables, then flags; later sources win.
`

var exampleUsage = strings.TrimSpace(`
  posnet send --url https://posnet.example.com/PosnetWebService/XML request.xml
  cat request.xml | posnet send --url https://posnet.example.com/PosnetWebService/XML --debug-level 1
  posnet watch --spool-dir /var/spool/posnet --metrics-addr :9464
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	var logger log.Logger = log.NewZerologAdapter()

	root := &cobra.Command{
		Use:           "posnet",
		Short:         "POSNET XML gateway client",
		Long:          strings.TrimSpace(longHelp),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger = log.NewZerologAdapterFor(os.Stderr, cfg.LogFormat)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.posnet/config.toml)")
	pf.StringVar(&cfg.URL, "url", cfg.URL, "POSNET gateway URL")
	pf.StringVar(&cfg.Method, "method", cfg.Method, "HTTP method, GET or POST")
	pf.IntVar(&cfg.DebugLevel, "debug-level", cfg.DebugLevel, "0 silent, 1 connector logging, 2 connector and transport logging")
	pf.BoolVar(&cfg.ForceTLS, "force-tls", cfg.ForceTLS, "use TLS even for http:// URLs")
	pf.StringVar(&cfg.CAFile, "ca-file", cfg.CAFile, "PEM file with the gateway's CA certificates")
	pf.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout per request (0 for none)")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log output format, console or json")

	sendCmd := &cobra.Command{
		Use:   "send [file|-]",
		Short: "Send one XML request and print the reply",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			c, err := app.NewConnector(cfg, logger, nil)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			resp, err := app.Send(ctx, cfg, c, payload)
			if err != nil {
				return fmt.Errorf("send: %w", err)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), resp)
			return err
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Send every *.xml file dropped into a spool directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateSpool(); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return app.Watch(ctx, cfg, logger)
		},
	}
	wf := watchCmd.Flags()
	wf.StringVar(&cfg.SpoolDir, "spool-dir", cfg.SpoolDir, "directory to watch for *.xml requests")
	wf.Float64Var(&cfg.RatePerSecond, "rate", cfg.RatePerSecond, "maximum requests per second")
	wf.IntVar(&cfg.Burst, "burst", cfg.Burst, "request burst above --rate")
	wf.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (optional)")

	root.AddCommand(sendCmd, watchCmd)

	if err := root.ExecuteContext(context.Background()); err != nil {
		logger.Error("posnet", log.Err(err))
		os.Exit(1)
	}
}

// readPayload reads the XML request from the named file, or stdin for "-" or no argument.
func readPayload(stdin io.Reader, args []string) (string, error) {
	r := stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return "", fmt.Errorf("open request: %w", err)
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read request: %w", err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return "", fmt.Errorf("request is empty")
	}
	return string(b), nil
}
