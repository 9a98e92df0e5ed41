// Package cmd is the orderscout command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"orderscout/app"
	"orderscout/cd"
	"orderscout/config"
	"orderscout/creds"
	"orderscout/logging"
	"orderscout/output"
)

// Version is set at build time with -ldflags "-X orderscout/cmd.Version=...".
var Version = "dev"

type options struct {
	configFile string
	headless   bool
	fresh      bool
	outFile    string
	noTable    bool

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&options{})
}

func newRootCmdWith(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "orderscout",
		Short:         "Sign in to your store account and export your recent purchases as JSON.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(o.configFile)
			if err != nil {
				logging.InitializeLogger(config.Default().Logger)
				return err
			}
			o.apply(cmd, &cfg)
			if err := cfg.Validate(); err != nil {
				logging.InitializeLogger(cfg.Logger)
				return err
			}
			o.cfg = cfg
			logging.InitializeLogger(cfg.Logger)
			logging.Get().Debug("Starting orderscout", zap.String("version", Version))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o.cfg, os.Stdin, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	f := root.Flags()
	f.StringVarP(&o.configFile, "config", "c", "", "config file (default is ./orderscout.yaml)")
	f.BoolVar(&o.headless, "headless", false, "run Chrome without a window")
	f.BoolVar(&o.fresh, "fresh", false, "start from an empty browser profile")
	f.StringVarP(&o.outFile, "output", "o", "", "write the orders to this file")
	f.BoolVar(&o.noTable, "no-table", false, "skip the summary table")
	return root
}

// apply lets explicitly set flags win over every other source.
func (o *options) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("headless") {
		cfg.Browser.Headless = o.headless
	}
	if flags.Changed("fresh") {
		cfg.Browser.Fresh = o.fresh
	}
	if flags.Changed("output") {
		cfg.Output.File = o.outFile
	}
	if flags.Changed("no-table") {
		cfg.Output.Table = !o.noTable
	}
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		logging.Get().Error("Run failed", zap.Error(err))
		logging.Sync()
		fmt.Fprintln(os.Stderr, "orderscout:", err)
		os.Exit(1)
	}
	logging.Sync()
}

func run(ctx context.Context, cfg config.Config, in io.Reader, stdout, stderr io.Writer) error {
	log := logging.Get()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	provider, err := buildProvider(cfg, in, stderr, log)
	if err != nil {
		return err
	}
	sink, closeSinks := buildSinks(cfg, stdout, log)
	defer closeSinks()

	res, err := app.Run(ctx, cfg, app.Deps{
		Launch: func(ctx context.Context) (app.Browser, error) {
			b, err := cd.CreateBrowser(ctx, cfg.Browser, log.Named("browser"))
			if err != nil {
				return nil, err
			}
			return b, nil
		},
		Provider:    provider,
		Sink:        sink,
		Logger:      log,
		Interactive: isTerminal(stderr),
	})
	if err != nil {
		return err
	}
	log.Info("Done",
		zap.Int("orders", len(res.Orders)),
		zap.Duration("elapsed", res.Elapsed))
	return nil
}

// buildProvider layers the credential sources: configured values first,
// then the mailbox for codes, with the terminal as the last resort.
func buildProvider(cfg config.Config, in io.Reader, out io.Writer, log *zap.Logger) (creds.Provider, error) {
	var p creds.Provider = creds.NewPrompter(in, out)
	if cfg.Credentials.Identifier != "" || cfg.Credentials.Secret != "" {
		p = creds.NewStatic(cfg.Credentials, p)
	}
	if cfg.IMAP.Enabled {
		m, err := creds.NewMailbox(cfg.IMAP, p, log.Named("imap"))
		if err != nil {
			return nil, err
		}
		p = m
	}
	return p, nil
}

func buildSinks(cfg config.Config, stdout io.Writer, log *zap.Logger) (output.Multi, func()) {
	var sinks output.Multi
	closers := []func(){}
	if cfg.Output.File != "" {
		sinks = append(sinks, output.JSONFile{Path: cfg.Output.File})
	}
	if cfg.Output.Console {
		sinks = append(sinks, output.Console{W: stdout, Table: cfg.Output.Table})
	}
	if cfg.Influx.Enabled {
		s := output.NewInflux(cfg.Influx, log.Named("influx"))
		sinks = append(sinks, s)
		closers = append(closers, s.Close)
	}
	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
