package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/1broseidon/tsps/internal/apperr"
	"github.com/1broseidon/tsps/internal/config"
	"github.com/1broseidon/tsps/internal/layout"
	"github.com/1broseidon/tsps/internal/logging"
	"github.com/1broseidon/tsps/internal/mux"
	"github.com/1broseidon/tsps/internal/tiling"
)

type rootOptions struct {
	layoutFile string
	directory  string
	dryRun     bool
	configFile string
	logLevel   string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tsps [PANE_COUNT DIRECTORY]",
		Short: "Quickly set up tmux workspaces by splitting windows into multiple panes",
		Long: `tsps splits the current tmux window into panes rooted at a directory.

Positional form creates PANE_COUNT tiled panes in DIRECTORY:

  tsps 4 ~/src/project

Layout form applies a workspace file (YAML, JSON/JSONC or HCL) with
per-pane sizes, split orientation, startup commands and focus:

  tsps --layout dev.yaml [--directory ~/src/project]`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, opts, args)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	opts.addFlags(cmd.Flags())

	return cmd
}

func (opts *rootOptions) addFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&opts.layoutFile, "layout", "l", "", "layout file to apply")
	flags.StringVarP(&opts.directory, "directory", "d", "", "override the layout's workspace directory")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "print the tmux commands instead of running them")
	flags.StringVar(&opts.configFile, "config", "", "config file (default is $HOME/.config/tsps/config.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// validateArgs enforces that exactly one invocation form is used.
func validateArgs(opts *rootOptions, args []string) error {
	if opts.layoutFile != "" {
		if len(args) > 0 {
			return apperr.New(apperr.KindInvalidArgument, "--layout cannot be combined with positional arguments")
		}
		return nil
	}
	if opts.directory != "" {
		return apperr.New(apperr.KindInvalidArgument, "--directory requires --layout")
	}
	if len(args) != 2 {
		return apperr.New(apperr.KindInvalidArgument, "expected PANE_COUNT and DIRECTORY, or --layout FILE")
	}
	return nil
}

func parsePaneCount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(strings.TrimSpace(s), "-") {
			return 0, tiling.ValidatePaneCount(tiling.MaxPaneCount + 1)
		}
		return 0, apperr.New(apperr.KindInvalidArgument, "pane_count must be a positive integer")
	}
	if err := tiling.ValidatePaneCount(n); err != nil {
		return 0, err
	}
	return n, nil
}

func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	v, err := config.New(opts.configFile)
	if err != nil {
		return nil, err
	}
	if err := v.BindPFlag("log.level", cmd.Flags().Lookup("log-level")); err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgument, err, "cannot bind --log-level")
	}
	return config.Load(v)
}

// newMultiplexer builds the multiplexer and the check that must pass before
// it is first used. Dry runs record instead of executing and need no session.
func newMultiplexer(cfg *config.Config, dryRun bool) (mux.Multiplexer, *mux.Recorder, func() error) {
	opts := []mux.Option{
		mux.WithBinary(cfg.Tmux.Binary),
		mux.WithSocket(cfg.Tmux.Socket),
		mux.WithPaneBaseIndex(cfg.Tmux.PaneBaseIndex),
	}
	if dryRun {
		rec := mux.NewRecorder(opts...)
		return rec, rec, nil
	}
	t := mux.NewTmuxMultiplexer(opts...)
	preflight := func() error {
		if !mux.InSession() {
			return apperr.New(apperr.KindPreconditionFailed, "Not in a tmux session")
		}
		if !t.Available() {
			return apperr.Wrap(apperr.KindPreconditionFailed, mux.ErrMultiplexerNotAvailable, "cannot find %q", cfg.Tmux.Binary)
		}
		return nil
	}
	return t, nil, preflight
}

func runRoot(cmd *cobra.Command, opts *rootOptions, args []string) error {
	if err := validateArgs(opts, args); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	ctx = logging.WithLogger(ctx, logger)

	var (
		l     *layout.Layout
		count int
	)
	if opts.layoutFile != "" {
		path, err := layout.Locate(opts.layoutFile, config.LayoutDir())
		if err != nil {
			return err
		}
		l, err = layout.Load(path)
		if err != nil {
			return err
		}
		l.OverrideDirectory(opts.directory)
		logger.Debug("loaded layout", "file", path, "workspace", l.Workspace.Name, "panes", len(l.Panes))
	} else {
		count, err = parsePaneCount(args[0])
		if err != nil {
			return err
		}
	}

	m, rec, preflight := newMultiplexer(cfg, opts.dryRun)

	// The engine resolves the directory before running preflight, so a
	// missing directory is reported ahead of a missing session.
	engineOpts := []tiling.Option{
		tiling.WithArrangement(cfg.Layout.Arrangement),
		tiling.WithSettleDelay(cfg.Layout.SettleDelay),
		tiling.WithPreflight(preflight),
	}
	if rec != nil {
		engineOpts = append(engineOpts, tiling.WithSleeper(func(time.Duration) {}))
	}
	engine := tiling.NewEngine(m, engineOpts...)

	out := cmd.OutOrStdout()
	var dir string
	if l != nil {
		dir, err = engine.Apply(ctx, l)
	} else {
		dir, err = engine.ApplyPositional(ctx, count, args[1])
	}
	if err != nil {
		return err
	}

	if rec != nil {
		for _, line := range rec.Lines() {
			fmt.Fprintln(out, line)
		}
	}
	if l != nil {
		fmt.Fprintf(out, "Applied layout '%s' in directory: %s\n", l.Workspace.Name, dir)
	} else {
		fmt.Fprintf(out, "Created %d panes in directory: %s\n", count, dir)
	}
	return nil
}
