// Package tiling applies pane layouts to the current tmux window.
//
// The Engine turns a layout.Layout into an ordered stream of multiplexer
// primitives: change directory, create panes, arrange, resize, type startup
// commands, set focus. Every primitive is awaited before the next one is
// issued and the first failure aborts the rest, leaving the window in
// whatever state the completed prefix produced.
package tiling

import (
	"context"
	"strings"
	"time"

	"github.com/1broseidon/tsps/internal/apperr"
	"github.com/1broseidon/tsps/internal/layout"
	"github.com/1broseidon/tsps/internal/logging"
	"github.com/1broseidon/tsps/internal/mux"
	"github.com/1broseidon/tsps/internal/workdir"
)

const (
	// DefaultArrangement is the baseline layout applied before resizing.
	DefaultArrangement = "tiled"

	// DefaultSettleDelay lets tmux finish re-tiling before resize-pane runs.
	DefaultSettleDelay = 100 * time.Millisecond

	// MaxPaneCount bounds positional mode. tmux refuses to split long before
	// this many panes fit in a window.
	MaxPaneCount = 1024
)

// Engine applies layouts through a Multiplexer.
type Engine struct {
	mux         mux.Multiplexer
	arrangement string
	settleDelay time.Duration
	sleep       func(time.Duration)
	resolve     func(string) (string, error)
	preflight   func() error
}

// Option configures an Engine.
type Option func(*Engine)

// WithArrangement overrides the baseline select-layout name.
func WithArrangement(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.arrangement = name
		}
	}
}

// WithSettleDelay overrides the pause between arrangement and resizing.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.settleDelay = d
		}
	}
}

// WithSleeper replaces time.Sleep, mainly for tests.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(e *Engine) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// WithResolver replaces workdir.Resolve.
func WithResolver(resolve func(string) (string, error)) Option {
	return func(e *Engine) {
		if resolve != nil {
			e.resolve = resolve
		}
	}
}

// WithPreflight runs check once the directory has resolved and before the
// first multiplexer command. A non-nil result aborts the run.
func WithPreflight(check func() error) Option {
	return func(e *Engine) {
		e.preflight = check
	}
}

// NewEngine creates an engine driving m.
func NewEngine(m mux.Multiplexer, opts ...Option) *Engine {
	e := &Engine{
		mux:         m,
		arrangement: DefaultArrangement,
		settleDelay: DefaultSettleDelay,
		sleep:       time.Sleep,
		resolve:     workdir.Resolve,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply runs the full declarative pipeline for l and returns the resolved
// workspace directory.
func (e *Engine) Apply(ctx context.Context, l *layout.Layout) (string, error) {
	dir, err := e.prepare(ctx, l.Workspace.Directory)
	if err != nil {
		return "", err
	}
	log := logging.FromContext(ctx).With("workspace", l.Workspace.Name)
	log.Debug("applying layout", "directory", dir, "panes", len(l.Panes))

	if err := e.createPanes(ctx, l.Panes, dir); err != nil {
		return "", err
	}
	if err := e.arrange(ctx); err != nil {
		return "", err
	}
	if err := e.resize(ctx, l.Panes); err != nil {
		return "", err
	}
	if err := e.executeCommands(ctx, l.Panes); err != nil {
		return "", err
	}
	if err := e.focus(ctx, l); err != nil {
		return "", err
	}
	log.Debug("layout applied")
	return dir, nil
}

// ApplyPositional creates count panes in dir and tiles them. It never
// resizes, types commands or moves focus.
func (e *Engine) ApplyPositional(ctx context.Context, count int, dir string) (string, error) {
	if err := ValidatePaneCount(count); err != nil {
		return "", err
	}

	resolved, err := e.prepare(ctx, dir)
	if err != nil {
		return "", err
	}
	logging.FromContext(ctx).Debug("creating panes", "directory", resolved, "panes", count)

	for i := 1; i < count; i++ {
		if err := e.split(ctx, i, layout.SplitDefault, resolved); err != nil {
			return "", err
		}
	}
	if err := e.arrange(ctx); err != nil {
		return "", err
	}
	return resolved, nil
}

// ValidatePaneCount checks a positional pane count.
func ValidatePaneCount(count int) error {
	if count < 1 {
		return apperr.New(apperr.KindInvalidArgument, "pane_count must be a positive integer")
	}
	if count > MaxPaneCount {
		return apperr.New(apperr.KindInvalidArgument, "pane_count must be at most %d", MaxPaneCount)
	}
	return nil
}

// prepare resolves the workspace directory once and moves the invoking pane
// into it. Nothing is sent to tmux when resolution or the preflight fails.
func (e *Engine) prepare(ctx context.Context, dir string) (string, error) {
	resolved, err := e.resolve(dir)
	if err != nil {
		return "", err
	}
	if e.preflight != nil {
		if err := e.preflight(); err != nil {
			return "", err
		}
	}
	if err := e.mux.SendKeys(ctx, "cd "+shellQuote(resolved)); err != nil {
		return "", apperr.Wrap(apperr.KindExternalCommandFailed, err, "failed to execute tmux command")
	}
	return resolved, nil
}

// splitAxis maps a pane's declared orientation to the tmux split axis. The
// layout file names the resulting arrangement, tmux names the dividing line,
// so "horizontal" panes are created with a vertical-axis split.
func splitAxis(index int, split layout.Split) mux.Axis {
	switch split {
	case layout.SplitHorizontal:
		return mux.AxisVertical
	case layout.SplitVertical:
		return mux.AxisHorizontal
	default:
		if index%2 == 1 {
			return mux.AxisHorizontal
		}
		return mux.AxisVertical
	}
}

func (e *Engine) createPanes(ctx context.Context, panes []layout.PaneSpec, dir string) error {
	for i := 1; i < len(panes); i++ {
		if err := e.split(ctx, i, panes[i].Split, dir); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) split(ctx context.Context, index int, declared layout.Split, dir string) error {
	axis := splitAxis(index, declared)
	logging.FromContext(ctx).Debug("split-window", "pane", index, "axis", axis.String())
	if err := e.mux.SplitWindow(ctx, axis, dir); err != nil {
		return apperr.Wrap(apperr.KindExternalCommandFailed, err, "failed to create pane %d", index+1)
	}
	return nil
}

func (e *Engine) arrange(ctx context.Context) error {
	logging.FromContext(ctx).Debug("select-layout", "name", e.arrangement)
	if err := e.mux.SelectLayout(ctx, e.arrangement); err != nil {
		return apperr.Wrap(apperr.KindExternalCommandFailed, err, "failed to arrange panes")
	}
	return nil
}

// resizeDimension picks the extent a size applies to. Without a declared
// split, percentages resize the width and cell counts resize the height.
func resizeDimension(size layout.Size, split layout.Split) mux.Dimension {
	switch split {
	case layout.SplitHorizontal:
		return mux.DimensionHeight
	case layout.SplitVertical:
		return mux.DimensionWidth
	default:
		if size.Percent {
			return mux.DimensionWidth
		}
		return mux.DimensionHeight
	}
}

// resize waits for the arrangement to settle, then applies each declared size
// and re-applies the first sized horizontal pane's height. The second pass is
// what fixes the top/bottom ratio once the grid has redistributed rows.
func (e *Engine) resize(ctx context.Context, panes []layout.PaneSpec) error {
	log := logging.FromContext(ctx)
	if e.settleDelay > 0 {
		e.sleep(e.settleDelay)
	}

	for i, p := range panes {
		size, ok := p.ParsedSize()
		if !ok {
			continue
		}
		dim := resizeDimension(size, p.Split)
		log.Debug("resize-pane", "pane", i, "dimension", dim.String(), "amount", size.Amount)
		if err := e.mux.ResizePane(ctx, i, dim, size.Amount); err != nil {
			return apperr.Wrap(apperr.KindExternalCommandFailed, err, "failed to resize pane %d %s", i, dim.Flag())
		}
	}

	for i, p := range panes {
		if p.Split != layout.SplitHorizontal {
			continue
		}
		size, ok := p.ParsedSize()
		if !ok {
			continue
		}
		log.Debug("adjust row height", "pane", i, "amount", size.Amount)
		if err := e.mux.ResizePane(ctx, i, mux.DimensionHeight, size.Amount); err != nil {
			return apperr.Wrap(apperr.KindExternalCommandFailed, err, "failed to adjust row height for pane %d", i)
		}
		break
	}
	return nil
}

func (e *Engine) executeCommands(ctx context.Context, panes []layout.PaneSpec) error {
	log := logging.FromContext(ctx)
	for i, p := range panes {
		if err := e.mux.SelectPane(ctx, i); err != nil {
			return apperr.Wrap(apperr.KindExternalCommandFailed, err, "failed to select pane %d", i)
		}
		for _, command := range p.Commands {
			log.Debug("send-keys", "pane", i, "command", command)
			if err := e.mux.SendKeys(ctx, command); err != nil {
				return apperr.Wrap(apperr.KindExternalCommandFailed, err, "failed to execute command '%s' in pane %d", command, i)
			}
		}
	}
	return nil
}

func (e *Engine) focus(ctx context.Context, l *layout.Layout) error {
	idx, ok := l.FocusIndex()
	if !ok {
		return nil
	}
	logging.FromContext(ctx).Debug("focus", "pane", idx)
	if err := e.mux.SelectPane(ctx, idx); err != nil {
		return apperr.Wrap(apperr.KindExternalCommandFailed, err, "failed to focus pane %d", idx)
	}
	return nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
