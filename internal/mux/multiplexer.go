package mux

import (
	"context"
	"errors"
)

// ErrMultiplexerNotAvailable is returned when the tmux binary cannot be found
var ErrMultiplexerNotAvailable = errors.New("no terminal multiplexer available (install tmux)")

// Axis names the tmux split axis. Naming follows tmux: a vertical-axis split
// stacks the new pane below, a horizontal-axis split places it to the right.
type Axis int

const (
	AxisVertical Axis = iota
	AxisHorizontal
)

// Flag returns the split-window flag for the axis.
func (a Axis) Flag() string {
	if a == AxisHorizontal {
		return "-h"
	}
	return "-v"
}

func (a Axis) String() string {
	if a == AxisHorizontal {
		return "horizontal"
	}
	return "vertical"
}

// Dimension is the pane extent adjusted by a resize.
type Dimension int

const (
	DimensionWidth Dimension = iota
	DimensionHeight
)

// Flag returns the resize-pane flag for the dimension.
func (d Dimension) Flag() string {
	if d == DimensionHeight {
		return "-y"
	}
	return "-x"
}

func (d Dimension) String() string {
	if d == DimensionHeight {
		return "height"
	}
	return "width"
}

// Multiplexer is the set of primitive operations the layout engine drives.
// Every call is synchronous; a non-nil error means the operation failed.
type Multiplexer interface {
	// SendKeys types text literally into the active pane, followed by Enter.
	SendKeys(ctx context.Context, text string) error

	// SplitWindow splits the active pane along axis, starting the new pane in dir.
	SplitWindow(ctx context.Context, axis Axis, dir string) error

	// SelectLayout applies a named baseline arrangement to all panes.
	SelectLayout(ctx context.Context, name string) error

	// ResizePane sets one extent of pane to amount ("30%" or a cell count).
	ResizePane(ctx context.Context, pane int, dim Dimension, amount string) error

	// SelectPane makes pane the active pane.
	SelectPane(ctx context.Context, pane int) error
}

// Option configures a TmuxMultiplexer
type Option func(*options)

type options struct {
	binary    string
	socket    string
	baseIndex int
}

// WithBinary overrides the tmux executable.
func WithBinary(path string) Option {
	return func(o *options) {
		o.binary = path
	}
}

// WithSocket routes every command to a named server socket (tmux -L).
func WithSocket(name string) Option {
	return func(o *options) {
		o.socket = name
	}
}

// WithPaneBaseIndex offsets pane targets for servers with pane-base-index set.
func WithPaneBaseIndex(base int) Option {
	return func(o *options) {
		o.baseIndex = base
	}
}

func applyOptions(opts []Option) *options {
	o := &options{binary: "tmux"}
	for _, opt := range opts {
		opt(o)
	}
	if o.binary == "" {
		o.binary = "tmux"
	}
	return o
}
