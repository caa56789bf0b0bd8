package mux

import (
	"context"
	"strconv"
	"strings"
)

// Op is one recorded multiplexer primitive.
type Op struct {
	Name string
	Pane int
	Axis Axis
	Dim  Dimension
	Arg  string
}

// Op names, matching the tmux subcommands they stand for.
const (
	OpSendKeys     = "send-keys"
	OpSplitWindow  = "split-window"
	OpSelectLayout = "select-layout"
	OpResizePane   = "resize-pane"
	OpSelectPane   = "select-pane"
)

// Args renders the op as tmux arguments with zero-based pane targets.
func (o Op) Args() []string {
	return o.args(0)
}

func (o Op) args(base int) []string {
	switch o.Name {
	case OpSendKeys:
		return []string{OpSendKeys, "-l", o.Arg, ";", OpSendKeys, "Enter"}
	case OpSplitWindow:
		return []string{OpSplitWindow, o.Axis.Flag(), "-c", o.Arg}
	case OpSelectLayout:
		return []string{OpSelectLayout, o.Arg}
	case OpResizePane:
		return []string{OpResizePane, "-t", strconv.Itoa(o.Pane + base), o.Dim.Flag(), o.Arg}
	case OpSelectPane:
		return []string{OpSelectPane, "-t", strconv.Itoa(o.Pane + base)}
	default:
		return []string{o.Name}
	}
}

// String renders the op as a shell-style tmux command line.
func (o Op) String() string {
	return o.line(applyOptions(nil))
}

// line renders the op the way TmuxMultiplexer configured with opts runs it.
func (o Op) line(opts *options) string {
	args := o.args(opts.baseIndex)
	parts := make([]string, 0, len(args)+3)
	parts = append(parts, quoteArg(opts.binary))
	if opts.socket != "" {
		parts = append(parts, "-L", quoteArg(opts.socket))
	}
	for _, a := range args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" {
		return "''"
	}
	if s == ";" {
		return `\;`
	}
	if !strings.ContainsAny(s, " \t\r\n'\"\\$`(){}[]*?!;|&<>") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Recorder is an in-memory Multiplexer that records every call instead of
// running tmux. FailOn, when set, is consulted before recording; a non-nil
// result fails the call and the op is not recorded.
type Recorder struct {
	Ops    []Op
	FailOn func(Op) error

	opts *options
}

// NewRecorder returns an empty Recorder. Options only affect Lines, which
// renders ops with the same binary, socket and pane base index a
// TmuxMultiplexer built from opts would use.
func NewRecorder(opts ...Option) *Recorder {
	return &Recorder{opts: applyOptions(opts)}
}

func (r *Recorder) record(op Op) error {
	if r.FailOn != nil {
		if err := r.FailOn(op); err != nil {
			return err
		}
	}
	r.Ops = append(r.Ops, op)
	return nil
}

func (r *Recorder) SendKeys(_ context.Context, text string) error {
	return r.record(Op{Name: OpSendKeys, Arg: text})
}

func (r *Recorder) SplitWindow(_ context.Context, axis Axis, dir string) error {
	return r.record(Op{Name: OpSplitWindow, Axis: axis, Arg: dir})
}

func (r *Recorder) SelectLayout(_ context.Context, name string) error {
	return r.record(Op{Name: OpSelectLayout, Arg: name})
}

func (r *Recorder) ResizePane(_ context.Context, pane int, dim Dimension, amount string) error {
	return r.record(Op{Name: OpResizePane, Pane: pane, Dim: dim, Arg: amount})
}

func (r *Recorder) SelectPane(_ context.Context, pane int) error {
	return r.record(Op{Name: OpSelectPane, Pane: pane})
}

// Lines renders every recorded op as a tmux command line.
func (r *Recorder) Lines() []string {
	lines := make([]string, 0, len(r.Ops))
	opts := r.opts
	if opts == nil {
		opts = applyOptions(nil)
	}
	for _, op := range r.Ops {
		lines = append(lines, op.line(opts))
	}
	return lines
}

// Count returns how many recorded ops carry the given name.
func (r *Recorder) Count(name string) int {
	n := 0
	for _, op := range r.Ops {
		if op.Name == name {
			n++
		}
	}
	return n
}
