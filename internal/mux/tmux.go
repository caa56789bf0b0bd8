package mux

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/1broseidon/tsps/internal/apperr"
)

// SessionEnv is set by tmux inside every pane it spawns.
const SessionEnv = "TMUX"

// CommandError reports a tmux invocation that could not run or exited non-zero.
type CommandError struct {
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	name := "tmux"
	if len(e.Args) > 0 {
		name = "tmux " + e.Args[0]
	}
	if e.Output != "" {
		return fmt.Sprintf("%s failed: %v (%s)", name, e.Err, e.Output)
	}
	return fmt.Sprintf("%s failed: %v", name, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func (e *CommandError) ErrorKind() apperr.Kind {
	return apperr.KindExternalCommandFailed
}

// TmuxMultiplexer implements Multiplexer by invoking the tmux CLI.
type TmuxMultiplexer struct {
	binary    string
	socket    string
	baseIndex int
}

// NewTmuxMultiplexer creates a new tmux multiplexer instance
func NewTmuxMultiplexer(opts ...Option) *TmuxMultiplexer {
	o := applyOptions(opts)
	return &TmuxMultiplexer{
		binary:    o.binary,
		socket:    o.socket,
		baseIndex: o.baseIndex,
	}
}

// Name returns "tmux"
func (t *TmuxMultiplexer) Name() string {
	return "tmux"
}

// Available returns true if the tmux binary resolves
func (t *TmuxMultiplexer) Available() bool {
	_, err := exec.LookPath(t.binary)
	return err == nil
}

// InSession reports whether the process runs inside a tmux client.
func InSession() bool {
	return strings.TrimSpace(os.Getenv(SessionEnv)) != ""
}

// SendKeys types text literally, then submits it with a separate Enter.
func (t *TmuxMultiplexer) SendKeys(ctx context.Context, text string) error {
	if err := t.run(ctx, "send-keys", "-l", text); err != nil {
		return err
	}
	return t.run(ctx, "send-keys", "Enter")
}

func (t *TmuxMultiplexer) SplitWindow(ctx context.Context, axis Axis, dir string) error {
	return t.run(ctx, "split-window", axis.Flag(), "-c", dir)
}

func (t *TmuxMultiplexer) SelectLayout(ctx context.Context, name string) error {
	return t.run(ctx, "select-layout", name)
}

func (t *TmuxMultiplexer) ResizePane(ctx context.Context, pane int, dim Dimension, amount string) error {
	return t.run(ctx, "resize-pane", "-t", t.target(pane), dim.Flag(), amount)
}

func (t *TmuxMultiplexer) SelectPane(ctx context.Context, pane int) error {
	return t.run(ctx, "select-pane", "-t", t.target(pane))
}

// target returns the tmux target string for a zero-based pane index
func (t *TmuxMultiplexer) target(pane int) string {
	return strconv.Itoa(pane + t.baseIndex)
}

// Args returns the full argv (without the binary) for a tmux subcommand.
func (t *TmuxMultiplexer) Args(args ...string) []string {
	if t.socket == "" {
		return args
	}
	return append([]string{"-L", t.socket}, args...)
}

func (t *TmuxMultiplexer) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, t.binary, t.Args(args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &CommandError{
			Args:   args,
			Output: strings.TrimSpace(string(out)),
			Err:    err,
		}
	}
	return nil
}
