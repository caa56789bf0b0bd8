// Package layout models a declarative pane layout: a workspace anchored at a
// directory plus an ordered list of pane specifications.
//
// Pane order is significant. Index 0 is the pane tsps was started from; every
// later entry becomes one split, in order, and its index is the tmux pane
// index used for resizing, command injection and focus.
package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/1broseidon/tsps/internal/apperr"
)

// DefaultFixedSize is used when a fixed size string is not an integer.
const DefaultFixedSize = 10

// Split is the plain-language split orientation declared for a pane.
type Split string

const (
	SplitDefault    Split = ""
	SplitHorizontal Split = "horizontal" // new pane stacks below
	SplitVertical   Split = "vertical"   // new pane sits to the right
)

// Valid reports whether s is a recognized orientation (or unset).
func (s Split) Valid() bool {
	switch s {
	case SplitDefault, SplitHorizontal, SplitVertical:
		return true
	default:
		return false
	}
}

// Workspace is the named, directory-anchored context of a layout.
type Workspace struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Directory   string `yaml:"directory" json:"directory"`
}

// PaneSpec describes one pane.
type PaneSpec struct {
	ID       string   `yaml:"id,omitempty" json:"id,omitempty"`
	Size     string   `yaml:"size,omitempty" json:"size,omitempty"`
	Split    Split    `yaml:"split,omitempty" json:"split,omitempty"`
	Commands []string `yaml:"commands,omitempty" json:"commands,omitempty"`
	Focus    bool     `yaml:"focus,omitempty" json:"focus,omitempty"`
}

// Layout is a complete layout document.
type Layout struct {
	Workspace Workspace  `yaml:"workspace" json:"workspace"`
	Panes     []PaneSpec `yaml:"panes" json:"panes"`
}

// OverrideDirectory replaces the workspace directory. An empty dir is ignored.
func (l *Layout) OverrideDirectory(dir string) {
	if dir == "" {
		return
	}
	l.Workspace.Directory = dir
}

// FocusIndex returns the index of the first pane marked for focus.
func (l *Layout) FocusIndex() (int, bool) {
	for i, p := range l.Panes {
		if p.Focus {
			return i, true
		}
	}
	return 0, false
}

// ValidationError reports an invalid field in a layout document.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) ErrorKind() apperr.Kind {
	return apperr.KindParseError
}

// Validate checks the fields the engine cannot interpret. The directory is
// not checked here; it may still be overridden before application.
func (l *Layout) Validate() error {
	if strings.TrimSpace(l.Workspace.Name) == "" {
		return &ValidationError{Path: "workspace.name", Err: fmt.Errorf("name is required")}
	}
	for i, p := range l.Panes {
		if !p.Split.Valid() {
			return &ValidationError{
				Path: "panes[" + strconv.Itoa(i) + "].split",
				Err:  fmt.Errorf("must be one of: horizontal, vertical (got %q)", string(p.Split)),
			}
		}
	}
	return nil
}
