// Package workdir resolves the directory every pane is anchored at.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/1broseidon/tsps/internal/apperr"
)

// NotFoundError reports a directory that does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Directory '%s' does not exist", e.Path)
}

func (e *NotFoundError) ErrorKind() apperr.Kind {
	return apperr.KindPreconditionFailed
}

// ResolveError reports a directory that exists but cannot be canonicalized.
type ResolveError struct {
	Path string
	Err  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("Cannot resolve path '%s': %v", e.Path, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

func (e *ResolveError) ErrorKind() apperr.Kind {
	return apperr.KindPathResolution
}

// Exists reports whether path names an existing directory.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return info.IsDir(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Resolve checks that path is an existing directory and returns its absolute,
// symlink-free form.
func Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", &NotFoundError{Path: path}
	}
	ok, err := Exists(path)
	if err != nil {
		return "", &ResolveError{Path: path, Err: err}
	}
	if !ok {
		return "", &NotFoundError{Path: path}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &ResolveError{Path: path, Err: err}
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", &ResolveError{Path: path, Err: err}
	}
	return resolved, nil
}
