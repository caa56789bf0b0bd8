package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/1broseidon/tsps/internal/apperr"
)

// storeExtensions are tried in order when resolving a named layout.
var storeExtensions = []string{".yaml", ".yml", ".json", ".jsonc", ".hcl"}

func validateLayoutName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("layout name is required")
	}
	if strings.Contains(name, string(os.PathSeparator)) || name != filepath.Base(name) {
		return fmt.Errorf("invalid layout name %q", name)
	}
	if name == "." || name == ".." || strings.Contains(name, "..") {
		return fmt.Errorf("invalid layout name %q", name)
	}
	return nil
}

// Locate maps a --layout argument to a file. An existing path is returned
// as-is; otherwise ref is treated as a layout name and looked up as
// <storeDir>/<name>.<ext>.
func Locate(ref, storeDir string) (string, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return ref, nil
	}
	if storeDir == "" || validateLayoutName(ref) != nil || filepath.Ext(ref) != "" {
		return "", apperr.New(apperr.KindInvalidArgument, "cannot read layout file '%s'", ref)
	}
	for _, ext := range storeExtensions {
		path := filepath.Join(storeDir, ref+ext)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", apperr.Wrap(apperr.KindInvalidArgument, err, "cannot read layout '%s'", path)
		}
	}
	return "", apperr.New(apperr.KindInvalidArgument, "layout '%s' not found in %s", ref, storeDir)
}
