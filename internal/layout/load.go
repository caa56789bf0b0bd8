package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/1broseidon/tsps/internal/apperr"
)

// Format is a layout file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatHCL  Format = "hcl"
)

// FormatForPath picks the encoding from the file extension. Unknown
// extensions are read as YAML.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSON
	case ".hcl":
		return FormatHCL
	default:
		return FormatYAML
	}
}

// Load reads, decodes and validates a layout file.
func Load(path string) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidArgument, err, "cannot read layout file '%s'", path)
	}
	l, err := Parse(data, FormatForPath(path), path)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Parse decodes and validates a layout document. name is used in diagnostics.
func Parse(data []byte, format Format, name string) (*Layout, error) {
	var (
		l   *Layout
		err error
	)
	switch format {
	case FormatJSON:
		l, err = parseJSON(data)
	case FormatHCL:
		l, err = parseHCL(data, name)
	default:
		l, err = parseYAML(data)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindParseError, err, "failed to parse layout '%s'", name)
	}
	if err := l.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindParseError, err, "invalid layout '%s'", name)
	}
	return l, nil
}

func parseYAML(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// parseJSON accepts JSON extended with comments and trailing commas.
func parseJSON(data []byte) (*Layout, error) {
	var l Layout
	if err := json.Unmarshal(jsonc.ToJSON(data), &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// hclLayoutFile is the HCL shape of a layout:
//
//	workspace {
//	  name      = "dev"
//	  directory = "~/src/app"
//	}
//	pane {
//	  commands = ["nvim ."]
//	  focus    = true
//	}
type hclLayoutFile struct {
	Workspace *hclWorkspace `hcl:"workspace,block"`
	Panes     []*hclPane    `hcl:"pane,block"`
	Remain    hcl.Body      `hcl:",remain"`
}

type hclWorkspace struct {
	Name        string   `hcl:"name,optional"`
	Description string   `hcl:"description,optional"`
	Directory   string   `hcl:"directory,optional"`
	Remain      hcl.Body `hcl:",remain"`
}

type hclPane struct {
	ID       string   `hcl:"id,optional"`
	Size     string   `hcl:"size,optional"`
	Split    string   `hcl:"split,optional"`
	Commands []string `hcl:"commands,optional"`
	Focus    bool     `hcl:"focus,optional"`
	Remain   hcl.Body `hcl:",remain"`
}

func parseHCL(data []byte, name string) (*Layout, error) {
	file, diags := hclparse.NewParser().ParseHCL(data, name)
	if diags.HasErrors() {
		return nil, diags
	}

	var parsed hclLayoutFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, diags
	}
	if parsed.Workspace == nil {
		return nil, fmt.Errorf("a workspace block is required")
	}

	l := &Layout{
		Workspace: Workspace{
			Name:        parsed.Workspace.Name,
			Description: parsed.Workspace.Description,
			Directory:   parsed.Workspace.Directory,
		},
		Panes: make([]PaneSpec, 0, len(parsed.Panes)),
	}
	for _, p := range parsed.Panes {
		l.Panes = append(l.Panes, PaneSpec{
			ID:       p.ID,
			Size:     p.Size,
			Split:    Split(p.Split),
			Commands: p.Commands,
			Focus:    p.Focus,
		})
	}
	return l, nil
}
