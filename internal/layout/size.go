package layout

import (
	"strconv"
	"strings"
)

// Size is a parsed pane size.
type Size struct {
	Percent bool
	// Amount is the value handed to resize-pane: "30%" or a cell count.
	Amount string
}

// ParseSize interprets a size string. A trailing % marks a percentage, which
// is passed through verbatim; anything else is a cell count, and a value that
// is not an integer degrades to DefaultFixedSize.
func ParseSize(s string) Size {
	if strings.HasSuffix(s, "%") {
		return Size{Percent: true, Amount: strings.TrimRight(s, "%") + "%"}
	}
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		n = DefaultFixedSize
	}
	return Size{Amount: strconv.FormatInt(n, 10)}
}

// ParsedSize returns the pane's size, if one is declared. An empty size
// counts as undeclared.
func (p PaneSpec) ParsedSize() (Size, bool) {
	if p.Size == "" {
		return Size{}, false
	}
	return ParseSize(p.Size), true
}
