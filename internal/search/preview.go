package search

import (
	"strings"

	"golang.org/x/net/html/atom"

	"github.com/vanesdocs/vanesdocs/internal/content"
)

// DefaultPreviewLength is the preview length used when none is given.
const DefaultPreviewLength = 160

const ellipsis = "…"

var previewBlocks = []atom.Atom{
	atom.P, atom.Li, atom.Blockquote, atom.Pre,
	atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
}

// ExtractPreview returns the text of the first non-empty block of fragment,
// or all of its text when no block has any, cut to max runes with a trailing
// ellipsis. max <= 0 means DefaultPreviewLength.
func ExtractPreview(fragment string, max int) string {
	if max <= 0 {
		max = DefaultPreviewLength
	}
	tree, err := content.Parse(content.StripMarkers(fragment))
	if err != nil {
		return ""
	}

	text := ""
	for _, n := range content.FindAll(tree.Root(), previewBlocks...) {
		if t := collapse(content.TextContent(n)); t != "" {
			text = t
			break
		}
	}
	if text == "" {
		text = collapse(content.TextContent(tree.Root()))
	}
	return truncate(text, max)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + ellipsis
}
