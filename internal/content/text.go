package content

import (
	"bytes"
	"fmt"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Li: true, atom.Blockquote: true, atom.Pre: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Div: true, atom.Ul: true, atom.Ol: true, atom.Tr: true, atom.Br: true,
}

// PlainTextOf returns the visible text of fragment with blocks separated by
// single spaces and whitespace runs collapsed. Markers are removed.
func PlainTextOf(fragment string) (string, error) {
	tree, err := Parse(StripMarkers(fragment))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	Walk(tree.Root(), func(n *html.Node) bool {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
		case n.Type == html.ElementNode && blockAtoms[n.DataAtom]:
			b.WriteByte(' ')
		}
		return true
	})
	return strings.Join(strings.Fields(b.String()), " "), nil
}

// ToMarkdown converts fragment to Markdown.
func ToMarkdown(fragment string) (string, error) {
	doc, err := html.Parse(strings.NewReader(StripMarkers(fragment)))
	if err != nil {
		return "", fmt.Errorf("content: parse: %w", err)
	}
	md, err := htmltomarkdown.ConvertNode(doc)
	if err != nil {
		return "", fmt.Errorf("content: convert to markdown: %w", err)
	}
	return string(md), nil
}

// FromMarkdown renders Markdown to an HTML fragment. Fenced code blocks get
// their language moved into data-language.
func FromMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("content: render markdown: %w", err)
	}
	return NormalizeCodeBlocks(buf.String())
}
