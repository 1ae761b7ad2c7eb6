// Package editor applies formatting commands to document content. Commands
// are pure: Apply returns a new State and never modifies its input.
package editor

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
	"github.com/vanesdocs/vanesdocs/internal/content"
)

// State is a document body split into top-level blocks, with the cursor on
// one of them.
type State struct {
	Blocks []string `json:"blocks"`
	Cursor int      `json:"cursor"`
}

const emptyParagraph = "<p></p>"

var blockAtoms = map[atom.Atom]bool{
	atom.P: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Ul: true, atom.Ol: true, atom.Pre: true, atom.Blockquote: true, atom.Img: true, atom.Hr: true,
	atom.Div: true, atom.Table: true, atom.Figure: true,
}

// ParseState splits fragment into blocks and puts the cursor on the last one.
// Loose inline content at the top level is wrapped in paragraphs. An empty
// fragment yields a single empty paragraph.
func ParseState(fragment string) (State, error) {
	tree, err := content.Parse(fragment)
	if err != nil {
		return State{}, err
	}
	var blocks []string
	var pending *html.Node
	flush := func() error {
		if pending == nil {
			return nil
		}
		s, err := render(pending)
		if err != nil {
			return err
		}
		blocks = append(blocks, s)
		pending = nil
		return nil
	}

	for c := tree.Root().FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == html.ElementNode && blockAtoms[c.DataAtom]:
			if err := flush(); err != nil {
				return State{}, err
			}
			s, err := render(c)
			if err != nil {
				return State{}, err
			}
			blocks = append(blocks, s)
		case c.Type == html.TextNode && strings.TrimSpace(c.Data) == "" && pending == nil:
		case c.Type == html.TextNode || c.Type == html.ElementNode:
			if pending == nil {
				pending = newElement(atom.P)
			}
			c.Parent.RemoveChild(c)
			pending.AppendChild(c)
		}
		c = next
	}
	if err := flush(); err != nil {
		return State{}, err
	}
	if len(blocks) == 0 {
		blocks = []string{emptyParagraph}
	}
	return State{Blocks: blocks, Cursor: len(blocks) - 1}, nil
}

// HTML joins the blocks back into a fragment.
func (s State) HTML() string {
	return strings.Join(s.Blocks, "")
}

func (s State) clone() State {
	return State{Blocks: append([]string(nil), s.Blocks...), Cursor: s.Cursor}
}

func (s State) validate() error {
	if len(s.Blocks) == 0 {
		return fmt.Errorf("editor: state has no blocks: %w", apperr.ErrInvalidInput)
	}
	if s.Cursor < 0 || s.Cursor >= len(s.Blocks) {
		return fmt.Errorf("editor: cursor %d out of range: %w", s.Cursor, apperr.ErrInvalidInput)
	}
	return nil
}

func newElement(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
}

// parseBlock parses one block string into its root element.
func parseBlock(s string) (*html.Node, error) {
	tree, err := content.Parse(s)
	if err != nil {
		return nil, err
	}
	for c := tree.Root().FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			c.Parent.RemoveChild(c)
			return c, nil
		}
	}
	p := newElement(atom.P)
	for c := tree.Root().FirstChild; c != nil; {
		next := c.NextSibling
		c.Parent.RemoveChild(c)
		p.AppendChild(c)
		c = next
	}
	return p, nil
}

func render(n *html.Node) (string, error) {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return "", fmt.Errorf("editor: render: %w", err)
	}
	return b.String(), nil
}

// detachChildren removes and returns the children of n.
func detachChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		out = append(out, c)
		c = next
	}
	return out
}

// retag returns a new element a holding the children of n.
func retag(n *html.Node, a atom.Atom) *html.Node {
	out := newElement(a)
	for _, c := range detachChildren(n) {
		out.AppendChild(c)
	}
	return out
}

func textElement(a atom.Atom, text string) *html.Node {
	n := newElement(a)
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	return n
}
