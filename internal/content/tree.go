// Package content models document bodies: HTML fragments produced by the
// editor. It parses them into a node tree, substitutes upload markers,
// annotates code blocks and converts to and from Markdown.
package content

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Tree is a parsed HTML fragment. Top-level nodes hang off a synthetic body
// element so that they can be replaced like any other node.
type Tree struct {
	root *html.Node
}

func newContainer() *html.Node {
	return &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
}

// Parse parses an HTML fragment in body context.
func Parse(fragment string) (*Tree, error) {
	nodes, err := parseNodes(fragment, newContainer())
	if err != nil {
		return nil, err
	}
	root := newContainer()
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return &Tree{root: root}, nil
}

func parseNodes(fragment string, context *html.Node) ([]*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), context)
	if err != nil {
		return nil, fmt.Errorf("content: parse: %w", err)
	}
	return nodes, nil
}

// Root returns the synthetic container holding the fragment.
func (t *Tree) Root() *html.Node { return t.root }

// HTML serializes the fragment back to a string.
func (t *Tree) HTML() (string, error) {
	var b strings.Builder
	for c := t.root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", fmt.Errorf("content: render: %w", err)
		}
	}
	return b.String(), nil
}

// Walk visits n and its descendants in document order until fn returns false.
func Walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if !Walk(c, fn) {
			return false
		}
		c = next
	}
	return true
}

// FindAll returns every element under n whose tag is one of tags.
func FindAll(n *html.Node, tags ...atom.Atom) []*html.Node {
	var out []*html.Node
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.ElementNode {
			for _, a := range tags {
				if c.DataAtom == a {
					out = append(out, c)
					break
				}
			}
		}
		return true
	})
	return out
}

// TextContent concatenates the text nodes under n, like the DOM property.
func TextContent(n *html.Node) string {
	var b strings.Builder
	Walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets or replaces attribute key on n.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes attribute key from n.
func RemoveAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

// replaceNode swaps old for repl in old's parent.
func replaceNode(old, repl *html.Node) {
	old.Parent.InsertBefore(repl, old)
	old.Parent.RemoveChild(old)
}

// firstElement parses fragment and returns its first element node.
func firstElement(fragment string) (*html.Node, error) {
	nodes, err := parseNodes(strings.TrimSpace(fragment), newContainer())
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return n, nil
		}
	}
	return nil, nil
}
