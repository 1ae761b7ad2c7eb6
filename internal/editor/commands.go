package editor

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
	"github.com/vanesdocs/vanesdocs/internal/content"
)

// Command names.
const (
	ToggleBold        = "toggle_bold"
	ToggleItalic      = "toggle_italic"
	ToggleBulletList  = "toggle_bullet_list"
	ToggleOrderedList = "toggle_ordered_list"
	ToggleCodeBlock   = "toggle_code_block"
	SetHeading        = "set_heading"
	SetParagraph      = "set_paragraph"
	SetCodeLanguage   = "set_code_language"
	InsertContent     = "insert_content"
	SetImage          = "set_image"
	MoveCursor        = "move_cursor"
)

// MaxHeadingLevel is the deepest heading the editor offers.
const MaxHeadingLevel = 5

// Command is one editor operation. Only the fields its Name uses are read.
type Command struct {
	Name     string `json:"name" validate:"required,oneof=toggle_bold toggle_italic toggle_bullet_list toggle_ordered_list toggle_code_block set_heading set_paragraph set_code_language insert_content set_image move_cursor"`
	Level    int    `json:"level,omitempty" validate:"omitempty,min=1,max=5"`
	Language string `json:"language,omitempty"`
	HTML     string `json:"html,omitempty"`
	Src      string `json:"src,omitempty"`
	Alt      string `json:"alt,omitempty"`
	Index    int    `json:"index,omitempty"`
}

// Apply runs cmd against s and returns the resulting state.
func Apply(cmd Command, s State) (State, error) {
	if err := s.validate(); err != nil {
		return s, err
	}
	out := s.clone()
	var err error
	switch cmd.Name {
	case ToggleBold:
		err = out.updateCurrent(func(n *html.Node) (*html.Node, error) { return toggleMark(n, atom.Strong, atom.B), nil })
	case ToggleItalic:
		err = out.updateCurrent(func(n *html.Node) (*html.Node, error) { return toggleMark(n, atom.Em, atom.I), nil })
	case ToggleBulletList:
		err = out.updateCurrent(func(n *html.Node) (*html.Node, error) { return toggleList(n, atom.Ul), nil })
	case ToggleOrderedList:
		err = out.updateCurrent(func(n *html.Node) (*html.Node, error) { return toggleList(n, atom.Ol), nil })
	case ToggleCodeBlock:
		err = out.updateCurrent(func(n *html.Node) (*html.Node, error) { return toggleCode(n), nil })
	case SetHeading:
		if cmd.Level < 1 || cmd.Level > MaxHeadingLevel {
			return s, fmt.Errorf("editor: heading level %d: %w", cmd.Level, apperr.ErrInvalidInput)
		}
		err = out.updateCurrent(func(n *html.Node) (*html.Node, error) { return setTextBlock(n, headingAtoms[cmd.Level-1]), nil })
	case SetParagraph:
		err = out.updateCurrent(func(n *html.Node) (*html.Node, error) { return setTextBlock(n, atom.P), nil })
	case SetCodeLanguage:
		err = out.updateCurrent(func(n *html.Node) (*html.Node, error) {
			if n.DataAtom != atom.Pre {
				return nil, fmt.Errorf("editor: cursor is not on a code block: %w", apperr.ErrInvalidInput)
			}
			content.SetAttr(n, content.LanguageAttr, content.NormalizeLanguage(cmd.Language))
			return n, nil
		})
	case InsertContent:
		err = out.insert(cmd.HTML)
	case SetImage:
		src := strings.TrimSpace(cmd.Src)
		if src == "" {
			return s, fmt.Errorf("editor: image src is required: %w", apperr.ErrInvalidInput)
		}
		img := newElement(atom.Img)
		img.Attr = []html.Attribute{{Key: "src", Val: src}}
		if cmd.Alt != "" {
			img.Attr = append(img.Attr, html.Attribute{Key: "alt", Val: cmd.Alt})
		}
		var block string
		block, err = render(img)
		if err == nil {
			out.insertBlocks([]string{block})
		}
	case MoveCursor:
		if cmd.Index < 0 || cmd.Index >= len(out.Blocks) {
			return s, fmt.Errorf("editor: cursor %d out of range: %w", cmd.Index, apperr.ErrInvalidInput)
		}
		out.Cursor = cmd.Index
	default:
		return s, fmt.Errorf("editor: unknown command %q: %w", cmd.Name, apperr.ErrInvalidInput)
	}
	if err != nil {
		return s, err
	}
	return out, nil
}

var headingAtoms = []atom.Atom{atom.H1, atom.H2, atom.H3, atom.H4, atom.H5}

// updateCurrent replaces the block under the cursor with fn's result. fn
// may return several sibling blocks by returning a node whose type is
// html.DocumentNode; its children become the new blocks.
func (s *State) updateCurrent(fn func(*html.Node) (*html.Node, error)) error {
	n, err := parseBlock(s.Blocks[s.Cursor])
	if err != nil {
		return err
	}
	n, err = fn(n)
	if err != nil {
		return err
	}
	var blocks []string
	if n.Type == html.DocumentNode {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b, err := render(c)
			if err != nil {
				return err
			}
			blocks = append(blocks, b)
		}
	} else {
		b, err := render(n)
		if err != nil {
			return err
		}
		blocks = []string{b}
	}
	if len(blocks) == 0 {
		blocks = []string{emptyParagraph}
	}
	rest := append(blocks, s.Blocks[s.Cursor+1:]...)
	s.Blocks = append(s.Blocks[:s.Cursor:s.Cursor], rest...)
	s.Cursor += len(blocks) - 1
	return nil
}

// insert places the blocks of fragment after the cursor.
func (s *State) insert(fragment string) error {
	if strings.TrimSpace(fragment) == "" {
		return fmt.Errorf("editor: empty content: %w", apperr.ErrInvalidInput)
	}
	parsed, err := ParseState(fragment)
	if err != nil {
		return err
	}
	s.insertBlocks(parsed.Blocks)
	return nil
}

func (s *State) insertBlocks(blocks []string) {
	at := s.Cursor + 1
	if len(s.Blocks) == 1 && s.Blocks[0] == emptyParagraph {
		at = 0
		s.Blocks = s.Blocks[:0]
	}
	rest := append(append([]string(nil), blocks...), s.Blocks[at:]...)
	s.Blocks = append(s.Blocks[:at:at], rest...)
	s.Cursor = at + len(blocks) - 1
}

func group(nodes ...*html.Node) *html.Node {
	g := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		g.AppendChild(n)
	}
	return g
}

func isList(n *html.Node) bool {
	return n.DataAtom == atom.Ul || n.DataAtom == atom.Ol
}

func listItems(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Li {
			out = append(out, c)
		}
	}
	return out
}

// toggleMark wraps the inline content of n in mark, or unwraps it when it is
// already wrapped. alt is the legacy equivalent (b for strong, i for em).
// Lists apply the mark to every item; code blocks, images and rules are left
// as they are.
func toggleMark(n *html.Node, mark, alt atom.Atom) *html.Node {
	switch {
	case n.DataAtom == atom.Pre || n.DataAtom == atom.Img || n.DataAtom == atom.Hr:
		return n
	case isList(n):
		items := listItems(n)
		all := len(items) > 0
		for _, li := range items {
			if !wrappedIn(li, mark, alt) {
				all = false
			}
		}
		for _, li := range items {
			if all {
				unwrapMark(li)
			} else if !wrappedIn(li, mark, alt) {
				wrapMark(li, mark)
			}
		}
		return n
	}
	if wrappedIn(n, mark, alt) {
		unwrapMark(n)
	} else {
		wrapMark(n, mark)
	}
	return n
}

// wrappedIn reports whether n's only non-blank child is a mark element.
func wrappedIn(n *html.Node, mark, alt atom.Atom) bool {
	var only *html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) == "" {
			continue
		}
		if only != nil {
			return false
		}
		only = c
	}
	return only != nil && only.Type == html.ElementNode && (only.DataAtom == mark || only.DataAtom == alt)
}

func wrapMark(n *html.Node, mark atom.Atom) {
	if n.FirstChild == nil {
		return
	}
	m := newElement(mark)
	for _, c := range detachChildren(n) {
		m.AppendChild(c)
	}
	n.AppendChild(m)
}

func unwrapMark(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			for _, gc := range detachChildren(c) {
				n.InsertBefore(gc, c)
			}
			n.RemoveChild(c)
			return
		}
	}
}

// toggleList turns a text block into a one-item list of kind, switches a
// list of the other kind to kind, and splits a list of kind back into
// paragraphs.
func toggleList(n *html.Node, kind atom.Atom) *html.Node {
	switch {
	case n.DataAtom == kind:
		var paras []*html.Node
		for _, li := range listItems(n) {
			paras = append(paras, retag(li, atom.P))
		}
		return group(paras...)
	case isList(n):
		return retag(n, kind)
	case n.DataAtom == atom.Pre:
		list := newElement(kind)
		list.AppendChild(textElement(atom.Li, content.TextContent(n)))
		return list
	case n.DataAtom == atom.Img || n.DataAtom == atom.Hr:
		return n
	}
	list := newElement(kind)
	list.AppendChild(retag(n, atom.Li))
	return list
}

// toggleCode turns a block into a plaintext code block holding its text, or
// a code block back into a paragraph.
func toggleCode(n *html.Node) *html.Node {
	if n.DataAtom == atom.Pre {
		return textElement(atom.P, content.TextContent(n))
	}
	if n.DataAtom == atom.Img || n.DataAtom == atom.Hr {
		return n
	}
	var text string
	if isList(n) {
		var lines []string
		for _, li := range listItems(n) {
			lines = append(lines, content.TextContent(li))
		}
		text = strings.Join(lines, "\n")
	} else {
		text = content.TextContent(n)
	}
	pre := newElement(atom.Pre)
	pre.Attr = []html.Attribute{{Key: content.LanguageAttr, Val: content.PlainText}}
	pre.AppendChild(textElement(atom.Code, text))
	return pre
}

// setTextBlock converts n to a heading or paragraph. List items become one
// block each; code keeps only its text.
func setTextBlock(n *html.Node, a atom.Atom) *html.Node {
	switch {
	case isList(n):
		var out []*html.Node
		for _, li := range listItems(n) {
			out = append(out, retag(li, a))
		}
		return group(out...)
	case n.DataAtom == atom.Pre:
		return textElement(a, content.TextContent(n))
	case n.DataAtom == atom.Img || n.DataAtom == atom.Hr:
		return n
	}
	return retag(n, a)
}
