package content

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// PlainText is the language of code blocks without a recognised language.
const PlainText = "plaintext"

// LanguageAttr holds the language of a <pre> code block.
const LanguageAttr = "data-language"

const legacyClassPrefix = "language-"

// Language is a selectable code-block language.
type Language struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Languages lists the supported code-block languages in menu order.
var Languages = []Language{
	{"javascript", "JavaScript"},
	{"typescript", "TypeScript"},
	{"python", "Python"},
	{"java", "Java"},
	{"c", "C"},
	{"cpp", "C++"},
	{"go", "Go"},
	{"json", "JSON"},
	{"css", "CSS"},
	{"html", "HTML"},
	{"sql", "SQL"},
}

var languageAliases = map[string]string{
	"js":  "javascript",
	"ts":  "typescript",
	"py":  "python",
	"xml": "html",
}

// NormalizeLanguage maps name (or an alias) to a supported language value,
// falling back to PlainText.
func NormalizeLanguage(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := languageAliases[name]; ok {
		name = alias
	}
	for _, l := range Languages {
		if l.Value == name {
			return name
		}
	}
	return PlainText
}

// CodeLanguage returns the language of a <pre> block: its data-language
// attribute, else a legacy language-xxx class on the block or its <code>.
func CodeLanguage(pre *html.Node) string {
	if v, ok := Attr(pre, LanguageAttr); ok && strings.TrimSpace(v) != "" {
		return NormalizeLanguage(v)
	}
	if lang := legacyClassLanguage(pre); lang != "" {
		return NormalizeLanguage(lang)
	}
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Code {
			if lang := legacyClassLanguage(c); lang != "" {
				return NormalizeLanguage(lang)
			}
		}
	}
	return PlainText
}

func legacyClassLanguage(n *html.Node) string {
	class, _ := Attr(n, "class")
	for _, f := range strings.Fields(class) {
		if strings.HasPrefix(f, legacyClassPrefix) {
			return strings.TrimPrefix(f, legacyClassPrefix)
		}
	}
	return ""
}

// NormalizeCodeBlocks writes the resolved language of every <pre> into its
// data-language attribute and drops legacy language classes from <code>.
func NormalizeCodeBlocks(fragment string) (string, error) {
	tree, err := Parse(fragment)
	if err != nil {
		return "", err
	}
	for _, pre := range FindAll(tree.Root(), atom.Pre) {
		SetAttr(pre, LanguageAttr, CodeLanguage(pre))
		for c := pre.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.DataAtom == atom.Code && legacyClassLanguage(c) != "" {
				RemoveAttr(c, "class")
			}
		}
	}
	return tree.HTML()
}

// highlightStyle only feeds WriteCSS; blocks are rendered with classes.
var highlightStyle = styles.Get("github")

var highlighter = chromahtml.New(
	chromahtml.WithClasses(true),
	chromahtml.PreventSurroundingPre(true),
)

// Highlight returns fragment with every code block whose language is not
// PlainText tokenised into chroma class spans. Stored content is never
// passed through this; it is a view transformation.
func Highlight(fragment string) (string, error) {
	tree, err := Parse(fragment)
	if err != nil {
		return "", err
	}
	for _, pre := range FindAll(tree.Root(), atom.Pre) {
		lang := CodeLanguage(pre)
		if lang == PlainText {
			continue
		}
		if err := highlightBlock(pre, lang); err != nil {
			return "", err
		}
	}
	return tree.HTML()
}

func highlightBlock(pre *html.Node, lang string) error {
	lexer := lexers.Get(lang)
	if lexer == nil {
		return nil
	}
	lexer = chroma.Coalesce(lexer)

	code := pre
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Code {
			code = c
			break
		}
	}
	src := TextContent(code)

	it, err := lexer.Tokenise(nil, src)
	if err != nil {
		return fmt.Errorf("content: tokenise %s: %w", lang, err)
	}
	var buf bytes.Buffer
	if err := highlighter.Format(&buf, highlightStyle, it); err != nil {
		return fmt.Errorf("content: highlight %s: %w", lang, err)
	}

	ctx := &html.Node{Type: html.ElementNode, Data: "code", DataAtom: atom.Code}
	nodes, err := parseNodes(buf.String(), ctx)
	if err != nil {
		return err
	}
	nodes = unwrapCode(nodes)

	for c := code.FirstChild; c != nil; {
		next := c.NextSibling
		code.RemoveChild(c)
		c = next
	}
	for _, n := range nodes {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		code.AppendChild(n)
	}
	SetAttr(pre, LanguageAttr, lang)
	SetAttr(pre, "class", "chroma")
	return nil
}

// unwrapCode strips any pre/code wrapper the formatter emitted.
func unwrapCode(nodes []*html.Node) []*html.Node {
	for len(nodes) == 1 && nodes[0].Type == html.ElementNode &&
		(nodes[0].DataAtom == atom.Pre || nodes[0].DataAtom == atom.Code) {
		var inner []*html.Node
		for c := nodes[0].FirstChild; c != nil; c = c.NextSibling {
			inner = append(inner, c)
		}
		nodes = inner
	}
	return nodes
}

// WriteHighlightCSS writes the stylesheet for the classes Highlight emits.
func WriteHighlightCSS(w io.Writer) error {
	return highlighter.WriteCSS(w, highlightStyle)
}
