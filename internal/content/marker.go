package content

import (
	"html"
	"regexp"
	"strings"

	"github.com/google/uuid"
	nethtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// markerDelim is INVISIBLE SEPARATOR, which editors render as nothing.
const markerDelim = "\u2063"

var markerRe = regexp.MustCompile(`\x{2063}t-[0-9a-z]+\x{2063}`)

// FileAttr marks anchors that point at uploaded files.
const FileAttr = "data-vd-file"

// UploadErrorClass is the class of the paragraph that reports a failed upload.
const UploadErrorClass = "vd-upload-error"

// NewMarker returns a fresh upload marker token.
func NewMarker() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return markerDelim + "t-" + id[:12] + markerDelim
}

// HasMarker reports whether s contains any marker delimiter.
func HasMarker(s string) bool {
	return strings.Contains(s, markerDelim)
}

// StripMarkers removes every marker token from fragment. Stray delimiters
// are removed as well.
func StripMarkers(fragment string) string {
	if !HasMarker(fragment) {
		return fragment
	}
	fragment = markerRe.ReplaceAllString(fragment, "")
	return strings.ReplaceAll(fragment, markerDelim, "")
}

// PlaceholderHTML is the paragraph shown while an upload is in flight.
func PlaceholderHTML(name, marker string) string {
	return "<p>📎 " + html.EscapeString(name) + " <em>(uploading…)</em>" + marker + "</p>"
}

// FileLinkHTML is the paragraph that replaces a placeholder after a
// successful upload.
func FileLinkHTML(url, name string) string {
	return `<p><a ` + FileAttr + `="1" href="` + html.EscapeString(url) +
		`" target="_blank" rel="noopener">📎 ` + html.EscapeString(name) + `</a></p>`
}

// UploadErrorHTML is the paragraph that replaces a placeholder after a
// failed upload.
func UploadErrorHTML(name string, err error) string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return `<p class="` + UploadErrorClass + `">❌ Upload failed: ` +
		html.EscapeString(name) + " — " + html.EscapeString(msg) + "</p>"
}

// ReplaceBlockContaining finds the first text node containing marker, walks
// up to its enclosing paragraph and replaces that paragraph with the first
// element of replacement. When the marker, the paragraph or a replacement
// element is missing, fragment is returned unchanged and ok is false.
func ReplaceBlockContaining(fragment, marker, replacement string) (out string, ok bool, err error) {
	if marker == "" || !strings.Contains(fragment, marker) {
		return fragment, false, nil
	}
	tree, err := Parse(fragment)
	if err != nil {
		return fragment, false, err
	}

	var text *nethtml.Node
	Walk(tree.Root(), func(n *nethtml.Node) bool {
		if n.Type == nethtml.TextNode && strings.Contains(n.Data, marker) {
			text = n
			return false
		}
		return true
	})
	if text == nil {
		return fragment, false, nil
	}
	p := text.Parent
	for p != nil && p.DataAtom != atom.P {
		p = p.Parent
	}
	if p == nil || p == tree.Root() {
		return fragment, false, nil
	}

	repl, err := firstElement(replacement)
	if err != nil {
		return fragment, false, err
	}
	if repl == nil {
		return fragment, false, nil
	}
	replaceNode(p, repl)

	out, err = tree.HTML()
	if err != nil {
		return fragment, false, err
	}
	return out, true, nil
}

// Settle resolves the upload identified by marker: a file link on success, an
// error paragraph when uploadErr is set. A missing marker is a no-op.
func Settle(fragment, marker, name, url string, uploadErr error) (string, bool, error) {
	repl := FileLinkHTML(url, name)
	if uploadErr != nil {
		repl = UploadErrorHTML(name, uploadErr)
	}
	return ReplaceBlockContaining(fragment, marker, repl)
}

// InsertAt inserts block before the top-level node at index. An index past
// the end, or negative, appends.
func InsertAt(fragment, block string, index int) (string, error) {
	tree, err := Parse(fragment)
	if err != nil {
		return "", err
	}
	nodes, err := parseNodes(block, newContainer())
	if err != nil {
		return "", err
	}
	var at *nethtml.Node
	if index >= 0 {
		i := 0
		for c := tree.Root().FirstChild; c != nil; c = c.NextSibling {
			if i == index {
				at = c
				break
			}
			i++
		}
	}
	for _, n := range nodes {
		tree.Root().InsertBefore(n, at)
	}
	return tree.HTML()
}
