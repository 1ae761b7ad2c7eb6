package content

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html/atom"
)

func paragraphs(t *testing.T, fragment string) []string {
	t.Helper()
	tree, err := Parse(fragment)
	require.NoError(t, err)
	var out []string
	for _, p := range FindAll(tree.Root(), atom.P) {
		out = append(out, TextContent(p))
	}
	return out
}

func TestParseRoundTrip(t *testing.T) {
	in := `<h1>Title</h1><p>Hello <strong>world</strong></p><ul><li>a</li></ul>`
	tree, err := Parse(in)
	require.NoError(t, err)
	out, err := tree.HTML()
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestNewMarker(t *testing.T) {
	a, b := NewMarker(), NewMarker()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "\u2063t-"))
	assert.True(t, strings.HasSuffix(a, "\u2063"))
	assert.True(t, markerRe.MatchString(a))
}

func TestSettleSuccess(t *testing.T) {
	m := NewMarker()
	doc := "<p>intro</p>" + PlaceholderHTML("report.pdf", m) + "<p>outro</p>"

	out, ok, err := Settle(doc, m, "report.pdf", "/files/files/public/1-x.pdf", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t,
		`<p>intro</p><p><a data-vd-file="1" href="/files/files/public/1-x.pdf" target="_blank" rel="noopener">📎 report.pdf</a></p><p>outro</p>`,
		out)
	assert.False(t, HasMarker(out))
}

func TestSettleFailureLeavesOneErrorParagraph(t *testing.T) {
	m := NewMarker()
	other := NewMarker()
	doc := "<p>intro</p>" + PlaceholderHTML("report.pdf", m) + "<p>middle</p>" +
		PlaceholderHTML("slides.pptx", other) + "<p>outro</p>"
	before := paragraphs(t, doc)

	out, ok, err := Settle(doc, m, "report.pdf", "", errors.New("bucket not found"))
	require.NoError(t, err)
	require.True(t, ok)

	after := paragraphs(t, out)
	require.Len(t, after, len(before))
	changed := 0
	for i := range before {
		if before[i] != after[i] {
			changed++
			assert.Equal(t, "❌ Upload failed: report.pdf — bucket not found", after[i])
		}
	}
	assert.Equal(t, 1, changed)
	assert.Equal(t, 1, strings.Count(out, UploadErrorClass))
	assert.Contains(t, out, other, "unrelated placeholder must survive")
}

func TestSettleMissingMarkerIsNoop(t *testing.T) {
	doc := "<p>edited concurrently</p>"
	out, ok, err := Settle(doc, NewMarker(), "a.pdf", "/x", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, doc, out)
}

func TestReplaceBlockContainingNeedsParagraph(t *testing.T) {
	m := NewMarker()
	doc := "<div>" + m + "</div>"
	out, ok, err := ReplaceBlockContaining(doc, m, "<p>x</p>")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, doc, out)
}

func TestReplaceBlockContainingNested(t *testing.T) {
	m := NewMarker()
	doc := "<blockquote><p>quoted <em>" + m + "</em></p></blockquote>"
	out, ok, err := ReplaceBlockContaining(doc, m, "<p>done</p>")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "<blockquote><p>done</p></blockquote>", out)
}

func TestUploadErrorHTMLEscapes(t *testing.T) {
	out := UploadErrorHTML("<script>.pdf", errors.New("a & b"))
	assert.Contains(t, out, "&lt;script&gt;.pdf")
	assert.Contains(t, out, "a &amp; b")
}

func TestStripMarkers(t *testing.T) {
	m := NewMarker()
	assert.Equal(t, "<p>a</p>", StripMarkers("<p>a"+m+"</p>"))
	assert.Equal(t, "<p>ab</p>", StripMarkers("<p>a\u2063b</p>"))
	assert.Equal(t, "<p>plain</p>", StripMarkers("<p>plain</p>"))
}

func TestInsertAt(t *testing.T) {
	out, err := InsertAt("<p>a</p><p>b</p>", "<p>x</p>", 1)
	require.NoError(t, err)
	assert.Equal(t, "<p>a</p><p>x</p><p>b</p>", out)

	out, err = InsertAt("<p>a</p>", "<p>x</p><p>y</p>", -1)
	require.NoError(t, err)
	assert.Equal(t, "<p>a</p><p>x</p><p>y</p>", out)
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "javascript", NormalizeLanguage("JS"))
	assert.Equal(t, "html", NormalizeLanguage("xml"))
	assert.Equal(t, "go", NormalizeLanguage(" go "))
	assert.Equal(t, PlainText, NormalizeLanguage("rust"))
	assert.Equal(t, PlainText, NormalizeLanguage(""))
}

func TestCodeLanguage(t *testing.T) {
	cases := map[string]string{
		`<pre data-language="python"><code>x</code></pre>`:        "python",
		`<pre><code class="language-ts">x</code></pre>`:           "typescript",
		`<pre class="language-sql"><code>x</code></pre>`:          "sql",
		`<pre><code>x</code></pre>`:                               PlainText,
		`<pre data-language=""><code class="hljs">x</code></pre>`: PlainText,
	}
	for in, want := range cases {
		tree, err := Parse(in)
		require.NoError(t, err)
		pres := FindAll(tree.Root(), atom.Pre)
		require.Len(t, pres, 1)
		assert.Equal(t, want, CodeLanguage(pres[0]), in)
	}
}

func TestNormalizeCodeBlocks(t *testing.T) {
	out, err := NormalizeCodeBlocks(`<pre><code class="language-js">let a = 1;</code></pre>`)
	require.NoError(t, err)
	assert.Equal(t, `<pre data-language="javascript"><code>let a = 1;</code></pre>`, out)
}

func TestHighlight(t *testing.T) {
	in := `<p>intro</p><pre data-language="go"><code>package main</code></pre><pre><code>plain &lt;text&gt;</code></pre>`
	out, err := Highlight(in)
	require.NoError(t, err)
	assert.Contains(t, out, `class="chroma"`)
	assert.Contains(t, out, `<span class="`)
	assert.Contains(t, out, `<pre><code>plain &lt;text&gt;</code></pre>`)

	tree, err := Parse(out)
	require.NoError(t, err)
	pres := FindAll(tree.Root(), atom.Pre)
	require.Len(t, pres, 2)
	assert.Equal(t, "package main", strings.TrimSpace(TextContent(pres[0])))
}

func TestWriteHighlightCSS(t *testing.T) {
	var b strings.Builder
	require.NoError(t, WriteHighlightCSS(&b))
	assert.Contains(t, b.String(), ".chroma")
}

func TestPlainTextOf(t *testing.T) {
	got, err := PlainTextOf("<h1>Title</h1><p>Body <b>text</b></p><ul><li>one</li><li>two</li></ul>")
	require.NoError(t, err)
	assert.Equal(t, "Title Body text one two", got)
}

func TestToMarkdown(t *testing.T) {
	md, err := ToMarkdown("<h1>Title</h1><p>Hello <strong>world</strong></p>")
	require.NoError(t, err)
	assert.Contains(t, md, "# Title")
	assert.Contains(t, md, "**world**")
}

func TestFromMarkdown(t *testing.T) {
	out, err := FromMarkdown("# T\n\nSome *text*.\n\n```go\nx := 1\n```\n")
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>T</h1>")
	assert.Contains(t, out, "<em>text</em>")
	assert.Contains(t, out, `<pre data-language="go"><code>x := 1`)
}
