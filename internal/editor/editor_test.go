package editor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
)

func state(t *testing.T, fragment string, cursor int) State {
	t.Helper()
	s, err := ParseState(fragment)
	require.NoError(t, err)
	s.Cursor = cursor
	return s
}

func apply(t *testing.T, cmd Command, s State) State {
	t.Helper()
	out, err := Apply(cmd, s)
	require.NoError(t, err)
	return out
}

func TestParseState(t *testing.T) {
	s, err := ParseState("<h1>T</h1>\n<p>a</p>loose <b>text</b><ul><li>x</li></ul>")
	require.NoError(t, err)
	assert.Equal(t, []string{"<h1>T</h1>", "<p>a</p>", "<p>loose <b>text</b></p>", "<ul><li>x</li></ul>"}, s.Blocks)
	assert.Equal(t, 3, s.Cursor)

	empty, err := ParseState("")
	require.NoError(t, err)
	assert.Equal(t, []string{"<p></p>"}, empty.Blocks)
	assert.Equal(t, 0, empty.Cursor)
}

func TestApplyIsPure(t *testing.T) {
	s := state(t, "<p>a</p><p>b</p>", 0)
	_ = apply(t, Command{Name: ToggleBold}, s)
	assert.Equal(t, []string{"<p>a</p>", "<p>b</p>"}, s.Blocks)
}

func TestToggleBold(t *testing.T) {
	s := state(t, "<p>hello</p>", 0)
	s = apply(t, Command{Name: ToggleBold}, s)
	assert.Equal(t, "<p><strong>hello</strong></p>", s.HTML())
	s = apply(t, Command{Name: ToggleBold}, s)
	assert.Equal(t, "<p>hello</p>", s.HTML())

	legacy := apply(t, Command{Name: ToggleBold}, state(t, "<p><b>x</b></p>", 0))
	assert.Equal(t, "<p>x</p>", legacy.HTML())
}

func TestToggleItalicOnList(t *testing.T) {
	s := state(t, "<ul><li>a</li><li><em>b</em></li></ul>", 0)
	s = apply(t, Command{Name: ToggleItalic}, s)
	assert.Equal(t, "<ul><li><em>a</em></li><li><em>b</em></li></ul>", s.HTML())
	s = apply(t, Command{Name: ToggleItalic}, s)
	assert.Equal(t, "<ul><li>a</li><li>b</li></ul>", s.HTML())
}

func TestToggleMarkSkipsCode(t *testing.T) {
	in := `<pre data-language="go"><code>x</code></pre>`
	s := apply(t, Command{Name: ToggleBold}, state(t, in, 0))
	assert.Equal(t, in, s.HTML())
}

func TestToggleBulletList(t *testing.T) {
	s := state(t, "<p>one</p><p>two</p>", 1)
	s = apply(t, Command{Name: ToggleBulletList}, s)
	assert.Equal(t, "<p>one</p><ul><li>two</li></ul>", s.HTML())

	s = apply(t, Command{Name: ToggleOrderedList}, s)
	assert.Equal(t, "<p>one</p><ol><li>two</li></ol>", s.HTML())

	s = apply(t, Command{Name: ToggleOrderedList}, s)
	assert.Equal(t, "<p>one</p><p>two</p>", s.HTML())
	assert.Equal(t, 1, s.Cursor)
}

func TestToggleListSplitsItems(t *testing.T) {
	s := state(t, "<ul><li>a</li><li>b</li></ul><p>z</p>", 0)
	s = apply(t, Command{Name: ToggleBulletList}, s)
	assert.Equal(t, []string{"<p>a</p>", "<p>b</p>", "<p>z</p>"}, s.Blocks)
	assert.Equal(t, 1, s.Cursor)
}

func TestToggleCodeBlock(t *testing.T) {
	s := state(t, "<p>let <b>a</b> = 1;</p>", 0)
	s = apply(t, Command{Name: ToggleCodeBlock}, s)
	assert.Equal(t, `<pre data-language="plaintext"><code>let a = 1;</code></pre>`, s.HTML())

	s = apply(t, Command{Name: SetCodeLanguage, Language: "ts"}, s)
	assert.Equal(t, `<pre data-language="typescript"><code>let a = 1;</code></pre>`, s.HTML())

	s = apply(t, Command{Name: ToggleCodeBlock}, s)
	assert.Equal(t, "<p>let a = 1;</p>", s.HTML())
}

func TestSetCodeLanguageNeedsCodeBlock(t *testing.T) {
	_, err := Apply(Command{Name: SetCodeLanguage, Language: "go"}, state(t, "<p>x</p>", 0))
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestSetHeadingAndParagraph(t *testing.T) {
	s := state(t, "<p>Title <em>x</em></p>", 0)
	s = apply(t, Command{Name: SetHeading, Level: 2}, s)
	assert.Equal(t, "<h2>Title <em>x</em></h2>", s.HTML())
	s = apply(t, Command{Name: SetParagraph}, s)
	assert.Equal(t, "<p>Title <em>x</em></p>", s.HTML())

	for _, lvl := range []int{0, 6} {
		_, err := Apply(Command{Name: SetHeading, Level: lvl}, s)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	}
}

func TestInsertContent(t *testing.T) {
	s := state(t, "<p>a</p><p>c</p>", 0)
	s = apply(t, Command{Name: InsertContent, HTML: "<p>b1</p><p>b2</p>"}, s)
	assert.Equal(t, "<p>a</p><p>b1</p><p>b2</p><p>c</p>", s.HTML())
	assert.Equal(t, 2, s.Cursor)

	_, err := Apply(Command{Name: InsertContent, HTML: "  "}, s)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestInsertIntoEmptyDocumentReplacesPlaceholder(t *testing.T) {
	s := state(t, "", 0)
	s = apply(t, Command{Name: InsertContent, HTML: "<p>first</p>"}, s)
	assert.Equal(t, []string{"<p>first</p>"}, s.Blocks)
	assert.Equal(t, 0, s.Cursor)
}

func TestSetImage(t *testing.T) {
	s := state(t, "<p>a</p>", 0)
	s = apply(t, Command{Name: SetImage, Src: "/files/images/public/1-x.png", Alt: "shot"}, s)
	assert.Equal(t, `<p>a</p><img src="/files/images/public/1-x.png" alt="shot"/>`, s.HTML())
	assert.Equal(t, 1, s.Cursor)

	_, err := Apply(Command{Name: SetImage}, s)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestMoveCursor(t *testing.T) {
	s := state(t, "<p>a</p><p>b</p>", 1)
	s = apply(t, Command{Name: MoveCursor, Index: 0}, s)
	assert.Equal(t, 0, s.Cursor)

	_, err := Apply(Command{Name: MoveCursor, Index: 5}, s)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestUnknownCommandAndBadState(t *testing.T) {
	_, err := Apply(Command{Name: "explode"}, state(t, "<p>a</p>", 0))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = Apply(Command{Name: ToggleBold}, State{Blocks: []string{"<p>a</p>"}, Cursor: 3})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
