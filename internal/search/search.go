// Package search ranks documents against a free-text query and derives the
// plain-text previews shown in document lists.
package search

import (
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/vanesdocs/vanesdocs/internal/content"
	"github.com/vanesdocs/vanesdocs/internal/models"
)

// Threshold is the largest accepted score: edit distance divided by query
// length. 0 is an exact match.
const Threshold = 0.3

type entry struct {
	doc    models.Document
	fields [][]rune
}

// Index is a fuzzy index over title, tags and the plain text of content.
type Index struct {
	entries []entry
}

// Revealer decides whether the body of a locked document may be indexed.
type Revealer func(doc *models.Document) bool

// NewIndex indexes docs in order. Locked documents are indexed by title and
// tags only unless reveal returns true for them; a nil reveal hides every
// locked body.
func NewIndex(docs []models.Document, reveal Revealer) *Index {
	ix := &Index{entries: make([]entry, 0, len(docs))}
	for i := range docs {
		d := &docs[i]
		e := entry{doc: *d}
		e.fields = append(e.fields, []rune(normalize(d.Title)))
		for _, tag := range d.Tags {
			e.fields = append(e.fields, []rune(normalize(tag)))
		}
		if !d.Locked || (reveal != nil && reveal(d)) {
			text, err := content.PlainTextOf(d.Content)
			if err != nil {
				slog.Warn("search: index content", slog.String("id", d.ID), slog.String("error", err.Error()))
			} else if text != "" {
				e.fields = append(e.fields, []rune(normalize(text)))
			}
		}
		ix.entries = append(ix.entries, e)
	}
	return ix
}

// Search returns docs matching query best first. Locked bodies are not
// searched.
func Search(docs []models.Document, query string) []models.Document {
	if strings.TrimSpace(query) == "" {
		return docs
	}
	return NewIndex(docs, nil).Search(query)
}

// Search returns the indexed documents whose best field score is within
// Threshold, ordered by score with ties kept in index order. A blank query
// returns every document in index order.
func (ix *Index) Search(query string) []models.Document {
	q := []rune(normalize(query))
	if len(q) == 0 {
		out := make([]models.Document, len(ix.entries))
		for i := range ix.entries {
			out[i] = ix.entries[i].doc
		}
		return out
	}

	type hit struct {
		doc   models.Document
		score float64
	}
	var hits []hit
	for _, e := range ix.entries {
		best := 1.0
		for _, f := range e.fields {
			if s := Score(f, q); s < best {
				best = s
			}
			if best == 0 {
				break
			}
		}
		if best <= Threshold {
			hits = append(hits, hit{doc: e.doc, score: best})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score < hits[j].score })

	out := make([]models.Document, len(hits))
	for i := range hits {
		out[i] = hits[i].doc
	}
	return out
}

// Score is the normalized edit distance between query and the closest
// window of text. Windows start at word boundaries and span the query length
// plus or minus the allowed number of edits; position in text is ignored.
func Score(text, query []rune) float64 {
	m := len(query)
	if m == 0 {
		return 0
	}
	if strings.Contains(string(text), string(query)) {
		return 0
	}
	k := int(Threshold * float64(m))
	best := m
	qs := string(query)
	for start := range text {
		if start > 0 && !isBoundary(text[start-1], text[start]) {
			continue
		}
		for l := m - k; l <= m+k; l++ {
			if l <= 0 || start+l > len(text) {
				continue
			}
			d := fuzzy.LevenshteinDistance(qs, string(text[start:start+l]))
			if d < best {
				best = d
			}
		}
		if best == 0 {
			break
		}
	}
	return float64(best) / float64(m)
}

func isBoundary(prev, cur rune) bool {
	return !isWordRune(prev) && isWordRune(cur)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
