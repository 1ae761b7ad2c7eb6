package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vanesdocs/vanesdocs/internal/models"
)

func ids(docs []models.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func sampleDocs() []models.Document {
	hash := "$argon2id$x"
	return []models.Document{
		{ID: "velostay", Title: "VeloStay Feature", Tags: []string{"VeloStay", "Booking"},
			Content: "<p>Check-in flow and room availability.</p>"},
		{ID: "healthcheck", Title: "Healthcheck May", Tags: []string{"BCAF"},
			Content: "<p>Dynatrace findings for the monthly review.</p>"},
		{ID: "secret", Title: "Payroll", Locked: true, LockHash: &hash,
			Content: "<p>dynatrace salaries</p>"},
	}
}

func TestSearchBlankQueryKeepsOrder(t *testing.T) {
	docs := sampleDocs()
	assert.Equal(t, ids(docs), ids(Search(docs, "")))
	assert.Equal(t, ids(docs), ids(Search(docs, "   ")))
}

func TestSearchRanksTitleMatch(t *testing.T) {
	docs := []models.Document{
		{ID: "hc", Title: "Healthcheck May"},
		{ID: "vs", Title: "VeloStay Feature"},
	}
	got := ids(Search(docs, "health"))
	assert.NotEmpty(t, got)
	assert.Equal(t, "hc", got[0])
	for i, id := range got {
		if id == "vs" {
			assert.Greater(t, i, 0)
		}
	}
}

func TestSearchToleratesTypos(t *testing.T) {
	got := ids(Search(sampleDocs(), "helthcheck"))
	assert.Equal(t, []string{"healthcheck"}, got)
}

func TestSearchMatchesTagsAndContent(t *testing.T) {
	assert.Equal(t, []string{"healthcheck"}, ids(Search(sampleDocs(), "bcaf")))
	assert.Equal(t, []string{"velostay"}, ids(Search(sampleDocs(), "availability")))
}

func TestSearchRejectsDistantQuery(t *testing.T) {
	assert.Empty(t, Search(sampleDocs(), "kubernetes"))
}

func TestSearchExactBeforeFuzzy(t *testing.T) {
	docs := []models.Document{
		{ID: "fuzzy", Title: "Releese notes"},
		{ID: "exact", Title: "Release notes"},
	}
	assert.Equal(t, []string{"exact", "fuzzy"}, ids(Search(docs, "release")))
}

func TestSearchTiesKeepInputOrder(t *testing.T) {
	docs := []models.Document{
		{ID: "b", Title: "Sprint review"},
		{ID: "a", Title: "Review backlog"},
	}
	assert.Equal(t, []string{"b", "a"}, ids(Search(docs, "review")))
}

func TestLockedBodiesAreHidden(t *testing.T) {
	docs := sampleDocs()
	assert.Equal(t, []string{"healthcheck"}, ids(Search(docs, "dynatrace")))

	ix := NewIndex(docs, func(d *models.Document) bool { return d.ID == "secret" })
	assert.Equal(t, []string{"healthcheck", "secret"}, ids(ix.Search("dynatrace")))

	assert.Equal(t, []string{"secret"}, ids(Search(docs, "payroll")), "titles stay searchable")
}

func TestScore(t *testing.T) {
	assert.Equal(t, 0.0, Score([]rune("healthcheck may"), []rune("health")))
	assert.InDelta(t, 0.2, Score([]rune("healthcheck may"), []rune("helth")), 1e-9)
	assert.Greater(t, Score([]rune("velostay feature"), []rune("health")), Threshold)
}

func TestExtractPreview(t *testing.T) {
	assert.Equal(t, "Title…", ExtractPreview("<h1>Title</h1><p>Body text here</p>", 5))
	assert.Equal(t, "Title", ExtractPreview("<h1>Title</h1><p>Body text here</p>", 0))
	assert.Equal(t, "Body text here", ExtractPreview("<p>  </p><p>Body   text\nhere</p>", 160))
	assert.Equal(t, "loose text", ExtractPreview("<div>loose <span>text</span></div>", 160))
	assert.Equal(t, "", ExtractPreview("", 160))
	assert.Equal(t, "h4 wins", ExtractPreview("<div></div><h4>h4 wins</h4>", 160))
}

func TestExtractPreviewDefaultLength(t *testing.T) {
	long := "<p>" + strings.Repeat("a", 200) + "</p>"
	got := ExtractPreview(long, 0)
	assert.Equal(t, DefaultPreviewLength+1, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}

func TestExtractPreviewCountsRunes(t *testing.T) {
	assert.Equal(t, "ünïc…", ExtractPreview("<p>ünïcode</p>", 4))
}
