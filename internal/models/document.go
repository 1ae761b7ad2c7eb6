// Package models defines the domain types for vanesdocs.
package models

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// UntitledTitle is used when a document is saved with a blank title.
const UntitledTitle = "(Untitled)"

const maxSlugLen = 60

var (
	slugDropRe  = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaceRe = regexp.MustCompile(`\s+`)
)

// Document is a rich-text document. Content holds an HTML fragment.
type Document struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Tags      []string   `json:"tags"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Locked    bool       `json:"locked"`
	LockHash  *string    `json:"-"`
	LockedAt  *time.Time `json:"locked_at,omitempty"`
}

// Validate checks the structural invariants of a document.
func (d *Document) Validate() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.ID, validation.Required, validation.Length(1, 128)),
		validation.Field(&d.Title, validation.Required),
		validation.Field(&d.LockHash,
			validation.When(d.Locked, validation.Required, validation.NotNil).Else(validation.Nil)),
	)
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Tags = append([]string(nil), d.Tags...)
	if d.LockHash != nil {
		h := *d.LockHash
		c.LockHash = &h
	}
	if d.LockedAt != nil {
		t := *d.LockedAt
		c.LockedAt = &t
	}
	return &c
}

// NormalizeTitle trims the title and substitutes UntitledTitle for blanks.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return UntitledTitle
	}
	return title
}

// NormalizeTags trims every tag, drops empties and duplicates, and keeps the
// first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// SplitTags parses a comma separated tag list.
func SplitTags(raw string) []string {
	return NormalizeTags(strings.Split(raw, ","))
}

// Slugify lowercases title and keeps only [a-z0-9-], collapsing whitespace
// into dashes. The result is at most 60 bytes.
func Slugify(title string) string {
	s := strings.TrimSpace(strings.ToLower(title))
	s = slugDropRe.ReplaceAllString(s, "")
	s = slugSpaceRe.ReplaceAllString(s, "-")
	if len(s) > maxSlugLen {
		s = s[:maxSlugLen]
	}
	return s
}

// NewID derives a document id from its title and creation time.
func NewID(title string, now time.Time) string {
	suffix := strconv.FormatInt(now.UnixMilli(), 36)
	if slug := Slugify(title); slug != "" {
		return slug + "-" + suffix
	}
	return "doc-" + suffix
}
