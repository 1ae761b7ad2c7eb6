package docservice

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
	"github.com/vanesdocs/vanesdocs/internal/attachment"
	"github.com/vanesdocs/vanesdocs/internal/content"
	"github.com/vanesdocs/vanesdocs/internal/lockgate"
	"github.com/vanesdocs/vanesdocs/internal/models"
)

// LegacyImage is an inline image of the browser-local store, kept as a
// base64 data URL.
type LegacyImage struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	DataURL string `json:"dataUrl"`
	Caption string `json:"caption,omitempty"`
}

// LegacyDocument is one record of an export from the browser-local store or
// of a dump of the hosted documents table. Both creation timestamp
// spellings are accepted; the update time is reset on import.
type LegacyDocument struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Tags      []string      `json:"tags"`
	Content   string        `json:"content"`
	CreatedAt string        `json:"createdAt"`
	Created   string        `json:"created_at"`
	Locked    bool          `json:"locked"`
	LockHash  string        `json:"lockHash"`
	LockedAt  string        `json:"lockedAt"`
	Images    []LegacyImage `json:"images"`
}

// ParseLegacy decodes a JSON array of legacy documents.
func ParseLegacy(r io.Reader) ([]LegacyDocument, error) {
	var docs []LegacyDocument
	dec := json.NewDecoder(r)
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("%w: legacy export: %v", apperr.ErrInvalidInput, err)
	}
	return docs, nil
}

// ImportReport summarizes an import run.
type ImportReport struct {
	Imported []string          `json:"imported"`
	Skipped  []string          `json:"skipped"`
	Failed   map[string]string `json:"failed,omitempty"`
}

func parseLegacyTime(values ...string) time.Time {
	for _, v := range values {
		if v == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// legacyBody turns plain text into paragraphs. Content that already looks
// like markup is kept as is.
func legacyBody(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "<") {
		return s
	}
	var b strings.Builder
	for _, para := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(para), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}

// decodeDataURL splits a base64 data URL into its mime type and bytes.
func decodeDataURL(u string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return "", nil, errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, errors.New("data URL is not base64")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("data URL: %w", err)
	}
	return strings.TrimSuffix(meta, ";base64"), raw, nil
}

// Import stores legacy documents. Ids already present are skipped. Inline
// images are uploaded and appended to the body; a failed image becomes an
// error paragraph. Locks are carried over with their hash.
func (s *Service) Import(ctx context.Context, docs []LegacyDocument) (ImportReport, error) {
	report := ImportReport{Imported: []string{}, Skipped: []string{}, Failed: map[string]string{}}
	for i := range docs {
		ld := &docs[i]
		id := strings.TrimSpace(ld.ID)
		if id == "" {
			id = models.NewID(ld.Title, s.now().Add(time.Duration(i)*time.Millisecond))
		}

		_, err := s.repo.Get(ctx, id)
		switch {
		case err == nil:
			report.Skipped = append(report.Skipped, id)
			continue
		case !errors.Is(err, apperr.ErrNotFound):
			return report, err
		}

		doc, err := s.legacyDocument(ctx, id, ld)
		if err != nil {
			report.Failed[id] = err.Error()
			slog.Warn("legacy import failed", slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		stored, err := s.repo.Upsert(ctx, doc)
		if err != nil {
			return report, err
		}
		s.events.PublishDocumentEvent(KindCreated, stored.ID)
		s.recorder.DocumentChanged(KindCreated)
		report.Imported = append(report.Imported, stored.ID)
	}
	slog.Info("legacy import finished",
		slog.Int("imported", len(report.Imported)),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int("failed", len(report.Failed)))
	return report, nil
}

func (s *Service) legacyDocument(ctx context.Context, id string, ld *LegacyDocument) (*models.Document, error) {
	body := legacyBody(ld.Content)
	for _, img := range ld.Images {
		name := img.Name
		if name == "" {
			name = img.ID
		}
		block := ""
		mime, raw, err := decodeDataURL(img.DataURL)
		if err == nil {
			var url string
			url, err = s.uploader.UploadImage(ctx, "", attachment.File{Name: name, Mime: mime, Body: bytes.NewReader(raw)})
			s.recorder.Upload(attachment.BucketImages, err)
			if err == nil {
				alt := img.Caption
				if alt == "" {
					alt = name
				}
				block = fmt.Sprintf(`<p><img src="%s" alt="%s"/></p>`, html.EscapeString(url), html.EscapeString(alt))
			}
		}
		if err != nil {
			block = content.UploadErrorHTML(name, err)
		}
		body += block
	}
	body, err := cleanContent(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}

	doc := &models.Document{
		ID:        id,
		Title:     models.NormalizeTitle(ld.Title),
		Tags:      models.NormalizeTags(ld.Tags),
		Content:   body,
		CreatedAt: parseLegacyTime(ld.CreatedAt, ld.Created),
	}
	if ld.Locked {
		hash := strings.TrimSpace(ld.LockHash)
		if hash == "" {
			return nil, fmt.Errorf("locked without a hash: %w", apperr.ErrPasswordRequired)
		}
		if !lockgate.Valid(hash) {
			return nil, fmt.Errorf("unsupported lock hash: %w", apperr.ErrInvalidInput)
		}
		doc.Locked = true
		doc.LockHash = &hash
		at := parseLegacyTime(ld.LockedAt)
		if at.IsZero() {
			at = s.now().UTC()
		}
		doc.LockedAt = &at
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	return doc, nil
}

// CreateFromMarkdown creates a document whose Content is Markdown source.
func (s *Service) CreateFromMarkdown(ctx context.Context, in Input) (*Detail, error) {
	body, err := content.FromMarkdown(in.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	in.Content = body
	return s.Create(ctx, in)
}
