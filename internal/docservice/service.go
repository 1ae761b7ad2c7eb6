// Package docservice coordinates the repository, the lock gate, attachments
// and change events behind the document operations exposed by the API, the
// MCP server, the inbox and the CLI.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
	"github.com/vanesdocs/vanesdocs/internal/attachment"
	"github.com/vanesdocs/vanesdocs/internal/checksum"
	"github.com/vanesdocs/vanesdocs/internal/content"
	"github.com/vanesdocs/vanesdocs/internal/docstore"
	"github.com/vanesdocs/vanesdocs/internal/lockgate"
	"github.com/vanesdocs/vanesdocs/internal/models"
	"github.com/vanesdocs/vanesdocs/internal/search"
	"github.com/vanesdocs/vanesdocs/internal/session"
)

// Change kinds reported to the Publisher and the Recorder.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// Publisher receives document change notifications.
type Publisher interface {
	PublishDocumentEvent(kind, id string)
}

// Recorder receives operation outcomes for metrics.
type Recorder interface {
	DocumentChanged(kind string)
	Upload(bucket string, err error)
	Unlock(ok bool)
}

type nopPublisher struct{}

func (nopPublisher) PublishDocumentEvent(string, string) {}

type nopRecorder struct{}

func (nopRecorder) DocumentChanged(string) {}
func (nopRecorder) Upload(string, error)   {}
func (nopRecorder) Unlock(bool)            {}

// Summary is a document as shown in lists. Preview is empty for locked
// documents the session has not unlocked.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags"`
	Preview   string    `json:"preview"`
	Locked    bool      `json:"locked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Detail is a readable document with its checksum for If-Match.
type Detail struct {
	models.Document
	Checksum string `json:"checksum"`
}

// Input is the editable part of a document.
type Input struct {
	Title   string
	Tags    []string
	Content string
	Lock    lockgate.LockRequest
}

// Service implements the document operations.
type Service struct {
	repo     docstore.Repository
	gate     *lockgate.Gate
	uploader *attachment.Uploader
	events   Publisher
	recorder Recorder
	now      func() time.Time

	// createMu serialises id allocation with the insert that claims it.
	createMu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the change event sink.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service.
func New(repo docstore.Repository, gate *lockgate.Gate, uploader *attachment.Uploader, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		gate:     gate,
		uploader: uploader,
		events:   nopPublisher{},
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func detail(d *models.Document) *Detail {
	return &Detail{Document: *d, Checksum: checksum.Document(d)}
}

// List returns documents newest first, or ranked by query when it is not
// blank.
func (s *Service) List(ctx context.Context, query string) ([]Summary, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	sid := session.FromContext(ctx)
	unlocked := make(map[string]bool)
	for i := range docs {
		if !docs[i].Locked {
			continue
		}
		ok, err := s.gate.IsUnlocked(ctx, sid, &docs[i])
		if err != nil {
			return nil, err
		}
		unlocked[docs[i].ID] = ok
	}
	reveal := func(d *models.Document) bool { return unlocked[d.ID] }

	ranked := search.NewIndex(docs, reveal).Search(query)
	out := make([]Summary, len(ranked))
	for i := range ranked {
		d := &ranked[i]
		out[i] = Summary{
			ID:        d.ID,
			Title:     d.Title,
			Tags:      nonNil(d.Tags),
			Locked:    d.Locked,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		}
		if !d.Locked || unlocked[d.ID] {
			out[i].Preview = search.ExtractPreview(d.Content, search.DefaultPreviewLength)
		}
	}
	return out, nil
}

// readable loads id and checks the session may see it.
func (s *Service) readable(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.gate.IsUnlocked(ctx, session.FromContext(ctx), doc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, apperr.ErrLocked)
	}
	return doc, nil
}

// Get returns a document the session may read; locked documents not yet
// unlocked yield apperr.ErrLocked.
func (s *Service) Get(ctx context.Context, id string) (*Detail, error) {
	doc, err := s.readable(ctx, id)
	if err != nil {
		return nil, err
	}
	return detail(doc), nil
}

// Head returns a document's list entry without its body. It is allowed for
// locked documents so a client can render the unlock prompt.
func (s *Service) Head(ctx context.Context, id string) (*Summary, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Summary{
		ID: doc.ID, Title: doc.Title, Tags: nonNil(doc.Tags), Locked: doc.Locked,
		CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt,
	}, nil
}

// cleanContent strips upload markers and normalizes code blocks so that
// neither in-flight markers nor legacy language classes get persisted.
func cleanContent(html string) (string, error) {
	html = content.StripMarkers(html)
	if html == "" {
		return "", nil
	}
	return content.NormalizeCodeBlocks(html)
}

// Create stores a new document. The creator's session is granted the unlock
// of a document created locked.
func (s *Service) Create(ctx context.Context, in Input) (*Detail, error) {
	now := s.now()
	title := models.NormalizeTitle(in.Title)
	doc := &models.Document{
		Title: title,
		Tags:  models.NormalizeTags(in.Tags),
	}
	body, err := cleanContent(in.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	doc.Content = body
	if err := lockgate.ApplyEdit(doc, in.Lock, now); err != nil {
		return nil, err
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()
	if doc.ID, err = s.freeID(ctx, title, now); err != nil {
		return nil, err
	}
	return s.save(ctx, doc, KindCreated)
}

// maxIDProbes bounds the search for a free id among same-title creates.
const maxIDProbes = 1000

// freeID returns the first unused id for title, stepping the time suffix one
// millisecond forward while the id is taken.
func (s *Service) freeID(ctx context.Context, title string, now time.Time) (string, error) {
	for i := 0; i < maxIDProbes; i++ {
		id := models.NewID(title, now.Add(time.Duration(i)*time.Millisecond))
		_, err := s.repo.Get(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free id for %q: %w", title, apperr.ErrAlreadyExists)
}

// Update replaces the editable fields of id. A non-empty ifMatch must equal
// the current checksum.
func (s *Service) Update(ctx context.Context, id string, in Input, ifMatch string) (*Detail, error) {
	doc, err := s.editable(ctx, id, ifMatch)
	if err != nil {
		return nil, err
	}
	body, err := cleanContent(in.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	doc.Title = models.NormalizeTitle(in.Title)
	doc.Tags = models.NormalizeTags(in.Tags)
	doc.Content = body
	if err := lockgate.ApplyEdit(doc, in.Lock, s.now()); err != nil {
		return nil, err
	}
	return s.save(ctx, doc, KindUpdated)
}

// editable loads a readable document and checks ifMatch.
func (s *Service) editable(ctx context.Context, id, ifMatch string) (*models.Document, error) {
	doc, err := s.readable(ctx, id)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && ifMatch != checksum.Document(doc) {
		return nil, fmt.Errorf("document %s changed: %w", id, apperr.ErrConflict)
	}
	return doc, nil
}

func (s *Service) save(ctx context.Context, doc *models.Document, kind string) (*Detail, error) {
	stored, err := s.repo.Upsert(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Grant(ctx, session.FromContext(ctx), stored); err != nil {
		slog.Warn("grant unlock", slog.String("id", stored.ID), slog.String("error", err.Error()))
	}
	s.events.PublishDocumentEvent(kind, stored.ID)
	s.recorder.DocumentChanged(kind)
	slog.Info("document saved", slog.String("id", stored.ID), slog.String("kind", kind))
	return detail(stored), nil
}

// Delete removes id. Locked documents must be unlocked first.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.readable(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.events.PublishDocumentEvent(KindDeleted, id)
	s.recorder.DocumentChanged(KindDeleted)
	slog.Info("document deleted", slog.String("id", id))
	return nil
}

// Unlock checks password for the session and returns the document. A legacy
// SHA-256 lock hash is upgraded to argon2id on success.
func (s *Service) Unlock(ctx context.Context, id, password string) (*Detail, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sid := session.FromContext(ctx)
	if err := s.gate.Unlock(ctx, sid, doc, password); err != nil {
		s.recorder.Unlock(false)
		return nil, err
	}
	s.recorder.Unlock(true)

	if doc.Locked && doc.LockHash != nil && lockgate.IsLegacy(*doc.LockHash) {
		hash, err := lockgate.Hash(password)
		if err != nil {
			return nil, err
		}
		if err := s.repo.SetLockHash(ctx, id, hash); err != nil {
			return nil, err
		}
		doc.LockHash = &hash
		if err := s.gate.Grant(ctx, sid, doc); err != nil {
			return nil, err
		}
		slog.Info("lock hash upgraded", slog.String("id", id))
	}
	return detail(doc), nil
}

// Render returns the document body with code blocks highlighted.
func (s *Service) Render(ctx context.Context, id string) (string, error) {
	doc, err := s.readable(ctx, id)
	if err != nil {
		return "", err
	}
	return content.Highlight(doc.Content)
}

// Markdown returns the document body converted to Markdown, headed by its
// title.
func (s *Service) Markdown(ctx context.Context, id string) (string, error) {
	doc, err := s.readable(ctx, id)
	if err != nil {
		return "", err
	}
	md, err := content.ToMarkdown(doc.Content)
	if err != nil {
		return "", err
	}
	return "# " + doc.Title + "\n\n" + md, nil
}

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// SignOut forgets every unlock of the caller's session.
func (s *Service) SignOut(ctx context.Context) error {
	sid := session.FromContext(ctx)
	if sid == "" {
		return nil
	}
	return s.gate.Forget(ctx, sid)
}
