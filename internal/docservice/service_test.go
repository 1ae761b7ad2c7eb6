package docservice

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
	"github.com/vanesdocs/vanesdocs/internal/attachment"
	"github.com/vanesdocs/vanesdocs/internal/auth"
	"github.com/vanesdocs/vanesdocs/internal/content"
	"github.com/vanesdocs/vanesdocs/internal/docstore"
	"github.com/vanesdocs/vanesdocs/internal/editor"
	"github.com/vanesdocs/vanesdocs/internal/lockgate"
	"github.com/vanesdocs/vanesdocs/internal/objectstore"
	"github.com/vanesdocs/vanesdocs/internal/session"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishDocumentEvent(kind, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, kind+":"+id)
}

func (p *recordingPublisher) all() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type fixture struct {
	svc    *Service
	repo   docstore.Repository
	events *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := docstore.NewMemory()
	require.NoError(t, err)
	sessions, err := session.NewMemory(time.Hour)
	require.NoError(t, err)
	store, err := objectstore.NewFS(t.TempDir(), "/files/", attachment.BucketImages, attachment.BucketFiles)
	require.NoError(t, err)

	events := &recordingPublisher{}
	svc := New(repo, lockgate.NewGate(sessions), attachment.New(store, 64), WithPublisher(events))
	return &fixture{svc: svc, repo: repo, events: events}
}

func sessionCtx(sid string) context.Context {
	ctx := session.WithID(context.Background(), sid)
	return auth.WithUser(ctx, &auth.User{ID: "u1"})
}

func TestCreateUpdateDelete(t *testing.T) {
	f := newFixture(t)
	ctx := sessionCtx("s1")

	d, err := f.svc.Create(ctx, Input{Title: "Healthcheck Mei", Tags: []string{" ops ", "ops", "bcaf"}, Content: "<p>rekap</p>"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(d.ID, "healthcheck-mei-"))
	assert.Equal(t, []string{"ops", "bcaf"}, d.Tags)
	assert.NotEmpty(t, d.Checksum)

	blank, err := f.svc.Create(ctx, Input{Title: "   "})
	require.NoError(t, err)
	assert.Equal(t, "(Untitled)", blank.Title)
	assert.True(t, strings.HasPrefix(blank.ID, "doc-"))

	_, err = f.svc.Update(ctx, d.ID, Input{Title: "x"}, "stale")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	up, err := f.svc.Update(ctx, d.ID, Input{Title: "Healthcheck Juni", Content: "<p>baru</p>"}, d.Checksum)
	require.NoError(t, err)
	assert.Equal(t, "Healthcheck Juni", up.Title)
	assert.Equal(t, "<p>baru</p>", up.Content)
	assert.True(t, d.CreatedAt.Equal(up.CreatedAt))
	assert.NotEqual(t, d.Checksum, up.Checksum)

	require.NoError(t, f.svc.Delete(ctx, d.ID))
	_, err = f.svc.Get(ctx, d.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, d.ID), apperr.ErrNotFound)

	assert.Equal(t, []string{
		"created:" + d.ID,
		"created:" + blank.ID,
		"updated:" + d.ID,
		"deleted:" + d.ID,
	}, f.events.all())
}

func TestCreateStripsMarkersAndLegacyLanguageClasses(t *testing.T) {
	f := newFixture(t)
	ctx := sessionCtx("s1")

	d, err := f.svc.Create(ctx, Input{
		Title:   "Kode",
		Content: "<p>a" + content.NewMarker() + "</p><pre><code class=\"language-js\">x()</code></pre>",
	})
	require.NoError(t, err)
	assert.False(t, content.HasMarker(d.Content))
	assert.Contains(t, d.Content, `data-language="javascript"`)
}

func TestLockedDocumentNeedsUnlockPerSession(t *testing.T) {
	f := newFixture(t)
	owner := sessionCtx("owner")

	_, err := f.svc.Create(owner, Input{Title: "Rahasia", Lock: lockgate.LockRequest{Locked: true, Password: "abc123", Confirm: "abc124"}})
	assert.ErrorIs(t, err, apperr.ErrPasswordMismatch)

	d, err := f.svc.Create(owner, Input{
		Title:   "Rahasia",
		Content: "<p>isi rahasia</p>",
		Lock:    lockgate.LockRequest{Locked: true, Password: "abc123", Confirm: "abc123"},
	})
	require.NoError(t, err)
	assert.True(t, d.Locked)
	assert.NotNil(t, d.LockedAt)

	_, err = f.svc.Get(owner, d.ID)
	require.NoError(t, err, "owner is not prompted right after locking")

	viewer := sessionCtx("viewer")
	_, err = f.svc.Get(viewer, d.ID)
	assert.ErrorIs(t, err, apperr.ErrLocked)

	head, err := f.svc.Head(viewer, d.ID)
	require.NoError(t, err)
	assert.True(t, head.Locked)

	list, err := f.svc.List(viewer, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Locked)
	assert.Empty(t, list[0].Preview)

	_, err = f.svc.Unlock(viewer, d.ID, "wrong")
	assert.ErrorIs(t, err, apperr.ErrWrongPassword)
	_, err = f.svc.Get(viewer, d.ID)
	assert.ErrorIs(t, err, apperr.ErrLocked)

	got, err := f.svc.Unlock(viewer, d.ID, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "<p>isi rahasia</p>", got.Content)

	list, err = f.svc.List(viewer, "")
	require.NoError(t, err)
	assert.Equal(t, "isi rahasia", list[0].Preview)

	_, err = f.svc.Get(sessionCtx("someone-else"), d.ID)
	assert.ErrorIs(t, err, apperr.ErrLocked)
	assert.ErrorIs(t, f.svc.Delete(sessionCtx("someone-else"), d.ID), apperr.ErrLocked)
}

func TestUnlockUpgradesLegacyHash(t *testing.T) {
	f := newFixture(t)
	sum := sha256.Sum256([]byte("abc123"))

	report, err := f.svc.Import(context.Background(), []LegacyDocument{{
		ID:       "velostay-bukti-transfer",
		Title:    "VeloStay: Rencana Fitur Bukti Transfer",
		Content:  "Implementasi upload bukti pembayaran.",
		Locked:   true,
		LockHash: hex.EncodeToString(sum[:]),
	}})
	require.NoError(t, err)
	require.Equal(t, []string{"velostay-bukti-transfer"}, report.Imported)
	before, err := f.repo.Get(context.Background(), "velostay-bukti-transfer")
	require.NoError(t, err)

	ctx := sessionCtx("viewer")
	_, err = f.svc.Unlock(ctx, "velostay-bukti-transfer", "abc123")
	require.NoError(t, err)

	stored, err := f.repo.Get(context.Background(), "velostay-bukti-transfer")
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.Equal(before.UpdatedAt), "unlocking must not bump the document")
	require.NotNil(t, stored.LockHash)
	assert.True(t, strings.HasPrefix(*stored.LockHash, "$argon2id$"))
	assert.True(t, lockgate.Verify(*stored.LockHash, "abc123"))

	_, err = f.svc.Get(ctx, "velostay-bukti-transfer")
	assert.NoError(t, err, "the upgrading session stays unlocked")
}

func TestImportRejectsMalformedArgon2idHash(t *testing.T) {
	f := newFixture(t)
	report, err := f.svc.Import(context.Background(), []LegacyDocument{{
		ID:       "rusak",
		Title:    "Hash rusak",
		Content:  "isi",
		Locked:   true,
		LockHash: "$argon2id$v=19$m=65536,t=3,p=0$c2FsdHNhbHRzYWx0c2FsdA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
	}})
	require.NoError(t, err)
	assert.Empty(t, report.Imported)
	assert.Contains(t, report.Failed, "rusak")

	_, err = f.repo.Get(context.Background(), "rusak")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateSameTitleSameMillisecond(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2025, 5, 28, 3, 0, 0, 0, time.UTC)
	WithClock(func() time.Time { return at })(f.svc)
	ctx := sessionCtx("s1")

	a, err := f.svc.Create(ctx, Input{Title: "Rekap", Content: "<p>satu</p>"})
	require.NoError(t, err)
	b, err := f.svc.Create(ctx, Input{Title: "Rekap", Content: "<p>dua</p>"})
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, strings.HasPrefix(b.ID, "rekap-"))

	first, err := f.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "<p>satu</p>", first.Content)
}

func TestListSearch(t *testing.T) {
	f := newFixture(t)
	ctx := sessionCtx("s1")

	_, err := f.svc.Create(ctx, Input{Title: "Healthcheck: Rekap Mei 2025", Tags: []string{"Dynatrace"}})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, Input{Title: "Catatan belanja", Content: "<p>beras, telur</p>"})
	require.NoError(t, err)

	all, err := f.svc.List(ctx, "  ")
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, s := range all {
		if s.Title == "Catatan belanja" {
			assert.Equal(t, "beras, telur", s.Preview)
		}
	}

	hits, err := f.svc.List(ctx, "health")
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Healthcheck: Rekap Mei 2025", hits[0].Title)
	assert.Equal(t, []string{"Dynatrace"}, hits[0].Tags)
}

func TestAttachBatch(t *testing.T) {
	f := newFixture(t)
	ctx := sessionCtx("s1")

	d, err := f.svc.Create(ctx, Input{Title: "Lampiran", Content: "<p>intro</p><p>penutup</p>"})
	require.NoError(t, err)

	files := []attachment.File{
		{Name: "notes.pdf", Mime: "application/pdf", Body: strings.NewReader("%PDF-1.4")},
		{Name: "huge.txt", Mime: "text/plain", Body: strings.NewReader(strings.Repeat("x", 200))},
		{Name: "shot.png", Mime: "image/png", Body: strings.NewReader("png")},
	}
	out, results, err := f.svc.Attach(ctx, d.ID, files, 0, d.Checksum)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "shot.png", results[0].Name, "images go first")
	assert.True(t, results[0].Image)
	assert.True(t, strings.HasPrefix(results[0].URL, "/files/images/u1/"))
	assert.Equal(t, "notes.pdf", results[1].Name)
	assert.True(t, strings.HasPrefix(results[1].URL, "/files/files/u1/"))
	assert.Empty(t, results[1].Error)
	assert.Equal(t, "huge.txt", results[2].Name)
	assert.NotEmpty(t, results[2].Error)

	body := out.Content
	assert.False(t, content.HasMarker(body))
	assert.Equal(t, 1, strings.Count(body, content.UploadErrorClass))
	assert.Equal(t, 1, strings.Count(body, content.FileAttr))

	intro := strings.Index(body, "intro")
	img := strings.Index(body, "<img")
	link := strings.Index(body, content.FileAttr)
	fail := strings.Index(body, content.UploadErrorClass)
	end := strings.Index(body, "penutup")
	assert.True(t, intro < img && img < link && link < fail && fail < end, body)

	_, _, err = f.svc.Attach(ctx, d.ID, files[:1], 0, d.Checksum)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, _, err = f.svc.Attach(ctx, d.ID, nil, 0, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestApplyCommands(t *testing.T) {
	f := newFixture(t)
	ctx := sessionCtx("s1")

	d, err := f.svc.Create(ctx, Input{Title: "Perintah", Content: "<p>judul</p><p>isi</p>"})
	require.NoError(t, err)

	out, st, err := f.svc.ApplyCommands(ctx, d.ID, []editor.Command{
		{Name: editor.SetHeading, Level: 2},
		{Name: editor.MoveCursor, Index: 1},
		{Name: editor.ToggleBold},
	}, 0, "")
	require.NoError(t, err)
	assert.Equal(t, "<h2>judul</h2><p><strong>isi</strong></p>", out.Content)
	assert.Equal(t, 1, st.Cursor)

	_, _, err = f.svc.ApplyCommands(ctx, d.ID, []editor.Command{{Name: editor.SetHeading, Level: 9}}, 0, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestImportLegacyExport(t *testing.T) {
	f := newFixture(t)
	png := base64.StdEncoding.EncodeToString([]byte("png"))
	export := `[
  {"id":"hc-mei-2025","title":"Healthcheck: Rekap Mei 2025","tags":["BCAF","Healthcheck"],
   "content":"Ringkasan temuan Dynatrace.\n\nJadwal vendor.","createdAt":"2025-05-28T03:00:00.000Z","updatedAt":"2025-05-28T09:00:00.000Z",
   "images":[{"id":"i1","name":"grafik.png","dataUrl":"data:image/png;base64,` + png + `","caption":"Grafik"},
             {"id":"i2","name":"rusak.png","dataUrl":"bukan data url"}]},
  {"id":"broken","title":"Terkunci","tags":[],"content":"x","locked":true}
]`
	docs, err := ParseLegacy(strings.NewReader(export))
	require.NoError(t, err)
	require.Len(t, docs, 2)

	report, err := f.svc.Import(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, []string{"hc-mei-2025"}, report.Imported)
	assert.Contains(t, report.Failed, "broken")

	stored, err := f.repo.Get(context.Background(), "hc-mei-2025")
	require.NoError(t, err)
	assert.True(t, stored.CreatedAt.Equal(time.Date(2025, 5, 28, 3, 0, 0, 0, time.UTC)))
	assert.True(t, strings.HasPrefix(stored.Content, "<p>Ringkasan temuan Dynatrace.</p><p>Jadwal vendor.</p>"))
	assert.Contains(t, stored.Content, `<img src="/files/images/public/`)
	assert.Contains(t, stored.Content, `alt="Grafik"`)
	assert.Equal(t, 1, strings.Count(stored.Content, content.UploadErrorClass))

	again, err := f.svc.Import(context.Background(), docs[:1])
	require.NoError(t, err)
	assert.Equal(t, []string{"hc-mei-2025"}, again.Skipped)

	_, err = ParseLegacy(strings.NewReader(`{"id":1}`))
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestRenderAndMarkdown(t *testing.T) {
	f := newFixture(t)
	ctx := sessionCtx("s1")

	d, err := f.svc.Create(ctx, Input{
		Title:   "Catatan Go",
		Content: `<p>contoh</p><pre data-language="go"><code>package main</code></pre>`,
	})
	require.NoError(t, err)

	rendered, err := f.svc.Render(ctx, d.ID)
	require.NoError(t, err)
	assert.Contains(t, rendered, `class="chroma"`)

	stored, err := f.svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.Content, "chroma")

	md, err := f.svc.Markdown(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(md, "# Catatan Go\n\ncontoh"))
	assert.Contains(t, md, "package main")
}

func TestCreateFromMarkdown(t *testing.T) {
	f := newFixture(t)
	d, err := f.svc.CreateFromMarkdown(sessionCtx("s1"), Input{Title: "Dari inbox", Tags: []string{"inbox"}, Content: "# Judul\n\nIsi *miring*."})
	require.NoError(t, err)
	assert.Contains(t, d.Content, "<h1>Judul</h1>")
	assert.Contains(t, d.Content, "<em>miring</em>")
}
