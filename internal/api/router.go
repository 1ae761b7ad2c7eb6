package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/vanesdocs/vanesdocs/internal/auth"
	"github.com/vanesdocs/vanesdocs/internal/docservice"
	"github.com/vanesdocs/vanesdocs/internal/sse"
)

// Options configures NewRouter.
type Options struct {
	// Auth resolves callers; nil means auth is disabled.
	Auth *auth.Authenticator
	// SessionCookie names the unlock session cookie.
	SessionCookie string
	// Events, if non-nil, is mounted at GET /events and GET /ws.
	Events *sse.Broker
	// MaxUploadBytes bounds one uploaded file.
	MaxUploadBytes int64
}

// NewRouter creates a chi router with all API routes mounted. Reads and
// unlocks are open to anonymous callers; writes need a user.
func NewRouter(svc *docservice.Service, opts Options) chi.Router {
	if opts.Auth == nil {
		opts.Auth, _ = auth.New(auth.ModeDisabled, "", "")
	}
	h := NewHandler(svc, opts)

	r := chi.NewRouter()
	r.Use(SessionMiddleware(opts.SessionCookie))
	r.Use(opts.Auth.Middleware)

	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/{id}", h.GetDocument)
	r.Post("/documents/{id}/unlock", h.UnlockDocument)
	r.Get("/documents/{id}/render", h.RenderDocument)
	r.Get("/documents/{id}/markdown", h.MarkdownDocument)

	r.Get("/languages", h.Languages)
	r.Get("/highlight.css", h.HighlightCSS)
	r.Get("/me", h.Me)
	r.Post("/session/signout", h.SignOut)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Post("/documents", h.CreateDocument)
		r.Put("/documents/{id}", h.UpdateDocument)
		r.Delete("/documents/{id}", h.DeleteDocument)
		r.Post("/documents/{id}/commands", h.ApplyCommands)
		r.Post("/documents/{id}/attachments", h.Attach)
		r.Post("/uploads/images", h.UploadImage)
		r.Post("/uploads/files", h.UploadFile)
	})

	if opts.Events != nil {
		r.Get("/events", opts.Events.ServeHTTP)
		r.Get("/ws", opts.Events.WebSocket)
	}

	return r
}
