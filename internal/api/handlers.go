package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
	"github.com/vanesdocs/vanesdocs/internal/auth"
	"github.com/vanesdocs/vanesdocs/internal/content"
	"github.com/vanesdocs/vanesdocs/internal/docservice"
	"github.com/vanesdocs/vanesdocs/internal/session"
)

// Handler holds API route handlers.
type Handler struct {
	svc            *docservice.Service
	auth           *auth.Authenticator
	cookieName     string
	maxUploadBytes int64
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service, opts Options) *Handler {
	return &Handler{
		svc:            svc,
		auth:           opts.Auth,
		cookieName:     opts.SessionCookie,
		maxUploadBytes: opts.MaxUploadBytes,
	}
}

func docID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}

// ifMatch returns the If-Match header without ETag quotes.
func ifMatch(r *http.Request) string {
	return strings.Trim(r.Header.Get("If-Match"), `"`)
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List documents, or search them when q is set
//	@Tags			documents
//	@Produce		json
//	@Param			q	query		string	false	"Fuzzy query over title, tags and text"
//	@Success		200	{object}	DocumentListResponse
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: len(items)})
}

// GetDocument handles GET /api/documents/{id}.
//
//	@Summary		Get a single document
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document id"
//	@Success		200	{object}	docservice.Detail
//	@Failure		404	{object}	errResponse
//	@Failure		423	{object}	LockedResponse
//	@Router			/documents/{id} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := docID(r)
	doc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeReadError(w, r, "get document", id, err)
		return
	}
	w.Header().Set("ETag", `"`+doc.Checksum+`"`)
	writeJSON(w, http.StatusOK, doc)
}

// writeReadError answers 423 with the document head so clients can prompt
// for the password.
func (h *Handler) writeReadError(w http.ResponseWriter, r *http.Request, op, id string, err error) {
	if errors.Is(err, apperr.ErrLocked) {
		head, herr := h.svc.Head(r.Context(), id)
		if herr == nil {
			writeJSON(w, http.StatusLocked, LockedResponse{Error: apperr.ErrLocked.Error(), Document: head})
			return
		}
	}
	writeError(w, op, err, slog.String("id", id))
}

// CreateDocument handles POST /api/documents.
//
//	@Summary		Create a document
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DocumentRequest	true	"Document to create"
//	@Success		201		{object}	docservice.Detail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "create document", err)
		return
	}
	doc, err := h.svc.Create(r.Context(), req.input())
	if err != nil {
		writeError(w, "create document", err, slog.String("title", req.Title))
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// UpdateDocument handles PUT /api/documents/{id}.
//
//	@Summary		Edit a document with optional optimistic concurrency
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string			true	"Document id"
//	@Param			If-Match	header		string			false	"Checksum from the last read"
//	@Param			body		body		DocumentRequest	true	"New title, tags, content and lock"
//	@Success		200			{object}	docservice.Detail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Failure		423			{object}	LockedResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [put]
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	id := docID(r)
	var req DocumentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "update document", err)
		return
	}
	doc, err := h.svc.Update(r.Context(), id, req.input(), ifMatch(r))
	if err != nil {
		h.writeReadError(w, r, "update document", id, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/{id}.
//
//	@Summary		Delete a document
//	@Tags			documents
//	@Param			id	path	string	true	"Document id"
//	@Success		204	"Document deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := docID(r)
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeReadError(w, r, "delete document", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnlockDocument handles POST /api/documents/{id}/unlock.
//
//	@Summary		Unlock a document for this session
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Document id"
//	@Param			body	body		UnlockRequest	true	"Password"
//	@Success		200		{object}	docservice.Detail
//	@Failure		403		{object}	errResponse
//	@Router			/documents/{id}/unlock [post]
func (h *Handler) UnlockDocument(w http.ResponseWriter, r *http.Request) {
	id := docID(r)
	var req UnlockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "unlock document", err)
		return
	}
	doc, err := h.svc.Unlock(r.Context(), id, req.Password)
	if err != nil {
		writeError(w, "unlock document", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// RenderDocument handles GET /api/documents/{id}/render.
func (h *Handler) RenderDocument(w http.ResponseWriter, r *http.Request) {
	id := docID(r)
	out, err := h.svc.Render(r.Context(), id)
	if err != nil {
		h.writeReadError(w, r, "render document", id, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

// MarkdownDocument handles GET /api/documents/{id}/markdown.
func (h *Handler) MarkdownDocument(w http.ResponseWriter, r *http.Request) {
	id := docID(r)
	md, err := h.svc.Markdown(r.Context(), id)
	if err != nil {
		h.writeReadError(w, r, "export markdown", id, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.md"`)
	_, _ = w.Write([]byte(md))
}

// ApplyCommands handles POST /api/documents/{id}/commands.
//
//	@Summary		Apply editor commands and save
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string			true	"Document id"
//	@Param			If-Match	header		string			false	"Checksum from the last read"
//	@Param			body		body		CommandsRequest	true	"Commands"
//	@Success		200			{object}	CommandsResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id}/commands [post]
func (h *Handler) ApplyCommands(w http.ResponseWriter, r *http.Request) {
	id := docID(r)
	var req CommandsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "apply commands", err)
		return
	}
	cursor := -1
	if req.Cursor != nil {
		cursor = *req.Cursor
	}
	doc, st, err := h.svc.ApplyCommands(r.Context(), id, req.Commands, cursor, ifMatch(r))
	if err != nil {
		h.writeReadError(w, r, "apply commands", id, err)
		return
	}
	writeJSON(w, http.StatusOK, CommandsResponse{Document: doc, Cursor: st.Cursor})
}

// Languages handles GET /api/languages.
func (h *Handler) Languages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"languages": content.Languages,
		"default":   content.PlainText,
	})
}

// HighlightCSS handles GET /api/highlight.css.
func (h *Handler) HighlightCSS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if err := content.WriteHighlightCSS(w); err != nil {
		slog.Error("write highlight css", slog.String("error", err.Error()))
	}
}

// Me handles GET /api/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, MeResponse{Authenticated: u != nil, User: u, Mode: h.auth.Mode()})
}

// SignOut handles POST /api/session/signout. It forgets every unlock of the
// session and expires the session cookie.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.SignOut(r.Context()); err != nil {
		writeError(w, "sign out", err, slog.String("session", session.FromContext(r.Context())))
		return
	}
	session.Expire(w, h.cookieName)
	w.WriteHeader(http.StatusNoContent)
}
