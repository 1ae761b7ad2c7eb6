package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
	"github.com/vanesdocs/vanesdocs/internal/attachment"
	"github.com/vanesdocs/vanesdocs/internal/objectstore"
)

const (
	multipartMemory = 8 << 20
	maxBatchFiles   = 20
)

// parseMultipart limits the body to n files of the configured size and
// parses it.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request, files int) error {
	limit := h.maxUploadBytes*int64(files) + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperr.ErrTooLarge
		}
		return fmt.Errorf("%w: invalid multipart body", apperr.ErrInvalidInput)
	}
	return nil
}

// openParts opens every part of the given fields in form order.
func openParts(form *multipart.Form, fields ...string) ([]attachment.File, func(), error) {
	var files []attachment.File
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
	for _, field := range fields {
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			closers = append(closers, f)
			files = append(files, attachment.File{
				Name: fh.Filename,
				Mime: fh.Header.Get("Content-Type"),
				Body: f,
			})
		}
	}
	return files, closeAll, nil
}

// Attach handles POST /api/documents/{id}/attachments (multipart, fields
// "files" and "file", optional "cursor").
//
//	@Summary		Upload files into a document
//	@Tags			documents
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id			path		string	true	"Document id"
//	@Param			If-Match	header		string	false	"Checksum from the last read"
//	@Param			files		formData	file	true	"Files"
//	@Param			cursor		formData	int		false	"Insert after this block"
//	@Success		200			{object}	AttachResponse
//	@Security		BearerAuth
//	@Router			/documents/{id}/attachments [post]
func (h *Handler) Attach(w http.ResponseWriter, r *http.Request) {
	id := docID(r)
	if err := h.parseMultipart(w, r, maxBatchFiles); err != nil {
		writeError(w, "attach", err)
		return
	}
	files, closeAll, err := openParts(r.MultipartForm, "files", "file")
	if err != nil {
		writeError(w, "attach", err, slog.String("id", id))
		return
	}
	defer closeAll()
	if len(files) > maxBatchFiles {
		writeJSON(w, http.StatusBadRequest, errorBody("too many files"))
		return
	}

	cursor := -1
	if raw := r.FormValue("cursor"); raw != "" {
		if cursor, err = strconv.Atoi(raw); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("cursor must be an integer"))
			return
		}
	}

	doc, results, err := h.svc.Attach(r.Context(), id, files, cursor, ifMatch(r))
	if err != nil {
		h.writeReadError(w, r, "attach", id, err)
		return
	}
	writeJSON(w, http.StatusOK, AttachResponse{Document: doc, Results: results})
}

// singlePart opens the "file" field of a one-file upload.
func (h *Handler) singlePart(w http.ResponseWriter, r *http.Request) (attachment.File, func(), bool) {
	if err := h.parseMultipart(w, r, 1); err != nil {
		writeError(w, "upload", err)
		return attachment.File{}, nil, false
	}
	files, closeAll, err := openParts(r.MultipartForm, "file")
	if err != nil {
		writeError(w, "upload", err)
		return attachment.File{}, nil, false
	}
	if len(files) == 0 {
		closeAll()
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return attachment.File{}, nil, false
	}
	return files[0], closeAll, true
}

// UploadImage handles POST /api/uploads/images.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request) {
	f, closeAll, ok := h.singlePart(w, r)
	if !ok {
		return
	}
	defer closeAll()
	url, err := h.svc.UploadImage(r.Context(), f)
	if err != nil {
		writeError(w, "upload image", err, slog.String("name", f.Name))
		return
	}
	writeJSON(w, http.StatusCreated, ImageUploadResponse{URL: url})
}

// UploadFile handles POST /api/uploads/files.
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	f, closeAll, ok := h.singlePart(w, r)
	if !ok {
		return
	}
	defer closeAll()
	up, err := h.svc.UploadFile(r.Context(), f)
	if err != nil {
		writeError(w, "upload file", err, slog.String("name", f.Name))
		return
	}
	writeJSON(w, http.StatusCreated, up)
}

// localPather is implemented by stores backed by local files.
type localPather interface {
	LocalPath(bucket, key string) (string, error)
}

// FileHandler serves stored objects under their public URLs.
type FileHandler struct {
	store objectstore.Provider
}

// NewFileHandler creates a handler over store.
func NewFileHandler(store objectstore.Provider) *FileHandler {
	return &FileHandler{store: store}
}

// ServeFile handles GET /files/{bucket}/*.
func (h *FileHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if bucket == "" || key == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if lp, ok := h.store.(localPather); ok {
		abs, err := lp.LocalPath(bucket, key)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		rc, err := h.store.Open(r.Context(), bucket, key)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		_ = rc.Close()
		http.ServeFile(w, r, abs)
		return
	}

	rc, err := h.store.Open(r.Context(), bucket, key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer rc.Close()
	ctype := mime.TypeByExtension(path.Ext(key))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("serve file", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (h *FileHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if errors.Is(err, apperr.ErrInvalidInput) {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	slog.Error("open file failed", slog.String("error", err.Error()))
	http.Error(w, "internal error", http.StatusInternalServerError)
}
