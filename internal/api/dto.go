package api

import (
	"github.com/vanesdocs/vanesdocs/internal/auth"
	"github.com/vanesdocs/vanesdocs/internal/docservice"
	"github.com/vanesdocs/vanesdocs/internal/editor"
	"github.com/vanesdocs/vanesdocs/internal/lockgate"
)

// DocumentRequest is the request body for creating or editing a document.
// Password and Confirm are only read when Locked is set.
type DocumentRequest struct {
	Title    string   `json:"title" example:"Healthcheck: Rekap Mei 2025" validate:"max=300"`
	Tags     []string `json:"tags" example:"BCAF,Healthcheck" validate:"max=50,dive,max=64"`
	Content  string   `json:"content" example:"<p>Ringkasan temuan</p>"`
	Locked   bool     `json:"locked"`
	Password string   `json:"password,omitempty" validate:"max=256"`
	Confirm  string   `json:"confirm,omitempty" validate:"max=256"`
}

func (r *DocumentRequest) input() docservice.Input {
	return docservice.Input{
		Title:   r.Title,
		Tags:    r.Tags,
		Content: r.Content,
		Lock:    lockgate.LockRequest{Locked: r.Locked, Password: r.Password, Confirm: r.Confirm},
	}
}

// UnlockRequest is the request body for unlocking a document.
type UnlockRequest struct {
	Password string `json:"password" validate:"required,max=256"`
}

// CommandsRequest is the request body for applying editor commands. Cursor
// defaults to the last block.
type CommandsRequest struct {
	Cursor   *int             `json:"cursor,omitempty" validate:"omitempty,min=0"`
	Commands []editor.Command `json:"commands" validate:"required,min=1,max=100,dive"`
}

// DocumentListResponse wraps list and search results.
type DocumentListResponse struct {
	Documents []docservice.Summary `json:"documents" validate:"required"`
	Total     int                  `json:"total" example:"42"`
}

// LockedResponse is returned with 423 so the client can render the unlock
// prompt.
type LockedResponse struct {
	Error    string              `json:"error"`
	Document *docservice.Summary `json:"document,omitempty"`
}

// CommandsResponse carries the saved document and the resulting cursor.
type CommandsResponse struct {
	Document *docservice.Detail `json:"document"`
	Cursor   int                `json:"cursor"`
}

// AttachResponse carries the saved document and per-file outcomes.
type AttachResponse struct {
	Document *docservice.Detail        `json:"document"`
	Results  []docservice.AttachResult `json:"results"`
}

// ImageUploadResponse is returned after a raw image upload.
type ImageUploadResponse struct {
	URL string `json:"url" example:"/files/images/public/1724650000000-cr1b2c3.png"`
}

// MeResponse reports the caller's identity.
type MeResponse struct {
	Authenticated bool       `json:"authenticated"`
	User          *auth.User `json:"user,omitempty"`
	Mode          string     `json:"mode" example:"token"`
}
