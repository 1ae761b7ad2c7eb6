package docservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
	"github.com/vanesdocs/vanesdocs/internal/attachment"
	"github.com/vanesdocs/vanesdocs/internal/auth"
	"github.com/vanesdocs/vanesdocs/internal/content"
	"github.com/vanesdocs/vanesdocs/internal/editor"
)

// AttachResult reports the outcome of one file of a batch.
type AttachResult struct {
	Name  string `json:"name"`
	URL   string `json:"url,omitempty"`
	Mime  string `json:"mime,omitempty"`
	Image bool   `json:"image"`
	Error string `json:"error,omitempty"`
}

// editorState parses doc content and places the cursor. A negative cursor,
// or one past the last block, selects the last block.
func editorState(html string, cursor int) (editor.State, error) {
	st, err := editor.ParseState(html)
	if err != nil {
		return st, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	if cursor >= 0 && cursor < len(st.Blocks) {
		st.Cursor = cursor
	}
	return st, nil
}

// Attach uploads files into the body of id after the block at cursor.
//
// Images go first, in order, each inserted as an <img>. Other files follow,
// in order: a placeholder paragraph is inserted, the file is uploaded, and
// the placeholder is settled into a link or an error paragraph. A failed
// file never stops the batch. The document is saved once, after every
// upload has settled.
func (s *Service) Attach(ctx context.Context, id string, files []attachment.File, cursor int, ifMatch string) (*Detail, []AttachResult, error) {
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no files: %w", apperr.ErrInvalidInput)
	}
	doc, err := s.editable(ctx, id, ifMatch)
	if err != nil {
		return nil, nil, err
	}
	st, err := editorState(doc.Content, cursor)
	if err != nil {
		return nil, nil, err
	}

	var images, others []attachment.File
	for _, f := range files {
		if attachment.IsImage(f.Name, f.Mime) {
			images = append(images, f)
		} else {
			others = append(others, f)
		}
	}

	userID := auth.UserID(ctx)
	results := make([]AttachResult, 0, len(files))

	for _, f := range images {
		res := AttachResult{Name: f.Name, Image: true}
		url, upErr := s.uploader.UploadImage(ctx, userID, f)
		s.recorder.Upload(attachment.BucketImages, upErr)
		cmd := editor.Command{Name: editor.SetImage, Src: url, Alt: f.Name}
		if upErr != nil {
			res.Error = upErr.Error()
			slog.Warn("image upload failed", slog.String("id", id), slog.String("name", f.Name), slog.String("error", upErr.Error()))
			cmd = editor.Command{Name: editor.InsertContent, HTML: content.UploadErrorHTML(f.Name, upErr)}
		} else {
			res.URL = url
		}
		if st, err = editor.Apply(cmd, st); err != nil {
			return nil, nil, err
		}
		results = append(results, res)
	}

	for _, f := range others {
		res := AttachResult{Name: f.Name}
		marker := content.NewMarker()
		if st, err = editor.Apply(editor.Command{Name: editor.InsertContent, HTML: content.PlaceholderHTML(f.Name, marker)}, st); err != nil {
			return nil, nil, err
		}

		up, upErr := s.uploader.UploadFile(ctx, userID, f)
		s.recorder.Upload(attachment.BucketFiles, upErr)
		if upErr != nil {
			res.Error = upErr.Error()
			slog.Warn("file upload failed", slog.String("id", id), slog.String("name", f.Name), slog.String("error", upErr.Error()))
		} else {
			res.URL, res.Mime = up.URL, up.Mime
		}

		settled, ok, err := content.Settle(st.HTML(), marker, f.Name, up.URL, upErr)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			slog.Warn("upload marker missing", slog.String("id", id), slog.String("name", f.Name))
		}
		if st, err = editorState(settled, st.Cursor); err != nil {
			return nil, nil, err
		}
		results = append(results, res)
	}

	body, err := cleanContent(st.HTML())
	if err != nil {
		return nil, nil, err
	}
	doc.Content = body
	d, err := s.save(ctx, doc, KindUpdated)
	if err != nil {
		return nil, nil, err
	}
	return d, results, nil
}

// UploadImage stores an image outside of any document and returns its URL.
func (s *Service) UploadImage(ctx context.Context, f attachment.File) (string, error) {
	url, err := s.uploader.UploadImage(ctx, auth.UserID(ctx), f)
	s.recorder.Upload(attachment.BucketImages, err)
	return url, err
}

// UploadFile stores a file outside of any document.
func (s *Service) UploadFile(ctx context.Context, f attachment.File) (attachment.Uploaded, error) {
	up, err := s.uploader.UploadFile(ctx, auth.UserID(ctx), f)
	s.recorder.Upload(attachment.BucketFiles, err)
	return up, err
}

// ApplyCommands runs editor commands against the body of id, starting with
// the cursor at cursor, and saves the result once.
func (s *Service) ApplyCommands(ctx context.Context, id string, cmds []editor.Command, cursor int, ifMatch string) (*Detail, editor.State, error) {
	doc, err := s.editable(ctx, id, ifMatch)
	if err != nil {
		return nil, editor.State{}, err
	}
	st, err := editorState(doc.Content, cursor)
	if err != nil {
		return nil, editor.State{}, err
	}
	for i, cmd := range cmds {
		if st, err = editor.Apply(cmd, st); err != nil {
			return nil, editor.State{}, fmt.Errorf("command %d (%s): %w", i, cmd.Name, err)
		}
	}
	body, err := cleanContent(st.HTML())
	if err != nil {
		return nil, editor.State{}, err
	}
	doc.Content = body
	d, err := s.save(ctx, doc, KindUpdated)
	if err != nil {
		return nil, editor.State{}, err
	}
	return d, st, nil
}
