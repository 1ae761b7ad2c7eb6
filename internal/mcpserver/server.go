// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes vanesdocs documents to LLM clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/xid"

	"github.com/vanesdocs/vanesdocs/internal/apperr"
	"github.com/vanesdocs/vanesdocs/internal/auth"
	"github.com/vanesdocs/vanesdocs/internal/content"
	"github.com/vanesdocs/vanesdocs/internal/docservice"
	"github.com/vanesdocs/vanesdocs/internal/lockgate"
	"github.com/vanesdocs/vanesdocs/internal/session"
)

const (
	contractURI = "vanesdocs://document-format"

	// UserID owns documents written through MCP.
	UserID = "mcp"
)

// Server wraps the MCP server with document tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
	// sessionID scopes unlocks to this server process.
	sessionID string
}

// New creates a new MCP server with all tools registered.
func New(svc *docservice.Service, version string) *Server {
	s := &Server{svc: svc, sessionID: "mcp-" + xid.New().String()}

	s.mcp = server.NewMCPServer(
		"vanesdocs",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Fuzzy search over document titles, tags and text. Locked documents match by title and tags only."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List all documents, newest first."),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read a document as Markdown together with its checksum."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
		mcp.WithString("password", mcp.Description("Password of a locked document")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a document from Markdown. Read the format via get_document_contract "+
			"or the "+contractURI+" resource first."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Document title")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body")),
		mcp.WithString("tags", mcp.Description("Comma separated tags")),
	), s.createDocument)

	s.mcp.AddTool(mcp.NewTool("update_document",
		mcp.WithDescription("Replace the title, tags or Markdown body of a document. Omitted fields are kept."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Document id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New Markdown body")),
		mcp.WithString("tags", mcp.Description("New comma separated tags")),
		mcp.WithString("checksum", mcp.Description("Checksum from read_document; the update fails if the document changed since")),
	), s.updateDocument)

	s.mcp.AddTool(mcp.NewTool("list_languages",
		mcp.WithDescription("List the code block languages documents support."),
	), s.listLanguages)

	s.mcp.AddTool(mcp.NewTool("get_document_contract",
		mcp.WithDescription("Returns the document format contract. Call this before creating or updating documents."),
	), s.getDocumentContract)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Upload an image or file from an http(s) URL or a base64 data URI."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data: URI")),
		mcp.WithString("filename", mcp.Description("File name to store, derived from the URL when omitted")),
		mcp.WithString("document_id", mcp.Description("Append the asset to this document")),
	), s.uploadAsset)

	s.mcp.AddResource(
		mcp.NewResource(contractURI, "Document Format Contract",
			mcp.WithResourceDescription("How document content is written through MCP."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// scope attaches the server's session and user to ctx.
func (s *Server) scope(ctx context.Context) context.Context {
	ctx = session.WithID(ctx, s.sessionID)
	return auth.WithUser(ctx, &auth.User{ID: UserID})
}

// optional returns the named string argument or "" when absent.
func optional(req mcp.CallToolRequest, name string) string {
	v, err := req.RequireString(name)
	if err != nil {
		return ""
	}
	return v
}

func splitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("document not found")
	case errors.Is(err, apperr.ErrConflict):
		return mcp.NewToolResultError("checksum mismatch: the document changed, read it again")
	case errors.Is(err, apperr.ErrLocked):
		return mcp.NewToolResultError("document is locked: pass its password")
	}
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.List(s.scope(ctx), query)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) listDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.svc.List(s.scope(ctx), "")
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(docs), nil
}

type documentResult struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Tags     []string `json:"tags"`
	Locked   bool     `json:"locked"`
	Checksum string   `json:"checksum"`
	Markdown string   `json:"markdown"`
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ctx = s.scope(ctx)

	var doc *docservice.Detail
	if pw := optional(req, "password"); pw != "" {
		doc, err = s.svc.Unlock(ctx, id, pw)
	} else {
		doc, err = s.svc.Get(ctx, id)
	}
	if err != nil {
		return toolError(err), nil
	}
	md, err := content.ToMarkdown(doc.Content)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(documentResult{
		ID:       doc.ID,
		Title:    doc.Title,
		Tags:     doc.Tags,
		Locked:   doc.Locked,
		Checksum: doc.Checksum,
		Markdown: md,
	}), nil
}

func (s *Server) createDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.CreateFromMarkdown(s.scope(ctx), docservice.Input{
		Title:   title,
		Tags:    splitTags(optional(req, "tags")),
		Content: body,
	})
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", doc.ID)), nil
}

func (s *Server) updateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ctx = s.scope(ctx)

	cur, err := s.svc.Get(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	in := docservice.Input{
		Title:   cur.Title,
		Tags:    cur.Tags,
		Content: cur.Content,
		Lock:    lockgate.LockRequest{Locked: cur.Locked},
	}
	if v := optional(req, "title"); v != "" {
		in.Title = v
	}
	if v, terr := req.RequireString("tags"); terr == nil {
		in.Tags = splitTags(v)
	}
	if v := optional(req, "content"); v != "" {
		html, cerr := content.FromMarkdown(v)
		if cerr != nil {
			return mcp.NewToolResultError(cerr.Error()), nil
		}
		in.Content = html
	}

	checksum := optional(req, "checksum")
	if checksum == "" {
		checksum = cur.Checksum
	}
	doc, err := s.svc.Update(ctx, id, in, checksum)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("updated: %s (checksum %s)", doc.ID, doc.Checksum)), nil
}

func (s *Server) listLanguages(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(content.Languages), nil
}

func (s *Server) getDocumentContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentFormatContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      contractURI,
			MIMEType: "text/markdown",
			Text:     DocumentFormatContract,
		},
	}, nil
}
