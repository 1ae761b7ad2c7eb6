package mcpserver

// DocumentFormatContract describes how LLM clients should author document
// content through the MCP tools.
const DocumentFormatContract = `# vanesdocs Document Format

Documents are stored as HTML. The MCP tools accept and return Markdown and
convert at the boundary, so write plain Markdown.

## Fields

- **title**: required, at most 300 characters. Used in the list and search.
- **tags**: optional, comma separated (` + "`" + `ops, dynatrace` + "`" + `). Duplicates are dropped.
- **content**: Markdown body. Do not repeat the title as a heading.

## Code blocks

Fenced blocks keep their language:

` + "```" + `markdown
` + "```" + `go
fmt.Println("hi")
` + "```" + `
` + "```" + `

Supported languages are listed by the ` + "`" + `list_languages` + "`" + ` tool. Unknown
languages are stored as plaintext.

## Images and files

- Upload with the ` + "`" + `upload_asset` + "`" + ` tool. It returns a ` + "`" + `markdown` + "`" + ` snippet
  ready to paste and the public ` + "`" + `url` + "`" + `.
- Pass ` + "`" + `document_id` + "`" + ` to append the asset to a document directly.
- Images: png, jpg, jpeg, gif, webp, svg. Files: pdf, txt, csv, zip.

## Locked documents

A locked document returns only its title and tags until ` + "`" + `read_document` + "`" + `
is called with the right ` + "`" + `password` + "`" + `. An unlock lasts for the MCP session.
Locks cannot be set or removed through MCP.

## Concurrency

` + "`" + `read_document` + "`" + ` returns a checksum. Pass it to ` + "`" + `update_document` + "`" + `
to fail instead of overwriting a newer edit.
`
