// Package parser splits Markdown files dropped into the inbox into YAML
// frontmatter, a title, tags and the remaining body.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Frontmatter is the recognised subset of a file's YAML header.
type Frontmatter struct {
	Title    string  `yaml:"title"`
	Tags     tagList `yaml:"tags"`
	Password string  `yaml:"password"`
}

// tagList accepts either a YAML sequence or a comma separated string.
type tagList []string

func (t *tagList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		var items []string
		if err := n.Decode(&items); err != nil {
			return err
		}
		*t = items
	case yaml.ScalarNode:
		for _, s := range strings.Split(n.Value, ",") {
			*t = append(*t, s)
		}
	}
	return nil
}

// Result holds the output of parsing a Markdown file.
type Result struct {
	// Frontmatter is nil when the file has no valid header.
	Frontmatter *Frontmatter
	Title       string
	Tags        []string
	// Password locks the imported document when set.
	Password string
	Body     string
}

// Parse extracts frontmatter, title, tags and body from raw Markdown bytes.
// When the title comes from the first H1, that heading is removed from Body.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)

	r := &Result{Frontmatter: fm, Body: body}
	if fm != nil {
		r.Title = strings.TrimSpace(fm.Title)
		r.Password = fm.Password
	}
	if r.Title == "" {
		r.Title, r.Body = takeHeading(body)
	}
	r.Tags = extractTags(r.Body, fm)
	return r, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. Files without a closing delimiter or with invalid
// YAML are treated as body only.
func splitFrontmatter(data []byte) (*Frontmatter, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	var fm Frontmatter
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, string(data)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return &fm, body
}

// takeHeading returns the text of the first H1 and body without that line.
func takeHeading(body string) (string, string) {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "# ") {
			continue
		}
		title := strings.TrimSpace(trimmed[2:])
		rest := append(lines[:i:i], lines[i+1:]...)
		return title, strings.TrimLeft(strings.Join(rest, "\n"), "\n")
	}
	return "", body
}

// extractTags collects frontmatter tags, then inline #tags from body, in
// first-seen order.
func extractTags(body string, fm *Frontmatter) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if fm != nil {
		for _, s := range fm.Tags {
			add(s)
		}
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}
