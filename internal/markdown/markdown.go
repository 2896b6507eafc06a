// ABOUTME: Markdown to HTML rendering for bot replies using goldmark
// ABOUTME: Raw HTML in the source is dropped so user-visible output stays safe

// Package markdown renders bot reply text into HTML for rich clients.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer converts markdown text to HTML.
type Renderer struct {
	md goldmark.Markdown
}

// New creates a renderer with linkify and strikethrough enabled. Raw HTML in
// the input is omitted from the output.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.Linkify,
				extension.Strikethrough,
			),
		),
	}
}

// Render converts src to HTML.
func (r *Renderer) Render(src string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
