package report

import (
	"bytes"
	"fmt"
	"html/template"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"ecoads/assets"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

var helpOnce = sync.OnceValues(func() (template.HTML, error) {
	return RenderMarkdown(assets.HelpMarkdown)
})

// RenderHelp returns the embedded user guide as HTML. The result is computed once.
func RenderHelp() (template.HTML, error) {
	return helpOnce()
}

// RenderMarkdown converts GitHub-flavoured markdown to HTML. Raw HTML in the
// source is omitted.
func RenderMarkdown(src []byte) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}
