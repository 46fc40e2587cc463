package httphandler

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	descriptionRenderer goldmark.Markdown
	descriptionHTML     *bluemonday.Policy
)

func init() {
	// Provider descriptions mix plain text, markdown-ish text and HTML
	// fragments. Raw HTML is passed through and cleaned by the sanitizer.
	descriptionRenderer = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe(), html.WithHardWraps()),
	)

	descriptionHTML = bluemonday.UGCPolicy()
	descriptionHTML.AddTargetBlankToFullyQualifiedLinks(true)
}

// renderDescription converts an event description to sanitized HTML with
// bare URLs turned into links. Returns empty string for empty input.
func renderDescription(src string) string {
	if src == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := descriptionRenderer.Convert([]byte(src), &buf); err != nil {
		return descriptionHTML.Sanitize(src)
	}

	return descriptionHTML.Sanitize(buf.String())
}
