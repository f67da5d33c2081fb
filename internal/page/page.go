// Package page wraps a rendered calendar in a standalone HTML document.
package page

import (
	"strings"

	"calgrid/internal/markup"
)

const metaCharset = `<meta charset="utf-8">`

// Document returns a complete HTML page with css inlined in a <style> block
// and body placed inside <body>. body is inserted as-is. A closing style tag
// inside css is neutralized so it cannot end the block early.
func Document(css, body string) string {
	css = strings.ReplaceAll(css, "</style", `<\/style`)
	head := markup.Element("head", "", metaCharset+markup.Element("style", "", css))
	return "<!DOCTYPE html>" + markup.Element("html", "", head+markup.Element("body", "", body))
}
