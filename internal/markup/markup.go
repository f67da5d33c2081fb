// Package markup builds small HTML fragments. Text and attribute values are
// escaped by the helpers that accept them; content passed to Element is
// treated as already-rendered markup.
package markup

import (
	"html"
	"strings"
)

// Attr is a single name="value" attribute.
type Attr struct {
	Name  string
	Value string
}

// Element renders <tag attrs>content</tag>, or <tag>content</tag> when attrs
// is empty. attrs is inserted verbatim and is expected to come from Attrs or
// Class.
func Element(tag, attrs, content string) string {
	var b strings.Builder
	b.Grow(len(tag)*2 + len(attrs) + len(content) + 6)
	b.WriteByte('<')
	b.WriteString(tag)
	if attrs != "" {
		b.WriteByte(' ')
		b.WriteString(attrs)
	}
	b.WriteByte('>')
	b.WriteString(content)
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteByte('>')
	return b.String()
}

// Attrs renders attributes in the given order with escaped values.
func Attrs(attrs ...Attr) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, a.Name+`="`+html.EscapeString(a.Value)+`"`)
	}
	return strings.Join(parts, " ")
}

// Class renders class="a b c". It returns "" for an empty list so that
// Element omits the attribute entirely.
func Class(classes []string) string {
	escaped := make([]string, 0, len(classes))
	for _, c := range classes {
		if c == "" {
			continue
		}
		escaped = append(escaped, html.EscapeString(c))
	}
	return WrapJoin(escaped, `class="`, " ", `"`, "")
}

// WrapJoin joins items with sep. A non-empty result is wrapped with prefix
// and suffix; an empty one yields fallback.
func WrapJoin(items []string, prefix, sep, suffix, fallback string) string {
	joined := strings.Join(items, sep)
	if joined == "" {
		return fallback
	}
	return prefix + joined + suffix
}

// Text escapes s for use as element content.
func Text(s string) string {
	return html.EscapeString(s)
}
