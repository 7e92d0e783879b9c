package format

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Names of handlers that can be bound to a tag from configuration in
// addition to the built-in ones.
const (
	NameHTML             = "html"
	NameRenderedMarkdown = "markdown"
)

var renderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML inserts the fragment unchanged. It is only reachable through
// registration; no extension selects it by default.
func HTML(f Fragment) (string, error) {
	return string(f.Content), nil
}

// RenderedMarkdown converts Markdown to HTML at build time, for pages that do
// not ship a client-side renderer.
func RenderedMarkdown(f Fragment) (string, error) {
	var buf bytes.Buffer
	if err := renderer.Convert(f.Content, &buf); err != nil {
		return "", fmt.Errorf("render %s: %w", f.Path, err)
	}

	return buf.String(), nil
}

// Named looks up a handler by name for configuration-driven registration.
// Built-in tags are valid names, so a new tag can alias one of them.
func Named(name string) (Handler, bool) {
	switch name {
	case TagText:
		return Text, true
	case TagCSS:
		return CSS, true
	case TagMarkdown:
		return Markdown(uuid.NewString), true
	case TagJavaScript:
		return JavaScript, true
	case NameHTML:
		return HTML, true
	case NameRenderedMarkdown:
		return RenderedMarkdown, true
	default:
		return nil, false
	}
}

// Names lists every name accepted by Named.
func Names() []string {
	names := []string{TagText, TagCSS, TagMarkdown, TagJavaScript, NameHTML, NameRenderedMarkdown}
	sort.Strings(names)
	return names
}

// ResolveNamed maps tag → handler name bindings to handlers.
func ResolveNamed(bindings map[string]string) (map[string]Handler, error) {
	handlers := make(map[string]Handler, len(bindings))
	for tag, name := range bindings {
		h, ok := Named(name)
		if !ok {
			return nil, fmt.Errorf("format %q: unknown handler %q", tag, name)
		}
		handlers[tag] = h
	}

	return handlers, nil
}
