package format

import (
	"fmt"
	"strings"
)

// Built-in format tags.
const (
	TagText       = "txt"
	TagCSS        = "css"
	TagMarkdown   = "md"
	TagJavaScript = "js"
)

const (
	spaceMarkup = `<span class="gspace">&nbsp;</span>`
	breakMarkup = "<br/>"

	esmExtension  = "esm"
	scriptModule  = "module"
	scriptClassic = "text/javascript"
)

var textReplacer = strings.NewReplacer(
	" ", spaceMarkup,
	"\r\n", breakMarkup,
	"\r", breakMarkup,
	"\n", breakMarkup,
)

func builtinHandlers(newID func() string) map[string]Handler {
	return map[string]Handler{
		TagText:       Text,
		TagCSS:        CSS,
		TagMarkdown:   Markdown(newID),
		TagJavaScript: JavaScript,
	}
}

// Text keeps plain text layout: each space becomes a non-breaking-space span
// and each line ending, whether "\n", "\r\n" or "\r", a single line break.
// Runs of spaces are not collapsed.
func Text(f Fragment) (string, error) {
	return textReplacer.Replace(string(f.Content)), nil
}

// CSS wraps a stylesheet in a style block. An empty stylesheet renders as
// nothing at all rather than an empty block.
func CSS(f Fragment) (string, error) {
	if len(f.Content) == 0 {
		return "", nil
	}

	return "<style>\n" + string(f.Content) + "\n</style>", nil
}

// Markdown returns a handler that defers rendering to the page: it emits an
// empty container with a fresh id and a script that calls the page's
// renderEl(id, markdown) once the DOM has loaded. The Markdown source is
// inserted as a template literal as-is.
func Markdown(newID func() string) Handler {
	return func(f Fragment) (string, error) {
		id := newID()

		return fmt.Sprintf(
			`<div id="%s"></div><script>document.addEventListener("DOMContentLoaded", function(event) {renderEl("%s",`+"`%s`"+`);});</script>`,
			id, id, f.Content,
		), nil
	}
}

// JavaScript wraps a script. Files whose second-to-last extension is esm
// (clock.esm.js) load as ES modules.
func JavaScript(f Fragment) (string, error) {
	scriptType := scriptClassic
	if n := len(f.Exts); n >= 2 && f.Exts[n-2] == esmExtension {
		scriptType = scriptModule
	}

	return `<script type="` + scriptType + `">` + string(f.Content) + `</script>`, nil
}
