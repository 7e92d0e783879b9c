// Package directive recognises include directives in template lines.
//
// A directive occupies one template line:
//
//	<include>fragments/intro.txt</include>
//	    <include fmt=md>notes/changelog</include>
//
// Leading whitespace is allowed, the fmt attribute is optional and holds
// letters only, and anything may follow the closing tag. A line holds at most
// one directive; lines with a second <include are rejected.
package directive

import (
	"regexp"
	"strings"

	stitcherrors "github.com/conneroisu/stitch/internal/errors"
)

const openTag = "<include"

var includePattern = regexp.MustCompile(`^[ \t]*<include(?:[ \t]+fmt=([a-zA-Z]*))?[ \t]*>(.*?)</include>`)

// Directive is one parsed include line.
type Directive struct {
	// Format is the explicit fmt tag, empty when the extension decides.
	Format string
	// Path is the fragment path exactly as written between the tags.
	Path string
}

// Parse tests a single template line. It reports ok=false for lines that are
// not directives. A line that matches but carries another <include, either
// inside the path or after the closing tag, yields a malformed-directive
// error without location; callers attach the template position.
func Parse(line string) (Directive, bool, error) {
	m := includePattern.FindStringSubmatchIndex(line)
	if m == nil {
		return Directive{}, false, nil
	}

	d := Directive{Path: line[m[4]:m[5]]}
	if m[2] >= 0 {
		d.Format = line[m[2]:m[3]]
	}

	if strings.Contains(d.Path, openTag) {
		return Directive{}, false, stitcherrors.ErrMalformedDirectiveAt("", 0, "nested <include> in path")
	}
	if strings.Contains(line[m[1]:], openTag) {
		return Directive{}, false, stitcherrors.ErrMalformedDirectiveAt("", 0, "more than one <include> on a line")
	}

	return d, true, nil
}

