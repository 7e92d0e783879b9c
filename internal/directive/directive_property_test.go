//go:build property

package directive

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestParseProperties validates the matcher against generated lines.
func TestParseProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1357)
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	indent := gen.RegexMatch(`[ \t]{0,4}`)
	paths := gen.RegexMatch(`[a-zA-Z0-9_./ -]{0,30}`)

	properties.Property("built directives parse back to their parts", prop.ForAll(
		func(ws, tag, path, trailer string) bool {
			line := ws + "<include fmt=" + tag + ">" + path + "</include>" + trailer + "\n"
			d, ok, err := Parse(line)
			return err == nil && ok && d.Format == tag && d.Path == path
		},
		indent, gen.AlphaString(), paths, gen.AlphaString(),
	))

	properties.Property("fmt is optional", prop.ForAll(
		func(ws, path string) bool {
			d, ok, err := Parse(ws + "<include>" + path + "</include>")
			return err == nil && ok && d.Format == "" && d.Path == path
		},
		indent, paths,
	))

	properties.Property("lines without the open tag never match", prop.ForAll(
		func(line string) bool {
			if strings.Contains(line, openTag) {
				return true
			}
			_, ok, err := Parse(line)
			return !ok && err == nil
		},
		gen.AnyString(),
	))

	properties.Property("leading text before the tag never matches", prop.ForAll(
		func(prefix, path string) bool {
			_, ok, _ := Parse(prefix + "<include>" + path + "</include>")
			return !ok
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }), paths,
	))

	properties.TestingRun(t)
}
