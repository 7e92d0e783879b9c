// Package format turns fragment files into HTML ready for substitution into
// a page template.
//
// A Processor owns a dispatch table from format tag to Handler. Four tags
// are built in (txt, css, md, js). Callers may register further tags, or
// replace built-in ones, when constructing the Processor; registered handlers
// always win over built-ins for the same tag.
//
// The tag for a fragment is the explicit one given on the directive when
// present, otherwise the last element of the fragment's extension chain.
// A tag with no handler is an unknown-format error; fragments are never
// passed through unprocessed.
package format

import (
	"path"
	"sort"
	"strings"

	stitcherrors "github.com/conneroisu/stitch/internal/errors"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Fragment is a fragment file read in full.
type Fragment struct {
	Path    string
	Exts    []string
	Content []byte
}

// Handler renders one fragment as HTML.
type Handler func(f Fragment) (string, error)

// Processor dispatches fragments to format handlers.
type Processor struct {
	fs       afero.Fs
	newID    func() string
	builtins map[string]Handler
	custom   map[string]Handler
}

// Option configures a Processor.
type Option func(*Processor)

// WithFs reads fragments from fs instead of the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(p *Processor) {
		p.fs = fs
	}
}

// WithHandler registers h for tag, ahead of any built-in handler.
func WithHandler(tag string, h Handler) Option {
	return func(p *Processor) {
		p.custom[tag] = h
	}
}

// WithHandlers registers every entry of handlers, see WithHandler.
func WithHandlers(handlers map[string]Handler) Option {
	return func(p *Processor) {
		for tag, h := range handlers {
			p.custom[tag] = h
		}
	}
}

// WithIDGenerator replaces the element id source used by the md handler.
func WithIDGenerator(newID func() string) Option {
	return func(p *Processor) {
		p.newID = newID
	}
}

// NewProcessor creates a processor with the built-in handlers plus any
// registered through opts.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		fs:     afero.NewOsFs(),
		newID:  uuid.NewString,
		custom: make(map[string]Handler),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.builtins = builtinHandlers(p.newID)

	return p
}

// Extensions returns the extension chain of a fragment path: the
// dot-separated suffixes of its base name after the first dot.
// "widgets/clock.esm.js" yields ["esm", "js"]; a name without dots yields nil.
func Extensions(fragmentPath string) []string {
	base := path.Base(strings.ReplaceAll(fragmentPath, "\\", "/"))
	parts := strings.Split(base, ".")
	if len(parts) < 2 {
		return nil
	}

	return parts[1:]
}

// Resolve picks the handler for a fragment without reading it. explicit is
// the directive's fmt tag, possibly empty.
func (p *Processor) Resolve(fragmentPath, explicit string) (string, Handler, error) {
	tag := explicit
	if tag == "" {
		if exts := Extensions(fragmentPath); len(exts) > 0 {
			tag = exts[len(exts)-1]
		}
	}

	if h, ok := p.custom[tag]; ok && tag != "" {
		return tag, h, nil
	}
	if h, ok := p.builtins[tag]; ok {
		return tag, h, nil
	}

	return tag, nil, stitcherrors.ErrUnknownFormatFor(tag, fragmentPath)
}

// Process reads the fragment at fragmentPath and renders it with the
// handler selected by explicit or by its extension chain.
func (p *Processor) Process(fragmentPath, explicit string) (string, error) {
	_, h, err := p.Resolve(fragmentPath, explicit)
	if err != nil {
		return "", err
	}

	content, err := afero.ReadFile(p.fs, fragmentPath)
	if err != nil {
		return "", stitcherrors.ErrFragmentRead(fragmentPath, err)
	}

	return h(Fragment{
		Path:    fragmentPath,
		Exts:    Extensions(fragmentPath),
		Content: content,
	})
}

// Entry describes one row of the dispatch table.
type Entry struct {
	Tag    string
	Custom bool
	// Overrides is set when a registered handler shadows a built-in one.
	Overrides bool
}

// Table lists every tag the processor can dispatch, sorted by tag.
func (p *Processor) Table() []Entry {
	entries := make([]Entry, 0, len(p.builtins)+len(p.custom))

	for tag := range p.custom {
		_, shadowed := p.builtins[tag]
		entries = append(entries, Entry{Tag: tag, Custom: true, Overrides: shadowed})
	}
	for tag := range p.builtins {
		if _, ok := p.custom[tag]; ok {
			continue
		}
		entries = append(entries, Entry{Tag: tag})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Tag < entries[j].Tag
	})

	return entries
}
