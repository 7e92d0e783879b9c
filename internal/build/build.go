// Package build assembles the output page from its template and drives the
// watch loop that rebuilds it.
//
// A build reads the template line by line. Lines holding an include
// directive are replaced by the processed fragment; every other line is
// copied byte for byte. The whole page is assembled in memory before the
// output is opened, so a failed build never truncates the previous output.
package build

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/conneroisu/stitch/internal/config"
	"github.com/conneroisu/stitch/internal/directive"
	stitcherrors "github.com/conneroisu/stitch/internal/errors"
	"github.com/conneroisu/stitch/internal/format"
	"github.com/conneroisu/stitch/internal/logging"
	"github.com/conneroisu/stitch/internal/watcher"
	"github.com/spf13/afero"
)

// Result describes one build.
type Result struct {
	Output     string
	Directives int
	Bytes      int
	Duration   time.Duration
	Error      error
}

// Builder builds the page described by a Config.
type Builder struct {
	cfg       *config.Config
	fs        afero.Fs
	dir       string
	processor *format.Processor
	procOpts  []format.Option
	logger    logging.Logger
	stdout    io.Writer
	metrics   *BuildMetrics
	loopOpts  []watcher.LoopOption
}

// Option configures a Builder.
type Option func(*Builder)

// WithDir roots every path at dir instead of the working directory.
func WithDir(dir string) Option {
	return func(b *Builder) {
		b.dir = dir
		b.fs = afero.NewBasePathFs(afero.NewOsFs(), dir)
	}
}

// WithFs reads and writes through fs. Notify mode still watches the
// working directory.
func WithFs(fs afero.Fs) Option {
	return func(b *Builder) {
		b.fs = fs
	}
}

// WithLogger sets the builder's logger.
func WithLogger(logger logging.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithStdout sets where watch notices are printed.
func WithStdout(w io.Writer) Option {
	return func(b *Builder) {
		b.stdout = w
	}
}

// WithProcessorOptions passes extra options to the fragment processor, after
// the handlers named in the config.
func WithProcessorOptions(opts ...format.Option) Option {
	return func(b *Builder) {
		b.procOpts = append(b.procOpts, opts...)
	}
}

// WithWatchOptions passes extra options to the watch loop.
func WithWatchOptions(opts ...watcher.LoopOption) Option {
	return func(b *Builder) {
		b.loopOpts = append(b.loopOpts, opts...)
	}
}

// New creates a builder for cfg. It fails when cfg names a handler that does
// not exist.
func New(cfg *config.Config, opts ...Option) (*Builder, error) {
	b := &Builder{
		cfg:     cfg,
		fs:      afero.NewOsFs(),
		logger:  logging.Discard(),
		stdout:  os.Stdout,
		metrics: NewBuildMetrics(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.WithComponent("build")

	named, err := format.ResolveNamed(cfg.Formats)
	if err != nil {
		return nil, stitcherrors.NewConfigError(stitcherrors.ErrCodeConfigInvalid, err.Error())
	}

	procOpts := append([]format.Option{format.WithFs(b.fs), format.WithHandlers(named)}, b.procOpts...)
	b.processor = format.NewProcessor(procOpts...)

	return b, nil
}

// Processor returns the fragment processor used by Build.
func (b *Builder) Processor() *format.Processor {
	return b.processor
}

// Metrics returns a snapshot of the builds run so far.
func (b *Builder) Metrics() BuildMetrics {
	return b.metrics.GetSnapshot()
}

// Build assembles the page and overwrites the output with it.
func (b *Builder) Build(ctx context.Context) (Result, error) {
	perf := logging.StartOperation(b.logger, "build")
	start := time.Now()

	result := Result{Output: b.cfg.Output}
	page, directives, err := b.assemble(ctx)
	if err == nil {
		err = b.write(page)
	}

	result.Directives = directives
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err
		b.metrics.RecordBuild(result)
		perf.EndWithError(ctx, err)
		return result, err
	}

	result.Bytes = len(page)
	b.metrics.RecordBuild(result)
	perf.End(ctx, "output", b.cfg.Output, "directives", directives, "bytes", len(page))

	return result, nil
}

// assemble reads the template and returns the finished page.
func (b *Builder) assemble(ctx context.Context) ([]byte, int, error) {
	tmpl, err := b.fs.Open(b.cfg.Template)
	if err != nil {
		return nil, 0, stitcherrors.ErrTemplateRead(b.cfg.Template, err)
	}
	defer tmpl.Close()

	var (
		page       bytes.Buffer
		directives int
		lineNo     int
	)

	r := bufio.NewReader(tmpl)
	for {
		if err := ctx.Err(); err != nil {
			return nil, directives, err
		}

		line, readErr := r.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, directives, stitcherrors.ErrTemplateRead(b.cfg.Template, readErr)
		}
		if line == "" {
			break
		}
		lineNo++

		d, ok, err := directive.Parse(line)
		if err != nil {
			var se *stitcherrors.StitchError
			if errors.As(err, &se) {
				se.WithLocation(b.cfg.Template, lineNo)
			}
			return nil, directives, err
		}
		if !ok {
			page.WriteString(line)
		} else {
			html, err := b.processor.Process(d.Path, d.Format)
			if err != nil {
				return nil, directives, err
			}
			b.logger.Debug(ctx, "Included fragment",
				"path", d.Path, "format", d.Format, "line", lineNo)
			page.WriteString(html)
			directives++
		}

		if readErr != nil {
			break
		}
	}

	return page.Bytes(), directives, nil
}

// write replaces the output file with page.
func (b *Builder) write(page []byte) (err error) {
	out, err := b.fs.OpenFile(b.cfg.Output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return stitcherrors.ErrOutputWrite(b.cfg.Output, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = stitcherrors.ErrOutputWrite(b.cfg.Output, cerr)
		}
	}()

	w := bufio.NewWriter(out)
	if _, err := w.Write(page); err != nil {
		return stitcherrors.ErrOutputWrite(b.cfg.Output, err)
	}
	if err := w.Flush(); err != nil {
		return stitcherrors.ErrOutputWrite(b.cfg.Output, err)
	}

	return nil
}

// Watch runs onChange once, then again whenever a file matched by patterns
// changes. Empty patterns fall back to the configured ones and a nil
// onChange runs Build. It returns nil when ctx is cancelled.
func (b *Builder) Watch(ctx context.Context, patterns []string, onChange watcher.RebuildFunc) error {
	if len(patterns) == 0 {
		patterns = b.cfg.Watch.Patterns
	}
	if onChange == nil {
		onChange = func(ctx context.Context) error {
			_, err := b.Build(ctx)
			return err
		}
	}

	scanner, excludes := b.newScanner(patterns)

	opts := []watcher.LoopOption{
		watcher.WithOutput(b.stdout),
		watcher.WithLogger(b.logger),
	}
	if b.cfg.Watch.Notify {
		n, err := watcher.NewFSNotifier(b.dir, b.logger)
		if err != nil {
			b.logger.Warn(ctx, err, "Filesystem notifications unavailable, polling only")
		} else {
			defer n.Close()
			opts = append(opts, watcher.WithNotifier(n))
		}
	}

	b.logger.Info(ctx, "Watching for changes",
		"patterns", patterns, "excludes", excludes, "interval", b.cfg.ScanInterval.String())

	loop := watcher.NewLoop(scanner, b.cfg.ScanInterval, onChange, append(opts, b.loopOpts...)...)
	err := loop.Run(ctx)

	m := b.metrics.GetSnapshot()
	b.logger.Info(context.WithoutCancel(ctx), "Watch stopped",
		"builds", m.TotalBuilds, "failed", m.FailedBuilds,
		"success_rate", b.metrics.GetSuccessRate(), "average", m.AverageDuration.String())

	return err
}

// newScanner creates the watch scanner with the output and the configured
// excludes filtered out.
func (b *Builder) newScanner(patterns []string) (*watcher.Scanner, []string) {
	excludes := append([]string{b.outputKey()}, b.cfg.Excludes...)
	return watcher.NewScanner(b.fs, patterns, watcher.ExcludeSubstrings(excludes...)), excludes
}

// outputKey returns the output path as the scanner reports it: relative to
// the working directory for the OS filesystem, relative to the root of any
// other filesystem.
func (b *Builder) outputKey() string {
	out := b.cfg.Output
	if filepath.IsAbs(out) {
		if _, onDisk := b.fs.(*afero.OsFs); onDisk {
			if wd, err := os.Getwd(); err == nil {
				if rel, err := filepath.Rel(wd, out); err == nil {
					out = rel
				}
			}
		} else {
			out = strings.TrimPrefix(filepath.ToSlash(out), "/")
		}
	}
	return watcher.NormalizePattern(out)
}
