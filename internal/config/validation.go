package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	stitcherrors "github.com/conneroisu/stitch/internal/errors"
	"github.com/conneroisu/stitch/internal/format"
	"github.com/conneroisu/stitch/internal/logging"
)

// Validate checks cfg and returns every problem found at once as a
// config-invalid StitchError.
func Validate(cfg *Config) error {
	vec := &stitcherrors.ValidationErrorCollection{}

	validatePaths(cfg, vec)
	validateWatch(cfg, vec)
	validateFormats(cfg, vec)
	validateLog(cfg, vec)

	if vec.HasErrors() {
		return vec.ToStitchError()
	}

	return nil
}

func validatePaths(cfg *Config, vec *stitcherrors.ValidationErrorCollection) {
	if strings.TrimSpace(cfg.Template) == "" {
		vec.AddField("template", cfg.Template, "must not be empty", "template: "+DefaultTemplate)
	}
	if strings.TrimSpace(cfg.Output) == "" {
		vec.AddField("output", cfg.Output, "must not be empty", "output: "+DefaultOutput)
	}

	if cfg.Template != "" && filepath.Clean(cfg.Template) == filepath.Clean(cfg.Output) {
		vec.AddField("output", cfg.Output, "must differ from the template",
			"writing the page over its own template would lose the directives")
	}

	for _, exclude := range cfg.Excludes {
		if exclude == "" {
			vec.AddField("excludes", exclude, "entries must not be empty",
				"an empty substring would exclude every file")
		}
	}
}

func validateWatch(cfg *Config, vec *stitcherrors.ValidationErrorCollection) {
	if cfg.ScanInterval <= 0 {
		vec.AddField("scan_interval", cfg.ScanInterval.String(), "must be positive", "scan_interval: 1s")
	}

	for _, pattern := range cfg.Watch.Patterns {
		if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
			vec.AddField("watch.patterns", pattern, "not a valid glob pattern")
			continue
		}
		if filepath.IsAbs(pattern) {
			vec.AddField("watch.patterns", pattern, "must be relative to the working directory")
		}
	}
}

func validateFormats(cfg *Config, vec *stitcherrors.ValidationErrorCollection) {
	for tag, name := range cfg.Formats {
		if tag == "" || strings.ContainsAny(tag, "./\\ \t") {
			vec.AddField("formats", tag, "tag must be a bare extension such as htm")
		}
		if _, ok := format.Named(name); !ok {
			vec.AddField("formats."+tag, name, "unknown handler",
				fmt.Sprintf("available handlers: %s", strings.Join(format.Names(), ", ")))
		}
	}
}

func validateLog(cfg *Config, vec *stitcherrors.ValidationErrorCollection) {
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		vec.AddField("log.level", cfg.Log.Level, err.Error())
	}

	switch cfg.Log.Format {
	case "text", "json":
	default:
		vec.AddField("log.format", cfg.Log.Format, "must be text or json")
	}
}
