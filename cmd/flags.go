package cmd

import (
	"fmt"

	"github.com/conneroisu/stitch/internal/config"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps flag names to the configuration keys they override.
var flagKeys = map[string]string{
	"template":   "template",
	"output":     "output",
	"interval":   "scan_interval",
	"exclude":    "excludes",
	"pattern":    "watch.patterns",
	"notify":     "watch.notify",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// buildFlags declares the flags describing what is built and watched.
func buildFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("build", pflag.ContinueOnError)

	fs.StringP("template", "t", config.DefaultTemplate, "page template to expand")
	fs.StringP("output", "o", config.DefaultOutput, "file the assembled page is written to")
	fs.Duration("interval", config.DefaultScanInterval, "poll interval in watch mode")
	fs.StringSliceP("exclude", "e", nil, "extra path substrings the watcher skips (.git/ is always skipped)")
	fs.StringSliceP("pattern", "p", nil, "glob patterns the watcher fingerprints (default ./**)")
	fs.Bool("notify", false, "wake the watcher early on filesystem events")

	return fs
}

// logFlags declares the logging flags shared by every command.
func logFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("log", pflag.ContinueOnError)

	fs.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	fs.String("log-format", "text", "log format (text, json)")

	return fs
}

// bindFlags binds every known flag of the root command into v.
func bindFlags(v *viper.Viper) error {
	for name, key := range flagKeys {
		f := rootCmd.Flags().Lookup(name)
		if f == nil {
			f = rootCmd.PersistentFlags().Lookup(name)
		}
		if f == nil {
			return fmt.Errorf("flag %q is not declared", name)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %q: %w", name, err)
		}
	}

	return nil
}

func mustBindFlags(v *viper.Viper) {
	if err := bindFlags(v); err != nil {
		panic(err)
	}
}
