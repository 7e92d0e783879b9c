// Package cmd provides the command-line interface for stitch.
//
// Configuration System:
//
//	Settings are resolved from several sources, highest priority first:
//	1. Command-line flags (--template, --output, --interval, ...)
//	2. STITCH_ environment variables (STITCH_OUTPUT, STITCH_WATCH_NOTIFY, ...)
//	3. The configuration file: --config, else STITCH_CONFIG_FILE, else
//	   .stitch.yml in the working directory
//	4. Built-in defaults
package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/conneroisu/stitch/internal/build"
	"github.com/conneroisu/stitch/internal/config"
	stitcherrors "github.com/conneroisu/stitch/internal/errors"
	"github.com/conneroisu/stitch/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STITCH"

var (
	cfgFile   string
	watchMode bool

	// configErr holds a config file that exists but could not be read.
	configErr error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stitch",
	Short: "Assemble a static HTML page from a template and fragment files",
	Long: `stitch expands a page template into a finished HTML page. Every template
line holding an include directive is replaced by the processed fragment:

  <include>static/intro.txt</include>
  <include fmt=md>notes/changelog</include>

The fragment's last extension picks the handler (txt, css, md, js) unless
fmt= names one. Extra tags can be bound to handlers in .stitch.yml.

Quick Start:
  stitch                 Build index.html from static/template.html once
  stitch -w              Build, then rebuild whenever a watched file changes
  stitch init            Write a default .stitch.yml
  stitch formats         List the format tags and their handlers`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runRoot,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .stitch.yml, can also use STITCH_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().AddFlagSet(logFlags())

	rootCmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "rebuild whenever a watched file changes")
	rootCmd.Flags().AddFlagSet(buildFlags())

	mustBindFlags(viper.GetViper())
}

// initConfig points viper at the configuration file and environment.
func initConfig() {
	configErr = nil

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(EnvPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(strings.TrimSuffix(config.DefaultFileName, filepath.Ext(config.DefaultFileName)))
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			configErr = err
		}
	}
}

// loadConfig resolves the configuration and a logger writing to stderr.
func loadConfig(cmd *cobra.Command) (*config.Config, logging.Logger, error) {
	if configErr != nil {
		return nil, nil, configErr
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug(cmd.Context(), "Using config file", "path", used)
	}

	return cfg, logger, nil
}

func newLogger(cfg *config.Config, w io.Writer) logging.Logger {
	level, _ := logging.ParseLevel(cfg.Log.Level)

	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    w,
		Component: "stitch",
	})
}

func runRoot(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watchMode {
		cfg.Excludes = append(cfg.Excludes, selfExcludes()...)
	}

	b, err := build.New(cfg, build.WithLogger(logger), build.WithStdout(cmd.OutOrStdout()))
	if err != nil {
		return err
	}

	if watchMode {
		err = b.Watch(ctx, nil, nil)
	} else {
		_, err = b.Build(ctx)
	}
	if err != nil {
		logger.Error(ctx, err, "Build failed",
			"code", stitcherrors.Code(err), "recoverable", stitcherrors.IsRecoverable(err))
	}

	return err
}

// selfExcludes lists the config file and the running executable when they
// live under the working directory, as slash-separated relative paths.
func selfExcludes() []string {
	wd, err := os.Getwd()
	if err != nil {
		return nil
	}

	candidates := []string{viper.ConfigFileUsed()}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, exe)
	}

	var out []string
	for _, p := range candidates {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(wd, abs)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}

	return out
}
