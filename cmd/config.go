package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/conneroisu/stitch/internal/config"
	stitcherrors "github.com/conneroisu/stitch/internal/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect stitch configuration",
	Long: `Inspect stitch configuration files and settings.

Examples:
  stitch config show                    # Show the resolved configuration
  stitch config validate                # Validate .stitch.yml
  stitch config validate --file site.yml`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a stitch configuration file on its own, without flags or
environment overrides, and report every problem found.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	Long: `Display the configuration after loading the file, applying environment
overrides and flags, and filling in defaults.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configFile string

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configValidateCmd.Flags().
		StringVarP(&configFile, "file", "f", "", "configuration file to validate (default: .stitch.yml)")
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	target := configFile
	if target == "" {
		target = cfgFile
	}
	if target == "" {
		target = config.DefaultFileName
	}

	v := viper.New()
	v.SetConfigFile(target)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	if _, err := config.LoadFrom(v); err != nil {
		var problems *stitcherrors.ValidationErrorCollection
		if errors.As(err, &problems) {
			fmt.Fprintf(out, "%s is invalid:\n", target)
			printProblems(out, problems)
		}
		return err
	}

	fmt.Fprintf(out, "%s is valid\n", target)
	return nil
}

// printProblems lists every validation problem in the order found, with
// its suggestions.
func printProblems(out io.Writer, problems *stitcherrors.ValidationErrorCollection) {
	for _, p := range problems.Errors {
		fmt.Fprintf(out, "  - %s: %s (got %q)\n", p.Field(), p.Message(), fmt.Sprint(p.Value()))
		for _, s := range p.Suggestions() {
			fmt.Fprintf(out, "      %s\n", s)
		}
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	_, err = cmd.OutOrStdout().Write(data)
	return err
}
