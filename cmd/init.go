package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/conneroisu/stitch/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:     "init",
	Aliases: []string{"i"},
	Short:   "Write a default configuration file",
	Long: `Write a .stitch.yml holding the default configuration, and a starter
template at the default template path when none exists yet.

Examples:
  stitch init                      # Create .stitch.yml
  stitch init --force              # Overwrite an existing .stitch.yml
  stitch init --config site.yml    # Write the configuration to site.yml`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

const starterTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<include>static/style.css</include>
</head>
<body>
<include>static/intro.txt</include>
</body>
</html>
`

var starterFragments = map[string]string{
	"static/style.css": "body { font-family: sans-serif; }",
	"static/intro.txt": "Hello from stitch.",
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing configuration file")
}

func runInit(cmd *cobra.Command, args []string) error {
	target := cfgFile
	if target == "" {
		target = config.DefaultFileName
	}

	if _, err := os.Stat(target); err == nil && !initForce {
		return fmt.Errorf("%s already exists, use --force to overwrite it", target)
	}

	cfg := config.Default()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", target, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)

	created, err := scaffold(cfg.Template)
	if err != nil {
		return err
	}
	for _, p := range created {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", p)
	}

	return nil
}

// scaffold writes the starter template and its fragments when the template
// does not exist. Existing files are never touched.
func scaffold(template string) ([]string, error) {
	if _, err := os.Stat(template); !errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	files := map[string]string{template: starterTemplate}
	for p, content := range starterFragments {
		files[p] = content
	}

	var created []string
	for _, p := range sortedKeys(files) {
		if _, err := os.Stat(p); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return created, fmt.Errorf("creating %s: %w", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, []byte(files[p]), 0o644); err != nil {
			return created, fmt.Errorf("writing %s: %w", p, err)
		}
		created = append(created, p)
	}

	return created, nil
}
