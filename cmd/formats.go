package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/conneroisu/stitch/internal/build"
	"github.com/spf13/cobra"
)

var formatsCmd = &cobra.Command{
	Use:     "formats",
	Aliases: []string{"f"},
	Short:   "List format tags and their handlers",
	Long: `List every format tag a directive may resolve to, the handler that
renders it, and whether it is built in or configured in .stitch.yml.

Examples:
  stitch formats
  stitch formats --config site.yml`,
	Args: cobra.NoArgs,
	RunE: runFormats,
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	b, err := build.New(cfg, build.WithLogger(logger))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tHANDLER\tSOURCE")
	for _, e := range b.Processor().Table() {
		handler, source := e.Tag, "builtin"
		if e.Custom {
			handler, source = cfg.Formats[e.Tag], "config"
			if e.Overrides {
				source = "config (overrides builtin)"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Tag, handler, source)
	}

	return w.Flush()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
