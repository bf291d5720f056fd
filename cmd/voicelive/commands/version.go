package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stylehub-project/news-sub000/cmd/voicelive/internal/build"
	"github.com/stylehub-project/news-sub000/pkg/cli"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		if structured() {
			return printOutput(build.Get(), cli.FormatYAML)
		}
		fmt.Println(build.String())
		if verbose {
			if cfg, err := getConfig(); err == nil {
				fmt.Printf("  config: %s\n", cfg.Path())
			} else {
				fmt.Printf("  config: (unavailable: %v)\n", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
