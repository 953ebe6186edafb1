// Package cmd implements the catalogcrawl command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vivbliss/catalogcrawl/cmd/crawl"
	"github.com/vivbliss/catalogcrawl/cmd/progress"
	"github.com/vivbliss/catalogcrawl/cmd/schedule"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "catalogcrawl",
	Short: "A catalog crawler with directory-priority scheduling",
	Long: `catalogcrawl walks a hierarchical product catalog and finishes one
directory at a time: once products are discovered in a directory, that
directory is drained before the crawl moves on to the next one.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("catalogcrawl version %s\n", version)
		},
	})

	rootCmd.AddCommand(crawl.Command())
	rootCmd.AddCommand(schedule.Command())
	rootCmd.AddCommand(progress.Command())
}
