// Package main is the asseto command line: it runs a batch for a project file
// and writes the export archive to disk without starting the HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "asseto",
	Short: "Generate and package website image assets",
	Long: `asseto generates the images of a website project section by section and
packages the completed ones into a zip archive with one folder per section.

Projects are described in YAML; "asseto project init" prints a starter file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional
		_ = godotenv.Load()
		return nil
	},
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "only log warnings and errors")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
