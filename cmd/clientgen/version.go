package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eggybyte-technology/clientgen/internal/version"
)

// versionCmd represents the version command.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show clientgen version information",
	Long: `Display version information for the clientgen CLI tool.

This command shows:
  • CLI version, git commit hash, and build timestamp
  • Go runtime version`,
	Run: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	rootCmd.Version = version.GetVersionString()
	rootCmd.SetVersionTemplate(`{{.Version}}
`)
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Fprintln(cmd.OutOrStdout(), version.GetFullVersionInfo())
}
