// Package main provides the clientgen CLI tool entry point.
//
// Overview:
//   - Responsibility: CLI command parsing and execution
//   - Key Types: Cobra command structure
//   - Concurrency Model: Single-threaded CLI execution; SIGINT/SIGTERM cancel the root context
//   - Error Semantics: Exit code 1 with a console message for any returned error
//   - Performance Notes: Fast startup, minimal initialization
//
// Usage:
//
//	clientgen [command] [flags]
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eggybyte-technology/clientgen/internal/configschema"
	"github.com/eggybyte-technology/clientgen/internal/ui"
)

var (
	configPath string
	verbose    bool
	jsonOutput bool
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "clientgen",
	Short: "Generate Python SDKs for installed FastAPI services",
	Long: `clientgen generates a Python client SDK for every FastAPI service
installed under a namespace package (ab_service by default).

For each <namespace>.<service>.main module exposing an "app" attribute it:
- extracts the OpenAPI schema in a Python interpreter
- runs the SDK generator (openapi-python-client by default)
- migrates the generated project's lock file with migrate-to-uv

Settings are read from clientgen.yaml, CLIENTGEN_* environment variables
and command-line flags, in increasing order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.SetVerbose(verbose)
		ui.SetJSONOutput(jsonOutput)
	},
}

// Execute runs the root command with ctx and returns the process exit code.
//
// Parameters:
//   - ctx: Root context, cancelled on SIGINT/SIGTERM
//
// Returns:
//   - int: 0 on success, 1 when the command returned an error
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.Error("Command failed: %v", err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", configschema.DefaultPath, "Path to the configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Diagnostic log level (debug, info, warn, error)")
}

// main is the entry point for the clientgen CLI tool.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Execute(ctx)
	stop()
	os.Exit(code)
}
