package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/eggybyte-technology/clientgen/internal/configschema"
	"github.com/eggybyte-technology/clientgen/internal/core/log"
	"github.com/eggybyte-technology/clientgen/internal/obsx"
	"github.com/eggybyte-technology/clientgen/internal/pipeline"
	"github.com/eggybyte-technology/clientgen/internal/ui"
)

var (
	generateDryRun     bool
	generatePolicy     string
	generateFailFast   bool
	generateNamespace  string
	generatePython     string
	generateOutputRoot string
	generatePreset     string
	generateMetrics    string
)

// generateCmd represents the generate command.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Extract schemas and generate an SDK per service",
	Long: `Discover every service of the namespace, write its OpenAPI schema and
generate its client SDK.

A service that cannot be imported or whose generator run fails is reported
and skipped; the command still exits 0 unless --fail-fast is set.

Examples:
  clientgen generate
  clientgen generate --dry
  clientgen generate --policy shared --namespace acme_service`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().BoolVar(&generateDryRun, "dry", false, "Report every action without running or writing anything")
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "Alias of --dry")
	generateCmd.Flags().StringVar(&generatePolicy, "policy", "", "Extraction policy: isolated or shared")
	generateCmd.Flags().BoolVar(&generateFailFast, "fail-fast", false, "Abort on the first SDK generation failure")
	generateCmd.Flags().StringVar(&generateNamespace, "namespace", "", "Namespace package holding the services")
	generateCmd.Flags().StringVar(&generatePython, "python", "", "Python interpreter to use")
	generateCmd.Flags().StringVar(&generateOutputRoot, "output-root", "", "Directory schemas and SDKs are written under")
	generateCmd.Flags().StringVar(&generatePreset, "preset", "", "Generator preset")
	generateCmd.Flags().StringVar(&generateMetrics, "metrics-file", "", "Write run metrics in Prometheus text format to this file")
}

// generateOverrides turns the flags that were given into configuration overrides.
func generateOverrides() configschema.Overrides {
	var ov configschema.Overrides
	ov.Namespace = nonEmpty(generateNamespace)
	ov.Python = nonEmpty(generatePython)
	ov.OutputRoot = nonEmpty(generateOutputRoot)
	ov.Policy = nonEmpty(generatePolicy)
	ov.Preset = nonEmpty(generatePreset)
	ov.LogLevel = nonEmpty(logLevel)
	ov.MetricsFile = nonEmpty(generateMetrics)
	if generateFailFast {
		failFast := true
		ov.FailFast = &failFast
	}
	return ov
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// runGenerate executes the generate command.
//
// Parameters:
//   - cmd: Cobra command
//   - args: Command arguments
//
// Returns:
//   - error: Configuration error, interpreter resolution failure or fail_fast abort
func runGenerate(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(generateOverrides())
	if err != nil {
		return err
	}
	ws, err := newWorkspace(config, generateDryRun)
	if err != nil {
		return err
	}

	python, err := ws.resolver.Interpreter()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	ws.logger.Info("generate started",
		log.Str("run_id", runID), log.Str("namespace", config.Namespace),
		log.Str("policy", config.Extraction.Policy), log.Str("python", python))
	ui.Debug("Run %s using %s", runID, python)

	p, err := pipeline.New(pipeline.Options{
		Config:   config,
		Runner:   ws.runner,
		FS:       ws.fs,
		Python:   python,
		Resolver: ws.resolver,
		Logger:   ws.logger,
		RunID:    runID,
	})
	if err != nil {
		return err
	}

	report, runErr := p.Run(cmd.Context())
	if report != nil {
		printReport(report)
		writeMetrics(config.MetricsFile, report, ws)
	}
	return runErr
}

// writeMetrics writes the run metrics file when one is configured. Failures
// are reported and do not change the exit code.
func writeMetrics(path string, report *pipeline.Report, ws *workspace) {
	if path == "" {
		return
	}
	if report.DryRun {
		ui.Dry("Would write run metrics to %s", path)
		return
	}
	m := obsx.NewRunMetrics()
	m.Observe(report)
	if err := m.WriteTextfile(path); err != nil {
		ui.Warning("%v", err)
		ws.logger.Error(err, "metrics not written", log.Str("path", path))
		return
	}
	ui.Debug("Run metrics written to %s", path)
}

// printReport prints the run summary, or the whole report in JSON mode.
func printReport(report *pipeline.Report) {
	if len(report.Results) == 0 && !report.Aborted {
		if ui.IsJSON() {
			ui.Data(report.String(), report)
		}
		return
	}

	ui.Blank()
	if ui.IsJSON() {
		ui.Data(report.String(), report)
		return
	}
	for _, res := range report.Skipped() {
		ui.Warning("%s skipped at %s: %s", res.Service.Module, res.Stage, res.Error)
	}
	switch {
	case report.Aborted:
		ui.Error("Run aborted: %s", report)
	case len(report.Skipped()) > 0:
		ui.Warning("%s", report)
	case report.DryRun:
		ui.Info("Dry run complete: %s", report)
	default:
		ui.Success("%s", report)
	}
}
