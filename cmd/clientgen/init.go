package main

import (
	"github.com/spf13/cobra"

	"github.com/eggybyte-technology/clientgen/internal/configschema"
	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/projectfs"
	"github.com/eggybyte-technology/clientgen/internal/ui"
	"github.com/eggybyte-technology/clientgen/internal/version"
)

// initCmd represents the init command.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default clientgen.yaml",
	Long: `Write a configuration file with every default spelled out.

An existing file is left untouched unless --force is given.

Example:
  clientgen init
  clientgen init --config tools/clientgen.yaml --force`,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration file")
}

// configTemplate prefixes the default configuration with a header.
const configTemplate = `# clientgen configuration, written by {{.Version}}.
# CLIENTGEN_* environment variables and command-line flags override these values.
{{.Body}}`

// runInit executes the init command.
//
// Parameters:
//   - cmd: Cobra command
//   - args: Command arguments
//
// Returns:
//   - error: Marshal or write failure
func runInit(cmd *cobra.Command, args []string) error {
	body, err := configschema.Default().Marshal()
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "cli.init", err)
	}

	fs := projectfs.New(".")
	fs.SetVerbose(verbose)

	exists, err := fs.FileExists(configPath)
	if err != nil {
		return err
	}
	if exists && !initForce {
		ui.Warning("%s already exists, use --force to overwrite", configPath)
		return nil
	}

	data := struct {
		Version string
		Body    string
	}{Version: version.GetVersionString(), Body: string(body)}
	if err := fs.WriteTemplate(configPath, configTemplate, data, 0o644); err != nil {
		return err
	}
	ui.Success("Wrote %s", configPath)
	return nil
}
