package main

import (
	"github.com/spf13/cobra"

	"github.com/eggybyte-technology/clientgen/internal/configschema"
	"github.com/eggybyte-technology/clientgen/internal/layout"
	"github.com/eggybyte-technology/clientgen/internal/pipeline"
	"github.com/eggybyte-technology/clientgen/internal/ui"
)

var listNamespace string

// listCmd represents the list command.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the services that would be generated",
	Long: `Run service discovery only and print one line per service.

Nothing is imported: services are found by walking the package roots
(search_paths, the virtualenv's site-packages, then the interpreter's
sys.path).

Example:
  clientgen list --json`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listNamespace, "namespace", "", "Namespace package holding the services")
}

// serviceLine is the JSON form of one listed service.
type serviceLine struct {
	Name        string `json:"name"`
	Module      string `json:"module"`
	ServiceName string `json:"service_name"`
	ClientName  string `json:"client_name"`
	Dir         string `json:"dir"`
}

func runList(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(configschema.Overrides{Namespace: nonEmpty(listNamespace)})
	if err != nil {
		return err
	}
	ws, err := newWorkspace(config, false)
	if err != nil {
		return err
	}

	// An interpreter is only needed for the sys.path fallback.
	python, err := ws.resolver.Interpreter()
	if err != nil {
		ui.Debug("No interpreter: %v", err)
		python = ""
	}

	p, err := pipeline.New(pipeline.Options{
		Config:   config,
		Runner:   ws.runner,
		FS:       ws.fs,
		Python:   python,
		Resolver: ws.resolver,
		Logger:   ws.logger,
	})
	if err != nil {
		return err
	}
	services, err := p.Discover(cmd.Context())
	if err != nil {
		return err
	}

	lines := make([]serviceLine, 0, len(services))
	for _, svc := range services {
		names := layout.NamesFor(config.Namespace, svc.Name, config.EntryModule)
		lines = append(lines, serviceLine{
			Name:        svc.Name,
			Module:      svc.Module,
			ServiceName: names.ServiceName,
			ClientName:  names.ClientName,
			Dir:         svc.Dir,
		})
	}

	if ui.IsJSON() {
		ui.Data("services", lines)
		return nil
	}
	if len(lines) == 0 {
		ui.Service("", "❗", "No FastAPI services with `%s` found in the '%s.' namespace", config.AppAttribute, config.Namespace)
		return nil
	}
	ui.Info("%d service(s) in %s:", len(lines), config.Namespace)
	for _, l := range lines {
		ui.Service(l.ServiceName, "📦", "%s → %s (%s)", l.Module, l.ClientName, l.Dir)
	}
	return nil
}
