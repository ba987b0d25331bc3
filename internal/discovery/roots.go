package discovery

import (
	"context"

	"github.com/eggybyte-technology/clientgen/internal/core/log"
	"github.com/eggybyte-technology/clientgen/internal/pyenv"
	"github.com/eggybyte-technology/clientgen/internal/toolrunner"
	"github.com/eggybyte-technology/clientgen/internal/ui"
)

// RootSource supplies package roots.
type RootSource struct {
	SearchPaths []string
	Resolver    *pyenv.Resolver
	Runner      *toolrunner.Runner
	Python      string
	Logger      log.Logger
}

// Roots returns the package roots in search order: configured search paths,
// then virtualenv site-packages. Only when both are empty the interpreter's
// sys.path is queried; a dry run reports the query instead.
func (s RootSource) Roots(ctx context.Context) ([]string, error) {
	logger := s.Logger
	if logger == nil {
		logger = log.Nop()
	}

	roots := append([]string(nil), s.SearchPaths...)
	if s.Resolver != nil {
		roots = append(roots, s.Resolver.SitePackages()...)
	}
	if len(ExpandRoots(roots)) > 0 || s.Runner == nil || s.Python == "" {
		return roots, nil
	}
	if s.Runner.DryRun() {
		ui.Dry("Would query %s for sys.path; no search_paths or virtualenv to discover services from", s.Python)
		return roots, nil
	}

	logger.Debug("no configured package roots, querying interpreter", log.Str("python", s.Python))
	return pyenv.QuerySysPath(ctx, s.Runner, s.Python)
}
