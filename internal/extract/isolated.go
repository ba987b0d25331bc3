package extract

import (
	"context"

	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/core/log"
	"github.com/eggybyte-technology/clientgen/internal/toolrunner"
)

// Isolated runs a fresh interpreter per job. The job travels as argv; the
// program text never changes.
type Isolated struct {
	opts Options
}

// Extract implements Extractor.
func (e *Isolated) Extract(ctx context.Context, job Job) error {
	if !e.opts.Runner.DryRun() {
		if err := ensureParent(job.Output); err != nil {
			return err
		}
	}

	res, err := e.opts.Runner.Run(ctx, toolrunner.Command{
		Name:    e.opts.Python,
		Args:    []string{"-c", IsolatedProgram(), job.Module, job.Attr, job.Output},
		Env:     e.opts.env(),
		Timeout: e.opts.Timeout,
		Label:   job.Label,
	})
	if err == nil {
		return nil
	}

	code := errors.CodeOf(err)
	if code != errors.CodeDeadlineExceeded && code != errors.CodeUnavailable && res != nil {
		code = codeForExit(res.ExitCode)
	}

	e.opts.Logger.Debug("isolated extraction failed",
		log.Str("module", job.Module), log.Str("output", job.Output), log.Str("code", string(code)))

	return errors.Wrapf(code, "extract.isolated", err,
		"schema extraction for %s (output %s) failed", job.Module, job.Output)
}

// Close implements Extractor. Isolated holds no processes.
func (e *Isolated) Close() error {
	return nil
}
