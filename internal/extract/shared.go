package extract

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/core/log"
	"github.com/eggybyte-technology/clientgen/internal/toolrunner"
	"github.com/eggybyte-technology/clientgen/internal/ui"
)

// workerJob is one request line sent to the worker.
type workerJob struct {
	Module string `json:"module"`
	Attr   string `json:"attr"`
	Output string `json:"output"`
}

// workerReply is one response line from the worker.
type workerReply struct {
	OK        bool   `json:"ok"`
	Code      int    `json:"code"`
	Error     string `json:"error,omitempty"`
	Traceback string `json:"traceback,omitempty"`
}

// Shared imports every service into one long-lived interpreter. Module-level
// state of one service is visible to the next. The worker is started lazily
// and restarted if it dies.
type Shared struct {
	opts    Options
	session *toolrunner.Session
	starts  int
}

// Starts returns how many worker processes have been launched.
func (e *Shared) Starts() int {
	return e.starts
}

// Extract implements Extractor.
func (e *Shared) Extract(ctx context.Context, job Job) error {
	if e.opts.Runner.DryRun() {
		ui.ServiceDry(job.Label, "Would extract %s.%s in the shared interpreter → %s", job.Module, job.Attr, job.Output)
		return nil
	}

	if err := ensureParent(job.Output); err != nil {
		return err
	}
	if err := e.ensureWorker(ctx); err != nil {
		return errors.Wrapf(errors.CodeOf(err), "extract.shared", err,
			"cannot start worker for %s (output %s)", job.Module, job.Output)
	}

	line, err := json.Marshal(workerJob{Module: job.Module, Attr: job.Attr, Output: job.Output})
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "extract.shared", err)
	}

	stderrBefore := len(e.session.Stderr())

	jobCtx := ctx
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	if err := e.session.Send(line); err != nil {
		e.drop()
		return errors.Wrapf(errors.CodeOf(err), "extract.shared", err,
			"schema extraction for %s (output %s) failed", job.Module, job.Output)
	}

	raw, err := e.session.ReadLine(jobCtx)
	if err != nil {
		e.drop()
		return errors.Wrapf(errors.CodeOf(err), "extract.shared", err,
			"schema extraction for %s (output %s) failed", job.Module, job.Output)
	}

	var reply workerReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		e.drop()
		return errors.Wrapf(errors.CodeInternal, "extract.shared", err,
			"unreadable worker reply for %s: %q", job.Module, string(raw))
	}
	if reply.OK {
		return nil
	}

	stderr := e.session.Stderr()[stderrBefore:]
	e.opts.Logger.Debug("shared extraction failed",
		log.Str("module", job.Module), log.Int("code", reply.Code))

	return errors.Wrapf(codeForExit(reply.Code), "extract.shared",
		fmt.Errorf("%s\n--- traceback ---\n%s--- stderr ---\n%s", reply.Error, reply.Traceback, stderr),
		"schema extraction for %s (output %s) failed", job.Module, job.Output)
}

func (e *Shared) ensureWorker(ctx context.Context) error {
	if e.session != nil {
		return nil
	}
	s, err := e.opts.Runner.Start(ctx, toolrunner.Command{
		Name: e.opts.Python,
		Args: []string{"-c", WorkerProgram()},
		Env:  e.opts.env(),
	})
	if err != nil {
		return err
	}
	e.session = s
	e.starts++
	e.opts.Logger.Debug("shared worker started", log.Int("pid", s.Pid()), log.Int("starts", e.starts))
	return nil
}

func (e *Shared) drop() {
	if e.session != nil {
		e.session.Kill()
		e.session = nil
	}
}

// Close stops the worker.
func (e *Shared) Close() error {
	if e.session == nil {
		return nil
	}
	err := e.session.Close()
	e.session = nil
	return err
}
