package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eggybyte-technology/clientgen/internal/core/errors"
	"github.com/eggybyte-technology/clientgen/internal/discovery"
	"github.com/eggybyte-technology/clientgen/internal/layout"
	"github.com/eggybyte-technology/clientgen/internal/migrate"
	"github.com/eggybyte-technology/clientgen/internal/schema"
)

// State is a service's position in the pipeline.
type State string

const (
	StateDiscovered      State = "discovered"
	StateSchemaExtracted State = "schema_extracted"
	StateSDKGenerated    State = "sdk_generated"
	StateMigrated        State = "migrated"
	StateSkipped         State = "skipped"
	// StatePlanned ends a dry run: generation was reported, not performed.
	StatePlanned State = "planned"
)

// Stage names the step a skipped service failed in.
type Stage string

const (
	StageExtract  Stage = "extract"
	StageInspect  Stage = "inspect"
	StageGenerate Stage = "generate"
)

// transitions lists the states reachable from each state. Migrated, Skipped
// and Planned are terminal.
var transitions = map[State][]State{
	StateDiscovered:      {StateSchemaExtracted, StateSkipped},
	StateSchemaExtracted: {StateSDKGenerated, StateSkipped, StatePlanned},
	StateSDKGenerated:    {StateMigrated},
}

// CanTransition reports whether to is reachable from s in one step.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// ServiceResult is the outcome for one service.
type ServiceResult struct {
	Service    discovery.Service `json:"service"`
	Names      layout.Names      `json:"-"`
	State      State             `json:"state"`
	Stage      Stage             `json:"stage,omitempty"`
	Error      string            `json:"error,omitempty"`
	SchemaPath string            `json:"schema_path,omitempty"`
	OutputDir  string            `json:"output_dir,omitempty"`
	Summary    *schema.Summary   `json:"summary,omitempty"`
	Migration  migrate.Status    `json:"migration,omitempty"`
	Duration   time.Duration     `json:"duration"`

	err error
}

// Err returns the failure that skipped the service.
func (r *ServiceResult) Err() error {
	return r.err
}

// advance moves the result to the next state.
func (r *ServiceResult) advance(to State) error {
	if !r.State.CanTransition(to) {
		return errors.Newf(errors.CodeInternal, "invalid transition %s -> %s for %s", r.State, to, r.Service.Module)
	}
	r.State = to
	return nil
}

// skip marks the result Skipped because stage failed with err.
func (r *ServiceResult) skip(stage Stage, err error) error {
	if advanceErr := r.advance(StateSkipped); advanceErr != nil {
		return advanceErr
	}
	r.Stage = stage
	r.err = err
	r.Error = err.Error()
	return nil
}

// Report is the outcome of one run.
type Report struct {
	RunID     string           `json:"run_id"`
	Namespace string           `json:"namespace"`
	Policy    string           `json:"policy"`
	DryRun    bool             `json:"dry_run"`
	Started   time.Time        `json:"started"`
	Duration  time.Duration    `json:"duration"`
	Aborted   bool             `json:"aborted,omitempty"`
	Results   []*ServiceResult `json:"services"`
}

// Count returns the number of services in state.
func (r *Report) Count(state State) int {
	n := 0
	for _, res := range r.Results {
		if res.State == state {
			n++
		}
	}
	return n
}

// Counts returns the number of services per state.
func (r *Report) Counts() map[State]int {
	counts := map[State]int{}
	for _, res := range r.Results {
		counts[res.State]++
	}
	return counts
}

// Generated returns the number of services with a generated SDK, migrated or not.
func (r *Report) Generated() int {
	return r.Count(StateSDKGenerated) + r.Count(StateMigrated)
}

// Skipped returns the skipped results.
func (r *Report) Skipped() []*ServiceResult {
	var skipped []*ServiceResult
	for _, res := range r.Results {
		if res.State == StateSkipped {
			skipped = append(skipped, res)
		}
	}
	return skipped
}

// Lookup returns the result for the service directory name.
func (r *Report) Lookup(name string) (*ServiceResult, bool) {
	for _, res := range r.Results {
		if res.Service.Name == name {
			return res, true
		}
	}
	return nil, false
}

// String renders a one-line summary such as
// "3 services: 2 generated (1 migrated), 1 skipped" or, for a dry run,
// "2 services: 2 planned".
func (r *Report) String() string {
	if len(r.Results) == 0 {
		return "no services found"
	}
	var parts []string
	if n := r.Generated(); n > 0 {
		generated := fmt.Sprintf("%d generated", n)
		if m := r.Count(StateMigrated); m > 0 {
			generated += fmt.Sprintf(" (%d migrated)", m)
		}
		parts = append(parts, generated)
	}

	// States other than the success path, in a stable order.
	var rest []string
	for state, n := range r.Counts() {
		switch state {
		case StateSDKGenerated, StateMigrated:
			continue
		}
		rest = append(rest, fmt.Sprintf("%d %s", n, strings.ReplaceAll(string(state), "_", " ")))
	}
	sort.Strings(rest)
	parts = append(parts, rest...)

	noun := "services"
	if len(r.Results) == 1 {
		noun = "service"
	}
	return fmt.Sprintf("%d %s: %s", len(r.Results), noun, strings.Join(parts, ", "))
}
