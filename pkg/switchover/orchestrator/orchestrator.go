// Package orchestrator implements the phase-selection loop (spec.md §2,
// §4.1): a single-threaded walk of the phase state machine from
// whatever CurrentPhase the state engine reports through COMPLETED,
// with resume-from-FAILED and --force re-execution support.
//
// Grounded on github.com/openshift/hypershift's cmd/dr/backup and
// cmd/dr/restore.go top-level command loops (sequential, named steps,
// one state document) and cmd/infra/aws/destroy.go's prune-and-retry
// loop for the idea of re-entering a partially completed pipeline.
package orchestrator

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/phases"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/state"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/xerrors"
)

// phaseExecutor runs one phase to completion against shared
// Dependencies, returning an error that should set the run FAILED.
type phaseExecutor func(ctx context.Context, d phases.Dependencies) error

var executors = map[state.Phase]phaseExecutor{
	state.PhasePreflight:      phases.RunPreflight,
	state.PhasePrimaryPrep:    phases.RunPrimaryPrep,
	state.PhaseActivation:     phases.RunActivation,
	state.PhasePostActivation: phases.RunPostActivation,
	state.PhaseFinalization:   phases.RunFinalization,
}

// Orchestrator drives a single switchover run end to end.
type Orchestrator struct {
	State *state.Engine
	Deps  phases.Dependencies

	// Force re-executes the steps of the phase being resumed, clearing
	// their completed-step records first (spec.md §6 `--force`).
	Force bool

	ValidateOnly bool

	Logger logr.Logger
}

// Run advances the state machine from its current phase through
// COMPLETED, or until a phase fails. It implements spec.md §4.1's
// resume logic: a CurrentPhase of FAILED is rewound to the phase that
// last recorded an error before resuming forward.
func (o *Orchestrator) Run(ctx context.Context) error {
	current := o.State.CurrentPhase()

	if current == state.PhaseFailed {
		lastErrored, ok := o.State.LastErroredPhase()
		if !ok {
			return xerrors.Fatal(nil, "state is FAILED but no error record identifies the failing phase")
		}
		if o.Force {
			o.State.ClearStepsForPhase(phases.StepIDsForPhase(lastErrored))
		}
		if err := o.State.TransitionPhase(ctx, lastErrored); err != nil {
			return err
		}
		current = lastErrored
	}

	for current != state.PhaseCompleted {
		if current == state.PhaseInit {
			next, _ := state.Next(current)
			if err := o.State.TransitionPhase(ctx, next); err != nil {
				return err
			}
			current = next
			continue
		}

		if o.ValidateOnly && current != state.PhasePreflight {
			// spec.md §9 open question: validate-only does not advance
			// past PREFLIGHT. Phase is left exactly where preflight put
			// it; see DESIGN.md for the full rationale.
			return nil
		}

		exec, ok := executors[current]
		if !ok {
			return xerrors.Fatal(nil, "no executor registered for phase %s", current)
		}

		o.Logger.Info("entering phase", "phase", current)
		if err := exec(ctx, o.Deps); err != nil {
			if addErr := o.State.AddError(ctx, current, err.Error()); addErr != nil {
				o.Logger.Error(addErr, "failed to record phase error in state")
			}
			return err
		}

		if o.ValidateOnly {
			return nil
		}

		next, ok := state.Next(current)
		if !ok {
			return xerrors.Fatal(nil, "phase %s has no successor", current)
		}
		if err := o.State.TransitionPhase(ctx, next); err != nil {
			return err
		}
		current = next
	}

	return nil
}

// RunDecommission invokes the separable decommission flow directly,
// bypassing the phase-selection loop (spec.md §4.5.5: "invoked
// explicitly").
func (o *Orchestrator) RunDecommission(ctx context.Context) error {
	if o.Force {
		o.State.ClearStepsForPhase(phases.DecommissionStepIDs())
	}
	if err := phases.RunDecommission(ctx, o.Deps); err != nil {
		if addErr := o.State.AddError(ctx, o.State.CurrentPhase(), err.Error()); addErr != nil {
			o.Logger.Error(addErr, "failed to record decommission error in state")
		}
		return err
	}
	return nil
}
