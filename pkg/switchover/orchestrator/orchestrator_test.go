package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/phases"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/state"
)

// withStubExecutors replaces the package's executor table for the
// duration of one test, restoring the original afterward. Stubbing at
// this seam keeps the orchestrator test free of hub.Gateway fakes: the
// phase modules have their own tests.
func withStubExecutors(t *testing.T, stub map[state.Phase]phaseExecutor) {
	t.Helper()
	original := executors
	executors = stub
	t.Cleanup(func() { executors = original })
}

func newTestEngine(t *testing.T) *state.Engine {
	t.Helper()
	dir := t.TempDir()
	eng, err := state.Open(context.Background(), state.Options{
		StateDir:    dir,
		Primary:     "primary-ctx",
		Secondary:   "secondary-ctx",
		ToolVersion: "test",
		Logger:      logr.Discard(),
	})
	if err != nil {
		t.Fatalf("state.Open: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close(context.Background()) })
	return eng
}

func TestRunDrivesEveryPhaseToCompleted(t *testing.T) {
	eng := newTestEngine(t)
	var ran []state.Phase

	withStubExecutors(t, map[state.Phase]phaseExecutor{
		state.PhasePreflight: func(ctx context.Context, d phases.Dependencies) error {
			ran = append(ran, state.PhasePreflight)
			return nil
		},
		state.PhasePrimaryPrep: func(ctx context.Context, d phases.Dependencies) error {
			ran = append(ran, state.PhasePrimaryPrep)
			return nil
		},
		state.PhaseActivation: func(ctx context.Context, d phases.Dependencies) error {
			ran = append(ran, state.PhaseActivation)
			return nil
		},
		state.PhasePostActivation: func(ctx context.Context, d phases.Dependencies) error {
			ran = append(ran, state.PhasePostActivation)
			return nil
		},
		state.PhaseFinalization: func(ctx context.Context, d phases.Dependencies) error {
			ran = append(ran, state.PhaseFinalization)
			return nil
		},
	})

	o := &Orchestrator{State: eng, Logger: logr.Discard()}
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if eng.CurrentPhase() != state.PhaseCompleted {
		t.Fatalf("expected COMPLETED, got %s", eng.CurrentPhase())
	}

	want := []state.Phase{state.PhasePreflight, state.PhasePrimaryPrep, state.PhaseActivation, state.PhasePostActivation, state.PhaseFinalization}
	if len(ran) != len(want) {
		t.Fatalf("expected phases %v, got %v", want, ran)
	}
	for i, p := range want {
		if ran[i] != p {
			t.Errorf("phase %d: expected %s, got %s", i, p, ran[i])
		}
	}
}

func TestRunStopsAndRecordsErrorOnFailure(t *testing.T) {
	eng := newTestEngine(t)
	boom := errors.New("activation blew up")

	withStubExecutors(t, map[state.Phase]phaseExecutor{
		state.PhasePreflight:   func(ctx context.Context, d phases.Dependencies) error { return nil },
		state.PhasePrimaryPrep: func(ctx context.Context, d phases.Dependencies) error { return nil },
		state.PhaseActivation:  func(ctx context.Context, d phases.Dependencies) error { return boom },
	})

	o := &Orchestrator{State: eng, Logger: logr.Discard()}
	err := o.Run(context.Background())
	if !errors.Is(err, boom) && err.Error() != boom.Error() {
		t.Fatalf("expected the activation error to propagate, got %v", err)
	}
	if eng.CurrentPhase() != state.PhaseFailed {
		t.Fatalf("expected FAILED, got %s", eng.CurrentPhase())
	}
	lastErrored, ok := eng.LastErroredPhase()
	if !ok || lastErrored != state.PhaseActivation {
		t.Fatalf("expected last errored phase ACTIVATION, got %s (ok=%v)", lastErrored, ok)
	}
}

func TestRunResumesFromFailedPhase(t *testing.T) {
	eng := newTestEngine(t)

	withStubExecutors(t, map[state.Phase]phaseExecutor{
		state.PhasePreflight:   func(ctx context.Context, d phases.Dependencies) error { return nil },
		state.PhasePrimaryPrep: func(ctx context.Context, d phases.Dependencies) error { return nil },
		state.PhaseActivation:  func(ctx context.Context, d phases.Dependencies) error { return errors.New("transient") },
	})
	o := &Orchestrator{State: eng, Logger: logr.Discard()}
	if err := o.Run(context.Background()); err == nil {
		t.Fatal("expected first run to fail")
	}
	if eng.CurrentPhase() != state.PhaseFailed {
		t.Fatalf("expected FAILED after first run, got %s", eng.CurrentPhase())
	}

	var activationRanAgain bool
	withStubExecutors(t, map[state.Phase]phaseExecutor{
		state.PhasePreflight:   func(ctx context.Context, d phases.Dependencies) error { return nil },
		state.PhasePrimaryPrep: func(ctx context.Context, d phases.Dependencies) error { return nil },
		state.PhaseActivation: func(ctx context.Context, d phases.Dependencies) error {
			activationRanAgain = true
			return nil
		},
		state.PhasePostActivation: func(ctx context.Context, d phases.Dependencies) error { return nil },
		state.PhaseFinalization:   func(ctx context.Context, d phases.Dependencies) error { return nil },
	})
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("resumed Run: %v", err)
	}
	if !activationRanAgain {
		t.Error("expected ACTIVATION to run again on resume")
	}
	if eng.CurrentPhase() != state.PhaseCompleted {
		t.Fatalf("expected COMPLETED after resume, got %s", eng.CurrentPhase())
	}
}

func TestRunValidateOnlyStopsAfterPreflight(t *testing.T) {
	eng := newTestEngine(t)
	var ranPrimaryPrep bool

	withStubExecutors(t, map[state.Phase]phaseExecutor{
		state.PhasePreflight: func(ctx context.Context, d phases.Dependencies) error { return nil },
		state.PhasePrimaryPrep: func(ctx context.Context, d phases.Dependencies) error {
			ranPrimaryPrep = true
			return nil
		},
	})

	o := &Orchestrator{State: eng, ValidateOnly: true, Logger: logr.Discard()}
	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ranPrimaryPrep {
		t.Error("validate-only must not advance into PRIMARY_PREP")
	}
	if eng.CurrentPhase() != state.PhasePreflight {
		t.Fatalf("expected to remain at PREFLIGHT, got %s", eng.CurrentPhase())
	}
}
