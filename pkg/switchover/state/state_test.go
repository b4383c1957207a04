package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func openTestEngine(t *testing.T, dir, primary, secondary string) *Engine {
	t.Helper()
	e, err := Open(context.Background(), Options{
		StateDir:    dir,
		Primary:     primary,
		Secondary:   secondary,
		ToolVersion: "test",
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return e
}

func TestOpenFreshStartsAtInit(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir, "mgmt1", "mgmt2")
	defer e.Close(context.Background())

	if e.CurrentPhase() != PhaseInit {
		t.Errorf("expected INIT, got %s", e.CurrentPhase())
	}
}

func TestStepCompletionIsIdempotentAndPersists(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir, "mgmt1", "mgmt2")

	if e.IsStepCompleted("pause_backup_schedule") {
		t.Fatal("step should not be completed yet")
	}
	e.MarkStepCompleted("pause_backup_schedule")
	e.MarkStepCompleted("pause_backup_schedule") // idempotent
	if err := e.FlushState(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	e2 := openTestEngine(t, dir, "mgmt1", "mgmt2")
	defer e2.Close(context.Background())
	if !e2.IsStepCompleted("pause_backup_schedule") {
		t.Error("expected step to survive reopen")
	}
	if len(e2.CompletedSteps()) != 1 {
		t.Errorf("expected exactly one completed step, got %d", len(e2.CompletedSteps()))
	}
}

func TestContextMismatchResetsState(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir, "mgmt1", "mgmt2")
	e.MarkStepCompleted("disable_auto_import")
	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	e2 := openTestEngine(t, dir, "mgmt3", "mgmt2")
	defer e2.Close(context.Background())
	if e2.IsStepCompleted("disable_auto_import") {
		t.Error("mismatched context should have reset state")
	}
	if e2.CurrentPhase() != PhaseInit {
		t.Errorf("expected reset to INIT, got %s", e2.CurrentPhase())
	}
}

func TestMatchingContextResumes(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir, "mgmt1", "mgmt2")
	if err := e.TransitionPhase(context.Background(), PhasePreflight); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := e.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	e2 := openTestEngine(t, dir, "mgmt1", "mgmt2")
	defer e2.Close(context.Background())
	if e2.CurrentPhase() != PhasePreflight {
		t.Errorf("expected resumed phase PREFLIGHT, got %s", e2.CurrentPhase())
	}
}

func TestFlushStateIsAtomic(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir, "mgmt1", "mgmt2")
	defer e.Close(context.Background())

	e.MarkStepCompleted("step-a")
	if err := e.FlushState(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	path := filepath.Join(dir, fileName("mgmt1", "mgmt2"))
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected state file to exist: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("expected .tmp file to be renamed away, stat err: %v", err)
	}
}

func TestConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir, "mgmt1", "mgmt2")
	defer e.Close(context.Background())

	type backupScheduleSnapshot struct {
		Paused bool   `json:"paused"`
		Name   string `json:"name"`
	}
	in := backupScheduleSnapshot{Paused: true, Name: "acm-backup-schedule"}
	if err := e.SetConfig("primary_backup_schedule", in); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}

	var out backupScheduleSnapshot
	found, err := e.GetConfig("primary_backup_schedule", &out)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if !found || out != in {
		t.Errorf("expected round-tripped config %+v, got found=%v %+v", in, found, out)
	}
}

func TestAddErrorSetsFailedPhase(t *testing.T) {
	dir := t.TempDir()
	e := openTestEngine(t, dir, "mgmt1", "mgmt2")
	defer e.Close(context.Background())

	if err := e.AddError(context.Background(), PhaseActivation, "restore FinishedWithErrors"); err != nil {
		t.Fatalf("AddError: %v", err)
	}
	if e.CurrentPhase() != PhaseFailed {
		t.Errorf("expected FAILED, got %s", e.CurrentPhase())
	}
	last, ok := e.LastErroredPhase()
	if !ok || last != PhaseActivation {
		t.Errorf("expected last errored phase ACTIVATION, got %s (ok=%v)", last, ok)
	}
}

func TestConcurrentOpenSecondWaiterFailsFast(t *testing.T) {
	dir := t.TempDir()
	e1 := openTestEngine(t, dir, "mgmt1", "mgmt2")
	defer e1.Close(context.Background())

	_, err := Open(context.Background(), Options{
		StateDir:    dir,
		Primary:     "mgmt1",
		Secondary:   "mgmt2",
		ToolVersion: "test",
		LockWait:    50_000_000, // 50ms, in time.Duration units (ns)
	})
	if err == nil {
		t.Error("expected second concurrent Open to fail to acquire the lock")
	}
}
