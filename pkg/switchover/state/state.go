// Package state implements the durable, crash-safe, lock-serialized phase
// and step log described in spec.md §4.1 (C3). It is the idempotence
// substrate every phase module builds on.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/xerrors"
)

// Phase is the total-ordered phase enum from spec.md §3, plus the
// orthogonal terminal value Failed.
type Phase string

const (
	PhaseInit           Phase = "INIT"
	PhasePreflight      Phase = "PREFLIGHT"
	PhasePrimaryPrep    Phase = "PRIMARY_PREP"
	PhaseActivation     Phase = "ACTIVATION"
	PhasePostActivation Phase = "POST_ACTIVATION"
	PhaseFinalization   Phase = "FINALIZATION"
	PhaseCompleted      Phase = "COMPLETED"
	PhaseFailed         Phase = "FAILED"
)

// order is the success-path total order. Index determines "advances
// only when every step of the current phase is durably complete".
var order = []Phase{PhaseInit, PhasePreflight, PhasePrimaryPrep, PhaseActivation, PhasePostActivation, PhaseFinalization, PhaseCompleted}

func indexOf(p Phase) int {
	for i, q := range order {
		if q == p {
			return i
		}
	}
	return -1
}

// Next returns the phase that follows p on the success path, or false if
// p is terminal (Completed, Failed, or unrecognized).
func Next(p Phase) (Phase, bool) {
	i := indexOf(p)
	if i < 0 || i+1 >= len(order) {
		return "", false
	}
	return order[i+1], true
}

const schemaVersion = 1

// StepRecord is a single (name, completed_at) pair, spec.md §3.
type StepRecord struct {
	Name        string    `json:"name"`
	CompletedAt time.Time `json:"timestamp"`
}

// ErrorRecord is a single append-only error log entry, spec.md §3.
type ErrorRecord struct {
	Phase     Phase     `json:"phase"`
	Message   string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// document is the on-disk JSON schema, spec.md §6.
type document struct {
	SchemaVersion  int                        `json:"schema_version"`
	ToolVersion    string                     `json:"tool_version"`
	CreatedAt      time.Time                  `json:"created_at"`
	LastUpdated    time.Time                  `json:"last_updated"`
	CurrentPhase   Phase                      `json:"current_phase"`
	Primary        string                     `json:"primary"`
	Secondary      string                     `json:"secondary"`
	CompletedSteps []StepRecord               `json:"completed_steps"`
	Config         map[string]json.RawMessage `json:"config"`
	Errors         []ErrorRecord              `json:"errors"`
}

// Engine owns the on-disk run-state document for one (primary, secondary)
// pair. All mutation methods are safe for single-process concurrent
// callers; cross-process serialization is provided by the advisory lock
// on the sibling .lock file (see lock.go).
type Engine struct {
	mu       sync.Mutex
	path     string
	lockPath string
	tmpPath  string
	doc      document
	dirty    bool
	logger   logr.Logger
	locker   fileLock
}

// Options configures Open.
type Options struct {
	// StateDir is the directory the state file lives in. Resolution
	// order (flag > env var > default) is the caller's responsibility;
	// see cmd/switchover for ACM_SWITCHOVER_STATE_DIR handling.
	StateDir  string
	Primary   string
	Secondary string
	// ToolVersion is recorded on every write for diagnostics.
	ToolVersion string
	Logger      logr.Logger
	// LockWait bounds how long Open blocks trying to acquire the
	// advisory lock before failing fast (spec.md §5 shared-resource
	// policy).
	LockWait time.Duration
}

func fileName(primary, secondary string) string {
	return fmt.Sprintf("switchover-%s__%s.json", primary, secondary)
}

// Open adopts or resets the state file for (primary, secondary) per the
// context-adoption rules in spec.md §4.1, acquiring the advisory lock
// for the engine's lifetime.
func Open(ctx context.Context, opts Options) (*Engine, error) {
	if opts.Primary == "" || opts.Secondary == "" {
		return nil, xerrors.Validation("primary and secondary contexts must both be non-empty")
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 30 * time.Second
	}
	if err := os.MkdirAll(opts.StateDir, 0o755); err != nil {
		return nil, xerrors.Fatal(err, "create state directory %s", opts.StateDir)
	}

	base := fileName(opts.Primary, opts.Secondary)
	path := filepath.Join(opts.StateDir, base)

	e := &Engine{
		path:     path,
		lockPath: path + ".lock",
		tmpPath:  path + ".tmp",
		logger:   opts.Logger,
	}

	reclaimOrphanedTmp(e.tmpPath, e.path, e.logger)

	if err := e.locker.acquire(ctx, e.lockPath, opts.LockWait); err != nil {
		return nil, xerrors.Fatal(err, "acquire lock on %s", e.lockPath)
	}

	loaded, err := loadDocument(path)
	if err != nil {
		_ = e.locker.release()
		return nil, err
	}

	e.doc = loaded
	if err := e.adoptContexts(ctx, opts.Primary, opts.Secondary, opts.ToolVersion); err != nil {
		_ = e.locker.release()
		return nil, err
	}

	return e, nil
}

func loadDocument(path string) (document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return document{}, nil
		}
		return document{}, xerrors.Fatal(err, "read state file %s", path)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return document{}, xerrors.Fatal(err, "parse state file %s", path)
	}
	return doc, nil
}

// adoptContexts implements spec.md §4.1 "Context adoption".
func (e *Engine) adoptContexts(ctx context.Context, primary, secondary, toolVersion string) error {
	validForReuse := e.doc.Primary != "" && e.doc.Secondary != "" &&
		e.doc.Primary == primary && e.doc.Secondary == secondary

	now := timeNow()

	if !validForReuse {
		e.doc = document{
			SchemaVersion: schemaVersion,
			ToolVersion:   toolVersion,
			CreatedAt:     now,
			CurrentPhase:  PhaseInit,
			Primary:       primary,
			Secondary:     secondary,
			Config:        map[string]json.RawMessage{},
		}
		e.dirty = true
		return e.FlushState(ctx)
	}

	// Resuming: keep everything, just refresh tool version bookkeeping.
	if e.doc.Config == nil {
		e.doc.Config = map[string]json.RawMessage{}
	}
	e.doc.ToolVersion = toolVersion
	return nil
}

// timeNow returns the current UTC time. It is a plain function, not a
// replaceable variable: the state document's timestamps are advisory
// diagnostics, not behavior the invariants in spec.md §8 depend on.
func timeNow() time.Time { return time.Now().UTC() }

// CurrentPhase returns the phase the run is currently in.
func (e *Engine) CurrentPhase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.CurrentPhase
}

// IsStepCompleted reports whether name is in the completed-step set.
func (e *Engine) IsStepCompleted(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.doc.CompletedSteps {
		if s.Name == name {
			return true
		}
	}
	return false
}

// MarkStepCompleted appends name to the completed-step set if absent and
// marks the document dirty. Append-only: calling this twice for the same
// step is a no-op the second time (idempotence, spec.md §3).
func (e *Engine) MarkStepCompleted(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.doc.CompletedSteps {
		if s.Name == name {
			return
		}
	}
	e.doc.CompletedSteps = append(e.doc.CompletedSteps, StepRecord{Name: name, CompletedAt: timeNow()})
	e.dirty = true
}

// ClearStepsForPhase removes completed steps whose name is in names. Used
// by --force re-execution of a phase (spec.md §4.1 "Resume from FAILED").
func (e *Engine) ClearStepsForPhase(names []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	kept := e.doc.CompletedSteps[:0:0]
	for _, s := range e.doc.CompletedSteps {
		if !want[s.Name] {
			kept = append(kept, s)
		}
	}
	e.doc.CompletedSteps = kept
	e.dirty = true
}

// TransitionPhase moves current_phase to next and flushes unconditionally
// (phase boundaries are total-order commit points, spec.md §5).
func (e *Engine) TransitionPhase(ctx context.Context, next Phase) error {
	e.mu.Lock()
	e.doc.CurrentPhase = next
	e.dirty = true
	e.mu.Unlock()
	return e.FlushState(ctx)
}

// AddError appends a fatal error record, sets current phase to Failed,
// and flushes, per spec.md §7.
func (e *Engine) AddError(ctx context.Context, phase Phase, message string) error {
	e.mu.Lock()
	e.doc.Errors = append(e.doc.Errors, ErrorRecord{Phase: phase, Message: message, Timestamp: timeNow()})
	e.doc.CurrentPhase = PhaseFailed
	e.dirty = true
	e.mu.Unlock()
	return e.FlushState(ctx)
}

// LastErroredPhase returns the phase of the most recent error record, used
// by the orchestrator's resume-from-FAILED logic (spec.md §4.1).
func (e *Engine) LastErroredPhase() (Phase, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.doc.Errors) == 0 {
		return "", false
	}
	return e.doc.Errors[len(e.doc.Errors)-1].Phase, true
}

// GetConfig unmarshals the config entry under key into out. Returns false
// if the key is absent.
func (e *Engine) GetConfig(key string, out interface{}) (bool, error) {
	e.mu.Lock()
	raw, ok := e.doc.Config[key]
	e.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, xerrors.Fatal(err, "unmarshal config key %q", key)
	}
	return true, nil
}

// SetConfig marshals value and stores it under key, marking the document
// dirty.
func (e *Engine) SetConfig(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return xerrors.Fatal(err, "marshal config key %q", key)
	}
	e.mu.Lock()
	if e.doc.Config == nil {
		e.doc.Config = map[string]json.RawMessage{}
	}
	e.doc.Config[key] = raw
	e.dirty = true
	e.mu.Unlock()
	return nil
}

// DeleteConfig removes key from the config bag.
func (e *Engine) DeleteConfig(key string) {
	e.mu.Lock()
	delete(e.doc.Config, key)
	e.dirty = true
	e.mu.Unlock()
}

// SaveState writes the document only if dirty (spec.md §4.1 write
// batching).
func (e *Engine) SaveState(ctx context.Context) error {
	e.mu.Lock()
	dirty := e.dirty
	e.mu.Unlock()
	if !dirty {
		return nil
	}
	return e.FlushState(ctx)
}

// FlushState writes the document unconditionally: atomic tmp-file +
// fsync + rename, the commit point (spec.md §4.1).
func (e *Engine) FlushState(ctx context.Context) error {
	e.mu.Lock()
	e.doc.LastUpdated = timeNow()
	doc := e.doc
	e.dirty = false
	e.mu.Unlock()

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return xerrors.Fatal(err, "marshal state document")
	}

	f, err := os.OpenFile(e.tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return xerrors.Fatal(err, "open temp state file %s", e.tmpPath)
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		return xerrors.Fatal(err, "write temp state file %s", e.tmpPath)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return xerrors.Fatal(err, "fsync temp state file %s", e.tmpPath)
	}
	if err := f.Close(); err != nil {
		return xerrors.Fatal(err, "close temp state file %s", e.tmpPath)
	}
	if err := os.Rename(e.tmpPath, e.path); err != nil {
		return xerrors.Fatal(err, "rename %s to %s", e.tmpPath, e.path)
	}
	return nil
}

// Close flushes any pending changes and releases the advisory lock. It is
// the termination handler spec.md §4.1 requires be run on normal exit,
// SIGTERM, and SIGINT; the CLI in cmd/switchover wires it to signals
// (a signal-cancelled context plus a deferred Close).
func (e *Engine) Close(ctx context.Context) error {
	err := e.SaveState(ctx)
	if relErr := e.locker.release(); relErr != nil && err == nil {
		err = xerrors.Fatal(relErr, "release lock %s", e.lockPath)
	}
	return err
}

// reclaimOrphanedTmp removes a stale .tmp file left behind by a crash
// between write and rename, per spec.md §4.1: "any .tmp whose target
// exists and is newer may be removed".
func reclaimOrphanedTmp(tmpPath, targetPath string, logger logr.Logger) {
	tmpInfo, err := os.Stat(tmpPath)
	if err != nil {
		return
	}
	targetInfo, err := os.Stat(targetPath)
	if err != nil {
		// No committed target yet; the tmp file might be the only
		// record of a crash before the first successful rename. Leave
		// it for forensics rather than guess.
		return
	}
	if targetInfo.ModTime().After(tmpInfo.ModTime()) || targetInfo.ModTime().Equal(tmpInfo.ModTime()) {
		if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
			logger.Error(err, "failed to reclaim orphaned temp state file", "path", tmpPath)
		}
	}
}

// Primary and Secondary expose the adopted contexts for callers that need
// to label logs or pass them to the hub gateways.
func (e *Engine) Primary() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Primary
}

func (e *Engine) Secondary() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Secondary
}

// CompletedSteps returns a snapshot copy of the completed-step set.
func (e *Engine) CompletedSteps() []StepRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]StepRecord, len(e.doc.CompletedSteps))
	copy(out, e.doc.CompletedSteps)
	return out
}

// Errors returns a snapshot copy of the error log.
func (e *Engine) Errors() []ErrorRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ErrorRecord, len(e.doc.Errors))
	copy(out, e.doc.Errors)
	return out
}
