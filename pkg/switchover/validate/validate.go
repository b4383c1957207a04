// Package validate implements the pre-flight validator suite (spec.md
// §4.4, C4): a fixed set of independent checks, each reporting pass/fail
// plus a human message, aggregated by a coordinator that classifies the
// overall run as blocked or clear to proceed.
//
// Grounded on github.com/openshift/hypershift's support/oadp/validate.go
// (a flat list of independent validation functions feeding one aggregate
// report) and cmd/oadp/backup.go's use of k8s.io/apimachinery/pkg/util/errors
// for multi-error aggregation.
package validate

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/hub"
)

// Result is one validator's outcome (spec.md §4.4: "uniform
// {name, passed, message, critical} record").
type Result struct {
	Name     string
	Passed   bool
	Message  string
	Critical bool
}

// Validator is a single independent check against one or both hubs.
type Validator interface {
	Name() string
	// Critical reports whether a failure of this validator blocks the
	// run outright, versus surfacing as a non-blocking warning.
	Critical() bool
	Run(ctx context.Context, deps Dependencies) Result
}

// Dependencies is the shared read-only context every validator receives.
// It intentionally exposes only gateway handles and identifiers, never
// the state engine: validators must not mutate run state (spec.md §4.4
// "validators are read-only").
type Dependencies struct {
	Primary          *hub.Gateway
	Secondary        *hub.Gateway
	PrimaryContext   string
	SecondaryContext string
	ACMNamespace     string
	BackupNamespace  string
	KubeconfigPath   string
	// RBACEnabled controls whether the RBAC validator runs (spec.md
	// §4.4 item 14: "skippable by flag").
	RBACEnabled bool
	// MaxKubeconfigBytes bounds validator #15; 0 selects the default
	// (10 MiB).
	MaxKubeconfigBytes int64
	Run                RunContext
	Logger             logr.Logger
}

// Report is the coordinator's aggregate output.
type Report struct {
	Results []Result
	// Blocked is true when at least one critical validator failed
	// (spec.md §4.4: "returns a failure if any critical && !passed").
	// This is independent of the orchestrator's --force flag, which
	// governs re-running already-completed phases, not validator
	// severity.
	Blocked bool
}

// Passed reports whether every validator in the report passed.
func (r Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// FailedCritical returns the names of failed validators marked critical.
func (r Report) FailedCritical() []string {
	var names []string
	for _, res := range r.Results {
		if !res.Passed && res.Critical {
			names = append(names, res.Name)
		}
	}
	return names
}

// FailedWarnings returns the names of failed validators not marked
// critical; these do not block the run (spec.md §4.4).
func (r Report) FailedWarnings() []string {
	var names []string
	for _, res := range r.Results {
		if !res.Passed && !res.Critical {
			names = append(names, res.Name)
		}
	}
	return names
}

// Coordinator runs every registered validator and aggregates the result.
// Validators may run concurrently (spec.md §4.4: "no ordering dependency
// between validators"); the coordinator fans them out and joins.
type Coordinator struct {
	validators []Validator
}

// NewCoordinator builds a coordinator over exactly the given validators
// (the CLI passes StandardValidators(); tests inject fakes).
func NewCoordinator(validators ...Validator) *Coordinator {
	return &Coordinator{validators: validators}
}

// Run executes every validator concurrently and returns the aggregate
// report. Result order is deterministic (indexed by registration order,
// spec.md §5: "order of result reporting must remain deterministic")
// even though evaluation itself is concurrent.
func (c *Coordinator) Run(ctx context.Context, deps Dependencies) Report {
	results := make([]Result, len(c.validators))
	done := make(chan int, len(c.validators))

	for i, v := range c.validators {
		i, v := i, v
		go func() {
			results[i] = v.Run(ctx, deps)
			done <- i
		}()
	}
	for range c.validators {
		<-done
	}

	report := Report{Results: results}
	for _, res := range report.Results {
		if !res.Passed && res.Critical {
			report.Blocked = true
		}
	}
	return report
}
