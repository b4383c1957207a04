package phases

import (
	"context"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/xerrors"
)

// RunPreflight executes the validator suite (C4) and blocks the run on
// any critical failure (spec.md §4.4). Unlike the other phases,
// preflight has no per-step idempotence ledger: validators are
// read-only and cheap to re-run, so every invocation simply re-runs the
// full suite and reports fresh results — this is the documented
// decision for the left-open "validate-only phase semantics" question
// (spec.md §9, see DESIGN.md).
func RunPreflight(ctx context.Context, d Dependencies) error {
	report := d.Validators.Run(ctx, d.ValidateDep)
	for _, r := range report.Results {
		d.Logger.Info("validator result", "name", r.Name, "passed", r.Passed, "critical", r.Critical, "message", r.Message)
	}
	if report.Blocked {
		return xerrors.Validation("preflight blocked by: %v", report.FailedCritical())
	}
	if warnings := report.FailedWarnings(); len(warnings) > 0 {
		d.Logger.Info("preflight passed with warnings", "warnings", warnings)
	}
	return nil
}
