package validate

// Method mirrors the orchestrator's activation method selection
// (spec.md §6 CLI surface: `method` in `{passive, full}`). Some
// validators only apply to one method.
type Method string

const (
	MethodPassive Method = "passive"
	MethodFull    Method = "full"
)

// RunContext carries the switchover-wide decisions that change which
// validators apply or how strictly they check (spec.md §4.4 items 9-11).
type RunContext struct {
	Method Method
	// MinACMVersionForAutoImportStrategy is the version floor below
	// which validator #11 does not apply (spec.md: "version ≥ 2.14").
	MinACMVersionForAutoImportStrategy string
}
