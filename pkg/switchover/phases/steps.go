package phases

import "github.com/openshift/acm-hub-switchover/pkg/switchover/state"

// StepIDsForPhase returns the step identifiers a --force re-run must
// clear to force every step of phase p to execute again. Kept as an
// explicit list alongside each RunX function's step slice rather than
// introspected at runtime: the orchestrator's --force handling needs
// these before a phase executor is even invoked (spec.md §9 open
// question "whether --force clears all prior phases or only the phase
// being rerun" — this implementation clears only the phase being
// rerun, see DESIGN.md).
func StepIDsForPhase(p state.Phase) []string {
	switch p {
	case state.PhasePrimaryPrep:
		return []string{
			"primary_prep.snapshot_backup_schedule",
			"primary_prep.pause_or_delete_backup_schedule",
			"primary_prep.disable_auto_import",
			"primary_prep.scale_down_observability",
		}
	case state.PhaseActivation:
		return []string{
			"activation.activate_restore",
			"activation.wait_restore_complete",
			"activation.immediate_import_override",
			"activation.auto_import_strategy_override",
		}
	case state.PhasePostActivation:
		return []string{
			"post_activation.verify_connections",
			"post_activation.clear_disable_auto_import",
			"post_activation.auto_import_strategy_cleanup",
			"post_activation.restart_observability",
			"post_activation.observability_pod_health",
		}
	case state.PhaseFinalization:
		return []string{
			"finalization.prepare_backup_schedule",
			"finalization.verify_new_backups",
			"finalization.backup_integrity",
			"finalization.old_hub_disposition",
		}
	default:
		return nil
	}
}

// DecommissionStepIDs lists the steps RunDecommission tracks, for the
// decommission command's own --force handling.
func DecommissionStepIDs() []string {
	return []string{
		"decommission.delete_observability",
		"decommission.delete_managed_clusters",
		"decommission.delete_multiclusterhub",
	}
}
