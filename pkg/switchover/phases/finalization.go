package phases

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/hub"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/state"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/waitutil"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/xerrors"
)

const (
	oldHubActionSecondary    = "secondary"
	oldHubActionDecommission = "decommission"
	oldHubActionNone         = "none"

	oldHubPassiveSyncRestoreName = "restore-acm-passive-sync"
)

// RunFinalization executes the FINALIZATION phase (spec.md §4.5.4).
func RunFinalization(ctx context.Context, d Dependencies) error {
	if err := runSteps(ctx, d.State, []step{
		{id: "finalization.prepare_backup_schedule", run: func(ctx context.Context) error { return prepareNewHubBackupSchedule(ctx, d) }},
		{id: "finalization.verify_new_backups", run: func(ctx context.Context) error { return verifyNewBackups(ctx, d) }},
		{id: "finalization.backup_integrity", run: func(ctx context.Context) error { return verifyBackupIntegrity(ctx, d) }},
		{id: "finalization.old_hub_disposition", run: func(ctx context.Context) error { return disposeOldHub(ctx, d) }},
	}); err != nil {
		return err
	}
	return d.State.TransitionPhase(ctx, state.PhaseCompleted)
}

// prepareNewHubBackupSchedule implements spec.md §4.5.4 step 1: apply
// the PRIMARY_PREP snapshot onto the new hub, recreating it
// unconditionally to eliminate a collision race with any pre-existing
// schedule. A schedule already present under the snapshot's name is
// deleted and recreated; its UID and spec are not compared first.
func prepareNewHubBackupSchedule(ctx context.Context, d Dependencies) error {
	var snap struct {
		Name string                 `json:"name"`
		Spec map[string]interface{} `json:"spec"`
	}
	found, err := d.State.GetConfig(backupScheduleSnapshotKey, &snap)
	if err != nil {
		return err
	}
	if !found {
		return xerrors.Fatal(nil, "backup schedule snapshot missing before finalization")
	}

	ref := hub.CRRef{Group: acmBackupGroup, Version: acmBackupVer, Kind: backupScheduleKind, Name: snap.Name, Namespace: d.BackupNamespace}
	existing, existsAlready, err := d.Secondary.GetCustomResource(ctx, ref)
	if err != nil {
		return xerrors.Fatal(err, "check for existing BackupSchedule collision on new hub")
	}
	if existsAlready {
		// Collision: the existing object was fetched by the snapshot's
		// name, so this name check only guards against a mismatched read.
		if existing.GetName() != snap.Name {
			return xerrors.Fatal(nil, "unexpected BackupSchedule %s collides with finalization target %s; refusing to delete", existing.GetName(), snap.Name)
		}
		if err := d.Secondary.DeleteCustomResource(ctx, ref, hub.DeleteOptions{}); err != nil {
			return xerrors.Fatal(err, "delete colliding BackupSchedule %s on new hub", snap.Name)
		}
		if err := waitutil.For(ctx, func(ctx context.Context) (bool, error) {
			_, found, err := d.Secondary.GetCustomResource(ctx, ref)
			return !found, err
		}, waitutil.Options{Timeout: 2 * time.Minute, Interval: 5 * time.Second, Description: "colliding BackupSchedule deletion propagated", Logger: d.Logger}); err != nil {
			return err
		}
	}

	newSchedule := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": acmBackupGroup + "/" + acmBackupVer,
		"kind":       backupScheduleKind,
		"metadata": map[string]interface{}{
			"name":      snap.Name,
			"namespace": d.BackupNamespace,
		},
		"spec": snap.Spec,
	}}
	if err := d.Secondary.CreateCustomResource(ctx, newSchedule); err != nil {
		return xerrors.Fatal(err, "recreate BackupSchedule %s on new hub", snap.Name)
	}
	return nil
}

// verifyNewBackups implements spec.md §4.5.4 step 2: wait until the new
// hub lists a Completed backup with a parseable completionTimestamp. Any
// such backup satisfies the wait; its age and whether it was taken after
// the schedule was recreated are not checked.
func verifyNewBackups(ctx context.Context, d Dependencies) error {
	return waitutil.For(ctx, func(ctx context.Context) (bool, error) {
		backups, err := d.Secondary.ListCustomResource(ctx, veleroGroup, veleroVer, backupKind, d.BackupNamespace, hub.ListOptions{})
		if err != nil {
			return false, err
		}
		latest, ok := latestCompletedBackup(backups)
		return ok && latest.GetName() != "", nil
	}, waitutil.Options{Timeout: 30 * time.Minute, Interval: 15 * time.Second, Description: "new completed backup on new hub", Logger: d.Logger})
}

// verifyBackupIntegrity implements spec.md §4.5.4 step 3.
func verifyBackupIntegrity(ctx context.Context, d Dependencies) error {
	backups, err := d.Secondary.ListCustomResource(ctx, veleroGroup, veleroVer, backupKind, d.BackupNamespace, hub.ListOptions{})
	if err != nil {
		return xerrors.Fatal(err, "list backups for integrity check")
	}
	latest, ok := latestCompletedBackup(backups)
	if !ok {
		return xerrors.Fatal(nil, "no completed backup found on new hub for integrity check")
	}
	errorCount, _, _ := unstructured.NestedInt64(latest.Object, "status", "errors")
	if errorCount > 0 {
		return xerrors.Fatal(nil, "latest backup %s reports %d errors", latest.GetName(), errorCount)
	}
	return nil
}

func latestCompletedBackup(backups []unstructured.Unstructured) (unstructured.Unstructured, bool) {
	var latest unstructured.Unstructured
	var latestTime time.Time
	found := false
	for _, b := range backups {
		phase, _, _ := unstructured.NestedString(b.Object, "status", "phase")
		if phase != "Completed" {
			continue
		}
		ts, _, _ := unstructured.NestedString(b.Object, "status", "completionTimestamp")
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			continue
		}
		if !found || t.After(latestTime) {
			latest = b
			latestTime = t
			found = true
		}
	}
	return latest, found
}

// disposeOldHub implements spec.md §4.5.4 step 4.
func disposeOldHub(ctx context.Context, d Dependencies) error {
	switch d.OldHubAction {
	case oldHubActionSecondary:
		return demoteOldHubToSecondary(ctx, d)
	case oldHubActionDecommission:
		// Decommission is a separable flow invoked explicitly (spec.md
		// §4.5.5); finalization only hands off, it does not run it
		// inline, since decommission has its own precondition re-check
		// immediately before any delete.
		d.Logger.Info("old-hub-action=decommission: run the decommission command against the old hub context when ready")
		return nil
	case oldHubActionNone:
		return nil
	default:
		return xerrors.Validation("unknown old_hub_action %q", d.OldHubAction)
	}
}

func demoteOldHubToSecondary(ctx context.Context, d Dependencies) error {
	restore := newRestoreObject(oldHubPassiveSyncRestoreName, d.BackupNamespace, map[string]interface{}{
		"veleroCredentialsBackupName":     "latest",
		"veleroResourcesBackupName":       "latest",
		"veleroManagedClustersBackupName": "skip",
		"syncRestoreWithNewBackups":       true,
	})
	if err := d.Primary.CreateCustomResource(ctx, restore); err != nil {
		return xerrors.Fatal(err, "create passive-sync restore on old hub")
	}

	if d.ObservabilityPresent && d.DisableObservabilityOnSecondary {
		ref := hub.CRRef{Group: multiClusterObservabilityGroup, Version: multiClusterObservabilityVer, Kind: multiClusterObservabilityKind, Name: "observability", Namespace: d.ACMNamespace}
		if err := d.Primary.DeleteCustomResource(ctx, ref, hub.DeleteOptions{}); err != nil {
			return xerrors.Fatal(err, "delete observability on old hub to avoid dual-writer conflicts")
		}
	}
	return nil
}
