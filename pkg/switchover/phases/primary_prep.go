package phases

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/hub"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/waitutil"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/xerrors"
)

const backupScheduleSnapshotKey = "primary_prep.backup_schedule_snapshot"

// RunPrimaryPrep executes the PRIMARY_PREP phase (spec.md §4.5.1).
func RunPrimaryPrep(ctx context.Context, d Dependencies) error {
	return runSteps(ctx, d.State, []step{
		{id: "primary_prep.snapshot_backup_schedule", run: func(ctx context.Context) error { return snapshotBackupSchedule(ctx, d) }},
		{id: "primary_prep.pause_or_delete_backup_schedule", run: func(ctx context.Context) error { return pauseOrDeleteBackupSchedule(ctx, d) }},
		{id: "primary_prep.disable_auto_import", run: func(ctx context.Context) error {
			return annotateManagedClusters(ctx, d.Primary, disableAutoImportAnnotation, "")
		}},
		{id: "primary_prep.scale_down_observability", run: func(ctx context.Context) error { return scaleDownObservability(ctx, d) }},
	})
}

// snapshotBackupSchedule implements spec.md §4.5.1 step 1: read the
// single BackupSchedule on the primary and store its spec under a
// version-neutral key for later re-application in FINALIZATION. Per
// the documented precondition, more than one schedule is a warning-level
// anomaly; only the first is handled.
func snapshotBackupSchedule(ctx context.Context, d Dependencies) error {
	schedules, err := d.Primary.ListCustomResource(ctx, acmBackupGroup, acmBackupVer, backupScheduleKind, d.BackupNamespace, hub.ListOptions{})
	if err != nil {
		return xerrors.Fatal(err, "list backup schedules on primary")
	}
	if len(schedules) == 0 {
		return xerrors.Fatal(nil, "no BackupSchedule found on primary namespace %s", d.BackupNamespace)
	}
	if len(schedules) > 1 {
		d.Logger.Info("warning: multiple BackupSchedules found on primary, only the first is handled", "count", len(schedules))
	}

	snapshot := schedules[0]
	spec, _ := snapshot.Object["spec"].(map[string]interface{})
	if err := d.State.SetConfig(backupScheduleSnapshotKey, map[string]interface{}{
		"name": snapshot.GetName(),
		"spec": spec,
	}); err != nil {
		return xerrors.Fatal(err, "record BackupSchedule snapshot")
	}
	return nil
}

// pauseOrDeleteBackupSchedule implements spec.md §4.5.1 step 2: ACM ≥
// 2.12 pauses in place; ACM 2.11 deletes outright, relying on the step-1
// snapshot to re-create it later.
func pauseOrDeleteBackupSchedule(ctx context.Context, d Dependencies) error {
	var snap struct {
		Name string `json:"name"`
	}
	if found, err := d.State.GetConfig(backupScheduleSnapshotKey, &snap); err != nil {
		return err
	} else if !found {
		return xerrors.Fatal(nil, "backup schedule snapshot missing before pause/delete step")
	}

	ref := hub.CRRef{Group: acmBackupGroup, Version: acmBackupVer, Kind: backupScheduleKind, Name: snap.Name, Namespace: d.BackupNamespace}

	acmVersion, err := acmVersionOf(ctx, d.Primary, d.ACMNamespace)
	if err != nil {
		return err
	}

	if compareDottedVersions(acmVersion, "2.12") >= 0 {
		if _, err := d.Primary.PatchCustomResource(ctx, ref, []byte(`{"spec":{"paused":true}}`)); err != nil {
			return xerrors.Fatal(err, "pause BackupSchedule %s", snap.Name)
		}
		return nil
	}

	if err := d.Primary.DeleteCustomResource(ctx, ref, hub.DeleteOptions{}); err != nil {
		return xerrors.Fatal(err, "delete BackupSchedule %s", snap.Name)
	}
	return nil
}

func scaleDownObservability(ctx context.Context, d Dependencies) error {
	if !d.ObservabilityPresent {
		return nil
	}
	if err := d.Primary.ScaleStatefulSet(ctx, d.ACMNamespace, observabilityCompactorName, 0); err != nil {
		return xerrors.Fatal(err, "scale down observability compactor")
	}
	return waitutil.For(ctx, func(ctx context.Context) (bool, error) {
		pods, err := d.Primary.ListPods(ctx, d.ACMNamespace, "app.kubernetes.io/name="+observabilityCompactorName)
		if err != nil {
			return false, err
		}
		return len(pods) == 0, nil
	}, waitutil.Options{
		Timeout:     5 * time.Minute,
		Interval:    10 * time.Second,
		Description: "observability compactor pods drained",
		Logger:      d.Logger,
	})
}

// acmVersionOf reads a hub's MultiClusterHub status directly rather than
// depending on validate.Dependencies, keeping phase modules independent
// of the validator suite's internal wiring.
func acmVersionOf(ctx context.Context, g *hub.Gateway, namespace string) (string, error) {
	hubs, err := g.ListCustomResource(ctx, multiClusterHubGroup, multiClusterHubVer, multiClusterHubKind, namespace, hub.ListOptions{})
	if err != nil {
		return "", xerrors.Fatal(err, "list MultiClusterHub")
	}
	if len(hubs) == 0 {
		return "", xerrors.Fatal(nil, "no MultiClusterHub found in namespace %s", namespace)
	}
	version, found, _ := unstructured.NestedString(hubs[0].Object, "status", "currentVersion")
	if !found || version == "" {
		return "", xerrors.Fatal(nil, "MultiClusterHub %s has no status.currentVersion", hubs[0].GetName())
	}
	return version, nil
}
