package validate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/hub"
)

const (
	dpaGroup = "oadp.openshift.io"
	dpaVer   = "v1alpha1"
	dpaKind  = "DataProtectionApplication"

	veleroGroup = "velero.io"
	veleroVer   = "v1"
	backupKind  = "Backup"
	bslKind     = "BackupStorageLocation"

	acmBackupGroup     = "cluster.open-cluster-management.io"
	acmBackupVer       = "v1beta1"
	backupScheduleKind = "BackupSchedule"
	restoreKind        = "Restore"
)

// latestCompletedBackup returns the most recently completed Backup in
// namespace ns on g, or nil if none exists.
func latestCompletedBackup(ctx context.Context, g *hub.Gateway, ns string) (*unstructured.Unstructured, error) {
	backups, err := g.ListCustomResource(ctx, veleroGroup, veleroVer, backupKind, ns, hub.ListOptions{})
	if err != nil {
		return nil, err
	}
	var completed []unstructured.Unstructured
	for _, b := range backups {
		phase, _, _ := unstructured.NestedString(b.Object, "status", "phase")
		if phase == "Completed" {
			completed = append(completed, b)
		}
	}
	if len(completed) == 0 {
		return nil, nil
	}
	sort.Slice(completed, func(i, j int) bool {
		ti, _, _ := unstructured.NestedString(completed[i].Object, "status", "completionTimestamp")
		tj, _, _ := unstructured.NestedString(completed[j].Object, "status", "completionTimestamp")
		return ti < tj
	})
	latest := completed[len(completed)-1]
	return &latest, nil
}

// dataProtectionApplicationValidator is validator #4: the
// DataProtectionApplication on each hub must be reconciled.
type dataProtectionApplicationValidator struct{}

func (dataProtectionApplicationValidator) Name() string   { return "data-protection-application-reconciled" }
func (dataProtectionApplicationValidator) Critical() bool { return true }

func (dataProtectionApplicationValidator) Run(ctx context.Context, deps Dependencies) Result {
	name := "data-protection-application-reconciled"
	for _, hp := range []struct {
		label string
		gw    *hub.Gateway
	}{{"primary", deps.Primary}, {"secondary", deps.Secondary}} {
		dpas, err := hp.gw.ListCustomResource(ctx, dpaGroup, dpaVer, dpaKind, deps.BackupNamespace, hub.ListOptions{})
		if err != nil {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("listing DataProtectionApplication on %s: %v", hp.label, err)}
		}
		if len(dpas) == 0 {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("no DataProtectionApplication on %s", hp.label)}
		}
		if !conditionTrue(dpas[0], "Reconciled") {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("DataProtectionApplication on %s is not Reconciled", hp.label)}
		}
	}
	return Result{Name: name, Passed: true, Critical: true, Message: "DataProtectionApplication reconciled on both hubs"}
}

// latestBackupCompletionValidator is validator #5: the most recent
// backup must be Completed, with none currently InProgress.
type latestBackupCompletionValidator struct{}

func (latestBackupCompletionValidator) Name() string   { return "latest-backup-completion" }
func (latestBackupCompletionValidator) Critical() bool { return true }

func (latestBackupCompletionValidator) Run(ctx context.Context, deps Dependencies) Result {
	name := "latest-backup-completion"

	backups, err := deps.Primary.ListCustomResource(ctx, veleroGroup, veleroVer, backupKind, deps.BackupNamespace, hub.ListOptions{})
	if err != nil {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("listing backups: %v", err)}
	}
	var newest *unstructured.Unstructured
	for i := range backups {
		b := &backups[i]
		phase, _, _ := unstructured.NestedString(b.Object, "status", "phase")
		if phase == "InProgress" {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("backup %s still InProgress", b.GetName())}
		}
		if newest == nil || newest.GetCreationTimestamp().Time.Before(b.GetCreationTimestamp().Time) {
			newest = b
		}
	}
	if newest != nil {
		if phase, _, _ := unstructured.NestedString(newest.Object, "status", "phase"); phase != "Completed" {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("most recent backup %s is in phase %q, not Completed", newest.GetName(), phase)}
		}
	}
	latest, err := latestCompletedBackup(ctx, deps.Primary, deps.BackupNamespace)
	if err != nil {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("finding latest completed backup: %v", err)}
	}
	if latest == nil {
		return Result{Name: name, Critical: true, Message: "no completed backup found on primary"}
	}
	return Result{Name: name, Passed: true, Critical: true, Message: fmt.Sprintf("latest backup %s is Completed", latest.GetName())}
}

// backupStorageLocationValidator is validator #6: a BackupStorageLocation
// must be Available on both hubs.
type backupStorageLocationValidator struct{}

func (backupStorageLocationValidator) Name() string   { return "backup-storage-location-available" }
func (backupStorageLocationValidator) Critical() bool { return true }

func (backupStorageLocationValidator) Run(ctx context.Context, deps Dependencies) Result {
	name := "backup-storage-location-available"
	for _, hp := range []struct {
		label string
		gw    *hub.Gateway
	}{{"primary", deps.Primary}, {"secondary", deps.Secondary}} {
		bsls, err := hp.gw.ListCustomResource(ctx, veleroGroup, veleroVer, bslKind, deps.BackupNamespace, hub.ListOptions{})
		if err != nil {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("listing BackupStorageLocation on %s: %v", hp.label, err)}
		}
		available := false
		for _, bsl := range bsls {
			phase, _, _ := unstructured.NestedString(bsl.Object, "status", "phase")
			if phase == "Available" {
				available = true
				break
			}
		}
		if !available {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("no Available BackupStorageLocation on %s", hp.label)}
		}
	}
	return Result{Name: name, Passed: true, Critical: true, Message: "backup storage location available on both hubs"}
}

// useManagedServiceAccountValidator is validator #9: BackupSchedule on
// the primary must have useManagedServiceAccount=true; required for the
// passive-sync method.
type useManagedServiceAccountValidator struct{}

func (useManagedServiceAccountValidator) Name() string   { return "backup-schedule-managed-service-account" }
func (useManagedServiceAccountValidator) Critical() bool { return true }

func (useManagedServiceAccountValidator) Run(ctx context.Context, deps Dependencies) Result {
	name := "backup-schedule-managed-service-account"
	if deps.Run.Method != MethodPassive {
		return Result{Name: name, Passed: true, Critical: true, Message: "not applicable outside passive-sync activation"}
	}

	schedules, err := deps.Primary.ListCustomResource(ctx, acmBackupGroup, acmBackupVer, backupScheduleKind, deps.BackupNamespace, hub.ListOptions{})
	if err != nil {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("listing BackupSchedule on primary: %v", err)}
	}
	if len(schedules) == 0 {
		return Result{Name: name, Critical: true, Message: "no BackupSchedule found on primary"}
	}
	useMSA, _, _ := unstructured.NestedBool(schedules[0].Object, "spec", "useManagedServiceAccount")
	if !useMSA {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("BackupSchedule %s has useManagedServiceAccount=false", schedules[0].GetName())}
	}
	return Result{Name: name, Passed: true, Critical: true, Message: "BackupSchedule uses managed service accounts"}
}

// passiveSyncReadinessValidator is validator #10 (passive method only):
// exactly one restore with syncRestoreWithNewBackups=true, Enabled or
// Finished, and a completed backup on the primary. It does not check
// which backup the restore has applied; a latest backup older than 24h
// is reported in the message but still passes.
type passiveSyncReadinessValidator struct{}

func (passiveSyncReadinessValidator) Name() string   { return "passive-sync-readiness" }
func (passiveSyncReadinessValidator) Critical() bool { return true }

func (passiveSyncReadinessValidator) Run(ctx context.Context, deps Dependencies) Result {
	name := "passive-sync-readiness"
	if deps.Run.Method != MethodPassive {
		return Result{Name: name, Passed: true, Critical: true, Message: "not applicable outside passive-sync activation"}
	}

	restores, err := deps.Secondary.ListCustomResource(ctx, acmBackupGroup, acmBackupVer, restoreKind, deps.BackupNamespace, hub.ListOptions{})
	if err != nil {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("listing Restore on secondary: %v", err)}
	}

	var syncing []unstructured.Unstructured
	for _, r := range restores {
		sync, _, _ := unstructured.NestedBool(r.Object, "spec", "syncRestoreWithNewBackups")
		if sync {
			syncing = append(syncing, r)
		}
	}
	if len(syncing) != 1 {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("expected exactly 1 passive-sync restore on secondary, found %d", len(syncing))}
	}
	restore := syncing[0]

	phase, _, _ := unstructured.NestedString(restore.Object, "status", "phase")
	if phase != "Enabled" && phase != "Finished" {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("passive-sync restore %s is in phase %s, expected Enabled or Finished", restore.GetName(), phase)}
	}

	latest, err := latestCompletedBackup(ctx, deps.Primary, deps.BackupNamespace)
	if err != nil {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("finding latest completed backup on primary: %v", err)}
	}
	if latest == nil {
		return Result{Name: name, Critical: true, Message: "no completed backup found on primary to compare against"}
	}
	latestCompletion, _, _ := unstructured.NestedString(latest.Object, "status", "completionTimestamp")
	parsedLatest, err := time.Parse(time.RFC3339, latestCompletion)
	if err != nil {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("parsing latest backup completionTimestamp: %v", err)}
	}
	if time.Since(parsedLatest) > 24*time.Hour {
		return Result{Name: name, Passed: true, Critical: true, Message: fmt.Sprintf("passive-sync restore %s is Enabled but the latest backup is %s old; verify the sync cadence", restore.GetName(), time.Since(parsedLatest).Round(time.Minute))}
	}
	return Result{Name: name, Passed: true, Critical: true, Message: fmt.Sprintf("passive-sync restore %s is %s; latest completed backup on primary is %s", restore.GetName(), phase, latest.GetName())}
}
