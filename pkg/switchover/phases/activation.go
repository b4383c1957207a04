package phases

import (
	"context"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/hub"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/validate"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/waitutil"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/xerrors"
)

const (
	passiveSyncRestoreFallbackName = "restore-acm-passive-sync"
	activationRestoreNamePatch     = "restore-acm-activate"
	fullRestoreName                = "restore-acm-full"

	restorePollInterval = 7 * time.Second
	restoreVerifyReads  = 5

	importOnlyStrategy    = "ImportOnly"
	importAndSyncStrategy = "ImportAndSync"

	setImportAndSyncMarkerKey = "activation.set_import_and_sync"
)

// RunActivation executes the ACTIVATION phase (spec.md §4.5.2).
func RunActivation(ctx context.Context, d Dependencies) error {
	return runSteps(ctx, d.State, []step{
		{id: "activation.activate_restore", run: func(ctx context.Context) error { return activateRestore(ctx, d) }},
		{id: "activation.wait_restore_complete", run: func(ctx context.Context) error { return waitRestoreComplete(ctx, d) }},
		{id: "activation.immediate_import_override", run: func(ctx context.Context) error { return applyImmediateImportOverride(ctx, d) }},
		{id: "activation.auto_import_strategy_override", run: func(ctx context.Context) error { return applyAutoImportStrategyOverride(ctx, d) }},
	})
}

func activateRestore(ctx context.Context, d Dependencies) error {
	if d.Method == validate.MethodFull {
		return createFullRestore(ctx, d)
	}
	if d.ActivationMethod == "restore" {
		return activateViaRestoreRecreate(ctx, d)
	}
	return activateViaPatch(ctx, d)
}

// activateViaPatch implements spec.md §4.5.2 "Patch path".
func activateViaPatch(ctx context.Context, d Dependencies) error {
	restore, err := findPassiveSyncRestore(ctx, d.Secondary, d.BackupNamespace)
	if err != nil {
		return err
	}

	rvBefore := restore.GetResourceVersion()
	alreadyLatest, _, _ := unstructured.NestedString(restore.Object, "spec", "veleroManagedClustersBackupName")

	ref := hub.CRRef{Group: acmBackupGroup, Version: acmBackupVer, Kind: restoreKind, Name: restore.GetName(), Namespace: d.BackupNamespace}
	if _, err := d.Secondary.PatchCustomResource(ctx, ref, []byte(`{"spec":{"veleroManagedClustersBackupName":"latest"}}`)); err != nil {
		return xerrors.Fatal(err, "patch passive-sync restore %s", restore.GetName())
	}

	sawVersionChange := false
	for i := 0; i < restoreVerifyReads; i++ {
		current, found, err := d.Secondary.GetCustomResource(ctx, ref)
		if err != nil {
			return xerrors.Fatal(err, "re-read restore %s during activation verification", restore.GetName())
		}
		if !found {
			return xerrors.Fatal(nil, "restore %s disappeared during activation verification", restore.GetName())
		}
		value, _, _ := unstructured.NestedString(current.Object, "spec", "veleroManagedClustersBackupName")
		if value != "latest" {
			time.Sleep(time.Second)
			continue
		}
		if current.GetResourceVersion() != rvBefore {
			sawVersionChange = true
		}
		if sawVersionChange || alreadyLatest == "latest" {
			return nil
		}
		time.Sleep(time.Second)
	}
	if alreadyLatest == "latest" {
		// Idempotent resume: the patch was already effective before this
		// invocation even started (spec.md §8 round-trip law).
		return nil
	}
	return xerrors.Fatal(nil, "activation patch on restore %s did not verify after %d reads", restore.GetName(), restoreVerifyReads)
}

// activateViaRestoreRecreate implements spec.md §4.5.2 "Restore path".
func activateViaRestoreRecreate(ctx context.Context, d Dependencies) error {
	restore, err := findPassiveSyncRestore(ctx, d.Secondary, d.BackupNamespace)
	if err != nil {
		return err
	}

	ref := hub.CRRef{Group: acmBackupGroup, Version: acmBackupVer, Kind: restoreKind, Name: restore.GetName(), Namespace: d.BackupNamespace}
	if err := d.Secondary.DeleteCustomResource(ctx, ref, hub.DeleteOptions{}); err != nil {
		return xerrors.Fatal(err, "delete passive-sync restore %s", restore.GetName())
	}
	if err := waitutil.For(ctx, func(ctx context.Context) (bool, error) {
		_, found, err := d.Secondary.GetCustomResource(ctx, ref)
		return !found, err
	}, waitutil.Options{Timeout: 2 * time.Minute, Interval: 5 * time.Second, Description: "passive-sync restore deletion propagated", Logger: d.Logger}); err != nil {
		return err
	}

	newRestore := newRestoreObject(activationRestoreNamePatch, d.BackupNamespace, map[string]interface{}{
		"veleroCredentialsBackupName":     "skip",
		"veleroResourcesBackupName":       "skip",
		"veleroManagedClustersBackupName": "latest",
		"cleanupBeforeRestore":            "CleanupRestored",
	})
	if err := d.Secondary.CreateCustomResource(ctx, newRestore); err != nil {
		return xerrors.Fatal(err, "create activation restore %s", activationRestoreNamePatch)
	}
	return nil
}

// createFullRestore implements spec.md §4.5.2 "Full-restore activation".
func createFullRestore(ctx context.Context, d Dependencies) error {
	newRestore := newRestoreObject(fullRestoreName, d.BackupNamespace, map[string]interface{}{
		"veleroCredentialsBackupName":     "latest",
		"veleroResourcesBackupName":       "latest",
		"veleroManagedClustersBackupName": "latest",
		"cleanupBeforeRestore":            "CleanupRestored",
	})
	if err := d.Secondary.CreateCustomResource(ctx, newRestore); err != nil {
		return xerrors.Fatal(err, "create full restore %s", fullRestoreName)
	}
	return nil
}

func newRestoreObject(name, namespace string, spec map[string]interface{}) *unstructured.Unstructured {
	u := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": acmBackupGroup + "/" + acmBackupVer,
		"kind":       restoreKind,
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": namespace,
		},
		"spec": spec,
	}}
	return u
}

func findPassiveSyncRestore(ctx context.Context, g *hub.Gateway, namespace string) (unstructured.Unstructured, error) {
	restores, err := g.ListCustomResource(ctx, acmBackupGroup, acmBackupVer, restoreKind, namespace, hub.ListOptions{})
	if err != nil {
		return unstructured.Unstructured{}, xerrors.Fatal(err, "list restores")
	}
	for _, r := range restores {
		if sync, _, _ := unstructured.NestedBool(r.Object, "spec", "syncRestoreWithNewBackups"); sync {
			return r, nil
		}
	}
	fallback, found, err := g.GetCustomResource(ctx, hub.CRRef{Group: acmBackupGroup, Version: acmBackupVer, Kind: restoreKind, Name: passiveSyncRestoreFallbackName, Namespace: namespace})
	if err != nil {
		return unstructured.Unstructured{}, err
	}
	if found {
		return *fallback, nil
	}
	return unstructured.Unstructured{}, xerrors.Fatal(nil, "no passive-sync restore found (syncRestoreWithNewBackups=true or name %s)", passiveSyncRestoreFallbackName)
}

// waitRestoreComplete implements spec.md §4.5.2's completion predicate:
// phase Completed or Finished succeed; FinishedWithErrors and
// FailedWithErrors are fatal; anything else keeps polling (spec.md §9
// open question: restore phase terminology varies by backup-operator
// version, both spellings are accepted as success).
func waitRestoreComplete(ctx context.Context, d Dependencies) error {
	name := restoreNameForRun(d)
	ref := hub.CRRef{Group: acmBackupGroup, Version: acmBackupVer, Kind: restoreKind, Name: name, Namespace: d.BackupNamespace}

	var terminalErr error
	err := waitutil.For(ctx, func(ctx context.Context) (bool, error) {
		r, found, err := d.Secondary.GetCustomResource(ctx, ref)
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}
		phase, _, _ := unstructured.NestedString(r.Object, "status", "phase")
		switch phase {
		case "Completed", "Finished":
			return true, nil
		case "FinishedWithErrors", "FailedWithErrors":
			terminalErr = xerrors.Fatal(nil, "restore %s ended in fatal phase %s", name, phase)
			return false, terminalErr
		default:
			return false, nil
		}
	}, waitutil.Options{Timeout: 30 * time.Minute, Interval: restorePollInterval, Description: "restore " + name + " completion", Logger: d.Logger})
	if terminalErr != nil {
		return terminalErr
	}
	return err
}

func restoreNameForRun(d Dependencies) string {
	if d.Method == validate.MethodFull {
		return fullRestoreName
	}
	if d.ActivationMethod == "restore" {
		return activationRestoreNamePatch
	}
	return passiveSyncRestoreFallbackName
}

// applyImmediateImportOverride implements spec.md §4.5.2 "Immediate-import
// override": annotate all non-local managed clusters when ACM ≥ 2.14 and
// the import-controller-config configmap is absent or explicitly
// ImportOnly.
func applyImmediateImportOverride(ctx context.Context, d Dependencies) error {
	acmVersion, err := acmVersionOf(ctx, d.Secondary, d.ACMNamespace)
	if err != nil {
		return err
	}
	if compareDottedVersions(acmVersion, "2.14") < 0 {
		return nil
	}

	cm, found, err := d.Secondary.GetConfigMap(ctx, multiClusterEngineNS, importControllerConfigMap)
	if err != nil {
		return xerrors.Fatal(err, "read %s configmap", importControllerConfigMap)
	}
	strategy := importOnlyStrategy
	if found {
		if v, ok := cm.Data["autoImportStrategy"]; ok {
			strategy = v
		}
	}
	if strategy != importOnlyStrategy {
		return nil
	}

	return annotateManagedClusters(ctx, d.Secondary, immediateImportAnnotation, "")
}

// applyAutoImportStrategyOverride implements spec.md §4.5.2 "Auto-import
// strategy override": optionally switches the new hub to ImportAndSync,
// recording that this run did so for later cleanup in POST_ACTIVATION.
func applyAutoImportStrategyOverride(ctx context.Context, d Dependencies) error {
	if !d.ManageAutoImportStrategy {
		return nil
	}
	if err := d.Secondary.CreateOrPatchConfigMap(ctx, multiClusterEngineNS, importControllerConfigMap, map[string]string{"autoImportStrategy": importAndSyncStrategy}); err != nil {
		return xerrors.Fatal(err, "set autoImportStrategy=ImportAndSync")
	}
	return d.State.SetConfig(setImportAndSyncMarkerKey, true)
}
