// Package phases implements the five phase executors plus the separable
// decommission flow (spec.md §4.5, C5): preflight, primary preparation,
// secondary activation, post-activation, finalization. Each phase is a
// composition of idempotent steps against the Hub API Gateway (C1),
// guided by the State Engine (C3).
//
// Grounded on github.com/openshift/hypershift's cmd/dr/backup and
// cmd/oadp/restore.go for the step-by-step backup/restore choreography,
// and contrib/oadp-recovery/cmd/run.go for composing an ordered sequence
// of named, independently-resumable operations.
package phases

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/hub"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/reconnect"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/state"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/validate"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/xerrors"
)

// CR coordinates used throughout the phase modules (spec.md §6 resource
// contracts). Kept local to this package rather than shared with
// pkg/switchover/validate: the two packages read and write these
// resources for different reasons and are meant to evolve independently.
const (
	managedClusterGroup = "cluster.open-cluster-management.io"
	managedClusterVer   = "v1"
	managedClusterKind  = "ManagedCluster"
	localClusterName    = "local-cluster"

	acmBackupGroup     = "cluster.open-cluster-management.io"
	acmBackupVer       = "v1beta1"
	backupScheduleKind = "BackupSchedule"
	restoreKind        = "Restore"

	veleroGroup = "velero.io"
	veleroVer   = "v1"
	backupKind  = "Backup"

	multiClusterObservabilityGroup = "observability.open-cluster-management.io"
	multiClusterObservabilityVer   = "v1beta2"
	multiClusterObservabilityKind  = "MultiClusterObservability"

	multiClusterHubGroup = "operator.open-cluster-management.io"
	multiClusterHubVer   = "v1"
	multiClusterHubKind  = "MultiClusterHub"

	clusterDeploymentGroup = "hive.openshift.io"
	clusterDeploymentVer   = "v1"
	clusterDeploymentKind  = "ClusterDeployment"

	importControllerConfigMap = "import-controller-config"
	multiClusterEngineNS       = "multicluster-engine"

	disableAutoImportAnnotation  = "import.open-cluster-management.io/disable-auto-import"
	immediateImportAnnotation    = "import.open-cluster-management.io/immediate-import"
	observabilityCompactorName   = "observability-thanos-compact"
	observabilityObservatorium   = "observability-observatorium-observatorium-api"
	observabilityPartOfSelector  = "app.kubernetes.io/part-of=observability"
)

// Dependencies is the shared context every phase executor receives.
type Dependencies struct {
	Primary     *hub.Gateway
	Secondary   *hub.Gateway
	State       *state.Engine
	Validators  *validate.Coordinator
	ValidateDep validate.Dependencies

	ACMNamespace    string
	BackupNamespace string

	Method                          validate.Method
	ActivationMethod                string // "patch" | "restore"
	OldHubAction                    string // "secondary" | "decommission" | "none"
	ObservabilityPresent            bool
	DisableObservabilityOnSecondary bool
	ManageAutoImportStrategy        bool
	SkipObservabilityChecks         bool

	Reconnector *reconnect.Reconnector

	Logger logr.Logger
}

// step is one named, idempotent unit of work within a phase (spec.md
// §4.5 invariant block).
type step struct {
	id  string
	run func(ctx context.Context) error
}

// runSteps executes steps in order, skipping any already marked
// complete, persisting completion after each (batched save; the caller
// flushes unconditionally at the phase boundary).
func runSteps(ctx context.Context, st *state.Engine, steps []step) error {
	for _, s := range steps {
		if st.IsStepCompleted(s.id) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return xerrors.Cancelled(fmt.Sprintf("cancelled before step %q", s.id))
		}
		if err := s.run(ctx); err != nil {
			return err
		}
		st.MarkStepCompleted(s.id)
		if err := st.SaveState(ctx); err != nil {
			return err
		}
	}
	return nil
}

// mergePatchAnnotation builds a JSON merge patch that sets
// metadata.annotations[key]=value, or removes the key entirely when
// value is nil (JSON merge-patch null-deletes a key).
func mergePatchAnnotation(key string, value interface{}) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"metadata": map[string]interface{}{
			"annotations": map[string]interface{}{key: value},
		},
	})
}

// annotateManagedClusters applies the same annotation patch to every
// non-local-cluster ManagedCluster on g.
func annotateManagedClusters(ctx context.Context, g *hub.Gateway, key string, value interface{}) error {
	patch, err := mergePatchAnnotation(key, value)
	if err != nil {
		return xerrors.Fatal(err, "build annotation patch for %s", key)
	}
	clusters, err := g.ListCustomResource(ctx, managedClusterGroup, managedClusterVer, managedClusterKind, "", hub.ListOptions{})
	if err != nil {
		return xerrors.Fatal(err, "list managed clusters")
	}
	for _, mc := range clusters {
		if mc.GetName() == localClusterName {
			continue
		}
		ref := hub.CRRef{Group: managedClusterGroup, Version: managedClusterVer, Kind: managedClusterKind, Name: mc.GetName()}
		if _, err := g.PatchCustomResource(ctx, ref, patch); err != nil {
			return xerrors.Fatal(err, "annotate managed cluster %s", mc.GetName())
		}
	}
	return nil
}

func listNonLocalManagedClusters(ctx context.Context, g *hub.Gateway) ([]unstructured.Unstructured, error) {
	all, err := g.ListCustomResource(ctx, managedClusterGroup, managedClusterVer, managedClusterKind, "", hub.ListOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]unstructured.Unstructured, 0, len(all))
	for _, mc := range all {
		if mc.GetName() != localClusterName {
			out = append(out, mc)
		}
	}
	return out, nil
}

func conditionTrue(obj unstructured.Unstructured, condType string) bool {
	conditions, found, _ := unstructured.NestedSlice(obj.Object, "status", "conditions")
	if !found {
		return false
	}
	for _, c := range conditions {
		cm, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		if cm["type"] == condType {
			return cm["status"] == "True"
		}
	}
	return false
}

// compareDottedVersions compares two dotted version strings
// (major.minor[.patch][-suffix]) numerically component-by-component,
// ignoring any trailing "-suffix". Mirrors
// pkg/switchover/validate's version comparator; duplicated rather than
// imported since the two packages compare versions for unrelated
// reasons and should not share a private dependency.
func compareDottedVersions(a, b string) int {
	as := splitVersionComponents(a)
	bs := splitVersionComponents(b)
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

func splitVersionComponents(v string) []int {
	if base, _, found := strings.Cut(v, "-"); found {
		v = base
	}
	var out []int
	for _, part := range strings.Split(v, ".") {
		n, _ := strconv.Atoi(part)
		out = append(out, n)
	}
	return out
}

func hasAnnotation(obj unstructured.Unstructured, key string) bool {
	annotations := obj.GetAnnotations()
	if annotations == nil {
		return false
	}
	_, ok := annotations[key]
	return ok
}
