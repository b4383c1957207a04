package phases

import (
	"context"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/hub"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/waitutil"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/xerrors"
)

const multiClusterHubOperatorPrefix = "multiclusterhub-operator-"

// RunDecommission executes the separable Decommission flow (spec.md
// §4.5.5) against the old hub. It is invoked explicitly by the CLI's
// decommission subcommand, not as part of the five-phase success path.
func RunDecommission(ctx context.Context, d Dependencies) error {
	if err := verifyDecommissionPreconditions(ctx, d); err != nil {
		return err
	}
	return runSteps(ctx, d.State, []step{
		{id: "decommission.delete_observability", run: func(ctx context.Context) error { return deleteObservability(ctx, d) }},
		{id: "decommission.delete_managed_clusters", run: func(ctx context.Context) error { return deleteManagedClusters(ctx, d) }},
		{id: "decommission.delete_multiclusterhub", run: func(ctx context.Context) error { return deleteMultiClusterHub(ctx, d) }},
	})
}

// verifyDecommissionPreconditions re-checks, immediately before any
// delete, that every ClusterDeployment on the old hub preserves its
// infrastructure, and that every managed cluster is available on the
// new hub (spec.md §4.5.5 preconditions).
func verifyDecommissionPreconditions(ctx context.Context, d Dependencies) error {
	deployments, err := d.Primary.ListCustomResource(ctx, clusterDeploymentGroup, clusterDeploymentVer, clusterDeploymentKind, "", hub.ListOptions{})
	if err != nil {
		return xerrors.Fatal(err, "list ClusterDeployments on old hub")
	}
	for _, cd := range deployments {
		preserve, found, _ := unstructured.NestedBool(cd.Object, "spec", "preserveOnDelete")
		if !found || !preserve {
			return xerrors.Validation("ClusterDeployment %s does not have preserveOnDelete=true; refusing to decommission", cd.GetName())
		}
	}

	newHubClusters, err := listNonLocalManagedClusters(ctx, d.Secondary)
	if err != nil {
		return xerrors.Fatal(err, "list managed clusters on new hub")
	}
	for _, mc := range newHubClusters {
		if !conditionTrue(mc, managedClusterConditionAvailable) {
			return xerrors.Validation("managed cluster %s is not yet Available on the new hub; refusing to decommission", mc.GetName())
		}
	}
	return nil
}

func deleteObservability(ctx context.Context, d Dependencies) error {
	ref := hub.CRRef{Group: multiClusterObservabilityGroup, Version: multiClusterObservabilityVer, Kind: multiClusterObservabilityKind, Name: "observability", Namespace: d.ACMNamespace}
	if err := d.Primary.DeleteCustomResource(ctx, ref, hub.DeleteOptions{}); err != nil {
		return xerrors.Fatal(err, "delete MultiClusterObservability on old hub")
	}
	return waitutil.For(ctx, func(ctx context.Context) (bool, error) {
		pods, err := d.Primary.ListPods(ctx, d.ACMNamespace, observabilityPartOfSelector)
		if err != nil {
			return false, err
		}
		return len(pods) == 0, nil
	}, waitutil.Options{Timeout: 5 * time.Minute, Interval: 10 * time.Second, Description: "observability pods terminated", Logger: d.Logger})
}

func deleteManagedClusters(ctx context.Context, d Dependencies) error {
	clusters, err := listNonLocalManagedClusters(ctx, d.Primary)
	if err != nil {
		return xerrors.Fatal(err, "list managed clusters on old hub")
	}
	for _, mc := range clusters {
		ref := hub.CRRef{Group: managedClusterGroup, Version: managedClusterVer, Kind: managedClusterKind, Name: mc.GetName()}
		if err := d.Primary.DeleteCustomResource(ctx, ref, hub.DeleteOptions{}); err != nil {
			return xerrors.Fatal(err, "delete managed cluster %s on old hub", mc.GetName())
		}
	}
	return waitutil.For(ctx, func(ctx context.Context) (bool, error) {
		remaining, err := listNonLocalManagedClusters(ctx, d.Primary)
		if err != nil {
			return false, err
		}
		return len(remaining) == 0, nil
	}, waitutil.Options{Timeout: 5 * time.Minute, Interval: 10 * time.Second, Description: "managed cluster finalizers drained", Logger: d.Logger})
}

// deleteMultiClusterHub implements spec.md §4.5.5 step 3: the
// multiclusterhub-operator-* workload is expected to remain and must be
// excluded from the completion check.
func deleteMultiClusterHub(ctx context.Context, d Dependencies) error {
	ref := hub.CRRef{Group: multiClusterHubGroup, Version: multiClusterHubVer, Kind: multiClusterHubKind, Name: "multiclusterhub", Namespace: d.ACMNamespace}
	if err := d.Primary.DeleteCustomResource(ctx, ref, hub.DeleteOptions{}); err != nil {
		return xerrors.Fatal(err, "delete MultiClusterHub on old hub")
	}
	return waitutil.For(ctx, func(ctx context.Context) (bool, error) {
		pods, err := d.Primary.ListPods(ctx, d.ACMNamespace, "")
		if err != nil {
			return false, err
		}
		for _, p := range pods {
			if !strings.HasPrefix(p.Name, multiClusterHubOperatorPrefix) {
				return false, nil
			}
		}
		return true, nil
	}, waitutil.Options{Timeout: 5 * time.Minute, Interval: 10 * time.Second, Description: "MultiClusterHub dependent workloads terminated", Logger: d.Logger})
}
