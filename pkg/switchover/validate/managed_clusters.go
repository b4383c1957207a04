package validate

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/hub"
)

const (
	managedClusterGroup = "cluster.open-cluster-management.io"
	managedClusterVer   = "v1"
	managedClusterKind  = "ManagedCluster"
	localClusterName    = "local-cluster"

	clusterDeploymentGroup = "hive.openshift.io"
	clusterDeploymentVer   = "v1"
	clusterDeploymentKind  = "ClusterDeployment"
)

// listNonLocalManagedClusters lists every ManagedCluster on g excluding
// the local-cluster sentinel (spec.md §3: "always excluded from bulk
// mutations").
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

// managedClusterCoverageValidator is validator #7: every joined managed
// cluster on the primary must have been created at or before the latest
// backup's completion, so the backup actually captured it.
type managedClusterCoverageValidator struct{}

func (managedClusterCoverageValidator) Name() string   { return "managed-cluster-coverage" }
func (managedClusterCoverageValidator) Critical() bool { return true }

func (managedClusterCoverageValidator) Run(ctx context.Context, deps Dependencies) Result {
	name := "managed-cluster-coverage"

	latest, err := latestCompletedBackup(ctx, deps.Primary, deps.BackupNamespace)
	if err != nil {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("finding latest completed backup: %v", err)}
	}
	if latest == nil {
		return Result{Name: name, Critical: true, Message: "no completed backup found on primary"}
	}
	completionStr, _, _ := unstructured.NestedString(latest.Object, "status", "completionTimestamp")
	completion, err := time.Parse(time.RFC3339, completionStr)
	if err != nil {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("parsing backup completionTimestamp %q: %v", completionStr, err)}
	}

	clusters, err := listNonLocalManagedClusters(ctx, deps.Primary)
	if err != nil {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("listing managed clusters on primary: %v", err)}
	}

	var uncovered []string
	for _, mc := range clusters {
		if !conditionTrue(mc, "ManagedClusterConditionAvailable") && !conditionTrue(mc, "ManagedClusterJoined") {
			continue
		}
		created := mc.GetCreationTimestamp()
		if created.Time.After(completion) {
			uncovered = append(uncovered, mc.GetName())
		}
	}
	if len(uncovered) > 0 {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("managed clusters created after the latest backup: %v", uncovered)}
	}
	return Result{Name: name, Passed: true, Critical: true, Message: fmt.Sprintf("all %d managed clusters covered by backup at %s", len(clusters), completion.Format(time.RFC3339))}
}

// clusterDeploymentPreservationValidator is validator #8: every
// ClusterDeployment on the primary must have spec.preserveOnDelete=true.
type clusterDeploymentPreservationValidator struct{}

func (clusterDeploymentPreservationValidator) Name() string   { return "clusterdeployment-preserve-on-delete" }
func (clusterDeploymentPreservationValidator) Critical() bool { return true }

func (clusterDeploymentPreservationValidator) Run(ctx context.Context, deps Dependencies) Result {
	name := "clusterdeployment-preserve-on-delete"

	deployments, err := deps.Primary.ListCustomResource(ctx, clusterDeploymentGroup, clusterDeploymentVer, clusterDeploymentKind, "", hub.ListOptions{})
	if err != nil {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("listing ClusterDeployments on primary: %v", err)}
	}

	var offending []string
	for _, cd := range deployments {
		preserve, found, _ := unstructured.NestedBool(cd.Object, "spec", "preserveOnDelete")
		if !found || !preserve {
			offending = append(offending, fmt.Sprintf("%s/%s", cd.GetNamespace(), cd.GetName()))
		}
	}
	if len(offending) > 0 {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("ClusterDeployments without preserveOnDelete=true: %v", offending)}
	}
	return Result{Name: name, Passed: true, Critical: true, Message: fmt.Sprintf("all %d ClusterDeployments preserve infrastructure on delete", len(deployments))}
}
