package validate

import (
	"context"
	"fmt"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/hub"
)

const (
	clusterOperatorGroup = "config.openshift.io"
	clusterOperatorVer   = "v1"
	clusterOperatorKind  = "ClusterOperator"
	clusterVersionKind   = "ClusterVersion"
	clusterVersionName   = "version"
)

func nodesReady(ctx context.Context, g *hub.Gateway) (bool, string, error) {
	nodes, err := g.ListCustomResource(ctx, "", "v1", "Node", "", hub.ListOptions{})
	if err != nil {
		return false, "", err
	}
	for _, n := range nodes {
		if !conditionTrue(n, "Ready") {
			return false, fmt.Sprintf("node %s is not Ready", n.GetName()), nil
		}
	}
	return true, "", nil
}

func clusterOperatorsHealthy(ctx context.Context, g *hub.Gateway) (bool, string, error) {
	operators, err := g.ListCustomResource(ctx, clusterOperatorGroup, clusterOperatorVer, clusterOperatorKind, "", hub.ListOptions{})
	if err != nil {
		return false, "", err
	}
	for _, op := range operators {
		if !conditionTrue(op, "Available") {
			return false, fmt.Sprintf("cluster operator %s is not Available", op.GetName()), nil
		}
		if conditionTrue(op, "Degraded") {
			return false, fmt.Sprintf("cluster operator %s is Degraded", op.GetName()), nil
		}
	}
	return true, "", nil
}

func noUpgradeInProgress(ctx context.Context, g *hub.Gateway) (bool, string, error) {
	versions, err := g.ListCustomResource(ctx, clusterOperatorGroup, clusterOperatorVer, clusterVersionKind, "", hub.ListOptions{})
	if err != nil {
		return false, "", err
	}
	for _, cv := range versions {
		if cv.GetName() != clusterVersionName {
			continue
		}
		if conditionTrue(cv, "Progressing") {
			return false, "cluster upgrade is in progress (ClusterVersion Progressing=True)", nil
		}
	}
	return true, "", nil
}

// clusterHealthValidator is validator #12: nodes Ready, cluster operators
// healthy, no upgrade in progress, on both hubs.
type clusterHealthValidator struct{}

func (clusterHealthValidator) Name() string   { return "cluster-health" }
func (clusterHealthValidator) Critical() bool { return true }

func (clusterHealthValidator) Run(ctx context.Context, deps Dependencies) Result {
	name := "cluster-health"
	for _, hp := range []struct {
		label string
		gw    *hub.Gateway
	}{{"primary", deps.Primary}, {"secondary", deps.Secondary}} {
		if ok, msg, err := nodesReady(ctx, hp.gw); err != nil {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("checking node health on %s: %v", hp.label, err)}
		} else if !ok {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("%s: %s", hp.label, msg)}
		}
		if ok, msg, err := clusterOperatorsHealthy(ctx, hp.gw); err != nil {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("checking cluster operators on %s: %v", hp.label, err)}
		} else if !ok {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("%s: %s", hp.label, msg)}
		}
		if ok, msg, err := noUpgradeInProgress(ctx, hp.gw); err != nil {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("checking ClusterVersion on %s: %v", hp.label, err)}
		} else if !ok {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("%s: %s", hp.label, msg)}
		}
	}
	return Result{Name: name, Passed: true, Critical: true, Message: "both hubs healthy: nodes ready, operators available, no upgrade in progress"}
}
