package validate

import (
	"context"
	"fmt"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/hub"
)

// operatorPermissions and validatorPermissions are the documented
// least-privilege sets the orchestrator expects to hold for its two
// roles (spec.md §4.4 item 14). Kept here rather than discovered, since
// the point of the check is to catch a misconfigured RBAC binding
// *before* a mutating phase discovers it the hard way.
var operatorPermissions = []hub.ResourceAccessCheck{
	{Verb: "patch", Group: "cluster.open-cluster-management.io", Resource: "backupschedules"},
	{Verb: "delete", Group: "cluster.open-cluster-management.io", Resource: "backupschedules"},
	{Verb: "create", Group: "cluster.open-cluster-management.io", Resource: "restores"},
	{Verb: "patch", Group: "cluster.open-cluster-management.io", Resource: "managedclusters"},
	{Verb: "patch", Group: "apps", Resource: "deployments"},
	{Verb: "update", Group: "apps", Resource: "deployments/scale"},
	{Verb: "delete", Group: "", Resource: "secrets"},
}

var validatorPermissions = []hub.ResourceAccessCheck{
	{Verb: "get", Group: "operator.open-cluster-management.io", Resource: "multiclusterhubs"},
	{Verb: "list", Group: "velero.io", Resource: "backups"},
	{Verb: "list", Group: "velero.io", Resource: "backupstoragelocations"},
	{Verb: "list", Group: "cluster.open-cluster-management.io", Resource: "managedclusters"},
	{Verb: "list", Group: "hive.openshift.io", Resource: "clusterdeployments"},
	{Verb: "list", Group: "config.openshift.io", Resource: "clusteroperators"},
}

// rbacValidator is validator #14: confirm, via SelfSubjectAccessReview,
// that the invoker holds the documented least-privilege sets for both
// the operator and validator roles. Skippable via Dependencies.RBACEnabled.
type rbacValidator struct{}

func (rbacValidator) Name() string   { return "rbac-least-privilege" }
func (rbacValidator) Critical() bool { return true }

func (rbacValidator) Run(ctx context.Context, deps Dependencies) Result {
	name := "rbac-least-privilege"
	if !deps.RBACEnabled {
		return Result{Name: name, Passed: true, Critical: true, Message: "RBAC validation skipped by flag"}
	}

	var denied []string
	for _, g := range []struct {
		label string
		gw    *hub.Gateway
	}{{"primary", deps.Primary}, {"secondary", deps.Secondary}} {
		for _, check := range append(append([]hub.ResourceAccessCheck{}, operatorPermissions...), validatorPermissions...) {
			allowed, err := g.gw.CheckAccess(ctx, check)
			if err != nil {
				return Result{Name: name, Critical: true, Message: fmt.Sprintf("SelfSubjectAccessReview against %s: %v", g.label, err)}
			}
			if !allowed {
				denied = append(denied, fmt.Sprintf("%s: %s %s/%s", g.label, check.Verb, check.Group, check.Resource))
			}
		}
	}
	if len(denied) > 0 {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("missing required permissions: %v", denied)}
	}
	return Result{Name: name, Passed: true, Critical: true, Message: "invoker holds the documented least-privilege set on both hubs"}
}
