package validate

import (
	"context"
	"fmt"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/hub"
)

// namespaceExistenceValidator is validator #1 (spec.md §4.4): both hubs
// must have the backup and ACM namespaces.
type namespaceExistenceValidator struct{}

func (namespaceExistenceValidator) Name() string   { return "namespace-existence" }
func (namespaceExistenceValidator) Critical() bool { return true }

func (namespaceExistenceValidator) Run(ctx context.Context, deps Dependencies) Result {
	name := "namespace-existence"
	type target struct {
		hubLabel string
		gw       *hub.Gateway
		ns       string
	}
	targets := []target{
		{"primary", deps.Primary, deps.ACMNamespace},
		{"primary", deps.Primary, deps.BackupNamespace},
		{"secondary", deps.Secondary, deps.ACMNamespace},
		{"secondary", deps.Secondary, deps.BackupNamespace},
	}
	var missing []string
	for _, t := range targets {
		exists, err := t.gw.NamespaceExists(ctx, t.ns)
		if err != nil {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("checking namespace %s on %s: %v", t.ns, t.hubLabel, err)}
		}
		if !exists {
			missing = append(missing, fmt.Sprintf("%s/%s", t.hubLabel, t.ns))
		}
	}
	if len(missing) > 0 {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("missing namespaces: %v", missing)}
	}
	return Result{Name: name, Passed: true, Critical: true, Message: "ACM and backup namespaces present on both hubs"}
}

// backupOperatorPresenceValidator is validator #3: the OADP namespace
// exists and the Velero deployment has at least one ready pod, on both
// hubs.
type backupOperatorPresenceValidator struct{}

func (backupOperatorPresenceValidator) Name() string   { return "backup-operator-presence" }
func (backupOperatorPresenceValidator) Critical() bool { return true }

func (backupOperatorPresenceValidator) Run(ctx context.Context, deps Dependencies) Result {
	name := "backup-operator-presence"
	for _, hp := range []struct {
		label string
		gw    *hub.Gateway
	}{{"primary", deps.Primary}, {"secondary", deps.Secondary}} {
		exists, err := hp.gw.NamespaceExists(ctx, deps.BackupNamespace)
		if err != nil {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("checking OADP namespace on %s: %v", hp.label, err)}
		}
		if !exists {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("OADP namespace %q absent on %s", deps.BackupNamespace, hp.label)}
		}
		pods, err := hp.gw.ListPods(ctx, deps.BackupNamespace, "app.kubernetes.io/name=velero")
		if err != nil {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("listing velero pods on %s: %v", hp.label, err)}
		}
		ready := 0
		for _, p := range pods {
			if p.Ready {
				ready++
			}
		}
		if ready == 0 {
			return Result{Name: name, Critical: true, Message: fmt.Sprintf("no ready velero pod on %s", hp.label)}
		}
	}
	return Result{Name: name, Passed: true, Critical: true, Message: "velero workload healthy on both hubs"}
}
