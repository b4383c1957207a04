package validate

import (
	"context"
	"os"
	"testing"

	"github.com/go-logr/logr"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/hub"
)

func registerUnstructuredKind(sch *runtime.Scheme, group, version, kind string) {
	gvk := schema.GroupVersionKind{Group: group, Version: version, Kind: kind}
	listGVK := schema.GroupVersionKind{Group: group, Version: version, Kind: kind + "List"}
	sch.AddKnownTypeWithName(gvk, &unstructured.Unstructured{})
	sch.AddKnownTypeWithName(listGVK, &unstructured.UnstructuredList{})
}

func newValidateTestGateway(t *testing.T, objs ...runtime.Object) *hub.Gateway {
	t.Helper()
	sch := runtime.NewScheme()
	if err := scheme.AddToScheme(sch); err != nil {
		t.Fatalf("add to scheme: %v", err)
	}
	registerUnstructuredKind(sch, multiClusterHubGroup, multiClusterHubVer, multiClusterHubKind)
	registerUnstructuredKind(sch, veleroGroup, veleroVer, backupKind)
	registerUnstructuredKind(sch, veleroGroup, veleroVer, bslKind)
	registerUnstructuredKind(sch, dpaGroup, dpaVer, dpaKind)
	registerUnstructuredKind(sch, managedClusterGroup, managedClusterVer, managedClusterKind)
	registerUnstructuredKind(sch, clusterDeploymentGroup, clusterDeploymentVer, clusterDeploymentKind)
	registerUnstructuredKind(sch, acmBackupGroup, acmBackupVer, backupScheduleKind)
	registerUnstructuredKind(sch, acmBackupGroup, acmBackupVer, restoreKind)
	registerUnstructuredKind(sch, clusterOperatorGroup, clusterOperatorVer, clusterOperatorKind)
	registerUnstructuredKind(sch, clusterOperatorGroup, clusterOperatorVer, clusterVersionKind)
	registerUnstructuredKind(sch, "", "v1", "Node")

	c := fake.NewClientBuilder().WithScheme(sch).WithRuntimeObjects(objs...).Build()
	return hub.NewGatewayForTesting(c, false, logr.Discard())
}

func newMultiClusterHub(namespace, version string) *unstructured.Unstructured {
	u := &unstructured.Unstructured{}
	u.SetGroupVersionKind(schema.GroupVersionKind{Group: multiClusterHubGroup, Version: multiClusterHubVer, Kind: multiClusterHubKind})
	u.SetName("multiclusterhub")
	u.SetNamespace(namespace)
	_ = unstructured.SetNestedField(u.Object, version, "status", "currentVersion")
	return u
}

func TestNamespaceExistenceValidatorPassesWhenBothPresent(t *testing.T) {
	g := newValidateTestGateway(t,
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "open-cluster-management"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "open-cluster-management-backup"}},
	)
	deps := Dependencies{Primary: g, Secondary: g, ACMNamespace: "open-cluster-management", BackupNamespace: "open-cluster-management-backup"}

	result := namespaceExistenceValidator{}.Run(context.Background(), deps)
	if !result.Passed {
		t.Errorf("expected pass, got %+v", result)
	}
}

func TestNamespaceExistenceValidatorFailsWhenMissing(t *testing.T) {
	g := newValidateTestGateway(t, &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "open-cluster-management"}})
	deps := Dependencies{Primary: g, Secondary: g, ACMNamespace: "open-cluster-management", BackupNamespace: "open-cluster-management-backup"}

	result := namespaceExistenceValidator{}.Run(context.Background(), deps)
	if result.Passed {
		t.Error("expected failure when backup namespace is missing")
	}
	if !result.Critical {
		t.Error("namespace existence must be critical")
	}
}

func TestACMVersionValidatorMatch(t *testing.T) {
	primary := newValidateTestGateway(t, newMultiClusterHub("open-cluster-management", "2.12.7"))
	secondary := newValidateTestGateway(t, newMultiClusterHub("open-cluster-management", "2.12.7"))
	deps := Dependencies{Primary: primary, Secondary: secondary, ACMNamespace: "open-cluster-management"}

	result := acmVersionValidator{}.Run(context.Background(), deps)
	if !result.Passed {
		t.Errorf("expected matching versions to pass, got %+v", result)
	}
}

func TestACMVersionValidatorMismatch(t *testing.T) {
	primary := newValidateTestGateway(t, newMultiClusterHub("open-cluster-management", "2.12.7"))
	secondary := newValidateTestGateway(t, newMultiClusterHub("open-cluster-management", "2.11.4"))
	deps := Dependencies{Primary: primary, Secondary: secondary, ACMNamespace: "open-cluster-management"}

	result := acmVersionValidator{}.Run(context.Background(), deps)
	if result.Passed {
		t.Error("expected mismatched versions to fail")
	}
}

func TestClusterDeploymentPreservationValidator(t *testing.T) {
	good := &unstructured.Unstructured{}
	good.SetGroupVersionKind(schema.GroupVersionKind{Group: clusterDeploymentGroup, Version: clusterDeploymentVer, Kind: clusterDeploymentKind})
	good.SetName("prod1")
	good.SetNamespace("prod1")
	_ = unstructured.SetNestedField(good.Object, true, "spec", "preserveOnDelete")

	bad := &unstructured.Unstructured{}
	bad.SetGroupVersionKind(schema.GroupVersionKind{Group: clusterDeploymentGroup, Version: clusterDeploymentVer, Kind: clusterDeploymentKind})
	bad.SetName("prod2")
	bad.SetNamespace("prod2")
	_ = unstructured.SetNestedField(bad.Object, false, "spec", "preserveOnDelete")

	g := newValidateTestGateway(t, good, bad)
	deps := Dependencies{Primary: g, Secondary: g}

	result := clusterDeploymentPreservationValidator{}.Run(context.Background(), deps)
	if result.Passed {
		t.Error("expected failure due to clusterdeployment without preserveOnDelete")
	}
}

func TestCompareDottedVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"2.14.0", "2.14", 0},
		{"2.12.7", "2.14", -1},
		{"2.15.1", "2.14", 1},
		{"2.14.0-rc1", "2.14", 0},
	}
	for _, c := range cases {
		got := compareDottedVersions(c.a, c.b)
		if (got < 0) != (c.want < 0) || (got > 0) != (c.want > 0) || (got == 0) != (c.want == 0) {
			t.Errorf("compareDottedVersions(%q, %q) = %d, want sign of %d", c.a, c.b, got, c.want)
		}
	}
}

func TestKubeconfigSizeValidatorRejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/kubeconfig"
	if err := os.WriteFile(path, make([]byte, 100), 0o600); err != nil {
		t.Fatalf("write test kubeconfig: %v", err)
	}
	deps := Dependencies{KubeconfigPath: path, MaxKubeconfigBytes: 50}

	result := kubeconfigSizeValidator{}.Run(context.Background(), deps)
	if result.Passed {
		t.Error("expected oversized kubeconfig to fail")
	}
}

func TestKubeconfigSizeValidatorAcceptsWithinCeiling(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/kubeconfig"
	if err := os.WriteFile(path, make([]byte, 100), 0o600); err != nil {
		t.Fatalf("write test kubeconfig: %v", err)
	}
	deps := Dependencies{KubeconfigPath: path, MaxKubeconfigBytes: 1024}

	result := kubeconfigSizeValidator{}.Run(context.Background(), deps)
	if !result.Passed {
		t.Errorf("expected file within ceiling to pass, got %+v", result)
	}
}

func TestCoordinatorBlocksOnCriticalFailure(t *testing.T) {
	coordinator := NewCoordinator(
		fakeValidator{name: "ok", passed: true, critical: true},
		fakeValidator{name: "bad-critical", passed: false, critical: true},
		fakeValidator{name: "bad-warning", passed: false, critical: false},
	)
	report := coordinator.Run(context.Background(), Dependencies{})
	if !report.Blocked {
		t.Error("expected report to be blocked by the critical failure")
	}
	if len(report.FailedWarnings()) != 1 || report.FailedWarnings()[0] != "bad-warning" {
		t.Errorf("unexpected warnings: %v", report.FailedWarnings())
	}
	if len(report.FailedCritical()) != 1 || report.FailedCritical()[0] != "bad-critical" {
		t.Errorf("unexpected critical failures: %v", report.FailedCritical())
	}
}

func TestCoordinatorNotBlockedByWarningsAlone(t *testing.T) {
	coordinator := NewCoordinator(
		fakeValidator{name: "ok", passed: true, critical: true},
		fakeValidator{name: "bad-warning", passed: false, critical: false},
	)
	report := coordinator.Run(context.Background(), Dependencies{})
	if report.Blocked {
		t.Error("non-critical failures alone must not block")
	}
}

type fakeValidator struct {
	name     string
	passed   bool
	critical bool
}

func (f fakeValidator) Name() string   { return f.name }
func (f fakeValidator) Critical() bool { return f.critical }
func (f fakeValidator) Run(context.Context, Dependencies) Result {
	return Result{Name: f.name, Passed: f.passed, Critical: f.critical}
}

