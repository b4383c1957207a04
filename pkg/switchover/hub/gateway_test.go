package hub

import (
	"context"
	"testing"

	"github.com/go-logr/logr"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func newTestGateway(t *testing.T, dryRun bool, objs ...runtime.Object) *Gateway {
	t.Helper()
	sch := runtime.NewScheme()
	if err := scheme.AddToScheme(sch); err != nil {
		t.Fatalf("add to scheme: %v", err)
	}
	c := fake.NewClientBuilder().WithScheme(sch).WithRuntimeObjects(objs...).Build()
	return NewGatewayForTesting(c, dryRun, logr.Discard())
}

func TestGetNamespaceFoundAndAbsent(t *testing.T) {
	g := newTestGateway(t, false, &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: "open-cluster-management-backup", Labels: map[string]string{"team": "acm"}},
		Status:     corev1.NamespaceStatus{Phase: corev1.NamespaceActive},
	})

	ns, found, err := g.GetNamespace(context.Background(), "open-cluster-management-backup")
	if err != nil {
		t.Fatalf("GetNamespace: %v", err)
	}
	if !found || ns.Phase != corev1.NamespaceActive || ns.Labels["team"] != "acm" {
		t.Errorf("unexpected namespace snapshot: %+v found=%v", ns, found)
	}

	exists, err := g.NamespaceExists(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("NamespaceExists: %v", err)
	}
	if exists {
		t.Error("expected namespace to be absent")
	}
}

func TestSecretExistsComposesOnGetSecret(t *testing.T) {
	g := newTestGateway(t, false, &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "bootstrap-hub-kubeconfig", Namespace: "open-cluster-management-agent"},
		Data:       map[string][]byte{"kubeconfig": []byte("dGVzdA==")},
	})

	exists, err := g.SecretExists(context.Background(), "open-cluster-management-agent", "bootstrap-hub-kubeconfig")
	if err != nil || !exists {
		t.Fatalf("expected secret to exist, err=%v exists=%v", err, exists)
	}

	missing, err := g.SecretExists(context.Background(), "open-cluster-management-agent", "nope")
	if err != nil || missing {
		t.Fatalf("expected secret to be absent, err=%v exists=%v", err, missing)
	}
}

func TestConfigMapCreateOrPatchThenDelete(t *testing.T) {
	g := newTestGateway(t, false)

	if err := g.CreateOrPatchConfigMap(context.Background(), "default", "switchover-meta", map[string]string{"phase": "PREFLIGHT"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	cm, found, err := g.GetConfigMap(context.Background(), "default", "switchover-meta")
	if err != nil || !found || cm.Data["phase"] != "PREFLIGHT" {
		t.Fatalf("unexpected configmap after create: %+v found=%v err=%v", cm, found, err)
	}

	if err := g.CreateOrPatchConfigMap(context.Background(), "default", "switchover-meta", map[string]string{"phase": "ACTIVATION"}); err != nil {
		t.Fatalf("patch: %v", err)
	}
	cm, found, err = g.GetConfigMap(context.Background(), "default", "switchover-meta")
	if err != nil || !found || cm.Data["phase"] != "ACTIVATION" {
		t.Fatalf("unexpected configmap after patch: %+v found=%v err=%v", cm, found, err)
	}

	if err := g.DeleteConfigMap(context.Background(), "default", "switchover-meta"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := g.DeleteConfigMap(context.Background(), "default", "switchover-meta"); err != nil {
		t.Fatalf("delete of already-absent configmap should succeed: %v", err)
	}
}

func TestDryRunConfigMapCreateIsNoop(t *testing.T) {
	g := newTestGateway(t, true)

	if err := g.CreateOrPatchConfigMap(context.Background(), "default", "switchover-meta", map[string]string{"phase": "PREFLIGHT"}); err != nil {
		t.Fatalf("dry-run create: %v", err)
	}
	_, found, err := g.GetConfigMap(context.Background(), "default", "switchover-meta")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Error("dry-run create should not have created the configmap")
	}
}

func TestListPodsReportsReadiness(t *testing.T) {
	readyPod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "klusterlet-0", Namespace: "open-cluster-management-agent", Labels: map[string]string{"app": "klusterlet"}},
		Status: corev1.PodStatus{
			Phase:      corev1.PodRunning,
			Conditions: []corev1.PodCondition{{Type: corev1.PodReady, Status: corev1.ConditionTrue}},
		},
	}
	notReadyPod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: "klusterlet-1", Namespace: "open-cluster-management-agent", Labels: map[string]string{"app": "klusterlet"}},
		Status:     corev1.PodStatus{Phase: corev1.PodPending},
	}
	g := newTestGateway(t, false, readyPod, notReadyPod)

	pods, err := g.ListPods(context.Background(), "open-cluster-management-agent", "app=klusterlet")
	if err != nil {
		t.Fatalf("ListPods: %v", err)
	}
	if len(pods) != 2 {
		t.Fatalf("expected 2 pods, got %d", len(pods))
	}
	var readyCount int
	for _, p := range pods {
		if p.Ready {
			readyCount++
		}
	}
	if readyCount != 1 {
		t.Errorf("expected exactly 1 ready pod, got %d", readyCount)
	}
}

func TestCustomResourceGetPatchDelete(t *testing.T) {
	existing := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "acm-backup-schedule", Namespace: "open-cluster-management-backup"},
		Data:       map[string]string{"state": "Enabled"},
	}
	g := newTestGateway(t, false, existing)

	ref := CRRef{Group: "", Version: "v1", Kind: "ConfigMap", Name: "acm-backup-schedule", Namespace: "open-cluster-management-backup"}

	u, found, err := g.GetCustomResource(context.Background(), ref)
	if err != nil || !found {
		t.Fatalf("GetCustomResource: found=%v err=%v", found, err)
	}
	if u.GetName() != "acm-backup-schedule" {
		t.Errorf("unexpected name: %s", u.GetName())
	}

	result, err := g.PatchCustomResource(context.Background(), ref, []byte(`{"data":{"state":"Paused"}}`))
	if err != nil {
		t.Fatalf("PatchCustomResource: %v", err)
	}
	if result.ResourceVersionBefore == "" {
		t.Error("expected non-empty resourceVersion before patch")
	}

	if err := g.DeleteCustomResource(context.Background(), ref, DeleteOptions{}); err != nil {
		t.Fatalf("DeleteCustomResource: %v", err)
	}
	if err := g.DeleteCustomResource(context.Background(), ref, DeleteOptions{}); err != nil {
		t.Fatalf("delete of already-absent CR should succeed: %v", err)
	}
}

func TestPatchCustomResourceNotFound(t *testing.T) {
	g := newTestGateway(t, false)
	ref := CRRef{Group: "", Version: "v1", Kind: "ConfigMap", Name: "missing", Namespace: "default"}

	if _, err := g.PatchCustomResource(context.Background(), ref, []byte(`{}`)); err == nil {
		t.Error("expected error patching a nonexistent resource")
	}
}

func TestDryRunCustomResourceDeleteIsNoop(t *testing.T) {
	existing := &corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Name: "keep-me", Namespace: "default"}}
	g := newTestGateway(t, true, existing)
	ref := CRRef{Group: "", Version: "v1", Kind: "ConfigMap", Name: "keep-me", Namespace: "default"}

	if err := g.DeleteCustomResource(context.Background(), ref, DeleteOptions{}); err != nil {
		t.Fatalf("dry-run delete: %v", err)
	}
	_, found, err := g.GetCustomResource(context.Background(), ref)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Error("dry-run delete should not have removed the resource")
	}
}
