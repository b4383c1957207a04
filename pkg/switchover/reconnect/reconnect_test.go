package reconnect

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/hub"
)

func newTestGateway(t *testing.T, objs ...runtime.Object) *hub.Gateway {
	t.Helper()
	sch := runtime.NewScheme()
	if err := scheme.AddToScheme(sch); err != nil {
		t.Fatalf("add to scheme: %v", err)
	}
	c := fake.NewClientBuilder().WithScheme(sch).WithRuntimeObjects(objs...).Build()
	return hub.NewGatewayForTesting(c, false, logr.Discard())
}

func agentSeedObjects() []runtime.Object {
	return []runtime.Object{
		&appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: "klusterlet", Namespace: "open-cluster-management-agent"}},
	}
}

const testImportManifest = `apiVersion: v1
kind: Secret
metadata:
  name: bootstrap-hub-kubeconfig
  namespace: open-cluster-management-agent
data:
  kubeconfig: dGVzdA==
`

func TestRunIsolatesSiblingFailures(t *testing.T) {
	r := &Reconnector{
		NewHub: newTestGateway(t),
		GatewayFactory: func(ctx context.Context, clusterName string) (*hub.Gateway, error) {
			if clusterName == "cluster-bad" {
				return nil, errors.New("no kubeconfig context for cluster-bad")
			}
			return newTestGateway(t, agentSeedObjects()...), nil
		},
		FetchManifest: func(ctx context.Context, newHub *hub.Gateway, clusterName string) ([]byte, error) {
			return []byte(testImportManifest), nil
		},
		PoolSize: 2,
		Logger:   logr.Discard(),
	}

	clusters := []string{"cluster-a", "cluster-bad", "cluster-c"}
	outcomes := r.Run(context.Background(), clusters)

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}

	byName := map[string]Outcome{}
	for _, o := range outcomes {
		byName[o.ClusterName] = o
	}

	if !byName["cluster-a"].Repaired || byName["cluster-a"].Err != nil {
		t.Errorf("cluster-a should have been repaired: %+v", byName["cluster-a"])
	}
	if !byName["cluster-c"].Repaired || byName["cluster-c"].Err != nil {
		t.Errorf("cluster-c should have been repaired: %+v", byName["cluster-c"])
	}
	if byName["cluster-bad"].Repaired || byName["cluster-bad"].Err == nil {
		t.Errorf("cluster-bad should have failed without affecting siblings: %+v", byName["cluster-bad"])
	}
}

func TestSplitYAMLDocuments(t *testing.T) {
	manifest := []byte("a: 1\n---\nb: 2\n---\n\n---\nc: 3\n")
	docs := splitYAMLDocuments(manifest)
	if len(docs) != 3 {
		t.Fatalf("expected 3 non-empty documents, got %d: %q", len(docs), docs)
	}
}

func TestDecodeManifestDocuments(t *testing.T) {
	docs, err := decodeManifestDocuments([]byte(testImportManifest))
	if err != nil {
		t.Fatalf("decodeManifestDocuments: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
	meta, ok := docs[0]["metadata"].(map[string]interface{})
	if !ok || meta["name"] != "bootstrap-hub-kubeconfig" {
		t.Errorf("unexpected decoded document: %+v", docs[0])
	}
}

func TestDecodeManifestDocumentsRejectsInvalidYAML(t *testing.T) {
	if _, err := decodeManifestDocuments([]byte("not: [valid\n")); err == nil {
		t.Error("expected an error decoding malformed YAML")
	}
}
