package phases

import (
	"encoding/json"
	"testing"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func TestCompareDottedVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"2.12.0", "2.12.0", 0},
		{"2.11", "2.12", -1},
		{"2.12", "2.11", 1},
		{"2.14.3", "2.14", 1},
		{"2.9", "2.10", -1},
		{"2.14.0-rc1", "2.14.0", 0},
	}
	for _, c := range cases {
		if got := compareDottedVersions(c.a, c.b); got != c.want {
			t.Errorf("compareDottedVersions(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestMergePatchAnnotationSet(t *testing.T) {
	raw, err := mergePatchAnnotation("import.open-cluster-management.io/immediate-import", "")
	if err != nil {
		t.Fatalf("mergePatchAnnotation: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal patch: %v", err)
	}
	annotations := decoded["metadata"].(map[string]interface{})["annotations"].(map[string]interface{})
	if annotations["import.open-cluster-management.io/immediate-import"] != "" {
		t.Errorf("unexpected patch body: %s", raw)
	}
}

func TestMergePatchAnnotationClear(t *testing.T) {
	raw, err := mergePatchAnnotation("import.open-cluster-management.io/disable-auto-import", nil)
	if err != nil {
		t.Fatalf("mergePatchAnnotation: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal patch: %v", err)
	}
	annotations := decoded["metadata"].(map[string]interface{})["annotations"].(map[string]interface{})
	if v, ok := annotations["import.open-cluster-management.io/disable-auto-import"]; !ok || v != nil {
		t.Errorf("expected a null-valued key in the merge patch, got %v (present=%v)", v, ok)
	}
}

func TestConditionTrue(t *testing.T) {
	obj := unstructured.Unstructured{Object: map[string]interface{}{
		"status": map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{"type": "ManagedClusterJoined", "status": "True"},
				map[string]interface{}{"type": "ManagedClusterConditionAvailable", "status": "False"},
			},
		},
	}}
	if !conditionTrue(obj, "ManagedClusterJoined") {
		t.Error("expected ManagedClusterJoined to be True")
	}
	if conditionTrue(obj, "ManagedClusterConditionAvailable") {
		t.Error("expected ManagedClusterConditionAvailable to be False")
	}
	if conditionTrue(obj, "NoSuchCondition") {
		t.Error("expected an absent condition type to report false")
	}
}

func TestHasAnnotation(t *testing.T) {
	obj := unstructured.Unstructured{}
	obj.SetAnnotations(map[string]string{"import.open-cluster-management.io/disable-auto-import": ""})

	if !hasAnnotation(obj, "import.open-cluster-management.io/disable-auto-import") {
		t.Error("expected annotation to be present")
	}
	if hasAnnotation(obj, "does-not-exist") {
		t.Error("expected missing annotation to report false")
	}

	var empty unstructured.Unstructured
	if hasAnnotation(empty, "anything") {
		t.Error("expected an object with no annotations map to report false")
	}
}
