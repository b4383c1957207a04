package hub

import (
	"bytes"
	"encoding/json"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"sigs.k8s.io/yaml"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/xerrors"
)

func parseSelector(raw string) (labels.Selector, error) {
	return labels.Parse(raw)
}

// mergePatchForData builds a `{"data": {...}}` JSON merge-patch body that
// replaces exactly the given keys, leaving any other existing key alone
// (spec.md §4.2 create_or_patch_configmap semantics).
func mergePatchForData(data map[string]string) ([]byte, error) {
	return json.Marshal(map[string]interface{}{"data": data})
}

// decodeUnstructuredDocuments splits a multi-document YAML manifest and
// decodes each document into an unstructured.Unstructured, via
// sigs.k8s.io/yaml's YAML-to-JSON conversion (the same round-trip
// controller-runtime's own YAML serializer uses internally).
func decodeUnstructuredDocuments(manifest []byte) ([]unstructured.Unstructured, error) {
	var out []unstructured.Unstructured
	for _, raw := range bytes.Split(manifest, []byte("\n---")) {
		trimmed := bytes.TrimSpace(bytes.TrimPrefix(raw, []byte("---")))
		if len(trimmed) == 0 {
			continue
		}
		jsonBytes, err := yaml.YAMLToJSON(trimmed)
		if err != nil {
			return nil, xerrors.Fatal(err, "convert manifest document to JSON")
		}
		var obj map[string]interface{}
		if err := json.Unmarshal(jsonBytes, &obj); err != nil {
			return nil, xerrors.Fatal(err, "decode manifest document")
		}
		if len(obj) == 0 {
			continue
		}
		out = append(out, unstructured.Unstructured{Object: obj})
	}
	return out, nil
}
