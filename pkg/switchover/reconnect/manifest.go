package reconnect

import "bytes"

// splitYAMLDocuments splits a multi-document YAML manifest on "---"
// document separators. Kept deliberately simple: import manifests ACM
// generates are well-formed, newline-separated document streams, not
// arbitrary YAML requiring a full scanner.
func splitYAMLDocuments(manifest []byte) [][]byte {
	parts := bytes.Split(manifest, []byte("\n---"))
	out := make([][]byte, 0, len(parts))
	for _, p := range parts {
		trimmed := bytes.TrimSpace(bytes.TrimPrefix(p, []byte("---")))
		if len(trimmed) > 0 {
			out = append(out, trimmed)
		}
	}
	return out
}
