package hub

import (
	"time"

	corev1 "k8s.io/api/core/v1"
)

// NamespaceSnapshot is the typed read-only view get_namespace returns.
type NamespaceSnapshot struct {
	Name   string
	Phase  corev1.NamespacePhase
	Labels map[string]string
}

// Absent names the absent-marker concept for reads that find no such
// object. Gateway reads report absence through the bool half of their
// (value, found, error) results rather than by returning this type.
// Spec.md §4.2: "404 on reads returns an absent marker, never an
// exception".
type Absent struct{}

// SecretSnapshot is the typed read-only view get_secret returns.
type SecretSnapshot struct {
	Name      string
	Namespace string
	Data      map[string][]byte
}

// ConfigMapSnapshot is the typed read-only view get_configmap returns.
type ConfigMapSnapshot struct {
	Name      string
	Namespace string
	Data      map[string]string
}

// CRRef addresses a single custom resource. Kind stands in for the
// spec's (group, version, plural) triple: the gateway resolves Kind via
// the REST mapper exactly as controller-runtime's typed and unstructured
// clients already do, which is the idiomatic Go equivalent of walking a
// plural-to-kind discovery map by hand.
type CRRef struct {
	Group     string
	Version   string
	Kind      string
	Name      string
	Namespace string // empty for cluster-scoped resources
}

// PatchResult reports the resourceVersion observed before and after a
// patch, used by activation verification (spec.md §4.5.2).
type PatchResult struct {
	ResourceVersionBefore string
	ResourceVersionAfter  string
}

// PodSnapshot is a read-only summary of a pod used by list_pods callers.
type PodSnapshot struct {
	Name      string
	Namespace string
	Phase     corev1.PodPhase
	Ready     bool
}

// DeleteOptions configures DeleteCustomResource.
type DeleteOptions struct {
	Timeout time.Duration
}

// ListOptions configures ListCustomResource calls.
type ListOptions struct {
	LabelSelector string
	// MaxItems bounds the number of items returned across all pages; 0
	// means unbounded. Pagination over `continue` tokens is transparent
	// to the caller either way (spec.md §4.2).
	MaxItems int
}
