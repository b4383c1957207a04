// Package hub implements the Hub API Gateway (spec.md §4.2, C1): typed,
// retry-wrapped, dry-run-aware access to one hub's Kubernetes API.
//
// Grounded on github.com/openshift/hypershift's cmd/oadp/restore.go
// (unstructured + controller-runtime client for arbitrary CRs) and
// availability-prober/availability_prober.go (building a client from an
// explicit kubeconfig + context, per-handle TLS policy).
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	appsv1 "k8s.io/api/apps/v1"
	authorizationv1 "k8s.io/api/authorization/v1"
	autoscalingv1 "k8s.io/api/autoscaling/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/clientcmd"
	crclient "sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/xerrors"
)

// Config describes one hub connection. Two instances exist per process
// (primary, secondary); nothing here is process-global (spec.md §3 "Hub
// handle", §5 "TLS configuration is per-handle").
type Config struct {
	// ContextName is the kubeconfig context identifying this hub.
	ContextName string
	// KubeconfigPath is the kubeconfig file to load ContextName from. If
	// empty, the default loading rules (KUBECONFIG env, ~/.kube/config)
	// are used.
	KubeconfigPath string
	// VerifyHostname controls TLS hostname verification for this handle
	// only. Defaults to true.
	VerifyHostname *bool
	// Timeout is the default per-call read timeout. Defaults to 30s.
	Timeout time.Duration
	// DryRun, when true, makes every mutating operation a no-op that
	// logs the intended change and returns success. Reads always
	// execute (spec.md §4.2).
	DryRun bool
	Logger logr.Logger
}

// Gateway is one hub's typed, retried, dry-run-aware API surface.
type Gateway struct {
	client      crclient.Client
	contextName string
	timeout     time.Duration
	dryRun      bool
	logger      logr.Logger
}

// NewGateway builds a Gateway for one hub from Config. Each Gateway owns
// its client exclusively; no state is shared between hubs in the same
// process (spec.md §3 "Ownership semantics").
func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.ContextName == "" {
		return nil, xerrors.Validation("hub config requires a non-empty context name")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if cfg.KubeconfigPath != "" {
		loadingRules.ExplicitPath = cfg.KubeconfigPath
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: cfg.ContextName}
	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
	if err != nil {
		return nil, xerrors.Fatal(err, "load kubeconfig context %q", cfg.ContextName)
	}

	restConfig.Timeout = timeout
	restConfig.QPS = 50
	restConfig.Burst = 100

	verifyHostname := true
	if cfg.VerifyHostname != nil {
		verifyHostname = *cfg.VerifyHostname
	}
	if !verifyHostname {
		// Per-handle only: this mutates the *Config for this hub's
		// client construction, never a package-level TLS default.
		restConfig.TLSClientConfig.Insecure = true
		restConfig.TLSClientConfig.CAData = nil
		restConfig.TLSClientConfig.CAFile = ""
	}

	sch := runtime.NewScheme()
	if err := scheme.AddToScheme(sch); err != nil {
		return nil, xerrors.Fatal(err, "build client scheme")
	}

	c, err := crclient.New(restConfig, crclient.Options{Scheme: sch})
	if err != nil {
		return nil, xerrors.Fatal(err, "construct client for context %q", cfg.ContextName)
	}

	return &Gateway{
		client:      c,
		contextName: cfg.ContextName,
		timeout:     timeout,
		dryRun:      cfg.DryRun,
		logger:      cfg.Logger.WithValues("hub", cfg.ContextName),
	}, nil
}

// NewGatewayForTesting builds a Gateway around an already-constructed
// client.Client, bypassing kubeconfig loading. Exported so other
// packages' tests (e.g. pkg/switchover/validate, pkg/switchover/phases)
// can inject a fake client (sigs.k8s.io/controller-runtime/pkg/client/fake)
// without going through a real kubeconfig.
func NewGatewayForTesting(c crclient.Client, dryRun bool, logger logr.Logger) *Gateway {
	return &Gateway{
		client:      c,
		contextName: "test",
		timeout:     30 * time.Second,
		dryRun:      dryRun,
		logger:      logger,
	}
}

// DryRun reports whether this gateway is in dry-run mode.
func (g *Gateway) DryRun() bool { return g.dryRun }

// ContextName returns the kubeconfig context this gateway is bound to.
func (g *Gateway) ContextName() string { return g.contextName }

func (g *Gateway) ctxWithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.timeout)
}

// logDryRun is the single `if dry_run` decision point for every mutating
// method (spec.md §9 design note: "no reflection over attribute graphs").
func (g *Gateway) logDryRun(action string, keysAndValues ...interface{}) {
	g.logger.Info("dry-run: "+action, keysAndValues...)
}

// --- Namespaces ---------------------------------------------------------

func (g *Gateway) GetNamespace(ctx context.Context, name string) (*NamespaceSnapshot, bool, error) {
	ctx, cancel := g.ctxWithTimeout(ctx)
	defer cancel()

	var ns corev1.Namespace
	err := withRetry(ctx, fmt.Sprintf("get namespace %s", name), func(ctx context.Context) error {
		return g.client.Get(ctx, crclient.ObjectKey{Name: name}, &ns)
	})
	if apierrors.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &NamespaceSnapshot{Name: ns.Name, Phase: ns.Status.Phase, Labels: ns.Labels}, true, nil
}

// NamespaceExists composes on GetNamespace without an additional retry
// wrapper (spec.md §4.2: "does not wrap with retry; composes on the
// get" — the documented anti-pattern of nested retry, §9, is avoided
// because GetNamespace already applied withRetry exactly once).
func (g *Gateway) NamespaceExists(ctx context.Context, name string) (bool, error) {
	_, found, err := g.GetNamespace(ctx, name)
	return found, err
}

// --- Generic custom resources -------------------------------------------

func (g *Gateway) newUnstructured(ref CRRef) *unstructured.Unstructured {
	u := &unstructured.Unstructured{}
	u.SetGroupVersionKind(schema.GroupVersionKind{Group: ref.Group, Version: ref.Version, Kind: ref.Kind})
	return u
}

func (g *Gateway) GetCustomResource(ctx context.Context, ref CRRef) (*unstructured.Unstructured, bool, error) {
	ctx, cancel := g.ctxWithTimeout(ctx)
	defer cancel()

	u := g.newUnstructured(ref)
	err := withRetry(ctx, fmt.Sprintf("get %s/%s %s", ref.Group, ref.Kind, ref.Name), func(ctx context.Context) error {
		return g.client.Get(ctx, crclient.ObjectKey{Name: ref.Name, Namespace: ref.Namespace}, u)
	})
	if apierrors.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return u, true, nil
}

// ListCustomResource lists matching resources, transparently following
// `continue` tokens until exhausted or opts.MaxItems is reached (spec.md
// §4.2, §9 "expose both bulk list(max_items=N) and streaming iter_()").
func (g *Gateway) ListCustomResource(ctx context.Context, group, version, kind, namespace string, opts ListOptions) ([]unstructured.Unstructured, error) {
	ctx, cancel := g.ctxWithTimeout(ctx)
	defer cancel()

	gvk := schema.GroupVersionKind{Group: group, Version: version, Kind: kind + "List"}

	var out []unstructured.Unstructured
	continueToken := ""
	for {
		list := &unstructured.UnstructuredList{}
		list.SetGroupVersionKind(gvk)

		listOpts := []crclient.ListOption{crclient.InNamespace(namespace)}
		if opts.LabelSelector != "" {
			selector, err := parseSelector(opts.LabelSelector)
			if err != nil {
				return nil, xerrors.Validation("invalid label selector %q: %v", opts.LabelSelector, err)
			}
			listOpts = append(listOpts, &crclient.ListOptions{LabelSelector: selector})
		}
		if continueToken != "" {
			listOpts = append(listOpts, crclient.Continue(continueToken))
		}

		err := withRetry(ctx, fmt.Sprintf("list %s/%s in %s", group, kind, namespace), func(ctx context.Context) error {
			return g.client.List(ctx, list, listOpts...)
		})
		if err != nil {
			return nil, err
		}

		out = append(out, list.Items...)
		if opts.MaxItems > 0 && len(out) >= opts.MaxItems {
			return out[:opts.MaxItems], nil
		}

		continueToken = list.GetContinue()
		if continueToken == "" {
			return out, nil
		}
	}
}

// PatchCustomResource applies patch (a JSON merge-patch body) to the
// named resource and reports the resourceVersion before and after, for
// activation verification (spec.md §4.5.2). CRDs served by the
// Kubernetes API do not support true strategic-merge-patch semantics
// (that requires generated merge keys only built-in types have); a JSON
// merge patch is the closest equivalent and is what kubectl itself falls
// back to for custom resources.
func (g *Gateway) PatchCustomResource(ctx context.Context, ref CRRef, patch []byte) (*PatchResult, error) {
	ctx, cancel := g.ctxWithTimeout(ctx)
	defer cancel()

	before, found, err := g.GetCustomResource(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, xerrors.Fatal(nil, "patch %s/%s %s: not found", ref.Group, ref.Kind, ref.Name)
	}
	rvBefore := before.GetResourceVersion()

	if g.dryRun {
		g.logDryRun("patch custom resource", "group", ref.Group, "kind", ref.Kind, "name", ref.Name, "patch", string(patch))
		return &PatchResult{ResourceVersionBefore: rvBefore, ResourceVersionAfter: rvBefore}, nil
	}

	target := g.newUnstructured(ref)
	target.SetName(ref.Name)
	target.SetNamespace(ref.Namespace)

	err = withRetry(ctx, fmt.Sprintf("patch %s/%s %s", ref.Group, ref.Kind, ref.Name), func(ctx context.Context) error {
		return g.client.Patch(ctx, target, crclient.RawPatch(types.MergePatchType, patch))
	})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return nil, xerrors.Fatal(err, "patch %s/%s %s: not found", ref.Group, ref.Kind, ref.Name)
		}
		return nil, err
	}

	return &PatchResult{ResourceVersionBefore: rvBefore, ResourceVersionAfter: target.GetResourceVersion()}, nil
}

func (g *Gateway) CreateCustomResource(ctx context.Context, obj *unstructured.Unstructured) error {
	ctx, cancel := g.ctxWithTimeout(ctx)
	defer cancel()

	if g.dryRun {
		g.logDryRun("create custom resource", "kind", obj.GetKind(), "name", obj.GetName(), "namespace", obj.GetNamespace())
		return nil
	}

	err := withRetry(ctx, fmt.Sprintf("create %s %s", obj.GetKind(), obj.GetName()), func(ctx context.Context) error {
		return g.client.Create(ctx, obj)
	})
	if apierrors.IsNotFound(err) {
		return xerrors.Fatal(err, "create %s %s: namespace not found", obj.GetKind(), obj.GetName())
	}
	return err
}

// DeleteCustomResource deletes the named resource; 404 is treated as
// success (spec.md §4.2).
func (g *Gateway) DeleteCustomResource(ctx context.Context, ref CRRef, opts DeleteOptions) error {
	callCtx := ctx
	cancel := func() {}
	if opts.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
	} else {
		callCtx, cancel = g.ctxWithTimeout(ctx)
	}
	defer cancel()

	if g.dryRun {
		g.logDryRun("delete custom resource", "group", ref.Group, "kind", ref.Kind, "name", ref.Name, "namespace", ref.Namespace)
		return nil
	}

	target := g.newUnstructured(ref)
	target.SetName(ref.Name)
	target.SetNamespace(ref.Namespace)

	err := withRetry(callCtx, fmt.Sprintf("delete %s/%s %s", ref.Group, ref.Kind, ref.Name), func(ctx context.Context) error {
		return g.client.Delete(ctx, target)
	})
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}

// --- Scaling & rollout ---------------------------------------------------

func (g *Gateway) ScaleDeployment(ctx context.Context, namespace, name string, replicas int32) error {
	ctx, cancel := g.ctxWithTimeout(ctx)
	defer cancel()

	if g.dryRun {
		g.logDryRun("scale deployment", "namespace", namespace, "name", name, "replicas", replicas)
		return nil
	}

	dep := &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace}}
	scale := &autoscalingv1.Scale{Spec: autoscalingv1.ScaleSpec{Replicas: replicas}}
	return withRetry(ctx, fmt.Sprintf("scale deployment %s/%s", namespace, name), func(ctx context.Context) error {
		return g.client.SubResource("scale").Update(ctx, dep, crclient.WithSubResourceBody(scale))
	})
}

func (g *Gateway) ScaleStatefulSet(ctx context.Context, namespace, name string, replicas int32) error {
	ctx, cancel := g.ctxWithTimeout(ctx)
	defer cancel()

	if g.dryRun {
		g.logDryRun("scale statefulset", "namespace", namespace, "name", name, "replicas", replicas)
		return nil
	}

	sts := &appsv1.StatefulSet{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace}}
	scale := &autoscalingv1.Scale{Spec: autoscalingv1.ScaleSpec{Replicas: replicas}}
	return withRetry(ctx, fmt.Sprintf("scale statefulset %s/%s", namespace, name), func(ctx context.Context) error {
		return g.client.SubResource("scale").Update(ctx, sts, crclient.WithSubResourceBody(scale))
	})
}

// RolloutRestartDeployment annotates the pod template with a fresh
// restart marker, mirroring `kubectl rollout restart`.
func (g *Gateway) RolloutRestartDeployment(ctx context.Context, namespace, name string) error {
	ctx, cancel := g.ctxWithTimeout(ctx)
	defer cancel()

	if g.dryRun {
		g.logDryRun("rollout restart deployment", "namespace", namespace, "name", name)
		return nil
	}

	patch := fmt.Sprintf(`{"spec":{"template":{"metadata":{"annotations":{"kubectl.kubernetes.io/restartedAt":%q}}}}}`, time.Now().UTC().Format(time.RFC3339))
	dep := &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace}}
	return withRetry(ctx, fmt.Sprintf("rollout restart deployment %s/%s", namespace, name), func(ctx context.Context) error {
		return g.client.Patch(ctx, dep, crclient.RawPatch(types.MergePatchType, []byte(patch)))
	})
}

// --- Pods -----------------------------------------------------------------

func (g *Gateway) ListPods(ctx context.Context, namespace, labelSelector string) ([]PodSnapshot, error) {
	ctx, cancel := g.ctxWithTimeout(ctx)
	defer cancel()

	var pods corev1.PodList
	listOpts := []crclient.ListOption{crclient.InNamespace(namespace)}
	if labelSelector != "" {
		selector, err := parseSelector(labelSelector)
		if err != nil {
			return nil, xerrors.Validation("invalid label selector %q: %v", labelSelector, err)
		}
		listOpts = append(listOpts, &crclient.ListOptions{LabelSelector: selector})
	}

	err := withRetry(ctx, fmt.Sprintf("list pods in %s", namespace), func(ctx context.Context) error {
		return g.client.List(ctx, &pods, listOpts...)
	})
	if err != nil {
		return nil, err
	}

	out := make([]PodSnapshot, 0, len(pods.Items))
	for _, p := range pods.Items {
		ready := false
		for _, c := range p.Status.Conditions {
			if c.Type == corev1.PodReady && c.Status == corev1.ConditionTrue {
				ready = true
			}
		}
		out = append(out, PodSnapshot{Name: p.Name, Namespace: p.Namespace, Phase: p.Status.Phase, Ready: ready})
	}
	return out, nil
}

// --- Secrets & configmaps ---------------------------------------------------

func (g *Gateway) GetSecret(ctx context.Context, namespace, name string) (*SecretSnapshot, bool, error) {
	ctx, cancel := g.ctxWithTimeout(ctx)
	defer cancel()

	var s corev1.Secret
	err := withRetry(ctx, fmt.Sprintf("get secret %s/%s", namespace, name), func(ctx context.Context) error {
		return g.client.Get(ctx, crclient.ObjectKey{Name: name, Namespace: namespace}, &s)
	})
	if apierrors.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &SecretSnapshot{Name: s.Name, Namespace: s.Namespace, Data: s.Data}, true, nil
}

// SecretExists composes on GetSecret without a second retry wrapper
// (spec.md §9: forbids e.g. secret_exists wrapping get_secret where both
// retry).
func (g *Gateway) SecretExists(ctx context.Context, namespace, name string) (bool, error) {
	_, found, err := g.GetSecret(ctx, namespace, name)
	return found, err
}

func (g *Gateway) GetConfigMap(ctx context.Context, namespace, name string) (*ConfigMapSnapshot, bool, error) {
	ctx, cancel := g.ctxWithTimeout(ctx)
	defer cancel()

	var cm corev1.ConfigMap
	err := withRetry(ctx, fmt.Sprintf("get configmap %s/%s", namespace, name), func(ctx context.Context) error {
		return g.client.Get(ctx, crclient.ObjectKey{Name: name, Namespace: namespace}, &cm)
	})
	if apierrors.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &ConfigMapSnapshot{Name: cm.Name, Namespace: cm.Namespace, Data: cm.Data}, true, nil
}

func (g *Gateway) CreateOrPatchConfigMap(ctx context.Context, namespace, name string, data map[string]string) error {
	ctx, cancel := g.ctxWithTimeout(ctx)
	defer cancel()

	if g.dryRun {
		g.logDryRun("create or patch configmap", "namespace", namespace, "name", name, "data", data)
		return nil
	}

	_, found, err := g.GetConfigMap(ctx, namespace, name)
	if err != nil {
		return err
	}
	if !found {
		cm := &corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace}, Data: data}
		return withRetry(ctx, fmt.Sprintf("create configmap %s/%s", namespace, name), func(ctx context.Context) error {
			return g.client.Create(ctx, cm)
		})
	}

	cm := &corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace}}
	patchBytes, err := mergePatchForData(data)
	if err != nil {
		return xerrors.Fatal(err, "build configmap merge patch")
	}
	return withRetry(ctx, fmt.Sprintf("patch configmap %s/%s", namespace, name), func(ctx context.Context) error {
		return g.client.Patch(ctx, cm, crclient.RawPatch(types.MergePatchType, patchBytes))
	})
}

// --- Access review ---------------------------------------------------------

// ResourceAccessCheck names one permission to probe via
// SelfSubjectAccessReview.
type ResourceAccessCheck struct {
	Verb      string
	Group     string
	Resource  string
	Namespace string
}

// CheckAccess issues a SelfSubjectAccessReview for check. SelfSubjectAccessReview
// is computed synchronously by the API server and not persisted, so this
// bypasses both the retry wrapper (spec.md §4.2 anti-pattern only applies
// to idempotent reads/writes against real objects) and dry-run (it
// mutates nothing).
func (g *Gateway) CheckAccess(ctx context.Context, check ResourceAccessCheck) (bool, error) {
	ctx, cancel := g.ctxWithTimeout(ctx)
	defer cancel()

	ssar := &authorizationv1.SelfSubjectAccessReview{
		Spec: authorizationv1.SelfSubjectAccessReviewSpec{
			ResourceAttributes: &authorizationv1.ResourceAttributes{
				Verb:      check.Verb,
				Group:     check.Group,
				Resource:  check.Resource,
				Namespace: check.Namespace,
			},
		},
	}
	if err := g.client.Create(ctx, ssar); err != nil {
		return false, xerrors.Fatal(err, "SelfSubjectAccessReview for %s %s/%s", check.Verb, check.Group, check.Resource)
	}
	return ssar.Status.Allowed, nil
}

// DeleteSecret deletes the named secret; 404 is treated as success,
// matching DeleteCustomResource and DeleteConfigMap (spec.md §4.2).
func (g *Gateway) DeleteSecret(ctx context.Context, namespace, name string) error {
	ctx, cancel := g.ctxWithTimeout(ctx)
	defer cancel()

	if g.dryRun {
		g.logDryRun("delete secret", "namespace", namespace, "name", name)
		return nil
	}

	s := &corev1.Secret{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace}}
	err := withRetry(ctx, fmt.Sprintf("delete secret %s/%s", namespace, name), func(ctx context.Context) error {
		return g.client.Delete(ctx, s)
	})
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}

// ApplyManifest decodes a multi-document YAML (or JSON) manifest and
// creates or merge-patches each document against this gateway's
// cluster, in document order. Used by the Agent Reconnector (spec.md
// §4.6 step 2: "apply the import manifest against the managed
// cluster"), whose manifests mix CRDs, a namespace, service accounts,
// RBAC, and a bootstrap secret — too heterogeneous for the typed
// per-kind helpers above.
func (g *Gateway) ApplyManifest(ctx context.Context, manifest []byte) error {
	docs, err := decodeUnstructuredDocuments(manifest)
	if err != nil {
		return err
	}
	for _, obj := range docs {
		if g.dryRun {
			g.logDryRun("apply manifest document", "kind", obj.GetKind(), "name", obj.GetName(), "namespace", obj.GetNamespace())
			continue
		}

		_, found, err := g.GetCustomResource(ctx, CRRef{
			Group:     obj.GroupVersionKind().Group,
			Version:   obj.GroupVersionKind().Version,
			Kind:      obj.GetKind(),
			Name:      obj.GetName(),
			Namespace: obj.GetNamespace(),
		})
		if err != nil {
			return err
		}
		if !found {
			if err := g.CreateCustomResource(ctx, &obj); err != nil {
				return xerrors.Fatal(err, "create manifest document %s/%s", obj.GetKind(), obj.GetName())
			}
			continue
		}

		patchBody := map[string]interface{}{
			"metadata": map[string]interface{}{"labels": obj.GetLabels(), "annotations": obj.GetAnnotations()},
		}
		for _, field := range []string{"data", "stringData", "spec"} {
			if v, ok := obj.Object[field]; ok {
				patchBody[field] = v
			}
		}
		patch, err := json.Marshal(patchBody)
		if err != nil {
			return xerrors.Fatal(err, "build merge patch for manifest document %s/%s", obj.GetKind(), obj.GetName())
		}
		ref := CRRef{Group: obj.GroupVersionKind().Group, Version: obj.GroupVersionKind().Version, Kind: obj.GetKind(), Name: obj.GetName(), Namespace: obj.GetNamespace()}
		if _, err := g.PatchCustomResource(ctx, ref, patch); err != nil {
			return xerrors.Fatal(err, "patch manifest document %s/%s", obj.GetKind(), obj.GetName())
		}
	}
	return nil
}

func (g *Gateway) DeleteConfigMap(ctx context.Context, namespace, name string) error {
	ctx, cancel := g.ctxWithTimeout(ctx)
	defer cancel()

	if g.dryRun {
		g.logDryRun("delete configmap", "namespace", namespace, "name", name)
		return nil
	}

	cm := &corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace}}
	err := withRetry(ctx, fmt.Sprintf("delete configmap %s/%s", namespace, name), func(ctx context.Context) error {
		return g.client.Delete(ctx, cm)
	})
	if apierrors.IsNotFound(err) {
		return nil
	}
	return err
}
