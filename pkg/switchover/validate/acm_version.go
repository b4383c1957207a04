package validate

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/hub"
)

const (
	multiClusterHubGroup = "operator.open-cluster-management.io"
	multiClusterHubVer   = "v1"
	multiClusterHubKind  = "MultiClusterHub"

	importControllerConfigMap = "import-controller-config"
	multiClusterEngineNS       = "multicluster-engine"
)

func multiClusterHubVersion(ctx context.Context, g *hub.Gateway, namespace string) (string, error) {
	list, err := g.ListCustomResource(ctx, multiClusterHubGroup, multiClusterHubVer, multiClusterHubKind, namespace, hub.ListOptions{})
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", fmt.Errorf("no MultiClusterHub found in namespace %s", namespace)
	}
	version, _, _ := unstructured.NestedString(list[0].Object, "status", "currentVersion")
	if version == "" {
		return "", fmt.Errorf("MultiClusterHub %s/%s has no status.currentVersion yet", namespace, list[0].GetName())
	}
	return version, nil
}

// acmVersionValidator is validator #2: the ACM version reported by each
// hub's MultiClusterHub must match exactly.
type acmVersionValidator struct{}

func (acmVersionValidator) Name() string   { return "acm-version-match" }
func (acmVersionValidator) Critical() bool { return true }

func (acmVersionValidator) Run(ctx context.Context, deps Dependencies) Result {
	name := "acm-version-match"
	primaryVersion, err := multiClusterHubVersion(ctx, deps.Primary, deps.ACMNamespace)
	if err != nil {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("reading ACM version on primary: %v", err)}
	}
	secondaryVersion, err := multiClusterHubVersion(ctx, deps.Secondary, deps.ACMNamespace)
	if err != nil {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("reading ACM version on secondary: %v", err)}
	}
	if primaryVersion != secondaryVersion {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("ACM version mismatch: primary=%s secondary=%s", primaryVersion, secondaryVersion)}
	}
	return Result{Name: name, Passed: true, Critical: true, Message: fmt.Sprintf("both hubs on ACM %s", primaryVersion)}
}

// autoImportStrategyValidator is validator #11: on ACM >= 2.14, warn if a
// hub that already has managed clusters runs a non-default
// autoImportStrategy (spec.md §4.4 item 11).
type autoImportStrategyValidator struct{}

func (autoImportStrategyValidator) Name() string   { return "auto-import-strategy" }
func (autoImportStrategyValidator) Critical() bool { return false }

func (autoImportStrategyValidator) Run(ctx context.Context, deps Dependencies) Result {
	name := "auto-import-strategy"

	version, err := multiClusterHubVersion(ctx, deps.Secondary, deps.ACMNamespace)
	if err != nil {
		return Result{Name: name, Critical: false, Message: fmt.Sprintf("reading ACM version on secondary: %v", err)}
	}
	floor := deps.Run.MinACMVersionForAutoImportStrategy
	if floor == "" {
		floor = "2.14"
	}
	if compareDottedVersions(version, floor) < 0 {
		return Result{Name: name, Passed: true, Critical: false, Message: fmt.Sprintf("ACM %s predates autoImportStrategy (floor %s); skipped", version, floor)}
	}

	clusters, err := listNonLocalManagedClusters(ctx, deps.Secondary)
	if err != nil {
		return Result{Name: name, Critical: false, Message: fmt.Sprintf("listing managed clusters on secondary: %v", err)}
	}
	if len(clusters) == 0 {
		return Result{Name: name, Passed: true, Critical: false, Message: "secondary has no managed clusters yet; strategy check not applicable"}
	}

	cm, found, err := deps.Secondary.GetConfigMap(ctx, multiClusterEngineNS, importControllerConfigMap)
	if err != nil {
		return Result{Name: name, Critical: false, Message: fmt.Sprintf("reading %s: %v", importControllerConfigMap, err)}
	}
	strategy := "ImportOnly"
	if found {
		if v, ok := cm.Data["autoImportStrategy"]; ok && v != "" {
			strategy = v
		}
	}
	if strategy != "ImportOnly" {
		return Result{Name: name, Critical: false, Message: fmt.Sprintf("secondary autoImportStrategy is %q (non-default) with %d existing managed clusters", strategy, len(clusters))}
	}
	return Result{Name: name, Passed: true, Critical: false, Message: "autoImportStrategy is the default ImportOnly"}
}

// compareDottedVersions compares two "major.minor[.patch]" strings.
// Returns <0, 0, >0 like strings.Compare. Parsing stops at the first
// character that is neither a digit nor '.', so a suffix such as "-rc1"
// is ignored; missing components compare as 0.
func compareDottedVersions(a, b string) int {
	as := splitVersion(a)
	bs := splitVersion(b)
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv int
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if av != bv {
			return av - bv
		}
	}
	return 0
}

func splitVersion(v string) []int {
	var out []int
	cur := 0
	has := false
	for _, r := range v {
		if r >= '0' && r <= '9' {
			cur = cur*10 + int(r-'0')
			has = true
			continue
		}
		if r == '.' {
			out = append(out, cur)
			cur = 0
			has = false
			continue
		}
		// non-numeric build metadata (e.g. "2.12.7-rc1"): stop parsing
		break
	}
	if has || cur != 0 {
		out = append(out, cur)
	}
	return out
}
