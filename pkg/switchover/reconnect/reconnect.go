// Package reconnect implements the Agent Reconnector (spec.md §4.6, C6):
// a bounded-concurrency repair loop that re-points a managed cluster's
// klusterlet at the new hub when its bootstrap kubeconfig still
// references the old one.
//
// Grounded on github.com/openshift/hypershift's
// control-plane-operator/controllers/hostedcluster reconciler's use of
// golang.org/x/sync/errgroup for bounded fan-out over a worker set, and
// availability-prober for the delete→recreate→poll shape of a single
// repair.
package reconnect

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/yaml"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/hub"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/waitutil"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/xerrors"
)

const (
	agentNamespace       = "open-cluster-management-agent"
	bootstrapSecretName  = "bootstrap-hub-kubeconfig"
	klusterletDeployment = "klusterlet"

	defaultPoolSize     = 10
	secretPollInterval  = time.Second
	secretPollTimeout   = 10 * time.Second
)

// GatewayFactory builds (or returns a cached) Gateway for the given
// managed cluster's kubeconfig context. The Agent Reconnector needs
// agent-side access to each managed cluster (spec.md §4.6: "requires
// agent-side access through the managed cluster's context"), which the
// orchestrator provides since it alone knows how cluster names map to
// kubeconfig contexts.
type GatewayFactory func(ctx context.Context, clusterName string) (*hub.Gateway, error)

// ImportManifestFetcher retrieves the raw, multi-document YAML import
// manifest for clusterName from the new hub. Typically backed by the
// `<clusterName>-import` secret's `import.yaml` key (ACM's own
// bootstrap-secret convention).
type ImportManifestFetcher func(ctx context.Context, newHub *hub.Gateway, clusterName string) ([]byte, error)

// Reconnector runs the per-cluster repair procedure across a bounded
// worker pool.
type Reconnector struct {
	NewHub *hub.Gateway

	GatewayFactory GatewayFactory
	FetchManifest  ImportManifestFetcher

	// PoolSize bounds concurrent repairs; 0 selects the default of 10
	// (spec.md §4.6 "Worker pool size is capped (default 10)").
	PoolSize int

	Logger logr.Logger
}

// Outcome is one cluster's repair result.
type Outcome struct {
	ClusterName string
	Repaired    bool
	Err         error
}

// Run repairs every cluster in clusterNames concurrently, bounded by
// r.PoolSize, and returns one Outcome per cluster regardless of whether
// individual repairs failed (spec.md §4.6: "a single cluster failure
// does not cancel siblings"; §8 boundary behavior: "worker #3's cluster
// fails reports 29 successes and 1 failure").
func (r *Reconnector) Run(ctx context.Context, clusterNames []string) []Outcome {
	pool := r.PoolSize
	if pool <= 0 {
		pool = defaultPoolSize
	}

	outcomes := make([]Outcome, len(clusterNames))

	// A plain errgroup.Group (not errgroup.WithContext) bounds
	// concurrency via SetLimit without deriving a cancellable context:
	// one goroutine's error must never cancel its siblings here.
	g := &errgroup.Group{}
	g.SetLimit(pool)

	for i, name := range clusterNames {
		i, name := i, name
		g.Go(func() error {
			err := r.repairOne(ctx, name)
			outcomes[i] = Outcome{ClusterName: name, Repaired: err == nil, Err: err}
			if err != nil {
				r.Logger.Info("agent reconnect failed, continuing with remaining clusters", "cluster", name, "error", err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (r *Reconnector) repairOne(ctx context.Context, clusterName string) error {
	agentGateway, err := r.GatewayFactory(ctx, clusterName)
	if err != nil {
		return xerrors.Fatal(err, "build agent-side gateway for %s", clusterName)
	}

	if err := agentGateway.DeleteSecret(ctx, agentNamespace, bootstrapSecretName); err != nil {
		return xerrors.Fatal(err, "delete bootstrap secret on %s", clusterName)
	}

	manifest, err := r.FetchManifest(ctx, r.NewHub, clusterName)
	if err != nil {
		return xerrors.Fatal(err, "fetch import manifest for %s", clusterName)
	}
	if err := agentGateway.ApplyManifest(ctx, manifest); err != nil {
		return xerrors.Fatal(err, "apply import manifest on %s", clusterName)
	}

	pollErr := waitutil.For(ctx, func(ctx context.Context) (bool, error) {
		return agentGateway.SecretExists(ctx, agentNamespace, bootstrapSecretName)
	}, waitutil.Options{
		Timeout:     secretPollTimeout,
		Interval:    secretPollInterval,
		Description: fmt.Sprintf("bootstrap secret recreated on %s", clusterName),
		Logger:      r.Logger,
	})
	if pollErr != nil {
		return xerrors.Fatal(pollErr, "bootstrap secret did not reappear on %s", clusterName)
	}

	if err := agentGateway.RolloutRestartDeployment(ctx, agentNamespace, klusterletDeployment); err != nil {
		return xerrors.Fatal(err, "rollout-restart klusterlet on %s", clusterName)
	}
	return nil
}

// decodeManifestDocuments is exposed for callers (and tests) that want
// to inspect a raw import manifest's documents without applying them.
// sigs.k8s.io/yaml round-trips each document through JSON, matching how
// the rest of the gateway already speaks unstructured.Unstructured.
func decodeManifestDocuments(manifest []byte) ([]map[string]interface{}, error) {
	var docs []map[string]interface{}
	for _, raw := range splitYAMLDocuments(manifest) {
		if len(raw) == 0 {
			continue
		}
		var obj map[string]interface{}
		if err := yaml.Unmarshal(raw, &obj); err != nil {
			return nil, xerrors.Fatal(err, "decode manifest document")
		}
		if len(obj) == 0 {
			continue
		}
		docs = append(docs, obj)
	}
	return docs, nil
}
