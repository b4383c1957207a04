package phases

import (
	"context"
	"time"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/hub"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/waitutil"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/xerrors"
)

const (
	managedClusterConditionAvailable = "ManagedClusterConditionAvailable"
	managedClusterConditionJoined    = "ManagedClusterJoined"

	connectionVerificationInitialWait = 120 * time.Second
	connectionVerificationTotalWait   = 10 * time.Minute
	connectionVerificationInterval    = 15 * time.Second
)

// RunPostActivation executes the POST_ACTIVATION phase (spec.md §4.5.3).
func RunPostActivation(ctx context.Context, d Dependencies) error {
	return runSteps(ctx, d.State, []step{
		{id: "post_activation.verify_connections", run: func(ctx context.Context) error { return verifyManagedClusterConnections(ctx, d) }},
		{id: "post_activation.clear_disable_auto_import", run: func(ctx context.Context) error { return clearDisableAutoImportAnnotations(ctx, d) }},
		{id: "post_activation.auto_import_strategy_cleanup", run: func(ctx context.Context) error { return cleanupAutoImportStrategy(ctx, d) }},
		{id: "post_activation.restart_observability", run: func(ctx context.Context) error { return restartObservability(ctx, d) }},
		{id: "post_activation.observability_pod_health", run: func(ctx context.Context) error { return checkObservabilityPodHealth(ctx, d) }},
	})
}

// verifyManagedClusterConnections implements spec.md §4.5.3 step 1: an
// initial short wait, then proactive reconnector invocation on any
// cluster still disconnected, then continued polling to the full
// timeout.
func verifyManagedClusterConnections(ctx context.Context, d Dependencies) error {
	disconnected, err := disconnectedClusters(ctx, d.Secondary)
	if err != nil {
		return err
	}
	if len(disconnected) == 0 {
		return nil
	}

	select {
	case <-time.After(connectionVerificationInitialWait):
	case <-ctx.Done():
		return xerrors.Cancelled("cancelled during initial connection verification wait")
	}

	disconnected, err = disconnectedClusters(ctx, d.Secondary)
	if err != nil {
		return err
	}
	if len(disconnected) > 0 && d.Reconnector != nil {
		d.Logger.Info("invoking agent reconnector proactively", "disconnected_clusters", disconnected)
		outcomes := d.Reconnector.Run(ctx, disconnected)
		for _, o := range outcomes {
			if o.Err != nil {
				d.Logger.Info("agent reconnect failed, relying on connection poll to resolve or fail", "cluster", o.ClusterName, "error", o.Err.Error())
			}
		}
	}

	return waitutil.For(ctx, func(ctx context.Context) (bool, error) {
		remaining, err := disconnectedClusters(ctx, d.Secondary)
		if err != nil {
			return false, err
		}
		return len(remaining) == 0, nil
	}, waitutil.Options{
		Timeout:     connectionVerificationTotalWait,
		Interval:    connectionVerificationInterval,
		Description: "managed cluster connection verification",
		Logger:      d.Logger,
	})
}

func disconnectedClusters(ctx context.Context, g *hub.Gateway) ([]string, error) {
	clusters, err := listNonLocalManagedClusters(ctx, g)
	if err != nil {
		return nil, xerrors.Fatal(err, "list managed clusters for connection verification")
	}
	var names []string
	for _, mc := range clusters {
		if !conditionTrue(mc, managedClusterConditionAvailable) || !conditionTrue(mc, managedClusterConditionJoined) {
			names = append(names, mc.GetName())
		}
	}
	return names, nil
}

// clearDisableAutoImportAnnotations implements spec.md §4.5.3 step 2.
func clearDisableAutoImportAnnotations(ctx context.Context, d Dependencies) error {
	if err := annotateManagedClusters(ctx, d.Secondary, disableAutoImportAnnotation, nil); err != nil {
		return err
	}
	clusters, err := listNonLocalManagedClusters(ctx, d.Secondary)
	if err != nil {
		return xerrors.Fatal(err, "re-list managed clusters after annotation clear")
	}
	for _, mc := range clusters {
		if hasAnnotation(mc, disableAutoImportAnnotation) {
			return xerrors.Fatal(nil, "disable-auto-import annotation still present on %s after clearing", mc.GetName())
		}
	}
	return nil
}

// cleanupAutoImportStrategy implements spec.md §4.5.3 step 3.
func cleanupAutoImportStrategy(ctx context.Context, d Dependencies) error {
	var didSet bool
	found, err := d.State.GetConfig(setImportAndSyncMarkerKey, &didSet)
	if err != nil {
		return err
	}
	if !found || !didSet {
		return nil
	}
	if err := d.Secondary.DeleteConfigMap(ctx, multiClusterEngineNS, importControllerConfigMap); err != nil {
		return xerrors.Fatal(err, "delete %s after activation", importControllerConfigMap)
	}
	d.State.DeleteConfig(setImportAndSyncMarkerKey)
	return nil
}

// restartObservability implements spec.md §4.5.3 step 4.
func restartObservability(ctx context.Context, d Dependencies) error {
	if !d.ObservabilityPresent || d.SkipObservabilityChecks {
		return nil
	}
	if err := d.Secondary.RolloutRestartDeployment(ctx, d.ACMNamespace, observabilityObservatorium); err != nil {
		return xerrors.Fatal(err, "rollout-restart observability observatorium")
	}
	return waitutil.For(ctx, func(ctx context.Context) (bool, error) {
		pods, err := d.Secondary.ListPods(ctx, d.ACMNamespace, "app.kubernetes.io/name="+observabilityObservatorium)
		if err != nil {
			return false, err
		}
		if len(pods) == 0 {
			return false, nil
		}
		for _, p := range pods {
			if !p.Ready {
				return false, nil
			}
		}
		return true, nil
	}, waitutil.Options{Timeout: 5 * time.Minute, Interval: 10 * time.Second, Description: "observability observatorium pods ready", Logger: d.Logger})
}

// checkObservabilityPodHealth implements spec.md §4.5.3 step 5.
func checkObservabilityPodHealth(ctx context.Context, d Dependencies) error {
	if !d.ObservabilityPresent || d.SkipObservabilityChecks {
		return nil
	}
	return waitutil.For(ctx, func(ctx context.Context) (bool, error) {
		pods, err := d.Secondary.ListPods(ctx, d.ACMNamespace, observabilityPartOfSelector)
		if err != nil {
			return false, err
		}
		for _, p := range pods {
			if p.Phase != "Running" || !p.Ready {
				return false, nil
			}
		}
		return true, nil
	}, waitutil.Options{Timeout: 3 * time.Minute, Interval: 10 * time.Second, Description: "observability pod health", Logger: d.Logger})
}
