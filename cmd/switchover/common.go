package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/openshift/acm-hub-switchover/pkg/switchover/hub"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/orchestrator"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/phases"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/reconnect"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/state"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/validate"
	"github.com/openshift/acm-hub-switchover/pkg/switchover/version"
)

// globalFlags holds the persistent flags every subcommand shares
// (spec.md §6 CLI surface, §9 "module-level globals... → process-wide
// singletons initialized once at startup with explicit lifecycle").
type globalFlags struct {
	kubeconfigPath string
	stateDir       string
	verbose        bool
	logFormat      string // "text" | "json"
}

func addGlobalFlags(cmd *cobra.Command, g *globalFlags) {
	cmd.PersistentFlags().StringVar(&g.kubeconfigPath, "kubeconfig", "", "path to the kubeconfig file (defaults to KUBECONFIG env / ~/.kube/config)")
	cmd.PersistentFlags().StringVar(&g.stateDir, "state-file", "", "directory holding the run's state file (overrides ACM_SWITCHOVER_STATE_DIR)")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable debug-level logging")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "log output format: text or json")
}

// newLogger builds the process-wide logr.Logger, backed by zap/zapr per
// SPEC_FULL.md's ambient stack (spec.md §6 "two formats supported:
// human-readable text and JSON lines").
func newLogger(g globalFlags) (logr.Logger, error) {
	level := zapcore.InfoLevel
	if g.verbose {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch g.logFormat {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	case "text", "":
		encoderCfg.ConsoleSeparator = " "
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		return logr.Logger{}, fmt.Errorf("unknown --log-format %q (want text or json)", g.logFormat)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	zapLogger := zap.New(core)
	return zapr.NewLogger(zapLogger), nil
}

// resolveStateDir applies spec.md §6's resolution order: flag, then
// ACM_SWITCHOVER_STATE_DIR, then a dot-directory under the working
// directory.
func resolveStateDir(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv("ACM_SWITCHOVER_STATE_DIR"); env != "" {
		return env, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory for default state dir: %w", err)
	}
	return filepath.Join(wd, ".acm-switchover"), nil
}

// runFlags holds the flags shared by run, validate, and resume (spec.md
// §6).
type runFlags struct {
	method                          string
	oldHubAction                    string
	activationMethod                string
	dryRun                          bool
	validateOnly                    bool
	force                           bool
	disableObservabilityOnSecondary bool
	manageAutoImportStrategy        bool
	skipObservabilityChecks         bool
	skipRBACValidation              bool
	acmNamespace                    string
	backupNamespace                string
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVar(&f.method, "method", "", "activation method: passive or full (required)")
	cmd.Flags().StringVar(&f.oldHubAction, "old-hub-action", "", "disposition of the old hub: secondary, decommission, or none (required)")
	cmd.Flags().StringVar(&f.activationMethod, "activation-method", "patch", "passive-sync activation sub-method: patch or restore")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "log intended mutations without issuing them")
	cmd.Flags().BoolVar(&f.force, "force", false, "re-execute the completed steps of the phase being resumed")
	cmd.Flags().BoolVar(&f.disableObservabilityOnSecondary, "disable-observability-on-secondary", false, "delete observability on the old hub when old-hub-action=secondary")
	cmd.Flags().BoolVar(&f.manageAutoImportStrategy, "manage-auto-import-strategy", false, "set autoImportStrategy=ImportAndSync during activation, and clean it up afterward")
	cmd.Flags().BoolVar(&f.skipObservabilityChecks, "skip-observability-checks", false, "skip observability restart and health checks")
	cmd.Flags().BoolVar(&f.skipRBACValidation, "skip-rbac-validation", false, "skip the RBAC pre-flight validator")
	cmd.Flags().StringVar(&f.acmNamespace, "acm-namespace", "open-cluster-management", "namespace hosting the MultiClusterHub")
	cmd.Flags().StringVar(&f.backupNamespace, "backup-namespace", "open-cluster-management-backup", "namespace hosting backup/restore resources")
}

func (f runFlags) validateMethod() (validate.Method, error) {
	switch f.method {
	case "passive":
		return validate.MethodPassive, nil
	case "full":
		return validate.MethodFull, nil
	default:
		return "", fmt.Errorf("--method must be 'passive' or 'full', got %q", f.method)
	}
}

func (f runFlags) validateOldHubAction() error {
	switch f.oldHubAction {
	case "secondary", "decommission", "none":
		return nil
	default:
		return fmt.Errorf("--old-hub-action must be one of secondary, decommission, none, got %q", f.oldHubAction)
	}
}

// runtimeContext bundles everything a subcommand needs after flag
// parsing: logger, both hub gateways, the state engine, and the
// assembled phase Dependencies.
type runtimeContext struct {
	logger    logr.Logger
	stateEng  *state.Engine
	orch      *orchestrator.Orchestrator
	closeFunc func(ctx context.Context) error
}

func buildRuntime(ctx context.Context, g globalFlags, f runFlags, primaryContext, secondaryContext string) (*runtimeContext, error) {
	logger, err := newLogger(g)
	if err != nil {
		return nil, err
	}

	method, err := f.validateMethod()
	if err != nil {
		return nil, err
	}
	if err := f.validateOldHubAction(); err != nil {
		return nil, err
	}

	stateDir, err := resolveStateDir(g.stateDir)
	if err != nil {
		return nil, err
	}

	stateEng, err := state.Open(ctx, state.Options{
		StateDir:    stateDir,
		Primary:     primaryContext,
		Secondary:   secondaryContext,
		ToolVersion: version.Get(),
		Logger:      logger,
		LockWait:    30 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	primaryGW, err := hub.NewGateway(hub.Config{ContextName: primaryContext, KubeconfigPath: g.kubeconfigPath, DryRun: f.dryRun, Logger: logger})
	if err != nil {
		_ = stateEng.Close(ctx)
		return nil, err
	}
	secondaryGW, err := hub.NewGateway(hub.Config{ContextName: secondaryContext, KubeconfigPath: g.kubeconfigPath, DryRun: f.dryRun, Logger: logger})
	if err != nil {
		_ = stateEng.Close(ctx)
		return nil, err
	}

	reconnector := &reconnect.Reconnector{
		NewHub: secondaryGW,
		GatewayFactory: func(ctx context.Context, clusterName string) (*hub.Gateway, error) {
			return hub.NewGateway(hub.Config{ContextName: clusterName, KubeconfigPath: g.kubeconfigPath, DryRun: f.dryRun, Logger: logger})
		},
		FetchManifest: fetchImportManifest,
		Logger:        logger,
	}

	observabilityPresent, err := detectObservability(ctx, primaryGW, f.acmNamespace)
	if err != nil {
		_ = stateEng.Close(ctx)
		return nil, err
	}

	validateDeps := validate.Dependencies{
		Primary:            primaryGW,
		Secondary:          secondaryGW,
		PrimaryContext:     primaryContext,
		SecondaryContext:   secondaryContext,
		ACMNamespace:       f.acmNamespace,
		BackupNamespace:    f.backupNamespace,
		KubeconfigPath:     g.kubeconfigPath,
		RBACEnabled:        !f.skipRBACValidation,
		MaxKubeconfigBytes: 0,
		Run:                validate.RunContext{Method: method, MinACMVersionForAutoImportStrategy: "2.14"},
		Logger:             logger,
	}

	deps := phases.Dependencies{
		Primary:                          primaryGW,
		Secondary:                        secondaryGW,
		State:                            stateEng,
		Validators:                       validate.NewCoordinator(validate.StandardValidators()...),
		ValidateDep:                      validateDeps,
		ACMNamespace:                     f.acmNamespace,
		BackupNamespace:                  f.backupNamespace,
		Method:                           method,
		ActivationMethod:                 f.activationMethod,
		OldHubAction:                     f.oldHubAction,
		ObservabilityPresent:             observabilityPresent,
		DisableObservabilityOnSecondary:  f.disableObservabilityOnSecondary,
		ManageAutoImportStrategy:         f.manageAutoImportStrategy,
		SkipObservabilityChecks:          f.skipObservabilityChecks,
		Reconnector:                      reconnector,
		Logger:                           logger,
	}

	orch := &orchestrator.Orchestrator{
		State:        stateEng,
		Deps:         deps,
		Force:        f.force,
		ValidateOnly: f.validateOnly,
		Logger:       logger,
	}

	return &runtimeContext{
		logger:    logger,
		stateEng:  stateEng,
		orch:      orch,
		closeFunc: stateEng.Close,
	}, nil
}

func detectObservability(ctx context.Context, g *hub.Gateway, acmNamespace string) (bool, error) {
	_, found, err := g.GetCustomResource(ctx, hub.CRRef{
		Group:     "observability.open-cluster-management.io",
		Version:   "v1beta2",
		Kind:      "MultiClusterObservability",
		Name:      "observability",
		Namespace: acmNamespace,
	})
	return found, err
}

// fetchImportManifest retrieves the per-cluster import manifest ACM
// generates as a secret, keyed by the ACM import-controller's own
// naming convention.
func fetchImportManifest(ctx context.Context, newHub *hub.Gateway, clusterName string) ([]byte, error) {
	secret, found, err := newHub.GetSecret(ctx, clusterName, clusterName+"-import")
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("import manifest secret %s-import not found in namespace %s on new hub", clusterName, clusterName)
	}
	manifest, ok := secret.Data["import.yaml"]
	if !ok {
		return nil, fmt.Errorf("import manifest secret %s-import has no import.yaml key", clusterName)
	}
	return manifest, nil
}
