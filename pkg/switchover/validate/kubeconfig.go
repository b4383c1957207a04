package validate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"k8s.io/client-go/tools/clientcmd"
)

const defaultMaxKubeconfigBytes = 10 * 1024 * 1024

// kubeconfigSizeValidator is validator #15: the kubeconfig file must be
// under a configurable size ceiling before it is parsed at all.
type kubeconfigSizeValidator struct{}

func (kubeconfigSizeValidator) Name() string   { return "kubeconfig-size-ceiling" }
func (kubeconfigSizeValidator) Critical() bool { return true }

func (kubeconfigSizeValidator) Run(_ context.Context, deps Dependencies) Result {
	name := "kubeconfig-size-ceiling"
	if deps.KubeconfigPath == "" {
		return Result{Name: name, Passed: true, Critical: true, Message: "no explicit kubeconfig path configured; default loading rules apply"}
	}
	limit := deps.MaxKubeconfigBytes
	if limit <= 0 {
		limit = defaultMaxKubeconfigBytes
	}
	info, err := os.Stat(deps.KubeconfigPath)
	if err != nil {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("stat kubeconfig %s: %v", deps.KubeconfigPath, err)}
	}
	if info.Size() > limit {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("kubeconfig %s is %d bytes, exceeds ceiling %d", deps.KubeconfigPath, info.Size(), limit)}
	}
	return Result{Name: name, Passed: true, Critical: true, Message: fmt.Sprintf("kubeconfig is %d bytes, within the %d-byte ceiling", info.Size(), limit)}
}

// kubeconfigIntegrityValidator is validator #13: flags duplicate
// user-credential names across merged kubeconfig files, and parses
// ServiceAccount token expiry — near-expiry warns, already-expired is
// critical (spec.md §4.4 item 13).
type kubeconfigIntegrityValidator struct{}

func (kubeconfigIntegrityValidator) Name() string   { return "kubeconfig-integrity" }
func (kubeconfigIntegrityValidator) Critical() bool { return false }

func (kubeconfigIntegrityValidator) Run(_ context.Context, deps Dependencies) Result {
	name := "kubeconfig-integrity"

	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if deps.KubeconfigPath != "" {
		rules.ExplicitPath = deps.KubeconfigPath
	}
	raw, err := rules.Load()
	if err != nil {
		return Result{Name: name, Critical: false, Message: fmt.Sprintf("loading kubeconfig: %v", err)}
	}

	seen := map[string]int{}
	for _, path := range rules.GetLoadingPrecedence() {
		file, err := clientcmd.LoadFromFile(path)
		if err != nil {
			continue
		}
		for userName := range file.AuthInfos {
			seen[userName]++
		}
	}
	var duplicates []string
	for userName, count := range seen {
		if count > 1 {
			duplicates = append(duplicates, userName)
		}
	}

	var expired, nearExpiry []string
	for userName, auth := range raw.AuthInfos {
		if auth.Token == "" {
			continue
		}
		exp, ok := jwtExpiry(auth.Token)
		if !ok {
			continue
		}
		until := time.Until(exp)
		switch {
		case until <= 0:
			expired = append(expired, userName)
		case until < 24*time.Hour:
			nearExpiry = append(nearExpiry, userName)
		}
	}

	if len(expired) > 0 {
		return Result{Name: name, Critical: true, Message: fmt.Sprintf("expired ServiceAccount tokens: %v", expired)}
	}
	if len(duplicates) > 0 {
		return Result{Name: name, Critical: false, Message: fmt.Sprintf("duplicate user-credential names across merged kubeconfigs: %v", duplicates)}
	}
	if len(nearExpiry) > 0 {
		return Result{Name: name, Passed: true, Critical: false, Message: fmt.Sprintf("tokens nearing expiry within 24h: %v", nearExpiry)}
	}
	return Result{Name: name, Passed: true, Critical: false, Message: "no duplicate credentials or near-expiry tokens found"}
}

// jwtExpiry extracts the "exp" claim from a JWT without verifying its
// signature — this is a local, pre-flight sanity check, never an
// authorization decision.
func jwtExpiry(token string) (time.Time, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == 0 {
		return time.Time{}, false
	}
	return time.Unix(claims.Exp, 0), true
}
