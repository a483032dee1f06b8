package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/ljyou001/multicoder/internal/config"
	"github.com/ljyou001/multicoder/internal/envstore"
	"github.com/ljyou001/multicoder/internal/orchestrator"
	"github.com/ljyou001/multicoder/internal/provider"
)

func requireOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	orch := OrchestratorFromContext(ctx)
	if orch == nil {
		return nil, errors.New("orchestrator not initialized")
	}
	return orch, nil
}

func requireEnvStore(ctx context.Context) (envstore.Store, error) {
	env := EnvStoreFromContext(ctx)
	if env == nil {
		return nil, errors.New("environment store not initialized")
	}
	return env, nil
}

// resolveProfileName returns the explicit profile name, or the current
// profile's when empty.
func resolveProfileName(ctx context.Context, orch *orchestrator.Orchestrator, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	current, err := orch.CurrentProfile(ctx)
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", errors.New("no current profile; create one with 'multicoder profile create'")
	}
	return current.Name, nil
}

// validateProviderArg checks a positional provider argument.
func validateProviderArg(name string) error {
	if !config.IsValidProvider(name) {
		return fmt.Errorf("%w: %s (valid: claude, gemini, codex, amazonq)", provider.ErrUnknownProvider, name)
	}
	return nil
}

// parseScope converts the --system flag into a scope.
func parseScope(system bool) envstore.Scope {
	if system {
		return envstore.ScopeSystem
	}
	return envstore.ScopeUser
}
