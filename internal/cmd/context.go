package cmd

import (
	"context"

	"github.com/ljyou001/multicoder/internal/config"
	"github.com/ljyou001/multicoder/internal/envstore"
	"github.com/ljyou001/multicoder/internal/orchestrator"
)

type contextKey string

const (
	configKey       contextKey = "config"
	loaderKey       contextKey = "loader"
	orchestratorKey contextKey = "orchestrator"
	envStoreKey     contextKey = "envstore"
)

// WithConfig adds the config to the context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// ConfigFromContext retrieves the config from context.
func ConfigFromContext(ctx context.Context) *config.Config {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok {
		return nil
	}
	return cfg
}

// WithLoader adds the config loader to the context.
func WithLoader(ctx context.Context, loader *config.Loader) context.Context {
	return context.WithValue(ctx, loaderKey, loader)
}

// LoaderFromContext retrieves the config loader from context.
func LoaderFromContext(ctx context.Context) *config.Loader {
	loader, ok := ctx.Value(loaderKey).(*config.Loader)
	if !ok {
		return nil
	}
	return loader
}

// WithOrchestrator adds the orchestrator to the context.
func WithOrchestrator(ctx context.Context, orch *orchestrator.Orchestrator) context.Context {
	return context.WithValue(ctx, orchestratorKey, orch)
}

// OrchestratorFromContext retrieves the orchestrator from context.
func OrchestratorFromContext(ctx context.Context) *orchestrator.Orchestrator {
	orch, ok := ctx.Value(orchestratorKey).(*orchestrator.Orchestrator)
	if !ok {
		return nil
	}
	return orch
}

// WithEnvStore adds the environment store to the context.
func WithEnvStore(ctx context.Context, env envstore.Store) context.Context {
	return context.WithValue(ctx, envStoreKey, env)
}

// EnvStoreFromContext retrieves the environment store from context.
func EnvStoreFromContext(ctx context.Context) envstore.Store {
	env, ok := ctx.Value(envStoreKey).(envstore.Store)
	if !ok {
		return nil
	}
	return env
}
