// Package translator converts resolved credentials into each provider's
// native on-disk and environment-variable shape. One translator per
// provider implements a small common interface and is registered in a
// lookup table, so adding a provider never touches shared code.
package translator

import (
	"context"
	"fmt"

	"github.com/ljyou001/multicoder/internal/credential"
	"github.com/ljyou001/multicoder/internal/credstore"
	"github.com/ljyou001/multicoder/internal/envstore"
	"github.com/ljyou001/multicoder/internal/exec"
	"github.com/ljyou001/multicoder/internal/prompt"
	"github.com/ljyou001/multicoder/internal/provider"
)

// ApplyResult reports the outcome of materializing a credential.
type ApplyResult struct {
	// NeedsRestart is true when a native file was rewritten and the
	// provider's own process must restart to observe it; false when
	// nothing besides in-process environment state changed.
	NeedsRestart bool
}

// AuthOption describes one way a provider can authenticate.
type AuthOption struct {
	ID          string
	Name        string
	Description string
}

// Translator adapts one provider's native credential surface.
type Translator interface {
	// CheckAuth resolves the authoritative credential for a profile.
	CheckAuth(ctx context.Context, profileName string) (*credential.Info, error)

	// Authenticate acquires a credential for the given auth option,
	// driving the provider's own OAuth subprocess or prompting for an
	// API key, and stores it as the profile's managed record.
	Authenticate(ctx context.Context, optionID, profileName string) error

	// Apply materializes a managed record into the provider's native
	// location, first neutralizing conflicting prior state.
	Apply(ctx context.Context, profileName string, rec *credential.Record) (ApplyResult, error)

	// Logout removes the provider's native credential material and the
	// profile's managed record.
	Logout(ctx context.Context, profileName string) error

	// Options lists the provider's supported auth options.
	Options() []AuthOption
}

// Deps carries the collaborators shared by all translators. Everything is
// passed in explicitly; translators hold no process-global state.
type Deps struct {
	Registry *provider.Registry
	Creds    *credstore.Store
	Env      envstore.Store
	Executor exec.Executor
	Prompter prompt.Prompter

	// Home anchors the provider-native paths not covered by the
	// descriptor (settings documents, .env files).
	Home string
}

// Registry is the translator lookup table plus the credential application
// entry point used by the orchestrator and CLI.
type Registry struct {
	deps        Deps
	translators map[string]Translator
}

// NewRegistry constructs translators for every registered provider.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps: deps,
		translators: map[string]Translator{
			provider.Claude:  NewClaude(deps),
			provider.Gemini:  NewGemini(deps),
			provider.Codex:   NewCodex(deps),
			provider.AmazonQ: NewAmazonQ(deps),
		},
	}
}

// Get returns the translator for a provider id.
func (r *Registry) Get(providerID string) (Translator, error) {
	t, ok := r.translators[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrUnknownProvider, providerID)
	}
	return t, nil
}

// Apply resolves the authoritative credential for a provider+profile and
// materializes it. Fails with credential.ErrNotFound when nothing
// resolves, credential.ErrExpired when the resolved credential is past its
// expiry. Once a source has been chosen, read and parse errors are
// surfaced rather than falling back: silent fallback would apply the
// wrong credential.
func (r *Registry) Apply(ctx context.Context, providerID, profileName string) (ApplyResult, error) {
	t, err := r.Get(providerID)
	if err != nil {
		return ApplyResult{}, err
	}

	info, err := r.deps.Creds.Resolve(providerID, profileName)
	if err != nil {
		return ApplyResult{}, err
	}
	if !r.deps.Creds.IsValid(info) {
		return ApplyResult{}, fmt.Errorf(
			"%w for provider %s, profile %s: re-authenticate with 'multicoder auth %s'",
			credential.ErrExpired, providerID, profileName, providerID)
	}

	// A native credential is already in place, so there is nothing to
	// materialize, but leftover persisted env vars from a previously
	// applied profile would override it in the provider's own CLI and
	// must still be cleared.
	if info.Source == credential.SourceNative {
		desc, err := r.deps.Registry.Get(providerID)
		if err != nil {
			return ApplyResult{}, err
		}
		if err := clearEnvVars(r.deps.Env, desc); err != nil {
			return ApplyResult{}, err
		}
		return ApplyResult{}, nil
	}

	rec, err := r.deps.Creds.Load(providerID, profileName)
	if err != nil {
		return ApplyResult{}, err
	}
	return t.Apply(ctx, profileName, rec)
}

// CheckAuth resolves a profile's credential for a provider and reports
// whether it is still valid.
func (r *Registry) CheckAuth(ctx context.Context, providerID, profileName string) (*credential.Info, bool, error) {
	t, err := r.Get(providerID)
	if err != nil {
		return nil, false, err
	}
	info, err := t.CheckAuth(ctx, profileName)
	if err != nil {
		return nil, false, err
	}
	return info, r.deps.Creds.IsValid(info), nil
}

// base carries the common state and default resolution behavior shared by
// the concrete translators.
type base struct {
	deps Deps
	desc provider.Descriptor
}

func newBase(deps Deps, providerID string) base {
	desc, err := deps.Registry.Get(providerID)
	if err != nil {
		// Translators are only constructed for registered providers.
		panic(err)
	}
	return base{deps: deps, desc: desc}
}

func (b *base) CheckAuth(_ context.Context, profileName string) (*credential.Info, error) {
	return b.deps.Creds.Resolve(b.desc.ID, profileName)
}

// clearProviderEnv removes the provider's known environment variables from
// user-scope persistence so leftover keys cannot override the credential
// being applied. Absent variables are no-ops.
func (b *base) clearProviderEnv() error {
	return clearEnvVars(b.deps.Env, b.desc)
}

func clearEnvVars(env envstore.Store, desc provider.Descriptor) error {
	if env == nil {
		return nil
	}
	for _, name := range desc.EnvVarNames() {
		if err := env.Remove(name, envstore.ScopeUser); err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
	}
	return nil
}

// applyEnvRecord materializes an environment-variable record. Only the
// process and user-scope environment change, so no restart is needed.
func (b *base) applyEnvRecord(rec *credential.Record) (ApplyResult, error) {
	if err := b.clearProviderEnv(); err != nil {
		return ApplyResult{}, err
	}
	if err := b.deps.Env.Set(rec.EnvVarName, rec.EnvVarValue, envstore.ScopeUser); err != nil {
		return ApplyResult{}, fmt.Errorf("set %s: %w", rec.EnvVarName, err)
	}
	return ApplyResult{NeedsRestart: false}, nil
}
