// Package orchestrator is the entry point the CLI drives: it coordinates
// profile lifecycle, provider authentication, and credential application
// across the profile registry, the credential store, and the per-provider
// translators.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ljyou001/multicoder/internal/credential"
	"github.com/ljyou001/multicoder/internal/credstore"
	"github.com/ljyou001/multicoder/internal/profile"
	"github.com/ljyou001/multicoder/internal/provider"
	"github.com/ljyou001/multicoder/internal/slogger"
	"github.com/ljyou001/multicoder/internal/translator"
)

// Orchestrator wires the profile registry, credential store, and
// translators together.
type Orchestrator struct {
	profiles    *profile.Store
	creds       *credstore.Store
	translators *translator.Registry
	providers   *provider.Registry

	// now is overridable in tests.
	now func() time.Time
}

// New creates an orchestrator.
func New(profiles *profile.Store, creds *credstore.Store, translators *translator.Registry, providers *provider.Registry) *Orchestrator {
	return &Orchestrator{
		profiles:    profiles,
		creds:       creds,
		translators: translators,
		providers:   providers,
		now:         time.Now,
	}
}

// ProviderResult is the outcome of applying one provider during a switch.
type ProviderResult struct {
	Provider     string
	NeedsRestart bool
	Err          error
}

// SwitchResult accumulates per-provider outcomes. Providers that
// succeeded keep their new state even when a sibling provider failed.
type SwitchResult struct {
	Profile string
	Results []ProviderResult
}

// Failed returns the per-provider failures, if any.
func (r *SwitchResult) Failed() []ProviderResult {
	var failed []ProviderResult
	for _, pr := range r.Results {
		if pr.Err != nil {
			failed = append(failed, pr)
		}
	}
	return failed
}

// NeedsRestart reports whether any provider rewrote a native file.
func (r *SwitchResult) NeedsRestart() bool {
	for _, pr := range r.Results {
		if pr.Err == nil && pr.NeedsRestart {
			return true
		}
	}
	return false
}

// SwitchProfile applies every provider bound to the named profile and
// makes it current. Per-provider failures are accumulated in the result
// rather than aborting the switch; the profile becomes current as long as
// it exists.
func (o *Orchestrator) SwitchProfile(ctx context.Context, name string) (*SwitchResult, error) {
	rec, err := o.profiles.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	result := &SwitchResult{Profile: name}
	for _, providerID := range sortedProviders(rec.Providers) {
		applied, applyErr := o.translators.Apply(ctx, providerID, name)
		result.Results = append(result.Results, ProviderResult{
			Provider:     providerID,
			NeedsRestart: applied.NeedsRestart,
			Err:          applyErr,
		})
		if applyErr != nil {
			slogger.L(ctx).Warn("provider apply failed", "provider", providerID, "profile", name, "error", applyErr)
		}
	}

	if err := o.profiles.SetCurrent(ctx, name); err != nil {
		return result, err
	}

	now := o.now().UTC()
	rec.LastUsedAt = &now
	if last := lastApplied(result); last != "" {
		rec.LastProvider = last
	}
	if err := o.profiles.Update(ctx, *rec); err != nil {
		return result, err
	}
	return result, nil
}

// lastApplied returns the last provider that applied cleanly during a
// switch, or "" when none did.
func lastApplied(result *SwitchResult) string {
	last := ""
	for _, pr := range result.Results {
		if pr.Err == nil {
			last = pr.Provider
		}
	}
	return last
}

// CreateOptions carries the optional preferences for a new profile.
type CreateOptions struct {
	PermissionMode profile.PermissionMode
	Model          string
}

// CreateProfile registers an empty profile. The first profile created
// becomes current.
func (o *Orchestrator) CreateProfile(ctx context.Context, name string, opts CreateOptions) error {
	rec := profile.Record{
		Name:           name,
		Providers:      map[string]profile.Binding{},
		PermissionMode: opts.PermissionMode,
		Model:          opts.Model,
	}
	return o.profiles.Create(ctx, rec)
}

// AuthenticateProvider drives a provider's auth flow for a profile and
// records the resulting binding. The profile must already exist.
func (o *Orchestrator) AuthenticateProvider(ctx context.Context, providerID, profileName, optionID string) error {
	if _, err := o.profiles.Get(ctx, profileName); err != nil {
		return err
	}
	t, err := o.translators.Get(providerID)
	if err != nil {
		return err
	}
	if err := t.Authenticate(ctx, optionID, profileName); err != nil {
		return err
	}
	return o.bindProvider(ctx, providerID, profileName)
}

// ensureProfile creates the profile with default preferences when it does
// not exist yet. The credential shortcuts below double as profile
// creation, so a missing profile is not an error there.
func (o *Orchestrator) ensureProfile(ctx context.Context, name string) error {
	_, err := o.profiles.Get(ctx, name)
	if errors.Is(err, profile.ErrNotFound) {
		return o.CreateProfile(ctx, name, CreateOptions{})
	}
	return err
}

// LoginWithAPIKey stores an API key as the profile's managed record for a
// provider, creating the profile if it does not exist yet. Only the key's
// shape is checked; keys are never validated against the remote service.
func (o *Orchestrator) LoginWithAPIKey(ctx context.Context, providerID, profileName, key string, metadata map[string]string) error {
	if err := validateAPIKey(providerID, key); err != nil {
		return err
	}
	if err := o.ensureProfile(ctx, profileName); err != nil {
		return err
	}

	rec := &credential.Record{APIKey: key, Metadata: metadata}
	if err := o.creds.Save(providerID, profileName, rec); err != nil {
		return err
	}
	return o.bindProvider(ctx, providerID, profileName)
}

// LinkExistingCredential snapshots the provider's current native
// credential into a managed record, creating the profile if it does not
// exist yet, so the profile keeps working even after the provider CLI
// rotates or removes its own file.
func (o *Orchestrator) LinkExistingCredential(ctx context.Context, providerID, profileName string) error {
	desc, err := o.providers.Get(providerID)
	if err != nil {
		return err
	}

	data, path, err := readNativeCredential(desc)
	if err != nil {
		return err
	}
	if !json.Valid(data) {
		return fmt.Errorf("%w: %s", credential.ErrMalformed, path)
	}

	if err := o.ensureProfile(ctx, profileName); err != nil {
		return err
	}
	if err := o.creds.Save(providerID, profileName, &credential.Record{
		OAuthTokens: json.RawMessage(data),
	}); err != nil {
		return err
	}
	return o.bindProvider(ctx, providerID, profileName)
}

// bindProvider records a fresh binding from the resolved credential.
func (o *Orchestrator) bindProvider(ctx context.Context, providerID, profileName string) error {
	rec, err := o.profiles.Get(ctx, profileName)
	if err != nil {
		return err
	}

	info, err := o.creds.Resolve(providerID, profileName)
	if err != nil {
		return err
	}

	now := o.now().UTC()
	if rec.Providers == nil {
		rec.Providers = map[string]profile.Binding{}
	}
	rec.Providers[providerID] = profile.Binding{
		CredentialSource: info.Source,
		CredentialPath:   info.LocationPath,
		LastAuth:         &now,
		ExpiresAt:        info.ExpiresAt,
	}
	rec.LastProvider = providerID
	return o.profiles.Update(ctx, *rec)
}

// DeleteProfile removes a profile and every managed credential bound to
// it. The registry handles current-profile promotion.
func (o *Orchestrator) DeleteProfile(ctx context.Context, name string) error {
	rec, err := o.profiles.Get(ctx, name)
	if err != nil {
		return err
	}

	for _, providerID := range sortedProviders(rec.Providers) {
		if err := o.creds.Clear(providerID, name); err != nil {
			return fmt.Errorf("clear %s credentials: %w", providerID, err)
		}
	}
	return o.profiles.Delete(ctx, name)
}

// LogoutProvider removes a provider's native material and managed record
// for a profile, and drops the binding.
func (o *Orchestrator) LogoutProvider(ctx context.Context, providerID, profileName string) error {
	t, err := o.translators.Get(providerID)
	if err != nil {
		return err
	}
	if err := t.Logout(ctx, profileName); err != nil {
		return err
	}

	rec, err := o.profiles.Get(ctx, profileName)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return nil
		}
		return err
	}
	if _, bound := rec.Providers[providerID]; !bound {
		return nil
	}
	delete(rec.Providers, providerID)
	if rec.LastProvider == providerID {
		rec.LastProvider = ""
	}
	return o.profiles.Update(ctx, *rec)
}

// ListProfiles returns all profiles sorted by name.
func (o *Orchestrator) ListProfiles(ctx context.Context) ([]profile.Record, error) {
	return o.profiles.List(ctx)
}

// CurrentProfile returns the current profile, or nil when none is set.
func (o *Orchestrator) CurrentProfile(ctx context.Context) (*profile.Record, error) {
	return o.profiles.Current(ctx)
}

// CheckProviderAuth resolves a provider's credential for a profile and
// reports whether it is valid.
func (o *Orchestrator) CheckProviderAuth(ctx context.Context, providerID, profileName string) (*credential.Info, bool, error) {
	return o.translators.CheckAuth(ctx, providerID, profileName)
}

// GetAuthOptions lists a provider's auth options.
func (o *Orchestrator) GetAuthOptions(providerID string) ([]translator.AuthOption, error) {
	t, err := o.translators.Get(providerID)
	if err != nil {
		return nil, err
	}
	return t.Options(), nil
}

// ProviderStatus is one row of the status summary.
type ProviderStatus struct {
	Provider string
	Info     *credential.Info
	Valid    bool
	Err      error
}

// Status resolves every provider's credential for a profile. Missing
// credentials are rows, not errors.
func (o *Orchestrator) Status(ctx context.Context, profileName string) ([]ProviderStatus, error) {
	if _, err := o.profiles.Get(ctx, profileName); err != nil {
		return nil, err
	}

	var statuses []ProviderStatus
	for _, providerID := range o.providers.IDs() {
		info, valid, err := o.translators.CheckAuth(ctx, providerID, profileName)
		if errors.Is(err, credential.ErrNotFound) {
			statuses = append(statuses, ProviderStatus{Provider: providerID})
			continue
		}
		statuses = append(statuses, ProviderStatus{Provider: providerID, Info: info, Valid: valid, Err: err})
	}
	return statuses, nil
}

// ApplyProvider applies the resolved credential for one provider of a
// profile without switching profiles.
func (o *Orchestrator) ApplyProvider(ctx context.Context, providerID, profileName string) (translator.ApplyResult, error) {
	return o.translators.Apply(ctx, providerID, profileName)
}

func sortedProviders(bindings map[string]profile.Binding) []string {
	ids := make([]string, 0, len(bindings))
	for id := range bindings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// readNativeCredential returns the first readable native credential file
// for a provider.
func readNativeCredential(desc provider.Descriptor) ([]byte, string, error) {
	candidates := desc.CandidateCredentialPaths
	if desc.NativeCredentialPath != "" {
		candidates = append([]string{desc.NativeCredentialPath}, candidates...)
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path) //nolint:gosec // Provider-owned path
		if err == nil && len(data) > 0 {
			return data, path, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s has no native credential to link; log in with the %s CLI first",
		credential.ErrNotFound, desc.ID, desc.Binary)
}

// validateAPIKey checks the key's per-provider shape.
func validateAPIKey(providerID, key string) error {
	if key == "" {
		return fmt.Errorf("empty API key for %s", providerID)
	}
	switch providerID {
	case provider.Claude:
		if !strings.HasPrefix(key, "sk-ant-") {
			return errors.New("invalid Anthropic API key: expected an sk-ant- prefix")
		}
	case provider.Codex:
		if !strings.HasPrefix(key, "sk-") {
			return errors.New("invalid OpenAI API key: expected an sk- prefix")
		}
	case provider.Gemini:
		// Google issues several key shapes; only emptiness is checked.
	case provider.AmazonQ:
		return fmt.Errorf("%s does not support API-key authentication", providerID)
	default:
		return fmt.Errorf("%w: %s", provider.ErrUnknownProvider, providerID)
	}
	return nil
}
