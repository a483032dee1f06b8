package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ljyou001/multicoder/internal/credential"
	"github.com/ljyou001/multicoder/internal/provider"
	"github.com/ljyou001/multicoder/internal/slogger"
)

// Codex auth option ids.
const (
	codexOptionOAuth  = "oauth"
	codexOptionAPIKey = "api-key"
	codexOptionAzure  = "azure"
)

// Record metadata keys for the Azure variant.
const (
	metaCodexProvider      = "provider"
	metaCodexAzureResource = "azureResourceName"
)

const codexProviderAzure = "azure"

// codexAzureDeployment is the deployment segment of the computed Azure
// base URL. Users may have saved the derived URL, so this value and the
// URL shape must stay stable.
const codexAzureDeployment = "gpt-5-codex"

// Codex translates credentials into the Codex CLI's single native auth
// file. OAuth payloads are copied in verbatim; API keys become a typed
// payload in the same file, with a computed deployment base URL for the
// Azure variant.
type Codex struct {
	base
}

// NewCodex creates the Codex translator.
func NewCodex(deps Deps) *Codex {
	return &Codex{base: newBase(deps, provider.Codex)}
}

// Options lists Codex's auth options.
func (t *Codex) Options() []AuthOption {
	return []AuthOption{
		{ID: codexOptionOAuth, Name: "ChatGPT", Description: "Sign in with a ChatGPT account via browser OAuth"},
		{ID: codexOptionAPIKey, Name: "API Key", Description: "OpenAI API key for pay-per-use billing"},
		{ID: codexOptionAzure, Name: "Azure OpenAI", Description: "API key for an Azure OpenAI resource"},
	}
}

// Authenticate acquires a Codex credential and stores it as the
// profile's managed record.
func (t *Codex) Authenticate(ctx context.Context, optionID, profileName string) error {
	switch optionID {
	case codexOptionOAuth:
		return t.authenticateOAuth(ctx, profileName)
	case codexOptionAPIKey:
		key, err := t.deps.Prompter.Secret("OpenAI API key: ")
		if err != nil {
			return fmt.Errorf("read API key: %w", err)
		}
		return t.deps.Creds.Save(t.desc.ID, profileName, &credential.Record{APIKey: key})
	case codexOptionAzure:
		return t.authenticateAzure(profileName)
	default:
		return fmt.Errorf("unknown auth option for codex: %s", optionID)
	}
}

// authenticateOAuth runs `codex login` and captures the auth file the CLI
// writes as the managed record.
func (t *Codex) authenticateOAuth(ctx context.Context, profileName string) error {
	if err := runProviderLogin(ctx, t.deps.Executor, t.desc); err != nil {
		return err
	}
	if err := pollForFile(ctx, t.desc.NativeCredentialPath, cachePollTimeout, cachePollInterval); err != nil {
		return err
	}

	data, err := os.ReadFile(t.desc.NativeCredentialPath) //nolint:gosec // Provider-owned path
	if err != nil {
		return fmt.Errorf("read %s: %w", t.desc.NativeCredentialPath, err)
	}
	return t.deps.Creds.Save(t.desc.ID, profileName, &credential.Record{
		OAuthTokens: json.RawMessage(data),
	})
}

// authenticateAzure prompts for the key and the Azure resource name.
func (t *Codex) authenticateAzure(profileName string) error {
	key, err := t.deps.Prompter.Secret("Azure OpenAI API key: ")
	if err != nil {
		return fmt.Errorf("read API key: %w", err)
	}
	resource, err := t.deps.Prompter.Input("Azure OpenAI resource name: ")
	if err != nil {
		return fmt.Errorf("read resource name: %w", err)
	}
	if resource == "" {
		return errors.New("azure mode requires the Azure OpenAI resource name")
	}

	return t.deps.Creds.Save(t.desc.ID, profileName, &credential.Record{
		APIKey: key,
		Metadata: map[string]string{
			metaCodexProvider:      codexProviderAzure,
			metaCodexAzureResource: resource,
		},
	})
}

// Apply materializes a managed record into the Codex auth file.
func (t *Codex) Apply(ctx context.Context, profileName string, rec *credential.Record) (ApplyResult, error) {
	switch rec.Classify() {
	case credential.KindAPIKey:
		return t.applyAPIKey(ctx, rec)
	case credential.KindOAuth:
		return t.applyOAuth(rec)
	case credential.KindEnvVar:
		return t.applyEnvRecord(rec)
	default:
		return ApplyResult{}, fmt.Errorf("%w: codex record for profile %s has no payload",
			credential.ErrMalformed, profileName)
	}
}

// applyAPIKey writes a typed api-key payload into the auth file. OS-level
// environment variables for this provider would silently override the
// file, so their presence is warned about but does not fail the apply.
func (t *Codex) applyAPIKey(ctx context.Context, rec *credential.Record) (ApplyResult, error) {
	if err := t.clearProviderEnv(); err != nil {
		return ApplyResult{}, err
	}
	t.warnConflictingEnv(ctx)

	payload := map[string]any{
		"type":           "api-key",
		"OPENAI_API_KEY": rec.APIKey,
	}
	if rec.Meta(metaCodexProvider) == codexProviderAzure {
		resource := rec.Meta(metaCodexAzureResource)
		payload[metaCodexAzureResource] = resource
		payload["OPENAI_BASE_URL"] = codexAzureBaseURL(resource)
	} else if rec.BaseURL != "" {
		payload["OPENAI_BASE_URL"] = rec.BaseURL
	}

	if _, err := backupFile(t.desc.NativeCredentialPath); err != nil {
		return ApplyResult{}, err
	}
	if err := writeJSONDocument(t.desc.NativeCredentialPath, payload, 0o600); err != nil {
		return ApplyResult{}, err
	}
	return ApplyResult{NeedsRestart: true}, nil
}

// applyOAuth copies the OAuth payload verbatim into the auth file.
func (t *Codex) applyOAuth(rec *credential.Record) (ApplyResult, error) {
	if err := t.clearProviderEnv(); err != nil {
		return ApplyResult{}, err
	}
	if _, err := backupFile(t.desc.NativeCredentialPath); err != nil {
		return ApplyResult{}, err
	}
	if err := writeFileAtomic(t.desc.NativeCredentialPath, rec.OAuthTokens, 0o600); err != nil {
		return ApplyResult{}, err
	}
	return ApplyResult{NeedsRestart: true}, nil
}

// warnConflictingEnv flags OS-level provider variables already set in the
// current process environment.
func (t *Codex) warnConflictingEnv(ctx context.Context) {
	for _, name := range t.desc.EnvVarNames() {
		if value, ok := os.LookupEnv(name); ok && value != "" {
			slogger.L(ctx).Warn("environment variable overrides the file-based credential; unset it if codex picks the wrong key",
				"variable", name)
		}
	}
}

// Logout removes the Codex auth file and the profile's managed record.
func (t *Codex) Logout(_ context.Context, profileName string) error {
	if _, err := backupFile(t.desc.NativeCredentialPath); err != nil {
		return err
	}
	if err := t.clearProviderEnv(); err != nil {
		return err
	}
	return t.deps.Creds.Clear(t.desc.ID, profileName)
}

// codexAzureBaseURL derives the deployment endpoint for an Azure OpenAI
// resource. The shape is load-bearing: users may have copied the derived
// URL into their own tooling.
func codexAzureBaseURL(resource string) string {
	return fmt.Sprintf("https://%s.openai.azure.com/openai/deployments/%s", resource, codexAzureDeployment)
}
