package translator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ljyou001/multicoder/internal/credential"
	"github.com/ljyou001/multicoder/internal/provider"
	"github.com/ljyou001/multicoder/internal/slogger"
)

// Gemini auth option ids.
const (
	geminiOptionOAuth    = "oauth"
	geminiOptionAPIKey   = "api-key"
	geminiOptionVertexAI = "vertex-ai"
)

// Gemini CLI settings values for security.auth.selectedType.
const (
	geminiAuthTypeOAuth    = "oauth-personal"
	geminiAuthTypeAPIKey   = "gemini-api-key"
	geminiAuthTypeVertexAI = "vertex-ai"
)

// Record metadata keys for the Vertex-AI mode.
const (
	metaGeminiMode     = "mode"
	metaGeminiProject  = "projectId"
	metaGeminiLocation = "location"
)

// geminiEnvKeys are every .env key any Gemini auth mode writes. Each mode
// switch clears all of them first so no leftover keys from the previous
// mode survive.
var geminiEnvKeys = []string{
	"GEMINI_API_KEY",
	"GOOGLE_API_KEY",
	"GOOGLE_CLOUD_PROJECT",
	"GOOGLE_CLOUD_LOCATION",
}

// Gemini translates credentials into Gemini CLI's native shape: API-key
// modes live as lines in a provider-owned .env file plus a selectedType
// marker in the settings document; OAuth mode is a cached token file and
// an account ledger.
type Gemini struct {
	base
	envPath      string
	settingsPath string
	accountsPath string
}

// NewGemini creates the Gemini translator.
func NewGemini(deps Deps) *Gemini {
	dir := filepath.Join(deps.Home, ".gemini")
	return &Gemini{
		base:         newBase(deps, provider.Gemini),
		envPath:      filepath.Join(dir, ".env"),
		settingsPath: filepath.Join(dir, "settings.json"),
		accountsPath: filepath.Join(dir, "google_accounts.json"),
	}
}

// Options lists Gemini's auth options.
func (t *Gemini) Options() []AuthOption {
	return []AuthOption{
		{ID: geminiOptionOAuth, Name: "Google Account", Description: "Sign in with Google via browser OAuth"},
		{ID: geminiOptionAPIKey, Name: "Gemini API Key", Description: "API key from Google AI Studio"},
		{ID: geminiOptionVertexAI, Name: "Vertex AI", Description: "Vertex AI API key with project and location"},
	}
}

// Authenticate acquires a Gemini credential and stores it as the
// profile's managed record.
func (t *Gemini) Authenticate(ctx context.Context, optionID, profileName string) error {
	switch optionID {
	case geminiOptionOAuth:
		return t.authenticateOAuth(ctx, profileName)
	case geminiOptionAPIKey:
		key, err := t.deps.Prompter.Secret("Gemini API key: ")
		if err != nil {
			return fmt.Errorf("read API key: %w", err)
		}
		return t.deps.Creds.Save(t.desc.ID, profileName, &credential.Record{APIKey: key})
	case geminiOptionVertexAI:
		return t.authenticateVertexAI(profileName)
	default:
		return fmt.Errorf("unknown auth option for gemini: %s", optionID)
	}
}

// authenticateOAuth drives Gemini CLI's browser OAuth flow. Any stale
// cached session is deleted first: the CLI silently reuses it otherwise
// instead of starting a fresh flow.
func (t *Gemini) authenticateOAuth(ctx context.Context, profileName string) error {
	if err := removeFile(t.desc.NativeCredentialPath); err != nil {
		return err
	}

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

// authenticateVertexAI prompts for the key, project, and location.
func (t *Gemini) authenticateVertexAI(profileName string) error {
	key, err := t.deps.Prompter.Secret("Vertex AI API key: ")
	if err != nil {
		return fmt.Errorf("read API key: %w", err)
	}
	projectID, err := t.deps.Prompter.Input("Google Cloud project ID: ")
	if err != nil {
		return fmt.Errorf("read project ID: %w", err)
	}
	if projectID == "" {
		return errors.New("vertex-ai mode requires a Google Cloud project ID")
	}
	location, err := t.deps.Prompter.Input("Google Cloud location (e.g. us-central1): ")
	if err != nil {
		return fmt.Errorf("read location: %w", err)
	}
	if location == "" {
		return errors.New("vertex-ai mode requires a Google Cloud location")
	}

	return t.deps.Creds.Save(t.desc.ID, profileName, &credential.Record{
		APIKey: key,
		Metadata: map[string]string{
			metaGeminiMode:     geminiAuthTypeVertexAI,
			metaGeminiProject:  projectID,
			metaGeminiLocation: location,
		},
	})
}

// Apply materializes a managed record into Gemini CLI's native state.
func (t *Gemini) Apply(ctx context.Context, profileName string, rec *credential.Record) (ApplyResult, error) {
	switch rec.Classify() {
	case credential.KindAPIKey:
		return t.applyAPIKey(rec)
	case credential.KindOAuth:
		return t.applyOAuth(ctx, rec)
	case credential.KindEnvVar:
		return t.applyEnvRecord(rec)
	default:
		return ApplyResult{}, fmt.Errorf("%w: gemini record for profile %s has no payload",
			credential.ErrMalformed, profileName)
	}
}

// applyAPIKey writes the key into the .env file and marks the matching
// auth type in settings. The cached OAuth session is deleted so the two
// modes never coexist.
func (t *Gemini) applyAPIKey(rec *credential.Record) (ApplyResult, error) {
	if err := t.clearProviderEnv(); err != nil {
		return ApplyResult{}, err
	}
	if err := removeFile(t.desc.NativeCredentialPath); err != nil {
		return ApplyResult{}, err
	}

	env, err := loadDotenv(t.envPath)
	if err != nil {
		return ApplyResult{}, err
	}
	for _, key := range geminiEnvKeys {
		env.Unset(key)
	}

	authType := geminiAuthTypeAPIKey
	if rec.Meta(metaGeminiMode) == geminiAuthTypeVertexAI {
		authType = geminiAuthTypeVertexAI
		env.Set("GOOGLE_API_KEY", rec.APIKey)
		env.Set("GOOGLE_CLOUD_PROJECT", rec.Meta(metaGeminiProject))
		env.Set("GOOGLE_CLOUD_LOCATION", rec.Meta(metaGeminiLocation))
	} else {
		env.Set("GEMINI_API_KEY", rec.APIKey)
	}

	if err := saveDotenv(t.envPath, env); err != nil {
		return ApplyResult{}, err
	}
	if err := t.setSelectedAuthType(authType); err != nil {
		return ApplyResult{}, err
	}
	return ApplyResult{NeedsRestart: true}, nil
}

// applyOAuth writes the cached OAuth session, clears any API-key lines
// from the .env file, and records the account in the ledger.
func (t *Gemini) applyOAuth(ctx context.Context, rec *credential.Record) (ApplyResult, error) {
	if err := t.clearProviderEnv(); err != nil {
		return ApplyResult{}, err
	}

	env, err := loadDotenv(t.envPath)
	if err != nil {
		return ApplyResult{}, err
	}
	for _, key := range geminiEnvKeys {
		env.Unset(key)
	}
	if err := saveDotenv(t.envPath, env); err != nil {
		return ApplyResult{}, err
	}

	if _, err := backupFile(t.desc.NativeCredentialPath); err != nil {
		return ApplyResult{}, err
	}
	if err := writeFileAtomic(t.desc.NativeCredentialPath, rec.OAuthTokens, 0o600); err != nil {
		return ApplyResult{}, err
	}

	if err := t.setSelectedAuthType(geminiAuthTypeOAuth); err != nil {
		return ApplyResult{}, err
	}

	if email := geminiAccountEmail(rec.OAuthTokens); email != "" {
		if err := t.recordActiveAccount(email); err != nil {
			return ApplyResult{}, err
		}
	} else {
		slogger.L(ctx).Debug("no identity token in gemini oauth payload; account ledger unchanged")
	}
	return ApplyResult{NeedsRestart: true}, nil
}

// setSelectedAuthType writes security.auth.selectedType in the settings
// document, preserving every other field.
func (t *Gemini) setSelectedAuthType(authType string) error {
	settings, err := readJSONDocument(t.settingsPath)
	if err != nil {
		return err
	}

	security, ok := settings["security"].(map[string]any)
	if !ok {
		security = map[string]any{}
		settings["security"] = security
	}
	auth, ok := security["auth"].(map[string]any)
	if !ok {
		auth = map[string]any{}
		security["auth"] = auth
	}
	auth["selectedType"] = authType

	return writeJSONDocument(t.settingsPath, settings, 0o600)
}

// clearSelectedAuthType removes the selectedType marker if present.
func (t *Gemini) clearSelectedAuthType() error {
	if !fileExists(t.settingsPath) {
		return nil
	}
	settings, err := readJSONDocument(t.settingsPath)
	if err != nil {
		return err
	}
	security, ok := settings["security"].(map[string]any)
	if !ok {
		return nil
	}
	auth, ok := security["auth"].(map[string]any)
	if !ok {
		return nil
	}
	if _, present := auth["selectedType"]; !present {
		return nil
	}
	delete(auth, "selectedType")
	return writeJSONDocument(t.settingsPath, settings, 0o600)
}

// geminiAccounts is the active/previously-seen account ledger kept next
// to the OAuth cache.
type geminiAccounts struct {
	Active string   `json:"active"`
	Old    []string `json:"old,omitempty"`
}

// recordActiveAccount makes email the active account, demoting any
// different previous one into the seen list.
func (t *Gemini) recordActiveAccount(email string) error {
	var ledger geminiAccounts
	if data, err := os.ReadFile(t.accountsPath); err == nil { //nolint:gosec // Provider-owned path
		// A corrupt ledger is rebuilt from scratch.
		_ = json.Unmarshal(data, &ledger) //nolint:errcheck
	}

	if ledger.Active == email {
		return nil
	}
	if ledger.Active != "" && !contains(ledger.Old, ledger.Active) {
		ledger.Old = append(ledger.Old, ledger.Active)
	}
	ledger.Old = remove(ledger.Old, email)
	ledger.Active = email

	return writeJSONDocument(t.accountsPath, ledger, 0o600)
}

// Logout removes Gemini's native credential material and the profile's
// managed record.
func (t *Gemini) Logout(_ context.Context, profileName string) error {
	if _, err := backupFile(t.desc.NativeCredentialPath); err != nil {
		return err
	}

	env, err := loadDotenv(t.envPath)
	if err != nil {
		return err
	}
	for _, key := range geminiEnvKeys {
		env.Unset(key)
	}
	if err := saveDotenv(t.envPath, env); err != nil {
		return err
	}

	if err := t.clearSelectedAuthType(); err != nil {
		return err
	}
	if err := t.clearProviderEnv(); err != nil {
		return err
	}
	return t.deps.Creds.Clear(t.desc.ID, profileName)
}

// geminiAccountEmail decodes the email claim from the identity token
// embedded in an OAuth payload. Returns "" when no token or claim is
// present; the ledger is simply left untouched then.
func geminiAccountEmail(oauthTokens json.RawMessage) string {
	var payload struct {
		IDToken string `json:"id_token"`
	}
	if err := json.Unmarshal(oauthTokens, &payload); err != nil || payload.IDToken == "" {
		return ""
	}

	parts := strings.Split(payload.IDToken, ".")
	if len(parts) != 3 {
		return ""
	}
	claimsJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return ""
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return ""
	}
	return claims.Email
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	kept := list[:0]
	for _, v := range list {
		if v != s {
			kept = append(kept, v)
		}
	}
	return kept
}
