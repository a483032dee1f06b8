package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ljyou001/multicoder/internal/credential"
	"github.com/ljyou001/multicoder/internal/provider"
	"github.com/ljyou001/multicoder/internal/slogger"
)

// Claude auth option ids.
const (
	claudeOptionOAuth  = "oauth"
	claudeOptionAPIKey = "api-key"
)

// ansiEscape matches ANSI escape sequences.
var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]|\x1b\][^\x07]*\x07|\x1b[()][AB012]`)

// Claude translates credentials into Claude Code's two native formats: an
// OAuth envelope in a fixed credentials file, and an API-key mode written
// as an environment block inside the settings document. The two are
// mutually exclusive: both holding live material at once makes the
// provider CLI ambiguous about which to use, so applying either mode
// removes the other.
type Claude struct {
	base
	settingsPath string
}

// NewClaude creates the Claude translator.
func NewClaude(deps Deps) *Claude {
	return &Claude{
		base:         newBase(deps, provider.Claude),
		settingsPath: filepath.Join(deps.Home, ".claude", "settings.json"),
	}
}

// Options lists Claude's auth options.
func (t *Claude) Options() []AuthOption {
	return []AuthOption{
		{ID: claudeOptionOAuth, Name: "Subscription", Description: "Claude Pro/Max subscription via OAuth token"},
		{ID: claudeOptionAPIKey, Name: "API Key", Description: "Anthropic API key for pay-per-use billing"},
	}
}

// Authenticate acquires a Claude credential and stores it as the
// profile's managed record.
func (t *Claude) Authenticate(ctx context.Context, optionID, profileName string) error {
	switch optionID {
	case claudeOptionOAuth:
		return t.authenticateOAuth(ctx, profileName)
	case claudeOptionAPIKey:
		return t.authenticateAPIKey(profileName)
	default:
		return fmt.Errorf("unknown auth option for claude: %s", optionID)
	}
}

// authenticateOAuth runs `claude setup-token` interactively and stores
// the resulting OAuth token.
func (t *Claude) authenticateOAuth(ctx context.Context, profileName string) error {
	if _, err := t.deps.Executor.LookPath(t.desc.Binary); err != nil {
		return errors.New("claude CLI not found in PATH: please install Claude Code first")
	}

	output, err := runLoginCapture(ctx, t.desc.Binary, t.desc.LoginArgs)
	if err != nil {
		return err
	}

	// Prefer the native credentials file the CLI may have written.
	if data, readErr := os.ReadFile(t.desc.NativeCredentialPath); readErr == nil && len(data) > 0 { //nolint:gosec // Provider-owned path
		return t.deps.Creds.Save(t.desc.ID, profileName, &credential.Record{
			OAuthTokens: json.RawMessage(data),
		})
	}

	token := extractClaudeToken(output)
	if token == "" {
		return errors.New("no token received from claude setup-token")
	}

	envelope, err := json.Marshal(map[string]any{
		"oauth": map[string]any{"accessToken": token},
	})
	if err != nil {
		return fmt.Errorf("marshal token envelope: %w", err)
	}
	return t.deps.Creds.Save(t.desc.ID, profileName, &credential.Record{
		OAuthTokens: envelope,
	})
}

// authenticateAPIKey prompts for an API key and stores it.
func (t *Claude) authenticateAPIKey(profileName string) error {
	key, err := t.deps.Prompter.Secret("Anthropic API key: ")
	if err != nil {
		return fmt.Errorf("read API key: %w", err)
	}
	if err := validateClaudeAPIKey(key); err != nil {
		return err
	}
	return t.deps.Creds.Save(t.desc.ID, profileName, &credential.Record{APIKey: key})
}

// Apply materializes a managed record into Claude Code's native state.
func (t *Claude) Apply(ctx context.Context, profileName string, rec *credential.Record) (ApplyResult, error) {
	switch rec.Classify() {
	case credential.KindAPIKey:
		return t.applyAPIKey(ctx, rec)
	case credential.KindOAuth:
		return t.applyOAuth(rec)
	case credential.KindEnvVar:
		return t.applyEnvRecord(rec)
	default:
		return ApplyResult{}, fmt.Errorf("%w: claude record for profile %s has no payload",
			credential.ErrMalformed, profileName)
	}
}

// applyAPIKey removes the OAuth file (after a timestamped backup) and
// writes the key into the settings document's environment block.
func (t *Claude) applyAPIKey(ctx context.Context, rec *credential.Record) (ApplyResult, error) {
	if err := t.clearProviderEnv(); err != nil {
		return ApplyResult{}, err
	}

	backup, err := backupFile(t.desc.NativeCredentialPath)
	if err != nil {
		return ApplyResult{}, err
	}
	if backup != "" {
		slogger.L(ctx).Debug("backed up claude oauth credentials", "path", backup)
	}

	settings, err := readJSONDocument(t.settingsPath)
	if err != nil {
		return ApplyResult{}, err
	}

	env := map[string]any{"ANTHROPIC_API_KEY": rec.APIKey}
	if rec.BaseURL != "" {
		env["ANTHROPIC_BASE_URL"] = rec.BaseURL
	}
	settings["env"] = env

	if err := writeJSONDocument(t.settingsPath, settings, 0o600); err != nil {
		return ApplyResult{}, err
	}
	return ApplyResult{NeedsRestart: true}, nil
}

// applyOAuth writes the OAuth envelope and strips the environment block
// from settings.
func (t *Claude) applyOAuth(rec *credential.Record) (ApplyResult, error) {
	if err := t.clearProviderEnv(); err != nil {
		return ApplyResult{}, err
	}

	if _, err := backupFile(t.desc.NativeCredentialPath); err != nil {
		return ApplyResult{}, err
	}
	if err := writeFileAtomic(t.desc.NativeCredentialPath, rec.OAuthTokens, 0o600); err != nil {
		return ApplyResult{}, err
	}

	if err := t.stripSettingsEnv(); err != nil {
		return ApplyResult{}, err
	}
	return ApplyResult{NeedsRestart: true}, nil
}

// stripSettingsEnv removes the environment block from the settings
// document, preserving everything else.
func (t *Claude) stripSettingsEnv() error {
	if !fileExists(t.settingsPath) {
		return nil
	}
	settings, err := readJSONDocument(t.settingsPath)
	if err != nil {
		return err
	}
	if _, ok := settings["env"]; !ok {
		return nil
	}
	delete(settings, "env")
	return writeJSONDocument(t.settingsPath, settings, 0o600)
}

// Logout removes Claude's native credential material and the profile's
// managed record.
func (t *Claude) Logout(_ context.Context, profileName string) error {
	if _, err := backupFile(t.desc.NativeCredentialPath); err != nil {
		return err
	}
	if err := t.stripSettingsEnv(); err != nil {
		return err
	}
	if err := t.clearProviderEnv(); err != nil {
		return err
	}
	return t.deps.Creds.Clear(t.desc.ID, profileName)
}

// extractClaudeToken searches captured CLI output for an OAuth token.
func extractClaudeToken(output string) string {
	// Strip ANSI escape codes
	clean := ansiEscape.ReplaceAllString(output, "")

	// Normalize line endings (PTY may use \r\n or just \r)
	clean = strings.ReplaceAll(clean, "\r\n", "\n")
	clean = strings.ReplaceAll(clean, "\r", "\n")

	for _, line := range strings.Split(clean, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "sk-ant-") {
			return trimmed
		}
	}
	return ""
}

// validateClaudeAPIKey checks the key's shape only; keys are never
// validated against the remote service.
func validateClaudeAPIKey(key string) error {
	if !strings.HasPrefix(key, "sk-ant-") {
		return errors.New("invalid Anthropic API key: expected an sk-ant- prefix")
	}
	return nil
}
