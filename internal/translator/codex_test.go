package translator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ljyou001/multicoder/internal/credential"
	"github.com/ljyou001/multicoder/internal/exec"
	"github.com/ljyou001/multicoder/internal/provider"
)

func TestCodexAzureBaseURL(t *testing.T) {
	// The derived URL shape is load-bearing: users may have saved it.
	assert.Equal(t,
		"https://acme.openai.azure.com/openai/deployments/gpt-5-codex",
		codexAzureBaseURL("acme"))
}

func TestCodexApplyAzureAPIKey(t *testing.T) {
	box := newTestDeps(t)
	tr := NewCodex(box.deps)

	require.NoError(t, box.deps.Creds.Save(provider.Codex, "p1", &credential.Record{
		APIKey: "sk-test",
		Metadata: map[string]string{
			metaCodexProvider:      "azure",
			metaCodexAzureResource: "acme",
		},
	}))

	reg := NewRegistry(box.deps)
	result, err := reg.Apply(context.Background(), provider.Codex, "p1")
	require.NoError(t, err)
	assert.True(t, result.NeedsRestart)

	data, err := os.ReadFile(tr.desc.NativeCredentialPath)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "api-key", payload["type"])
	assert.Equal(t, "sk-test", payload["OPENAI_API_KEY"])
	assert.Equal(t, "acme", payload["azureResourceName"])
	assert.Equal(t, "https://acme.openai.azure.com/openai/deployments/gpt-5-codex", payload["OPENAI_BASE_URL"])
}

func TestCodexApplyPlainAPIKey(t *testing.T) {
	box := newTestDeps(t)
	tr := NewCodex(box.deps)

	result, err := tr.Apply(context.Background(), "p1", &credential.Record{APIKey: "sk-plain"})
	require.NoError(t, err)
	assert.True(t, result.NeedsRestart)

	data, err := os.ReadFile(tr.desc.NativeCredentialPath)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, "api-key", payload["type"])
	assert.Equal(t, "sk-plain", payload["OPENAI_API_KEY"])
	assert.NotContains(t, payload, "OPENAI_BASE_URL")
	assert.NotContains(t, payload, "azureResourceName")
}

func TestCodexApplyOAuthCopiesVerbatimWithBackup(t *testing.T) {
	box := newTestDeps(t)
	tr := NewCodex(box.deps)

	writeTestFile(t, tr.desc.NativeCredentialPath, []byte(`{"type":"api-key","OPENAI_API_KEY":"old"}`))

	envelope := []byte(`{"tokens":{"access_token":"at","id_token":"it"},"last_refresh":"2026-08-30T00:00:00Z"}`)
	result, err := tr.Apply(context.Background(), "p1", &credential.Record{
		OAuthTokens: json.RawMessage(envelope),
	})
	require.NoError(t, err)
	assert.True(t, result.NeedsRestart)

	data, err := os.ReadFile(tr.desc.NativeCredentialPath)
	require.NoError(t, err)
	assert.Equal(t, envelope, data)

	backups, err := filepath.Glob(tr.desc.NativeCredentialPath + ".backup-*")
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestCodexAuthenticateAzure(t *testing.T) {
	box := newTestDeps(t)
	box.prompter.secrets = []string{"sk-az"}
	box.prompter.inputs = []string{"acme"}
	tr := NewCodex(box.deps)

	require.NoError(t, tr.Authenticate(context.Background(), codexOptionAzure, "p1"))

	rec, err := box.deps.Creds.Load(provider.Codex, "p1")
	require.NoError(t, err)
	assert.Equal(t, "sk-az", rec.APIKey)
	assert.Equal(t, "azure", rec.Meta(metaCodexProvider))
	assert.Equal(t, "acme", rec.Meta(metaCodexAzureResource))
}

func TestCodexAuthenticateAzureRequiresResource(t *testing.T) {
	box := newTestDeps(t)
	box.prompter.secrets = []string{"sk-az"}
	box.prompter.inputs = []string{""}
	tr := NewCodex(box.deps)

	err := tr.Authenticate(context.Background(), codexOptionAzure, "p1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resource name")
}

func TestCodexAuthenticateOAuthCapturesAuthFile(t *testing.T) {
	box := newTestDeps(t)
	tr := NewCodex(box.deps)

	box.executor.onRun = func(_ exec.RunOptions) {
		writeTestFile(t, tr.desc.NativeCredentialPath,
			[]byte(`{"tokens":{"access_token":"at","id_token":"it"}}`))
	}

	require.NoError(t, tr.Authenticate(context.Background(), codexOptionOAuth, "p1"))
	require.Len(t, box.executor.commands, 1)
	assert.Equal(t, []string{"codex", "login"}, box.executor.commands[0])

	rec, err := box.deps.Creds.Load(provider.Codex, "p1")
	require.NoError(t, err)
	assert.Equal(t, credential.KindOAuth, rec.Classify())
}
