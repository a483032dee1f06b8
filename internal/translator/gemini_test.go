package translator

import (
	"context"
	"encoding/base64"
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

func geminiIDToken(t *testing.T, email string) string {
	t.Helper()
	claims, err := json.Marshal(map[string]string{"email": email})
	require.NoError(t, err)
	seg := base64.RawURLEncoding.EncodeToString
	return seg([]byte(`{"alg":"RS256"}`)) + "." + seg(claims) + "." + seg([]byte("sig"))
}

func geminiSelectedType(t *testing.T, box *testEnvBox) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(box.home, ".gemini", "settings.json"))
	require.NoError(t, err)
	var settings struct {
		Security struct {
			Auth struct {
				SelectedType string `json:"selectedType"`
			} `json:"auth"`
		} `json:"security"`
	}
	require.NoError(t, json.Unmarshal(data, &settings))
	return settings.Security.Auth.SelectedType
}

func TestGeminiApplyPlainAPIKey(t *testing.T) {
	box := newTestDeps(t)
	tr := NewGemini(box.deps)
	envPath := filepath.Join(box.home, ".gemini", ".env")

	// Unrelated keys and comments must survive the rewrite.
	writeTestFile(t, envPath, []byte("# my settings\nOTHER_TOOL_VAR=keep\n"))
	writeTestFile(t, tr.desc.NativeCredentialPath, []byte(`{"access_token":"stale"}`))

	result, err := tr.Apply(context.Background(), "work", &credential.Record{APIKey: "AIzaTest"})
	require.NoError(t, err)
	assert.True(t, result.NeedsRestart)

	// Stale OAuth cache deleted: the two modes never coexist.
	assert.NoFileExists(t, tr.desc.NativeCredentialPath)

	env, err := loadDotenv(envPath)
	require.NoError(t, err)
	key, ok := env.Get("GEMINI_API_KEY")
	require.True(t, ok)
	assert.Equal(t, "AIzaTest", key)
	other, ok := env.Get("OTHER_TOOL_VAR")
	require.True(t, ok)
	assert.Equal(t, "keep", other)

	assert.Equal(t, geminiAuthTypeAPIKey, geminiSelectedType(t, box))
}

func TestGeminiSwitchPlainToVertexLeavesOnlyVertexKeys(t *testing.T) {
	box := newTestDeps(t)
	tr := NewGemini(box.deps)
	envPath := filepath.Join(box.home, ".gemini", ".env")

	_, err := tr.Apply(context.Background(), "work", &credential.Record{APIKey: "AIzaPlain"})
	require.NoError(t, err)

	_, err = tr.Apply(context.Background(), "work", &credential.Record{
		APIKey: "AIzaVertex",
		Metadata: map[string]string{
			metaGeminiMode:     geminiAuthTypeVertexAI,
			metaGeminiProject:  "my-proj",
			metaGeminiLocation: "us-central1",
		},
	})
	require.NoError(t, err)

	env, err := loadDotenv(envPath)
	require.NoError(t, err)

	_, hasPlain := env.Get("GEMINI_API_KEY")
	assert.False(t, hasPlain, "old mode's key must not survive the switch")

	key, _ := env.Get("GOOGLE_API_KEY")
	assert.Equal(t, "AIzaVertex", key)
	proj, _ := env.Get("GOOGLE_CLOUD_PROJECT")
	assert.Equal(t, "my-proj", proj)
	loc, _ := env.Get("GOOGLE_CLOUD_LOCATION")
	assert.Equal(t, "us-central1", loc)

	assert.Equal(t, geminiAuthTypeVertexAI, geminiSelectedType(t, box))
}

func TestGeminiSwitchVertexToPlainLeavesOnlyPlainKey(t *testing.T) {
	box := newTestDeps(t)
	tr := NewGemini(box.deps)
	envPath := filepath.Join(box.home, ".gemini", ".env")

	_, err := tr.Apply(context.Background(), "work", &credential.Record{
		APIKey: "AIzaVertex",
		Metadata: map[string]string{
			metaGeminiMode:     geminiAuthTypeVertexAI,
			metaGeminiProject:  "my-proj",
			metaGeminiLocation: "us-central1",
		},
	})
	require.NoError(t, err)

	_, err = tr.Apply(context.Background(), "work", &credential.Record{APIKey: "AIzaPlain"})
	require.NoError(t, err)

	env, err := loadDotenv(envPath)
	require.NoError(t, err)
	for _, stale := range []string{"GOOGLE_API_KEY", "GOOGLE_CLOUD_PROJECT", "GOOGLE_CLOUD_LOCATION"} {
		_, ok := env.Get(stale)
		assert.Falsef(t, ok, "%s must not survive the switch", stale)
	}
	key, _ := env.Get("GEMINI_API_KEY")
	assert.Equal(t, "AIzaPlain", key)
}

func TestGeminiApplyOAuthClearsAPIKeyLines(t *testing.T) {
	box := newTestDeps(t)
	tr := NewGemini(box.deps)
	envPath := filepath.Join(box.home, ".gemini", ".env")

	_, err := tr.Apply(context.Background(), "work", &credential.Record{APIKey: "AIzaPlain"})
	require.NoError(t, err)

	envelope, err := json.Marshal(map[string]any{
		"access_token": "ya29.fresh",
		"id_token":     geminiIDToken(t, "dev@example.com"),
	})
	require.NoError(t, err)

	result, err := tr.Apply(context.Background(), "work", &credential.Record{
		OAuthTokens: json.RawMessage(envelope),
	})
	require.NoError(t, err)
	assert.True(t, result.NeedsRestart)

	env, err := loadDotenv(envPath)
	require.NoError(t, err)
	_, ok := env.Get("GEMINI_API_KEY")
	assert.False(t, ok)

	data, err := os.ReadFile(tr.desc.NativeCredentialPath)
	require.NoError(t, err)
	assert.Equal(t, []byte(envelope), data)

	assert.Equal(t, geminiAuthTypeOAuth, geminiSelectedType(t, box))
}

func TestGeminiAccountLedger(t *testing.T) {
	box := newTestDeps(t)
	tr := NewGemini(box.deps)

	require.NoError(t, tr.recordActiveAccount("first@example.com"))
	require.NoError(t, tr.recordActiveAccount("second@example.com"))
	// Re-activating an old account removes it from the seen list.
	require.NoError(t, tr.recordActiveAccount("first@example.com"))

	data, err := os.ReadFile(tr.accountsPath)
	require.NoError(t, err)
	var ledger geminiAccounts
	require.NoError(t, json.Unmarshal(data, &ledger))
	assert.Equal(t, "first@example.com", ledger.Active)
	assert.Equal(t, []string{"second@example.com"}, ledger.Old)
}

func TestGeminiAccountEmail(t *testing.T) {
	token := geminiIDToken(t, "dev@example.com")
	envelope, err := json.Marshal(map[string]string{"id_token": token})
	require.NoError(t, err)

	assert.Equal(t, "dev@example.com", geminiAccountEmail(envelope))
	assert.Empty(t, geminiAccountEmail([]byte(`{"access_token":"only"}`)))
	assert.Empty(t, geminiAccountEmail([]byte(`{"id_token":"not.a-jwt"}`)))
	assert.Empty(t, geminiAccountEmail([]byte(`not json`)))
}

func TestGeminiAuthenticateVertexRequiresProject(t *testing.T) {
	box := newTestDeps(t)
	box.prompter.secrets = []string{"AIzaKey"}
	box.prompter.inputs = []string{""}
	tr := NewGemini(box.deps)

	err := tr.Authenticate(context.Background(), geminiOptionVertexAI, "work")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project")
}

func TestGeminiAuthenticateVertexStoresRecord(t *testing.T) {
	box := newTestDeps(t)
	box.prompter.secrets = []string{"AIzaKey"}
	box.prompter.inputs = []string{"my-proj", "europe-west1"}
	tr := NewGemini(box.deps)

	require.NoError(t, tr.Authenticate(context.Background(), geminiOptionVertexAI, "work"))

	rec, err := box.deps.Creds.Load(provider.Gemini, "work")
	require.NoError(t, err)
	assert.Equal(t, "AIzaKey", rec.APIKey)
	assert.Equal(t, geminiAuthTypeVertexAI, rec.Meta(metaGeminiMode))
	assert.Equal(t, "my-proj", rec.Meta(metaGeminiProject))
	assert.Equal(t, "europe-west1", rec.Meta(metaGeminiLocation))
}

func TestGeminiAuthenticateOAuthDeletesStaleCache(t *testing.T) {
	box := newTestDeps(t)
	tr := NewGemini(box.deps)

	writeTestFile(t, tr.desc.NativeCredentialPath, []byte(`{"access_token":"stale"}`))

	// The CLI silently reuses a stale cached session, so the cache must be
	// gone before the login subprocess starts; the subprocess then writes
	// the fresh session.
	box.executor.onRun = func(_ exec.RunOptions) {
		assert.NoFileExists(t, tr.desc.NativeCredentialPath)
		writeTestFile(t, tr.desc.NativeCredentialPath, []byte(`{"access_token":"ya29.fresh"}`))
	}

	require.NoError(t, tr.Authenticate(context.Background(), geminiOptionOAuth, "work"))
	require.Len(t, box.executor.commands, 1)
	assert.Equal(t, []string{"gemini"}, box.executor.commands[0])

	rec, err := box.deps.Creds.Load(provider.Gemini, "work")
	require.NoError(t, err)
	assert.JSONEq(t, `{"access_token":"ya29.fresh"}`, string(rec.OAuthTokens))
}
