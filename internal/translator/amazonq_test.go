package translator

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ljyou001/multicoder/internal/credential"
	"github.com/ljyou001/multicoder/internal/exec"
)

func amazonQToken(expiresAt string) []byte {
	if expiresAt == "" {
		return []byte(`{"accessToken":"aoa-token"}`)
	}
	return []byte(fmt.Sprintf(`{"accessToken":"aoa-token","expiresAt":%q}`, expiresAt))
}

func TestAmazonQDetectTokenPrefersCandidateFiles(t *testing.T) {
	box := newTestDeps(t)
	tr := NewAmazonQ(box.deps)
	now := time.Now()

	future := now.Add(time.Hour).Format(time.RFC3339)
	writeTestFile(t, tr.desc.CandidateCredentialPaths[0], amazonQToken(future))
	writeTestFile(t, filepath.Join(tr.desc.OAuthCacheDir, "aaa.json"), amazonQToken(future))

	path, ok := tr.detectToken(now)
	require.True(t, ok)
	assert.Equal(t, tr.desc.CandidateCredentialPaths[0], path)
}

func TestAmazonQDetectTokenSkipsExpiredAndMalformed(t *testing.T) {
	box := newTestDeps(t)
	tr := NewAmazonQ(box.deps)
	now := time.Now()

	// Expired candidate, malformed cache entry, then a valid cache entry.
	expired := now.Add(-time.Hour).Format(time.RFC3339)
	writeTestFile(t, tr.desc.CandidateCredentialPaths[0], amazonQToken(expired))
	writeTestFile(t, filepath.Join(tr.desc.OAuthCacheDir, "aaa.json"), []byte(`not json`))
	writeTestFile(t, filepath.Join(tr.desc.OAuthCacheDir, "bbb.json"), amazonQToken(""))

	path, ok := tr.detectToken(now)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(tr.desc.OAuthCacheDir, "bbb.json"), path)
}

func TestAmazonQDetectTokenNothingFound(t *testing.T) {
	box := newTestDeps(t)
	tr := NewAmazonQ(box.deps)

	_, ok := tr.detectToken(time.Now())
	assert.False(t, ok)
}

func TestAmazonQAuthenticateVerifiesToken(t *testing.T) {
	box := newTestDeps(t)
	tr := NewAmazonQ(box.deps)

	box.executor.onRun = func(_ exec.RunOptions) {
		future := time.Now().Add(time.Hour).Format(time.RFC3339)
		writeTestFile(t, tr.desc.CandidateCredentialPaths[0], amazonQToken(future))
	}

	require.NoError(t, tr.Authenticate(context.Background(), amazonQOptionSSO, "work"))
	require.Len(t, box.executor.commands, 1)
	assert.Equal(t, []string{"q", "login"}, box.executor.commands[0])
}

func TestAmazonQAuthenticateFailsWithoutToken(t *testing.T) {
	box := newTestDeps(t)
	tr := NewAmazonQ(box.deps)

	err := tr.Authenticate(context.Background(), amazonQOptionSSO, "work")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no valid Amazon Q credential")
}

func TestAmazonQApplyRejectsNativeKinds(t *testing.T) {
	box := newTestDeps(t)
	tr := NewAmazonQ(box.deps)

	_, err := tr.Apply(context.Background(), "work", &credential.Record{
		OAuthTokens: []byte(`{"accessToken":"x"}`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "q login")
}
