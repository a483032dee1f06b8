package migrate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ljyou001/multicoder/internal/paths"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestRunMovesWholeLegacyDir(t *testing.T) {
	root := t.TempDir()
	legacy := filepath.Join(root, ".multicoder")
	canonical := filepath.Join(root, ".config", "multicoder")

	writeFile(t, filepath.Join(legacy, paths.ProfilesFileName), `{"version":"1"}`)
	writeFile(t, filepath.Join(legacy, paths.CredentialsDir, "claude", "work.json"), `{"apiKey":"sk-ant-x"}`)

	require.NoError(t, Run(context.Background(), canonical, []string{legacy}))

	data, err := os.ReadFile(filepath.Join(canonical, paths.ProfilesFileName))
	require.NoError(t, err)
	assert.Equal(t, `{"version":"1"}`, string(data))
	assert.FileExists(t, filepath.Join(canonical, paths.CredentialsDir, "claude", "work.json"))
	assert.NoDirExists(t, legacy)
}

func TestRunMovesOnlyMissingPieces(t *testing.T) {
	root := t.TempDir()
	legacy := filepath.Join(root, ".multicoder")
	canonical := filepath.Join(root, ".config", "multicoder")

	// Canonical already has a profiles file; legacy has both.
	writeFile(t, filepath.Join(canonical, paths.ProfilesFileName), `{"version":"1","profiles":[]}`)
	writeFile(t, filepath.Join(legacy, paths.ProfilesFileName), `{"version":"old"}`)
	writeFile(t, filepath.Join(legacy, paths.CredentialsDir, "codex", "p1.json"), `{"apiKey":"sk-x"}`)

	require.NoError(t, Run(context.Background(), canonical, []string{legacy}))

	// Existing canonical file untouched.
	data, err := os.ReadFile(filepath.Join(canonical, paths.ProfilesFileName))
	require.NoError(t, err)
	assert.Equal(t, `{"version":"1","profiles":[]}`, string(data))

	// Missing piece migrated.
	assert.FileExists(t, filepath.Join(canonical, paths.CredentialsDir, "codex", "p1.json"))

	// The legacy profiles file stays where it was: it had nothing to offer.
	assert.FileExists(t, filepath.Join(legacy, paths.ProfilesFileName))
}

func TestRunNoLegacyDirIsNoop(t *testing.T) {
	root := t.TempDir()
	canonical := filepath.Join(root, ".config", "multicoder")

	require.NoError(t, Run(context.Background(), canonical, []string{filepath.Join(root, ".absent")}))
	assert.NoDirExists(t, canonical)
}

func TestRunPicksFirstExistingLegacyDir(t *testing.T) {
	root := t.TempDir()
	first := filepath.Join(root, ".multicoder")
	second := filepath.Join(root, ".config", "multi-coder")
	canonical := filepath.Join(root, ".config", "multicoder")

	writeFile(t, filepath.Join(first, paths.ProfilesFileName), `{"version":"first"}`)
	writeFile(t, filepath.Join(second, paths.ProfilesFileName), `{"version":"second"}`)

	require.NoError(t, Run(context.Background(), canonical, []string{first, second}))

	data, err := os.ReadFile(filepath.Join(canonical, paths.ProfilesFileName))
	require.NoError(t, err)
	assert.Equal(t, `{"version":"first"}`, string(data))

	// The lower-priority legacy dir is left untouched.
	assert.FileExists(t, filepath.Join(second, paths.ProfilesFileName))
}
