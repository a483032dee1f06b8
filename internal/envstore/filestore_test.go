package envstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ljyou001/multicoder/internal/paths"
)

// newTestFileStore builds a fileStore rooted in temp directories with
// process-environment mirroring disabled.
func newTestFileStore(t *testing.T) (*fileStore, string) {
	t.Helper()
	home := t.TempDir()
	configDir := filepath.Join(home, ".config", "multicoder")

	s, err := newFileStore(Options{
		ConfigDir:   configDir,
		HomeDir:     home,
		SkipProcess: true,
	})
	require.NoError(t, err)
	return s, home
}

func TestFileStore_SetGetList(t *testing.T) {
	s, _ := newTestFileStore(t)

	require.NoError(t, s.Set("FOO", "bar", ScopeUser))
	require.NoError(t, s.Set("BAZ", `multi "line"`+"\nvalue", ScopeUser))

	value, ok, err := s.Get("FOO", ScopeUser)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bar", value)

	vars, err := s.List(ScopeUser)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"FOO": "bar",
		"BAZ": `multi "line"` + "\nvalue",
	}, vars)
}

func TestFileStore_GetAbsent(t *testing.T) {
	s, _ := newTestFileStore(t)

	_, ok, err := s.Get("NOPE", ScopeUser)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStore_RemoveIdempotent(t *testing.T) {
	s, _ := newTestFileStore(t)

	require.NoError(t, s.Remove("NEVER_SET", ScopeUser))
}

func TestFileStore_ShellBlockLifecycle(t *testing.T) {
	s, home := newTestFileStore(t)
	bashrc := filepath.Join(home, ".bashrc")
	require.NoError(t, os.WriteFile(bashrc, []byte("# mine\n"), 0o644))

	// Setting the first variable injects the managed block.
	require.NoError(t, s.Set("FOO", "bar", ScopeUser))
	data, err := os.ReadFile(bashrc)
	require.NoError(t, err)
	assert.Contains(t, string(data), blockBegin)

	// All startup files get the block, created when missing.
	for _, name := range shellStartupFiles {
		_, err := os.Stat(filepath.Join(home, name))
		assert.NoError(t, err, "expected %s to exist", name)
	}

	// Removing the last variable strips the block and the env file.
	require.NoError(t, s.Remove("FOO", ScopeUser))
	data, err = os.ReadFile(bashrc)
	require.NoError(t, err)
	assert.NotContains(t, string(data), blockBegin)

	_, err = os.Stat(paths.EnvFile(filepath.Join(home, ".config", "multicoder")))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_SystemScopeUnsupportedWithoutFile(t *testing.T) {
	s, _ := newTestFileStore(t)

	// No system file configured: the macOS arrangement.
	err := s.Set("FOO", "bar", ScopeSystem)
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)

	_, err = s.List(ScopeSystem)
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestFileStore_SystemScopeWithDropIn(t *testing.T) {
	s, _ := newTestFileStore(t)
	profileDir := t.TempDir()
	s.systemFile = filepath.Join(profileDir, "multicoder.sh")

	require.NoError(t, s.Set("GLOBAL", "yes", ScopeSystem))

	vars, err := s.List(ScopeSystem)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"GLOBAL": "yes"}, vars)

	// The drop-in must be readable by every user's login shell.
	info, err := os.Stat(s.systemFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	// System scope must not touch user shell startup files.
	home := filepath.Dir(filepath.Dir(filepath.Dir(s.userFile)))
	_, err = os.Stat(filepath.Join(home, ".bashrc"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_InvalidScope(t *testing.T) {
	s, _ := newTestFileStore(t)

	err := s.Set("FOO", "bar", Scope("session"))
	assert.ErrorIs(t, err, ErrInvalidScope)
}

func TestFileStore_ProcessEnvironmentMirroring(t *testing.T) {
	home := t.TempDir()
	s, err := newFileStore(Options{
		ConfigDir: filepath.Join(home, ".config", "multicoder"),
		HomeDir:   home,
	})
	require.NoError(t, err)

	t.Setenv("MULTICODER_TEST_VAR", "stale")
	require.NoError(t, s.Set("MULTICODER_TEST_VAR", "fresh", ScopeUser))
	assert.Equal(t, "fresh", os.Getenv("MULTICODER_TEST_VAR"))

	require.NoError(t, s.Remove("MULTICODER_TEST_VAR", ScopeUser))
	_, present := os.LookupEnv("MULTICODER_TEST_VAR")
	assert.False(t, present)
}
