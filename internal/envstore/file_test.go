package envstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeRoundTrip(t *testing.T) {
	values := []string{
		"plain",
		`with "quotes"`,
		`back\slash`,
		"multi\nline\nvalue",
		`mixed "q" and \ and` + "\n" + `newline`,
		"",
		`trailing backslash \`,
	}

	for _, v := range values {
		assert.Equal(t, v, unescapeValue(escapeValue(v)), "value %q", v)
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	vars := map[string]string{
		"PLAIN":     "value",
		"QUOTED":    `a "b" c`,
		"BACKSLASH": `c:\path\to\thing`,
		"NEWLINES":  "line1\nline2",
	}

	first := serializeEnvFile(vars)
	reparsed := parseEnvFile(first)
	assert.Equal(t, vars, reparsed)

	// Re-serializing the reparsed map must be byte-identical.
	second := serializeEnvFile(reparsed)
	assert.Equal(t, first, second)
}

func TestParseEnvFile(t *testing.T) {
	t.Run("ignores comments and blank lines", func(t *testing.T) {
		data := []byte("# header\n\nexport FOO=\"bar\"\n# trailing comment\n")
		assert.Equal(t, map[string]string{"FOO": "bar"}, parseEnvFile(data))
	})

	t.Run("accepts lines without export prefix", func(t *testing.T) {
		data := []byte("FOO=\"bar\"\n")
		assert.Equal(t, map[string]string{"FOO": "bar"}, parseEnvFile(data))
	})

	t.Run("skips malformed lines", func(t *testing.T) {
		data := []byte("not a variable\nexport FOO=\"bar\"\n")
		assert.Equal(t, map[string]string{"FOO": "bar"}, parseEnvFile(data))
	})
}

func TestLoadSaveEnvFile(t *testing.T) {
	t.Run("missing file is empty", func(t *testing.T) {
		vars, err := loadEnvFile(filepath.Join(t.TempDir(), "absent.env"))
		require.NoError(t, err)
		assert.Empty(t, vars)
	})

	t.Run("round trips through disk", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vars.env")
		want := map[string]string{"A": "1", "B": `two "2"`}

		require.NoError(t, saveEnvFile(path, want, 0o600))

		got, err := loadEnvFile(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("file has owner-only permissions", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "vars.env")
		require.NoError(t, saveEnvFile(path, map[string]string{"A": "1"}, 0o600))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})
}

func TestShellBlock(t *testing.T) {
	envFile := "/home/user/.config/multicoder/multicoder.env"

	t.Run("ensure is idempotent", func(t *testing.T) {
		rcPath := filepath.Join(t.TempDir(), ".bashrc")
		require.NoError(t, os.WriteFile(rcPath, []byte("alias ll='ls -l'\n"), 0o644))

		require.NoError(t, ensureShellBlock(rcPath, envFile))
		first, err := os.ReadFile(rcPath)
		require.NoError(t, err)

		require.NoError(t, ensureShellBlock(rcPath, envFile))
		second, err := os.ReadFile(rcPath)
		require.NoError(t, err)

		assert.Equal(t, string(first), string(second))
		assert.Contains(t, string(first), blockBegin)
		assert.Contains(t, string(first), blockEnd)
		assert.Contains(t, string(first), envFile)
	})

	t.Run("ensure creates missing file", func(t *testing.T) {
		rcPath := filepath.Join(t.TempDir(), ".zshrc")

		require.NoError(t, ensureShellBlock(rcPath, envFile))
		data, err := os.ReadFile(rcPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), blockBegin)
	})

	t.Run("remove restores original content", func(t *testing.T) {
		rcPath := filepath.Join(t.TempDir(), ".profile")
		original := "export PATH=$PATH:/usr/local/bin\n"
		require.NoError(t, os.WriteFile(rcPath, []byte(original), 0o644))

		require.NoError(t, ensureShellBlock(rcPath, envFile))
		require.NoError(t, removeShellBlock(rcPath))

		data, err := os.ReadFile(rcPath)
		require.NoError(t, err)
		assert.Equal(t, original, string(data))
	})

	t.Run("remove on file without block is a no-op", func(t *testing.T) {
		rcPath := filepath.Join(t.TempDir(), ".bashrc")
		require.NoError(t, os.WriteFile(rcPath, []byte("plain\n"), 0o644))

		require.NoError(t, removeShellBlock(rcPath))
		data, err := os.ReadFile(rcPath)
		require.NoError(t, err)
		assert.Equal(t, "plain\n", string(data))
	})

	t.Run("remove on missing file is a no-op", func(t *testing.T) {
		require.NoError(t, removeShellBlock(filepath.Join(t.TempDir(), ".absent")))
	})
}
