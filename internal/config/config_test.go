package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load_CreatesDefaultIfMissing(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	loader, err := NewLoader()
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	// Check defaults
	assert.Equal(t, "", cfg.Default.Provider)
	assert.Equal(t, "ask", cfg.Default.PermissionMode)
	assert.Contains(t, cfg.Storage.ConfigDir, "multicoder")
	assert.Contains(t, cfg.Storage.EnvFile, "multicoder.env")

	// Verify file was created
	_, err = os.Stat(loader.Path())
	assert.NoError(t, err)
}

func TestLoader_Load_ReadsExistingConfig(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	// Create config manually
	configDir := filepath.Join(tmpHome, ".config", "multicoder")
	require.NoError(t, os.MkdirAll(configDir, 0755))

	configContent := `
default:
  provider: claude
  permission_mode: auto
  model: opus
storage:
  config_dir: ~/custom/multicoder
  env_file: ~/custom/multicoder/vars.env
providers:
  claude:
    env:
      FOO: bar
`
	require.NoError(t, os.WriteFile(
		filepath.Join(configDir, "config.yaml"),
		[]byte(configContent),
		0644,
	))

	loader, err := NewLoader()
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "claude", cfg.Default.Provider)
	assert.Equal(t, "auto", cfg.Default.PermissionMode)
	assert.Equal(t, "opus", cfg.Default.Model)
	assert.Equal(t, filepath.Join(tmpHome, "custom", "multicoder"), cfg.Storage.ConfigDir)
	assert.Equal(t, filepath.Join(tmpHome, "custom", "multicoder", "vars.env"), cfg.Storage.EnvFile)

	// Test provider env via GetProviderEnv helper
	// Note: viper lowercases all keys
	env := loader.GetProviderEnv("claude")
	assert.Equal(t, "bar", env["foo"])
}

func TestLoader_Load_EnvVarOverride(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)
	t.Setenv("MULTICODER_DEFAULT_PROVIDER", "gemini")
	t.Setenv("MULTICODER_PERMISSION_MODE", "deny")

	loader, err := NewLoader()
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)

	// Env vars should override file defaults
	assert.Equal(t, "gemini", cfg.Default.Provider)
	assert.Equal(t, "deny", cfg.Default.PermissionMode)
}

func TestLoader_Path(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	loader, err := NewLoader()
	require.NoError(t, err)

	expected := filepath.Join(tmpHome, ".config", "multicoder", "config.yaml")
	assert.Equal(t, expected, loader.Path())
}

func TestLoader_Get(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	loader, err := NewLoader()
	require.NoError(t, err)

	_, err = loader.Load()
	require.NoError(t, err)

	t.Run("valid key returns value", func(t *testing.T) {
		val, err := loader.Get("default.permission_mode")
		require.NoError(t, err)
		assert.Equal(t, "ask", val)
	})

	t.Run("invalid key returns error", func(t *testing.T) {
		_, err := loader.Get("invalid.key")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})
}

func TestLoader_Set(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	loader, err := NewLoader()
	require.NoError(t, err)

	_, err = loader.Load()
	require.NoError(t, err)

	t.Run("sets valid key", func(t *testing.T) {
		err := loader.Set("default.provider", "gemini")
		require.NoError(t, err)

		val, err := loader.Get("default.provider")
		require.NoError(t, err)
		assert.Equal(t, "gemini", val)
	})

	t.Run("rejects invalid key", func(t *testing.T) {
		err := loader.Set("invalid.key", "value")
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("rejects invalid provider", func(t *testing.T) {
		err := loader.Set("default.provider", "invalid")
		assert.ErrorIs(t, err, ErrInvalidProvider)
	})

	t.Run("rejects invalid permission mode", func(t *testing.T) {
		err := loader.Set("default.permission_mode", "sometimes")
		assert.ErrorIs(t, err, ErrInvalidPermissionMode)
	})

	t.Run("allows empty provider", func(t *testing.T) {
		err := loader.Set("default.provider", "")
		assert.NoError(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid config with provider", func(t *testing.T) {
		cfg := &Config{
			Default:   DefaultConfig{Provider: "claude", PermissionMode: "ask"},
			Providers: map[string]ProviderConfig{"claude": {}},
			Storage:   StorageConfig{ConfigDir: "/tmp/multicoder", EnvFile: "/tmp/multicoder/vars.env"},
		}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("valid config without provider", func(t *testing.T) {
		cfg := &Config{
			Default: DefaultConfig{Provider: ""},
			Storage: StorageConfig{ConfigDir: "/tmp/multicoder", EnvFile: "/tmp/multicoder/vars.env"},
		}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("invalid default provider", func(t *testing.T) {
		cfg := &Config{
			Default: DefaultConfig{Provider: "invalid"},
			Storage: StorageConfig{ConfigDir: "/tmp/multicoder", EnvFile: "/tmp/multicoder/vars.env"},
		}
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "Provider")
	})

	t.Run("invalid provider in map", func(t *testing.T) {
		cfg := &Config{
			Default:   DefaultConfig{},
			Providers: map[string]ProviderConfig{"unknown": {}},
			Storage:   StorageConfig{ConfigDir: "/tmp/multicoder", EnvFile: "/tmp/multicoder/vars.env"},
		}
		err := cfg.Validate()
		assert.Error(t, err)
	})

	t.Run("missing required env_file", func(t *testing.T) {
		cfg := &Config{
			Default: DefaultConfig{},
			Storage: StorageConfig{ConfigDir: "/tmp/multicoder"},
		}
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "EnvFile")
	})
}

func TestConfig_IsValidProvider(t *testing.T) {
	cfg := &Config{}

	assert.True(t, cfg.IsValidProvider("claude"))
	assert.True(t, cfg.IsValidProvider("gemini"))
	assert.True(t, cfg.IsValidProvider("codex"))
	assert.True(t, cfg.IsValidProvider("amazonq"))
	assert.False(t, cfg.IsValidProvider("invalid"))
	assert.False(t, cfg.IsValidProvider(""))
}

func TestValidateKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"default.provider is valid", "default.provider", nil},
		{"default.permission_mode is valid", "default.permission_mode", nil},
		{"default.model is valid", "default.model", nil},
		{"storage.config_dir is valid", "storage.config_dir", nil},
		{"storage.env_file is valid", "storage.env_file", nil},
		{"providers is valid", "providers", nil},
		{"default is valid", "default", nil},
		{"storage is valid", "storage", nil},
		{"providers.claude is valid", "providers.claude", nil},
		{"providers.claude.env is valid", "providers.claude.env", nil},
		{"providers.amazonq is valid", "providers.amazonq", nil},
		{"providers.invalid returns error", "providers.invalid", ErrInvalidProvider},
		{"unknown.key returns error", "unknown.key", ErrInvalidKey},
		{"empty key returns error", "", ErrInvalidKey},
		{"random key returns error", "foo", ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKey(tt.key)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoader_expandPath(t *testing.T) {
	tmpHome := "/home/test"
	loader := &Loader{homeDir: tmpHome}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"expands ~/ prefix", "~/foo", filepath.Join(tmpHome, "foo")},
		{"expands ~ alone", "~", tmpHome},
		{"preserves absolute path", "/absolute/path", "/absolute/path"},
		{"preserves relative path", "relative/path", "relative/path"},
		{"handles nested paths", "~/foo/bar/baz", filepath.Join(tmpHome, "foo", "bar", "baz")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := loader.expandPath(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}
