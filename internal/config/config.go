// Package config provides configuration management for multicoder.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultConfigDir  = ".config/multicoder"
	DefaultConfigFile = "config.yaml"
)

// Sentinel errors for configuration operations.
var (
	ErrInvalidKey            = errors.New("invalid configuration key")
	ErrInvalidProvider       = errors.New("invalid provider name")
	ErrInvalidPermissionMode = errors.New("invalid permission mode")
	ErrNoEditor              = errors.New("$EDITOR environment variable not set")
)

// validProviders contains the allowed provider names (unexported).
var validProviders = map[string]bool{
	"claude":  true,
	"gemini":  true,
	"codex":   true,
	"amazonq": true,
}

// validPermissionModes contains the allowed permission modes (unexported).
var validPermissionModes = map[string]bool{
	"ask":  true,
	"auto": true,
	"deny": true,
}

// validKeys is built once from Config struct reflection.
var validKeys = buildValidKeys()

// validate is the shared validator instance.
var validate = validator.New()

// Config represents the full multicoder configuration.
type Config struct {
	Default   DefaultConfig             `mapstructure:"default" validate:"required"`
	Providers map[string]ProviderConfig `mapstructure:"providers" validate:"dive,keys,oneof=claude gemini codex amazonq,endkeys"`
	Storage   StorageConfig             `mapstructure:"storage" validate:"required"`
}

// DefaultConfig holds defaults applied to new profiles.
type DefaultConfig struct {
	Provider       string `mapstructure:"provider" validate:"omitempty,oneof=claude gemini codex amazonq"`
	PermissionMode string `mapstructure:"permission_mode" validate:"omitempty,oneof=ask auto deny"`
	Model          string `mapstructure:"model"`
}

// ProviderConfig holds provider-specific configuration.
type ProviderConfig struct {
	Env map[string]string `mapstructure:"env"`
}

// StorageConfig holds storage location configuration.
type StorageConfig struct {
	ConfigDir string `mapstructure:"config_dir" validate:"required"`
	EnvFile   string `mapstructure:"env_file" validate:"required"`
	Backups   string `mapstructure:"backups"`
}

// Validate checks the configuration for errors using struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// IsValidProvider returns true if the provider name is valid.
func (c *Config) IsValidProvider(name string) bool {
	return validProviders[name]
}

// ValidProviderNames returns the list of valid provider names.
func (c *Config) ValidProviderNames() []string {
	return []string{"claude", "gemini", "codex", "amazonq"}
}

// Loader provides configuration loading and saving.
type Loader struct {
	v       *viper.Viper
	path    string
	homeDir string
}

// NewLoader creates a new configuration loader.
func NewLoader() (*Loader, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}

	configPath := filepath.Join(home, DefaultConfigDir, DefaultConfigFile)

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Environment variable binding
	v.SetEnvPrefix("MULTICODER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind specific env vars to config keys.
	// We intentionally ignore errors here as BindEnv only fails if called with zero arguments.
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("default.provider", "MULTICODER_DEFAULT_PROVIDER")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("default.permission_mode", "MULTICODER_PERMISSION_MODE")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("storage.config_dir", "MULTICODER_CONFIG_DIR")

	l := &Loader{
		v:       v,
		path:    configPath,
		homeDir: home,
	}

	// Set defaults before any config reading
	l.setDefaults()

	return l, nil
}

// setDefaults sets all default configuration values using Viper.
func (l *Loader) setDefaults() {
	l.v.SetDefault("default.provider", "")
	l.v.SetDefault("default.permission_mode", "ask")
	l.v.SetDefault("default.model", "")
	l.v.SetDefault("providers.claude.env", map[string]string{})
	l.v.SetDefault("providers.gemini.env", map[string]string{})
	l.v.SetDefault("providers.codex.env", map[string]string{})
	l.v.SetDefault("providers.amazonq.env", map[string]string{})
	l.v.SetDefault("storage.config_dir", "~/.config/multicoder")
	l.v.SetDefault("storage.env_file", "~/.config/multicoder/multicoder.env")
	l.v.SetDefault("storage.backups", "")
}

// Load reads the configuration file, creating defaults if it doesn't exist.
func (l *Loader) Load() (*Config, error) {
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		if err := l.createDefault(); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Expand paths
	cfg.Storage.ConfigDir = l.expandPath(cfg.Storage.ConfigDir)
	cfg.Storage.EnvFile = l.expandPath(cfg.Storage.EnvFile)
	cfg.Storage.Backups = l.expandPath(cfg.Storage.Backups)

	return &cfg, nil
}

// Path returns the configuration file path.
func (l *Loader) Path() string {
	return l.path
}

// Get returns a configuration value by dot-notation key.
func (l *Loader) Get(key string) (any, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return l.v.Get(key), nil
}

// GetProviderEnv returns the extra environment variables configured for a
// provider. Returns an empty map if the provider has no env configuration.
func (l *Loader) GetProviderEnv(name string) map[string]string {
	key := fmt.Sprintf("providers.%s.env", name)
	raw := l.v.GetStringMapString(key)
	if raw == nil {
		return make(map[string]string)
	}
	return raw
}

// Set sets a configuration value by dot-notation key.
func (l *Loader) Set(key, value string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	// Validate provider name if setting default.provider
	if key == "default.provider" && value != "" {
		if !validProviders[value] {
			return fmt.Errorf("%w: %s (valid: claude, gemini, codex, amazonq)", ErrInvalidProvider, value)
		}
	}

	// Validate mode if setting default.permission_mode
	if key == "default.permission_mode" && value != "" {
		if !validPermissionModes[value] {
			return fmt.Errorf("%w: %s (valid: ask, auto, deny)", ErrInvalidPermissionMode, value)
		}
	}

	l.v.Set(key, value)
	return l.v.WriteConfig()
}

// createDefault writes the default configuration file using Viper.
func (l *Loader) createDefault() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	return l.v.SafeWriteConfigAs(l.path)
}

// expandPath replaces ~ with the home directory.
func (l *Loader) expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(l.homeDir, path[2:])
	}
	if path == "~" {
		return l.homeDir
	}
	return path
}

// ValidateKey checks if a key is a valid configuration key.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	// Check for exact match in derived valid keys
	if validKeys[key] {
		return nil
	}

	// Check for providers.<name> pattern (map type needs special handling)
	if strings.HasPrefix(key, "providers.") {
		parts := strings.SplitN(key, ".", 3)
		if len(parts) >= 2 {
			name := parts[1]
			if validProviders[name] {
				// Valid patterns: providers.claude, providers.claude.env
				return nil
			}
			return fmt.Errorf("%w: %s (valid: claude, gemini, codex, amazonq)", ErrInvalidProvider, name)
		}
	}

	return fmt.Errorf("%w: %s", ErrInvalidKey, key)
}

// buildValidKeys builds the set of valid keys from Config struct using reflection.
func buildValidKeys() map[string]bool {
	keys := make(map[string]bool)
	addKeysFromType(reflect.TypeOf(Config{}), "", keys)
	return keys
}

// addKeysFromType recursively adds keys from a struct type.
func addKeysFromType(t reflect.Type, prefix string, keys map[string]bool) {
	for i := range t.NumField() {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		keys[key] = true

		// Recurse into nested structs (but not maps)
		if field.Type.Kind() == reflect.Struct {
			addKeysFromType(field.Type, key, keys)
		}
	}
}

// IsValidProvider is a package-level helper for checking provider validity.
func IsValidProvider(name string) bool {
	return validProviders[name]
}

// ValidProviderNames returns the list of valid provider names.
func ValidProviderNames() []string {
	return []string{"claude", "gemini", "codex", "amazonq"}
}

// IsValidPermissionMode is a package-level helper for checking mode validity.
func IsValidPermissionMode(name string) bool {
	return validPermissionModes[name]
}

// ValidPermissionModeNames returns the list of valid permission modes.
func ValidPermissionModeNames() []string {
	return []string{"ask", "auto", "deny"}
}
