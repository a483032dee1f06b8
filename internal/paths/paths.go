// Package paths resolves the canonical configuration and data locations
// used by multicoder, plus the legacy locations migrated from on first run.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Well-known file and directory names inside the config directory.
const (
	ConfigDirName    = "multicoder"
	ProfilesFileName = "profiles.json"
	CredentialsDir   = "credentials"
	EnvFileName      = "multicoder.env"
	ConfigFileName   = "config.yaml"
)

// ConfigDir returns the canonical configuration directory
// (~/.config/multicoder on Linux and macOS, %AppData%\multicoder on Windows).
func ConfigDir() (string, error) {
	if dir := os.Getenv("MULTICODER_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	if runtime.GOOS == "windows" {
		base, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("get user config directory: %w", err)
		}
		return filepath.Join(base, ConfigDirName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".config", ConfigDirName), nil
}

// LegacyDirs returns prior configuration locations, most likely first.
// These come from earlier tool names and earlier OS-convention paths.
func LegacyDirs() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	dirs := []string{
		filepath.Join(home, ".multicoder"),
		filepath.Join(home, ".config", "multi-coder"),
	}
	if runtime.GOOS == "darwin" {
		dirs = append(dirs, filepath.Join(home, "Library", "Application Support", ConfigDirName))
	}
	return dirs
}

// ProfilesFile returns the path to the profile registry document.
func ProfilesFile(configDir string) string {
	return filepath.Join(configDir, ProfilesFileName)
}

// CredentialFile returns the managed credential record path for a
// provider and profile.
func CredentialFile(configDir, providerID, profileName string) string {
	return filepath.Join(configDir, CredentialsDir, providerID, profileName+".json")
}

// EnvFile returns the managed environment file path for user scope.
func EnvFile(configDir string) string {
	return filepath.Join(configDir, EnvFileName)
}
