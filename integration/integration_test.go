//go:build integration

// Package integration provides integration tests for the multicoder CLI
// using testscript.
package integration

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/ljyou001/multicoder/internal/cmd"
)

// TestMain sets up the testscript environment.
func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"multicoder": multicoderMain,
	}))
}

// multicoderMain runs the CLI in-process for testscript execution.
func multicoderMain() int {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// TestScripts runs all testscript files in testdata/scripts.
func TestScripts(t *testing.T) {
	testscript.Run(t, testscript.Params{
		Dir:   "testdata/scripts",
		Setup: setupTestEnv,
		Condition: func(cond string) (bool, error) {
			switch cond {
			case "linux":
				return runtime.GOOS == "linux", nil
			case "darwin":
				return runtime.GOOS == "darwin", nil
			case "windows":
				return runtime.GOOS == "windows", nil
			default:
				return false, fmt.Errorf("unknown condition: %s", cond)
			}
		},
	})
}

// setupTestEnv isolates each script in its own home directory so nothing
// touches the real user's credential or config state.
func setupTestEnv(env *testscript.Env) error {
	testHome := filepath.Join(env.WorkDir, "home")
	configDir := filepath.Join(testHome, ".config", "multicoder")

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", configDir, err)
	}

	env.Setenv("HOME", testHome)
	env.Setenv("USERPROFILE", testHome)
	env.Setenv("XDG_CONFIG_HOME", filepath.Join(testHome, ".config"))

	configContent := fmt.Sprintf(`default:
  provider: ""
  permission_mode: ask
providers:
  claude:
    env: {}
  gemini:
    env: {}
  codex:
    env: {}
  amazonq:
    env: {}
storage:
  config_dir: %s
`, configDir)

	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}
