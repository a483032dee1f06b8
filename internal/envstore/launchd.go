//go:build darwin

package envstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ljyou001/multicoder/internal/exec"
)

// launchAgentLabel identifies the login-time launch agent.
const launchAgentLabel = "com.multicoder.env"

// launchdMirror keeps launchd's per-session environment in step with the
// managed environment file. A login-time launch agent re-applies the
// variables on every login so GUI-launched applications, which do not
// inherit shell-profile exports, also see them. Already-running GUI
// processes will not observe changes until relaunched; that is a known
// limitation of launchctl setenv.
type launchdMirror struct {
	executor   exec.Executor
	envFile    string
	plistPath  string
	scriptPath string
}

// set applies a variable to the current launchd session immediately.
func (m *launchdMirror) set(name, value string) error {
	_, err := m.executor.Run(context.Background(), exec.RunOptions{
		Name: "launchctl",
		Args: []string{"setenv", name, value},
	})
	if err != nil {
		return fmt.Errorf("launchctl setenv %s: %w", name, err)
	}
	return nil
}

// unset removes a variable from the current launchd session immediately.
func (m *launchdMirror) unset(name string) error {
	_, err := m.executor.Run(context.Background(), exec.RunOptions{
		Name: "launchctl",
		Args: []string{"unsetenv", name},
	})
	if err != nil {
		return fmt.Errorf("launchctl unsetenv %s: %w", name, err)
	}
	return nil
}

// sync regenerates the launch agent for the current variable set, or tears
// it down when no variables remain.
func (m *launchdMirror) sync(vars map[string]string) error {
	if len(vars) == 0 {
		return m.teardown()
	}

	if err := os.MkdirAll(filepath.Dir(m.scriptPath), 0o700); err != nil {
		return fmt.Errorf("create script directory: %w", err)
	}
	if err := os.WriteFile(m.scriptPath, []byte(m.renderScript(vars)), 0o700); err != nil { //nolint:gosec // Script must be executable
		return fmt.Errorf("write launch agent script: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.plistPath), 0o755); err != nil {
		return fmt.Errorf("create LaunchAgents directory: %w", err)
	}
	if err := os.WriteFile(m.plistPath, []byte(m.renderPlist()), 0o644); err != nil { //nolint:gosec // Plists are world-readable by convention
		return fmt.Errorf("write launch agent plist: %w", err)
	}

	// Best effort: a failure to (re)load leaves the agent for next login.
	_, _ = m.executor.Run(context.Background(), exec.RunOptions{ //nolint:errcheck // Agent loads at next login regardless
		Name: "launchctl",
		Args: []string{"load", m.plistPath},
	})
	return nil
}

// teardown unregisters the launch agent, removes its files, and clears the
// session variables it set.
func (m *launchdMirror) teardown() error {
	_, _ = m.executor.Run(context.Background(), exec.RunOptions{ //nolint:errcheck // Agent may not be loaded
		Name: "launchctl",
		Args: []string{"unload", m.plistPath},
	})

	if err := os.Remove(m.plistPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove launch agent plist: %w", err)
	}
	if err := os.Remove(m.scriptPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove launch agent script: %w", err)
	}
	return nil
}

// renderScript produces the shell script run by the launch agent: it
// re-sources the managed file and pushes every variable into launchd.
func (m *launchdMirror) renderScript(vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString(fileHeader)
	b.WriteString("\n")
	fmt.Fprintf(&b, "if [ -f \"%s\" ]; then\n    . \"%s\"\nfi\n", m.envFile, m.envFile)
	for _, k := range keys {
		fmt.Fprintf(&b, "launchctl setenv %s \"$%s\"\n", k, k)
	}
	return b.String()
}

// renderPlist produces the login-time launch agent definition.
func (m *launchdMirror) renderPlist() string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>%s</string>
    <key>ProgramArguments</key>
    <array>
        <string>/bin/sh</string>
        <string>%s</string>
    </array>
    <key>RunAtLoad</key>
    <true/>
</dict>
</plist>
`, launchAgentLabel, m.scriptPath)
}
