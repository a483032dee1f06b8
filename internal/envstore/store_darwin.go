//go:build darwin

package envstore

import (
	"os"
	"path/filepath"

	"github.com/ljyou001/multicoder/internal/exec"
)

// New creates the macOS environment store: the shared file store restricted
// to user scope, plus a launchd mirror so GUI-launched applications see the
// variables. System scope is unsupported on macOS.
func New(opts Options) (Store, error) {
	s, err := newFileStore(opts)
	if err != nil {
		return nil, err
	}

	agentsDir := opts.LaunchAgentsDir
	if agentsDir == "" {
		agentsDir = filepath.Join(s.homeDir, "Library", "LaunchAgents")
	}

	executor := opts.Executor
	if executor == nil {
		executor = exec.New()
	}

	s.mirror = &launchdMirror{
		executor:   executor,
		envFile:    s.userFile,
		plistPath:  filepath.Join(agentsDir, launchAgentLabel+".plist"),
		scriptPath: filepath.Join(filepath.Dir(s.userFile), "launchd-env.sh"),
	}

	return s, nil
}
