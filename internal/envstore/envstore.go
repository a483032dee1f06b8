// Package envstore persists environment variables across shells and
// reboots. Variables are visible to the current process immediately and to
// new shells via a managed environment file sourced from shell startup
// files; on macOS a launchd agent additionally mirrors them to GUI-launched
// processes, and on Windows the OS user/machine stores are used directly.
package envstore

import (
	"errors"

	"github.com/ljyou001/multicoder/internal/exec"
)

// Scope selects user or system-wide persistence.
type Scope string

const (
	// ScopeUser persists for the current user only.
	ScopeUser Scope = "user"

	// ScopeSystem persists machine-wide. Requires elevation on Windows
	// and is unsupported on macOS.
	ScopeSystem Scope = "system"
)

// Sentinel errors for environment persistence.
var (
	// ErrUnsupportedPlatform is returned for operations the current
	// platform cannot perform (e.g. system scope on macOS).
	ErrUnsupportedPlatform = errors.New("operation not supported on this platform")

	// ErrInvalidScope is returned for a scope other than user or system.
	ErrInvalidScope = errors.New("invalid environment scope")
)

// Store is the cross-platform environment persistence contract. Every
// mutating call also updates the current process's environment unless the
// store was built with SkipProcess, so in-process consumers observe
// changes without re-reading disk.
//
//go:generate go run github.com/matryer/moq@latest -pkg mocks -out mocks/store.go . Store
type Store interface {
	// Get returns the persisted value for a variable, and whether it
	// is present.
	Get(name string, scope Scope) (string, bool, error)

	// Set persists a variable.
	Set(name, value string, scope Scope) error

	// Remove deletes a variable. Removing an absent variable is a no-op.
	Remove(name string, scope Scope) error

	// List returns all persisted variables for a scope.
	List(scope Scope) (map[string]string, error)
}

// Options configures a Store.
type Options struct {
	// ConfigDir is the tool's configuration directory, holding the
	// user-scope environment file.
	ConfigDir string

	// HomeDir is the user's home directory, holding the shell startup
	// files the managed block is injected into. Resolved from the OS
	// when empty.
	HomeDir string

	// SystemProfileDir is the shell profile-drop-in directory used for
	// system scope on Linux. Defaults to /etc/profile.d.
	SystemProfileDir string

	// LaunchAgentsDir is the per-user LaunchAgents directory on macOS.
	// Defaults to ~/Library/LaunchAgents.
	LaunchAgentsDir string

	// Executor runs launchctl and the Windows environment helper.
	Executor exec.Executor

	// SkipProcess suppresses mirroring mutations into the current
	// process's environment.
	SkipProcess bool
}

func validScope(scope Scope) error {
	if scope != ScopeUser && scope != ScopeSystem {
		return ErrInvalidScope
	}
	return nil
}
