//go:build windows

package envstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ljyou001/multicoder/internal/exec"
)

// windowsStore persists variables in the OS user/machine environment
// stores through one PowerShell invocation per operation. System scope
// typically requires elevation; those failures surface as-is.
type windowsStore struct {
	executor    exec.Executor
	skipProcess bool
}

// New creates the Windows environment store.
func New(opts Options) (Store, error) {
	executor := opts.Executor
	if executor == nil {
		executor = exec.New()
	}
	return &windowsStore{
		executor:    executor,
		skipProcess: opts.SkipProcess,
	}, nil
}

// scopeTarget maps a Scope to the .NET EnvironmentVariableTarget name.
func scopeTarget(scope Scope) (string, error) {
	switch scope {
	case ScopeUser:
		return "User", nil
	case ScopeSystem:
		return "Machine", nil
	default:
		return "", ErrInvalidScope
	}
}

// psQuote encodes a value as a single-quoted PowerShell string literal.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// run executes a PowerShell expression and returns its stdout.
func (s *windowsStore) run(command string) (string, error) {
	result, err := s.executor.Run(context.Background(), exec.RunOptions{
		Name: "powershell",
		Args: []string{"-NoProfile", "-NonInteractive", "-Command", command},
	})
	if err != nil {
		detail := ""
		if result != nil && len(result.Stderr) > 0 {
			detail = ": " + strings.TrimSpace(string(result.Stderr))
		}
		return "", fmt.Errorf("environment helper failed%s: %w", detail, err)
	}
	return string(result.Stdout), nil
}

func (s *windowsStore) Get(name string, scope Scope) (string, bool, error) {
	target, err := scopeTarget(scope)
	if err != nil {
		return "", false, err
	}

	out, err := s.run(fmt.Sprintf(
		"[Environment]::GetEnvironmentVariable(%s, %s) | ConvertTo-Json",
		psQuote(name), psQuote(target)))
	if err != nil {
		return "", false, err
	}

	out = strings.TrimSpace(out)
	if out == "" || out == "null" {
		return "", false, nil
	}
	var value string
	if err := json.Unmarshal([]byte(out), &value); err != nil {
		return "", false, fmt.Errorf("parse environment helper output: %w", err)
	}
	return value, true, nil
}

func (s *windowsStore) Set(name, value string, scope Scope) error {
	target, err := scopeTarget(scope)
	if err != nil {
		return err
	}

	if _, err := s.run(fmt.Sprintf(
		"[Environment]::SetEnvironmentVariable(%s, %s, %s)",
		psQuote(name), psQuote(value), psQuote(target))); err != nil {
		return err
	}

	if !s.skipProcess {
		if err := os.Setenv(name, value); err != nil {
			return fmt.Errorf("set process environment: %w", err)
		}
	}
	return nil
}

func (s *windowsStore) Remove(name string, scope Scope) error {
	target, err := scopeTarget(scope)
	if err != nil {
		return err
	}

	if _, err := s.run(fmt.Sprintf(
		"[Environment]::SetEnvironmentVariable(%s, $null, %s)",
		psQuote(name), psQuote(target))); err != nil {
		return err
	}

	if !s.skipProcess {
		if err := os.Unsetenv(name); err != nil {
			return fmt.Errorf("unset process environment: %w", err)
		}
	}
	return nil
}

func (s *windowsStore) List(scope Scope) (map[string]string, error) {
	target, err := scopeTarget(scope)
	if err != nil {
		return nil, err
	}

	out, err := s.run(fmt.Sprintf(
		"[Environment]::GetEnvironmentVariables(%s) | ConvertTo-Json -Compress",
		psQuote(target)))
	if err != nil {
		return nil, err
	}

	out = strings.TrimSpace(out)
	vars := make(map[string]string)
	if out == "" || out == "null" {
		return vars, nil
	}
	if err := json.Unmarshal([]byte(out), &vars); err != nil {
		return nil, fmt.Errorf("parse environment helper output: %w", err)
	}
	return vars, nil
}
