package envstore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ljyou001/multicoder/internal/paths"
)

// mirror receives change notifications so a platform can propagate
// variables beyond shell startup files (launchd on macOS).
type mirror interface {
	// set is invoked after a variable is persisted.
	set(name, value string) error

	// unset is invoked after a variable is removed.
	unset(name string) error

	// sync is invoked after every save with the full variable set; an
	// empty set means all mirror machinery should be torn down.
	sync(vars map[string]string) error
}

// fileStore persists variables as export lines in a managed file and keeps
// the shell-startup-file integration block in step with the file's
// contents. Used on Linux (both scopes) and macOS (user scope).
type fileStore struct {
	userFile    string
	systemFile  string // empty when system scope is unsupported
	homeDir     string
	skipProcess bool
	mirror      mirror
}

func newFileStore(opts Options) (*fileStore, error) {
	home := opts.HomeDir
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
	}

	configDir := opts.ConfigDir
	if configDir == "" {
		var err error
		configDir, err = paths.ConfigDir()
		if err != nil {
			return nil, err
		}
	}

	return &fileStore{
		userFile:    paths.EnvFile(configDir),
		homeDir:     home,
		skipProcess: opts.SkipProcess,
	}, nil
}

// filePath returns the managed file for a scope.
func (s *fileStore) filePath(scope Scope) (string, error) {
	if err := validScope(scope); err != nil {
		return "", err
	}
	if scope == ScopeSystem {
		if s.systemFile == "" {
			return "", fmt.Errorf("%w: system-scope environment variables", ErrUnsupportedPlatform)
		}
		return s.systemFile, nil
	}
	return s.userFile, nil
}

func (s *fileStore) Get(name string, scope Scope) (string, bool, error) {
	path, err := s.filePath(scope)
	if err != nil {
		return "", false, err
	}
	vars, err := loadEnvFile(path)
	if err != nil {
		return "", false, err
	}
	value, ok := vars[name]
	return value, ok, nil
}

func (s *fileStore) Set(name, value string, scope Scope) error {
	path, err := s.filePath(scope)
	if err != nil {
		return err
	}

	vars, err := loadEnvFile(path)
	if err != nil {
		return err
	}
	vars[name] = value
	if err := s.save(path, scope, vars); err != nil {
		return err
	}

	if !s.skipProcess {
		if err := os.Setenv(name, value); err != nil {
			return fmt.Errorf("set process environment: %w", err)
		}
	}
	if s.mirror != nil {
		if err := s.mirror.set(name, value); err != nil {
			return err
		}
	}
	return nil
}

func (s *fileStore) Remove(name string, scope Scope) error {
	path, err := s.filePath(scope)
	if err != nil {
		return err
	}

	vars, err := loadEnvFile(path)
	if err != nil {
		return err
	}
	if _, ok := vars[name]; !ok {
		return nil
	}
	delete(vars, name)
	if err := s.save(path, scope, vars); err != nil {
		return err
	}

	if !s.skipProcess {
		if err := os.Unsetenv(name); err != nil {
			return fmt.Errorf("unset process environment: %w", err)
		}
	}
	if s.mirror != nil {
		if err := s.mirror.unset(name); err != nil {
			return err
		}
	}
	return nil
}

func (s *fileStore) List(scope Scope) (map[string]string, error) {
	path, err := s.filePath(scope)
	if err != nil {
		return nil, err
	}
	return loadEnvFile(path)
}

// save writes the managed file and keeps the shell integration block and
// the mirror in step: the block exists exactly while the file is non-empty.
func (s *fileStore) save(path string, scope Scope, vars map[string]string) error {
	if len(vars) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove environment file: %w", err)
		}
	} else if err := saveEnvFile(path, vars, envFileMode(scope)); err != nil {
		return err
	}

	if scope == ScopeUser {
		if err := s.syncShellBlocks(len(vars) > 0); err != nil {
			return err
		}
	}
	if s.mirror != nil && scope == ScopeUser {
		if err := s.mirror.sync(vars); err != nil {
			return err
		}
	}
	return nil
}

// envFileMode returns the managed file's mode for a scope.
func envFileMode(scope Scope) os.FileMode {
	if scope == ScopeSystem {
		return 0o644
	}
	return 0o600
}

// syncShellBlocks injects or strips the managed block in every shell
// startup file.
func (s *fileStore) syncShellBlocks(present bool) error {
	for _, name := range shellStartupFiles {
		rcPath := filepath.Join(s.homeDir, name)
		if present {
			if err := ensureShellBlock(rcPath, s.userFile); err != nil {
				return err
			}
		} else if err := removeShellBlock(rcPath); err != nil {
			return err
		}
	}
	return nil
}
