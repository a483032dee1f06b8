// Package migrate moves configuration left behind by earlier releases
// (prior tool names, prior OS-convention paths) into the canonical config
// directory. Migration runs at startup, is a no-op once the canonical
// artifacts exist, and never overwrites a canonical file.
package migrate

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ljyou001/multicoder/internal/paths"
	"github.com/ljyou001/multicoder/internal/slogger"
)

// Run migrates the first legacy directory that exists into configDir.
// When configDir is absent the whole legacy tree is moved; when it exists
// only the missing pieces (profiles file, credentials subtree) are moved.
func Run(ctx context.Context, configDir string, legacyDirs []string) error {
	legacy := ""
	for _, dir := range legacyDirs {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			legacy = dir
			break
		}
	}
	if legacy == "" {
		return nil
	}

	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return moveTree(ctx, legacy, configDir)
	}

	// Canonical directory exists: move only what it is missing.
	moved := false
	for _, name := range []string{paths.ProfilesFileName, paths.CredentialsDir} {
		src := filepath.Join(legacy, name)
		dst := filepath.Join(configDir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if _, err := os.Stat(dst); err == nil {
			// Never overwrite canonical files.
			continue
		}
		if err := moveTree(ctx, src, dst); err != nil {
			return err
		}
		moved = true
	}
	if moved {
		slogger.L(ctx).Info("migrated legacy configuration", "from", legacy, "to", configDir)
	}
	return nil
}

// moveTree renames src to dst, falling back to a copy when rename fails
// (different filesystems). The copy never replaces existing files.
func moveTree(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}

	if err := os.Rename(src, dst); err == nil {
		slogger.L(ctx).Debug("renamed legacy path", "from", src, "to", dst)
		return nil
	}

	if err := copyTree(src, dst); err != nil {
		return err
	}
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("remove migrated legacy path %s: %w", src, err)
	}
	slogger.L(ctx).Debug("copied legacy path", "from", src, "to", dst)
	return nil
}

func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	if !info.IsDir() {
		return copyFile(src, dst, info.Mode().Perm())
	}

	if err := os.MkdirAll(dst, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	for _, entry := range entries {
		if err := copyTree(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	if _, err := os.Stat(dst); err == nil {
		// Canonical file already present; leave it alone.
		return nil
	}

	in, err := os.Open(src) //nolint:gosec // Legacy config path
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm) //nolint:gosec // Same perms as source
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
