//go:build linux

package envstore

import "path/filepath"

// defaultSystemProfileDir is the shell profile-drop-in directory sourced
// by login shells system-wide.
const defaultSystemProfileDir = "/etc/profile.d"

// systemFileName is the drop-in written for system scope.
const systemFileName = "multicoder.sh"

// New creates the Linux environment store. User scope lives in the tool's
// config directory, system scope in the profile-drop-in directory.
func New(opts Options) (Store, error) {
	s, err := newFileStore(opts)
	if err != nil {
		return nil, err
	}

	profileDir := opts.SystemProfileDir
	if profileDir == "" {
		profileDir = defaultSystemProfileDir
	}
	s.systemFile = filepath.Join(profileDir, systemFileName)

	return s, nil
}
