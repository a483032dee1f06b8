package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ljyou001/multicoder/internal/provider"
)

const (
	lockTimeout = 5 * time.Second
	fileMode    = 0o600
	dirMode     = 0o700
)

// registryVersion is written on every canonical save.
const registryVersion = "1"

// registryFile is the on-disk registry format.
type registryFile struct {
	Version        string   `json:"version"`
	CurrentProfile *string  `json:"currentProfile"`
	Profiles       []Record `json:"profiles"`
}

// legacyRegistryFile accepts the two legacy shapes: `profiles` as a map
// keyed by name, and the field name `current` instead of `currentProfile`.
// Both are normalized on load and rewritten canonically on next save.
type legacyRegistryFile struct {
	Version        string          `json:"version"`
	CurrentProfile *string         `json:"currentProfile"`
	Current        *string         `json:"current"`
	Profiles       json.RawMessage `json:"profiles"`
}

// Store is the JSON-backed profile registry. Concurrent access from other
// processes is guarded with an advisory file lock; in-process access with
// a mutex.
type Store struct {
	path     string
	registry *provider.Registry
	mu       sync.RWMutex

	// now is overridable in tests.
	now func() time.Time
}

// NewStore creates a profile registry store at the given path.
func NewStore(path string, registry *provider.Registry) *Store {
	return &Store{
		path:     path,
		registry: registry,
		now:      time.Now,
	}
}

// Create adds a new profile. The name is a case-sensitive unique key.
func (s *Store) Create(ctx context.Context, rec Record) error {
	if rec.Name == "" {
		return ErrInvalidName
	}
	if err := s.validateBindings(rec); err != nil {
		return err
	}

	return s.withExclusiveLock(ctx, func(rf *registryFile) error {
		for _, p := range rf.Profiles {
			if p.Name == rec.Name {
				return fmt.Errorf("%w: %s", ErrAlreadyExists, rec.Name)
			}
		}

		now := s.now().UTC()
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		if rec.PermissionMode == "" {
			rec.PermissionMode = PermissionAsk
		}
		if rec.Providers == nil {
			rec.Providers = map[string]Binding{}
		}

		rf.Profiles = append(rf.Profiles, rec)
		if rf.CurrentProfile == nil {
			rf.CurrentProfile = &rec.Name
		}
		return nil
	})
}

// Get returns a profile by name.
func (s *Store) Get(ctx context.Context, name string) (*Record, error) {
	var result *Record
	err := s.withSharedLock(ctx, func(rf *registryFile) error {
		for i := range rf.Profiles {
			if rf.Profiles[i].Name == name {
				rec := rf.Profiles[i].clone()
				result = &rec
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	})
	return result, err
}

// Update replaces a profile record.
func (s *Store) Update(ctx context.Context, rec Record) error {
	if err := s.validateBindings(rec); err != nil {
		return err
	}

	return s.withExclusiveLock(ctx, func(rf *registryFile) error {
		for i := range rf.Profiles {
			if rf.Profiles[i].Name == rec.Name {
				rec.UpdatedAt = s.now().UTC()
				rf.Profiles[i] = rec
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrNotFound, rec.Name)
	})
}

// Delete removes a profile. If the deleted profile was current, the
// lexicographically first remaining profile is promoted, or current
// becomes null when none remain.
func (s *Store) Delete(ctx context.Context, name string) error {
	return s.withExclusiveLock(ctx, func(rf *registryFile) error {
		idx := -1
		for i := range rf.Profiles {
			if rf.Profiles[i].Name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}

		rf.Profiles = append(rf.Profiles[:idx], rf.Profiles[idx+1:]...)
		if rf.CurrentProfile != nil && *rf.CurrentProfile == name {
			rf.CurrentProfile = firstProfileName(rf.Profiles)
		}
		return nil
	})
}

// List returns all profiles sorted by name.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	var result []Record
	err := s.withSharedLock(ctx, func(rf *registryFile) error {
		result = make([]Record, 0, len(rf.Profiles))
		for i := range rf.Profiles {
			result = append(result, rf.Profiles[i].clone())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Current returns the current profile, or nil when none is set.
func (s *Store) Current(ctx context.Context) (*Record, error) {
	var result *Record
	err := s.withSharedLock(ctx, func(rf *registryFile) error {
		if rf.CurrentProfile == nil {
			return nil
		}
		for i := range rf.Profiles {
			if rf.Profiles[i].Name == *rf.CurrentProfile {
				rec := rf.Profiles[i].clone()
				result = &rec
				return nil
			}
		}
		return nil
	})
	return result, err
}

// SetCurrent points the registry at a profile.
func (s *Store) SetCurrent(ctx context.Context, name string) error {
	return s.withExclusiveLock(ctx, func(rf *registryFile) error {
		for i := range rf.Profiles {
			if rf.Profiles[i].Name == name {
				rf.CurrentProfile = &rf.Profiles[i].Name
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	})
}

// validateBindings enforces the invariant that a profile may only
// reference registered providers.
func (s *Store) validateBindings(rec Record) error {
	for id := range rec.Providers {
		if !s.registry.Has(id) {
			return fmt.Errorf("%w: %s", provider.ErrUnknownProvider, id)
		}
	}
	return nil
}

// withSharedLock executes fn with a shared (read) lock.
func (s *Store) withSharedLock(ctx context.Context, fn func(*registryFile) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rf, file, err := s.openAndLock(ctx, false)
	if err != nil {
		return err
	}
	defer s.unlockAndClose(file)

	return fn(rf)
}

// withExclusiveLock executes fn with an exclusive (write) lock.
// Changes made by fn are persisted to disk.
func (s *Store) withExclusiveLock(ctx context.Context, fn func(*registryFile) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rf, file, err := s.openAndLock(ctx, true)
	if err != nil {
		return err
	}
	defer s.unlockAndClose(file)

	if err := fn(rf); err != nil {
		return err
	}

	return s.save(rf)
}

// openAndLock opens the registry file and acquires a lock.
func (s *Store) openAndLock(ctx context.Context, exclusive bool) (*registryFile, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), dirMode); err != nil {
		return nil, nil, fmt.Errorf("create registry directory: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, fileMode) //nolint:gosec // Registry under our config dir
	if err != nil {
		return nil, nil, fmt.Errorf("open registry file: %w", err)
	}

	if err := acquireLock(ctx, file, exclusive); err != nil {
		file.Close()
		return nil, nil, err
	}

	rf, err := s.load(file)
	if err != nil {
		s.unlockAndClose(file)
		return nil, nil, err
	}
	return rf, file, nil
}

// unlockAndClose releases the lock and closes the file.
func (s *Store) unlockAndClose(file *os.File) {
	releaseLock(file)
	file.Close()
}

// load reads the registry, accepting legacy shapes and repairing a
// dangling currentProfile reference.
func (s *Store) load(file *os.File) (*registryFile, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat registry file: %w", err)
	}
	if info.Size() == 0 {
		return &registryFile{Version: registryVersion, Profiles: []Record{}}, nil
	}

	if _, err := file.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("seek registry file: %w", err)
	}

	var legacy legacyRegistryFile
	if err := json.NewDecoder(file).Decode(&legacy); err != nil {
		return nil, fmt.Errorf("decode registry file: %w", err)
	}
	return normalize(&legacy)
}

// normalize converts any accepted registry shape into the canonical form.
func normalize(legacy *legacyRegistryFile) (*registryFile, error) {
	rf := &registryFile{
		Version:        registryVersion,
		CurrentProfile: legacy.CurrentProfile,
	}
	if rf.CurrentProfile == nil {
		rf.CurrentProfile = legacy.Current
	}

	if len(legacy.Profiles) > 0 {
		// Canonical shape: an array of records.
		if err := json.Unmarshal(legacy.Profiles, &rf.Profiles); err != nil {
			// Legacy shape: a map keyed by profile name.
			byName := map[string]Record{}
			if mapErr := json.Unmarshal(legacy.Profiles, &byName); mapErr != nil {
				return nil, fmt.Errorf("parse profiles: %w", err)
			}
			for name, rec := range byName {
				if rec.Name == "" {
					rec.Name = name
				}
				rf.Profiles = append(rf.Profiles, rec)
			}
			sort.Slice(rf.Profiles, func(i, j int) bool {
				return rf.Profiles[i].Name < rf.Profiles[j].Name
			})
		}
	}
	if rf.Profiles == nil {
		rf.Profiles = []Record{}
	}

	// Repair a dangling current pointer: fall back to the
	// lexicographically first remaining profile, or null.
	if rf.CurrentProfile != nil {
		found := false
		for i := range rf.Profiles {
			if rf.Profiles[i].Name == *rf.CurrentProfile {
				found = true
				break
			}
		}
		if !found {
			rf.CurrentProfile = firstProfileName(rf.Profiles)
		}
	}

	return rf, nil
}

// firstProfileName returns a pointer to the lexicographically first
// profile name, or nil when no profiles remain.
func firstProfileName(profiles []Record) *string {
	if len(profiles) == 0 {
		return nil
	}
	first := profiles[0].Name
	for i := range profiles {
		if profiles[i].Name < first {
			first = profiles[i].Name
		}
	}
	return &first
}

// save writes the registry to disk atomically in canonical form.
func (s *Store) save(rf *registryFile) error {
	rf.Version = registryVersion

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "profiles-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(rf); err != nil {
		tmp.Close()
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename registry file: %w", err)
	}
	tmpPath = ""
	return nil
}
