package translator

import (
	"fmt"
	"os"
	"strings"
)

// dotenvFile is a minimal KEY=value file editor that preserves unrelated
// lines, comments, and ordering across a rewrite. Gemini CLI owns the
// file format; we only touch the keys we manage.
type dotenvFile struct {
	lines []dotenvLine
}

type dotenvLine struct {
	raw string
	key string // "" for comments and blank lines
}

// loadDotenv reads a dotenv file; a missing file yields an empty one.
func loadDotenv(path string) (*dotenvFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Provider-owned path
	if err != nil {
		if os.IsNotExist(err) {
			return &dotenvFile{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return parseDotenv(string(data)), nil
}

func parseDotenv(content string) *dotenvFile {
	f := &dotenvFile{}
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return f
	}
	for _, raw := range strings.Split(content, "\n") {
		line := dotenvLine{raw: raw}
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			if eq := strings.Index(trimmed, "="); eq > 0 {
				line.key = strings.TrimSpace(trimmed[:eq])
			}
		}
		f.lines = append(f.lines, line)
	}
	return f
}

// Get returns the raw value for a key, unquoting a fully quoted value.
func (f *dotenvFile) Get(key string) (string, bool) {
	for _, line := range f.lines {
		if line.key != key {
			continue
		}
		trimmed := strings.TrimSpace(line.raw)
		value := strings.TrimSpace(trimmed[strings.Index(trimmed, "=")+1:])
		if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
			value = value[1 : len(value)-1]
		}
		return value, true
	}
	return "", false
}

// Set updates a key in place or appends it.
func (f *dotenvFile) Set(key, value string) {
	raw := key + "=" + value
	for i, line := range f.lines {
		if line.key == key {
			f.lines[i] = dotenvLine{raw: raw, key: key}
			return
		}
	}
	f.lines = append(f.lines, dotenvLine{raw: raw, key: key})
}

// Unset removes every line carrying the key.
func (f *dotenvFile) Unset(key string) {
	kept := f.lines[:0]
	for _, line := range f.lines {
		if line.key != key {
			kept = append(kept, line)
		}
	}
	f.lines = kept
}

// Empty reports whether no key/value pairs remain.
func (f *dotenvFile) Empty() bool {
	for _, line := range f.lines {
		if line.key != "" {
			return false
		}
	}
	return true
}

func (f *dotenvFile) serialize() []byte {
	if len(f.lines) == 0 {
		return nil
	}
	var b strings.Builder
	for _, line := range f.lines {
		b.WriteString(line.raw)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// saveDotenv writes the file, removing it entirely when nothing remains.
func saveDotenv(path string, f *dotenvFile) error {
	data := f.serialize()
	if len(data) == 0 {
		return removeFile(path)
	}
	return writeFileAtomic(path, data, 0o600)
}
