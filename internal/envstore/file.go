package envstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// fileHeader is written at the top of every managed environment file.
const fileHeader = "# Managed by multicoder. Do not edit; use 'multicoder env' instead."

// escapeValue encodes a value for a double-quoted export line. Backslashes,
// quotes, and newlines must round-trip exactly through unescapeValue.
func escapeValue(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// unescapeValue reverses escapeValue.
func unescapeValue(value string) string {
	var b strings.Builder
	escaped := false
	for _, r := range value {
		if !escaped {
			if r == '\\' {
				escaped = true
				continue
			}
			b.WriteRune(r)
			continue
		}
		switch r {
		case 'n':
			b.WriteRune('\n')
		case '\\', '"':
			b.WriteRune(r)
		default:
			// Unknown escape, keep both characters.
			b.WriteRune('\\')
			b.WriteRune(r)
		}
		escaped = false
	}
	if escaped {
		b.WriteRune('\\')
	}
	return b.String()
}

// serializeEnvFile renders variables as export lines with a fixed header.
// Keys are sorted so serialization is deterministic and round-trip stable.
func serializeEnvFile(vars map[string]string) []byte {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fileHeader)
	b.WriteString("\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "export %s=\"%s\"\n", k, escapeValue(vars[k]))
	}
	return []byte(b.String())
}

// parseEnvFile reads export lines back into a map. Comments and blank
// lines are ignored; the export prefix is optional.
func parseEnvFile(data []byte) map[string]string {
	vars := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		name, raw, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		raw = strings.TrimSpace(raw)
		if len(raw) >= 2 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
			raw = raw[1 : len(raw)-1]
		}
		vars[name] = unescapeValue(raw)
	}
	return vars
}

// loadEnvFile reads a managed environment file. A missing file is an
// empty map, not an error.
func loadEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Managed file under our config dir
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read environment file: %w", err)
	}
	return parseEnvFile(data), nil
}

// saveEnvFile writes the managed environment file via a temp file and
// rename. The mode is scope-dependent: the user file holds secrets and
// stays owner-only, the system drop-in must be world-readable so every
// user's login shell can source it.
func saveEnvFile(path string, vars map[string]string, mode os.FileMode) error {
	dir := filepath.Dir(path)
	dirMode := os.FileMode(0o700)
	if mode != 0o600 {
		dirMode = 0o755
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create environment file directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".env-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if _, err := tmp.Write(serializeEnvFile(vars)); err != nil {
		tmp.Close()
		return fmt.Errorf("write environment file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename environment file: %w", err)
	}
	tmpPath = ""
	return nil
}
