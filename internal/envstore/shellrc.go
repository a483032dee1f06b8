package envstore

import (
	"fmt"
	"os"
	"strings"
)

// Sentinels delimiting the managed block in shell startup files.
const (
	blockBegin = "# >>> multicoder managed >>>"
	blockEnd   = "# <<< multicoder managed <<<"
)

// shellStartupFiles are the startup files the managed block is kept in,
// relative to the home directory.
var shellStartupFiles = []string{".profile", ".bash_profile", ".bashrc", ".zshrc"}

// shellBlock renders the managed block sourcing the environment file.
func shellBlock(envFile string) string {
	return strings.Join([]string{
		blockBegin,
		fmt.Sprintf(`if [ -f "%s" ]; then`, envFile),
		fmt.Sprintf(`    . "%s"`, envFile),
		"fi",
		blockEnd,
	}, "\n")
}

// ensureShellBlock appends the managed block to a startup file if it is
// not already present. The file is created if missing.
func ensureShellBlock(rcPath, envFile string) error {
	data, err := os.ReadFile(rcPath) //nolint:gosec // User shell startup file
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", rcPath, err)
	}

	content := string(data)
	if strings.Contains(content, blockBegin) {
		return nil
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	content += "\n" + shellBlock(envFile) + "\n"

	if err := os.WriteFile(rcPath, []byte(content), 0o644); err != nil { //nolint:gosec // Startup files are not secret
		return fmt.Errorf("write %s: %w", rcPath, err)
	}
	return nil
}

// removeShellBlock strips the managed block from a startup file. Missing
// files and files without the block are left alone.
func removeShellBlock(rcPath string) error {
	data, err := os.ReadFile(rcPath) //nolint:gosec // User shell startup file
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", rcPath, err)
	}

	content := string(data)
	begin := strings.Index(content, blockBegin)
	if begin < 0 {
		return nil
	}
	end := strings.Index(content, blockEnd)
	if end < 0 {
		// Broken block, drop everything from the begin sentinel.
		end = len(content)
	} else {
		end += len(blockEnd)
	}

	// Trim the surrounding blank lines left behind by removal.
	head := strings.TrimRight(content[:begin], "\n")
	tail := strings.TrimLeft(content[end:], "\n")
	var merged string
	switch {
	case head == "":
		merged = tail
	case tail == "":
		merged = head + "\n"
	default:
		merged = head + "\n\n" + tail
	}

	if err := os.WriteFile(rcPath, []byte(merged), 0o644); err != nil { //nolint:gosec // Startup files are not secret
		return fmt.Errorf("write %s: %w", rcPath, err)
	}
	return nil
}
