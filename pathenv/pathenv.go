// Package pathenv adds a directory to the user's PATH by appending an
// export line to their shell profile. The append is guarded by a
// substring check so repeated runs leave a single entry.
package pathenv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ProfilePath returns the shell profile file for the current user based
// on $SHELL, falling back to ~/.profile.
func ProfilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine home directory: %w", err)
	}

	shell := filepath.Base(os.Getenv("SHELL"))
	switch shell {
	case "zsh":
		return filepath.Join(home, ".zshrc"), nil
	case "bash":
		return filepath.Join(home, ".bashrc"), nil
	default:
		return filepath.Join(home, ".profile"), nil
	}
}

// EnsurePath appends an export line for dir to the profile file unless
// the directory is already mentioned. It reports whether the file was
// modified.
func EnsurePath(profilePath, dir string) (bool, error) {
	if dir == "" {
		return false, fmt.Errorf("directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false, fmt.Errorf("resolve directory: %w", err)
	}

	content, err := os.ReadFile(profilePath)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("read profile: %w", err)
	}

	if strings.Contains(string(content), abs) {
		return false, nil
	}

	f, err := os.OpenFile(profilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, fmt.Errorf("open profile: %w", err)
	}
	defer f.Close()

	line := exportLine(abs)
	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		line = "\n" + line
	}
	if _, err := f.WriteString(line); err != nil {
		return false, fmt.Errorf("append to profile: %w", err)
	}
	return true, nil
}

func exportLine(dir string) string {
	return fmt.Sprintf("export PATH=\"%s:$PATH\"\n", dir)
}
