package fsutil

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}

// PathExists checks if the given path exists.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// FindExecutable resolves name to an executable. An explicit path (one
// containing a separator or a leading '~') is expanded and checked as is;
// otherwise each dir is tried in order before falling back to $PATH.
func FindExecutable(name string, dirs ...string) (string, error) {
	if name == "" {
		return "", errors.New("empty executable name")
	}
	if strings.HasPrefix(name, "~") || strings.ContainsRune(name, filepath.Separator) {
		p, err := ExpandHome(name)
		if err != nil {
			return "", err
		}
		if !isExecutable(p) {
			return "", fmt.Errorf("executable not found: %s", p)
		}
		return p, nil
	}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		dir, err := ExpandHome(d)
		if err != nil {
			continue
		}
		if p := filepath.Join(dir, name); isExecutable(p) {
			return p, nil
		}
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("executable %q: %w", name, err)
	}
	return p, nil
}

func isExecutable(p string) bool {
	st, err := os.Stat(p)
	if err != nil || st.IsDir() {
		return false
	}
	return st.Mode()&0o111 != 0
}
