package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	consts "github.com/khanhnv2901/sparrow-cli/internal/shared/constants"
)

var (
	// ErrPathEscape indicates the resolved path would leave the config directory.
	ErrPathEscape = errors.New("path escapes base directory")
)

// ResolveWithin joins name under base and rejects results that traverse outside of base.
// The returned path is absolute.
func ResolveWithin(base string, elems ...string) (string, error) {
	if base == "" {
		return "", errors.New("base directory is required")
	}

	root, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("resolve base path: %w", err)
	}

	target := filepath.Join(append([]string{root}, elems...)...)
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return "", fmt.Errorf("relativize path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, target)
	}

	return target, nil
}

// ConfigFile creates dir when needed and returns the absolute path of name inside it.
func ConfigFile(dir, name string) (string, error) {
	if name == "" || strings.ContainsRune(name, os.PathSeparator) {
		return "", fmt.Errorf("invalid config file name %q", name)
	}
	path, err := ResolveWithin(dir, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), consts.DefaultDirPerm); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return path, nil
}
