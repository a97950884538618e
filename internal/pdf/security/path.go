package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator confines file access to the configured directory
type PathValidator struct {
	configuredDirectory string
}

// NewPathValidator creates a new path validator for the given directory
func NewPathValidator(configuredDirectory string) (*PathValidator, error) {
	if configuredDirectory == "" {
		return nil, fmt.Errorf("configured directory cannot be empty")
	}

	absDir, err := filepath.Abs(configuredDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve configured directory: %w", err)
	}

	return &PathValidator{
		configuredDirectory: filepath.Clean(absDir),
	}, nil
}

// GetConfiguredDirectory returns the configured directory path
func (v *PathValidator) GetConfiguredDirectory() string {
	return v.configuredDirectory
}

// NormalizePath resolves path against the configured directory and checks
// that the result stays inside it. Relative paths are joined to the
// configured directory.
func (v *PathValidator) NormalizePath(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.configuredDirectory, path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	if !v.IsPathWithinDirectory(absPath) {
		return "", fmt.Errorf("path is outside configured directory: %s", path)
	}

	return absPath, nil
}

// IsPathWithinDirectory reports whether path, and the file it links to if
// it is a symlink, lie inside the configured directory
func (v *PathValidator) IsPathWithinDirectory(path string) bool {
	cleanPath := filepath.Clean(path)

	realPath := cleanPath
	if info, err := os.Lstat(cleanPath); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if resolved, err := filepath.EvalSymlinks(cleanPath); err == nil {
			realPath = resolved
		}
	}

	realDir := v.configuredDirectory
	if resolved, err := filepath.EvalSymlinks(v.configuredDirectory); err == nil {
		realDir = resolved
	}

	within := func(p string) bool {
		return isWithin(p, v.configuredDirectory) || isWithin(p, realDir)
	}
	return within(cleanPath) && within(realPath)
}

// ResolveFile normalizes path and checks that it names a regular file no
// larger than maxSize bytes
func (v *PathValidator) ResolveFile(path string, maxSize int64) (string, os.FileInfo, error) {
	absPath, err := v.NormalizePath(path)
	if err != nil {
		return "", nil, err
	}

	info, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		return "", nil, fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return "", nil, fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return "", nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return "", nil, fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), maxSize)
	}

	return absPath, info, nil
}

func isWithin(path, dir string) bool {
	if path == dir {
		return true
	}
	if !strings.HasSuffix(dir, string(filepath.Separator)) {
		dir += string(filepath.Separator)
	}
	return strings.HasPrefix(path, dir)
}
