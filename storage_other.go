//go:build !darwin && !windows

package tflexport

import (
	"os"
	"path/filepath"
)

// getDefaultLockDir returns the directory for output locks on Linux and other
// Unix systems. Uses $XDG_RUNTIME_DIR/<appName>/ if set, otherwise the system
// temp directory.
func getDefaultLockDir(appName string) (string, error) {
	if runtime := os.Getenv("XDG_RUNTIME_DIR"); runtime != "" {
		return filepath.Join(runtime, appName), nil
	}
	return os.TempDir(), nil
}
