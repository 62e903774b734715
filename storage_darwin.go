//go:build darwin

package tflexport

import (
	"os"
	"path/filepath"
)

// getDefaultLockDir returns the directory for output locks on macOS.
// Returns ~/Library/Caches/<appName>/locks/
func getDefaultLockDir(appName string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "Caches", appName, "locks"), nil
}
