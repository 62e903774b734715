//go:build windows

package tflexport

import (
	"os"
	"path/filepath"
)

// getDefaultLockDir returns the directory for output locks on Windows.
// Returns %LOCALAPPDATA%\<appName>\locks\
func getDefaultLockDir(appName string) (string, error) {
	localAppData := os.Getenv("LOCALAPPDATA")
	if localAppData == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		localAppData = filepath.Join(home, "AppData", "Local")
	}
	return filepath.Join(localAppData, appName, "locks"), nil
}
