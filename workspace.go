package tflexport

import (
	"fmt"
	"os"
)

// workspacePrefix names per-export temporary directories.
const workspacePrefix = "yolo-tflite-"

// workspace is a temporary directory owned by a single export.
// The collaborator runs with it as its working directory.
type workspace struct {
	// dir is the absolute path of the directory.
	dir string

	// logger receives diagnostic messages.
	logger Logger
}

// newWorkspace creates a fresh directory under parent (os.TempDir() if empty).
func newWorkspace(parent string, logger Logger) (*workspace, error) {
	dir, err := os.MkdirTemp(parent, workspacePrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: creating workspace: %v", ErrStorage, err)
	}
	logger.Debug("workspace created", "dir", dir)
	return &workspace{dir: dir, logger: logger}, nil
}

// Close removes the workspace and everything under it. Safe to call multiple times.
func (w *workspace) Close() error {
	if w.dir == "" {
		return nil
	}
	dir := w.dir
	w.dir = ""

	if err := os.RemoveAll(dir); err != nil {
		w.logger.Warn("failed to remove workspace", "dir", dir, "error", err)
		return fmt.Errorf("%w: removing workspace: %v", ErrStorage, err)
	}
	w.logger.Debug("workspace removed", "dir", dir)
	return nil
}
