package tflexport

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// outputStore writes export artifacts into an output directory.
type outputStore struct {
	// dir is the absolute output directory.
	dir string

	// lockDir holds the cross-process lock files. Kept outside dir so the
	// output directory only ever contains the two artifacts.
	lockDir string

	// lockTimeout is the maximum duration to wait for lock acquisition.
	lockTimeout time.Duration

	// logger receives diagnostic messages.
	logger Logger
}

// newOutputStore returns a store for dir, which must be absolute. Lock files
// are created in lockDir.
func newOutputStore(dir, lockDir string, logger Logger) *outputStore {
	return &outputStore{
		dir:         dir,
		lockDir:     lockDir,
		lockTimeout: DefaultLockTimeout,
		logger:      logger,
	}
}

// modelPath returns the destination of the exported model.
func (s *outputStore) modelPath() string {
	return filepath.Join(s.dir, ModelFileName)
}

// labelsPath returns the destination of the label list.
func (s *outputStore) labelsPath() string {
	return filepath.Join(s.dir, LabelsFileName)
}

// lockPath returns the lock file guarding dir. The name is derived from the
// directory path so that every process exporting into dir agrees on it.
func (s *outputStore) lockPath() string {
	h := sha256.Sum256([]byte(s.dir))
	return filepath.Join(s.lockDir, workspacePrefix+hex.EncodeToString(h[:8])+".lock")
}

// materialize copies artifact and writes labels into the output directory.
// Existing files are replaced atomically.
func (s *outputStore) materialize(artifact string, labels Labels) (Outputs, error) {
	if err := s.ensureDir(s.dir); err != nil {
		return Outputs{}, err
	}
	if err := s.ensureDir(s.lockDir); err != nil {
		return Outputs{}, err
	}

	lock, err := newFileLock(s.lockPath(), s.lockTimeout)
	if err != nil {
		return Outputs{}, fmt.Errorf("%w: failed to create lock: %v", ErrStorage, err)
	}
	if err := lock.Lock(); err != nil {
		return Outputs{}, fmt.Errorf("%w: another export is writing to %s: %v", ErrStorage, s.dir, err)
	}
	defer lock.Unlock()

	data, err := labels.MarshalIndent()
	if err != nil {
		return Outputs{}, fmt.Errorf("%w: failed to marshal labels: %v", ErrStorage, err)
	}

	out := Outputs{Model: s.modelPath(), Labels: s.labelsPath()}
	if err := s.copyFile(artifact, out.Model); err != nil {
		return Outputs{}, err
	}
	if err := s.atomicWrite(out.Labels, data); err != nil {
		return Outputs{}, err
	}

	s.logger.Debug("outputs written", "model", out.Model, "labels", out.Labels, "classes", len(labels))
	return out, nil
}

// ensureDir creates a directory and all parent directories if they don't exist.
func (s *outputStore) ensureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory %s: %v", ErrStorage, path, err)
	}
	return nil
}

// atomicWrite writes data to a file using write-then-rename for atomicity.
func (s *outputStore) atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: failed to write temp file: %v", ErrStorage, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // cleanup on failure
		return fmt.Errorf("%w: failed to rename temp file: %v", ErrStorage, err)
	}
	return nil
}

// copyFile copies src to dst byte for byte, keeping the permission bits and
// modification time of src. dst is replaced atomically.
func (s *outputStore) copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: opening artifact: %v", ErrStorage, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("%w: stat artifact: %v", ErrStorage, err)
	}

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %v", ErrStorage, err)
	}

	written, err := io.Copy(out, in)
	if err == nil {
		err = out.Sync()
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && written != info.Size() {
		err = fmt.Errorf("wrote %d bytes, expected %d", written, info.Size())
	}
	if err == nil {
		err = os.Chmod(tmp, info.Mode().Perm())
	}
	if err == nil {
		err = os.Chtimes(tmp, info.ModTime(), info.ModTime())
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: copying artifact: %v", ErrStorage, err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp) // cleanup on failure
		return fmt.Errorf("%w: failed to rename temp file: %v", ErrStorage, err)
	}
	return nil
}
