package tflexport

import "errors"

// Sentinel errors for export operations.
// Use errors.Is() to check for specific error conditions.
var (
	// ErrConfig indicates an invalid combination of export options.
	// Returned before any workspace is created or collaborator is called.
	ErrConfig = errors.New("tflexport: invalid configuration")

	// ErrDependencyMissing indicates the Python export library is not installed.
	ErrDependencyMissing = errors.New("tflexport: ultralytics is required (install with: pip install ultralytics)")

	// ErrLoad indicates the model could not be resolved or loaded.
	ErrLoad = errors.New("tflexport: model load failed")

	// ErrExport indicates the collaborator produced no usable artifact.
	ErrExport = errors.New("tflexport: export failed or output not found")

	// ErrStorage indicates a filesystem operation failed.
	ErrStorage = errors.New("tflexport: storage error")

	// ErrNetwork indicates a network or connection failure while fetching weights.
	ErrNetwork = errors.New("tflexport: network error")

	// ErrHashMismatch indicates downloaded weights failed hash verification.
	ErrHashMismatch = errors.New("tflexport: hash verification failed")

	// ErrBridge indicates the collaborator process broke the reply protocol.
	ErrBridge = errors.New("tflexport: collaborator protocol error")
)
