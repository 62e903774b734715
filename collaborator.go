package tflexport

import (
	"context"
	"encoding/json"
)

// Collaborator loads pretrained models and converts them. The default
// implementation drives the Python Ultralytics package; tests and embedders
// can supply their own with WithCollaborator.
type Collaborator interface {
	// Load resolves model (a name, a local path, or a path inside workDir)
	// and returns a handle to it. Intermediate files are written relative
	// to workDir. Failures should wrap ErrLoad or ErrDependencyMissing.
	Load(ctx context.Context, workDir, model string) (Model, error)
}

// Model is a loaded model handle.
type Model interface {
	// Names returns the model's label attribute as JSON: either an object
	// mapping class indices to names, or an array of names.
	Names() json.RawMessage

	// Export converts the model using args and returns the produced
	// artifact as JSON: a single path or an array of paths. Relative paths
	// are interpreted against the Load working directory.
	Export(ctx context.Context, args map[string]any) (json.RawMessage, error)

	// Close releases the handle and any process behind it.
	Close() error
}
