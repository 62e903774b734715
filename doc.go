// Package tflexport converts pretrained YOLO detection models into the
// TensorFlow Lite format used by the mobile client.
//
// The package serves two use cases:
//
//  1. Programmatic API via the Exporter interface - NewExporter returns an
//     Exporter whose Export method runs one complete conversion and returns
//     the paths of the written artifacts.
//
//  2. Embeddable CLI via NewCommand - the returned Cobra command exposes the
//     same conversion as "export" with flags mirroring Request.
//
// # Collaborator
//
// The graph conversion itself is done by the Python Ultralytics package. The
// package drives it through a small bridge script that is embedded in the
// binary and run as a child process. The bridge speaks one JSON object per
// line; library output is redirected to stderr so that it never corrupts the
// reply stream. Any other implementation of Collaborator can be supplied with
// WithCollaborator.
//
// # Workspace
//
// Every export runs in a fresh temporary directory that is passed to the
// collaborator as its working directory. The calling process never changes
// directory, and the workspace is removed on every exit path, including
// errors and context cancellation.
//
// # Outputs
//
// Two files are written to the output directory:
//   - yolov8.tflite: byte-identical copy of the exported model
//   - yolov8.labels.json: class names in ascending class-index order
//
// Existing files are replaced atomically while holding a cross-process lock
// on the output directory.
package tflexport
