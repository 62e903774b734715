// Command yolo-tflite downloads a pretrained YOLO model through Ultralytics
// and exports it to TFLite together with its label list.
//
// Configuration is loaded from flags and environment variables:
//   - YOLO_TFLITE_PYTHON: Python interpreter with ultralytics installed (optional)
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	tflexport "github.com/prethora/yolo-tflite"
)

// CLI exit codes for standardized error reporting.
const (
	// ExitSuccess indicates the export completed and both files were written.
	ExitSuccess = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError = 1

	// ExitInvalidArgs indicates invalid flags or flag combinations.
	ExitInvalidArgs = 2

	// ExitDependencyMissing indicates Python or ultralytics is not installed.
	ExitDependencyMissing = 3

	// ExitLoadError indicates the model could not be loaded.
	ExitLoadError = 4

	// ExitExportError indicates the export produced no artifact.
	ExitExportError = 5

	// ExitStorageError indicates a filesystem operation failed.
	ExitStorageError = 6

	// ExitNetworkError indicates fetching remote weights failed.
	ExitNetworkError = 7

	// ExitHashMismatch indicates fetched weights failed verification.
	ExitHashMismatch = 8
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := tflexport.NewCommand(tflexport.Config{AppName: "yolo-tflite"})
	cmd.Use = "yolo-tflite"

	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(exitCodeFromError(err))
	}
}

// exitCodeFromError maps error types to exit codes.
func exitCodeFromError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, tflexport.ErrConfig):
		return ExitInvalidArgs
	case errors.Is(err, tflexport.ErrDependencyMissing):
		return ExitDependencyMissing
	case errors.Is(err, tflexport.ErrLoad):
		return ExitLoadError
	case errors.Is(err, tflexport.ErrExport):
		return ExitExportError
	case errors.Is(err, tflexport.ErrStorage):
		return ExitStorageError
	case errors.Is(err, tflexport.ErrNetwork):
		return ExitNetworkError
	case errors.Is(err, tflexport.ErrHashMismatch):
		return ExitHashMismatch
	default:
		fmt.Fprintln(os.Stderr, "hint: run with --verbose for details")
		return ExitGeneralError
	}
}
