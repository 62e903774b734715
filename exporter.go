package tflexport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPythonBin is the interpreter used when none is configured.
const DefaultPythonBin = "python3"

// Exporter converts pretrained models to TFLite.
// For CLI integration, use NewCommand instead.
type Exporter interface {
	// Export runs one conversion and returns the written output paths.
	//
	// Option errors (ErrConfig) are returned before any workspace is
	// created or the collaborator is called. On any other failure no
	// output file is written unless the failure happens while writing
	// the outputs themselves (ErrStorage). The temporary workspace is
	// always removed before Export returns.
	Export(ctx context.Context, req Request) (Outputs, error)
}

// Ensure exporter implements Exporter interface.
var _ Exporter = (*exporter)(nil)

// NewExporter creates a new Exporter with the given configuration.
// Returns an error if the configuration is invalid (empty AppName).
func NewExporter(cfg Config, opts ...ExporterOption) (Exporter, error) {
	if cfg.AppName == "" {
		return nil, errors.New("tflexport: AppName is required")
	}

	ecfg := newExporterConfig()
	for _, opt := range opts {
		opt(ecfg)
	}

	logger := ecfg.logger
	if logger == nil {
		logger = nopLogger{}
	}

	if cfg.TempDir != "" && !filepath.IsAbs(cfg.TempDir) {
		abs, err := filepath.Abs(cfg.TempDir)
		if err != nil {
			return nil, fmt.Errorf("tflexport: resolving TempDir: %w", err)
		}
		cfg.TempDir = abs
	}

	lockDir, err := getDefaultLockDir(cfg.AppName)
	if err != nil {
		logger.Debug("falling back to temp dir for locks", "error", err)
		lockDir = os.TempDir()
	}

	collab := ecfg.collaborator
	if collab == nil {
		bin := ecfg.pythonBin
		if bin == "" {
			bin = pythonBin(cfg)
		}
		collab = newUltralyticsCollaborator(bin, ecfg.stderr, logger)
	}

	return &exporter{
		cfg:          cfg,
		collaborator: collab,
		httpClient:   ecfg.httpClient,
		lockDir:      lockDir,
		logger:       logger,
		progressFn:   ecfg.progressFn,
	}, nil
}

// envVarName constructs the interpreter override variable from the app name.
// Example: envVarName("yolo-tflite") returns "YOLO_TFLITE_PYTHON".
func envVarName(appName string) string {
	return strings.ToUpper(strings.ReplaceAll(appName, "-", "_")) + "_PYTHON"
}

// pythonBin picks the interpreter. Priority: env var > Config.PythonBin > default.
func pythonBin(cfg Config) string {
	if env := os.Getenv(envVarName(cfg.AppName)); env != "" {
		return env
	}
	if cfg.PythonBin != "" {
		return cfg.PythonBin
	}
	return DefaultPythonBin
}

// exporter is the concrete implementation of the Exporter interface.
type exporter struct {
	// cfg holds the exporter configuration.
	cfg Config

	// collaborator loads and converts models.
	collaborator Collaborator

	// httpClient fetches weights given as URLs.
	httpClient HTTPClient

	// lockDir holds the per-output-directory lock files.
	lockDir string

	// logger receives diagnostic messages. Never nil.
	logger Logger

	// progressFn receives weight download progress. May be nil.
	progressFn func(FetchProgress)
}

// Export runs one conversion.
func (e *exporter) Export(ctx context.Context, req Request) (out Outputs, err error) {
	if err := req.Validate(); err != nil {
		return Outputs{}, err
	}
	if req.Fraction != nil && req.Data == nil {
		e.logger.Warn("--fraction has no effect without --data", "fraction", *req.Fraction)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return Outputs{}, fmt.Errorf("%w: resolving working directory: %v", ErrStorage, err)
	}
	req, err = anchorPaths(req, cwd)
	if err != nil {
		return Outputs{}, err
	}

	ws, err := newWorkspace(e.cfg.TempDir, e.logger)
	if err != nil {
		return Outputs{}, err
	}
	defer func() {
		if cerr := ws.Close(); cerr != nil && err == nil {
			out, err = Outputs{}, cerr
		}
	}()

	modelRef := req.Model
	if isRemoteModel(modelRef) {
		e.logger.Info("fetching weights", "url", modelRef)
		modelRef, err = fetchWeights(ctx, e.httpClient, modelRef, ws.dir, req.SHA256, e.progressFn)
		if err != nil {
			return Outputs{}, err
		}
	}

	e.logger.Info("loading model", "model", modelRef)
	model, err := e.collaborator.Load(ctx, ws.dir, modelRef)
	if err != nil {
		return Outputs{}, wrapUnless(fmt.Sprintf("loading %s", req.Model), err, ErrLoad, ErrDependencyMissing, ErrBridge, ErrStorage)
	}
	defer model.Close()

	args := req.exportArgs()
	e.logger.Info("exporting model", "format", ExportFormat, "imgsz", req.ImageSize, "half", req.Half, "int8", req.Int8, "nms", req.NMS)
	raw, err := model.Export(ctx, args)
	if err != nil {
		return Outputs{}, wrapUnless("exporting", err, ErrExport, ErrBridge)
	}

	artifact, err := e.verifyArtifact(raw, ws.dir)
	if err != nil {
		return Outputs{}, err
	}

	labels, err := NormalizeLabels(model.Names())
	if err != nil {
		return Outputs{}, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	store := newOutputStore(req.OutDir, e.lockDir, e.logger)
	out, err = store.materialize(artifact, labels)
	if err != nil {
		return Outputs{}, err
	}

	e.logger.Info("export complete", "model", out.Model, "labels", out.Labels)
	return out, nil
}

// verifyArtifact resolves the export result to an existing regular file.
// Relative paths are taken relative to the workspace.
func (e *exporter) verifyArtifact(raw json.RawMessage, workDir string) (string, error) {
	artifact, err := resolveArtifact(raw)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(artifact) {
		artifact = filepath.Join(workDir, artifact)
	}

	info, err := os.Stat(artifact)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExport, artifact, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", ErrExport, artifact)
	}

	e.logger.Debug("export artifact", "path", artifact, "size", formatSize(info.Size()))
	return artifact, nil
}

// wrapUnless annotates err with op, adding fallback (the first of kinds) when
// err does not already carry one of kinds. Context errors are returned as-is.
func wrapUnless(op string, err error, kinds ...error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, kinds[0], err)
}
