package tflexport

import (
	"io"
	"net/http"
	"time"
)

// Timeouts for filesystem coordination.
const (
	// DefaultLockTimeout is the maximum time to wait for the output directory lock.
	DefaultLockTimeout = 30 * time.Second
)

// ExporterOption configures an Exporter.
type ExporterOption func(*exporterConfig)

// exporterConfig holds configuration for Exporter construction.
type exporterConfig struct {
	// collaborator performs model loading and graph conversion.
	collaborator Collaborator

	// httpClient is used to fetch weights given as URLs.
	httpClient HTTPClient

	// logger receives diagnostic log messages.
	logger Logger

	// stderr receives the collaborator's own output.
	stderr io.Writer

	// progressFn is called while weights are downloaded.
	progressFn func(FetchProgress)

	// pythonBin, when set, overrides every other interpreter setting.
	pythonBin string
}

// newExporterConfig returns an exporterConfig with default values.
func newExporterConfig() *exporterConfig {
	return &exporterConfig{
		httpClient: http.DefaultClient,
	}
}

// WithCollaborator replaces the Ultralytics bridge with another Collaborator.
func WithCollaborator(c Collaborator) ExporterOption {
	return func(cfg *exporterConfig) {
		cfg.collaborator = c
	}
}

// WithHTTPClient sets a custom HTTP client for weight downloads.
// If not set, http.DefaultClient is used.
func WithHTTPClient(client HTTPClient) ExporterOption {
	return func(cfg *exporterConfig) {
		cfg.httpClient = client
	}
}

// WithLogger sets a logger for diagnostic output.
// If not set, logging is disabled.
func WithLogger(logger Logger) ExporterOption {
	return func(cfg *exporterConfig) {
		cfg.logger = logger
	}
}

// WithStderr forwards the collaborator's console output to w.
// If not set, the output is discarded.
func WithStderr(w io.Writer) ExporterOption {
	return func(cfg *exporterConfig) {
		cfg.stderr = w
	}
}

// WithProgress sets a callback for weight download progress.
func WithProgress(fn func(FetchProgress)) ExporterOption {
	return func(cfg *exporterConfig) {
		cfg.progressFn = fn
	}
}

// WithPython runs the bridge with bin, taking priority over both the
// <APPNAME>_PYTHON environment variable and Config.PythonBin. The export
// command uses it for an explicit --python flag.
func WithPython(bin string) ExporterOption {
	return func(cfg *exporterConfig) {
		cfg.pythonBin = bin
	}
}

// HTTPClient is the interface for HTTP operations.
// *http.Client satisfies this interface.
type HTTPClient interface {
	// Do sends an HTTP request and returns an HTTP response.
	Do(req *http.Request) (*http.Response, error)
}

// Logger is the interface for diagnostic logging.
// Compatible with slog, zap, logrus, and other structured loggers.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, keysAndValues ...any)

	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, keysAndValues ...any)

	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, keysAndValues ...any)

	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, keysAndValues ...any)
}

// nopLogger discards everything. Used when no logger is configured.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
