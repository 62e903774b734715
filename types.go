package tflexport

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Export defaults, matching the flags of the export command.
const (
	// DefaultModel is the pretrained model loaded when none is given.
	DefaultModel = "yolov8n.pt"

	// DefaultImageSize is the square input resolution of the exported model.
	DefaultImageSize = 640

	// ExportFormat is the only target format this package produces.
	ExportFormat = "tflite"

	// ModelFileName is the name of the exported model in the output directory.
	ModelFileName = "yolov8.tflite"

	// LabelsFileName is the name of the label list in the output directory.
	LabelsFileName = "yolov8.labels.json"
)

// DefaultOutDir is the output directory used when none is given.
var DefaultOutDir = filepath.Join("assets", "models")

// Config configures the exporter.
type Config struct {
	// AppName determines the environment variable prefix.
	// Example: "yolo-tflite" → YOLO_TFLITE_PYTHON
	AppName string

	// PythonBin is the interpreter used to run the export bridge.
	// If empty, "python3" is used.
	// Can also be set via environment variable: <APPNAME>_PYTHON
	PythonBin string

	// TempDir is the parent directory for per-export workspaces.
	// If empty, os.TempDir() is used.
	TempDir string
}

// Request describes a single export. Optional fields are nil when the caller
// did not set them; they are then left to the collaborator's own defaults.
type Request struct {
	// Model is a model name known to the collaborator, a local weights file,
	// or an http(s) URL to a weights file.
	Model string

	// ImageSize is the square input resolution of the exported model.
	ImageSize int

	// Half requests FP16 weights.
	Half bool

	// Int8 requests INT8 quantization. Requires Data.
	Int8 bool

	// NMS includes non-max suppression in the exported graph.
	NMS bool

	// Data is the calibration dataset descriptor.
	Data *string

	// Fraction limits calibration to a fraction of the dataset, in (0, 1].
	Fraction *float64

	// Device is the compute device used during export, e.g. "cpu" or "mps".
	Device *string

	// SHA256 is the expected hex digest of weights fetched from a URL.
	// Ignored for non-URL models.
	SHA256 string

	// OutDir is where the model and label files are written.
	OutDir string
}

// NewRequest returns a Request populated with the default model, image size
// and output directory.
func NewRequest() Request {
	return Request{
		Model:     DefaultModel,
		ImageSize: DefaultImageSize,
		OutDir:    DefaultOutDir,
	}
}

// Validate checks option combinations that can be rejected without touching
// the filesystem or the collaborator. All failures wrap ErrConfig.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return fmt.Errorf("%w: --model must not be empty", ErrConfig)
	}
	if r.ImageSize <= 0 {
		return fmt.Errorf("%w: --imgsz must be positive, got %d", ErrConfig, r.ImageSize)
	}
	if r.Int8 && (r.Data == nil || *r.Data == "") {
		return fmt.Errorf("%w: --data is required when using --int8", ErrConfig)
	}
	if r.Fraction != nil && (*r.Fraction <= 0 || *r.Fraction > 1) {
		return fmt.Errorf("%w: --fraction must be in (0, 1], got %g", ErrConfig, *r.Fraction)
	}
	if r.OutDir == "" {
		return fmt.Errorf("%w: --out-dir must not be empty", ErrConfig)
	}
	return nil
}

// exportArgs builds the collaborator's export configuration. Optional fields
// are only present when the caller set them.
func (r Request) exportArgs() map[string]any {
	args := map[string]any{
		"format": ExportFormat,
		"imgsz":  r.ImageSize,
		"half":   r.Half,
		"int8":   r.Int8,
		"nms":    r.NMS,
	}
	if r.Data != nil && *r.Data != "" {
		args["data"] = *r.Data
	}
	if r.Fraction != nil {
		args["fraction"] = *r.Fraction
	}
	if r.Device != nil && *r.Device != "" {
		args["device"] = *r.Device
	}
	return args
}

// Outputs contains the paths written by a successful export.
type Outputs struct {
	// Model is the path of the exported TFLite model.
	Model string `json:"model"`

	// Labels is the path of the JSON label list.
	Labels string `json:"labels"`
}
