package tflexport

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
)

// NewCommand creates the Cobra command that runs one export.
// It can be used as a root command or added to a parent CLI.
//
//	export [--model yolov8n.pt] [--imgsz 640] [--half] [--int8 --data d.yaml]
//	       [--nms] [--fraction f] [--device d] [--out-dir assets/models]
//
// Additional flags: --python, --sha256, --json, --quiet, --verbose
//
// Interpreter priority: --python > <APPNAME>_PYTHON > Config.PythonBin > python3.
func NewCommand(cfg Config, opts ...ExporterOption) *cobra.Command {
	var (
		req        = NewRequest()
		data       string
		fraction   float64
		device     string
		python     string
		jsonOutput bool
		quiet      bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a YOLO model to TFLite",
		Long: "Download a pretrained YOLO model via Ultralytics and export it to TFLite,\n" +
			"writing " + ModelFileName + " and " + LabelsFileName + " to the output directory.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("data") {
				req.Data = &data
			}
			if flags.Changed("fraction") {
				req.Fraction = &fraction
			}
			if flags.Changed("device") {
				req.Device = &device
			}

			stderr := cmd.ErrOrStderr()
			level := slog.LevelInfo
			switch {
			case verbose:
				level = slog.LevelDebug
			case quiet:
				level = slog.LevelWarn
			}
			logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

			base := []ExporterOption{WithLogger(logger)}
			if flags.Changed("python") {
				base = append(base, WithPython(python))
			}
			if !quiet {
				base = append(base, WithStderr(stderr), WithProgress(newProgressPrinter(stderr)))
			}

			exp, err := NewExporter(cfg, append(base, opts...)...)
			if err != nil {
				return fmt.Errorf("failed to initialize exporter: %w", err)
			}

			out, err := exp.Export(cmd.Context(), req)
			if err != nil {
				return err
			}
			return outputResult(cmd.OutOrStdout(), out, jsonOutput)
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.StringVar(&req.Model, "model", DefaultModel, "Ultralytics model name, path to a .pt file, or URL")
	f.IntVar(&req.ImageSize, "imgsz", DefaultImageSize, "Input image size")
	f.BoolVar(&req.Half, "half", false, "Enable FP16 quantization")
	f.BoolVar(&req.Int8, "int8", false, "Enable INT8 quantization (requires --data)")
	f.BoolVar(&req.NMS, "nms", false, "Enable NMS in export")
	f.StringVar(&data, "data", "", "Dataset yaml (required for int8)")
	f.Float64Var(&fraction, "fraction", 0, "Dataset fraction for int8, in (0, 1]")
	f.StringVar(&device, "device", "", "Export device (e.g. cpu, mps)")
	f.StringVar(&req.OutDir, "out-dir", DefaultOutDir, "Output directory for "+ModelFileName+" and labels")
	f.StringVar(&req.SHA256, "sha256", "", "Expected SHA-256 of weights fetched from a URL")
	f.StringVar(&python, "python", "", "Python interpreter with ultralytics installed; overrides "+envVarName(cfg.AppName)+" (default \""+DefaultPythonBin+"\")")
	f.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	f.BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	f.BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	return cmd
}

// outputResult prints the written paths.
func outputResult(w io.Writer, out Outputs, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintln(w, "Exported:", out.Model)
	fmt.Fprintln(w, "Labels:", out.Labels)
	return nil
}

// newProgressPrinter returns a FetchProgress callback that redraws a
// progress bar on w at most once per second, plus a final 100% line. The
// cursor is restored on the final report even when the download failed.
func newProgressPrinter(w io.Writer) func(FetchProgress) {
	var (
		mu        sync.Mutex
		started   bool
		startTime time.Time
		lastDraw  time.Time
	)

	return func(p FetchProgress) {
		mu.Lock()
		defer mu.Unlock()

		if !started {
			started = true
			startTime = time.Now()
			fmt.Fprint(w, "\x1b[?25l") // hide cursor
		}

		if p.Done {
			if p.Err == nil {
				renderProgress(w, p.BytesCompleted, p.BytesCompleted, startTime)
			}
			fmt.Fprint(w, "\x1b[?25h\n") // show cursor, new line
			started = false
			return
		}

		if time.Since(lastDraw) < time.Second {
			return
		}
		lastDraw = time.Now()
		renderProgress(w, p.BytesCompleted, p.BytesTotal, startTime)
	}
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// renderProgress renders the progress bar to the writer.
// Format: Downloading [============>                 ] 45% (5.2 MB/s, elapsed: 30s, remaining: 2m 15s)
// A negative total means the size is unknown; only bytes and speed are shown.
func renderProgress(w io.Writer, current, total int64, startTime time.Time) {
	elapsed := time.Since(startTime)

	var speed float64
	if elapsed.Seconds() > 0 && current > 0 {
		speed = float64(current) / elapsed.Seconds()
	}

	if total < 0 {
		fmt.Fprintf(w, "\r\x1b[KDownloading %s (%s, elapsed: %s)",
			formatSize(current), formatSpeed(speed), formatDuration(elapsed))
		return
	}

	var pct float64
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}

	var remaining time.Duration
	if speed > 0 && current < total {
		remaining = time.Duration(float64(total-current)/speed) * time.Second
	}

	const barWidth = 30
	filled := int(pct / 100 * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}

	var bar string
	if filled >= barWidth {
		bar = strings.Repeat("=", barWidth)
	} else if filled > 0 {
		bar = strings.Repeat("=", filled) + ">" + strings.Repeat(" ", barWidth-filled-1)
	} else {
		bar = ">" + strings.Repeat(" ", barWidth-1)
	}

	// \r to overwrite, \x1b[K to clear to end of line
	fmt.Fprintf(w, "\r\x1b[KDownloading [%s] %.0f%% (%s, elapsed: %s, remaining: %s)",
		bar, pct, formatSpeed(speed), formatDuration(elapsed), formatDuration(remaining))
}

// formatSpeed formats bytes per second as KB/s or MB/s.
func formatSpeed(bytesPerSec float64) string {
	const (
		KB = 1024
		MB = KB * 1024
	)

	if bytesPerSec >= MB {
		return fmt.Sprintf("%.1f MB/s", bytesPerSec/MB)
	}
	if bytesPerSec >= KB {
		return fmt.Sprintf("%.1f KB/s", bytesPerSec/KB)
	}
	return fmt.Sprintf("%.0f B/s", bytesPerSec)
}

// formatDuration formats a duration as human-readable text (e.g., "5s", "2m 30s", "1h 5m").
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	d = d.Round(time.Second)

	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60

	if hours > 0 {
		if mins > 0 {
			return fmt.Sprintf("%dh %dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
	if mins > 0 {
		if secs > 0 {
			return fmt.Sprintf("%dm %ds", mins, secs)
		}
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%ds", secs)
}
