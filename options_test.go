package tflexport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"
)

func TestExporterOptions(t *testing.T) {
	t.Run("default httpClient is http.DefaultClient", func(t *testing.T) {
		cfg := newExporterConfig()
		if cfg.httpClient != http.DefaultClient {
			t.Error("default httpClient should be http.DefaultClient")
		}
	})

	t.Run("defaults are nil", func(t *testing.T) {
		cfg := newExporterConfig()
		if cfg.logger != nil {
			t.Error("default logger should be nil")
		}
		if cfg.collaborator != nil {
			t.Error("default collaborator should be nil")
		}
		if cfg.stderr != nil {
			t.Error("default stderr should be nil")
		}
		if cfg.progressFn != nil {
			t.Error("default progressFn should be nil")
		}
	})

	t.Run("WithHTTPClient sets custom client", func(t *testing.T) {
		cfg := newExporterConfig()
		customClient := &http.Client{}

		WithHTTPClient(customClient)(cfg)

		if cfg.httpClient != customClient {
			t.Error("httpClient should be the custom client")
		}
	})

	t.Run("WithLogger sets logger", func(t *testing.T) {
		cfg := newExporterConfig()
		logger := &testLogger{}

		WithLogger(logger)(cfg)

		if cfg.logger != logger {
			t.Error("logger should be set")
		}
	})

	t.Run("WithCollaborator sets collaborator", func(t *testing.T) {
		cfg := newExporterConfig()
		collab := &fakeCollaborator{}

		WithCollaborator(collab)(cfg)

		if cfg.collaborator != collab {
			t.Error("collaborator should be set")
		}
	})

	t.Run("WithPython sets interpreter", func(t *testing.T) {
		cfg := newExporterConfig()

		WithPython("/usr/local/bin/python3.11")(cfg)

		if cfg.pythonBin != "/usr/local/bin/python3.11" {
			t.Errorf("pythonBin = %q", cfg.pythonBin)
		}
	})

	t.Run("WithStderr sets writer", func(t *testing.T) {
		cfg := newExporterConfig()
		var buf bytes.Buffer

		WithStderr(&buf)(cfg)

		if cfg.stderr != &buf {
			t.Error("stderr should be set")
		}
	})
}

func TestWithProgress(t *testing.T) {
	cfg := newExporterConfig()
	called := false

	WithProgress(func(p FetchProgress) {
		called = true
	})(cfg)

	if cfg.progressFn == nil {
		t.Fatal("progressFn should not be nil after WithProgress()")
	}

	cfg.progressFn(FetchProgress{URL: "https://example.com/w.pt"})
	if !called {
		t.Error("progressFn was not invoked")
	}
}

func TestExporterLogsToLogger(t *testing.T) {
	logger := &testLogger{}
	collab := &fakeCollaborator{
		names:  json.RawMessage(`["a"]`),
		export: exportInWorkspace("a.tflite", []byte("a")),
	}
	exp, _ := newTestExporter(t, collab, WithLogger(logger))

	req := NewRequest()
	req.OutDir = t.TempDir()
	req.Fraction = floatPtr(0.25)

	if _, err := exp.Export(context.Background(), req); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	want := map[string]bool{
		"WARN: --fraction has no effect without --data": false,
		"INFO: loading model":                           false,
		"INFO: exporting model":                         false,
		"INFO: export complete":                         false,
	}
	for _, msg := range logger.messages {
		if _, ok := want[msg]; ok {
			want[msg] = true
		}
	}
	for msg, seen := range want {
		if !seen {
			t.Errorf("missing log message %q in %v", msg, logger.messages)
		}
	}
}

// testLogger is a simple Logger implementation for testing.
type testLogger struct {
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.messages = append(l.messages, "DEBUG: "+msg)
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.messages = append(l.messages, "INFO: "+msg)
}

func (l *testLogger) Warn(msg string, keysAndValues ...any) {
	l.messages = append(l.messages, "WARN: "+msg)
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.messages = append(l.messages, "ERROR: "+msg)
}

func TestConstants(t *testing.T) {
	tests := []struct {
		name string
		got  any
		want any
	}{
		{"DefaultLockTimeout", DefaultLockTimeout, 30 * time.Second},
		{"DefaultModel", DefaultModel, "yolov8n.pt"},
		{"DefaultImageSize", DefaultImageSize, 640},
		{"ExportFormat", ExportFormat, "tflite"},
		{"ModelFileName", ModelFileName, "yolov8.tflite"},
		{"LabelsFileName", LabelsFileName, "yolov8.labels.json"},
		{"DefaultPythonBin", DefaultPythonBin, "python3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}
