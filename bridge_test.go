package tflexport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// stubUltralytics is a minimal stand-in for the ultralytics package. It
// prints to stdout at both the Python and the file descriptor level, like
// the real library does during export.
const stubUltralytics = `import json
import os

print("stub ultralytics imported")


class YOLO:
    def __init__(self, model):
        print("loading %s" % model)
        if model.startswith("missing"):
            raise FileNotFoundError("%s does not exist" % model)
        self.names = {10: "toothbrush", 2: "car", 0: "person", 1: "bicycle"}

    def export(self, **kwargs):
        os.write(1, b"fd-level chatter\n")
        print("exporting with", kwargs)
        with open("args.json", "w") as f:
            json.dump(kwargs, f)
        os.makedirs("stub_saved_model", exist_ok=True)
        path = os.path.join("stub_saved_model", "stub_float32.tflite")
        with open(path, "wb") as f:
            f.write(b"TFL3")
        return (path, "stub.onnx")
`

// brokenUltralytics fails on import the way a missing backend does.
const brokenUltralytics = `raise ImportError("No module named 'torch'")
`

// requirePython returns a Python interpreter or skips the test.
func requirePython(t *testing.T) string {
	t.Helper()
	bin, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not available")
	}
	return bin
}

// installStub writes an ultralytics package with the given source and puts
// it on PYTHONPATH.
func installStub(t *testing.T, source string) {
	t.Helper()
	root := t.TempDir()
	pkg := filepath.Join(root, "ultralytics")
	if err := os.MkdirAll(pkg, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(pkg, "__init__.py"), []byte(source), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("PYTHONPATH", root)
	t.Setenv("PYTHONDONTWRITEBYTECODE", "1")
}

func TestBridgeScriptLoadAndExport(t *testing.T) {
	python := requirePython(t)
	installStub(t, stubUltralytics)

	workDir := t.TempDir()
	var stderr bytes.Buffer
	collab := newUltralyticsCollaborator(python, &stderr, nopLogger{})

	model, err := collab.Load(context.Background(), workDir, "yolov8n.pt")
	if err != nil {
		t.Fatalf("Load() error = %v\nstderr: %s", err, stderr.String())
	}
	defer model.Close()

	labels, err := NormalizeLabels(model.Names())
	if err != nil {
		t.Fatalf("NormalizeLabels() error = %v", err)
	}
	if diff := cmp.Diff(Labels{"person", "bicycle", "car", "toothbrush"}, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}

	raw, err := model.Export(context.Background(), NewRequest().exportArgs())
	if err != nil {
		t.Fatalf("Export() error = %v\nstderr: %s", err, stderr.String())
	}

	var exported []string
	if err := json.Unmarshal(raw, &exported); err != nil {
		t.Fatalf("tuple result should arrive as a list: %v (%s)", err, raw)
	}
	artifact, err := resolveArtifact(raw)
	if err != nil {
		t.Fatalf("resolveArtifact() error = %v", err)
	}
	if artifact != filepath.Join("stub_saved_model", "stub_float32.tflite") {
		t.Errorf("artifact = %q", artifact)
	}
	if _, err := os.Stat(filepath.Join(workDir, artifact)); err != nil {
		t.Errorf("artifact not written inside the workspace: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(workDir, "args.json"))
	if err != nil {
		t.Fatalf("export args not recorded: %v", err)
	}
	var args map[string]any
	if err := json.Unmarshal(data, &args); err != nil {
		t.Fatalf("args.json: %v", err)
	}
	want := map[string]any{"format": "tflite", "imgsz": float64(640), "half": false, "int8": false, "nms": false}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}

	if err := model.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	for _, chatter := range []string{"stub ultralytics imported", "loading yolov8n.pt", "exporting with", "fd-level chatter"} {
		if !bytes.Contains(stderr.Bytes(), []byte(chatter)) {
			t.Errorf("stderr missing %q, got %q", chatter, stderr.String())
		}
	}
}

func TestBridgeScriptErrors(t *testing.T) {
	python := requirePython(t)

	t.Run("load failure", func(t *testing.T) {
		installStub(t, stubUltralytics)
		collab := newUltralyticsCollaborator(python, nil, nopLogger{})

		_, err := collab.Load(context.Background(), t.TempDir(), "missing.pt")
		if !errors.Is(err, ErrLoad) {
			t.Errorf("Load() error = %v, want ErrLoad", err)
		}
	})

	t.Run("import failure", func(t *testing.T) {
		installStub(t, brokenUltralytics)
		var stderr bytes.Buffer
		collab := newUltralyticsCollaborator(python, &stderr, nopLogger{})

		_, err := collab.Load(context.Background(), t.TempDir(), "yolov8n.pt")
		if !errors.Is(err, ErrDependencyMissing) {
			t.Errorf("Load() error = %v, want ErrDependencyMissing", err)
		}
	})
}

func TestBridgeScriptSurvivesBadRequests(t *testing.T) {
	python := requirePython(t)
	installStub(t, stubUltralytics)

	ctx := context.Background()
	workDir := t.TempDir()
	collab := newUltralyticsCollaborator(python, nil, nopLogger{})

	cmd, err := collab.launch(ctx, workDir)
	if err != nil {
		t.Fatalf("launch() error = %v", err)
	}
	client, err := startBridge(ctx, cmd, workDir, nil, nopLogger{})
	if err != nil {
		t.Fatalf("startBridge() error = %v", err)
	}
	defer client.Close()

	if _, err := client.stdin.Write([]byte("{not json\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	reply, err := client.read(ctx)
	if err != nil {
		t.Fatalf("read() error = %v", err)
	}
	if reply.OK || !errors.Is(reply.err(), ErrBridge) {
		t.Errorf("malformed request reply = %+v, want a protocol error", reply)
	}

	if _, err := client.call(ctx, bridgeRequest{Op: "reload"}); !errors.Is(err, ErrBridge) {
		t.Errorf("unknown op error = %v, want ErrBridge", err)
	}

	if _, err := client.call(ctx, bridgeRequest{Op: "load", Model: "yolov8n.pt"}); err != nil {
		t.Errorf("load after bad requests error = %v", err)
	}
}
