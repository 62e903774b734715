package tflexport

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeLabels(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Labels
	}{
		{"mapping", `{"0": "person", "1": "car"}`, Labels{"person", "car"}},
		{"mapping out of order", `{"1": "car", "0": "person"}`, Labels{"person", "car"}},
		{"numeric not lexical order", `{"10": "k", "2": "c", "0": "a", "1": "b"}`, Labels{"a", "b", "c", "k"}},
		{"sparse mapping", `{"5": "five", "3": "three"}`, Labels{"three", "five"}},
		{"sequence", `["person", "car", "bus"]`, Labels{"person", "car", "bus"}},
		{"sequence kept as-is", `["zebra", "ant"]`, Labels{"zebra", "ant"}},
		{"empty mapping", `{}`, Labels{}},
		{"empty sequence", `[]`, Labels{}},
		{"null", `null`, Labels{}},
		{"missing", ``, Labels{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeLabels(json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("NormalizeLabels() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NormalizeLabels() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeLabelsErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"non-integer key", `{"a": "person"}`},
		{"negative key", `{"-1": "person"}`},
		{"duplicate index", `{"1": "a", "01": "b"}`},
		{"non-string name", `{"0": 3}`},
		{"non-string element", `["a", 1]`},
		{"scalar", `"person"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NormalizeLabels(json.RawMessage(tt.raw)); err == nil {
				t.Errorf("NormalizeLabels(%s) error = nil, want error", tt.raw)
			}
		})
	}
}

func TestLabelsMarshalIndent(t *testing.T) {
	tests := []struct {
		name   string
		labels Labels
		want   string
	}{
		{"two labels", Labels{"person", "car"}, "[\n  \"person\",\n  \"car\"\n]\n"},
		{"empty", Labels{}, "[]\n"},
		{"nil", nil, "[]\n"},
		{"utf-8 kept", Labels{"café"}, "[\n  \"café\"\n]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.labels.MarshalIndent()
			if err != nil {
				t.Fatalf("MarshalIndent() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("MarshalIndent() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLabelsRoundTrip(t *testing.T) {
	raw := json.RawMessage(`{"2": "bus", "0": "person", "1": "car"}`)

	labels, err := NormalizeLabels(raw)
	if err != nil {
		t.Fatalf("NormalizeLabels() error = %v", err)
	}
	data, err := labels.MarshalIndent()
	if err != nil {
		t.Fatalf("MarshalIndent() error = %v", err)
	}

	var back []string
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if diff := cmp.Diff([]string{"person", "car", "bus"}, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveArtifact(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"single path", `"/tmp/x/best.tflite"`, "/tmp/x/best.tflite", false},
		{"sequence takes first", `["a.tflite", "b.tflite"]`, "a.tflite", false},
		{"empty sequence", `[]`, "", true},
		{"empty first element", `["", "b.tflite"]`, "", true},
		{"empty string", `""`, "", true},
		{"null", `null`, "", true},
		{"missing", ``, "", true},
		{"wrong type", `42`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveArtifact(json.RawMessage(tt.raw))
			if tt.wantErr {
				if !errors.Is(err, ErrExport) {
					t.Errorf("resolveArtifact() error = %v, want ErrExport", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveArtifact() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("resolveArtifact() = %q, want %q", got, tt.want)
			}
		})
	}
}
