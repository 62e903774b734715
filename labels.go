package tflexport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Labels is the ordered list of class names. Index i is the name of class i.
type Labels []string

// NormalizeLabels converts the collaborator's label attribute into Labels.
//
// A JSON object maps class indices to names; its keys must be non-negative
// integers and are read in ascending numeric order. A JSON array is already
// ordered and is used as-is. null yields an empty list.
func NormalizeLabels(raw json.RawMessage) (Labels, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Labels{}, nil
	}

	switch raw[0] {
	case '[':
		var names []string
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, fmt.Errorf("label sequence: %w", err)
		}
		return Labels(names), nil

	case '{':
		var byKey map[string]string
		if err := json.Unmarshal(raw, &byKey); err != nil {
			return nil, fmt.Errorf("label mapping: %w", err)
		}

		indices := make([]int, 0, len(byKey))
		names := make(map[int]string, len(byKey))
		for key, name := range byKey {
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("label mapping: class index %q is not a non-negative integer", key)
			}
			if _, dup := names[idx]; dup {
				return nil, fmt.Errorf("label mapping: duplicate class index %d", idx)
			}
			names[idx] = name
			indices = append(indices, idx)
		}
		sort.Ints(indices)

		labels := make(Labels, 0, len(indices))
		for _, idx := range indices {
			labels = append(labels, names[idx])
		}
		return labels, nil

	default:
		return nil, fmt.Errorf("labels must be a mapping or a sequence, got %s", truncate(raw, 32))
	}
}

// MarshalIndent encodes the labels as a 2-space indented JSON array followed
// by a newline. An empty list encodes as "[]".
func (l Labels) MarshalIndent() ([]byte, error) {
	if l == nil {
		l = Labels{}
	}
	data, err := json.MarshalIndent([]string(l), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// resolveArtifact picks the canonical artifact path from an export result,
// which is either a single path or an ordered sequence of paths.
func resolveArtifact(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("%w: collaborator returned no path", ErrExport)
	}

	if raw[0] == '[' {
		var paths []string
		if err := json.Unmarshal(raw, &paths); err != nil {
			return "", fmt.Errorf("%w: invalid path sequence: %v", ErrExport, err)
		}
		if len(paths) == 0 || paths[0] == "" {
			return "", fmt.Errorf("%w: collaborator returned no path", ErrExport)
		}
		return paths[0], nil
	}

	var path string
	if err := json.Unmarshal(raw, &path); err != nil {
		return "", fmt.Errorf("%w: invalid path: %v", ErrExport, err)
	}
	if path == "" {
		return "", fmt.Errorf("%w: collaborator returned an empty path", ErrExport)
	}
	return path, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
