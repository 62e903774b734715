package tflexport

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// isRemoteModel reports whether model is an http(s) URL to a weights file.
func isRemoteModel(model string) bool {
	u, err := url.Parse(model)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// anchorPaths rewrites caller-relative paths in req against cwd, since the
// collaborator runs in its own workspace. Names the collaborator resolves
// itself (e.g. "yolov8n.pt" or "coco8.yaml") are left untouched unless a file
// of that name exists locally.
func anchorPaths(req Request, cwd string) (Request, error) {
	if !filepath.IsAbs(req.OutDir) {
		req.OutDir = filepath.Join(cwd, req.OutDir)
	}

	if !isRemoteModel(req.Model) {
		if p, ok := localPath(req.Model, cwd); ok {
			req.Model = p
		}
	}

	if req.Data != nil && *req.Data != "" {
		if p, ok := localPath(*req.Data, cwd); ok {
			if err := checkDatasetDescriptor(p); err != nil {
				return Request{}, err
			}
			req.Data = &p
		}
	}

	return req, nil
}

// localPath returns the absolute form of name if it exists relative to cwd.
func localPath(name, cwd string) (string, bool) {
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(cwd, p)
	}
	if _, err := os.Stat(p); err != nil {
		return "", false
	}
	return p, true
}

// checkDatasetDescriptor verifies that a local calibration descriptor file is
// a YAML mapping. Directories are accepted as-is.
func checkDatasetDescriptor(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: --data %s: %v", ErrConfig, path, err)
	}
	if info.IsDir() {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: --data %s: %v", ErrConfig, path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: --data %s is not a valid dataset descriptor: %v", ErrConfig, path, err)
	}
	if len(doc) == 0 {
		return fmt.Errorf("%w: --data %s is empty", ErrConfig, path)
	}
	return nil
}
