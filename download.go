package tflexport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// defaultWeightsName is used when a weights URL has no usable file name.
const defaultWeightsName = "weights.pt"

// FetchProgress reports progress while weights are downloaded from a URL.
type FetchProgress struct {
	// URL is the address being fetched.
	URL string

	// BytesTotal is the expected size, or -1 if the server did not say.
	BytesTotal int64

	// BytesCompleted is the number of bytes received so far.
	BytesCompleted int64

	// Done is set on the final report, whether or not the download succeeded.
	Done bool

	// Err is set on the final report when the download failed.
	Err error
}

// verifyHash compares a computed digest to expectedHash.
// Returns nil if they match, ErrHashMismatch otherwise.
// The expectedHash should be a hex-encoded SHA-256 string; case is ignored.
func verifyHash(sum []byte, expectedHash string) error {
	actual := hex.EncodeToString(sum)
	if actual != strings.ToLower(strings.TrimSpace(expectedHash)) {
		return fmt.Errorf("%w: got %s, want %s", ErrHashMismatch, actual, expectedHash)
	}
	return nil
}

// weightsFileName derives a local file name from a weights URL.
func weightsFileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return defaultWeightsName
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return defaultWeightsName
	}
	return name
}

// fetchWeights downloads rawURL into destDir in a single attempt and returns
// the local path. When expectedHash is set the file is verified and removed
// on mismatch. Once the body is being read, progressFn always receives a
// final Done report, with Err set if the download failed.
func fetchWeights(ctx context.Context, client HTTPClient, rawURL, destDir, expectedHash string, progressFn func(FetchProgress)) (_ string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %v", ErrLoad, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("fetching %s: %w: %v", rawURL, ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: weights not found at %s", ErrLoad, rawURL)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: status %d: %w", rawURL, resp.StatusCode, ErrNetwork)
	}

	dest := filepath.Join(destDir, weightsFileName(rawURL))
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("%w: creating %s: %v", ErrStorage, dest, err)
	}

	hasher := sha256.New()
	var reader io.Reader = resp.Body
	if progressFn != nil {
		var completed int64
		reader = &progressReader{reader: resp.Body, onProgress: func(delta int64) {
			completed += delta
			progressFn(FetchProgress{URL: rawURL, BytesTotal: resp.ContentLength, BytesCompleted: completed})
		}}
		defer func() {
			progressFn(FetchProgress{URL: rawURL, BytesTotal: resp.ContentLength, BytesCompleted: completed, Done: true, Err: err})
		}()
	}

	written, err := io.Copy(io.MultiWriter(out, hasher), reader)
	if cerr := out.Close(); err == nil && cerr != nil {
		os.Remove(dest)
		return "", fmt.Errorf("%w: writing %s: %v", ErrStorage, dest, cerr)
	}
	if err != nil {
		os.Remove(dest)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("reading %s: %w: %v", rawURL, ErrNetwork, err)
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		os.Remove(dest)
		return "", fmt.Errorf("reading %s: got %d bytes, expected %d: %w", rawURL, written, resp.ContentLength, ErrNetwork)
	}

	if expectedHash != "" {
		if err := verifyHash(hasher.Sum(nil), expectedHash); err != nil {
			os.Remove(dest)
			return "", err
		}
	}

	return dest, nil
}

// progressReader wraps an io.Reader and reports progress as bytes are read.
type progressReader struct {
	reader     io.Reader
	onProgress func(delta int64)
}

func (pr *progressReader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	if n > 0 && pr.onProgress != nil {
		pr.onProgress(int64(n))
	}
	return
}
