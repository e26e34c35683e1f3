//go:build cgo

package embeddings

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// defaultONNXRuntimeVersion matches the onnxruntime_go pinned by
// fastembed-go. Update together with that dependency.
const defaultONNXRuntimeVersion = "1.23.0"

// ErrUnsupportedPlatform indicates the current OS/arch has no ONNX
// runtime release.
var ErrUnsupportedPlatform = fmt.Errorf("unsupported platform")

var onnxPlatforms = map[string]map[string]string{
	"linux": {
		"amd64": "linux-x64",
		"arm64": "linux-aarch64",
	},
	"darwin": {
		"amd64": "osx-x86_64",
		"arm64": "osx-arm64",
	},
}

func onnxLibraryName(goos string) string {
	if goos == "darwin" {
		return "libonnxruntime.dylib"
	}
	return "libonnxruntime.so"
}

func onnxInstallDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "healthkb", "lib")
}

// ONNXLibraryPath returns the ONNX runtime shared library path: the
// ONNX_PATH override when set, otherwise the managed install location.
// Empty means the runtime is not installed.
func ONNXLibraryPath() string {
	if p := os.Getenv("ONNX_PATH"); p != "" {
		return p
	}
	managed := filepath.Join(onnxInstallDir(), onnxLibraryName(runtime.GOOS))
	if _, err := os.Stat(managed); err == nil {
		return managed
	}
	return ""
}

// ONNXRuntimeExists reports whether the ONNX runtime library is available.
func ONNXRuntimeExists() bool {
	return ONNXLibraryPath() != ""
}

// DownloadONNXRuntime fetches the ONNX runtime release for the current
// platform into the managed install directory. An empty version selects
// defaultONNXRuntimeVersion.
func DownloadONNXRuntime(ctx context.Context, version string) error {
	if version == "" {
		version = defaultONNXRuntimeVersion
	}

	archMap, ok := onnxPlatforms[runtime.GOOS]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, runtime.GOOS, runtime.GOARCH)
	}
	platform, ok := archMap[runtime.GOARCH]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, runtime.GOOS, runtime.GOARCH)
	}

	destDir := onnxInstallDir()
	if err := os.MkdirAll(destDir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", destDir, err)
	}

	url := fmt.Sprintf("https://github.com/microsoft/onnxruntime/releases/download/v%s/onnxruntime-%s-%s.tgz",
		version, platform, version)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("downloading ONNX runtime: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	prefix := fmt.Sprintf("onnxruntime-%s-%s/lib/", platform, version)
	return extractONNXLibs(resp.Body, destDir, prefix)
}

// extractONNXLibs copies everything under the archive's lib/ directory
// into destDir, preserving symlinks where the filesystem allows them.
func extractONNXLibs(r io.Reader, destDir, prefix string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		name := strings.TrimPrefix(header.Name, "./")
		if !strings.HasPrefix(name, prefix) || header.Typeflag == tar.TypeDir {
			continue
		}
		destPath := filepath.Join(destDir, filepath.Base(name))

		if header.Typeflag == tar.TypeSymlink {
			os.Remove(destPath)
			// A failed symlink is fine; the real file lands alongside it.
			_ = os.Symlink(header.Linkname, destPath)
			continue
		}

		out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("creating %s: %w", destPath, err)
		}
		if _, err := io.Copy(out, tr); err != nil { //nolint:gosec
			out.Close()
			return fmt.Errorf("extracting %s: %w", destPath, err)
		}
		out.Close()
	}
}
