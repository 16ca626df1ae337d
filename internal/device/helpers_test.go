package device

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/hotload-labs/hotload/internal/hotload"
)

// buildZip packs files (name to contents) into a zip archive.
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, contents := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(contents))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// serveFiles serves payloads by path with an explicit Content-Length.
func serveFiles(t *testing.T, payloads map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := payloads[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openDevice(t *testing.T, dir string, mutate ...func(*Options)) *Device {
	t.Helper()
	opts := Options{
		AppVersion:    "1.0.0",
		DeploymentKey: "prod-key",
		ServerURL:     "http://release.test/",
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	d, err := Open(dir, opts)
	require.NoError(t, err)
	return d
}

func remotePackage(url, hash, label string) *hotload.RemotePackage {
	return &hotload.RemotePackage{
		PackageInfo: hotload.PackageInfo{
			AppVersion:    "1.0.0",
			DeploymentKey: "prod-key",
			Label:         label,
			PackageHash:   hash,
		},
		DownloadURL: url,
	}
}

// installPackage downloads and installs a zip update with one bundle file.
func installPackage(t *testing.T, d *Device, hash, label string, mode hotload.InstallMode) {
	t.Helper()
	srv := serveFiles(t, map[string][]byte{
		"/" + hash + ".zip": buildZip(t, map[string]string{"index.bundle": "bundle " + label}),
	})
	ctx := context.Background()
	local, err := d.DownloadUpdate(ctx, remotePackage(srv.URL+"/"+hash+".zip", hash, label))
	require.NoError(t, err)
	require.NoError(t, d.InstallUpdate(ctx, local, mode, 0))
}

func readFile(t *testing.T, path ...string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(path...))
	require.NoError(t, err)
	return string(data)
}
