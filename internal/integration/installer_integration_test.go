package integration

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/get-meson/internal/config"
	"github.com/oshokin/get-meson/internal/domain/install"
	"github.com/oshokin/get-meson/internal/probe"
	"github.com/oshokin/get-meson/internal/service/installer"
	"github.com/oshokin/get-meson/internal/service/pinner"
)

// release builds a tarball whose meson.py is a shell script printing version.
func release(t *testing.T, version string) []byte {
	t.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	top := "meson-" + version

	script := []byte("#!/bin/sh\necho " + version + "\n")

	require.NoError(t, tw.WriteHeader(&tar.Header{Name: top + "/", Typeflag: tar.TypeDir, Mode: 0o755}))
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     top + "/meson.py",
		Typeflag: tar.TypeReg,
		Mode:     0o755,
		Size:     int64(len(script)),
	}))

	_, err := tw.Write(script)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

// releaseServer serves archives by version and counts requests.
func releaseServer(t *testing.T, archives map[string][]byte) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/download/{version}/{file}", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		data, ok := archives[r.PathValue("version")]
		if !ok || r.PathValue("file") != "meson-"+r.PathValue("version")+".tar.gz" {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write(data)
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return ts, &hits
}

func skipWithoutShell(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("the release entry point is a shell script")
	}
}

// TestInstaller_EndToEnd installs over HTTP, then finds the installation on the second run.
func TestInstaller_EndToEnd(t *testing.T) {
	skipWithoutShell(t)

	data := release(t, "0.57.1")
	sum := sha256.Sum256(data)
	ts, hits := releaseServer(t, map[string][]byte{"0.57.1": data})
	workDir := t.TempDir()

	cfg := config.Default().WithVersion("0.57.1", hex.EncodeToString(sum[:]))
	cfg.URLTemplate = ts.URL + "/download/{version}/meson-{version}.tar.gz"

	// A dry run reports the pending installation without any request.
	err := installer.Run(context.Background(), &installer.Options{Config: cfg, DryRun: true, WorkDir: workDir})
	require.ErrorIs(t, err, install.ErrInstallRequired)
	require.Zero(t, hits.Load())

	require.NoError(t, installer.Run(context.Background(), &installer.Options{Config: cfg, WorkDir: workDir}))
	require.EqualValues(t, 1, hits.Load())

	version, found, err := probe.NewExecProbe(filepath.Join(workDir, cfg.EntryPointPath())).Probe(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "0.57.1", version)

	// The second run is a no-op, dry or not.
	require.NoError(t, installer.Run(context.Background(), &installer.Options{Config: cfg, WorkDir: workDir}))
	require.NoError(t, installer.Run(context.Background(), &installer.Options{Config: cfg, DryRun: true, WorkDir: workDir}))
	require.EqualValues(t, 1, hits.Load())
}

// TestInstaller_RemoteFailure surfaces the HTTP status and leaves nothing behind.
func TestInstaller_RemoteFailure(t *testing.T) {
	ts, hits := releaseServer(t, nil)
	workDir := t.TempDir()

	cfg := config.Default()
	cfg.URLTemplate = ts.URL + "/download/{version}/meson-{version}.tar.gz"

	err := installer.Run(context.Background(), &installer.Options{Config: cfg, WorkDir: workDir})
	require.ErrorIs(t, err, install.ErrRemoteFetch)
	require.Contains(t, err.Error(), "404")
	require.EqualValues(t, 1, hits.Load())
	require.NoDirExists(t, filepath.Join(workDir, cfg.InstallDir))
}

// TestPinThenInstall pins a new release and installs it from the written file.
func TestPinThenInstall(t *testing.T) {
	skipWithoutShell(t)

	ts, hits := releaseServer(t, map[string][]byte{
		"0.56.0": release(t, "0.56.0"),
		"0.57.1": release(t, "0.57.1"),
	})

	workDir := t.TempDir()
	cfgPath := filepath.Join(workDir, "get-meson.toml")

	base := config.Default()
	base.URLTemplate = ts.URL + "/download/{version}/meson-{version}.tar.gz"

	require.NoError(t, pinner.Run(context.Background(), &pinner.Options{
		ConfigPath: cfgPath,
		Config:     base,
		Version:    "0.57.1",
	}))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	require.Equal(t, "0.57.1", cfg.Version)

	require.NoError(t, installer.Run(context.Background(), &installer.Options{Config: cfg, WorkDir: workDir}))
	require.EqualValues(t, 2, hits.Load())

	version, _, err := probe.NewExecProbe(filepath.Join(workDir, cfg.EntryPointPath())).Probe(context.Background())
	require.NoError(t, err)
	require.Equal(t, "0.57.1", version)
}
