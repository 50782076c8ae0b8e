package pinner

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/get-meson/internal/config"
	"github.com/oshokin/get-meson/internal/domain/install"
)

// staticFetcher serves the same bytes for every URL.
type staticFetcher struct {
	data []byte
	url  string
}

// Fetch remembers the URL and returns the data.
func (f *staticFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.url = url

	return f.data, nil
}

// tarball builds a one-file gzip-compressed tarball under top.
func tarball(t *testing.T, top string) []byte {
	t.Helper()

	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	body := []byte("#!/usr/bin/env python3\n")
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     top + "/meson.py",
		Typeflag: tar.TypeReg,
		Mode:     0o755,
		Size:     int64(len(body)),
	}))

	_, err := tw.Write(body)
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}

// TestRun_SavesNewPin writes the new version and its digest.
func TestRun_SavesNewPin(t *testing.T) {
	t.Parallel()

	data := tarball(t, "meson-0.57.1")
	sum := sha256.Sum256(data)
	path := filepath.Join(t.TempDir(), "get-meson.yaml")
	fetcher := &staticFetcher{data: data}

	err := Run(context.Background(), &Options{
		ConfigPath: path,
		Config:     config.Default(),
		Version:    "0.57.1",
		Fetcher:    fetcher,
	})
	require.NoError(t, err)
	require.Equal(t, "https://github.com/mesonbuild/meson/releases/download/0.57.1/meson-0.57.1.tar.gz", fetcher.url)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.57.1", cfg.Version)
	require.Equal(t, hex.EncodeToString(sum[:]), cfg.Checksum)
}

// TestRun_RejectsUnexpectedLayout refuses to pin an archive that would not install.
func TestRun_RejectsUnexpectedLayout(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "get-meson.yaml")

	err := Run(context.Background(), &Options{
		ConfigPath: path,
		Config:     config.Default(),
		Version:    "0.57.1",
		Fetcher:    &staticFetcher{data: tarball(t, "meson")},
	})
	require.ErrorIs(t, err, install.ErrArchiveLayout)
	require.NoFileExists(t, path)
}

// TestRun_RejectsBadVersion fails before any download.
func TestRun_RejectsBadVersion(t *testing.T) {
	t.Parallel()

	fetcher := new(staticFetcher)

	err := Run(context.Background(), &Options{
		ConfigPath: filepath.Join(t.TempDir(), "get-meson.yaml"),
		Config:     config.Default(),
		Version:    "latest",
		Fetcher:    fetcher,
	})
	require.Error(t, err)
	require.Empty(t, fetcher.url)
}
