package config

import (
	"crypto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestDefaultIsValid guards the built-in pin.
func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, Validate(&cfg))
	require.Equal(t, "https://github.com/mesonbuild/meson/releases/download/0.56.0/meson-0.56.0.tar.gz", cfg.ArchiveURL())
	require.Equal(t, "meson-0.56.0", cfg.ArchiveDir())
	require.Equal(t, filepath.Join("meson-portable", "meson.py"), cfg.EntryPointPath())

	hash, err := cfg.Hash()
	require.NoError(t, err)
	require.Equal(t, crypto.SHA256, hash)
}

// TestValidate checks required fields and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	cases := map[string]func(*Config){
		"missing tool":        func(c *Config) { c.Tool = "" },
		"missing version":     func(c *Config) { c.Version = "" },
		"non semver version":  func(c *Config) { c.Version = "latest" },
		"relative url":        func(c *Config) { c.URLTemplate = "/meson.tar.gz" },
		"ftp url":             func(c *Config) { c.URLTemplate = "ftp://example.com/meson.tar.gz" },
		"short checksum":      func(c *Config) { c.Checksum = "abc" },
		"non hex checksum":    func(c *Config) { c.Checksum = strings.Repeat("z", 64) },
		"upper case checksum": func(c *Config) { c.Checksum = strings.ToUpper(DefaultChecksum) },
		"sha512 length":       func(c *Config) { c.Algorithm = "sha512" },
		"unknown algorithm":   func(c *Config) { c.Algorithm = "md5" },
		"absolute install":    func(c *Config) { c.InstallDir = "/opt/meson" },
		"escaping entrypoint": func(c *Config) { c.EntryPoint = "../meson.py" },
		"missing entrypoint":  func(c *Config) { c.EntryPoint = "" },
	}

	for name, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		require.Error(t, Validate(&cfg), name)
	}

	// Zero timeouts are filled in.
	cfg := Default()
	cfg.Timeout = 0
	cfg.ProbeTimeout = 0
	require.NoError(t, Validate(&cfg))
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, DefaultProbeTimeout, cfg.ProbeTimeout)

	// A SHA-512 pin needs a 128 character digest.
	cfg = Default()
	cfg.Algorithm = "sha512"
	cfg.Checksum = strings.Repeat("ab", 64)
	require.NoError(t, Validate(&cfg))
}

// TestSaveLoadRoundtrip ensures both formats persist and load back.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"get-meson.yaml", "get-meson.toml"} {
		path := filepath.Join(t.TempDir(), name)

		want := Default().WithVersion("0.57.1", strings.Repeat("0", 64))
		want.KeepArchive = true
		want.Timeout = 2 * time.Minute

		require.NoError(t, Save(path, &want))

		got, err := Load(path)
		require.NoError(t, err, name)
		require.Equal(t, want, got, name)
	}
}

// TestLoadOverlaysDefaults checks that a partial file keeps the other defaults.
func TestLoadOverlaysDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("install_dir: tools/meson\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, filepath.Join("tools", "meson"), filepath.Clean(cfg.InstallDir))
	require.Equal(t, DefaultVersion, cfg.Version)
	require.Equal(t, DefaultChecksum, cfg.Checksum)
}

// TestLoadOrDefault distinguishes a missing file from a broken one.
func TestLoadOrDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := LoadOrDefault(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("version: [\n"), 0o600))

	_, err = LoadOrDefault(broken)
	require.Error(t, err)

	_, err = Load(filepath.Join(dir, "settings.ini"))
	require.Error(t, err)
}
