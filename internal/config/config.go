package config

import (
	"bytes"
	"crypto"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Register the digest algorithms selectable through Algorithm.
	_ "crypto/sha256"
	_ "crypto/sha512"

	"github.com/BurntSushi/toml"
	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Config describes the release to install and where to put it.
type Config struct {
	// Tool is the name of the distributed tool, used for the archive directory name.
	Tool string `yaml:"tool" toml:"tool"`
	// Version is the exact release to install.
	Version string `yaml:"version" toml:"version"`
	// URLTemplate is the archive URL; every "{version}" is replaced by Version.
	URLTemplate string `yaml:"url" toml:"url"`
	// Checksum is the hex digest of the archive computed with Algorithm.
	Checksum string `yaml:"checksum" toml:"checksum"`
	// Algorithm names the digest function: "sha256" or "sha512".
	Algorithm string `yaml:"algorithm" toml:"algorithm"`
	// InstallDir is the installation directory, relative to the working directory.
	InstallDir string `yaml:"install_dir" toml:"install_dir"`
	// EntryPoint is the executable inside InstallDir that reports the version.
	EntryPoint string `yaml:"entry_point" toml:"entry_point"`
	// Timeout bounds the whole archive download.
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
	// ProbeTimeout bounds the version query of the installed entry point.
	ProbeTimeout time.Duration `yaml:"probe_timeout" toml:"probe_timeout"`
	// KeepArchive saves the verified tarball next to the installation.
	KeepArchive bool `yaml:"keep_archive" toml:"keep_archive"`
}

const (
	// DefaultConfigFilename is the config file looked up when none is given.
	DefaultConfigFilename = "get-meson.yaml"

	// DefaultTool is the pinned tool name.
	DefaultTool = "meson"
	// DefaultVersion is the pinned release.
	DefaultVersion = "0.56.0"
	// DefaultURLTemplate is where releases are published.
	DefaultURLTemplate = "https://github.com/mesonbuild/meson/releases/download/{version}/meson-{version}.tar.gz"
	// DefaultChecksum is the SHA-256 digest of the DefaultVersion archive.
	DefaultChecksum = "291dd38ff1cd55fcfca8fc985181dd39be0d3e5826e5f0013bf867be40117213"
	// DefaultAlgorithm is the digest function DefaultChecksum was produced with.
	DefaultAlgorithm = "sha256"
	// DefaultInstallDir is the conventional installation directory.
	DefaultInstallDir = "meson-portable"
	// DefaultEntryPoint is the script queried with --version.
	DefaultEntryPoint = "meson.py"

	// DefaultTimeout is the default limit for the archive download.
	DefaultTimeout = 10 * time.Minute
	// DefaultProbeTimeout is the default limit for the version query.
	DefaultProbeTimeout = 10 * time.Second

	// DefaultFilePermissions is the permission used for written config files.
	DefaultFilePermissions = 0o600

	versionPlaceholder = "{version}"
)

var (
	errConfigIsNotSet      = errors.New("configuration is not set")
	errToolRequired        = errors.New("tool must be provided")
	errVersionRequired     = errors.New("version must be provided")
	errURLRequired         = errors.New("url must be provided")
	errChecksumRequired    = errors.New("checksum must be provided")
	errUnsupportedAlgo     = errors.New("unsupported checksum algorithm")
	errBadChecksum         = errors.New("checksum is not a lower-case hex digest")
	errBadURL              = errors.New("url must be an absolute http(s) address")
	errPathOutsideWorkDir  = errors.New("path must be relative and stay inside the working directory")
	errEntryPointRequired  = errors.New("entry point must be provided")
	errInstallDirRequired  = errors.New("install directory must be provided")
	errUnsupportedFileType = errors.New("unsupported config file extension")
)

// Default returns the built-in Meson pin.
func Default() Config {
	return Config{
		Tool:         DefaultTool,
		Version:      DefaultVersion,
		URLTemplate:  DefaultURLTemplate,
		Checksum:     DefaultChecksum,
		Algorithm:    DefaultAlgorithm,
		InstallDir:   DefaultInstallDir,
		EntryPoint:   DefaultEntryPoint,
		Timeout:      DefaultTimeout,
		ProbeTimeout: DefaultProbeTimeout,
	}
}

// Load reads the file at path over the defaults and validates the result.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err = decode(path, contents, &cfg); err != nil {
		return Config{}, err
	}

	if err = Validate(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Save validates cfg and writes it to path, choosing the format by extension.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := encode(path, cfg)
	if err != nil {
		return err
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// Validate checks required fields and formats and fills zero timeouts.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	switch {
	case strings.TrimSpace(cfg.Tool) == "":
		return errToolRequired
	case strings.TrimSpace(cfg.Version) == "":
		return errVersionRequired
	case strings.TrimSpace(cfg.URLTemplate) == "":
		return errURLRequired
	case cfg.Checksum == "":
		return errChecksumRequired
	case cfg.InstallDir == "":
		return errInstallDirRequired
	case cfg.EntryPoint == "":
		return errEntryPointRequired
	}

	if _, err := semver.StrictNewVersion(cfg.Version); err != nil {
		return fmt.Errorf("invalid version %q: %w", cfg.Version, err)
	}

	if err := validateURL(cfg.ArchiveURL()); err != nil {
		return err
	}

	hash, err := cfg.Hash()
	if err != nil {
		return err
	}

	if err = validateChecksum(cfg.Checksum, hash); err != nil {
		return err
	}

	for _, p := range []string{cfg.InstallDir, cfg.EntryPoint} {
		if !filepath.IsLocal(p) {
			return fmt.Errorf("%q: %w", p, errPathOutsideWorkDir)
		}
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}

	return nil
}

// ArchiveURL returns URLTemplate with the version substituted.
func (c Config) ArchiveURL() string {
	return strings.ReplaceAll(c.URLTemplate, versionPlaceholder, c.Version)
}

// ArchiveDir returns the top-level directory expected inside the archive.
func (c Config) ArchiveDir() string {
	return c.Tool + "-" + c.Version
}

// ArchiveFilename returns the name used when the archive is kept on disk.
func (c Config) ArchiveFilename() string {
	return c.ArchiveDir() + ".tar.gz"
}

// EntryPointPath returns the entry point path relative to the working directory.
func (c Config) EntryPointPath() string {
	return filepath.Join(c.InstallDir, c.EntryPoint)
}

// Hash returns the digest function named by Algorithm.
func (c Config) Hash() (crypto.Hash, error) {
	return ParseAlgorithm(c.Algorithm)
}

// WithVersion returns a copy of c pinned to another release.
func (c Config) WithVersion(version, checksum string) Config {
	c.Version = version
	c.Checksum = checksum

	return c
}

// ParseAlgorithm maps an algorithm name to a crypto.Hash. Empty means DefaultAlgorithm.
func ParseAlgorithm(name string) (crypto.Hash, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sha256":
		return crypto.SHA256, nil
	case "sha512":
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("%q: %w", name, errUnsupportedAlgo)
	}
}

func validateURL(raw string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%q: %w", raw, errBadURL)
	}

	return nil
}

func validateChecksum(sum string, hash crypto.Hash) error {
	if len(sum) != hash.Size()*2 {
		return fmt.Errorf("%d characters for %s: %w", len(sum), hash, errBadChecksum)
	}

	for _, r := range sum {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return fmt.Errorf("character %q: %w", r, errBadChecksum)
		}
	}

	return nil
}

func decode(path string, contents []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(contents), cfg); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(contents, cfg); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
	default:
		return fmt.Errorf("%s: %w", path, errUnsupportedFileType)
	}

	return nil
}

func encode(path string, cfg *Config) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("marshal config: %w", err)
		}

		return buf.Bytes(), nil
	case ".yaml", ".yml", "":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshal config: %w", err)
		}

		return data, nil
	default:
		return nil, fmt.Errorf("%s: %w", path, errUnsupportedFileType)
	}
}
