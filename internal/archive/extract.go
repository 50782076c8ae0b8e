package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/oshokin/get-meson/internal/domain/install"
	"github.com/oshokin/get-meson/internal/logger"
)

// defaultDirMode is used for parent directories missing from the archive.
const defaultDirMode os.FileMode = 0o755

var (
	errIllegalPath = errors.New("illegal path in archive")
	errEmpty       = errors.New("archive is empty")
)

// Extract unpacks the gzip-compressed tarball data into destDir and returns the
// path of the extracted top-level directory. The first entry must be named
// expectedTop, otherwise an *install.LayoutError is returned before anything is
// written. Every write goes through an os.Root opened on destDir.
func Extract(ctx context.Context, data []byte, destDir, expectedTop string) (string, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("gzip reader: %w", err)
	}

	defer func() {
		_ = gz.Close()
	}()

	root, err := os.OpenRoot(destDir)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", destDir, err)
	}

	defer func() {
		_ = root.Close()
	}()

	tr := tar.NewReader(gz)
	checked := false

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}

		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("read archive: %w", err)
		}

		if header.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		name, top := normalizeName(header.Name)
		if top != expectedTop {
			return "", &install.LayoutError{Expected: expectedTop, Actual: top}
		}

		checked = true

		if err = extractEntry(ctx, root, tr, header, name, top); err != nil {
			return "", err
		}
	}

	if !checked {
		return "", errEmpty
	}

	if err = root.MkdirAll(expectedTop, defaultDirMode); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", expectedTop, err)
	}

	return filepath.Join(destDir, expectedTop), nil
}

// TopLevel returns the top-level name of the first entry of a gzip-compressed tarball.
func TopLevel(data []byte) (string, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("gzip reader: %w", err)
	}

	defer func() {
		_ = gz.Close()
	}()

	tr := tar.NewReader(gz)

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return "", errEmpty
		}

		if err != nil {
			return "", fmt.Errorf("read archive: %w", err)
		}

		if header.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		_, top := normalizeName(header.Name)

		return top, nil
	}
}

func extractEntry(ctx context.Context, root *os.Root, tr *tar.Reader, header *tar.Header, name, top string) error {
	if err := ensureRealParent(root, name); err != nil {
		return err
	}

	target := filepath.FromSlash(name)
	mode := header.FileInfo().Mode().Perm()

	switch header.Typeflag {
	case tar.TypeDir:
		if err := root.MkdirAll(target, mode|0o700); err != nil {
			return fmt.Errorf("mkdir %s: %w", name, err)
		}
	case tar.TypeReg:
		return writeFile(root, tr, target, mode)
	case tar.TypeSymlink:
		if name == top {
			return fmt.Errorf("%s -> %s: %w", name, header.Linkname, errIllegalPath)
		}

		if err := checkLinkTarget(name, header.Linkname); err != nil {
			return err
		}

		if err := root.MkdirAll(filepath.Dir(target), defaultDirMode); err != nil {
			return fmt.Errorf("mkdir for symlink %s: %w", name, err)
		}

		if err := root.Symlink(header.Linkname, target); err != nil {
			return fmt.Errorf("symlink %s: %w", name, err)
		}
	case tar.TypeLink:
		source, sourceTop := normalizeName(header.Linkname)
		if sourceTop != top {
			return fmt.Errorf("%s => %s: %w", name, header.Linkname, errIllegalPath)
		}

		if err := ensureRealParent(root, source); err != nil {
			return err
		}

		if err := root.MkdirAll(filepath.Dir(target), defaultDirMode); err != nil {
			return fmt.Errorf("mkdir for hard link %s: %w", name, err)
		}

		if err := root.Link(filepath.FromSlash(source), target); err != nil {
			return fmt.Errorf("hard link %s: %w", name, err)
		}
	default:
		logger.WarnKV(ctx, "Skipping unsupported archive entry", "name", header.Name, "type", string(header.Typeflag))
	}

	return nil
}

func writeFile(root *os.Root, r io.Reader, target string, mode os.FileMode) error {
	if err := root.MkdirAll(filepath.Dir(target), defaultDirMode); err != nil {
		return fmt.Errorf("mkdir for file %s: %w", target, err)
	}

	f, err := root.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}

	//nolint:gosec // The archive digest was verified before extraction.
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()

		return fmt.Errorf("copy file %s: %w", target, err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("close file %s: %w", target, err)
	}

	return nil
}

// normalizeName cleans an archive path and returns it with its first component.
func normalizeName(name string) (string, string) {
	clean := strings.TrimPrefix(path.Clean("/"+name), "/")
	top, _, _ := strings.Cut(clean, "/")

	return clean, top
}

// ensureRealParent fails when a directory above name was extracted as a symlink,
// so that the lexical path of every entry is also its real location.
func ensureRealParent(root *os.Root, name string) error {
	dir := path.Dir(name)
	if dir == "." {
		return nil
	}

	parts := strings.Split(dir, "/")

	for i := range parts {
		prefix := path.Join(parts[:i+1]...)

		info, err := root.Lstat(filepath.FromSlash(prefix))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil
		case err != nil:
			return fmt.Errorf("stat %s: %w", prefix, err)
		case info.Mode()&fs.ModeSymlink != 0:
			return fmt.Errorf("%s is under symlink %s: %w", name, prefix, errIllegalPath)
		}
	}

	return nil
}

// checkLinkTarget accepts relative targets made of leading ".." steps followed by
// plain names, which never leave the top-level directory of name.
// Such a target cannot climb through another symlink, whatever order the
// entries come in.
func checkLinkTarget(name, linkname string) error {
	slashed := filepath.ToSlash(linkname)
	if slashed == "" || path.IsAbs(slashed) || filepath.IsAbs(linkname) || filepath.VolumeName(linkname) != "" {
		return fmt.Errorf("%s -> %s: %w", name, linkname, errIllegalPath)
	}

	current := path.Dir(name)
	descended := false

	for _, part := range strings.Split(slashed, "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			if descended || !strings.Contains(current, "/") {
				return fmt.Errorf("%s -> %s: %w", name, linkname, errIllegalPath)
			}

			current = path.Dir(current)
		default:
			descended = true
			current = path.Join(current, part)
		}
	}

	return nil
}
