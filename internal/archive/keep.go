package archive

import (
	"bytes"
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goupdate "github.com/doitdistributed/go-update"
)

// archiveFileMode is the permission of a kept archive.
const archiveFileMode os.FileMode = 0o644

// SaveArchive atomically writes data to path. go-update verifies data against
// checksum with hash before the previous file is replaced.
func SaveArchive(path string, data, checksum []byte, hash crypto.Hash) error {
	path = filepath.Clean(path)

	created := false

	// go-update renames the old target away first, so it has to exist.
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		f, createErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, archiveFileMode)
		if createErr != nil {
			return fmt.Errorf("create %s: %w", path, createErr)
		}

		_ = f.Close()
		created = true
	}

	options := goupdate.Options{
		TargetPath: path,
		TargetMode: archiveFileMode,
		Checksum:   checksum,
		Hash:       hash,
	}

	if err := goupdate.Apply(bytes.NewReader(data), options); err != nil {
		if created {
			_ = os.Remove(path)
		}

		return fmt.Errorf("save archive %s: %w", path, err)
	}

	return nil
}
