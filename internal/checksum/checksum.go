package checksum

import (
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"

	// Register the digest algorithms used by the configuration.
	_ "crypto/sha256"
	_ "crypto/sha512"

	"github.com/oshokin/get-meson/internal/domain/install"
)

var errHashUnavailable = errors.New("hash function unavailable")

// Sum returns the lower-case hex digest of data.
func Sum(data []byte, hash crypto.Hash) (string, error) {
	if !hash.Available() {
		return "", fmt.Errorf("%v: %w", hash, errHashUnavailable)
	}

	hasher := hash.New()
	if _, err := hasher.Write(data); err != nil {
		return "", fmt.Errorf("calculate checksum: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Verify reports whether data hashes to expected. The comparison is exact and
// case-sensitive, so the pinned digest must be lower-case hex.
func Verify(data []byte, expected string, hash crypto.Hash) bool {
	actual, err := Sum(data, hash)
	if err != nil {
		return false
	}

	return actual == expected
}

// Check is Verify returning a *install.ChecksumError on mismatch.
func Check(data []byte, expected string, hash crypto.Hash) error {
	actual, err := Sum(data, hash)
	if err != nil {
		return err
	}

	if actual != expected {
		return &install.ChecksumError{Expected: expected, Actual: actual}
	}

	return nil
}

// Decode returns the raw digest bytes of a hex checksum.
func Decode(sum string) ([]byte, error) {
	raw, err := hex.DecodeString(sum)
	if err != nil {
		return nil, fmt.Errorf("decode checksum: %w", err)
	}

	return raw, nil
}
