package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// ChecksumKey is the metadata key holding the hex SHA-256 of the data section.
// Files written by this package always carry it; files without it are read
// unverified.
const ChecksumKey = "sha256"

// ComputeChecksumReader computes the SHA-256 checksum of everything read from r.
func ComputeChecksumReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ValidateChecksum compares a computed checksum against the stored one.
// Returns ErrChecksumMismatch if they don't match.
func ValidateChecksum(computed, stored string) error {
	if computed != stored {
		return ErrChecksumMismatch
	}
	return nil
}
