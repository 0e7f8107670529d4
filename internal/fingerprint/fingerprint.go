// Package fingerprint computes the content fingerprint used as the
// deduplication identity key: two submissions with identical bytes
// always map to the same fingerprint regardless of filename or
// submitter.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint is the lowercase hex SHA-256 digest of a document's bytes.
type Fingerprint string

// Compute returns the fingerprint of the given document bytes.
func Compute(data []byte) Fingerprint {
	sum := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// String returns the fingerprint as a plain string.
func (f Fingerprint) String() string {
	return string(f)
}

// Valid reports whether the value is a lowercase SHA-256 hex digest.
// Lookups compare fingerprints byte for byte, so the uppercase form of
// a valid digest is not accepted.
func (f Fingerprint) Valid() bool {
	if len(f) != sha256.Size*2 {
		return false
	}
	for _, c := range f {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
