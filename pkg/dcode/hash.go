// Package dcode implements the content-addressed identity hash used
// throughout the audit model: a fast, not-necessarily-cryptographic hash
// with "good enough" collision resistance, selectable among crc32 and a
// git-blob-compatible SHA-1, plus (in archive.go, pecoff.go and zip.go) the
// format-aware timestamp neutralization that makes the hash stable across
// archive/PE/zip rebuilds differing only in embedded build clocks.
package dcode

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
)

// Algorithm selects the identity-hash function, bound to the
// Identity.Hash property.
type Algorithm int

const (
	UnknownAlgorithm Algorithm = iota
	CRC32
	// GitSHA1 covers both the "sha1" and "git" property spellings: per
	// the original implementation, both prefix the payload with a git
	// blob header ("blob <size>\0") before hashing, so there is only one
	// SHA-1 code path.
	GitSHA1
)

func (a Algorithm) String() string {
	switch a {
	case CRC32:
		return "crc"
	case GitSHA1:
		return "sha1"
	default:
		return "unknown"
	}
}

// ParseAlgorithm parses the Identity.Hash property value, case-insensitive,
// defaulting an empty string to CRC32 (the original tool's historical
// default).
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "crc", "crc32":
		return CRC32, nil
	case "sha1", "git":
		return GitSHA1, nil
	default:
		return UnknownAlgorithm, fmt.Errorf("dcode: unrecognized identity hash algorithm %q", s)
	}
}

// HashBytes computes the identity hash of data under the given algorithm,
// formatted the way callers (ccode/pathcode derivation, dcode itself)
// expect to embed it directly into a CSV field.
func HashBytes(algo Algorithm, data []byte) string {
	if algo == GitSHA1 {
		return gitBlobSHA1(data)
	}
	return crc32Radix36(data)
}

// HashString is HashBytes over a string's bytes, used for hashing command
// lines (ccode) and path concatenations (pathcode).
func HashString(algo Algorithm, s string) string {
	return HashBytes(algo, []byte(s))
}

func crc32Radix36(data []byte) string {
	sum := crc32.ChecksumIEEE(data)
	return strconv.FormatUint(uint64(sum), 36)
}

// gitBlobSHA1 reproduces `git hash-object --stdin`: SHA-1 over the header
// "blob <decimal size>\0" followed by the raw bytes.
func gitBlobSHA1(data []byte) string {
	h := sha1.New()
	header := fmt.Sprintf("blob %d\x00", len(data))
	h.Write([]byte(header))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
