package dcode

import "fmt"

// Compute returns the identity hash (dcode) of the file at path: the
// content is read (via readPayload's mmap-or-heap policy), any
// recognized container format is neutralized in a private copy so the
// embedded build timestamp never perturbs the hash, and the result is
// hashed under algo. Grounded on original_source/src/code.c's
// code_from_path, the top-level entry point this function replaces.
func Compute(path string, algo Algorithm, mmapThreshold int64) (string, error) {
	buf, err := readPayload(path, mmapThreshold)
	if err != nil {
		return "", err
	}
	if err := neutralize(buf); err != nil {
		return "", fmt.Errorf("dcode: neutralizing %s: %w", path, err)
	}
	return HashBytes(algo, buf), nil
}

// ComputeBytes hashes an in-memory buffer the same way Compute hashes a
// file, neutralizing a private copy so the caller's buffer is untouched.
// Used for small, already-in-memory payloads (e.g. a generated manifest)
// where no file round-trip is worth paying for.
func ComputeBytes(data []byte, algo Algorithm) (string, error) {
	buf := make([]byte, len(data))
	copy(buf, data)
	if err := neutralize(buf); err != nil {
		return "", fmt.Errorf("dcode: neutralizing buffer: %w", err)
	}
	return HashBytes(algo, buf), nil
}

// neutralize dispatches buf to whichever format-specific timestamp
// scrubber applies, in-place. A buffer that matches none of the known
// container signatures is left untouched -- the common case for the
// source files and plain text a build reads far more often than it reads
// archives or object code.
func neutralize(buf []byte) error {
	switch {
	case isArchive(buf):
		return neutralizeArchive(buf)
	case isZip(buf):
		return neutralizeZip(buf)
	case looksLikePECOFF(buf):
		return neutralizePECOFF(buf)
	default:
		return nil
	}
}
