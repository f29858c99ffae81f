// Package gitstore implements the optional local artifact cache used
// when "Git" mode is on: target blobs are stored and retrieved in
// git's own loose-object format, `"blob <size>\0<data>"` zlib-deflated
// under `<dir>/objects/<first2>/<rest38>`, addressed by the same
// git-blob SHA-1 a CA's dcode already computes (pkg/dcode's "git"
// algorithm). This lets a recycled target be fetched from a local
// cache instead of the server whenever the blob was previously stashed
// there. See spec.md §6 "Git blob store (optional artifact cache)".
package gitstore

import (
	"bytes"
	"compress/zlib"
	"crypto/sha1"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store is a git-loose-object-compatible blob cache rooted at dir
// (typically a real `.git` directory, but any writable directory works
// since only the `objects/<aa>/<38 hex>` convention is relied on).
type Store struct {
	dir string
}

// Open returns a Store rooted at dir. The directory is not created here;
// Put creates `objects/<aa>` subdirectories lazily as needed.
func Open(dir string) *Store {
	return &Store{dir: dir}
}

func objectPath(dir, hexSHA string) (string, error) {
	if len(hexSHA) != 40 {
		return "", fmt.Errorf("gitstore: malformed blob id %q", hexSHA)
	}
	return filepath.Join(dir, "objects", hexSHA[:2], hexSHA[2:]), nil
}

// Has reports whether a blob with the given git-blob SHA-1 is present.
func (s *Store) Has(hexSHA string) bool {
	path, err := objectPath(s.dir, hexSHA)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Put stores data under its git-blob SHA-1 (recomputed here rather than
// trusted from the caller, so a mismatched dcode can never corrupt the
// store) and returns that id.
func (s *Store) Put(data []byte) (string, error) {
	header := fmt.Sprintf("blob %d\x00", len(data))
	h := sha1.New()
	h.Write([]byte(header))
	h.Write(data)
	hexSHA := fmt.Sprintf("%x", h.Sum(nil))

	path, err := objectPath(s.dir, hexSHA)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return hexSHA, nil // already present; loose objects are immutable
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("gitstore: mkdir for %s: %w", hexSHA, err)
	}

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write([]byte(header)); err != nil {
		return "", fmt.Errorf("gitstore: deflating %s: %w", hexSHA, err)
	}
	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("gitstore: deflating %s: %w", hexSHA, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gitstore: deflating %s: %w", hexSHA, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o444); err != nil {
		return "", fmt.Errorf("gitstore: writing %s: %w", hexSHA, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("gitstore: finalizing %s: %w", hexSHA, err)
	}
	return hexSHA, nil
}

// Get retrieves and decompresses the blob for hexSHA, returning the raw
// data past the "blob <size>\0" header.
func (s *Store) Get(hexSHA string) ([]byte, error) {
	path, err := objectPath(s.dir, hexSHA)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gitstore: open %s: %w", hexSHA, err)
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("gitstore: inflating %s: %w", hexSHA, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gitstore: reading %s: %w", hexSHA, err)
	}
	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return nil, fmt.Errorf("gitstore: malformed object %s: missing header terminator", hexSHA)
	}
	return raw[nul+1:], nil
}
