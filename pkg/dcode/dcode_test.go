package dcode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBytesPlainDataMatchesHashBytes(t *testing.T) {
	data := []byte("#include <stdio.h>\nint main(void) { return 0; }\n")
	got, err := ComputeBytes(data, CRC32)
	require.NoError(t, err)
	assert.Equal(t, HashBytes(CRC32, data), got)
}

func TestComputeBytesArchiveIgnoresEmbeddedTimestamp(t *testing.T) {
	a := assert.New(t)
	d1 := buildAr(buildArMember("a.o", 1000000000, []byte("object-bytes")))
	d2 := buildAr(buildArMember("a.o", 2000000000, []byte("object-bytes")))

	h1, err := ComputeBytes(d1, CRC32)
	require.NoError(t, err)
	h2, err := ComputeBytes(d2, CRC32)
	require.NoError(t, err)
	a.Equal(h1, h2)
}

func TestComputeBytesDoesNotMutateCallersBuffer(t *testing.T) {
	data := buildAr(buildArMember("a.o", 42, []byte("xx")))
	original := append([]byte{}, data...)
	_, err := ComputeBytes(data, CRC32)
	require.NoError(t, err)
	assert.Equal(t, original, data)
}

func TestComputeSmallFileReadsWholeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	got, err := Compute(path, CRC32, defaultMmapThreshold)
	require.NoError(t, err)
	assert.Equal(t, HashBytes(CRC32, []byte("hello world")), got)
}

func TestComputeOverThresholdNonContainerFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	payload := make([]byte, 100)
	for i := range payload {
		payload[i] = 'a'
	}
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	// Force the mmap path with a threshold below the file size.
	got, err := Compute(path, CRC32, 10)
	require.NoError(t, err)
	assert.Equal(t, HashBytes(CRC32, payload), got)
}

func TestSniffRecognizesKnownContainers(t *testing.T) {
	dir := t.TempDir()
	arPath := filepath.Join(dir, "lib.a")
	require.NoError(t, os.WriteFile(arPath, buildAr(buildArMember("a.o", 1, []byte("xx"))), 0o644))
	kind, err := Sniff(arPath)
	require.NoError(t, err)
	assert.Equal(t, "ar", kind)

	textPath := filepath.Join(dir, "a.c")
	require.NoError(t, os.WriteFile(textPath, []byte("int main(){}"), 0o644))
	kind, err = Sniff(textPath)
	require.NoError(t, err)
	assert.Equal(t, "unknown", kind)
}
