package dcode

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildArMember(name string, mtime int64, payload []byte) []byte {
	header := fmt.Sprintf("%-16s%-12d%-6d%-6d%-8o%-10d`\n", name, mtime, 0, 0, 0644, len(payload))
	buf := []byte(header)
	buf = append(buf, payload...)
	if len(payload)%2 != 0 {
		buf = append(buf, '\n') // ar padding byte
	}
	return buf
}

func buildAr(members ...[]byte) []byte {
	buf := []byte(arMagic)
	for _, m := range members {
		buf = append(buf, m...)
	}
	return buf
}

func TestIsArchiveDetectsMagic(t *testing.T) {
	data := buildAr(buildArMember("a.o", 1000, []byte("xx")))
	assert.True(t, isArchive(data))
	assert.False(t, isArchive([]byte("not an archive")))
}

func TestNeutralizeArchiveZerosHeaderExceptName(t *testing.T) {
	a := assert.New(t)
	member := buildArMember("hello.o/", 1234567890, []byte("ab"))
	data := buildAr(member)

	require.NoError(t, neutralizeArchive(data))

	off := len(arMagic)
	name := string(data[off : off+arNameSize])
	a.Equal("hello.o/        ", name)
	for i := arNameSize; i < arHeaderSize; i++ {
		a.Equalf(byte(0), data[off+i], "header byte %d should be zeroed", i)
	}
}

func TestNeutralizeArchiveStableAcrossTimestamps(t *testing.T) {
	a := assert.New(t)
	d1 := buildAr(buildArMember("x.o", 1000000000, []byte("payload!")))
	d2 := buildAr(buildArMember("x.o", 2000000000, []byte("payload!")))

	require.NoError(t, neutralizeArchive(d1))
	require.NoError(t, neutralizeArchive(d2))
	a.Equal(d1, d2)
}

func TestNeutralizeImportHeaderZerosVersionAndTimestamp(t *testing.T) {
	a := assert.New(t)
	payload := make([]byte, 20)
	// Machine = IMAGE_FILE_MACHINE_UNKNOWN (0), magic = 0xFFFF.
	payload[0], payload[1] = 0x00, 0x00
	payload[2], payload[3] = 0xFF, 0xFF
	payload[4], payload[5] = 0x34, 0x12   // version, arbitrary non-zero
	payload[8], payload[9] = 0x78, 0x56 // timestamp low bytes, arbitrary non-zero
	payload[10], payload[11] = 0x34, 0x12

	neutralizeImportHeader(payload)
	a.Equal(byte(0), payload[4])
	a.Equal(byte(0), payload[5])
	a.Equal(byte(0), payload[8])
	a.Equal(byte(0), payload[9])
	a.Equal(byte(0), payload[10])
	a.Equal(byte(0), payload[11])
}

func TestNeutralizeArchiveRejectsMalformedSize(t *testing.T) {
	data := buildAr(buildArMember("a.o", 1000, []byte("x")))
	// Corrupt the size field with non-numeric garbage.
	off := len(arMagic) + arSizeOffset
	copy(data[off:off+arSizeLen], "!!!!!!!!!!")
	assert.Error(t, neutralizeArchive(data))
}
