package dcode

import (
	"encoding/binary"
	"fmt"
)

// Zip record signatures and field layouts, from
// original_source/src/Zip/zipfmt.h.
const (
	zipLocalFileHeaderSig     = 0x04034b50
	zipDataDescriptorSig      = 0x08074b50
	zipArchiveExtraDataSig    = 0x08064b50
	zipCentralDirFileSig      = 0x02014b50
	zipCentralDirSignatureSig = 0x05054b50
	zipEndCDZip64Sig          = 0x06064b50
	zipEndCDLocatorZip64Sig   = 0x07064b50
	zipEndCDSig               = 0x06054b50

	zipExtraID64 = 0x0001 // zip64 extended information
	zipExtraIDUT = 0x5455 // UT extended timestamp

	localHeaderFixedSize = 30
	cdFileFixedSize      = 46

	zipStreamingDescriptorFlag = 0x0008
)

func isZip(data []byte) bool {
	return len(data) >= localHeaderFixedSize+4 && readU32(data, 0) == zipLocalFileHeaderSig
}

func readU32(data []byte, off int) uint32 { return binary.LittleEndian.Uint32(data[off : off+4]) }
func readU16(data []byte, off int) uint16 { return binary.LittleEndian.Uint16(data[off : off+2]) }

func zero16(data []byte, off int) { data[off], data[off+1] = 0, 0 }
func zero32(data []byte, off int) {
	for i := 0; i < 4; i++ {
		data[off+i] = 0
	}
}

// neutralizeZip walks a zip archive's local file headers, extra fields,
// optional streaming data descriptors, and central directory, zeroing
// every mtime/mdate/extended-timestamp byte while leaving sizes, CRCs,
// offsets, and names untouched. Grounded on
// original_source/src/code.c's _code_clear_zip_file, which walks the
// archive in exactly this order and requires the walk to land exactly on
// size_left == 0 at the end.
func neutralizeZip(data []byte) error {
	off := 0
	for off+4 <= len(data) && readU32(data, off) == zipLocalFileHeaderSig {
		n, err := clearLocalFileHeader(data, off)
		if err != nil {
			return err
		}
		off = n
	}

	if off+4 <= len(data) && readU32(data, off) == zipArchiveExtraDataSig {
		if off+8 > len(data) {
			return fmt.Errorf("dcode: truncated zip archive extra data record")
		}
		off += 8 + int(readU32(data, off+4))
	}

	for off+4 <= len(data) && readU32(data, off) == zipCentralDirFileSig {
		n, err := clearCentralDirFile(data, off)
		if err != nil {
			return err
		}
		off = n
	}

	if off+4 <= len(data) && readU32(data, off) == zipCentralDirSignatureSig {
		if off+6 > len(data) {
			return fmt.Errorf("dcode: truncated zip central directory signature record")
		}
		off += 6 + int(readU16(data, off+4))
	}

	if off+4 <= len(data) && readU32(data, off) == zipEndCDZip64Sig {
		if off+12 > len(data) {
			return fmt.Errorf("dcode: truncated zip64 end-of-central-directory record")
		}
		size := binary.LittleEndian.Uint64(data[off+4 : off+12])
		off += 12 + int(size)
	}

	if off+4 <= len(data) && readU32(data, off) == zipEndCDLocatorZip64Sig {
		off += 20
	}

	if off+4 > len(data) || readU32(data, off) != zipEndCDSig {
		return fmt.Errorf("dcode: missing zip end-of-central-directory record")
	}
	if off+22 > len(data) {
		return fmt.Errorf("dcode: truncated zip end-of-central-directory record")
	}
	off += 22 + int(readU16(data, off+20))

	if off != len(data) {
		return fmt.Errorf("dcode: %d trailing bytes after zip end-of-central-directory record", len(data)-off)
	}
	return nil
}

// clearLocalFileHeader zeros a local file header's mtime/mdate and its
// extra-field timestamps, then returns the offset of whatever follows --
// the raw compressed payload for a normal entry, or (for a streaming
// entry written with the size-unknown-at-open-time flag) the offset past
// the trailing data descriptor.
func clearLocalFileHeader(data []byte, off int) (int, error) {
	if off+localHeaderFixedSize > len(data) {
		return 0, fmt.Errorf("dcode: truncated zip local file header")
	}
	flags := readU16(data, off+6)
	zero16(data, off+10) // mtime
	zero16(data, off+12) // mdate
	nameLen := int(readU16(data, off+26))
	extraLen := int(readU16(data, off+28))

	pos := off + localHeaderFixedSize + nameLen
	if pos+extraLen > len(data) {
		return 0, fmt.Errorf("dcode: truncated zip local file header extra field")
	}
	isZip64, err := clearExtraFields(data, pos, extraLen)
	if err != nil {
		return 0, err
	}
	pos += extraLen

	if flags&zipStreamingDescriptorFlag == 0 {
		pos += int(readU32(data, off+18)) // compressed_size
		return pos, nil
	}

	descOff, err := findDataDescriptor(data, pos)
	if err != nil {
		return 0, err
	}
	pos = descOff + 4 // past the 0x08074b50 signature
	if isZip64 {
		pos += 20 // crc32[4] + compressed_size[8] + uncompressed_size[8]
	} else {
		pos += 12 // crc32[4] + compressed_size[4] + uncompressed_size[4]
	}
	return pos, nil
}

// findDataDescriptor scans forward for the optional data-descriptor
// signature that precedes a streaming entry's trailing crc/size record.
func findDataDescriptor(data []byte, from int) (int, error) {
	for i := from; i+4 <= len(data); i++ {
		if readU32(data, i) == zipDataDescriptorSig {
			return i, nil
		}
	}
	return 0, fmt.Errorf("dcode: streaming zip entry missing data descriptor signature")
}

// clearCentralDirFile zeros a central directory entry's mtime/mdate and
// its extra-field timestamps, returning the offset of the next record.
func clearCentralDirFile(data []byte, off int) (int, error) {
	if off+cdFileFixedSize > len(data) {
		return 0, fmt.Errorf("dcode: truncated zip central directory file header")
	}
	zero16(data, off+12) // mtime
	zero16(data, off+14) // mdate
	nameLen := int(readU16(data, off+28))
	extraLen := int(readU16(data, off+30))
	commentLen := int(readU16(data, off+32))

	pos := off + cdFileFixedSize + nameLen
	if pos+extraLen > len(data) {
		return 0, fmt.Errorf("dcode: truncated zip central directory extra field")
	}
	if _, err := clearExtraFields(data, pos, extraLen); err != nil {
		return 0, err
	}
	pos += extraLen + commentLen
	return pos, nil
}

// clearExtraFields walks an id/size/data extra-field block, zeroing the
// mtime/atime/ctime of every UT extended-timestamp record (each only when
// its presence flag bit is set). A zip64 record is left untouched; its
// presence is reported so that clearLocalFileHeader sizes a streaming
// entry's data descriptor with 8-byte sizes. The zip64 record's sizes are
// not read: the compressed size skipped is always the local header's
// 32-bit field.
func clearExtraFields(data []byte, pos, length int) (isZip64 bool, err error) {
	end := pos + length
	for pos+4 <= end {
		id := readU16(data, pos)
		size := int(readU16(data, pos+2))
		fieldStart := pos + 4
		if fieldStart+size > end {
			return false, fmt.Errorf("dcode: truncated zip extra field")
		}
		switch id {
		case zipExtraID64:
			isZip64 = true
		case zipExtraIDUT:
			if size >= 1 {
				flags := data[fieldStart]
				n := fieldStart + 1
				for _, bit := range [3]byte{0x01, 0x02, 0x04} {
					if flags&bit != 0 && n+4 <= fieldStart+size {
						zero32(data, n)
						n += 4
					}
				}
			}
		}
		pos = fieldStart + size
	}
	return isZip64, nil
}
