package dcode

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// arMagic is the "!<arch>\n" signature common to Unix ar archives and
// Windows .lib static libraries.
const arMagic = "!<arch>\n"

const (
	arHeaderSize = 60 // name[16] date[12] uid[6] gid[6] mode[8] size[10] fmag[2]
	arNameSize   = 16
	arSizeOffset = 48
	arSizeLen    = 10
)

func isArchive(data []byte) bool {
	return len(data) >= len(arMagic) && string(data[:len(arMagic)]) == arMagic
}

// neutralizeArchive zeros every ar member header field except the name
// (renaming a member changes its semantics and must still affect the
// hash) and recurses into each member's payload, since an archive member
// may itself be a PE/COFF object carrying its own embedded timestamp.
// Grounded on original_source/src/code.c's _code_clear_archive_file.
func neutralizeArchive(data []byte) error {
	off := len(arMagic)
	for off+arHeaderSize <= len(data) {
		sizeField := string(data[off+arSizeOffset : off+arSizeOffset+arSizeLen])
		size, err := strconv.ParseInt(strings.TrimSpace(sizeField), 10, 64)
		if err != nil || size <= 0 {
			return fmt.Errorf("dcode: malformed ar member header")
		}
		if size%2 != 0 {
			size++ // members are padded to an even boundary
		}
		for i := arNameSize; i < arHeaderSize; i++ {
			data[off+i] = 0
		}
		off += arHeaderSize
		if off+int(size) > len(data) {
			return fmt.Errorf("dcode: truncated ar member payload")
		}
		payload := data[off : off+int(size)]
		neutralizeImportHeader(payload)
		if looksLikePECOFF(payload) {
			if err := neutralizePECOFF(payload); err != nil {
				return err
			}
		}
		off += int(size)
	}
	return nil
}

// neutralizeImportHeader detects the Windows COFF import-header sequence
// (IMAGE_FILE_MACHINE_UNKNOWN == 0, followed by the 0xFFFF magic) embedded
// at the start of an archive member and zeros its version and timestamp
// fields, per pecoff.doc section 8 and original_source/src/code.c.
func neutralizeImportHeader(data []byte) {
	if len(data) < 12 {
		return
	}
	if binary.LittleEndian.Uint16(data[0:2]) != 0 || binary.LittleEndian.Uint16(data[2:4]) != 0xFFFF {
		return
	}
	binary.LittleEndian.PutUint16(data[4:6], 0) // version
	binary.LittleEndian.PutUint32(data[8:12], 0) // timestamp
}
