package dcode

import "encoding/binary"

const (
	imageDOSSignature       = 0x5A4D // "MZ"
	imageNTSignatureOffset  = 0x3C   // e_lfanew
	imageMachineI386        = 0x014C
	imageMachineAMD64       = 0x8664
	imageMachineARM64       = 0xAA64
	imageMachineUnknown     = 0x0000
	coffFileHeaderSize      = 20
	coffTimeDateStampOffset = 4 // within IMAGE_FILE_HEADER
)

// looksLikePECOFF reports whether data opens with either a DOS/PE stub or
// a bare COFF object's IMAGE_FILE_HEADER, per
// original_source/src/code.c's _code_is_PE_file.
func looksLikePECOFF(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	if binary.LittleEndian.Uint16(data[0:2]) == imageDOSSignature {
		return true
	}
	if len(data) < coffFileHeaderSize {
		return false
	}
	switch binary.LittleEndian.Uint16(data[0:2]) {
	case imageMachineI386, imageMachineAMD64, imageMachineARM64:
		return true
	default:
		return false
	}
}

// neutralizePECOFF zeros the TimeDateStamp field of a COFF object's
// IMAGE_FILE_HEADER, walking through the DOS stub and PE signature first
// when present. This collapses the original's separate Windows/Unix
// unstamp_mapped_file implementations into one function operating on an
// in-memory buffer, per SPEC_FULL.md §5.2.
func neutralizePECOFF(data []byte) error {
	coffOffset := 0
	if len(data) >= 2 && binary.LittleEndian.Uint16(data[0:2]) == imageDOSSignature {
		if len(data) < imageNTSignatureOffset+4 {
			return nil // truncated DOS stub, nothing more we can safely touch
		}
		peOffset := int(binary.LittleEndian.Uint32(data[imageNTSignatureOffset : imageNTSignatureOffset+4]))
		if peOffset <= 0 || peOffset+4+coffFileHeaderSize > len(data) {
			return nil
		}
		// "PE\0\0" signature immediately precedes IMAGE_FILE_HEADER.
		if data[peOffset] != 'P' || data[peOffset+1] != 'E' || data[peOffset+2] != 0 || data[peOffset+3] != 0 {
			return nil
		}
		coffOffset = peOffset + 4
	}
	if coffOffset+coffFileHeaderSize > len(data) {
		return nil
	}
	binary.LittleEndian.PutUint32(data[coffOffset+coffTimeDateStampOffset:coffOffset+coffTimeDateStampOffset+4], 0)
	return nil
}
