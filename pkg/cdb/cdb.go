// Package cdb implements a read-only decoder for D.J. Bernstein's
// "constant database" format: a 256-bucket on-disk hash table mapping
// byte-string keys (which may repeat) to byte-string values, used
// verbatim by the original tool (via tinycdb, `src/shop.c`) as the
// roadmap's on-wire file format. Nothing here writes a CDB file -- the
// server is the only producer.
package cdb

import (
	"encoding/binary"
	"fmt"
)

const (
	numBuckets   = 256
	headerSize   = numBuckets * 8 // (position uint32, numSlots uint32) per bucket
	slotSize     = 8              // (hash uint32, position uint32)
	recordPrefix = 8              // (klen uint32, vlen uint32)
)

// DB is an opened, fully-buffered CDB file.
type DB struct {
	data      []byte
	dataStart int // offset where linear record data begins (always headerSize)
	dataEnd   int // offset where the first hash table begins
}

// Open parses a CDB file already read into memory. The roadmap files this
// package reads are build-scoped and bounded in size, so the caller is
// expected to have read the whole file (e.g. via os.ReadFile) rather than
// stream it.
func Open(data []byte) (*DB, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("cdb: file too small to hold a header (%d bytes)", len(data))
	}
	db := &DB{data: data, dataStart: headerSize, dataEnd: len(data)}
	// The first hash table's position is the lowest of all 256 table
	// positions (tables are laid out after all records, in bucket order,
	// but some buckets may be empty) -- take the minimum non-zero
	// position, or len(data) if every bucket is empty.
	end := len(data)
	for b := 0; b < numBuckets; b++ {
		pos, numSlots := db.bucketHeader(b)
		if numSlots == 0 {
			continue
		}
		if pos < end {
			end = pos
		}
	}
	db.dataEnd = end
	return db, nil
}

func (db *DB) bucketHeader(bucket int) (pos, numSlots int) {
	off := bucket * 8
	return int(binary.LittleEndian.Uint32(db.data[off : off+4])),
		int(binary.LittleEndian.Uint32(db.data[off+4 : off+8]))
}

// hash implements the exact djb hash tinycdb uses: h = 5381; h = ((h<<5)+h) ^ c.
func hash(key []byte) uint32 {
	h := uint32(5381)
	for _, c := range key {
		h = ((h << 5) + h) ^ uint32(c)
	}
	return h
}

// Find returns the first value stored under key, in insertion order among
// duplicates (tinycdb's cdb_find semantics: the *first* match in probe
// order, which for append-only construction is also the first inserted).
func (db *DB) Find(key string) (string, bool, error) {
	vals, err := db.FindAll(key)
	if err != nil || len(vals) == 0 {
		return "", false, err
	}
	return vals[0], true, nil
}

// FindAll returns every value stored under key, in the order tinycdb's
// cdb_findnext would yield them (hash-chain probe order) -- for records
// inserted without intervening collisions on other keys this coincides
// with insertion order, which is what the roadmap format relies on for
// its "first still-present, evaluated PTX wins" rule.
func (db *DB) FindAll(key string) ([]string, error) {
	kb := []byte(key)
	h := hash(kb)
	bucket := int(h % numBuckets)
	tablePos, numSlots := db.bucketHeader(bucket)
	if numSlots == 0 {
		return nil, nil
	}

	start := int((h >> 8) % uint32(numSlots))
	var values []string
	for i := 0; i < numSlots; i++ {
		slotOff := tablePos + ((start+i)%numSlots)*slotSize
		if slotOff+slotSize > len(db.data) {
			return nil, fmt.Errorf("cdb: corrupt hash table (bucket %d)", bucket)
		}
		slotHash := binary.LittleEndian.Uint32(db.data[slotOff : slotOff+4])
		slotPos := binary.LittleEndian.Uint32(db.data[slotOff+4 : slotOff+8])
		if slotHash == 0 && slotPos == 0 {
			break // empty slot: end of this bucket's chain
		}
		if slotHash != h {
			continue
		}
		k, v, err := db.readRecord(int(slotPos))
		if err != nil {
			return nil, err
		}
		if string(k) == key {
			values = append(values, string(v))
		}
	}
	return values, nil
}

func (db *DB) readRecord(pos int) (key, value []byte, err error) {
	if pos+recordPrefix > len(db.data) {
		return nil, nil, fmt.Errorf("cdb: record header out of range at %d", pos)
	}
	klen := int(binary.LittleEndian.Uint32(db.data[pos : pos+4]))
	vlen := int(binary.LittleEndian.Uint32(db.data[pos+4 : pos+8]))
	keyStart := pos + recordPrefix
	valStart := keyStart + klen
	if valStart+vlen > len(db.data) {
		return nil, nil, fmt.Errorf("cdb: record body out of range at %d", pos)
	}
	return db.data[keyStart:valStart], db.data[valStart : valStart+vlen], nil
}

// Each walks every key/value pair in insertion order (the order records
// were appended, which is also tinycdb's cdb_seqnext order), stopping
// early if visit returns false. Used to mirror a roadmap wholesale into
// the local debug cache (Leave.Roadmap).
func (db *DB) Each(visit func(key, value string) bool) error {
	pos := db.dataStart
	for pos < db.dataEnd {
		k, v, err := db.readRecord(pos)
		if err != nil {
			return err
		}
		if !visit(string(k), string(v)) {
			return nil
		}
		pos += recordPrefix + len(k) + len(v)
	}
	return nil
}
