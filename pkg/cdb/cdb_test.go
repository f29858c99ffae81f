package cdb

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildCDB assembles a minimal, correct CDB file from an ordered list of
// key/value pairs (duplicates allowed), for use as a test fixture. This
// mirrors tinycdb's on-disk layout: header (256 * 8 bytes), then records
// in insertion order, then one hash table per non-empty bucket.
func buildCDB(t *testing.T, pairs [][2]string) []byte {
	t.Helper()

	records := make([]byte, 0, 256)
	recordPos := make([]int, len(pairs))
	recordHash := make([]uint32, len(pairs))
	pos := headerSize
	for i, kv := range pairs {
		k, v := []byte(kv[0]), []byte(kv[1])
		recordPos[i] = pos
		recordHash[i] = hash(k)
		var prefix [8]byte
		binary.LittleEndian.PutUint32(prefix[0:4], uint32(len(k)))
		binary.LittleEndian.PutUint32(prefix[4:8], uint32(len(v)))
		records = append(records, prefix[:]...)
		records = append(records, k...)
		records = append(records, v...)
		pos += 8 + len(k) + len(v)
	}

	buckets := make([][]int, numBuckets) // indices into pairs, per bucket
	for i := range pairs {
		b := int(recordHash[i] % numBuckets)
		buckets[b] = append(buckets[b], i)
	}

	header := make([]byte, headerSize)
	var tables []byte
	tableBase := headerSize + len(records)
	for b := 0; b < numBuckets; b++ {
		entries := buckets[b]
		if len(entries) == 0 {
			continue
		}
		numSlots := len(entries) * 2
		slots := make([]byte, numSlots*slotSize)
		for _, idx := range entries {
			h := recordHash[idx]
			start := int((h >> 8) % uint32(numSlots))
			for i := 0; i < numSlots; i++ {
				slotIdx := (start + i) % numSlots
				off := slotIdx * slotSize
				if binary.LittleEndian.Uint32(slots[off+4:off+8]) == 0 {
					binary.LittleEndian.PutUint32(slots[off:off+4], h)
					binary.LittleEndian.PutUint32(slots[off+4:off+8], uint32(recordPos[idx]))
					break
				}
			}
		}
		tablePos := tableBase + len(tables)
		binary.LittleEndian.PutUint32(header[b*8:b*8+4], uint32(tablePos))
		binary.LittleEndian.PutUint32(header[b*8+4:b*8+8], uint32(numSlots))
		tables = append(tables, slots...)
	}

	buf := append([]byte{}, header...)
	buf = append(buf, records...)
	buf = append(buf, tables...)
	return buf
}

func TestFindSingleValue(t *testing.T) {
	data := buildCDB(t, [][2]string{{"hello", "world"}})
	db, err := Open(data)
	require.NoError(t, err)

	v, ok, err := db.Find("hello")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "world", v)

	_, ok, err = db.Find("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindAllPreservesInsertionOrderForDuplicateKeys(t *testing.T) {
	data := buildCDB(t, [][2]string{
		{"X", "a=1"},
		{"X", "b=2"},
		{"X", "c=3"},
		{"other", "z"},
	})
	db, err := Open(data)
	require.NoError(t, err)

	vals, err := db.FindAll("X")
	require.NoError(t, err)
	assert.Equal(t, []string{"a=1", "b=2", "c=3"}, vals)
}

func TestEachWalksInsertionOrder(t *testing.T) {
	pairs := [][2]string{
		{"1", "pccode1|path1|true|false|0|10|."},
		{"cc -c a.c", "1"},
		{"S1", "f|-|100000000.000000000|12|420|-|-|a.c"},
	}
	data := buildCDB(t, pairs)
	db, err := Open(data)
	require.NoError(t, err)

	var got [][2]string
	require.NoError(t, db.Each(func(k, v string) bool {
		got = append(got, [2]string{k, v})
		return true
	}))
	assert.Equal(t, pairs, got)
}

func TestOpenRejectsTruncatedHeader(t *testing.T) {
	_, err := Open(make([]byte, 10))
	assert.Error(t, err)
}
