package roadmap

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boyski/audited-objects/cmd/ao/command"
)

const (
	cdbHeaderSize = 256 * 8
	cdbSlotSize   = 8
)

func cdbHash(key []byte) uint32 {
	h := uint32(5381)
	for _, c := range key {
		h = ((h << 5) + h) ^ uint32(c)
	}
	return h
}

// buildRoadmapFile assembles a minimal, correct CDB file -- the same
// fixture builder pkg/roadmap's own tests use, duplicated here to keep
// this package independent of roadmap's internals.
func buildRoadmapFile(t *testing.T, pairs [][2]string) string {
	t.Helper()

	records := make([]byte, 0, 256)
	recordPos := make([]int, len(pairs))
	recordHash := make([]uint32, len(pairs))
	pos := cdbHeaderSize
	for i, kv := range pairs {
		k, v := []byte(kv[0]), []byte(kv[1])
		recordPos[i] = pos
		recordHash[i] = cdbHash(k)
		var prefix [8]byte
		binary.LittleEndian.PutUint32(prefix[0:4], uint32(len(k)))
		binary.LittleEndian.PutUint32(prefix[4:8], uint32(len(v)))
		records = append(records, prefix[:]...)
		records = append(records, k...)
		records = append(records, v...)
		pos += 8 + len(k) + len(v)
	}

	buckets := make([][]int, 256)
	for i := range pairs {
		b := int(recordHash[i] % 256)
		buckets[b] = append(buckets[b], i)
	}

	header := make([]byte, cdbHeaderSize)
	var tables []byte
	tableBase := cdbHeaderSize + len(records)
	for b := 0; b < 256; b++ {
		entries := buckets[b]
		if len(entries) == 0 {
			continue
		}
		numSlots := len(entries) * 2
		slots := make([]byte, numSlots*cdbSlotSize)
		for _, idx := range entries {
			h := recordHash[idx]
			start := int((h >> 8) % uint32(numSlots))
			for i := 0; i < numSlots; i++ {
				slotIdx := (start + i) % numSlots
				off := slotIdx * cdbSlotSize
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

	path := filepath.Join(t.TempDir(), "roadmap.cdb")
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func TestRoadmapListsPTXsInOrder(t *testing.T) {
	path := buildRoadmapFile(t, [][2]string{
		{"X", "build-17=P1"},
		{"X", "build-18=P2"},
	})

	root := &cobra.Command{Use: "ao"}
	params := &command.GlobalParams{BaseDir: t.TempDir()}
	for _, c := range Commands(params) {
		root.AddCommand(c)
	}
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"roadmap", path})

	require.NoError(t, root.Execute())
	assert.Equal(t, "P1\tbuild-17\nP2\tbuild-18\n", out.String())
}
