package pathstate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boyski/audited-objects/pkg/moment"
	"github.com/boyski/audited-objects/pkg/pathname"
)

func TestCSVRoundTripRegular(t *testing.T) {
	a := assert.New(t)
	pn := pathname.NewAbsolute("/proj/a.c")
	ps := New(pn, Regular)
	ps.Size = 42
	ps.Mode = 0644
	ps.Dcode = "deadbeef"
	ps.SetFSName("ext4")

	enc := ps.EncodeCSV("\x01")
	fields := splitFS1(enc)
	got, err := DecodeCSV(fields, pn)
	require.NoError(t, err)

	a.Equal(ps.Size, got.Size)
	a.Equal(ps.Mode, got.Mode)
	a.Equal(ps.Dcode, got.Dcode)
	a.Equal(ps.DataType, got.DataType)
	a.Equal("ext4", got.FSName())
}

func TestCSVRoundTripSymlink(t *testing.T) {
	a := assert.New(t)
	pn := pathname.NewAbsolute("/proj/link")
	ps := New(pn, Symlink)
	ps.Target = "../other/target,with%special\nchars"

	enc := ps.EncodeCSV("\x01")
	fields := splitFS1(enc)
	got, err := DecodeCSV(fields, pn)
	require.NoError(t, err)
	a.Equal(Symlink, got.DataType)
	a.Equal(ps.Target, got.Target)
}

func TestUnlinkNeverRequiresExists(t *testing.T) {
	a := assert.New(t)
	pn := pathname.NewAbsolute("/proj/gone")
	ps := Unlink(pn)
	a.Equal(Unlinked, ps.DataType)
	a.False(ps.Exists())
}

func TestFromLstatDirectory(t *testing.T) {
	a := assert.New(t)
	dir := t.TempDir()
	pn := pathname.NewAbsolute(dir)
	ps, err := FromLstat(pn)
	require.NoError(t, err)
	a.Equal(Directory, ps.DataType)
}

func TestFromLstatSymlink(t *testing.T) {
	a := assert.New(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	require.NoError(t, os.WriteFile(target, []byte("hi"), 0644))
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	ps, err := FromLstat(pathname.NewAbsolute(link))
	require.NoError(t, err)
	a.Equal(Symlink, ps.DataType)
	a.Equal(target, ps.Target)
}

func TestDecodeCSVRejectsWrongFieldCount(t *testing.T) {
	_, err := DecodeCSV([]string{"f", "-"}, pathname.NewAbsolute("/x"))
	assert.Error(t, err)
}

func TestDiffIdenticalStatesMatch(t *testing.T) {
	pn := pathname.NewAbsolute("/x")
	a := &State{PN: pn, DataType: Regular, Size: 10, Moment: moment.Moment{Secs: 100}}
	b := &State{PN: pn, DataType: Regular, Size: 10, Moment: moment.Moment{Secs: 100}}
	assert.Equal(t, "", Diff(a, b, 9))
}

func TestDiffReportsTypeMismatchBeforeAnythingElse(t *testing.T) {
	pn := pathname.NewAbsolute("/x")
	a := &State{PN: pn, DataType: Regular, Size: 10}
	b := &State{PN: pn, DataType: Directory, Size: 10}
	assert.Equal(t, "type", Diff(a, b, 9))
}

func TestDiffReportsSizeMismatch(t *testing.T) {
	pn := pathname.NewAbsolute("/x")
	a := &State{PN: pn, DataType: Regular, Size: 10}
	b := &State{PN: pn, DataType: Regular, Size: 11}
	assert.Equal(t, "size", Diff(a, b, 9))
}

func TestDiffPrefersDcodeOverMomentWhenBothPresent(t *testing.T) {
	pn := pathname.NewAbsolute("/x")
	a := &State{PN: pn, DataType: Regular, Size: 10, Dcode: "abc", Moment: moment.Moment{Secs: 1}}
	b := &State{PN: pn, DataType: Regular, Size: 10, Dcode: "abc", Moment: moment.Moment{Secs: 999}}
	assert.Equal(t, "", Diff(a, b, 9), "matching dcode should short-circuit a moment mismatch")

	c := &State{PN: pn, DataType: Regular, Size: 10, Dcode: "xyz", Moment: moment.Moment{Secs: 1}}
	assert.Equal(t, "dcode", Diff(a, c, 9))
}

func TestDiffFallsBackToMomentWhenDcodeAbsent(t *testing.T) {
	pn := pathname.NewAbsolute("/x")
	a := &State{PN: pn, DataType: Regular, Size: 10, Moment: moment.Moment{Secs: 1, Nanos: 0}}
	b := &State{PN: pn, DataType: Regular, Size: 10, Moment: moment.Moment{Secs: 1, Nanos: 500_000_000}}
	assert.Equal(t, "moment", Diff(a, b, 9))
	assert.Equal(t, "", Diff(a, b, 0), "second-level precision should collapse the sub-second difference")
}

// splitFS1 is a tiny test helper mirroring the single-byte field split
// the CSV parser performs elsewhere in the codec package.
func splitFS1(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\x01' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
