package pathaction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boyski/audited-objects/pkg/moment"
	"github.com/boyski/audited-objects/pkg/pathname"
	"github.com/boyski/audited-objects/pkg/pathstate"
)

func TestOpStringRoundTrip(t *testing.T) {
	a := assert.New(t)
	for _, op := range []Op{READ, CREAT, APPEND, EXEC, LINK, SYMLINK, UNLINK, MKDIR} {
		got, err := ParseOp(op.String())
		require.NoError(t, err)
		a.Equal(op, got)
	}
}

func TestReadNeverCarriesTimestamp(t *testing.T) {
	a := assert.New(t)
	act := &Action{Op: READ, State: pathstate.New(pathname.NewAbsolute("/a"), pathstate.Regular)}
	act.Timestamp = moment.Now() // deliberately set; encoder must still omit it
	enc := act.EncodeCSV("\x01")
	fields := strings.Split(enc, "\x01")
	assert.Equal(t, "-", fields[2])
	_ = a
}

func TestWriteCarriesTimestamp(t *testing.T) {
	a := assert.New(t)
	ts := moment.New(1000, 0)
	act := &Action{Op: CREAT, Timestamp: ts, State: pathstate.New(pathname.NewAbsolute("/a"), pathstate.Regular)}
	enc := act.EncodeCSV("\x01")
	fields := strings.Split(enc, "\x01")
	a.Equal(ts.String(), fields[2])
}

func TestDecodeScalarsRoundTrip(t *testing.T) {
	a := assert.New(t)
	act := &Action{
		Op: CREAT, Call: "open", Timestamp: moment.New(5, 0),
		Pid: 100, Ppid: 1, Tid: 100, Depth: 2,
		PCcode: "pc1", Ccode: "c1", Fd: 3, HasFd: true,
		State: pathstate.New(pathname.NewAbsolute("/a"), pathstate.Regular),
	}
	enc := act.EncodeCSV("\x01")
	fields := strings.Split(enc, "\x01")
	got, err := DecodeScalars(fields[:NumScalarFields])
	require.NoError(t, err)
	a.Equal(act.Op, got.Op)
	a.Equal(act.Call, got.Call)
	a.Equal(act.Pid, got.Pid)
	a.Equal(act.Ppid, got.Ppid)
	a.Equal(act.Tid, got.Tid)
	a.Equal(act.Depth, got.Depth)
	a.Equal(act.PCcode, got.PCcode)
	a.Equal(act.Ccode, got.Ccode)
	a.Equal(act.Fd, got.Fd)
	a.True(got.HasFd)
}

func TestEventTimeFallsBackToMtime(t *testing.T) {
	a := assert.New(t)
	mtime := moment.New(20, 0)
	ps := pathstate.New(pathname.NewAbsolute("/a"), pathstate.Regular)
	ps.Moment = mtime
	act := &Action{Op: READ, State: ps}
	a.Equal(mtime, act.EventTime())
}

func TestIsReadIsWrite(t *testing.T) {
	a := assert.New(t)
	a.True(READ.IsRead())
	a.True(EXEC.IsRead())
	a.False(CREAT.IsRead())
	a.True(UNLINK.IsWrite())
	a.False(READ.IsWrite())
}
