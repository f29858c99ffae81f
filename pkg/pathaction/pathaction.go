// Package pathaction implements PathAction (PA): one observed I/O event,
// together with the CSV line format it round-trips through as part of a
// CmdAction record.
package pathaction

import (
	"fmt"
	"strings"

	"github.com/boyski/audited-objects/pkg/moment"
	"github.com/boyski/audited-objects/pkg/pathstate"
	"github.com/boyski/audited-objects/pkg/radix"
)

// Op enumerates the kinds of I/O event a PathAction can record. As with
// pathstate.DataType, all per-variant behavior is dispatched with an
// exhaustive switch, never a type hierarchy (spec.md §9).
type Op int

const (
	UnknownOp Op = iota
	READ
	CREAT
	APPEND
	EXEC
	LINK
	SYMLINK
	UNLINK
	MKDIR
)

var opNames = map[Op]string{
	READ: "READ", CREAT: "CREAT", APPEND: "APPEND", EXEC: "EXEC",
	LINK: "LINK", SYMLINK: "SYMLINK", UNLINK: "UNLINK", MKDIR: "MKDIR",
}

var namesToOp = func() map[string]Op {
	m := make(map[string]Op, len(opNames))
	for op, name := range opNames {
		m[name] = op
	}
	return m
}()

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return "UNKNOWN"
}

// ParseOp reverses Op.String.
func ParseOp(s string) (Op, error) {
	if op, ok := namesToOp[s]; ok {
		return op, nil
	}
	return UnknownOp, fmt.Errorf("pathaction: unknown op %q", s)
}

// IsRead reports whether this op is a pure-read access (never carries an
// event timestamp, per spec invariant).
func (o Op) IsRead() bool {
	return o == READ || o == EXEC
}

// IsWrite reports whether this op mutates the filesystem and therefore
// always carries an event timestamp used for coalescence ordering.
func (o Op) IsWrite() bool {
	switch o {
	case CREAT, APPEND, LINK, SYMLINK, UNLINK, MKDIR:
		return true
	default:
		return false
	}
}

// Action is a PathAction (PA): one observed I/O event.
type Action struct {
	Op    Op
	Call  string // the syscall/API name that produced this event, e.g. "open"
	State *pathstate.State

	// Timestamp of the event itself, distinct from State.Moment (the
	// file's mtime). Zero/IsZero for read-like ops per invariant.
	Timestamp moment.Moment

	Pid, Ppid, Tid int64
	Depth          int
	Fd             int
	HasFd          bool

	PCcode string // parent command's ccode at the time of this event
	Ccode  string // owning command's ccode

	Uploadable bool // distinct from "is a target" per spec.md §9(b)
	Member     bool // true iff State.PN falls under the project base
}

// Abs returns the absolute path this action concerns, a convenience used
// throughout coalescence and pathcode derivation.
func (a *Action) Abs() string {
	if a.State == nil {
		return ""
	}
	return a.State.PN.String()
}

// EventTime returns the ordering timestamp to use during coalescence:
// the event Timestamp if present, else the PathState's mtime (spec.md
// §4.4 rule 2's documented fallback).
func (a *Action) EventTime() moment.Moment {
	if !a.Timestamp.IsZero() {
		return a.Timestamp
	}
	return a.State.Moment
}

// EncodeCSV renders one PA line (without trailing newline):
//
//	op | call | timestamp | pid | depth | ppid | tid | pccode | ccode | fd | <PS fields>
func (a *Action) EncodeCSV(fs1 string) string {
	ts := radix.NullField
	if a.Op.IsWrite() {
		ts = a.Timestamp.String()
	}
	fd := radix.NullField
	if a.HasFd {
		fd = radix.FormatInt(int64(a.Fd), 36)
	}
	fields := []string{
		a.Op.String(),
		a.Call,
		ts,
		radix.FormatInt(a.Pid, 36),
		radix.FormatInt(int64(a.Depth), 36),
		radix.FormatInt(a.Ppid, 36),
		radix.FormatInt(a.Tid, 36),
		orNull(a.PCcode),
		orNull(a.Ccode),
		fd,
	}
	var b strings.Builder
	b.WriteString(strings.Join(fields, fs1))
	if a.State != nil {
		b.WriteString(fs1)
		b.WriteString(a.State.EncodeCSV(fs1))
	}
	return b.String()
}

func orNull(s string) string {
	if s == "" {
		return radix.NullField
	}
	return s
}
func unNull(s string) string {
	if s == radix.NullField {
		return ""
	}
	return s
}

// NumScalarFields is the number of scalar fields preceding the embedded
// PathState's 8 fields on a PA line.
const NumScalarFields = 10

// DecodeScalars parses the first NumScalarFields fields of a PA line
// (everything before the embedded PathState) into an Action. The caller
// is responsible for decoding the remaining fields with
// pathstate.DecodeCSV (which needs a resolved pathname.Name built from
// the project base) and assigning the result to Action.State.
func DecodeScalars(fields []string) (*Action, error) {
	if len(fields) < NumScalarFields {
		return nil, fmt.Errorf("pathaction: malformed PA record: want >= %d fields, got %d", NumScalarFields, len(fields))
	}
	op, err := ParseOp(fields[0])
	if err != nil {
		return nil, err
	}
	a := &Action{Op: op, Call: fields[1]}
	if ts := fields[2]; ts != radix.NullField {
		m, err := moment.Parse(ts)
		if err != nil {
			return nil, fmt.Errorf("pathaction: malformed timestamp: %w", err)
		}
		a.Timestamp = m
	}
	if a.Pid, err = radix.ParseInt(fields[3], 36); err != nil {
		return nil, fmt.Errorf("pathaction: malformed pid: %w", err)
	}
	var depth int64
	if depth, err = radix.ParseInt(fields[4], 36); err != nil {
		return nil, fmt.Errorf("pathaction: malformed depth: %w", err)
	}
	a.Depth = int(depth)
	if a.Ppid, err = radix.ParseInt(fields[5], 36); err != nil {
		return nil, fmt.Errorf("pathaction: malformed ppid: %w", err)
	}
	if a.Tid, err = radix.ParseInt(fields[6], 36); err != nil {
		return nil, fmt.Errorf("pathaction: malformed tid: %w", err)
	}
	a.PCcode = unNull(fields[7])
	a.Ccode = unNull(fields[8])
	if fd := unNull(fields[9]); fd != "" {
		fdv, err := radix.ParseInt(fd, 36)
		if err != nil {
			return nil, fmt.Errorf("pathaction: malformed fd: %w", err)
		}
		a.Fd = int(fdv)
		a.HasFd = true
	}
	return a, nil
}
