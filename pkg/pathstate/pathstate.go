// Package pathstate implements PathState (PS): a snapshot of a file at one
// instant -- its mtime, size, mode, optional dcode, and datatype -- plus
// the CSV field layout it round-trips through as part of a PathAction or a
// roadmap `pskey` record.
package pathstate

import (
	"fmt"
	"os"
	"strings"

	"github.com/boyski/audited-objects/pkg/moment"
	"github.com/boyski/audited-objects/pkg/pathname"
	"github.com/boyski/audited-objects/pkg/radix"
)

// DataType enumerates the kinds of filesystem object a PathState can
// describe. Per spec.md §9 ("dynamic dispatch"), all per-variant
// behavior differences are handled with an exhaustive switch on this tag,
// never a type hierarchy.
type DataType int

const (
	// Unknown is the zero value and never valid on a fully-built PathState.
	Unknown DataType = iota
	Regular
	Directory
	// Link represents the result of a hardlink -- the PathState has a
	// second path (PN2) naming the pre-existing file it was linked from.
	Link
	Symlink
	// Unlinked records the fact of removal; no file underlies it and
	// Exists() must never be called to determine validity.
	Unlinked
)

func (d DataType) String() string {
	switch d {
	case Regular:
		return "regular"
	case Directory:
		return "directory"
	case Link:
		return "link"
	case Symlink:
		return "symlink"
	case Unlinked:
		return "unlinked"
	default:
		return "unknown"
	}
}

// csvCode is the single-letter tag used in the CSV/CDB wire encoding.
func (d DataType) csvCode() string {
	switch d {
	case Regular:
		return "f"
	case Directory:
		return "d"
	case Link:
		return "l"
	case Symlink:
		return "s"
	case Unlinked:
		return "u"
	default:
		return "?"
	}
}

func dataTypeFromCSVCode(c string) (DataType, error) {
	switch c {
	case "f":
		return Regular, nil
	case "d":
		return Directory, nil
	case "l":
		return Link, nil
	case "s":
		return Symlink, nil
	case "u":
		return Unlinked, nil
	default:
		return Unknown, fmt.Errorf("pathstate: malformed datatype code %q", c)
	}
}

// State is a PathState: the measurable attributes of a file at an
// instant. The dcode field is a pointer-ish optional (empty string means
// "not yet computed"), matching spec.md's "absent when not yet computed"
// invariant.
type State struct {
	PN       pathname.Name
	PN2      pathname.Name // set only for DataType == Link (the pre-existing link target)
	Target   string        // set only for DataType == Symlink: the raw symlink target text
	Moment   moment.Moment
	Size     int64
	Mode     uint32
	DataType DataType
	Dcode    string // empty iff not computed

	fsname     string
	fsnameDone bool
	devIno     DevIno
}

// New builds a State of the given datatype for pn, with no dcode yet
// computed. Callers fill in Moment/Size/Mode from a stat, or construct
// directly for synthetic cases (e.g. an Unlinked marker).
func New(pn pathname.Name, dt DataType) *State {
	return &State{PN: pn, DataType: dt}
}

// FromLstat builds a State by lstat-ing pn. It never follows a trailing
// symlink -- per spec, PathState must describe what is literally at pn,
// with dcode (if computed) hashed over the symlink's target text rather
// than any file it points to.
func FromLstat(pn pathname.Name) (*State, error) {
	fi, err := os.Lstat(pn.String())
	if err != nil {
		return nil, err
	}
	ps := &State{
		PN:     pn,
		Moment: moment.FromFileInfo(fi),
		Size:   fi.Size(),
		Mode:   uint32(fi.Mode().Perm()),
	}
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		ps.DataType = Symlink
		target, err := os.Readlink(pn.String())
		if err != nil {
			return nil, fmt.Errorf("pathstate: readlink %s: %w", pn.String(), err)
		}
		ps.Target = target
	case fi.IsDir():
		ps.DataType = Directory
	default:
		ps.DataType = Regular
	}
	augmentPlatform(ps, fi)
	return ps, nil
}

// Unlink builds a State recording the removal of pn. Per spec, this is
// valid even if pn never existed (e.g. `rm -f nonexistent`); callers must
// not call Exists() to validate it.
func Unlink(pn pathname.Name) *State {
	return &State{PN: pn, DataType: Unlinked, Moment: moment.Now()}
}

// HardLink builds a State for a newly-created hardlink at pn pointing at
// the pre-existing file pn2.
func HardLink(pn, pn2 pathname.Name) *State {
	return &State{PN: pn, PN2: pn2, DataType: Link, Moment: moment.Now()}
}

// Exists reports whether this State describes a live filesystem object.
// Per invariant, this must never be asked of an Unlinked state to decide
// validity -- it is provided purely for symmetry and always returns false
// for Unlinked without inspecting the filesystem.
func (ps *State) Exists() bool {
	return ps.DataType != Unlinked && ps.DataType != Unknown
}

// FSName returns the filesystem type (e.g. "ext4", "nfs") hosting this
// path, computed lazily since statfs-ing every audited path is expensive
// and most verbosity levels never display it (spec.md §4 supplement).
func (ps *State) FSName() string {
	if !ps.fsnameDone {
		ps.fsname = lookupFSName(ps.PN.String())
		ps.fsnameDone = true
	}
	return ps.fsname
}

// SetFSName allows a deserialized State to carry a pre-computed fsname
// without triggering a live statfs.
func (ps *State) SetFSName(name string) {
	ps.fsname = name
	ps.fsnameDone = true
}

// EncodeCSV renders the eight PS fields appended to each PA line:
//
//	datatype | fsname | moment | size | mode | dcode | target_or_path2 | relative_path
func (ps *State) EncodeCSV(fs1 string) string {
	fields := []string{
		ps.DataType.csvCode(),
		orNull(ps.FSName()),
		ps.Moment.String(),
		radix.FormatInt(ps.Size, 36),
		radix.FormatUint(uint64(ps.Mode), 36),
		orNull(ps.Dcode),
		orNull(radix.EncodeMinimal(ps.targetOrPath2())),
		radix.EncodeMinimal(ps.PN.Relative()),
	}
	return strings.Join(fields, fs1)
}

func (ps *State) targetOrPath2() string {
	switch ps.DataType {
	case Symlink:
		return ps.Target
	case Link:
		return ps.PN2.String()
	default:
		return ""
	}
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

// Diff compares two PathStates the way the shopping engine and target
// materialization do: identical iff same datatype, size, and (if both
// carry a dcode) dcode; otherwise mtime is the tiebreaker, compared at
// the given Shop.Time.Precision (fractional decimal digits retained).
// Returns an empty string when the states match, else a short reason
// word suitable for a log message.
func Diff(a, b *State, precisionDigits int) string {
	switch {
	case a.DataType != b.DataType:
		return "type"
	case a.Size != b.Size:
		return "size"
	case a.Dcode != "" && b.Dcode != "":
		if a.Dcode != b.Dcode {
			return "dcode"
		}
		return ""
	case !a.Moment.EqualPrecision(b.Moment, precisionDigits):
		return "moment"
	default:
		return ""
	}
}

// DecodeCSV parses the 8-field PS encoding (as produced by EncodeCSV)
// back into a State anchored at pn (the absolute path is recovered by the
// caller, who knows the project base needed to fully qualify the
// trailing relative_path field).
func DecodeCSV(fields []string, pn pathname.Name) (*State, error) {
	if len(fields) != 8 {
		return nil, fmt.Errorf("pathstate: malformed PS record: want 8 fields, got %d", len(fields))
	}
	dt, err := dataTypeFromCSVCode(fields[0])
	if err != nil {
		return nil, err
	}
	m, err := moment.Parse(fields[2])
	if err != nil {
		return nil, fmt.Errorf("pathstate: malformed moment: %w", err)
	}
	size, err := radix.ParseInt(fields[3], 36)
	if err != nil {
		return nil, fmt.Errorf("pathstate: malformed size: %w", err)
	}
	mode, err := radix.ParseUint(fields[4], 36)
	if err != nil {
		return nil, fmt.Errorf("pathstate: malformed mode: %w", err)
	}
	ps := &State{
		PN:       pn,
		DataType: dt,
		Moment:   m,
		Size:     size,
		Mode:     uint32(mode),
		Dcode:    unNull(fields[5]),
	}
	if fsname := unNull(fields[1]); fsname != "" {
		ps.SetFSName(fsname)
	}
	tgt, err := radix.Unescape(unNull(fields[6]))
	if err != nil {
		return nil, fmt.Errorf("pathstate: malformed target field: %w", err)
	}
	switch dt {
	case Symlink:
		ps.Target = tgt
	case Link:
		if tgt != "" {
			ps.PN2 = pathname.NewAbsolute(tgt)
		}
	}
	return ps, nil
}
