// Package cmdaction implements CmdAction (CA): one command invocation,
// its identity hashes (ccode/pathcode), the raw-to-cooked PathAction
// coalescence, and the CSV record it round-trips through (a header line
// followed by zero or more PathAction lines).
package cmdaction

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/boyski/audited-objects/pkg/dcode"
	"github.com/boyski/audited-objects/pkg/moment"
	"github.com/boyski/audited-objects/pkg/pathaction"
	"github.com/boyski/audited-objects/pkg/pathname"
	"github.com/boyski/audited-objects/pkg/pathstate"
	"github.com/boyski/audited-objects/pkg/radix"
)

// CmdAction is a CA: one command invocation plus the PathActions it
// performed. Fields mirror spec.md §3's attribute list; the group/leader
// relationship is implemented with non-owning handles (plain pointers
// into a map the leader owns), never reference cycles, per spec.md §9.
type CmdAction struct {
	Cmdid, Pcmdid int64
	Depth         int

	StartTime moment.Moment
	Duration  time.Duration

	Host     string
	Recycled string // winning PTX id, empty if never shopped/recycled
	Prog     string
	RWD      string // project-relative working directory

	PCcode   string
	Ccode    string
	Pathcode string // valid only after Coalesce

	Subs string // concatenated headers of merged member CAs

	Strong    bool
	Started   bool
	Closed    bool
	Processed bool

	line string // command line; re-deriving Ccode is the caller's job via SetLine

	raw    []*pathaction.Action
	cooked *pathSet

	group  map[groupKey]*CmdAction // non-nil only when this CA is a group leader
	leader *CmdAction              // back-reference; never owns
}

// groupKey is the composite key spec.md §3 specifies for a leader's
// member set: (ccode, depth, cmdid).
type groupKey struct {
	Ccode string
	Depth int
	Cmdid int64
}

// New builds a CmdAction for a freshly-started command.
func New(cmdid, pcmdid int64, depth int, prog, rwd string) *CmdAction {
	return &CmdAction{Cmdid: cmdid, Pcmdid: pcmdid, Depth: depth, Prog: prog, RWD: rwd}
}

// Line returns the command's requoted command line.
func (ca *CmdAction) Line() string { return ca.line }

// SetLine installs the command line and re-derives Ccode from it, per the
// invariant that ccode is always a deterministic function of line.
func (ca *CmdAction) SetLine(line string, algo dcode.Algorithm) {
	ca.line = line
	ca.Ccode = Ccode(line, algo)
}

// Ccode derives a command's own identity hash: H(line) + "+" + len(line).
func Ccode(line string, algo dcode.Algorithm) string {
	return dcode.HashString(algo, line) + "+" + strconv.Itoa(len(line))
}

// AddRaw appends one observed PathAction to the raw, insertion-ordered
// set. Coalesce must be called again after any AddRaw to refresh the
// cooked set and Pathcode.
func (ca *CmdAction) AddRaw(pa *pathaction.Action) {
	ca.raw = append(ca.raw, pa)
}

// Raw returns the raw insertion-ordered PathAction set.
func (ca *CmdAction) Raw() []*pathaction.Action { return ca.raw }

// Cooked returns the coalesced PathAction set in iteration order, or nil
// if Coalesce has not yet run.
func (ca *CmdAction) Cooked() []*pathaction.Action {
	if ca.cooked == nil {
		return nil
	}
	return ca.cooked.ordered()
}

// pathSet is an insertion-ordered, pathname-keyed set of PathActions: the
// "cooked_pa_set" of spec.md §3/§4.4. A path's position in the iteration
// order is fixed at first insertion; later replacements (a newer write
// beating an older one) update the value in place without moving it.
type pathSet struct {
	order  []string
	byPath map[string]*pathaction.Action
}

func newPathSet() *pathSet {
	return &pathSet{byPath: make(map[string]*pathaction.Action)}
}

func (ps *pathSet) ordered() []*pathaction.Action {
	out := make([]*pathaction.Action, 0, len(ps.order))
	for _, abs := range ps.order {
		out = append(out, ps.byPath[abs])
	}
	return out
}

// apply folds one raw PathAction r into the cooked set, implementing the
// four rules of spec.md §4.4.
func (ps *pathSet) apply(r *pathaction.Action) {
	abs := r.Abs()
	c, exists := ps.byPath[abs]
	if !exists {
		ps.order = append(ps.order, abs)
		ps.byPath[abs] = r
		return
	}
	switch {
	case r.Op.IsWrite() && c.Op.IsWrite():
		// Keep the newer of the two; ties favor r (later in raw
		// insertion order), a deterministic tie-break per spec.md §9
		// Open Question (a).
		if !r.EventTime().Before(c.EventTime()) {
			ps.byPath[abs] = r
		}
	case r.Op.IsRead():
		// A read never replaces anything.
	default:
		// r is a write, c is a read: write always beats read.
		ps.byPath[abs] = r
	}
}

// Coalesce reduces the raw PA set into the cooked set and derives
// Pathcode from it. Idempotent: calling it again after no further AddRaw
// calls reproduces the same cooked set and Pathcode.
func (ca *CmdAction) Coalesce(algo dcode.Algorithm) {
	cooked := newPathSet()
	for _, r := range ca.raw {
		cooked.apply(r)
	}
	ca.cooked = cooked
	ca.Pathcode = Pathcode(cooked.ordered(), algo)
}

// Pathcode derives a command's pathcode from its cooked PA set: the
// identity hash of the concatenation, in iteration order, of every
// member && !unlink path, plus a "-<count>" suffix. Exec and read ops on
// non-member paths are excluded so toolchain/header locations that vary
// by platform don't perturb it.
func Pathcode(cooked []*pathaction.Action, algo dcode.Algorithm) string {
	var b strings.Builder
	count := 0
	for _, pa := range cooked {
		if !pa.Member || pa.Op == pathaction.UNLINK {
			continue
		}
		b.WriteString(pa.Abs())
		count++
	}
	if count == 0 {
		return radix.NullField
	}
	return dcode.HashString(algo, b.String()) + "-" + strconv.Itoa(count)
}

// IsLeader reports whether this CA has an open or published aggregate
// group (i.e. it started one via StartGroup).
func (ca *CmdAction) IsLeader() bool { return ca.group != nil }

// Leader returns the CA this one is aggregated under. A group leader's
// Leader() returns itself (it is "a member of its own club"), so HasLeader
// is the reliable test for "is this CA part of any group, as leader or
// member" -- matching the original source's ca_set_leader(ca, ca) on group
// start.
func (ca *CmdAction) Leader() *CmdAction { return ca.leader }

// HasLeader reports whether ca participates in an aggregate group, either
// as the leader or as a member.
func (ca *CmdAction) HasLeader() bool { return ca.leader != nil }

// StartGroup marks ca as a fresh aggregate leader with no members yet.
func (ca *CmdAction) StartGroup() {
	ca.group = make(map[groupKey]*CmdAction)
	ca.leader = ca
}

// PendingMembers reports the group members not yet closed.
func (ca *CmdAction) PendingMembers() []*CmdAction {
	var out []*CmdAction
	for _, m := range ca.group {
		if !m.Closed {
			out = append(out, m)
		}
	}
	return out
}

// AddMember attaches m as a follower of this leader, keyed by
// (ccode, depth, cmdid) per spec.md §3.
func (ca *CmdAction) AddMember(m *CmdAction) {
	if ca.group == nil {
		ca.StartGroup()
	}
	m.leader = ca
	ca.group[groupKey{Ccode: m.Ccode, Depth: m.Depth, Cmdid: m.Cmdid}] = m
}

// Disband breaks up this leader's group: every member's leader
// back-reference is cleared first (so no dangling pointers survive the
// group's destruction), and the leader's own self-reference is cleared
// too. It returns every participant -- members plus the former leader
// itself -- for the caller to publish (if Closed) or leave independent
// (if still open), mirroring the original's ca_disband.
func (ca *CmdAction) Disband() []*CmdAction {
	released := make([]*CmdAction, 0, len(ca.group)+1)
	for _, m := range ca.group {
		m.leader = nil
		released = append(released, m)
	}
	ca.group = nil
	ca.leader = nil
	released = append(released, ca)
	return released
}

// MergeMember folds a closed member's raw PA set into this leader (the
// leader now owns those PAs) and appends the member's header line to
// Subs for later stringification. The donor is marked Processed but its
// header remains readable; it is otherwise inert afterward.
func (ca *CmdAction) MergeMember(m *CmdAction, fs1 string) {
	ca.raw = append(ca.raw, m.raw...)
	if ca.Subs != "" {
		ca.Subs += "\n"
	}
	ca.Subs += m.EncodeHeaderCSV(fs1)
	m.Processed = true
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

// headerFieldCount is the number of scalar fields on a CA header line.
const headerFieldCount = 13

// EncodeHeaderCSV renders the CA header line (no trailing newline):
//
//	cmdid|depth|pcmdid|starttime|duration|host|recycled|prog|rwd|pccode|ccode|pathcode|cmdline
func (ca *CmdAction) EncodeHeaderCSV(fs1 string) string {
	fields := []string{
		radix.FormatInt(ca.Cmdid, 36),
		radix.FormatInt(int64(ca.Depth), 36),
		radix.FormatInt(ca.Pcmdid, 36),
		ca.StartTime.String(),
		radix.FormatInt(ca.Duration.Nanoseconds(), 36),
		orNull(ca.Host),
		orNull(ca.Recycled),
		radix.EncodeMinimal(ca.Prog),
		radix.EncodeMinimal(ca.RWD),
		orNull(ca.PCcode),
		orNull(ca.Ccode),
		orNull(ca.Pathcode),
		radix.EncodeNewline(ca.line),
	}
	return strings.Join(fields, fs1)
}

// EncodeCSV renders the full CA record: the header line followed by one
// line per cooked PathAction (falling back to the raw set if Coalesce has
// not yet been called), newline-joined.
func (ca *CmdAction) EncodeCSV(fs1 string) string {
	var b strings.Builder
	b.WriteString(ca.EncodeHeaderCSV(fs1))
	for _, pa := range ca.linesToEmit() {
		b.WriteByte('\n')
		b.WriteString(pa.EncodeCSV(fs1))
	}
	return b.String()
}

func (ca *CmdAction) linesToEmit() []*pathaction.Action {
	if ca.cooked != nil {
		return ca.cooked.ordered()
	}
	return ca.raw
}

// DecodeHeaderCSV parses a CA header line's fields (as produced by
// EncodeHeaderCSV) into a CmdAction with an empty PA set.
func DecodeHeaderCSV(fields []string) (*CmdAction, error) {
	if len(fields) != headerFieldCount {
		return nil, fmt.Errorf("cmdaction: malformed CA header: want %d fields, got %d", headerFieldCount, len(fields))
	}
	ca := &CmdAction{}
	var err error
	if ca.Cmdid, err = radix.ParseInt(fields[0], 36); err != nil {
		return nil, fmt.Errorf("cmdaction: malformed cmdid: %w", err)
	}
	var depth int64
	if depth, err = radix.ParseInt(fields[1], 36); err != nil {
		return nil, fmt.Errorf("cmdaction: malformed depth: %w", err)
	}
	ca.Depth = int(depth)
	if ca.Pcmdid, err = radix.ParseInt(fields[2], 36); err != nil {
		return nil, fmt.Errorf("cmdaction: malformed pcmdid: %w", err)
	}
	if ca.StartTime, err = moment.Parse(fields[3]); err != nil {
		return nil, fmt.Errorf("cmdaction: malformed starttime: %w", err)
	}
	durNanos, err := radix.ParseInt(fields[4], 36)
	if err != nil {
		return nil, fmt.Errorf("cmdaction: malformed duration: %w", err)
	}
	ca.Duration = time.Duration(durNanos)
	ca.Host = unNull(fields[5])
	ca.Recycled = unNull(fields[6])
	if ca.Prog, err = radix.Unescape(fields[7]); err != nil {
		return nil, fmt.Errorf("cmdaction: malformed prog: %w", err)
	}
	if ca.RWD, err = radix.Unescape(fields[8]); err != nil {
		return nil, fmt.Errorf("cmdaction: malformed rwd: %w", err)
	}
	ca.PCcode = unNull(fields[9])
	ca.Ccode = unNull(fields[10])
	ca.Pathcode = unNull(fields[11])
	ca.line = radix.DecodeNewline(fields[12])
	return ca, nil
}

// ResolvePN resolves the relative_path (or, for a non-member path, the
// full absolute path) field of a decoded PS record into a pathname.Name.
// Implementations close over the project base directory, which is not
// itself part of the CA/PA/PS wire format.
type ResolvePN func(relativeOrAbs string) pathname.Name

// DecodeCSV parses a full CA record -- a header line followed by zero or
// more PA lines -- into a CmdAction. The decoded PA set is installed
// directly as the cooked set, since what was serialized is always the
// post-coalescence view (spec.md §4.1).
func DecodeCSV(lines []string, fs1 string, resolve ResolvePN) (*CmdAction, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("cmdaction: empty CA record")
	}
	ca, err := DecodeHeaderCSV(strings.Split(lines[0], fs1))
	if err != nil {
		return nil, err
	}
	cooked := newPathSet()
	for i, line := range lines[1:] {
		fields := strings.Split(line, fs1)
		if len(fields) <= pathaction.NumScalarFields {
			return nil, fmt.Errorf("cmdaction: malformed PA line %d: too few fields", i+1)
		}
		pa, err := pathaction.DecodeScalars(fields[:pathaction.NumScalarFields])
		if err != nil {
			return nil, fmt.Errorf("cmdaction: PA line %d: %w", i+1, err)
		}
		psFields := fields[pathaction.NumScalarFields:]
		if len(psFields) != 8 {
			return nil, fmt.Errorf("cmdaction: PA line %d: malformed embedded PathState", i+1)
		}
		relOrAbs, err := radix.Unescape(psFields[7])
		if err != nil {
			return nil, fmt.Errorf("cmdaction: PA line %d: malformed path field: %w", i+1, err)
		}
		pn := resolve(relOrAbs)
		ps, err := pathstate.DecodeCSV(psFields, pn)
		if err != nil {
			return nil, fmt.Errorf("cmdaction: PA line %d: %w", i+1, err)
		}
		pa.State = ps
		pa.Member = pn.IsMember()
		ca.raw = append(ca.raw, pa)
		cooked.order = append(cooked.order, pa.Abs())
		cooked.byPath[pa.Abs()] = pa
	}
	ca.cooked = cooked
	return ca, nil
}
