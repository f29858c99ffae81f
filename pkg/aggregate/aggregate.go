// Package aggregate implements the aggregation and publication state
// machine of spec.md §4.3: grouping sub-commands (e.g. a shell and its
// builtins) under a leader CmdAction via regex-driven strength
// classification, and publishing each fully-formed group exactly once.
package aggregate

import (
	"regexp"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/boyski/audited-objects/pkg/cmdaction"
	"github.com/boyski/audited-objects/pkg/dcode"
)

// Strength is the aggregation binding strength a new CA's program name or
// command line is classified into, per spec.md §4.3's strength table.
type Strength int

const (
	NONE Strength = iota
	WEAK
	STRONG
	BREAK
)

func (s Strength) String() string {
	switch s {
	case BREAK:
		return "BREAK"
	case STRONG:
		return "STRONG"
	case WEAK:
		return "WEAK"
	default:
		return "NONE"
	}
}

// Rules holds the six compiled `Aggregation.{Prog,Line}.{Break,Strong,Weak}.RE`
// properties. A nil entry never matches.
type Rules struct {
	ProgBreak, LineBreak   *regexp.Regexp
	ProgStrong, LineStrong *regexp.Regexp
	ProgWeak, LineWeak     *regexp.Regexp
}

// compileRE compiles a property value into a regexp, treating an empty or
// whitespace-leading value as "no match" per spec.md §9's note that this
// survives environment-propagation padding (a common way a property
// arrives empty-but-not-unset through env var inheritance).
func compileRE(pattern string) (*regexp.Regexp, error) {
	if pattern == "" || strings.HasPrefix(pattern, " ") || strings.HasPrefix(pattern, "\t") {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

// NewRules compiles the six aggregation regex properties.
func NewRules(progBreak, lineBreak, progStrong, lineStrong, progWeak, lineWeak string) (Rules, error) {
	var r Rules
	var err error
	for _, pair := range []struct {
		src string
		dst **regexp.Regexp
	}{
		{progBreak, &r.ProgBreak}, {lineBreak, &r.LineBreak},
		{progStrong, &r.ProgStrong}, {lineStrong, &r.LineStrong},
		{progWeak, &r.ProgWeak}, {lineWeak, &r.LineWeak},
	} {
		if *pair.dst, err = compileRE(pair.src); err != nil {
			return Rules{}, err
		}
	}
	return r, nil
}

func matchEither(prog, line string, reProg, reLine *regexp.Regexp) bool {
	if reProg != nil && reProg.MatchString(prog) {
		return true
	}
	if reLine != nil && reLine.MatchString(line) {
		return true
	}
	return false
}

// Classify applies the strength table of spec.md §4.3 to a CA's program
// name and command line, highest-strength match wins.
func Classify(rules Rules, prog, line string) Strength {
	if matchEither(prog, line, rules.ProgBreak, rules.LineBreak) {
		return BREAK
	}
	if matchEither(prog, line, rules.ProgStrong, rules.LineStrong) {
		return STRONG
	}
	if matchEither(prog, line, rules.ProgWeak, rules.LineWeak) {
		return WEAK
	}
	return NONE
}

// Manager runs the SOA/EOA state machine across every CA observed in one
// build. It owns the single mutex-protected table mapping an in-flight
// command's cmdid to its CmdAction -- spec.md §5/§6's "groups never nest"
// invariant maps directly onto this map plus the leader self-reference
// CmdAction.StartGroup installs.
type Manager struct {
	mu      sync.Mutex
	rules   Rules
	algo    dcode.Algorithm
	active  map[int64]*cmdaction.CmdAction
	publish func(*cmdaction.CmdAction)
}

// NewManager builds a Manager that invokes onPublish exactly once for
// every CA that reaches a terminal, fully-coalesced state.
func NewManager(rules Rules, algo dcode.Algorithm, onPublish func(*cmdaction.CmdAction)) *Manager {
	return &Manager{
		rules:   rules,
		algo:    algo,
		active:  make(map[int64]*cmdaction.CmdAction),
		publish: onPublish,
	}
}

// StartOfAudit runs the SOA transition of spec.md §4.3 for a newly
// started CA ca, given its parent's cmdid (0/unknown if none).
func (m *Manager) StartOfAudit(ca *cmdaction.CmdAction, parentCmdid int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ca.Started = true
	parent := m.active[parentCmdid]
	strength := Classify(m.rules, ca.Prog, ca.Line())

	switch {
	case parent != nil && parent.IsLeader() && strength == BREAK:
		m.disbandLocked(parent)
		// ca proceeds below as an independent, ungrouped CA.
	case strength == STRONG || strength == WEAK:
		ca.StartGroup()
	case parent != nil && parent.HasLeader():
		parent.Leader().AddMember(ca)
	}
	// Otherwise ca is independent: no group membership is recorded.

	m.active[ca.Cmdid] = ca
}

// EndOfAudit runs the EOA transition of spec.md §4.3 for ca.
func (m *Manager) EndOfAudit(ca *cmdaction.CmdAction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ca.Closed = true
	delete(m.active, ca.Cmdid)

	switch {
	case !ca.HasLeader():
		// Independent, non-aggregated CA: publish immediately.
		m.publishOneLocked(ca)
	case ca.Leader() == ca:
		// ca is itself a group leader; publish the whole group once
		// every member has closed.
		if len(ca.PendingMembers()) == 0 {
			m.publishGroupLocked(ca)
		}
	default:
		// ca is a member; closed but not yet published. If its
		// leader has no other pending members, the leader's own
		// closure already happened or will trigger publication --
		// but a member closing can itself be the last one pending.
		leader := ca.Leader()
		if leader.Closed && len(leader.PendingMembers()) == 0 {
			m.publishGroupLocked(leader)
		}
	}
}

// publishGroupLocked merges every closed member into the leader, coalesces,
// and publishes exactly once, discarding the member records afterward.
func (m *Manager) publishGroupLocked(leader *cmdaction.CmdAction) {
	members := lo.Filter(memberList(leader), func(ca *cmdaction.CmdAction, _ int) bool {
		return ca != leader
	})
	for _, member := range members {
		if member.Processed {
			continue
		}
		leader.MergeMember(member, "\x01")
	}
	m.publishOneLocked(leader)
}

func memberList(leader *cmdaction.CmdAction) []*cmdaction.CmdAction {
	// Disband empties the group map as a side effect, so snapshot the
	// members via Disband itself: every participant (members + leader)
	// comes back with its leader pointer already cleared, which is
	// exactly the state a freshly-published/discarded group should end
	// up in.
	return leader.Disband()
}

// disbandLocked publishes every already-closed member of an open group and
// releases the rest as independent CAs, per spec.md §4.3's disband rule.
func (m *Manager) disbandLocked(leader *cmdaction.CmdAction) {
	for _, participant := range leader.Disband() {
		if participant.Closed {
			m.publishOneLocked(participant)
		}
		// Still-open participants are simply released: they remain
		// in m.active under their own cmdid and will publish
		// independently at their own EOA.
	}
}

func (m *Manager) publishOneLocked(ca *cmdaction.CmdAction) {
	if ca.Processed {
		return
	}
	ca.Coalesce(m.algo)
	ca.Processed = true
	if m.publish != nil {
		m.publish(ca)
	}
}
