// Package shop implements the shopping engine (spec.md §4.5): given a
// fully-coalesced candidate command and the server-shipped roadmap, it
// decides whether an equivalent command already ran in some prior build
// (a "PTX") whose recorded prerequisites still hold locally, and if so
// materializes that PTX's targets instead of re-running the command.
// Grounded on original_source/src/shop.c's shop()/_shop_for_cmd/
// _shop_compare_prereqs/_shop_collect_targets/_shop_process_target.
package shop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync/atomic"

	"github.com/avast/retry-go/v4"
	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/boyski/audited-objects/pkg/cmdaction"
	"github.com/boyski/audited-objects/pkg/dcode"
	"github.com/boyski/audited-objects/pkg/moment"
	"github.com/boyski/audited-objects/pkg/pathaction"
	"github.com/boyski/audited-objects/pkg/pathstate"
	"github.com/boyski/audited-objects/pkg/roadmap"
)

// Result is the outcome of one Shop call, mirroring the original's shop_e.
type Result int

const (
	Off Result = iota
	Recycled
	NoMatch
	NoMatchAgg
	MustRun
	MustRunAgg
	ShopErr
)

func (r Result) String() string {
	switch r {
	case Off:
		return "OFF"
	case Recycled:
		return "RECYCLED"
	case NoMatch:
		return "NOMATCH"
	case NoMatchAgg:
		return "NOMATCH_AGG"
	case MustRun:
		return "MUSTRUN"
	case MustRunAgg:
		return "MUSTRUN_AGG"
	case ShopErr:
		return "ERR"
	default:
		return "UNKNOWN"
	}
}

// BlobFetcher retrieves a target's content for writing to the local
// filesystem during materialization (e.g. from a local pkg/gitstore.Store
// or the build server), addressed by the target's recorded PathState.
type BlobFetcher interface {
	Fetch(ctx context.Context, ps *pathstate.State) ([]byte, error)
}

// Engine runs the shopping algorithm against one opened roadmap.
type Engine struct {
	rm       *roadmap.Roadmap
	ignoreRE *regexp.Regexp // nil means nothing is ignored

	fetch BlobFetcher
	fs    afero.Fs

	algo                  dcode.Algorithm
	mmapThreshold         int64
	precisionDigits       int
	keepOriginalDatestamp bool

	recycled int64
}

// NewEngine builds a shopping Engine bound to an opened roadmap.
// ignoreRE (Shop.Ignore.Path.RE) may be nil to mean "ignore nothing".
func NewEngine(rm *roadmap.Roadmap, ignoreRE *regexp.Regexp, fetch BlobFetcher, fs afero.Fs, algo dcode.Algorithm, mmapThreshold int64, precisionDigits int, keepOriginalDatestamp bool) *Engine {
	return &Engine{
		rm: rm, ignoreRE: ignoreRE, fetch: fetch, fs: fs,
		algo: algo, mmapThreshold: mmapThreshold, precisionDigits: precisionDigits,
		keepOriginalDatestamp: keepOriginalDatestamp,
	}
}

// RecycledCount returns the number of targets reused or downloaded across
// every Shop call this Engine has serviced (the original's shop_get_count).
func (e *Engine) RecycledCount() int64 { return atomic.LoadInt64(&e.recycled) }

// --- PTX bookkeeping -----------------------------------------------------

// ptxEntry tracks whether a PTX has been "evaluated" (compared against
// at least one prerequisite bundle). Survival is tracked by the entry's
// mere presence in ptxDict.entries, not by a field on it.
type ptxEntry struct {
	evaluated bool
}

// ptxDict is the Go equivalent of the original's case-insensitive
// ptx_dict: every surviving candidate PTX, keyed by its id (the value
// bundles and targets reference, e.g. "P1" -- not its human-readable
// name), in roadmap insertion order so winner() can honor the server's
// preference policy.
type ptxDict struct {
	order   []string
	entries map[string]*ptxEntry
}

func newPTXDict(ptxs []roadmap.PTX) *ptxDict {
	d := &ptxDict{entries: make(map[string]*ptxEntry, len(ptxs))}
	for _, p := range ptxs {
		if _, exists := d.entries[p.ID]; exists {
			continue
		}
		d.order = append(d.order, p.ID)
		d.entries[p.ID] = &ptxEntry{}
	}
	return d
}

func (d *ptxDict) contains(id string) bool {
	_, ok := d.entries[id]
	return ok
}

// markSeen records that id was compared against at least one bundle.
// Named after the original's _shop_ptx_mark_as_seen, which achieves this
// by lower-casing the dict key; Go just flips a bool.
func (d *ptxDict) markSeen(id string) {
	if e, ok := d.entries[id]; ok {
		e.evaluated = true
	}
}

func (d *ptxDict) invalidate(id string) { delete(d.entries, id) }

func (d *ptxDict) count() int { return len(d.entries) }

// winner returns the first still-present, evaluated PTX id in roadmap
// insertion order -- "surviving the war is not enough; you must also
// show evidence of having fought," per the original's comment on
// _shop_ptx_winner.
func (d *ptxDict) winner() (id string, ok bool) {
	for _, k := range d.order {
		if e, present := d.entries[k]; present && e.evaluated {
			return k, true
		}
	}
	return "", false
}

// --- shopping --------------------------------------------------------------

// Shop attempts to find a build-avoidance opportunity for ca, whose Line
// must already be set. If a winning PTX is found, its targets are
// recorded as synthetic target PathActions on ca and, if getfiles is
// true, materialized onto the local filesystem.
func (e *Engine) Shop(ctx context.Context, ca *cmdaction.CmdAction, getfiles bool) (Result, error) {
	ptxs, err := e.rm.PTXs()
	if err != nil {
		return ShopErr, fmt.Errorf("shop: reading PTX table: %w", err)
	}
	dict := newPTXDict(ptxs)

	line := ca.Line()
	cmdIndexes, err := e.rm.CmdIndexes(line)
	if err != nil {
		return ShopErr, fmt.Errorf("shop: looking up %q: %w", line, err)
	}

	result := NoMatch
	var winCmd, winID string

	// It's possible for more than one recorded cmdindex to share a
	// command line; try each in turn until one recycles.
	for _, cmdix := range cmdIndexes {
		rec, err := e.rm.CmdRecord(cmdix)
		if err != nil {
			return ShopErr, fmt.Errorf("shop: cmd record %s: %w", cmdix, err)
		}

		if !rec.HasTarget {
			// e.g. "echo blah blah" -- nothing to recycle, must run.
			if rec.Aggregated {
				return MustRunAgg, nil
			}
			return MustRun, nil
		}
		if rec.HasChildren {
			// Shopping only happens at the leaves of the command tree.
			return MustRun, nil
		}
		if dict.count() == 0 {
			result = NoMatch
			continue
		}

		if err := e.comparePrereqs(dict, ca, cmdix); err != nil {
			return ShopErr, err
		}

		if dict.count() > 0 {
			if id, ok := dict.winner(); ok {
				winCmd, winID = cmdix, id
				result = Recycled
				break
			}
		}
		if rec.Aggregated {
			result = NoMatchAgg
		} else {
			result = NoMatch
		}
	}

	if result != Recycled {
		return result, nil
	}

	if err := e.collectTargets(ca, winCmd, winID); err != nil {
		return ShopErr, err
	}
	if getfiles {
		if err := e.materializeTargets(ctx, ca); err != nil {
			return ShopErr, err
		}
	}
	ca.Recycled = winID
	return Recycled, nil
}

// statCache remembers the most recently lstat'd local path so that
// consecutive pskeys in a bundle naming the same file (common: several
// historical PTXes recorded the same prerequisite) don't pay for a
// redundant stat or dcode hash, per spec.md §4.5's explicit optimization
// note ("cache the most recently statted local PS keyed by its path").
type statCache struct {
	path string
	ps   *pathstate.State
}

func (e *Engine) comparePrereqs(dict *ptxDict, ca *cmdaction.CmdAction, cmdix string) error {
	bundles, err := e.rm.Prerequisites(cmdix)
	if err != nil {
		return fmt.Errorf("shop: prerequisites for %s: %w", cmdix, err)
	}

	var cache statCache

	// Bundles are member-first by server convention; comparing them in
	// roadmap order lets a volatile member source fail fast before the
	// engine pays for hashing an unchanging system header.
	for _, bundle := range bundles {
		if dict.count() == 0 {
			break
		}

		stillEligible := false
		for _, ptxKey := range bundle.PTXIDs {
			if dict.contains(ptxKey) {
				stillEligible = true
				dict.markSeen(ptxKey)
			}
		}
		if !stillEligible {
			continue
		}

		for _, pskey := range bundle.PSKeys {
			if dict.count() == 0 {
				break
			}
			if err := e.comparePathState(dict, ca, pskey, bundle.PTXIDs, &cache); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) comparePathState(dict *ptxDict, ca *cmdaction.CmdAction, pskey string, ptxids []string, cache *statCache) error {
	shopped, err := e.rm.PathState(pskey)
	if err != nil {
		return fmt.Errorf("shop: bad PS key %s in roadmap: %w", pskey, err)
	}

	path := shopped.PN.String()
	if e.ignoreRE != nil && e.ignoreRE.MatchString(path) {
		// An ignored path (Shop.Ignore.Path.RE) never participates in
		// matching at all -- it's recorded purely so a recycled CA's
		// pathcode signature still reflects it.
		ca.AddRaw(&pathaction.Action{Op: pathaction.READ, Call: "shop", State: shopped, Member: true})
		return nil
	}

	if cache.path != path {
		live, statErr := pathstate.FromLstat(shopped.PN)
		if statErr != nil {
			// Missing locally is itself a mismatch, not a fatal error.
			live = pathstate.Unlink(shopped.PN)
		} else if shopped.Dcode != "" {
			if d, hashErr := dcode.Compute(path, e.algo, e.mmapThreshold); hashErr == nil {
				live.Dcode = d
			}
		}
		cache.path, cache.ps = path, live
	}

	if reason := pathstate.Diff(shopped, cache.ps, e.precisionDigits); reason != "" {
		for _, ptxKey := range ptxids {
			dict.invalidate(ptxKey)
		}
		return nil
	}

	// The only reason a matched prerequisite is saved at all is so a
	// recycled CA generates the same pathcode signature it would have
	// produced by actually running.
	ca.AddRaw(&pathaction.Action{Op: pathaction.READ, Call: "shop", State: cache.ps, Member: true})
	return nil
}

func (e *Engine) collectTargets(ca *cmdaction.CmdAction, cmdix, winID string) error {
	bundles, err := e.rm.Targets(cmdix)
	if err != nil {
		return fmt.Errorf("shop: targets for %s: %w", cmdix, err)
	}
	for _, bundle := range bundles {
		if !lo.Contains(bundle.PTXIDs, winID) {
			continue
		}
		for _, pskey := range bundle.PSKeys {
			tgt, err := e.rm.PathState(pskey)
			if err != nil {
				return fmt.Errorf("shop: bad target key %s in roadmap: %w", pskey, err)
			}
			op := pathaction.CREAT
			switch tgt.DataType {
			case pathstate.Link:
				op = pathaction.LINK
			case pathstate.Symlink:
				op = pathaction.SYMLINK
			case pathstate.Unlinked:
				op = pathaction.UNLINK
			case pathstate.Directory:
				op = pathaction.MKDIR
			}
			ca.AddRaw(&pathaction.Action{Op: op, Call: "shop", State: tgt, Uploadable: true, Member: true})
		}
		break // once we've reached the winner, we're done
	}
	return nil
}

func (e *Engine) materializeTargets(ctx context.Context, ca *cmdaction.CmdAction) error {
	// Coalescence here relies on *file* times rather than *op* times
	// since every target is a dummy PA -- so repeated writes to the same
	// path resolve to the last-recorded version, matching the original.
	ca.Coalesce(e.algo)

	for _, pa := range ca.Cooked() {
		if !pa.Uploadable {
			continue
		}
		if err := e.materializeOne(ctx, pa); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) materializeOne(ctx context.Context, pa *pathaction.Action) error {
	path := pa.Abs()
	sps := pa.State

	switch pa.Op {
	case pathaction.UNLINK:
		if exists, _ := afero.Exists(e.fs, path); exists {
			return e.fs.Remove(path)
		}
		return nil
	case pathaction.LINK:
		return e.materializeLink(sps, path)
	case pathaction.SYMLINK:
		return e.materializeSymlink(sps, path)
	case pathaction.MKDIR:
		return e.materializeDir(sps, path)
	default:
		reused, err := e.tryReuse(path, sps)
		if err != nil {
			return err
		}
		if reused {
			return nil
		}
		return e.materializeFile(ctx, sps, path)
	}
}

// tryReuse reports whether the live file at path already matches sps
// bit-for-bit, skipping a redundant download/write if so. Only regular
// file targets get this shortcut -- link/symlink/unlink/mkdir targets
// always execute their (idempotent) action, per the original's
// _shop_process_target structure.
func (e *Engine) tryReuse(path string, sps *pathstate.State) (bool, error) {
	if exists, _ := afero.Exists(e.fs, path); !exists {
		return false, nil
	}
	live, err := pathstate.FromLstat(sps.PN)
	if err != nil {
		return false, nil
	}
	if sps.Dcode != "" {
		if d, hashErr := dcode.Compute(path, e.algo, e.mmapThreshold); hashErr == nil {
			live.Dcode = d
		}
	}
	if pathstate.Diff(sps, live, e.precisionDigits) != "" {
		return false, nil
	}
	if !e.keepOriginalDatestamp {
		now := moment.Now()
		_ = e.fs.Chtimes(path, now.Time(), now.Time())
	}
	atomic.AddInt64(&e.recycled, 1)
	return true, nil
}

func (e *Engine) materializeFile(ctx context.Context, sps *pathstate.State, path string) error {
	if sps.Size == 0 {
		return e.writeFile(path, nil, sps.Mode)
	}

	var data []byte
	err := retry.Do(func() error {
		var fetchErr error
		data, fetchErr = e.fetch.Fetch(ctx, sps)
		return fetchErr
	}, retry.Context(ctx), retry.Attempts(3))
	if err != nil {
		return fmt.Errorf("shop: fetching %s: %w", path, err)
	}

	if err := e.writeFile(path, data, sps.Mode); err != nil {
		return err
	}
	atomic.AddInt64(&e.recycled, 1)
	return nil
}

func (e *Engine) writeFile(path string, data []byte, mode uint32) error {
	if err := e.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("shop: mkdir for %s: %w", path, err)
	}
	if err := afero.WriteFile(e.fs, path, data, os.FileMode(mode)); err != nil {
		return fmt.Errorf("shop: writing %s: %w", path, err)
	}
	return nil
}

func (e *Engine) materializeDir(sps *pathstate.State, path string) error {
	if exists, _ := afero.Exists(e.fs, path); exists {
		return nil
	}
	if err := e.fs.MkdirAll(path, os.FileMode(sps.Mode)); err != nil {
		return fmt.Errorf("shop: mkdir %s: %w", path, err)
	}
	return e.fs.Chmod(path, os.FileMode(sps.Mode))
}

// materializeLink and materializeSymlink use the os package directly
// rather than afero.Fs: afero's Fs interface has no Link/Symlink/Readlink
// methods (hardlinks and symlinks aren't portably expressible across its
// backends), so this one corner of materialization isn't abstracted the
// way regular-file and directory targets are.
func (e *Engine) materializeLink(sps *pathstate.State, path string) error {
	target := sps.PN2.String()
	if err := e.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("shop: mkdir for link %s: %w", path, err)
	}
	// Too much work to verify an existing link points at the right
	// file(s); unconditionally relink, matching the original's rationale.
	_ = os.Remove(path)
	if err := os.Link(target, path); err != nil {
		return fmt.Errorf("shop: linking %s -> %s: %w", path, target, err)
	}
	return nil
}

func (e *Engine) materializeSymlink(sps *pathstate.State, path string) error {
	target := sps.Target
	if existing, err := os.Readlink(path); err == nil {
		if existing == target {
			return nil // already correct; don't disturb its timestamp
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("shop: removing stale symlink %s: %w", path, err)
		}
	} else if err := e.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("shop: mkdir for symlink %s: %w", path, err)
	}
	if err := os.Symlink(target, path); err != nil {
		return fmt.Errorf("shop: symlinking %s -> %s: %w", path, target, err)
	}
	return nil
}
