// Package roadmap decodes the CDB-format roadmap database the server
// ships per build: the candidate PTX (Product Transaction) table, the
// cmdline-to-cmdindex lookup, per-command prerequisite/target bundles,
// and the PathState snapshots those bundles reference. See spec.md §3
// "Roadmap" and original_source/src/shop.c for the key-namespace and
// bundle-parsing conventions this package reproduces.
package roadmap

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/boyski/audited-objects/pkg/cdb"
	"github.com/boyski/audited-objects/pkg/pathname"
	"github.com/boyski/audited-objects/pkg/pathstate"
	"github.com/boyski/audited-objects/pkg/radix"
)

const (
	ptxKey       = "X"   // every PTX table entry is a value under this one literal key
	pskeyListSep = "+"   // FS2 in the original: separates a pskeys list, e.g. "S1+S2+S3"
	pskeyRangeSep = "-"  // separates a compact range, e.g. "S1-4"
	fs1           = "\x01"
)

// ResolvePN resolves a roadmap-relative path (as recorded in a PathState's
// trailing relative-path field) to a fully qualified pathname.Name,
// anchored at the project base the caller is currently shopping under.
type ResolvePN func(relative string) pathname.Name

// Roadmap is an opened, queryable roadmap file.
type Roadmap struct {
	db      *cdb.DB
	resolve ResolvePN
}

// Open reads and parses the roadmap file at path.
func Open(path string, resolve ResolvePN) (*Roadmap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("roadmap: read %s: %w", path, err)
	}
	db, err := cdb.Open(data)
	if err != nil {
		return nil, fmt.Errorf("roadmap: parse %s: %w", path, err)
	}
	return &Roadmap{db: db, resolve: resolve}, nil
}

// PTX is one candidate Product Transaction: a historical build the
// shopping engine can potentially recycle outputs from.
type PTX struct {
	Name string
	ID   string
}

// PTXs returns every candidate PTX, in the insertion (server-assigned
// preference) order the roadmap encodes them in.
func (r *Roadmap) PTXs() ([]PTX, error) {
	vals, err := r.db.FindAll(ptxKey)
	if err != nil {
		return nil, fmt.Errorf("roadmap: reading PTX table: %w", err)
	}
	ptxs := make([]PTX, 0, len(vals))
	for _, v := range vals {
		name, id, ok := strings.Cut(v, "=")
		if !ok {
			return nil, fmt.Errorf("roadmap: malformed PTX entry %q", v)
		}
		ptxs = append(ptxs, PTX{Name: name, ID: id})
	}
	return ptxs, nil
}

// CmdIndexes returns every cmdindex recorded under the literal command
// line, in the order the roadmap lists them (a line may have been run
// more than once across recorded builds).
func (r *Roadmap) CmdIndexes(line string) ([]string, error) {
	return r.db.FindAll(line)
}

// CmdRecord is the per-cmdindex summary: `<pccode>|<pathcode>|<hastgt>|<aggregated>|<kids>|<duration>|<rwd>`.
// HasChildren reflects presence, not count: per spec.md §4.5b ("if kids
// is not null -> command has children"), the roadmap never records how
// many, only whether the server considers this command a parent.
type CmdRecord struct {
	PCcode      string        `mapstructure:"pccode"`
	Pathcode    string        `mapstructure:"pathcode"`
	HasTarget   bool          `mapstructure:"hastgt"`
	Aggregated  bool          `mapstructure:"aggregated"`
	HasChildren bool          `mapstructure:"-"`
	Duration    time.Duration `mapstructure:"duration"`
	RWD         string        `mapstructure:"rwd"`
}

var cmdRecordFields = []string{"pccode", "pathcode", "hastgt", "aggregated", "kids", "duration", "rwd"}

// CmdRecord decodes the summary record for cmdindex. Per spec.md's note
// that a CA with hastgt=false always returns MUSTRUN, HasTarget is the
// first thing a caller should check.
func (r *Roadmap) CmdRecord(cmdindex string) (*CmdRecord, error) {
	raw, ok, err := r.db.Find(cmdindex)
	if err != nil {
		return nil, fmt.Errorf("roadmap: reading cmdindex %s: %w", cmdindex, err)
	}
	if !ok {
		return nil, fmt.Errorf("roadmap: unknown cmdindex %s", cmdindex)
	}
	fields := strings.Split(raw, fs1)
	if len(fields) != len(cmdRecordFields) {
		return nil, fmt.Errorf("roadmap: cmdindex %s: want %d fields, got %d", cmdindex, len(cmdRecordFields), len(fields))
	}
	m := make(map[string]interface{}, len(fields))
	for i, name := range cmdRecordFields {
		m[name] = fields[i]
	}
	// duration is recorded as a bare decimal-seconds string; append the
	// unit so mapstructure's duration hook (time.ParseDuration) applies.
	m["duration"] = fields[5] + "s"
	// kids is excluded from the decoded map (see CmdRecord.HasChildren's
	// doc comment) and handled directly below instead.
	delete(m, "kids")

	var rec CmdRecord
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		Result:           &rec,
	})
	if err != nil {
		return nil, fmt.Errorf("roadmap: building decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("roadmap: decoding cmdindex %s: %w", cmdindex, err)
	}
	rec.HasChildren = fields[4] != radix.NullField
	return &rec, nil
}

// Bundle is one prerequisite or target association: a set of pskeys
// (already expanded from any compact range syntax) bound to the PTX ids
// in which they hold.
type Bundle struct {
	PSKeys []string
	PTXIDs []string
}

// Prerequisites returns every prerequisite bundle for cmdindex (the
// `<cmdindex` multi-value key).
func (r *Roadmap) Prerequisites(cmdindex string) ([]Bundle, error) {
	return r.bundles("<" + cmdindex)
}

// Targets returns every target bundle for cmdindex (the `>cmdindex`
// multi-value key).
func (r *Roadmap) Targets(cmdindex string) ([]Bundle, error) {
	return r.bundles(">" + cmdindex)
}

func (r *Roadmap) bundles(key string) ([]Bundle, error) {
	vals, err := r.db.FindAll(key)
	if err != nil {
		return nil, fmt.Errorf("roadmap: reading bundle %s: %w", key, err)
	}
	bundles := make([]Bundle, 0, len(vals))
	for _, v := range vals {
		pskeysField, ptxField, ok := strings.Cut(v, fs1)
		if !ok {
			return nil, fmt.Errorf("roadmap: malformed bundle %q", v)
		}
		var keys []string
		for _, tok := range strings.Split(pskeysField, pskeyListSep) {
			if tok == "" {
				continue
			}
			expanded, err := ExpandPSKey(tok)
			if err != nil {
				return nil, err
			}
			keys = append(keys, expanded...)
		}
		bundles = append(bundles, Bundle{
			PSKeys: keys,
			PTXIDs: strings.Split(ptxField, ","),
		})
	}
	return bundles, nil
}

// ExpandPSKey expands one pskey token, which is either a plain key
// ("S7") or a compact range ("S1-4"): a run of uppercase letters
// (the namespace prefix) followed by a base-36 numeric range, inclusive,
// grounded on original_source/src/shop.c's pskey-range loop.
func ExpandPSKey(tok string) ([]string, error) {
	dash := strings.Index(tok, pskeyRangeSep)
	if dash < 0 {
		return []string{tok}, nil
	}
	prefixEnd := 0
	for prefixEnd < len(tok) && isUpperAlpha(tok[prefixEnd]) {
		prefixEnd++
	}
	if prefixEnd >= dash {
		return nil, fmt.Errorf("roadmap: malformed pskey range %q", tok)
	}
	prefix := tok[:prefixEnd]
	first, err := radix.ParseUint(tok[prefixEnd:dash], 36)
	if err != nil {
		return nil, fmt.Errorf("roadmap: malformed pskey range %q: %w", tok, err)
	}
	last, err := radix.ParseUint(tok[dash+1:], 36)
	if err != nil {
		return nil, fmt.Errorf("roadmap: malformed pskey range %q: %w", tok, err)
	}
	if last < first {
		return nil, fmt.Errorf("roadmap: malformed pskey range %q: reversed bounds", tok)
	}
	keys := make([]string, 0, last-first+1)
	for i := first; i <= last; i++ {
		keys = append(keys, prefix+radix.FormatUint(i, 36))
	}
	return keys, nil
}

func isUpperAlpha(b byte) bool { return b >= 'A' && b <= 'Z' }

// PathState decodes and resolves the PathState recorded under pskey.
func (r *Roadmap) PathState(pskey string) (*pathstate.State, error) {
	raw, ok, err := r.db.Find(pskey)
	if err != nil {
		return nil, fmt.Errorf("roadmap: reading pskey %s: %w", pskey, err)
	}
	if !ok {
		return nil, fmt.Errorf("roadmap: unknown pskey %s", pskey)
	}
	fields := strings.Split(raw, fs1)
	if len(fields) != 8 {
		return nil, fmt.Errorf("roadmap: pskey %s: malformed PS record (%d fields)", pskey, len(fields))
	}
	relative, err := radix.Unescape(fields[7])
	if err != nil {
		return nil, fmt.Errorf("roadmap: pskey %s: malformed relative path: %w", pskey, err)
	}
	pn := r.resolve(relative)
	ps, err := pathstate.DecodeCSV(fields, pn)
	if err != nil {
		return nil, fmt.Errorf("roadmap: decoding pskey %s: %w", pskey, err)
	}
	return ps, nil
}
