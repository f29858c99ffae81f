package config

import "strings"

// KnownProperties lists every property name spec.md §6's table
// recognizes (case folded to lower for the Unknown() comparison). A
// property read from file/env/flag that isn't in this set is reported
// as an UnknownPropertyKind warning rather than silently accepted.
var KnownProperties = []string{
	"Identity.Hash",
	"MMap.Larger.Than",
	"Dcode.Cache.Secs",
	"Shop.Time.Precision",
	"Aggregation.Prog.Break.RE",
	"Aggregation.Line.Break.RE",
	"Aggregation.Prog.Strong.RE",
	"Aggregation.Line.Strong.RE",
	"Aggregation.Prog.Weak.RE",
	"Aggregation.Line.Weak.RE",
	"Audit.Ignore.Path.RE",
	"Audit.Ignore.Prog.RE",
	"Shop.Ignore.Path.RE",
	"Base.Dir",
	"Project.Name",
	"Project.Label",
	"Members.Only",
	"Absolute.Paths",
	"Upload.Only",
	"Download.Only",
	"Execute.Only",
	"Audit.Only",
	"Leave.Roadmap",
	"Reuse.Roadmap",
	"Original.Datestamp",
	"Strict.Audit",
	"Strict.Download",
	"Strict.Upload",
	"Strict.Error",
	"Verbosity",
}

// KnownSet returns KnownProperties as a lower-cased lookup set, the
// shape Config.Unknown expects.
func KnownSet() map[string]struct{} {
	set := make(map[string]struct{}, len(KnownProperties))
	for _, name := range KnownProperties {
		set[strings.ToLower(name)] = struct{}{}
	}
	return set
}
