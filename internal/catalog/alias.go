package catalog

import "sort"

// Legacy profile ids kept so persisted selections from older releases keep
// validating. One legacy id may map to several current profiles (the old
// explorer bundle was split). The table is consulted once at every public
// entry point; internal code only ever sees canonical ids.
var legacyAliases = map[string][]string{
	"kaspad":         {"kaspa-node"},
	"kaspa-miner":    {"kaspa-stratum"},
	"explorer-stack": {"kaspa-indexer", "kaspa-rest-server", "kaspa-explorer"},
}

// Migration records one applied alias rewrite.
type Migration struct {
	From string
	To   []string
}

// Canonicalize rewrites legacy ids to their current equivalents, preserving
// first-seen order and dropping duplicates. Unknown ids pass through
// untouched; they are the validator's problem, not the alias table's.
func Canonicalize(ids []string) ([]string, []Migration) {
	var out []string
	var migrations []Migration
	seen := make(map[string]bool, len(ids))

	add := func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	for _, id := range ids {
		targets, legacy := legacyAliases[id]
		if !legacy {
			add(id)
			continue
		}
		migrations = append(migrations, Migration{From: id, To: append([]string(nil), targets...)})
		for _, target := range targets {
			add(target)
		}
	}
	return out, migrations
}

// LegacyIDs returns the known legacy ids, sorted.
func LegacyIDs() []string {
	out := make([]string, 0, len(legacyAliases))
	for id := range legacyAliases {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
