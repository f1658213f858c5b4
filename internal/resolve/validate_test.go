package resolve

import (
	"testing"

	"kasaio/internal/catalog"
)

// fakeCatalog lets tests build arbitrary profile graphs, including ones the
// shipped catalog forbids (cycles, unknown dependencies).
type fakeCatalog struct {
	profiles map[string]catalog.Profile
	aliases  map[string][]string
}

func (f fakeCatalog) Lookup(id string) (catalog.Profile, bool) {
	p, ok := f.profiles[id]
	return p, ok
}

func (f fakeCatalog) Canonicalize(ids []string) ([]string, []catalog.Migration) {
	var out []string
	var migrations []catalog.Migration
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range ids {
		if targets, ok := f.aliases[id]; ok {
			migrations = append(migrations, catalog.Migration{From: id, To: targets})
			for _, t := range targets {
				add(t)
			}
			continue
		}
		add(id)
	}
	return out, migrations
}

func hasIssue(issues []Issue, code IssueCode) bool {
	for _, issue := range issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}

func countIssues(issues []Issue, code IssueCode) int {
	n := 0
	for _, issue := range issues {
		if issue.Code == code {
			n++
		}
	}
	return n
}

func TestValidateSelection(t *testing.T) {
	v := NewValidator(catalog.Default)

	t.Run("empty selection", func(t *testing.T) {
		res := v.ValidateSelection(nil)
		if res.Valid {
			t.Fatal("empty selection should not validate")
		}
		if !hasIssue(res.Errors, CodeEmptySelection) {
			t.Fatalf("errors = %v, want empty_selection", res.Errors)
		}
	})

	t.Run("unknown profile excluded from graph processing", func(t *testing.T) {
		res := v.ValidateSelection([]string{"kaspa-node", "bogus"})
		if res.Valid {
			t.Fatal("selection with unknown profile should not validate")
		}
		if !hasIssue(res.Errors, CodeInvalidProfile) {
			t.Fatalf("errors = %v, want invalid_profile", res.Errors)
		}
		for _, id := range res.Resolved {
			if id == "bogus" {
				t.Fatal("unknown id leaked into resolved set")
			}
		}
	})

	t.Run("stratum alone misses prerequisite", func(t *testing.T) {
		res := v.ValidateSelection([]string{"kaspa-stratum"})
		if res.Valid {
			t.Fatal("kaspa-stratum alone should not validate")
		}
		if !hasIssue(res.Errors, CodeMissingPrerequisite) {
			t.Fatalf("errors = %v, want missing_prerequisite", res.Errors)
		}
		var issue Issue
		for _, e := range res.Errors {
			if e.Code == CodeMissingPrerequisite {
				issue = e
			}
		}
		wantAlternatives := map[string]bool{"kaspa-node": false, "kaspa-archive-node": false}
		for _, p := range issue.Profiles {
			if _, ok := wantAlternatives[p]; ok {
				wantAlternatives[p] = true
			}
		}
		for alt, found := range wantAlternatives {
			if !found {
				t.Errorf("missing_prerequisite does not name alternative %s: %v", alt, issue.Profiles)
			}
		}
	})

	t.Run("stratum with node validates", func(t *testing.T) {
		res := v.ValidateSelection([]string{"kaspa-stratum", "kaspa-node"})
		if !res.Valid {
			t.Fatalf("errors = %v, want valid", res.Errors)
		}
	})

	t.Run("node and archive node conflict on profile and port", func(t *testing.T) {
		res := v.ValidateSelection([]string{"kaspa-node", "kaspa-archive-node"})
		if res.Valid {
			t.Fatal("conflicting nodes should not validate")
		}
		if countIssues(res.Errors, CodeProfileConflict) != 1 {
			t.Fatalf("profile_conflict count = %d, want 1: %v", countIssues(res.Errors, CodeProfileConflict), res.Errors)
		}
		// Both nodes expose 16110 and 16111: one issue per port per pair.
		if got := countIssues(res.Errors, CodePortConflict); got != 2 {
			t.Fatalf("port_conflict count = %d, want 2: %v", got, res.Errors)
		}
		for _, issue := range res.Errors {
			if issue.Code != CodePortConflict || issue.Port != 16110 {
				continue
			}
			if len(issue.Profiles) != 2 || issue.Profiles[0] != "kaspa-archive-node" || issue.Profiles[1] != "kaspa-node" {
				t.Fatalf("port 16110 conflict names %v", issue.Profiles)
			}
		}
	})

	t.Run("dependencies auto included", func(t *testing.T) {
		res := v.ValidateSelection([]string{"kaspa-explorer", "kaspa-node", "kaspa-indexer"})
		if !res.Valid {
			t.Fatalf("errors = %v, want valid", res.Errors)
		}
		want := map[string]bool{"postgres": false, "kaspa-rest-server": false}
		for _, id := range res.Resolved {
			if _, ok := want[id]; ok {
				want[id] = true
			}
		}
		for id, found := range want {
			if !found {
				t.Errorf("dependency %s not in resolved set %v", id, res.Resolved)
			}
		}
	})

	t.Run("prerequisites never auto included", func(t *testing.T) {
		res := v.ValidateSelection([]string{"kaspa-stratum"})
		for _, id := range res.Resolved {
			if id == "kaspa-node" || id == "kaspa-archive-node" {
				t.Fatalf("prerequisite %s was auto-included", id)
			}
		}
	})

	t.Run("legacy alias migrates with info warning", func(t *testing.T) {
		res := v.ValidateSelection([]string{"kaspad"})
		if !res.Valid {
			t.Fatalf("errors = %v, want valid", res.Errors)
		}
		if !hasIssue(res.Warnings, CodeLegacyProfile) {
			t.Fatalf("warnings = %v, want legacy_profile", res.Warnings)
		}
		if len(res.Resolved) != 1 || res.Resolved[0] != "kaspa-node" {
			t.Fatalf("resolved = %v, want [kaspa-node]", res.Resolved)
		}
	})

	t.Run("one to many legacy alias validates", func(t *testing.T) {
		res := v.ValidateSelection([]string{"explorer-stack", "kaspa-node"})
		if !res.Valid {
			t.Fatalf("errors = %v, want valid", res.Errors)
		}
	})

	t.Run("startup order groups phases and sorts services", func(t *testing.T) {
		res := v.ValidateSelection([]string{"kaspa-explorer", "kaspa-node", "kaspa-indexer"})
		if len(res.Order) == 0 {
			t.Fatal("no startup order produced")
		}
		if res.Order[0].Phase != catalog.PhaseInfra {
			t.Fatalf("first phase = %s, want infra", res.Order[0].Phase)
		}
		infra := res.Order[0].Services
		if infra[0].Name != "postgres" {
			t.Fatalf("infra[0] = %s, want postgres (lowest startup order)", infra[0].Name)
		}
		last := res.Order[len(res.Order)-1]
		if last.Phase != catalog.PhaseApplications {
			t.Fatalf("last phase = %s, want applications", last.Phase)
		}
	})

	t.Run("resource warnings are tiered and never errors", func(t *testing.T) {
		res := v.ValidateSelection([]string{"kaspa-archive-node", "kaspa-indexer", "kaspa-explorer"})
		if !res.Valid {
			t.Fatalf("errors = %v, want valid (resource pressure must not fail validation)", res.Errors)
		}
		if !hasIssue(res.Warnings, CodeHighDisk) {
			t.Fatalf("warnings = %v, want high_disk", res.Warnings)
		}
	})
}

func TestValidateSelectionCycles(t *testing.T) {
	cyclic := fakeCatalog{profiles: map[string]catalog.Profile{
		"a": {ID: "a", Dependencies: []string{"b"}, Services: []catalog.Service{{Name: "a"}}},
		"b": {ID: "b", Dependencies: []string{"c"}, Services: []catalog.Service{{Name: "b"}}},
		"c": {ID: "c", Dependencies: []string{"a"}, Services: []catalog.Service{{Name: "c"}}},
		"d": {ID: "d", Dependencies: []string{"e"}, Services: []catalog.Service{{Name: "d"}}},
		"e": {ID: "e", Dependencies: []string{"d"}, Services: []catalog.Service{{Name: "e"}}},
		"f": {ID: "f", Services: []catalog.Service{{Name: "f"}}},
	}}
	v := NewValidator(cyclic)

	t.Run("cycle names every profile on it", func(t *testing.T) {
		res := v.ValidateSelection([]string{"a"})
		if res.Valid {
			t.Fatal("cyclic selection should not validate")
		}
		var cycle Issue
		for _, e := range res.Errors {
			if e.Code == CodeCircularDependency {
				cycle = e
			}
		}
		if len(cycle.Profiles) != 3 {
			t.Fatalf("cycle profiles = %v, want all of a, b, c", cycle.Profiles)
		}
		want := map[string]bool{"a": false, "b": false, "c": false}
		for _, id := range cycle.Profiles {
			want[id] = true
		}
		for id, found := range want {
			if !found {
				t.Errorf("cycle missing %s: %v", id, cycle.Profiles)
			}
		}
	})

	t.Run("independent cycles reported separately", func(t *testing.T) {
		res := v.ValidateSelection([]string{"a", "d"})
		if got := countIssues(res.Errors, CodeCircularDependency); got != 2 {
			t.Fatalf("circular_dependency count = %d, want 2: %v", got, res.Errors)
		}
	})

	t.Run("same cycle from two entry points reported once", func(t *testing.T) {
		res := v.ValidateSelection([]string{"a", "b"})
		if got := countIssues(res.Errors, CodeCircularDependency); got != 1 {
			t.Fatalf("circular_dependency count = %d, want 1: %v", got, res.Errors)
		}
	})

	t.Run("acyclic profile beside a cycle still resolves", func(t *testing.T) {
		res := v.ValidateSelection([]string{"f"})
		if !res.Valid {
			t.Fatalf("errors = %v, want valid", res.Errors)
		}
	})
}
