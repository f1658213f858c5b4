package resolve

import (
	"fmt"
	"sort"
	"strings"

	"kasaio/internal/catalog"
)

// ServiceOrder is one service slot in the canonical startup order.
type ServiceOrder struct {
	Name         string
	Profile      string
	StartupOrder int
}

// PhaseGroup collects the services of one startup phase, already sorted.
type PhaseGroup struct {
	Phase    catalog.StartupPhase
	Services []ServiceOrder
}

// ResourceSummary aggregates minimum requirements over the resolved set.
type ResourceSummary struct {
	MinCPU       float64 `json:"min_cpu"`
	MinMemoryMiB int64   `json:"min_memory_mib"`
	MinDiskMiB   int64   `json:"min_disk_mib"`
}

// Result is the outcome of validating one selection. It is derived data,
// recomputed on every call and never persisted.
type Result struct {
	Valid    bool
	Errors   []Issue
	Warnings []Issue

	// Resolved is the dependency-closed canonical profile set, sorted.
	Resolved []string
	// Order is the canonical startup order grouped into phases; the
	// reconciliation engine applies additions forward through it and
	// removals backward.
	Order     []PhaseGroup
	Resources ResourceSummary
}

// Issues returns errors and warnings as one list, errors first.
func (r Result) Issues() []Issue {
	out := make([]Issue, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	out = append(out, r.Warnings...)
	return out
}

// Resource warning thresholds. Crossing a threshold warns, never fails:
// operators run undersized test boxes on purpose.
const (
	moderateCPU    = 4
	highCPU        = 8
	moderateMemMiB = 8 * 1024
	highMemMiB     = 16 * 1024
	moderateDisk   = 100 * 1024
	highDiskMiB    = 500 * 1024
)

// ValidateSelection checks a requested profile set end to end: alias
// migration, unknown ids, dependency cycles, prerequisite OR-groups,
// profile and port conflicts, then startup order and resource totals.
// It never mutates anything and may run concurrently with an apply.
func (v *Validator) ValidateSelection(requested []string) Result {
	var res Result

	if len(requested) == 0 {
		res.Errors = append(res.Errors, Issue{
			Code:     CodeEmptySelection,
			Severity: SeverityError,
			Message:  "no profiles selected",
			Hint:     "select at least one profile, e.g. kaspa-node",
		})
		return res
	}

	canonical, migrations := v.cat.Canonicalize(requested)
	for _, m := range migrations {
		res.Warnings = append(res.Warnings, Issue{
			Code:     CodeLegacyProfile,
			Severity: SeverityInfo,
			Profiles: append([]string{m.From}, m.To...),
			Message:  fmt.Sprintf("profile %q is deprecated, using %s", m.From, strings.Join(m.To, ", ")),
		})
	}

	known := canonical[:0:0]
	for _, id := range canonical {
		if _, ok := v.cat.Lookup(id); !ok {
			res.Errors = append(res.Errors, Issue{
				Code:     CodeInvalidProfile,
				Severity: SeverityError,
				Profiles: []string{id},
				Message:  fmt.Sprintf("unknown profile %q", id),
				Hint:     "run `kasaio profile list` for available profiles",
			})
			continue
		}
		known = append(known, id)
	}

	for _, cycle := range v.detectCycles(known) {
		res.Errors = append(res.Errors, Issue{
			Code:     CodeCircularDependency,
			Severity: SeverityError,
			Profiles: cycle,
			Message:  fmt.Sprintf("dependency cycle: %s", strings.Join(cycle, " -> ")),
		})
	}
	if len(res.Errors) > 0 && len(known) == 0 {
		return res
	}

	resolved := v.Resolve(known)
	res.Resolved = resolved
	inSet := make(map[string]bool, len(resolved))
	for _, id := range resolved {
		inSet[id] = true
	}

	// Prerequisites are checked only after dependency closure: a dependency
	// pulled in by another profile satisfies the OR-group.
	for _, id := range resolved {
		p, _ := v.cat.Lookup(id)
		if len(p.Prerequisites) == 0 {
			continue
		}
		satisfied := false
		for _, pre := range p.Prerequisites {
			if inSet[pre] {
				satisfied = true
				break
			}
		}
		if !satisfied {
			res.Errors = append(res.Errors, Issue{
				Code:     CodeMissingPrerequisite,
				Severity: SeverityError,
				Profiles: append([]string{id}, p.Prerequisites...),
				Message:  fmt.Sprintf("profile %s requires one of: %s", id, strings.Join(p.Prerequisites, ", ")),
				Hint:     fmt.Sprintf("add %s to the selection", p.Prerequisites[0]),
			})
		}
	}

	res.Errors = append(res.Errors, v.profileConflicts(resolved, inSet)...)
	res.Errors = append(res.Errors, v.portConflicts(resolved)...)

	res.Order = v.startupOrder(resolved)
	res.Resources = v.sumResources(resolved)
	res.Warnings = append(res.Warnings, resourceWarnings(res.Resources)...)

	res.Valid = len(res.Errors) == 0
	return res
}

// profileConflicts reports each conflicting pair once, in sorted pair order.
func (v *Validator) profileConflicts(resolved []string, inSet map[string]bool) []Issue {
	var issues []Issue
	seen := make(map[string]bool)
	for _, id := range resolved {
		p, _ := v.cat.Lookup(id)
		for _, other := range p.Conflicts {
			if !inSet[other] {
				continue
			}
			a, b := id, other
			if b < a {
				a, b = b, a
			}
			key := a + "\x00" + b
			if seen[key] {
				continue
			}
			seen[key] = true
			issues = append(issues, Issue{
				Code:     CodeProfileConflict,
				Severity: SeverityError,
				Profiles: []string{a, b},
				Message:  fmt.Sprintf("profiles %s and %s are mutually exclusive", a, b),
				Hint:     fmt.Sprintf("deselect either %s or %s", a, b),
			})
		}
	}
	return issues
}

// portConflicts reports exactly one issue per (port, profile pair).
func (v *Validator) portConflicts(resolved []string) []Issue {
	byPort := make(map[int][]string)
	for _, id := range resolved {
		p, _ := v.cat.Lookup(id)
		declared := make(map[int]bool)
		for _, port := range p.Ports() {
			if declared[port] {
				continue // a profile clashing with itself is a catalog bug, not a user error
			}
			declared[port] = true
			byPort[port] = append(byPort[port], id)
		}
	}

	ports := make([]int, 0, len(byPort))
	for port := range byPort {
		ports = append(ports, port)
	}
	sort.Ints(ports)

	var issues []Issue
	for _, port := range ports {
		owners := byPort[port]
		if len(owners) < 2 {
			continue
		}
		sort.Strings(owners)
		for i := 0; i < len(owners); i++ {
			for j := i + 1; j < len(owners); j++ {
				issues = append(issues, Issue{
					Code:     CodePortConflict,
					Severity: SeverityError,
					Profiles: []string{owners[i], owners[j]},
					Port:     port,
					Message:  fmt.Sprintf("profiles %s and %s both expose port %d", owners[i], owners[j], port),
					Hint:     fmt.Sprintf("deselect either %s or %s", owners[i], owners[j]),
				})
			}
		}
	}
	return issues
}

// startupOrder sorts every service in the resolved set by startup order,
// tie-broken by name, and groups the result into phases.
func (v *Validator) startupOrder(resolved []string) []PhaseGroup {
	byPhase := make(map[catalog.StartupPhase][]ServiceOrder)
	for _, id := range resolved {
		p, _ := v.cat.Lookup(id)
		for _, svc := range p.Services {
			byPhase[svc.Phase] = append(byPhase[svc.Phase], ServiceOrder{
				Name:         svc.Name,
				Profile:      id,
				StartupOrder: svc.StartupOrder,
			})
		}
	}

	var groups []PhaseGroup
	for _, phase := range catalog.Phases() {
		services := byPhase[phase]
		if len(services) == 0 {
			continue
		}
		sort.SliceStable(services, func(i, j int) bool {
			if services[i].StartupOrder != services[j].StartupOrder {
				return services[i].StartupOrder < services[j].StartupOrder
			}
			return services[i].Name < services[j].Name
		})
		groups = append(groups, PhaseGroup{Phase: phase, Services: services})
	}
	return groups
}

func (v *Validator) sumResources(resolved []string) ResourceSummary {
	var sum ResourceSummary
	for _, id := range resolved {
		p, _ := v.cat.Lookup(id)
		sum.MinCPU += p.Resources.MinCPU
		sum.MinMemoryMiB += p.Resources.MinMemoryMiB
		sum.MinDiskMiB += p.Resources.MinDiskMiB
	}
	return sum
}

func resourceWarnings(sum ResourceSummary) []Issue {
	var issues []Issue

	switch {
	case sum.MinCPU >= highCPU:
		issues = append(issues, Issue{
			Code: CodeHighCPU, Severity: SeverityWarning,
			Message: fmt.Sprintf("selection needs at least %.0f CPU cores", sum.MinCPU),
		})
	case sum.MinCPU >= moderateCPU:
		issues = append(issues, Issue{
			Code: CodeModerateCPU, Severity: SeverityWarning,
			Message: fmt.Sprintf("selection needs at least %.0f CPU cores", sum.MinCPU),
		})
	}

	switch {
	case sum.MinMemoryMiB >= highMemMiB:
		issues = append(issues, Issue{
			Code: CodeHighMemory, Severity: SeverityWarning,
			Message: fmt.Sprintf("selection needs at least %d MiB of memory", sum.MinMemoryMiB),
		})
	case sum.MinMemoryMiB >= moderateMemMiB:
		issues = append(issues, Issue{
			Code: CodeModerateMemory, Severity: SeverityWarning,
			Message: fmt.Sprintf("selection needs at least %d MiB of memory", sum.MinMemoryMiB),
		})
	}

	switch {
	case sum.MinDiskMiB >= highDiskMiB:
		issues = append(issues, Issue{
			Code: CodeHighDisk, Severity: SeverityWarning,
			Message: fmt.Sprintf("selection needs at least %d MiB of disk", sum.MinDiskMiB),
		})
	case sum.MinDiskMiB >= moderateDisk:
		issues = append(issues, Issue{
			Code: CodeModerateDisk, Severity: SeverityWarning,
			Message: fmt.Sprintf("selection needs at least %d MiB of disk", sum.MinDiskMiB),
		})
	}

	return issues
}
