package catalog

// StartupPhase groups services into the coarse ordering used when applying
// configuration changes: everything in an earlier phase starts before
// anything in a later phase, and stops after it.
type StartupPhase string

const (
	PhaseInfra        StartupPhase = "infra"
	PhaseIndexers     StartupPhase = "indexers"
	PhaseApplications StartupPhase = "applications"
)

// PhaseRank returns the apply-order rank of a phase. Unknown phases sort
// last so a catalog mistake degrades to "start late" instead of a panic.
func PhaseRank(p StartupPhase) int {
	switch p {
	case PhaseInfra:
		return 0
	case PhaseIndexers:
		return 1
	case PhaseApplications:
		return 2
	default:
		return 3
	}
}

// Phases lists all phases in apply order.
func Phases() []StartupPhase {
	return []StartupPhase{PhaseInfra, PhaseIndexers, PhaseApplications}
}

// Service is one container unit owned by exactly one profile.
type Service struct {
	// Name is the container name, stable across reconfigurations.
	Name string
	// Image is the image reference pulled before the container is created.
	Image string
	// Env holds the profile's default environment. User settings override
	// these key by key at generation time.
	Env map[string]string
	// RequiredSecrets lists env keys that must exist at generation time and
	// are filled with generated values when the user supplies none.
	RequiredSecrets []string
	// Ports are the host ports this service publishes. Container port equals
	// host port for every service in the stack.
	Ports []int
	// Phase and StartupOrder define the canonical startup order: phase
	// first, then StartupOrder, then name.
	Phase        StartupPhase
	StartupOrder int
	// DependsOn names services (not profiles) that must be up first, used
	// for compose depends_on wiring inside a phase.
	DependsOn []string
}

// ResourceRequirements describes the minimum and recommended host resources
// for one profile. Memory and disk are in MiB.
type ResourceRequirements struct {
	MinCPU            float64
	MinMemoryMiB      int64
	MinDiskMiB        int64
	RecommendedCPU    float64
	RecommendedMemMiB int64
	RecommendedDisk   int64
}

// Profile is a user-selectable bundle of services.
type Profile struct {
	ID          string
	Description string

	Services []Service

	// Dependencies are hard edges: selecting this profile pulls them in.
	Dependencies []string
	// Prerequisites form a soft OR-group: at least one must be present in
	// the resolved selection, but none is ever auto-included.
	Prerequisites []string
	// Conflicts are mutually exclusive profiles; the relation is symmetric
	// even when only declared on one side.
	Conflicts []string

	Resources ResourceRequirements
}

// Ports returns every host port declared by the profile's services.
func (p Profile) Ports() []int {
	var out []int
	for _, svc := range p.Services {
		out = append(out, svc.Ports...)
	}
	return out
}

// ServiceNames returns the container names owned by the profile, in
// declaration order.
func (p Profile) ServiceNames() []string {
	out := make([]string, 0, len(p.Services))
	for _, svc := range p.Services {
		out = append(out, svc.Name)
	}
	return out
}
