package reconcile

import (
	"encoding/json"
	"fmt"
	"strings"

	"kasaio/internal/check"
)

// Phase tracks where a reconciliation run is in its lifecycle. Phases up to
// and including Diffing make no changes; Applying is the only mutating
// phase, and it ends in exactly one of Committed, RolledBack or
// ManualRecovery.
type Phase uint8

const (
	PhaseIdle Phase = iota + 1
	PhaseValidating
	PhaseSnapshotting
	PhaseGenerating
	PhaseDiffing
	PhaseApplying
	PhaseCommitted
	PhaseRolledBack
	PhaseManualRecovery
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseSnapshotting:
		return "snapshotting"
	case PhaseGenerating:
		return "generating"
	case PhaseDiffing:
		return "diffing"
	case PhaseApplying:
		return "applying"
	case PhaseCommitted:
		return "committed"
	case PhaseRolledBack:
		return "rolled_back"
	case PhaseManualRecovery:
		return "manual_recovery"
	default:
		return "unknown"
	}
}

func (p Phase) IsValid() bool {
	switch p {
	case PhaseIdle, PhaseValidating, PhaseSnapshotting, PhaseGenerating,
		PhaseDiffing, PhaseApplying, PhaseCommitted, PhaseRolledBack, PhaseManualRecovery:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a run in this phase has finished.
func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseCommitted, PhaseRolledBack, PhaseManualRecovery:
		return true
	default:
		return false
	}
}

func (p Phase) Transition(to Phase) Phase {
	ok := false
	switch p {
	case PhaseIdle:
		ok = to == PhaseValidating
	case PhaseValidating:
		ok = to == PhaseSnapshotting || to == PhaseIdle
	case PhaseSnapshotting:
		ok = to == PhaseGenerating || to == PhaseIdle
	case PhaseGenerating:
		ok = to == PhaseDiffing || to == PhaseIdle
	case PhaseDiffing:
		ok = to == PhaseApplying || to == PhaseCommitted || to == PhaseIdle
	case PhaseApplying:
		ok = to == PhaseCommitted || to == PhaseRolledBack || to == PhaseManualRecovery
	case PhaseCommitted, PhaseRolledBack:
		ok = to == PhaseIdle
	case PhaseManualRecovery:
		ok = false
	}
	check.Assertf(ok, "reconcile phase transition: %s -> %s", p, to)
	if !ok {
		return p
	}
	return to
}

func (p Phase) MarshalJSON() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("invalid reconcile phase: %d", p)
	}
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	next, ok := ParsePhase(raw)
	if !ok {
		return fmt.Errorf("invalid reconcile phase: %q", raw)
	}
	*p = next
	return nil
}

func ParsePhase(raw string) (Phase, bool) {
	switch strings.TrimSpace(raw) {
	case "idle":
		return PhaseIdle, true
	case "validating":
		return PhaseValidating, true
	case "snapshotting":
		return PhaseSnapshotting, true
	case "generating":
		return PhaseGenerating, true
	case "diffing":
		return PhaseDiffing, true
	case "applying":
		return PhaseApplying, true
	case "committed":
		return PhaseCommitted, true
	case "rolled_back":
		return PhaseRolledBack, true
	case "manual_recovery":
		return PhaseManualRecovery, true
	default:
		return 0, false
	}
}
