package resolve

import "fmt"

// IssueCode is the closed set of validation findings. Callers switch on the
// code; the message and hint are for humans.
type IssueCode string

const (
	CodeEmptySelection      IssueCode = "empty_selection"
	CodeInvalidProfile      IssueCode = "invalid_profile"
	CodeCircularDependency  IssueCode = "circular_dependency"
	CodeMissingPrerequisite IssueCode = "missing_prerequisite"
	CodeProfileConflict     IssueCode = "profile_conflict"
	CodePortConflict        IssueCode = "port_conflict"

	CodeLegacyProfile IssueCode = "legacy_profile"

	CodeModerateCPU    IssueCode = "moderate_cpu"
	CodeHighCPU        IssueCode = "high_cpu"
	CodeModerateMemory IssueCode = "moderate_memory"
	CodeHighMemory     IssueCode = "high_memory"
	CodeModerateDisk   IssueCode = "moderate_disk"
	CodeHighDisk       IssueCode = "high_disk"
)

// Severity of an issue. Only SeverityError blocks a selection.
type Severity uint8

const (
	SeverityError Severity = iota + 1
	SeverityWarning
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Issue is one validation finding.
type Issue struct {
	Code     IssueCode `json:"code"`
	Severity Severity  `json:"-"`
	// Profiles names the profiles involved: the cycle path for
	// circular_dependency, the conflicting pair for conflicts, the
	// OR-group for missing_prerequisite.
	Profiles []string `json:"profiles,omitempty"`
	Port     int      `json:"port,omitempty"`
	Message  string   `json:"message"`
	Hint     string   `json:"hint,omitempty"`
}

func (i Issue) String() string {
	if i.Hint != "" {
		return fmt.Sprintf("%s: %s (%s)", i.Code, i.Message, i.Hint)
	}
	return fmt.Sprintf("%s: %s", i.Code, i.Message)
}
