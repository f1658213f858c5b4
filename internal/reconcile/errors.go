package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"kasaio/internal/generate"
	"kasaio/internal/resolve"
)

// Kind groups reconciliation failures by what the caller can do about them.
type Kind string

const (
	// KindValidation means the requested selection or settings are invalid.
	// Nothing was changed.
	KindValidation Kind = "validation"
	// KindStorage means the snapshot store or state file failed before any
	// engine mutation.
	KindStorage Kind = "storage"
	// KindEngine means the container engine rejected an apply step. The run
	// was rolled back.
	KindEngine Kind = "engine"
	// KindConcurrency means another reconciliation was already in progress.
	KindConcurrency Kind = "concurrency"
	// KindManualRecovery means both the apply and its rollback failed. The
	// installation needs operator attention before the next run.
	KindManualRecovery Kind = "manual-recovery"
)

// Error is a classified reconciliation failure.
type Error struct {
	Kind   Kind
	Issues []resolve.Issue       // populated for selection validation failures
	Fields []generate.FieldError // populated for settings validation failures
	Hint   string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s error", e.Kind)
	switch {
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case len(e.Issues) > 0:
		fmt.Fprintf(&b, ": %s", e.Issues[0].Message)
		if n := len(e.Issues); n > 1 {
			fmt.Fprintf(&b, " (and %d more)", n-1)
		}
	case len(e.Fields) > 0:
		fmt.Fprintf(&b, ": %s", e.Fields[0].Error())
		if n := len(e.Fields); n > 1 {
			fmt.Fprintf(&b, " (and %d more)", n-1)
		}
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a reconcile.Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func validationError(issues []resolve.Issue) *Error {
	return &Error{Kind: KindValidation, Issues: issues, Hint: "fix the reported profile selection and retry"}
}

func settingsError(fields []generate.FieldError) *Error {
	return &Error{Kind: KindValidation, Fields: fields, Hint: "fix the reported settings and retry"}
}

func storageError(err error) *Error {
	return &Error{Kind: KindStorage, Err: err, Hint: "no changes were applied"}
}

func engineError(err error, snapshotID string) *Error {
	return &Error{
		Kind: KindEngine,
		Err:  err,
		Hint: fmt.Sprintf("changes were rolled back to snapshot %s", snapshotID),
	}
}

func manualRecoveryError(applyErr, rollbackErr error, snapshotID string) *Error {
	return &Error{
		Kind: KindManualRecovery,
		Err:  errors.Join(applyErr, rollbackErr),
		Hint: fmt.Sprintf("automatic rollback failed, restore snapshot %s manually with the backup restore command", snapshotID),
	}
}
