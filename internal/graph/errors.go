package graph

import (
	"errors"
	"strings"
)

var (
	ErrConflictingScope        = errors.New("conflicting scope: choose either a workspace or global")
	ErrInvalidMeta             = errors.New("invalid meta: not a JSON document")
	ErrUnsupportedExportFormat = errors.New("unsupported export format")
	ErrBackendUnavailable      = errors.New("graph backend unavailable")
)

// OpError records the operation, scope and offending id of a failure.
type OpError struct {
	Op    string
	Scope string
	ID    string
	Err   error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString("graph ")
	b.WriteString(e.Op)
	if e.Scope != "" {
		b.WriteString(" [")
		b.WriteString(e.Scope)
		b.WriteString("]")
	}
	if e.ID != "" {
		b.WriteString(" ")
		b.WriteString(e.ID)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *OpError) Unwrap() error { return e.Err }

func opError(op string, scope Scope, id string, err error) error {
	if err == nil {
		return nil
	}
	var oe *OpError
	if errors.As(err, &oe) && oe.Op == op {
		return err
	}
	return &OpError{Op: op, Scope: scope.String(), ID: id, Err: err}
}

// Kind returns a stable wire name for the sentinel err wraps, or "" if none.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrConflictingScope):
		return "conflicting_scope"
	case errors.Is(err, ErrInvalidMeta):
		return "invalid_meta"
	case errors.Is(err, ErrUnsupportedExportFormat):
		return "unsupported_export_format"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	}
	return ""
}

// SentinelForKind is the inverse of Kind.
func SentinelForKind(kind string) (error, bool) {
	switch kind {
	case "conflicting_scope":
		return ErrConflictingScope, true
	case "invalid_meta":
		return ErrInvalidMeta, true
	case "unsupported_export_format":
		return ErrUnsupportedExportFormat, true
	case "backend_unavailable":
		return ErrBackendUnavailable, true
	}
	return nil, false
}
