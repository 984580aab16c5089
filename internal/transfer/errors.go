package transfer

import "fmt"

// Kind classifies where in the transfer lifecycle a failure happened.
type Kind string

const (
	KindDiscovery      Kind = "discovery"
	KindRetrieval      Kind = "retrieval"
	KindMalformedInput Kind = "malformed_input"
	KindPublish        Kind = "publish"
	KindSourceDelete   Kind = "source_delete"
	KindAudit          Kind = "audit"
)

// Sentinels for errors.Is matching on Kind alone.
var (
	ErrDiscovery      = &Error{Kind: KindDiscovery}
	ErrRetrieval      = &Error{Kind: KindRetrieval}
	ErrMalformedInput = &Error{Kind: KindMalformedInput}
	ErrPublish        = &Error{Kind: KindPublish}
	ErrSourceDelete   = &Error{Kind: KindSourceDelete}
	ErrAudit          = &Error{Kind: KindAudit}
)

// Error is a classified pipeline failure for one entity or one file.
type Error struct {
	Kind   Kind
	Entity string
	Path   string
	Err    error
}

func (e *Error) Error() string {
	subject := e.Entity
	if e.Path != "" {
		subject = e.Path
	}
	if e.Err == nil {
		return fmt.Sprintf("%s error", e.Kind)
	}
	return fmt.Sprintf("%s failed for %s: %v", e.Kind, subject, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same Kind that carries no details, so the
// package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Entity == "" && t.Path == "" && t.Err == nil && t.Kind == e.Kind
}

// Fatal reports whether the failure stopped the file or entity branch it belongs to.
// Only a failed source delete leaves an already completed transfer standing.
func (e *Error) Fatal() bool {
	return e.Kind != KindSourceDelete && e.Kind != KindAudit
}

// NewAuditError classifies a failed audit append for reporting.
func NewAuditError(subject string, err error) *Error {
	return &Error{Kind: KindAudit, Path: subject, Err: err}
}
