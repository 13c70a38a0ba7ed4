package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a tool or store failure. The set is closed: every error
// surfaced by this module carries exactly one Kind.
//
// Kind implements error so callers can branch with errors.Is:
//
//	if errors.Is(err, docstore.KindNotFound) { ... }
type Kind string

const (
	KindMissingParameter Kind = "missing_parameter"
	KindInvalidParameter Kind = "invalid_parameter"
	KindAuthFailure      Kind = "auth_failure"
	KindNotFound         Kind = "not_found"
	KindAlreadyExists    Kind = "already_exists"
	KindStore            Kind = "store_error"
	KindCancelled        Kind = "cancelled"
)

func (k Kind) Error() string { return string(k) }

// Retryable reports whether repeating the same call might succeed.
func (k Kind) Retryable() bool {
	return k == KindCancelled
}

// Error is the structured failure returned by tools and store backends.
type Error struct {
	Kind Kind
	// Tool is the tool name, filled in by the dispatcher.
	Tool string
	// Op names the store operation, e.g. "read item".
	Op string
	// Param is the offending argument for parameter errors.
	Param string
	// Status is the store's status code when one was returned.
	Status int
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Tool != "" {
		b.WriteString(e.Tool)
		b.WriteString(": ")
	}
	switch e.Kind {
	case KindMissingParameter:
		fmt.Fprintf(&b, "missing required parameter %q", e.Param)
	case KindInvalidParameter:
		fmt.Fprintf(&b, "invalid parameter %q", e.Param)
	default:
		if e.Op != "" {
			b.WriteString(e.Op)
			b.WriteString(": ")
		}
		b.WriteString(string(e.Kind))
		if e.Status != 0 {
			fmt.Fprintf(&b, " (status %d)", e.Status)
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind of err. Context errors map to KindCancelled;
// anything unclassified is KindStore.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindStore
}

// MissingParameter reports an absent or empty required argument.
func MissingParameter(name string) *Error {
	return &Error{Kind: KindMissingParameter, Param: name}
}

// InvalidParameter reports an argument that is present but unusable.
func InvalidParameter(name string, err error) *Error {
	return &Error{Kind: KindInvalidParameter, Param: name, Err: err}
}

// Errorf builds an Error of the given kind for op.
func Errorf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap classifies err for op. Errors that are already *Error keep their
// kind and gain op if they had none; context errors become KindCancelled.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Op != "" {
			return err
		}
		cp := *e
		cp.Op = op
		return &cp
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindCancelled, Op: op, Err: err}
	}
	return &Error{Kind: KindStore, Op: op, Err: err}
}

// FromStatus classifies an HTTP-style status code returned by a store.
// Conflicts only mean AlreadyExists for container creation; a conflicting
// item write is an ordinary store error.
func FromStatus(op string, status int, err error) *Error {
	kind := KindStore
	switch status {
	case 401, 403:
		kind = KindAuthFailure
	case 404:
		kind = KindNotFound
	case 409:
		if op == OpCreateContainer {
			kind = KindAlreadyExists
		}
	}
	return &Error{Kind: kind, Op: op, Status: status, Err: err}
}

// Store operation names used in error messages.
const (
	OpResolve         = "resolve client"
	OpListDatabases   = "list databases"
	OpListContainers  = "list containers"
	OpReadContainer   = "read container"
	OpCreateContainer = "create container"
	OpCreateItem      = "create item"
	OpReadItem        = "read item"
	OpQueryItems      = "query items"
)

// Redact replaces every occurrence of the given secrets in msg.
func Redact(msg string, secrets ...string) string {
	for _, s := range secrets {
		if s == "" {
			continue
		}
		msg = strings.ReplaceAll(msg, s, "[REDACTED]")
	}
	return msg
}

type redactedError struct {
	msg string
	err error
}

func (r *redactedError) Error() string { return r.msg }
func (r *redactedError) Unwrap() error { return r.err }

// RedactError returns err with the given secrets removed from its message.
// errors.Is/As still see the original chain.
func RedactError(err error, secrets ...string) error {
	if err == nil {
		return nil
	}
	msg := Redact(err.Error(), secrets...)
	if msg == err.Error() {
		return err
	}
	return &redactedError{msg: msg, err: err}
}
