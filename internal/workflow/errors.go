package workflow

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies failures so callers can decide how to surface them
type Kind string

const (
	KindValidation   Kind = "validation"
	KindPermission   Kind = "permission"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindPersistence  Kind = "persistence"
	KindAsset        Kind = "asset"
	KindNotification Kind = "notification"
	KindTimeout      Kind = "timeout"
)

// ErrVersionConflict is returned by the gateway when a conditional save lost a race
var ErrVersionConflict = errors.New("post was modified concurrently")

// Error is the error type returned by workflow operations
type Error struct {
	Kind   Kind
	Op     string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Reason != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	case e.Reason != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports an unmet transition precondition
func Validation(op, reason string) error {
	return &Error{Kind: KindValidation, Op: op, Reason: reason}
}

// Permission reports an actor that may not perform op
func Permission(op, reason string) error {
	return &Error{Kind: KindPermission, Op: op, Reason: reason}
}

// NotFound reports a missing post or notification
func NotFound(op, reason string) error {
	return &Error{Kind: KindNotFound, Op: op, Reason: reason}
}

// Wrap classifies err as kind. Deadline errors always become KindTimeout and
// version conflicts always become KindConflict, whatever kind was asked for.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var we *Error
	if errors.As(err, &we) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, ErrVersionConflict):
		kind = KindConflict
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of err, or "" when err is not a workflow error
func KindOf(err error) Kind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return ""
}

// IsKind reports whether err is a workflow error of the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// PublicMessage is the text safe to show an end user. Infrastructure failures
// are collapsed into a generic retry message.
func PublicMessage(err error) string {
	var we *Error
	if !errors.As(err, &we) {
		return "something went wrong, please try again"
	}
	switch we.Kind {
	case KindValidation, KindPermission, KindNotFound:
		if we.Reason != "" {
			return we.Reason
		}
		return string(we.Kind)
	case KindConflict:
		return "the post changed while you were editing it, please reload and try again"
	case KindTimeout:
		return "the request timed out, please try again"
	default:
		return "something went wrong, please try again"
	}
}
