package platform

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes host platform failures.
type ErrorKind string

const (
	// KindNotFound indicates the record does not exist (already deleted or never did).
	KindNotFound ErrorKind = "not_found"

	// KindUnauthorized indicates missing or expired credentials.
	KindUnauthorized ErrorKind = "unauthorized"

	// KindForbidden indicates the role lacks permission for the operation.
	KindForbidden ErrorKind = "forbidden"

	// KindRateLimited indicates the host throttled the request.
	KindRateLimited ErrorKind = "rate_limited"

	// KindInvalidQuery indicates the host rejected the SuiteQL text.
	KindInvalidQuery ErrorKind = "invalid_query"

	// KindUnavailable indicates a transient host-side failure.
	KindUnavailable ErrorKind = "unavailable"

	// KindUnknown is anything the host did not classify.
	KindUnknown ErrorKind = "unknown"
)

// Error is a failure reported by the host platform.
type Error struct {
	Kind ErrorKind

	// Status is the HTTP status, or 0 for non-HTTP backends.
	Status int

	// Code is the host error code (e.g. "NONEXISTENT_ID").
	Code string

	// Message is the host's human-readable detail.
	Message string

	// Ref is the record the failure refers to, if any.
	Ref *Ref
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	if e.Ref != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Ref, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Is matches another *Error by Kind, so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NotFound builds a not-found error for ref.
func NotFound(ref Ref) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    "NONEXISTENT_ID",
		Message: "record does not exist",
		Ref:     &ref,
	}
}

// KindOf returns the kind of a platform error anywhere in err's chain,
// or KindUnknown.
func KindOf(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err is a platform not-found error.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}
