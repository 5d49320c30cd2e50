package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so every layer can map it to a stable code and status.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindSlotOccupied   Kind = "slot_occupied"
	KindDuplicateEmail Kind = "duplicate_email"
	KindUnauthorized   Kind = "unauthorized"
	KindForbidden      Kind = "forbidden"
	KindDecryption     Kind = "decryption_error"
	KindPartialInsert  Kind = "partial_insert_failure"
	KindCyclicTree     Kind = "cyclic_tree"
	KindInternal       Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindValidation:     http.StatusBadRequest,
	KindNotFound:       http.StatusNotFound,
	KindSlotOccupied:   http.StatusConflict,
	KindDuplicateEmail: http.StatusConflict,
	KindUnauthorized:   http.StatusUnauthorized,
	KindForbidden:      http.StatusForbidden,
	KindDecryption:     http.StatusInternalServerError,
	KindPartialInsert:  http.StatusInternalServerError,
	KindCyclicTree:     http.StatusInternalServerError,
	KindInternal:       http.StatusInternalServerError,
}

// Error is the typed failure returned by core operations.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by Kind, so errors.Is(err, apperror.ErrNotFound) works
// for every not-found error regardless of code or message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// HTTPStatus returns the response status for the error kind.
func (e *Error) HTTPStatus() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Sentinels for errors.Is checks.
var (
	ErrValidation     = &Error{Kind: KindValidation, Code: string(KindValidation)}
	ErrNotFound       = &Error{Kind: KindNotFound, Code: string(KindNotFound)}
	ErrSlotOccupied   = &Error{Kind: KindSlotOccupied, Code: string(KindSlotOccupied)}
	ErrDuplicateEmail = &Error{Kind: KindDuplicateEmail, Code: string(KindDuplicateEmail)}
	ErrUnauthorized   = &Error{Kind: KindUnauthorized, Code: string(KindUnauthorized)}
	ErrForbidden      = &Error{Kind: KindForbidden, Code: string(KindForbidden)}
	ErrDecryption     = &Error{Kind: KindDecryption, Code: string(KindDecryption)}
	ErrPartialInsert  = &Error{Kind: KindPartialInsert, Code: string(KindPartialInsert)}
	ErrCyclicTree     = &Error{Kind: KindCyclicTree, Code: string(KindCyclicTree)}
	ErrInternal       = &Error{Kind: KindInternal, Code: string(KindInternal)}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Code: string(kind), Message: message}
}

func WithCode(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Code: string(kind), Message: message, Cause: cause}
}

func Validation(message string) *Error   { return New(KindValidation, message) }
func NotFound(message string) *Error     { return New(KindNotFound, message) }
func Forbidden(message string) *Error    { return New(KindForbidden, message) }
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }
func Internal(message string, cause error) *Error {
	return Wrap(KindInternal, message, cause)
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As converts any error into an *Error, wrapping unknown errors as internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("internal error", err)
}

// PartialInsertFailure reports that a child row was created but the parent
// slot could not be linked to it.
type PartialInsertFailure struct {
	ChildID     string
	ParentID    string
	Compensated bool
	LinkErr     error
	CompErr     error
}

func (p *PartialInsertFailure) Error() string {
	if p.Compensated {
		return fmt.Sprintf("link of child %s to parent %s failed (child removed): %v", p.ChildID, p.ParentID, p.LinkErr)
	}
	return fmt.Sprintf("link of child %s to parent %s failed and child could not be removed: %v (cleanup: %v)", p.ChildID, p.ParentID, p.LinkErr, p.CompErr)
}

func (p *PartialInsertFailure) Unwrap() error { return p.LinkErr }

// NewPartialInsert wraps a PartialInsertFailure into the typed error envelope.
func NewPartialInsert(p *PartialInsertFailure) *Error {
	return &Error{Kind: KindPartialInsert, Code: string(KindPartialInsert), Message: "member created but parent link failed", Cause: p}
}
