package xerrors

import (
	"errors"
	"fmt"
)

// Common reusable application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized access")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict: resource already exists")
	ErrIntegrity    = errors.New("data integrity violation")
	ErrTransient    = errors.New("store temporarily unavailable")
	ErrInternal     = errors.New("internal server error")
	ErrRateLimited  = errors.New("too many requests")
)

// Kind discriminates the error families the API surface maps to responses.
type Kind string

const (
	KindUnknown        Kind = ""
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindInvalidRequest Kind = "invalid_request"
	KindIntegrity      Kind = "integrity"
	KindTransient      Kind = "transient_store"
	KindUnauthorized   Kind = "unauthorized"
	KindRateLimited    Kind = "rate_limited"
)

// Error is a typed application error.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// ResourceID identifies the record behind the failure, e.g. the
	// subscription that already holds the active slot on a conflict.
	ResourceID int64
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match a typed error against the sentinel of its kind.
func (e *Error) Is(target error) bool {
	return sentinelFor(e.Kind) == target
}

func sentinelFor(k Kind) error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	case KindInvalidRequest:
		return ErrInvalidInput
	case KindIntegrity:
		return ErrIntegrity
	case KindTransient:
		return ErrTransient
	case KindUnauthorized:
		return ErrUnauthorized
	case KindRateLimited:
		return ErrRateLimited
	}
	return nil
}

func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict reports a uniqueness violation. existingID is 0 when unknown.
func Conflict(message string, existingID int64) error {
	return &Error{Kind: KindConflict, Message: message, ResourceID: existingID}
}

func InvalidRequest(message string) error {
	return &Error{Kind: KindInvalidRequest, Message: message}
}

func Integrity(message string) error {
	return &Error{Kind: KindIntegrity, Message: message}
}

func Unauthorized(message string) error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func RateLimited(message string) error {
	return &Error{Kind: KindRateLimited, Message: message}
}

// TransientStore wraps a store failure that survived every retry attempt.
func TransientStore(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Message: "store unavailable", Err: err}
}

// KindOf returns the kind of the first typed error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ConflictingID returns the resource id carried by a conflict error.
func ConflictingID(err error) (int64, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindConflict && e.ResourceID != 0 {
		return e.ResourceID, true
	}
	return 0, false
}
