package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a failure for the request boundary.
type Kind int

const (
	// KindUnknown - 500
	KindUnknown Kind = iota
	// KindValidation - 400: bad or missing input
	KindValidation
	// KindAuth - 401: missing or mismatched API key
	KindAuth
	// KindNotFound - 404
	KindNotFound
	// KindInvalidTimezone - 400: zone name does not resolve
	KindInvalidTimezone
	// KindStorage - 500: database or file I/O
	KindStorage
	// KindRateLimited - 429
	KindRateLimited
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindValidation:      "validation",
	KindAuth:            "auth",
	KindNotFound:        "not_found",
	KindInvalidTimezone: "invalid_timezone",
	KindStorage:         "storage",
	KindRateLimited:     "rate_limited",
}

var kindStatus = map[Kind]int{
	KindUnknown:         http.StatusInternalServerError,
	KindValidation:      http.StatusBadRequest,
	KindAuth:            http.StatusUnauthorized,
	KindNotFound:        http.StatusNotFound,
	KindInvalidTimezone: http.StatusBadRequest,
	KindStorage:         http.StatusInternalServerError,
	KindRateLimited:     http.StatusTooManyRequests,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Error is the error type returned across package boundaries.
// Fields lists the offending input fields for validation failures.
type Error struct {
	Kind    Kind
	Message string
	Fields  []string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Fields, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PublicMessage is the text safe to return to an API caller.
// Storage and unknown failures never leak driver detail.
func (e *Error) PublicMessage() string {
	switch e.Kind {
	case KindStorage, KindUnknown:
		return "Internal server error"
	}
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
	}
	return e.Message
}

// NewValidation reports bad input, optionally naming the fields at fault
func NewValidation(msg string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

// NewAuth reports a failed shared-secret check
func NewAuth(msg string) *Error {
	return &Error{Kind: KindAuth, Message: msg}
}

// NewNotFound reports a missing route or resource
func NewNotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// NewInvalidTimezone reports a zone name that failed to load
func NewInvalidTimezone(name string, err error) *Error {
	if err == nil {
		err = errors.New("empty zone name")
	}
	return &Error{Kind: KindInvalidTimezone, Message: "Unknown timezone", Err: fmt.Errorf("%q: %w", name, err)}
}

// NewRateLimited reports a client over its request budget
func NewRateLimited(msg string) *Error {
	return &Error{Kind: KindRateLimited, Message: msg}
}

// Storage wraps a persistence failure
func Storage(err error, msg string) *Error {
	return &Error{Kind: KindStorage, Message: msg, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps err to the status code written at the request boundary
func HTTPStatus(err error) int {
	return kindStatus[KindOf(err)]
}

// Message returns the caller-facing text for err
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.PublicMessage()
	}
	return "Internal server error"
}
