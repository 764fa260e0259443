package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid request")
	ErrConflict = errors.New("conflict")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

type PublishErrorKind int

const (
	// KindUnexpected covers responses the client could not interpret.
	KindUnexpected PublishErrorKind = iota
	KindTransient
	KindNotReady
	KindPermanent
)

func (k PublishErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindNotReady:
		return "not_ready"
	case KindPermanent:
		return "permanent"
	default:
		return "unexpected"
	}
}

// PublishError is returned by the publish client for every failed Graph API call.
type PublishError struct {
	Kind       PublishErrorKind
	StatusCode int
	Code       int
	Subcode    int
	Message    string
}

func (e *PublishError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (code %d, status %d)", e.Message, e.Code, e.StatusCode)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

func publishErrorKind(err error) PublishErrorKind {
	var pe *PublishError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnexpected
}

// IsTransient reports whether err may succeed on a later container creation attempt.
func IsTransient(err error) bool {
	return publishErrorKind(err) == KindTransient
}

// IsNotReady reports whether err means the container is still being processed.
func IsNotReady(err error) bool {
	return publishErrorKind(err) == KindNotReady
}
