package steg

import (
	"errors"

	"github.com/faanross/simulacra_ppm/internal/spec"
)

// Kind identifies a codec failure. Its string form is the prefix of the
// error text.
type Kind string

const (
	KindTooBig        Kind = spec.STEG_TOO_BIG
	KindAlreadyHidden Kind = spec.STEG_MSG
	KindNoMessage     Kind = spec.STEG_NO_MSG
	KindBadMessage    Kind = spec.STEG_BAD_MSG
)

// Error is returned by Embed, Extract, Hide and Unhide.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Detail
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of detail text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrTooBig        = &Error{Kind: KindTooBig, Detail: "message too big for image"}
	ErrAlreadyHidden = &Error{Kind: KindAlreadyHidden, Detail: "image already contains a hidden message"}
	ErrNoMessage     = &Error{Kind: KindNoMessage, Detail: "image does not contain a hidden message"}
	ErrBadMessage    = &Error{Kind: KindBadMessage, Detail: "hidden message is not terminated"}

	ErrInvalidMagic = errors.New("steg: magic token must be non-empty and contain no NUL byte")
)

// KindOf returns the kind of a codec error, or "" for any other error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
