package services

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"gorm.io/gorm"
)

// ErrorKind classifies failures surfaced to callers. Anything that is not an
// *Error is infrastructure trouble (persistence, transport) and may be retried.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1 // bad input or non-participant actor
	KindConflict                        // duplicate claim, full match, terminal status
	KindNotFound
	KindForbidden // only the creator or an admin may do this
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	}
	return "unknown"
}

type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func forbiddenf(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a domain error, or false for infrastructure errors.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func isKind(err error, want ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == want
}

func IsValidation(err error) bool { return isKind(err, KindValidation) }
func IsConflict(err error) bool   { return isKind(err, KindConflict) }
func IsNotFound(err error) bool   { return isKind(err, KindNotFound) }
func IsForbidden(err error) bool  { return isKind(err, KindForbidden) }

// dbError maps gorm sentinels onto the taxonomy and wraps everything else.
func dbError(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFoundf("%s not found", what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return conflictf("%s already exists", what)
	}
	if _, ok := KindOf(err); ok {
		return err
	}
	return eris.Wrapf(err, "%s: database error", what)
}
