package challenge

import (
	"errors"
	"fmt"
)

// Error is a failure raised by the engine itself. Codes are stable and
// travel over the wire so clients can tell the cases apart.
type Error struct {
	Code uint32
	Name string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

var (
	ErrChallengeInactive = &Error{Code: 6000, Name: "ChallengeInactive", Msg: "challenge is not active"}
	ErrUnauthorized      = &Error{Code: 6001, Name: "Unauthorized", Msg: "unauthorized to perform this action"}
)

// Errors lists every coded engine error.
var Errors = []*Error{ErrChallengeInactive, ErrUnauthorized}

// ErrorByCode returns the engine error registered under code.
func ErrorByCode(code uint32) (*Error, bool) {
	for _, e := range Errors {
		if e.Code == code {
			return e, true
		}
	}
	return nil, false
}

var (
	ErrRecordTooLarge        = errors.New("challenge record does not fit its allocation")
	ErrRecordCorrupt         = errors.New("challenge record is corrupt")
	ErrDiscriminatorMismatch = errors.New("account is not a challenge record")
	ErrWrongOwner            = errors.New("challenge record owned by another program")
)
