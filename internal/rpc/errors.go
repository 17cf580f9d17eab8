package rpc

import (
	"errors"
	"fmt"

	"github.com/eigerco/accountability/internal/challenge"
	"github.com/eigerco/accountability/internal/processor"
	"github.com/eigerco/accountability/internal/state"
)

// Wire codes for errors that are not coded engine errors. Engine errors
// travel with their own codes.
const (
	CodeInternal uint32 = iota + 1
	CodeBadRequest
	CodeUnknownKind
)

const (
	CodeInsufficientFunds uint32 = iota + 100
	CodeAccountExists
	CodeAccountNotFound
	CodeMissingSignature
	CodeNotOwner
	CodeBadSignature
	CodeDuplicateTransaction
	CodeUnknownInstruction
	CodeFaucetDisabled
	CodeRecordTooLarge
	CodeNotAChallenge
	CodeWrongOwner
	CodeRecordCorrupt
)

var ErrUnknownKind = errors.New("unknown request kind")

var ErrBadRequest = errors.New("malformed request")

// sentinels lists the errors callers match with errors.Is, by wire code.
var sentinels = []struct {
	code uint32
	err  error
}{
	{CodeBadRequest, ErrBadRequest},
	{CodeUnknownKind, ErrUnknownKind},
	{CodeInsufficientFunds, state.ErrInsufficientFunds},
	{CodeAccountExists, state.ErrAccountExists},
	{CodeAccountNotFound, state.ErrAccountNotFound},
	{CodeMissingSignature, state.ErrMissingSignature},
	{CodeNotOwner, state.ErrNotOwner},
	{CodeBadSignature, processor.ErrBadSignature},
	{CodeDuplicateTransaction, processor.ErrDuplicateTransaction},
	{CodeUnknownInstruction, processor.ErrUnknownInstruction},
	{CodeFaucetDisabled, processor.ErrFaucetDisabled},
	{CodeRecordTooLarge, challenge.ErrRecordTooLarge},
	{CodeNotAChallenge, challenge.ErrDiscriminatorMismatch},
	{CodeWrongOwner, challenge.ErrWrongOwner},
	{CodeRecordCorrupt, challenge.ErrRecordCorrupt},
}

// WireError is an error as it crosses the network.
type WireError struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

func (e *WireError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

// Unwrap returns the local error the code stands for, so errors.Is sees
// through a remote failure.
func (e *WireError) Unwrap() error {
	if ce, ok := challenge.ErrorByCode(e.Code); ok {
		return ce
	}
	for _, s := range sentinels {
		if s.code == e.Code {
			return s.err
		}
	}
	return nil
}

func toWire(err error) *WireError {
	var ce *challenge.Error
	if errors.As(err, &ce) {
		return &WireError{Code: ce.Code, Message: err.Error()}
	}
	var we *WireError
	if errors.As(err, &we) {
		return we
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return &WireError{Code: s.code, Message: err.Error()}
		}
	}
	return &WireError{Code: CodeInternal, Message: err.Error()}
}
