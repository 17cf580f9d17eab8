package state

import "errors"

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already in use")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrMissingSignature  = errors.New("missing required signature")
	ErrNotOwner          = errors.New("account not owned by caller")
	ErrSizeMismatch      = errors.New("data size does not match allocated size")
	ErrOverlayDone       = errors.New("overlay already committed or discarded")
	ErrStateClosed       = errors.New("state is closed")
	ErrCorruptAccount    = errors.New("corrupt account encoding")
)
