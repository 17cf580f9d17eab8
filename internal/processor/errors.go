package processor

import "errors"

var (
	ErrBadSignature         = errors.New("transaction signature is invalid")
	ErrDuplicateTransaction = errors.New("transaction already processed")
	ErrUnknownInstruction   = errors.New("unknown instruction")
	ErrFaucetDisabled       = errors.New("faucet is disabled")
)
