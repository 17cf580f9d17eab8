package transport

import "errors"

var (
	ErrInvalidCertificate = errors.New("invalid certificate")
	ErrMessageTooLarge    = errors.New("message exceeds maximum size")
	ErrListenerFailed     = errors.New("failed to create QUIC listener")
	ErrDialFailed         = errors.New("failed to dial node")
	ErrRequestFailed      = errors.New("request failed")
)
