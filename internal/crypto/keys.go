package crypto

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/eigerco/accountability/internal/crypto/ed25519"
)

var ErrInvalidAddress = errors.New("invalid address")

type Ed25519Signature [Ed25519SignatureSize]byte

// Address identifies an account. For key-controlled accounts it is the
// Ed25519 public key; for program-owned records it is derived.
type Address [AddressSize]byte

var ZeroAddress Address

func AddressFromPublicKey(pk ed25519.PublicKey) Address {
	var a Address
	copy(a[:], pk)
	return a
}

func (a Address) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(a[:])
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress parses a hex encoded address, with or without 0x prefix.
func ParseAddress(s string) (Address, error) {
	b, err := StringToHex(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(b) != AddressSize {
		return Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressSize, len(b))
	}
	return Address(b), nil
}

const derivationDomain = "accountability/derived-address"

// DeriveAddress returns the address of a record owned by program and keyed by seeds.
// The same inputs always yield the same address, so an allocator rejects a
// second record for the same seeds.
func DeriveAddress(program Address, seeds ...[]byte) Address {
	parts := make([][]byte, 0, 2*len(seeds)+2)
	parts = append(parts, []byte(derivationDomain))
	for _, s := range seeds {
		l := binary.LittleEndian.AppendUint32(nil, uint32(len(s)))
		parts = append(parts, l, s)
	}
	parts = append(parts, program[:])
	return Address(HashConcat(parts...))
}

func (s Ed25519Signature) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(s[:])), nil
}

func (s *Ed25519Signature) UnmarshalText(text []byte) error {
	b, err := StringToHex(string(text))
	if err != nil {
		return err
	}
	if len(b) != Ed25519SignatureSize {
		return fmt.Errorf("signature must be %d bytes, got %d", Ed25519SignatureSize, len(b))
	}
	copy(s[:], b)
	return nil
}
