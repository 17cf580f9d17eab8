package state

import (
	"encoding/binary"
	"fmt"

	"github.com/eigerco/accountability/internal/crypto"
)

// Account is a balance holder. Accounts with a zero Owner are controlled by
// the key matching their address; accounts with an Owner are records whose
// data and balance only that program may change.
type Account struct {
	Balance uint64
	Owner   crypto.Address
	Data    []byte
}

// IsSystem reports whether the account is key-controlled and carries no record.
func (a Account) IsSystem() bool {
	return a.Owner.IsZero() && len(a.Data) == 0
}

func (a Account) clone() Account {
	c := a
	if a.Data != nil {
		c.Data = append([]byte(nil), a.Data...)
	}
	return c
}

const accountHeaderSize = 8 + crypto.AddressSize + 4

// Bytes encodes the account as balance | owner | len(data) | data.
func (a Account) Bytes() []byte {
	buf := make([]byte, accountHeaderSize, accountHeaderSize+len(a.Data))
	binary.LittleEndian.PutUint64(buf[0:8], a.Balance)
	copy(buf[8:8+crypto.AddressSize], a.Owner[:])
	binary.LittleEndian.PutUint32(buf[8+crypto.AddressSize:], uint32(len(a.Data)))
	return append(buf, a.Data...)
}

func AccountFromBytes(b []byte) (Account, error) {
	if len(b) < accountHeaderSize {
		return Account{}, fmt.Errorf("%w: %d bytes", ErrCorruptAccount, len(b))
	}
	var a Account
	a.Balance = binary.LittleEndian.Uint64(b[0:8])
	copy(a.Owner[:], b[8:8+crypto.AddressSize])
	n := binary.LittleEndian.Uint32(b[8+crypto.AddressSize : accountHeaderSize])
	if uint64(len(b)-accountHeaderSize) != uint64(n) {
		return Account{}, fmt.Errorf("%w: data length %d, have %d", ErrCorruptAccount, n, len(b)-accountHeaderSize)
	}
	if n > 0 {
		a.Data = append([]byte(nil), b[accountHeaderSize:]...)
	}
	return a, nil
}
