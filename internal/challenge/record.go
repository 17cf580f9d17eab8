package challenge

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/eigerco/accountability/internal/crypto"
)

// RecordSize is the fixed allocation of every challenge record.
const RecordSize = 1024

const (
	discriminatorSize = 8
	// discriminator | authority | id length | total stake | active flag
	fixedSize = discriminatorSize + crypto.AddressSize + 4 + 8 + 1

	// MaxChallengeIDLen is the longest id that fits a record.
	MaxChallengeIDLen = RecordSize - fixedSize
)

var discriminator = accountDiscriminator("Challenge")

func accountDiscriminator(name string) [discriminatorSize]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [discriminatorSize]byte
	copy(d[:], sum[:discriminatorSize])
	return d
}

// Challenge is the persisted record of a challenge. Its pooled value is the
// balance of the record's account, not a field of the record.
type Challenge struct {
	// Authority created the challenge and alone may disburse from it.
	Authority crypto.Address `json:"authority"`
	// ChallengeID is a display label.
	ChallengeID string `json:"challenge_id"`
	// TotalStake is the stake declared at creation. Staking does not change it.
	TotalStake uint64 `json:"total_stake"`
	// IsActive gates staking. Nothing clears it today.
	IsActive bool `json:"is_active"`
}

// MarshalBinary encodes the record into exactly RecordSize bytes, little endian:
// discriminator(8) authority(32) len(id)(4) id total_stake(8) is_active(1) padding.
func (c Challenge) MarshalBinary() ([]byte, error) {
	if len(c.ChallengeID) > MaxChallengeIDLen {
		return nil, fmt.Errorf("%w: id is %d bytes, max %d", ErrRecordTooLarge, len(c.ChallengeID), MaxChallengeIDLen)
	}

	buf := bytes.NewBuffer(make([]byte, 0, RecordSize))
	buf.Write(discriminator[:])
	buf.Write(c.Authority[:])
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(c.ChallengeID)))
	buf.WriteString(c.ChallengeID)
	_ = binary.Write(buf, binary.LittleEndian, c.TotalStake)
	if c.IsActive {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	out := make([]byte, RecordSize)
	copy(out, buf.Bytes())
	return out, nil
}

// UnmarshalBinary decodes a record written by MarshalBinary.
func (c *Challenge) UnmarshalBinary(data []byte) error {
	if len(data) < fixedSize {
		return fmt.Errorf("%w: %d bytes", ErrRecordCorrupt, len(data))
	}
	if !bytes.Equal(data[:discriminatorSize], discriminator[:]) {
		return ErrDiscriminatorMismatch
	}
	off := discriminatorSize

	var decoded Challenge
	copy(decoded.Authority[:], data[off:off+crypto.AddressSize])
	off += crypto.AddressSize

	n := binary.LittleEndian.Uint32(data[off:])
	off += 4
	if uint64(n) > uint64(len(data)-fixedSize) {
		return fmt.Errorf("%w: id length %d", ErrRecordCorrupt, n)
	}
	decoded.ChallengeID = string(data[off : off+int(n)])
	off += int(n)

	decoded.TotalStake = binary.LittleEndian.Uint64(data[off:])
	off += 8

	switch data[off] {
	case 0:
	case 1:
		decoded.IsActive = true
	default:
		return fmt.Errorf("%w: active flag %#x", ErrRecordCorrupt, data[off])
	}

	*c = decoded
	return nil
}
