package crypto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/accountability/internal/crypto/ed25519"
)

func TestParseAddress(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	addr := AddressFromPublicKey(pub)

	parsed, err := ParseAddress(addr.String())
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)

	parsed, err = ParseAddress("0x" + addr.String())
	require.NoError(t, err)
	assert.Equal(t, addr, parsed)

	_, err = ParseAddress("abcd")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = ParseAddress("zz")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestAddressText(t *testing.T) {
	var addr Address
	addr[0] = 0xab
	text, err := addr.MarshalText()
	require.NoError(t, err)

	var back Address
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, addr, back)
	assert.False(t, back.IsZero())
	assert.True(t, ZeroAddress.IsZero())
}

func TestDeriveAddress(t *testing.T) {
	program := Address(HashData([]byte("program")))

	a := DeriveAddress(program, []byte("challenge"), []byte("run-10k"))
	b := DeriveAddress(program, []byte("challenge"), []byte("run-10k"))
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, DeriveAddress(program, []byte("challenge"), []byte("run-5k")))
	assert.NotEqual(t, a, DeriveAddress(Address{}, []byte("challenge"), []byte("run-10k")))

	// Seed boundaries are part of the derivation
	assert.NotEqual(t,
		DeriveAddress(program, []byte("ab"), []byte("c")),
		DeriveAddress(program, []byte("a"), []byte("bc")),
	)
}

func TestSignVerify(t *testing.T) {
	pub, prv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	msg := []byte("stake_tokens")
	sig := ed25519.Sign(prv, msg)
	assert.True(t, ed25519.Verify(pub, msg, sig))
	assert.False(t, ed25519.Verify(pub, []byte("distribute_reward"), sig))
	assert.False(t, ed25519.Verify(pub, msg, sig[:10]))
	assert.False(t, ed25519.Verify(pub[:5], msg, sig))
	assert.True(t, ed25519.IsEmpty(ed25519.ZeroPublicKey))
	assert.False(t, ed25519.IsEmpty(pub))
}
