package testutils

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eigerco/accountability/internal/crypto"
	"github.com/eigerco/accountability/internal/crypto/ed25519"
)

func RandomHash(t *testing.T) crypto.Hash {
	var hash crypto.Hash
	_, err := rand.Read(hash[:])
	require.NoError(t, err)
	return hash
}

func RandomAddress(t *testing.T) crypto.Address {
	var addr crypto.Address
	_, err := rand.Read(addr[:])
	require.NoError(t, err)
	return addr
}

// RandomKey returns a fresh signing key and the address it controls.
func RandomKey(t *testing.T) (ed25519.PrivateKey, crypto.Address) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return priv, crypto.AddressFromPublicKey(pub)
}

func RandomEd25519Signature(t *testing.T) crypto.Ed25519Signature {
	var sig crypto.Ed25519Signature
	_, err := rand.Read(sig[:])
	require.NoError(t, err)
	return sig
}
