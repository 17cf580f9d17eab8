package cert

import (
	"crypto/rand"
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/accountability/internal/crypto"
	"github.com/eigerco/accountability/internal/crypto/ed25519"
)

func newKey(t *testing.T) (ed25519.PrivateKey, crypto.Address) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return priv, crypto.AddressFromPublicKey(pub)
}

func TestGenerateAndValidate(t *testing.T) {
	key, addr := newKey(t)
	c, err := Generate(key, 24*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, c.Leaf)

	got, err := Validate(c.Leaf)
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	require.Len(t, c.Leaf.DNSNames, 1)
	dnsName := c.Leaf.DNSNames[0]
	assert.Len(t, dnsName, 53)
	assert.Equal(t, EncodeAddress(addr), dnsName)

	parsed, err := x509.ParseCertificate(c.Leaf.Raw)
	require.NoError(t, err)
	assert.NoError(t, VerifyPeer([][]byte{parsed.Raw}, nil))
}

func TestValidateMismatchedKey(t *testing.T) {
	key, _ := newKey(t)
	c, err := Generate(key, time.Hour)
	require.NoError(t, err)

	other, _ := newKey(t)
	c.Leaf.PublicKey = other.Public()

	_, err = Validate(c.Leaf)
	assert.ErrorIs(t, err, ErrDNSName)
}

func TestValidateValidityWindow(t *testing.T) {
	key, _ := newKey(t)

	expired, err := Generate(key, -time.Hour)
	require.NoError(t, err)
	_, err = Validate(expired.Leaf)
	assert.ErrorIs(t, err, ErrExpired)

	future, err := Generate(key, time.Hour)
	require.NoError(t, err)
	future.Leaf.NotBefore = time.Now().Add(time.Hour)
	_, err = Validate(future.Leaf)
	assert.ErrorIs(t, err, ErrNotYetValid)
}

func TestVerifyPeerErrors(t *testing.T) {
	assert.ErrorIs(t, VerifyPeer(nil, nil), ErrNoPeerCertificate)
	assert.Error(t, VerifyPeer([][]byte{{0x30, 0x01}}, nil))
}
