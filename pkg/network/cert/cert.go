// Package cert issues and checks the self-signed TLS certificates that
// authenticate both ends of a node connection. The certificate key is the
// node's signing key and its only DNS name encodes the matching address.
package cert

import (
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base32"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/eigerco/accountability/internal/crypto"
	"github.com/eigerco/accountability/internal/crypto/ed25519"
)

// DNSNamePrefix starts every encoded address.
const DNSNamePrefix = "a"

// DefaultValidity is used when no validity period is configured.
const DefaultValidity = 365 * 24 * time.Hour

var (
	ErrNotEd25519        = errors.New("certificate is not an Ed25519 certificate")
	ErrDNSName           = errors.New("certificate DNS name does not encode its key")
	ErrNotYetValid       = errors.New("certificate is not yet valid")
	ErrExpired           = errors.New("certificate has expired")
	ErrNoPeerCertificate = errors.New("peer presented no certificate")
)

var base32Encoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// dnsNameLen is the prefix plus a base32 encoded 32-byte address.
var dnsNameLen = len(DNSNamePrefix) + base32Encoding.EncodedLen(crypto.AddressSize)

// EncodeAddress renders addr as a DNS label.
func EncodeAddress(addr crypto.Address) string {
	return DNSNamePrefix + base32Encoding.EncodeToString(addr[:])
}

// Generate creates a certificate for key valid for the given period from now.
// It serves for both server and client authentication.
func Generate(key ed25519.PrivateKey, validity time.Duration) (*tls.Certificate, error) {
	pub, ok := key.Public().(ed25519.PublicKey)
	if !ok {
		return nil, ErrNotEd25519
	}
	if validity == 0 {
		validity = DefaultValidity
	}
	dnsName := EncodeAddress(crypto.AddressFromPublicKey(pub))

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject:      pkix.Name{CommonName: dnsName},
		DNSNames:     []string{dnsName},
		NotBefore:    now.Add(-time.Minute),
		NotAfter:     now.Add(validity),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageServerAuth,
			x509.ExtKeyUsageClientAuth,
		},
		SignatureAlgorithm:    x509.PureEd25519,
		PublicKeyAlgorithm:    x509.Ed25519,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// Validate checks that c is a current Ed25519 certificate whose DNS name
// encodes its own key, and returns the address it authenticates.
func Validate(c *x509.Certificate) (crypto.Address, error) {
	if c.SignatureAlgorithm != x509.PureEd25519 {
		return crypto.Address{}, ErrNotEd25519
	}
	pub, ok := c.PublicKey.(ed25519.PublicKey)
	if !ok || len(pub) != ed25519.PublicKeySize {
		return crypto.Address{}, ErrNotEd25519
	}
	if len(c.DNSNames) != 1 {
		return crypto.Address{}, fmt.Errorf("%w: want exactly one DNS name, got %d", ErrDNSName, len(c.DNSNames))
	}

	addr := crypto.AddressFromPublicKey(pub)
	name := c.DNSNames[0]
	if len(name) != dnsNameLen || !strings.HasPrefix(name, DNSNamePrefix) || name != EncodeAddress(addr) {
		return crypto.Address{}, fmt.Errorf("%w: %s", ErrDNSName, name)
	}

	now := time.Now()
	if now.Before(c.NotBefore) {
		return crypto.Address{}, ErrNotYetValid
	}
	if now.After(c.NotAfter) {
		return crypto.Address{}, ErrExpired
	}
	return addr, nil
}

// VerifyPeer is a tls.Config.VerifyPeerCertificate callback that accepts any
// certificate Validate accepts. Chains are not used.
func VerifyPeer(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return ErrNoPeerCertificate
	}
	c, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("parse peer certificate: %w", err)
	}
	_, err = Validate(c)
	return err
}
