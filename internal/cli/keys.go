package cli

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/eigerco/accountability/internal/crypto"
	"github.com/eigerco/accountability/internal/crypto/ed25519"
)

// KeyFile is the on-disk form of a signing key.
type KeyFile struct {
	Address    string `json:"address"`
	Ed25519Pub string `json:"ed25519_public_key"`
	Ed25519Prv string `json:"ed25519_private_key"`
}

var ErrKeyMismatch = errors.New("key file public key does not match private key")

func NewKeyFile(key ed25519.PrivateKey) KeyFile {
	pub := key.Public().(ed25519.PublicKey)
	return KeyFile{
		Address:    crypto.AddressFromPublicKey(pub).String(),
		Ed25519Pub: hex.EncodeToString(pub),
		Ed25519Prv: hex.EncodeToString(key),
	}
}

// PrivateKey decodes and checks the key pair.
func (k KeyFile) PrivateKey() (ed25519.PrivateKey, error) {
	prv, err := crypto.StringToHex(k.Ed25519Prv)
	if err != nil {
		return nil, err
	}
	if len(prv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(prv))
	}
	key := ed25519.PrivateKey(prv)
	if k.Ed25519Pub != "" {
		pub, err := crypto.StringToHex(k.Ed25519Pub)
		if err != nil {
			return nil, err
		}
		if !key.Public().(ed25519.PublicKey).Equal(ed25519.PublicKey(pub)) {
			return nil, ErrKeyMismatch
		}
	}
	return key, nil
}

func writeKeyFile(path string, key ed25519.PrivateKey) error {
	data, err := json.MarshalIndent(NewKeyFile(key), "", "\t")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("error writing key file: %w", err)
	}
	return nil
}

func readKeyFile(path string) (ed25519.PrivateKey, crypto.Address, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, crypto.Address{}, fmt.Errorf("error reading key file: %w", err)
	}
	var kf KeyFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, crypto.Address{}, fmt.Errorf("error unmarshaling key file: %w", err)
	}
	key, err := kf.PrivateKey()
	if err != nil {
		return nil, crypto.Address{}, fmt.Errorf("key file %s: %w", path, err)
	}
	return key, crypto.AddressFromPublicKey(key.Public().(ed25519.PublicKey)), nil
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(opts *RootOptions) *cobra.Command {
	var out string
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(out); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", out)
			}
			pub, key, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			if err := writeKeyFile(out, key); err != nil {
				return err
			}
			addr := crypto.AddressFromPublicKey(pub)
			return printResult(cmd.OutOrStdout(), opts.Format, map[string]string{"address": addr.String(), "file": out}, func(w io.Writer) {
				field(w, "address", addr)
				field(w, "file", out)
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "key.json", "key file to write")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key file")
	return cmd
}

// NewAddressCommand creates the address command.
func NewAddressCommand(opts *RootOptions) *cobra.Command {
	var keyFile string

	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the address of a key file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, addr, err := readKeyFile(keyFile)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.Format, map[string]string{"address": addr.String()}, func(w io.Writer) {
				fmt.Fprintln(w, addr)
			})
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "key.json", "signing key file")
	return cmd
}
