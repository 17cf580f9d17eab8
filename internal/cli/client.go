package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/eigerco/accountability/internal/challenge"
	"github.com/eigerco/accountability/internal/crypto"
	"github.com/eigerco/accountability/internal/crypto/ed25519"
	"github.com/eigerco/accountability/internal/processor"
	"github.com/eigerco/accountability/internal/rpc"
)

var engine = challenge.NewEngine(challenge.ProgramID)

// session is an open connection together with the signing key.
type session struct {
	ctx    context.Context
	client *rpc.Client
	key    ed25519.PrivateKey
	signer crypto.Address
}

func connect(cmd *cobra.Command, opts *ClientOptions, needKey bool) (*session, func(), error) {
	var (
		key    ed25519.PrivateKey
		signer crypto.Address
		err    error
	)
	if needKey || opts.KeyFile != "" {
		key, signer, err = readKeyFile(opts.KeyFile)
		if err != nil && needKey {
			return nil, nil, err
		}
	}
	if key == nil {
		// Read-only requests still need a TLS identity
		if _, key, err = ed25519.GenerateKey(nil); err != nil {
			return nil, nil, err
		}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	client, err := rpc.Dial(ctx, opts.Node, key)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	closeFn := func() {
		_ = client.Close()
		cancel()
	}
	return &session{ctx: ctx, client: client, key: key, signer: signer}, closeFn, nil
}

func (s *session) submit(ix processor.Instruction) (processor.Receipt, error) {
	tx, err := processor.NewTransaction(s.key, ix)
	if err != nil {
		return processor.Receipt{}, err
	}
	return s.client.Submit(s.ctx, tx)
}

func parseAmount(s string) (uint64, error) {
	amount, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return amount, nil
}

func printReceipt(cmd *cobra.Command, opts *ClientOptions, receipt processor.Receipt) error {
	return printResult(cmd.OutOrStdout(), opts.Format, receipt, func(w io.Writer) {
		field(w, "tx", receipt.Hash)
		field(w, "kind", receipt.Kind)
		field(w, "challenge", receipt.Challenge)
	})
}

// NewCreateCommand creates the create command.
func NewCreateCommand(opts *ClientOptions) *cobra.Command {
	var stake uint64

	cmd := &cobra.Command{
		Use:   "create <challenge-id>",
		Short: "Create a challenge with the signing key as its authority",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := connect(cmd, opts, true)
			if err != nil {
				return err
			}
			defer done()
			receipt, err := s.submit(processor.InitializeChallenge(args[0], stake))
			if err != nil {
				return err
			}
			return printReceipt(cmd, opts, receipt)
		},
	}
	cmd.Flags().Uint64Var(&stake, "stake", 0, "declared stake amount recorded on the challenge")
	return cmd
}

// NewStakeCommand creates the stake command.
func NewStakeCommand(opts *ClientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stake <challenge-id> <amount>",
		Short: "Stake tokens into a challenge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[1])
			if err != nil {
				return err
			}
			s, done, err := connect(cmd, opts, true)
			if err != nil {
				return err
			}
			defer done()
			receipt, err := s.submit(processor.StakeTokens(engine.Address(args[0]), amount))
			if err != nil {
				return err
			}
			return printReceipt(cmd, opts, receipt)
		},
	}
}

// NewDistributeCommand creates the distribute command.
func NewDistributeCommand(opts *ClientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "distribute <challenge-id> <winner> <amount>",
		Short: "Pay a reward out of a challenge pool",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			winner, err := crypto.ParseAddress(args[1])
			if err != nil {
				return err
			}
			amount, err := parseAmount(args[2])
			if err != nil {
				return err
			}
			s, done, err := connect(cmd, opts, true)
			if err != nil {
				return err
			}
			defer done()
			receipt, err := s.submit(processor.DistributeReward(engine.Address(args[0]), winner, amount))
			if err != nil {
				return err
			}
			return printReceipt(cmd, opts, receipt)
		},
	}
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(opts *ClientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Show the balance of an address, by default the signing key's",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := connect(cmd, opts, len(args) == 0)
			if err != nil {
				return err
			}
			defer done()
			addr := s.signer
			if len(args) == 1 {
				if addr, err = crypto.ParseAddress(args[0]); err != nil {
					return err
				}
			}
			balance, err := s.client.Balance(s.ctx, addr)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.Format, rpc.BalanceResponse{Address: addr, Balance: balance}, func(w io.Writer) {
				field(w, "address", addr)
				field(w, "balance", balance)
			})
		},
	}
}

// NewShowCommand creates the show command.
func NewShowCommand(opts *ClientOptions) *cobra.Command {
	var byAddress bool

	cmd := &cobra.Command{
		Use:   "show <challenge-id>",
		Short: "Show a challenge record and its pooled balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := connect(cmd, opts, false)
			if err != nil {
				return err
			}
			defer done()

			var resp rpc.ChallengeResponse
			if byAddress {
				addr, perr := crypto.ParseAddress(args[0])
				if perr != nil {
					return perr
				}
				resp, err = s.client.Challenge(s.ctx, addr)
			} else {
				resp, err = s.client.ChallengeByID(s.ctx, args[0])
			}
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.Format, resp, func(w io.Writer) {
				field(w, "challenge", resp.Challenge.ChallengeID)
				field(w, "address", resp.Address)
				field(w, "authority", resp.Challenge.Authority)
				field(w, "total stake", resp.Challenge.TotalStake)
				field(w, "active", resp.Challenge.IsActive)
				field(w, "pool", resp.Balance)
			})
		},
	}
	cmd.Flags().BoolVar(&byAddress, "address", false, "treat the argument as a record address")
	return cmd
}

// NewAirdropCommand creates the airdrop command.
func NewAirdropCommand(opts *ClientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "airdrop <amount> [address]",
		Short: "Request test funds from a node faucet",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			s, done, err := connect(cmd, opts, len(args) == 1)
			if err != nil {
				return err
			}
			defer done()
			addr := s.signer
			if len(args) == 2 {
				if addr, err = crypto.ParseAddress(args[1]); err != nil {
					return err
				}
			}
			balance, err := s.client.Airdrop(s.ctx, addr, amount)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.Format, rpc.AirdropResponse{Address: addr, Balance: balance}, func(w io.Writer) {
				field(w, "address", addr)
				field(w, "balance", balance)
			})
		},
	}
}

// NewSupplyCommand creates the supply command.
func NewSupplyCommand(opts *ClientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "supply",
		Short: "Show the total supply held by all accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, done, err := connect(cmd, opts, false)
			if err != nil {
				return err
			}
			defer done()
			total, err := s.client.TotalSupply(s.ctx)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.Format, rpc.SupplyResponse{TotalSupply: total}, func(w io.Writer) {
				field(w, "supply", total)
			})
		},
	}
}
