package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eigerco/accountability/internal/challenge"
	"github.com/eigerco/accountability/internal/crypto"
	"github.com/eigerco/accountability/internal/state"
	"github.com/eigerco/accountability/pkg/log"
)

// Receipt describes a committed transaction.
type Receipt struct {
	Hash      crypto.Hash          `json:"hash"`
	Kind      Kind                 `json:"kind"`
	Challenge crypto.Address       `json:"challenge"`
	Record    *challenge.Challenge `json:"record,omitempty"`
}

// Processor executes transactions against the state one at a time. Each
// transaction commits entirely or leaves no trace.
type Processor struct {
	mu      sync.Mutex
	state   *state.State
	engine  *challenge.Engine
	metrics *Metrics
	faucet  bool
}

type Option func(*Processor)

func WithMetrics(m *Metrics) Option {
	return func(p *Processor) {
		p.metrics = m
	}
}

// WithFaucet allows Airdrop to mint test funds.
func WithFaucet(enabled bool) Option {
	return func(p *Processor) {
		p.faucet = enabled
	}
}

func New(s *state.State, engine *challenge.Engine, opts ...Option) *Processor {
	p := &Processor{state: s, engine: engine}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func nonceKey(tx Transaction) []byte {
	key := make([]byte, 0, 6+crypto.AddressSize+len(tx.Nonce))
	key = append(key, "nonce/"...)
	key = append(key, tx.Signer[:]...)
	return append(key, tx.Nonce[:]...)
}

// Submit verifies and executes tx.
func (p *Processor) Submit(ctx context.Context, tx Transaction) (Receipt, error) {
	started := time.Now()
	receipt, err := p.submit(ctx, tx)
	p.metrics.observe(tx.Instruction.Kind, err, started)

	logger := log.Runtime.With().
		Str("kind", tx.Instruction.Kind.String()).
		Stringer("signer", tx.Signer).
		Uint64("amount", tx.Instruction.Amount).
		Logger()
	if err != nil {
		logger.Info().Err(err).Msg("transaction rejected")
		return Receipt{}, err
	}
	logger.Info().Stringer("challenge", receipt.Challenge).Stringer("hash", receipt.Hash).Msg("transaction committed")
	return receipt, nil
}

func (p *Processor) submit(ctx context.Context, tx Transaction) (Receipt, error) {
	if err := tx.Verify(); err != nil {
		return Receipt{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	o := p.state.Begin(tx.Signer)
	defer o.Discard()

	key := nonceKey(tx)
	if _, seen, err := o.Meta(key); err != nil {
		return Receipt{}, err
	} else if seen {
		return Receipt{}, ErrDuplicateTransaction
	}

	receipt, err := p.execute(o, tx)
	if err != nil {
		return Receipt{}, err
	}
	if err := o.PutMeta(key, []byte{1}); err != nil {
		return Receipt{}, err
	}
	if err := o.Commit(); err != nil {
		return Receipt{}, fmt.Errorf("commit transaction: %w", err)
	}
	receipt.Hash = tx.Hash()
	return receipt, nil
}

func (p *Processor) execute(env challenge.Env, tx Transaction) (Receipt, error) {
	ix := tx.Instruction
	receipt := Receipt{Kind: ix.Kind, Challenge: ix.Challenge}

	switch ix.Kind {
	case KindInitializeChallenge:
		addr, record, err := p.engine.CreateChallenge(env, tx.Signer, ix.ChallengeID, ix.Amount)
		if err != nil {
			return Receipt{}, err
		}
		receipt.Challenge = addr
		receipt.Record = &record
	case KindStakeTokens:
		if err := p.engine.StakeTokens(env, ix.Challenge, tx.Signer, ix.Amount); err != nil {
			return Receipt{}, err
		}
	case KindDistributeReward:
		if err := p.engine.DistributeReward(env, ix.Challenge, tx.Signer, ix.Winner, ix.Amount); err != nil {
			return Receipt{}, err
		}
	default:
		return Receipt{}, fmt.Errorf("%w: %s", ErrUnknownInstruction, ix.Kind)
	}
	return receipt, nil
}

// Balance returns the committed balance of addr.
func (p *Processor) Balance(addr crypto.Address) (uint64, error) {
	return p.state.Balance(addr)
}

// Challenge returns the committed record at addr together with its pooled balance.
func (p *Processor) Challenge(addr crypto.Address) (challenge.Challenge, uint64, error) {
	o := p.state.Begin()
	defer o.Discard()

	c, err := p.engine.Load(o, addr)
	if err != nil {
		return challenge.Challenge{}, 0, err
	}
	balance, err := o.Balance(addr)
	if err != nil {
		return challenge.Challenge{}, 0, err
	}
	return c, balance, nil
}

// ChallengeAddress is the record address for a challenge id.
func (p *Processor) ChallengeAddress(challengeID string) crypto.Address {
	return p.engine.Address(challengeID)
}

// TotalSupply sums every committed balance.
func (p *Processor) TotalSupply() (uint64, error) {
	return p.state.TotalSupply()
}

// Airdrop mints amount into addr when the faucet is enabled.
func (p *Processor) Airdrop(ctx context.Context, addr crypto.Address, amount uint64) (uint64, error) {
	if !p.faucet {
		return 0, ErrFaucetDisabled
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	o := p.state.Begin()
	defer o.Discard()
	// Program records only grow through their own instructions
	acc, err := o.Account(addr)
	if err != nil && !errors.Is(err, state.ErrAccountNotFound) {
		return 0, err
	}
	if !acc.Owner.IsZero() {
		return 0, fmt.Errorf("%w: airdrop to program record %s", state.ErrNotOwner, addr)
	}
	if err := o.Credit(addr, amount); err != nil {
		return 0, err
	}
	balance, err := o.Balance(addr)
	if err != nil {
		return 0, err
	}
	if err := o.Commit(); err != nil {
		return 0, fmt.Errorf("commit airdrop: %w", err)
	}
	log.Runtime.Info().Stringer("address", addr).Uint64("amount", amount).Msg("airdrop")
	return balance, nil
}

var genesisKey = []byte("genesis")

// ErrGenesisApplied is returned by ApplyGenesis on a state that already has one.
var ErrGenesisApplied = errors.New("genesis already applied")

// ApplyGenesis credits the initial balances once per state.
func (p *Processor) ApplyGenesis(balances map[crypto.Address]uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	o := p.state.Begin()
	defer o.Discard()

	if _, applied, err := o.Meta(genesisKey); err != nil {
		return err
	} else if applied {
		return ErrGenesisApplied
	}
	for addr, amount := range balances {
		if err := o.Credit(addr, amount); err != nil {
			return fmt.Errorf("genesis credit %s: %w", addr, err)
		}
	}
	if err := o.PutMeta(genesisKey, []byte{1}); err != nil {
		return err
	}
	if err := o.Commit(); err != nil {
		return fmt.Errorf("commit genesis: %w", err)
	}
	log.Runtime.Info().Int("accounts", len(balances)).Msg("genesis applied")
	return nil
}
