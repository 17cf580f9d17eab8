package challenge

import (
	"fmt"

	"github.com/eigerco/accountability/internal/crypto"
)

// ProgramID owns every challenge record.
var ProgramID = crypto.DeriveAddress(crypto.ZeroAddress, []byte("accountability_program"))

// Ledger moves value between accounts and authenticates callers.
type Ledger interface {
	// Authenticate fails unless addr signed the enclosing transaction.
	Authenticate(addr crypto.Address) error
	// Transfer moves amount from a signer account to another account.
	Transfer(from, to crypto.Address, amount uint64) error
	// Adjust debits a record owned by owner and credits to, with checked arithmetic.
	Adjust(owner, from, to crypto.Address, amount uint64) error
}

// AccountStore allocates and persists fixed-size records.
type AccountStore interface {
	Allocate(payer, addr crypto.Address, size uint64, owner crypto.Address) error
	Load(addr crypto.Address) ([]byte, crypto.Address, error)
	Store(owner, addr crypto.Address, data []byte) error
}

// Env is what a single operation executes against. The host guarantees the
// operation's effects on it are committed all together or not at all.
type Env interface {
	Ledger
	AccountStore
}

// Engine implements the challenge lifecycle. It keeps no state of its own;
// everything lives in the records reached through Env.
type Engine struct {
	programID crypto.Address
}

func NewEngine(programID crypto.Address) *Engine {
	return &Engine{programID: programID}
}

func (e *Engine) ProgramID() crypto.Address {
	return e.programID
}

// Address is the record address of the challenge with the given id. Deriving
// it from the id makes the allocator reject duplicate ids.
func (e *Engine) Address(challengeID string) crypto.Address {
	return crypto.DeriveAddress(e.programID, []byte("challenge"), []byte(challengeID))
}

// Load reads and decodes the record at addr.
func (e *Engine) Load(store AccountStore, addr crypto.Address) (Challenge, error) {
	data, owner, err := store.Load(addr)
	if err != nil {
		return Challenge{}, err
	}
	if owner != e.programID {
		return Challenge{}, fmt.Errorf("%w: %s", ErrWrongOwner, addr)
	}
	var c Challenge
	if err := c.UnmarshalBinary(data); err != nil {
		return Challenge{}, err
	}
	return c, nil
}

func (e *Engine) save(store AccountStore, addr crypto.Address, c Challenge) error {
	data, err := c.MarshalBinary()
	if err != nil {
		return err
	}
	return store.Store(e.programID, addr, data)
}

// CreateChallenge allocates a record for challengeID funded by creator and
// makes creator its authority.
func (e *Engine) CreateChallenge(env Env, creator crypto.Address, challengeID string, stakeAmount uint64) (crypto.Address, Challenge, error) {
	c := Challenge{
		Authority:   creator,
		ChallengeID: challengeID,
		TotalStake:  stakeAmount,
		IsActive:    true,
	}
	// Encode before allocating so an oversized id charges nothing
	if _, err := c.MarshalBinary(); err != nil {
		return crypto.Address{}, Challenge{}, err
	}

	addr := e.Address(challengeID)
	if err := env.Allocate(creator, addr, RecordSize, e.programID); err != nil {
		return crypto.Address{}, Challenge{}, err
	}
	if err := e.save(env, addr, c); err != nil {
		return crypto.Address{}, Challenge{}, err
	}
	return addr, c, nil
}

// StakeTokens moves amount from participant into the record's balance.
// The record itself is not modified.
func (e *Engine) StakeTokens(env Env, addr, participant crypto.Address, amount uint64) error {
	c, err := e.Load(env, addr)
	if err != nil {
		return err
	}
	if !c.IsActive {
		return ErrChallengeInactive
	}
	return env.Transfer(participant, addr, amount)
}

// DistributeReward moves amount from the record's balance to winner. Only
// the record's authority may call it.
func (e *Engine) DistributeReward(env Env, addr, authority, winner crypto.Address, amount uint64) error {
	if err := env.Authenticate(authority); err != nil {
		return err
	}
	c, err := e.Load(env, addr)
	if err != nil {
		return err
	}
	if c.Authority != authority {
		return ErrUnauthorized
	}
	return env.Adjust(e.programID, addr, winner, amount)
}
