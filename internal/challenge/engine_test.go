package challenge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/accountability/internal/crypto"
	"github.com/eigerco/accountability/internal/safemath"
	"github.com/eigerco/accountability/internal/state"
	"github.com/eigerco/accountability/pkg/db/pebble"
)

var (
	authority   = crypto.Address{0xa1}
	participant = crypto.Address{0xb1}
	winner      = crypto.Address{0xc1}
	stranger    = crypto.Address{0xd1}
)

type fixture struct {
	t      *testing.T
	state  *state.State
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv, err := pebble.NewKVStore()
	require.NoError(t, err)
	s := state.New(kv, state.FeeSchedule{BaseAllocationCost: 100, PerByteAllocationCost: 1})
	t.Cleanup(func() { _ = s.Close() })

	o := s.Begin()
	require.NoError(t, o.Credit(authority, 10_000))
	require.NoError(t, o.Credit(participant, 1_000))
	require.NoError(t, o.Commit())

	return &fixture{t: t, state: s, engine: NewEngine(ProgramID)}
}

// run executes fn in an overlay signed by signer and commits only on success,
// the way the processor does.
func (f *fixture) run(signer crypto.Address, fn func(env Env) error) error {
	o := f.state.Begin(signer)
	if err := fn(o); err != nil {
		o.Discard()
		return err
	}
	return o.Commit()
}

func (f *fixture) create(id string, stake uint64) crypto.Address {
	var addr crypto.Address
	require.NoError(f.t, f.run(authority, func(env Env) error {
		var err error
		addr, _, err = f.engine.CreateChallenge(env, authority, id, stake)
		return err
	}))
	return addr
}

func (f *fixture) balance(addr crypto.Address) uint64 {
	b, err := f.state.Balance(addr)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) load(addr crypto.Address) Challenge {
	o := f.state.Begin()
	defer o.Discard()
	c, err := f.engine.Load(o, addr)
	require.NoError(f.t, err)
	return c
}

func (f *fixture) inject(addr crypto.Address, c Challenge) {
	data, err := c.MarshalBinary()
	require.NoError(f.t, err)
	o := f.state.Begin()
	require.NoError(f.t, o.Store(ProgramID, addr, data))
	require.NoError(f.t, o.Commit())
}

func (f *fixture) supply() uint64 {
	total, err := f.state.TotalSupply()
	require.NoError(f.t, err)
	return total
}

func TestCreateChallenge(t *testing.T) {
	f := newFixture(t)

	var (
		addr crypto.Address
		got  Challenge
	)
	require.NoError(t, f.run(authority, func(env Env) error {
		var err error
		addr, got, err = f.engine.CreateChallenge(env, authority, "run-10k", 1_000)
		return err
	}))

	want := Challenge{Authority: authority, ChallengeID: "run-10k", TotalStake: 1_000, IsActive: true}
	assert.Equal(t, want, got)
	assert.Equal(t, want, f.load(addr))
	assert.Equal(t, f.engine.Address("run-10k"), addr)

	// Allocation is charged to the creator, the pool starts empty
	assert.Equal(t, uint64(10_000-100-RecordSize), f.balance(authority))
	assert.Zero(t, f.balance(addr))
}

func TestCreateChallengeErrors(t *testing.T) {
	f := newFixture(t)
	f.create("run-10k", 0)

	tests := []struct {
		name    string
		signer  crypto.Address
		creator crypto.Address
		id      string
		wantErr error
	}{
		{"duplicate id", authority, authority, "run-10k", state.ErrAccountExists},
		{"creator did not sign", stranger, authority, "swim", state.ErrMissingSignature},
		{"creator cannot fund allocation", stranger, stranger, "swim", state.ErrInsufficientFunds},
		{"id too long", authority, authority, string(make([]byte, MaxChallengeIDLen+1)), ErrRecordTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := f.balance(tc.creator)
			err := f.run(tc.signer, func(env Env) error {
				_, _, err := f.engine.CreateChallenge(env, tc.creator, tc.id, 5)
				return err
			})
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, before, f.balance(tc.creator))
		})
	}
}

func TestStakeTokens(t *testing.T) {
	f := newFixture(t)
	addr := f.create("run-10k", 0)
	supply := f.supply()

	require.NoError(t, f.run(participant, func(env Env) error {
		return f.engine.StakeTokens(env, addr, participant, 300)
	}))

	assert.Equal(t, uint64(300), f.balance(addr))
	assert.Equal(t, uint64(700), f.balance(participant))
	assert.Equal(t, supply, f.supply())

	// Declared stake is not a running total
	assert.Zero(t, f.load(addr).TotalStake)
}

func TestStakeTokensIsNotIdempotent(t *testing.T) {
	f := newFixture(t)
	addr := f.create("run-10k", 0)

	for i := 0; i < 2; i++ {
		require.NoError(t, f.run(participant, func(env Env) error {
			return f.engine.StakeTokens(env, addr, participant, 250)
		}))
	}
	assert.Equal(t, uint64(500), f.balance(addr))
	assert.Equal(t, uint64(500), f.balance(participant))
}

func TestStakeTokensErrors(t *testing.T) {
	f := newFixture(t)
	addr := f.create("run-10k", 0)
	inactive := f.create("closed", 0)
	f.inject(inactive, Challenge{Authority: authority, ChallengeID: "closed", IsActive: false})

	tests := []struct {
		name    string
		signer  crypto.Address
		record  crypto.Address
		amount  uint64
		wantErr error
	}{
		{"inactive challenge", participant, inactive, 10, ErrChallengeInactive},
		{"insufficient funds", participant, addr, 1_001, state.ErrInsufficientFunds},
		{"participant did not sign", stranger, addr, 10, state.ErrMissingSignature},
		{"unknown record", participant, crypto.Address{0x77}, 10, state.ErrAccountNotFound},
		{"not a challenge record", participant, participant, 10, ErrWrongOwner},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recordBefore := f.balance(tc.record)
			err := f.run(tc.signer, func(env Env) error {
				return f.engine.StakeTokens(env, tc.record, participant, tc.amount)
			})
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, uint64(1_000), f.balance(participant))
			assert.Equal(t, recordBefore, f.balance(tc.record))
		})
	}
}

func TestDistributeReward(t *testing.T) {
	f := newFixture(t)
	addr := f.create("run-10k", 0)
	require.NoError(t, f.run(participant, func(env Env) error {
		return f.engine.StakeTokens(env, addr, participant, 500)
	}))
	supply := f.supply()

	require.NoError(t, f.run(authority, func(env Env) error {
		return f.engine.DistributeReward(env, addr, authority, winner, 500)
	}))

	assert.Zero(t, f.balance(addr))
	assert.Equal(t, uint64(500), f.balance(winner))
	assert.Equal(t, supply, f.supply())

	// Still active after disbursement
	assert.True(t, f.load(addr).IsActive)
}

func TestDistributeRewardErrors(t *testing.T) {
	f := newFixture(t)
	addr := f.create("run-10k", 0)
	require.NoError(t, f.run(participant, func(env Env) error {
		return f.engine.StakeTokens(env, addr, participant, 500)
	}))

	tests := []struct {
		name      string
		signer    crypto.Address
		authority crypto.Address
		amount    uint64
		wantErr   []error
	}{
		{"not the authority", stranger, stranger, 100, []error{ErrUnauthorized}},
		{"participant is not the authority", participant, participant, 100, []error{ErrUnauthorized}},
		{"authority did not sign", stranger, authority, 100, []error{state.ErrMissingSignature}},
		{"more than the pool", authority, authority, 501, []error{state.ErrInsufficientFunds, safemath.ErrUnderflow}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := f.run(tc.signer, func(env Env) error {
				return f.engine.DistributeReward(env, addr, tc.authority, winner, tc.amount)
			})
			for _, want := range tc.wantErr {
				assert.ErrorIs(t, err, want)
			}
			assert.Equal(t, uint64(500), f.balance(addr))
			assert.Zero(t, f.balance(winner))
		})
	}
}

func TestDistributeRewardIgnoresActiveFlag(t *testing.T) {
	f := newFixture(t)
	addr := f.create("run-10k", 0)
	require.NoError(t, f.run(participant, func(env Env) error {
		return f.engine.StakeTokens(env, addr, participant, 100)
	}))
	f.inject(addr, Challenge{Authority: authority, ChallengeID: "run-10k", IsActive: false})

	require.NoError(t, f.run(authority, func(env Env) error {
		return f.engine.DistributeReward(env, addr, authority, winner, 100)
	}))
	assert.Equal(t, uint64(100), f.balance(winner))
}

func TestEndToEnd(t *testing.T) {
	f := newFixture(t)
	authorityBefore := f.balance(authority)

	c := f.create("accountability", 0)
	require.NoError(t, f.run(participant, func(env Env) error {
		return f.engine.StakeTokens(env, c, participant, 500)
	}))
	require.NoError(t, f.run(authority, func(env Env) error {
		return f.engine.DistributeReward(env, c, authority, winner, 300)
	}))

	assert.Equal(t, uint64(200), f.balance(c))
	assert.Equal(t, uint64(300), f.balance(winner))
	assert.Equal(t, uint64(500), f.balance(participant))
	assert.Equal(t, authorityBefore-100-RecordSize, f.balance(authority))

	record := f.load(c)
	assert.Zero(t, record.TotalStake)
	assert.True(t, record.IsActive)
	assert.Equal(t, authority, record.Authority)
	assert.Equal(t, "accountability", record.ChallengeID)
}

func TestErrorByCode(t *testing.T) {
	e, ok := ErrorByCode(6001)
	require.True(t, ok)
	assert.Same(t, ErrUnauthorized, e)

	_, ok = ErrorByCode(1)
	assert.False(t, ok)
	assert.Equal(t, "ChallengeInactive (6000): challenge is not active", ErrChallengeInactive.Error())
}
