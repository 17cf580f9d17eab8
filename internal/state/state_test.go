package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/accountability/internal/crypto"
	"github.com/eigerco/accountability/internal/safemath"
	"github.com/eigerco/accountability/pkg/db/pebble"
)

var (
	alice   = crypto.Address{1}
	bob     = crypto.Address{2}
	program = crypto.Address{0xaa}
	record  = crypto.DeriveAddress(program, []byte("challenge"), []byte("c1"))
)

func newTestState(t *testing.T) *State {
	t.Helper()
	kv, err := pebble.NewKVStore()
	require.NoError(t, err)
	s := New(kv, FeeSchedule{BaseAllocationCost: 10, PerByteAllocationCost: 1})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func fund(t *testing.T, s *State, addr crypto.Address, amount uint64) {
	t.Helper()
	o := s.Begin()
	require.NoError(t, o.Credit(addr, amount))
	require.NoError(t, o.Commit())
}

func balance(t *testing.T, s *State, addr crypto.Address) uint64 {
	t.Helper()
	b, err := s.Balance(addr)
	require.NoError(t, err)
	return b
}

func TestAccountBytes(t *testing.T) {
	acc := Account{Balance: 42, Owner: program, Data: []byte{1, 2, 3}}
	decoded, err := AccountFromBytes(acc.Bytes())
	require.NoError(t, err)
	assert.Equal(t, acc, decoded)

	_, err = AccountFromBytes([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCorruptAccount)

	truncated := acc.Bytes()
	_, err = AccountFromBytes(truncated[:len(truncated)-1])
	assert.ErrorIs(t, err, ErrCorruptAccount)
}

func TestTransfer(t *testing.T) {
	s := newTestState(t)
	fund(t, s, alice, 1000)

	o := s.Begin(alice)
	require.NoError(t, o.Transfer(alice, bob, 400))

	// Nothing is visible before commit
	assert.Equal(t, uint64(1000), balance(t, s, alice))
	require.NoError(t, o.Commit())

	assert.Equal(t, uint64(600), balance(t, s, alice))
	assert.Equal(t, uint64(400), balance(t, s, bob))

	supply, err := s.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), supply)
}

func TestTransferErrors(t *testing.T) {
	s := newTestState(t)
	fund(t, s, alice, 100)

	tests := []struct {
		name    string
		signers []crypto.Address
		from    crypto.Address
		amount  uint64
		wantErr error
	}{
		{"unsigned source", []crypto.Address{bob}, alice, 10, ErrMissingSignature},
		{"insufficient funds", []crypto.Address{alice}, alice, 101, ErrInsufficientFunds},
		{"underflow is reported", []crypto.Address{alice}, alice, 101, safemath.ErrUnderflow},
		{"unknown source", []crypto.Address{bob}, bob, 1, ErrInsufficientFunds},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			o := s.Begin(tc.signers...)
			defer o.Discard()
			err := o.Transfer(tc.from, crypto.Address{9}, tc.amount)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
	assert.Equal(t, uint64(100), balance(t, s, alice))
}

func TestTransferCreditOverflow(t *testing.T) {
	s := newTestState(t)
	fund(t, s, alice, 10)
	fund(t, s, bob, ^uint64(0))

	o := s.Begin(alice)
	err := o.Transfer(alice, bob, 1)
	assert.ErrorIs(t, err, safemath.ErrOverflow)

	// The debit was not applied either
	b, err := o.Balance(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), b)
}

func TestAllocate(t *testing.T) {
	s := newTestState(t)
	fund(t, s, alice, 1000)

	o := s.Begin(alice)
	require.NoError(t, o.Allocate(alice, record, 64, program))
	require.NoError(t, o.Commit())

	acc, err := s.Account(record)
	require.NoError(t, err)
	assert.Equal(t, program, acc.Owner)
	assert.Equal(t, make([]byte, 64), acc.Data)
	assert.Zero(t, acc.Balance)

	// 10 base + 64 bytes
	assert.Equal(t, uint64(926), balance(t, s, alice))
	assert.Equal(t, uint64(74), balance(t, s, DefaultFeeCollector))

	o = s.Begin(alice)
	err = o.Allocate(alice, record, 64, program)
	assert.ErrorIs(t, err, ErrAccountExists)
	o.Discard()
}

func TestAllocateErrors(t *testing.T) {
	s := newTestState(t)
	fund(t, s, alice, 50)

	o := s.Begin(alice)
	defer o.Discard()

	assert.ErrorIs(t, o.Allocate(alice, record, 64, program), ErrInsufficientFunds)
	assert.ErrorIs(t, o.Allocate(bob, record, 1, program), ErrMissingSignature)
	assert.ErrorIs(t, o.Allocate(alice, record, 1, crypto.ZeroAddress), ErrNotOwner)
	assert.ErrorIs(t, o.Allocate(alice, record, ^uint64(0), program), safemath.ErrOverflow)

	_, err := o.Account(record)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAllocatePrefundedAddress(t *testing.T) {
	s := newTestState(t)
	fund(t, s, alice, 1000)
	fund(t, s, record, 5)

	o := s.Begin(alice)
	require.NoError(t, o.Allocate(alice, record, 8, program))
	require.NoError(t, o.Commit())

	assert.Equal(t, uint64(5), balance(t, s, record))
}

func TestStoreAndLoad(t *testing.T) {
	s := newTestState(t)
	fund(t, s, alice, 1000)

	o := s.Begin(alice)
	require.NoError(t, o.Allocate(alice, record, 4, program))
	require.NoError(t, o.Store(program, record, []byte{1, 2, 3, 4}))

	assert.ErrorIs(t, o.Store(bob, record, []byte{0, 0, 0, 0}), ErrNotOwner)
	assert.ErrorIs(t, o.Store(program, record, []byte{1}), ErrSizeMismatch)
	assert.ErrorIs(t, o.Store(program, crypto.Address{7}, []byte{1}), ErrAccountNotFound)
	require.NoError(t, o.Commit())

	o = s.Begin()
	defer o.Discard()
	data, owner, err := o.Load(record)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)
	assert.Equal(t, program, owner)

	// Loaded data is a copy
	data[0] = 9
	again, _, err := o.Load(record)
	require.NoError(t, err)
	assert.Equal(t, byte(1), again[0])

	_, _, err = o.Load(crypto.Address{7})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAdjust(t *testing.T) {
	s := newTestState(t)
	fund(t, s, alice, 1000)

	o := s.Begin(alice)
	require.NoError(t, o.Allocate(alice, record, 4, program))
	require.NoError(t, o.Transfer(alice, record, 500))
	require.NoError(t, o.Commit())

	t.Run("record cannot be spent by transfer", func(t *testing.T) {
		o := s.Begin(record)
		defer o.Discard()
		assert.ErrorIs(t, o.Transfer(record, bob, 1), ErrNotOwner)
	})

	t.Run("only the owning program may adjust", func(t *testing.T) {
		o := s.Begin(alice)
		defer o.Discard()
		assert.ErrorIs(t, o.Adjust(crypto.Address{0xbb}, record, bob, 1), ErrNotOwner)
		assert.ErrorIs(t, o.Adjust(crypto.ZeroAddress, alice, bob, 1), ErrNotOwner)
		assert.ErrorIs(t, o.Adjust(program, crypto.Address{7}, bob, 1), ErrAccountNotFound)
	})

	t.Run("guarded debit", func(t *testing.T) {
		o := s.Begin()
		defer o.Discard()
		err := o.Adjust(program, record, bob, 501)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.ErrorIs(t, err, safemath.ErrUnderflow)
	})

	o = s.Begin()
	require.NoError(t, o.Adjust(program, record, bob, 300))
	require.NoError(t, o.Commit())

	assert.Equal(t, uint64(200), balance(t, s, record))
	assert.Equal(t, uint64(300), balance(t, s, bob))
}

func TestOverlayLifecycle(t *testing.T) {
	s := newTestState(t)

	o := s.Begin()
	require.NoError(t, o.Credit(alice, 10))
	require.NoError(t, o.PutMeta([]byte("genesis"), []byte{1}))

	v, ok, err := o.Meta([]byte("genesis"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{1}, v)

	o.Discard()
	assert.Zero(t, balance(t, s, alice))
	_, ok, err = s.Meta([]byte("genesis"))
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, o.Commit(), ErrOverlayDone)
	assert.ErrorIs(t, o.Credit(alice, 1), ErrOverlayDone)

	o = s.Begin()
	require.NoError(t, o.PutMeta([]byte("genesis"), []byte{1}))
	require.NoError(t, o.Commit())
	_, ok, err = s.Meta([]byte("genesis"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestForEachAccount(t *testing.T) {
	s := newTestState(t)
	fund(t, s, bob, 2)
	fund(t, s, alice, 1)

	var seen []crypto.Address
	require.NoError(t, s.ForEachAccount(func(addr crypto.Address, _ Account) error {
		seen = append(seen, addr)
		return nil
	}))
	assert.Equal(t, []crypto.Address{alice, bob}, seen)
}

func TestClosedState(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.Close())

	_, err := s.Account(alice)
	assert.ErrorIs(t, err, ErrStateClosed)
	assert.ErrorIs(t, s.Begin().Commit(), ErrStateClosed)
	assert.NoError(t, s.Close())
}

func TestAllocationCost(t *testing.T) {
	cost, err := DefaultFeeSchedule().AllocationCost(1024)
	require.NoError(t, err)
	assert.Equal(t, uint64(1124), cost)
	assert.Equal(t, "account", PrefixToString(prefixAccount))
	assert.Equal(t, "unknown", PrefixToString(0))
}
