package state

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/eigerco/accountability/internal/crypto"
	"github.com/eigerco/accountability/internal/safemath"
	"github.com/eigerco/accountability/pkg/db"
	"github.com/eigerco/accountability/pkg/db/pebble"
)

// Prefix constants for all stored key types
const (
	prefixAccount byte = iota + 1
	prefixMeta
)

// PrefixToString converts a prefix byte to a string
func PrefixToString(p byte) string {
	switch p {
	case prefixAccount:
		return "account"
	case prefixMeta:
		return "meta"
	default:
		return "unknown"
	}
}

// makeKey creates a key from a prefix and an identifier
func makeKey(prefix byte, id []byte) []byte {
	key := make([]byte, 1+len(id))
	key[0] = prefix
	copy(key[1:], id)
	return key
}

// DefaultFeeCollector receives allocation charges when no collector is configured.
var DefaultFeeCollector = crypto.DeriveAddress(crypto.ZeroAddress, []byte("fee-collector"))

// FeeSchedule prices record allocation. The cost of a record of n bytes is
// BaseAllocationCost + PerByteAllocationCost*n, paid by the payer to Collector.
type FeeSchedule struct {
	BaseAllocationCost    uint64
	PerByteAllocationCost uint64
	Collector             crypto.Address
}

func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		BaseAllocationCost:    100,
		PerByteAllocationCost: 1,
		Collector:             DefaultFeeCollector,
	}
}

// AllocationCost is the price of allocating size bytes of record data.
func (f FeeSchedule) AllocationCost(size uint64) (uint64, error) {
	perByte, ok := safemath.Mul64(f.PerByteAllocationCost, size)
	if !ok {
		return 0, safemath.ErrOverflow
	}
	return safemath.CheckedAdd64(f.BaseAllocationCost, perByte)
}

// State is the committed set of accounts. Changes are made through an
// Overlay and become visible only when the overlay commits.
type State struct {
	db     db.KVStore
	fees   FeeSchedule
	closed atomic.Bool
}

func New(kv db.KVStore, fees FeeSchedule) *State {
	if fees.Collector.IsZero() {
		fees.Collector = DefaultFeeCollector
	}
	return &State{db: kv, fees: fees}
}

// Account returns the committed account at addr.
func (s *State) Account(addr crypto.Address) (Account, error) {
	if s.closed.Load() {
		return Account{}, ErrStateClosed
	}
	raw, err := s.db.Get(makeKey(prefixAccount, addr[:]))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("get account %s: %w", addr, err)
	}
	return AccountFromBytes(raw)
}

// Balance returns the committed balance at addr; unknown accounts hold zero.
func (s *State) Balance(addr crypto.Address) (uint64, error) {
	acc, err := s.Account(addr)
	if errors.Is(err, ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// Meta returns a committed metadata value.
func (s *State) Meta(key []byte) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrStateClosed
	}
	v, err := s.db.Get(makeKey(prefixMeta, key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get meta: %w", err)
	}
	return v, true, nil
}

// ForEachAccount calls fn for every committed account in address order.
func (s *State) ForEachAccount(fn func(addr crypto.Address, acc Account) error) error {
	if s.closed.Load() {
		return ErrStateClosed
	}
	iter, err := s.db.NewIterator([]byte{prefixAccount}, []byte{prefixAccount + 1})
	if err != nil {
		return fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close()

	for iter.Next() {
		key := iter.Key()
		if len(key) != 1+crypto.AddressSize {
			return fmt.Errorf("%w: key length %d", ErrCorruptAccount, len(key))
		}
		raw, err := iter.Value()
		if err != nil {
			return fmt.Errorf("read account value: %w", err)
		}
		acc, err := AccountFromBytes(raw)
		if err != nil {
			return err
		}
		if err := fn(crypto.Address(key[1:]), acc); err != nil {
			return err
		}
	}
	return nil
}

// TotalSupply sums every committed balance.
func (s *State) TotalSupply() (uint64, error) {
	var total uint64
	err := s.ForEachAccount(func(_ crypto.Address, acc Account) error {
		var err error
		total, err = safemath.CheckedAdd64(total, acc.Balance)
		return err
	})
	return total, err
}

// Begin opens an overlay in which signers are the authenticated identities.
func (s *State) Begin(signers ...crypto.Address) *Overlay {
	o := &Overlay{
		state:    s,
		signers:  make(map[crypto.Address]struct{}, len(signers)),
		accounts: make(map[crypto.Address]*entry),
		meta:     make(map[string][]byte),
	}
	for _, sig := range signers {
		o.signers[sig] = struct{}{}
	}
	return o
}

// Close closes the state and its store
func (s *State) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}
