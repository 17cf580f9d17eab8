package state

import (
	"fmt"

	"github.com/eigerco/accountability/internal/crypto"
)

// Allocate creates a record of size zeroed bytes at addr owned by owner.
// The allocation cost is charged to payer, which must be a signer.
// A key-controlled address that only holds a balance may be allocated; its
// balance carries over to the record.
func (o *Overlay) Allocate(payer, addr crypto.Address, size uint64, owner crypto.Address) error {
	if owner.IsZero() {
		return fmt.Errorf("%w: record owner must be a program", ErrNotOwner)
	}
	if err := o.Authenticate(payer); err != nil {
		return err
	}
	target, err := o.load(addr)
	if err != nil {
		return err
	}
	if target.exists && !target.acc.IsSystem() {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}

	cost, err := o.state.fees.AllocationCost(size)
	if err != nil {
		return fmt.Errorf("allocation cost for %d bytes: %w", size, err)
	}
	if err := o.Transfer(payer, o.state.fees.Collector, cost); err != nil {
		return err
	}

	// Reload, payer and addr may be the same entry
	target, err = o.load(addr)
	if err != nil {
		return err
	}
	acc := target.acc
	acc.Owner = owner
	acc.Data = make([]byte, size)
	o.put(addr, acc)
	return nil
}

// Load returns the record data at addr and its owner.
func (o *Overlay) Load(addr crypto.Address) ([]byte, crypto.Address, error) {
	acc, err := o.Account(addr)
	if err != nil {
		return nil, crypto.Address{}, fmt.Errorf("load %s: %w", addr, err)
	}
	return acc.Data, acc.Owner, nil
}

// Store overwrites the record data at addr. Only the owner may write, and
// the record keeps its allocated size.
func (o *Overlay) Store(owner, addr crypto.Address, data []byte) error {
	e, err := o.load(addr)
	if err != nil {
		return err
	}
	if !e.exists {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	if owner.IsZero() || e.acc.Owner != owner {
		return fmt.Errorf("%w: %s", ErrNotOwner, addr)
	}
	if len(data) != len(e.acc.Data) {
		return fmt.Errorf("%w: have %d, got %d", ErrSizeMismatch, len(e.acc.Data), len(data))
	}
	acc := e.acc
	acc.Data = append([]byte(nil), data...)
	o.put(addr, acc)
	return nil
}
