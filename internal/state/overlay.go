package state

import (
	"errors"
	"fmt"

	"github.com/eigerco/accountability/internal/crypto"
)

type entry struct {
	acc    Account
	exists bool
	dirty  bool
}

// Overlay is the working set of a single transaction. Reads fall through to
// the committed state, writes stay buffered until Commit writes them in one
// batch. An overlay is not safe for concurrent use.
type Overlay struct {
	state    *State
	signers  map[crypto.Address]struct{}
	accounts map[crypto.Address]*entry
	meta     map[string][]byte
	done     bool
}

// IsSigner reports whether addr authenticated the enclosing transaction.
func (o *Overlay) IsSigner(addr crypto.Address) bool {
	_, ok := o.signers[addr]
	return ok
}

func (o *Overlay) load(addr crypto.Address) (*entry, error) {
	if o.done {
		return nil, ErrOverlayDone
	}
	if e, ok := o.accounts[addr]; ok {
		return e, nil
	}
	acc, err := o.state.Account(addr)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		e := &entry{}
		o.accounts[addr] = e
		return e, nil
	case err != nil:
		return nil, err
	}
	e := &entry{acc: acc, exists: true}
	o.accounts[addr] = e
	return e, nil
}

func (o *Overlay) put(addr crypto.Address, acc Account) {
	e := o.accounts[addr]
	e.acc = acc
	e.exists = true
	e.dirty = true
}

// Account returns a copy of the account at addr as seen by this overlay.
func (o *Overlay) Account(addr crypto.Address) (Account, error) {
	e, err := o.load(addr)
	if err != nil {
		return Account{}, err
	}
	if !e.exists {
		return Account{}, ErrAccountNotFound
	}
	return e.acc.clone(), nil
}

// Meta returns a metadata value, including uncommitted writes.
func (o *Overlay) Meta(key []byte) ([]byte, bool, error) {
	if o.done {
		return nil, false, ErrOverlayDone
	}
	if v, ok := o.meta[string(key)]; ok {
		return v, true, nil
	}
	return o.state.Meta(key)
}

// PutMeta buffers a metadata write committed together with the accounts.
func (o *Overlay) PutMeta(key, value []byte) error {
	if o.done {
		return ErrOverlayDone
	}
	o.meta[string(key)] = append([]byte(nil), value...)
	return nil
}

// Commit atomically writes every change made through the overlay.
func (o *Overlay) Commit() error {
	if o.done {
		return ErrOverlayDone
	}
	if o.state.closed.Load() {
		return ErrStateClosed
	}
	o.done = true

	batch := o.state.db.NewBatch()
	defer batch.Close()

	for addr, e := range o.accounts {
		if !e.dirty {
			continue
		}
		if err := batch.Put(makeKey(prefixAccount, addr[:]), e.acc.Bytes()); err != nil {
			return fmt.Errorf("store account %s: %w", addr, err)
		}
	}
	for k, v := range o.meta {
		if err := batch.Put(makeKey(prefixMeta, []byte(k)), v); err != nil {
			return fmt.Errorf("store meta: %w", err)
		}
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Discard drops every buffered change. It is safe to call after Commit.
func (o *Overlay) Discard() {
	o.done = true
	o.accounts = nil
	o.meta = nil
}
