package state

import (
	"fmt"

	"github.com/eigerco/accountability/internal/crypto"
	"github.com/eigerco/accountability/internal/safemath"
)

// Balance returns the balance at addr. Unknown accounts hold zero.
func (o *Overlay) Balance(addr crypto.Address) (uint64, error) {
	e, err := o.load(addr)
	if err != nil {
		return 0, err
	}
	return e.acc.Balance, nil
}

// Authenticate fails with ErrMissingSignature unless addr is a signer.
func (o *Overlay) Authenticate(addr crypto.Address) error {
	if !o.IsSigner(addr) {
		return fmt.Errorf("%w: %s", ErrMissingSignature, addr)
	}
	return nil
}

// Transfer moves amount from a key-controlled signer account to any account.
// Either both balances change or neither does.
func (o *Overlay) Transfer(from, to crypto.Address, amount uint64) error {
	if err := o.Authenticate(from); err != nil {
		return err
	}
	src, err := o.load(from)
	if err != nil {
		return err
	}
	if !src.acc.Owner.IsZero() {
		return fmt.Errorf("%w: transfer source %s is a program record", ErrNotOwner, from)
	}
	return o.move(from, to, amount)
}

// Adjust is the privileged debit of a record owned by owner and credit of
// an arbitrary target. The record is not a signer; ownership authorizes it.
func (o *Overlay) Adjust(owner, from, to crypto.Address, amount uint64) error {
	src, err := o.load(from)
	if err != nil {
		return err
	}
	if !src.exists {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, from)
	}
	if owner.IsZero() || src.acc.Owner != owner {
		return fmt.Errorf("%w: %s", ErrNotOwner, from)
	}
	return o.move(from, to, amount)
}

// Credit mints amount into to. Only genesis and the faucet use it.
func (o *Overlay) Credit(to crypto.Address, amount uint64) error {
	dst, err := o.load(to)
	if err != nil {
		return err
	}
	balance, err := safemath.CheckedAdd64(dst.acc.Balance, amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}
	acc := dst.acc
	acc.Balance = balance
	o.put(to, acc)
	return nil
}

// move computes both sides before writing either.
func (o *Overlay) move(from, to crypto.Address, amount uint64) error {
	src, err := o.load(from)
	if err != nil {
		return err
	}
	dst, err := o.load(to)
	if err != nil {
		return err
	}

	srcBalance, err := safemath.CheckedSub64(src.acc.Balance, amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %d, needs %d: %w", ErrInsufficientFunds, from, src.acc.Balance, amount, err)
	}
	if from == to {
		return nil
	}
	dstBalance, err := safemath.CheckedAdd64(dst.acc.Balance, amount)
	if err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}

	srcAcc, dstAcc := src.acc, dst.acc
	srcAcc.Balance = srcBalance
	dstAcc.Balance = dstBalance
	o.put(from, srcAcc)
	o.put(to, dstAcc)
	return nil
}
