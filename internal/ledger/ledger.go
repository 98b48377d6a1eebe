// Package ledger models the external fund-transfer collaborator as an
// in-memory balance sheet. The registration flow only needs a Transfer
// capability; everything else here exists so tests and local runs can seed
// and inspect balances.
package ledger

import (
	"context"
	"errors"
	"sync"

	id "registrar/pkg/domain"
)

// ErrInsufficientFunds rejects a transfer larger than the payer's balance.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrZeroIdentity rejects the nil account on either side of a transfer.
var ErrZeroIdentity = errors.New("zero identity")

// InMemory is a mutex-guarded account ledger. A transfer debits and credits
// under one lock acquisition, so no caller ever observes money in flight.
type InMemory struct {
	mu       sync.Mutex
	balances map[id.AccountID]int64
}

func NewInMemory() *InMemory {
	return &InMemory{balances: make(map[id.AccountID]int64)}
}

// Deposit credits an account out of thin air. Seeding only.
func (l *InMemory) Deposit(ctx context.Context, account id.AccountID, amount int64) error {
	if account.IsNil() {
		return ErrZeroIdentity
	}
	if amount < 0 {
		return errors.New("negative deposit")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
	return nil
}

// Balance reports the current balance; unknown accounts hold zero.
func (l *InMemory) Balance(ctx context.Context, account id.AccountID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

// Transfer moves amount from one account to the other, failing whole when
// the payer cannot cover it. A zero amount is a no-op.
func (l *InMemory) Transfer(ctx context.Context, from, to id.AccountID, amount int64) error {
	if from.IsNil() || to.IsNil() {
		return ErrZeroIdentity
	}
	if amount < 0 {
		return errors.New("negative transfer")
	}
	if amount == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balances[from] < amount {
		return ErrInsufficientFunds
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}
