// Package economy charges respawn fees against an actor's account.
package economy

import (
	"context"
	"errors"
)

var (
	// ErrAccountNotFound is returned when the actor has no account.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInsufficientFunds is returned when a debit exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Backend is an account ledger.
type Backend interface {
	Balance(ctx context.Context, actorID string) (float64, error)
	Debit(ctx context.Context, actorID string, amount float64) error
}
