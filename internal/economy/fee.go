package economy

import (
	"context"
	"log/slog"
)

// MinimumFee is the smallest fee worth charging. Actors whose fee would be
// lower cannot afford a paid respawn.
const MinimumFee = 0.50

// FeeCalculator derives the respawn fee as a fraction of the actor's balance.
type FeeCalculator struct {
	backend  Backend
	fraction float64
}

// NewFeeCalculator returns a calculator charging fraction (0..1) of the balance.
func NewFeeCalculator(backend Backend, fraction float64) *FeeCalculator {
	return &FeeCalculator{backend: backend, fraction: fraction}
}

// Percentage returns balance * fraction, or 0 when the balance cannot be read.
func (c *FeeCalculator) Percentage(ctx context.Context, actorID string) float64 {
	balance, err := c.backend.Balance(ctx, actorID)
	if err != nil {
		slog.Debug("balance lookup failed", "actor", actorID, "error", err)
		return 0
	}
	return balance * c.fraction
}

// CanAfford reports whether the fee reaches MinimumFee.
func (c *FeeCalculator) CanAfford(ctx context.Context, actorID string) bool {
	return c.Percentage(ctx, actorID) >= MinimumFee
}

// Charge debits the fee and returns the amount taken. Nothing is taken when
// the actor cannot afford it or the debit fails.
func (c *FeeCalculator) Charge(ctx context.Context, actorID string) float64 {
	fee := c.Percentage(ctx, actorID)
	if fee < MinimumFee {
		return 0
	}
	if err := c.backend.Debit(ctx, actorID, fee); err != nil {
		slog.Warn("respawn fee debit failed", "actor", actorID, "fee", fee, "error", err)
		return 0
	}
	slog.Debug("respawn fee charged", "actor", actorID, "fee", fee)
	return fee
}
