package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"vidar/domain/orderbook"
)

// Scale converts between the decimal prices and quantities clients
// speak and the integer ticks and lots the engine runs on. The engine
// never sees a decimal.
type Scale struct {
	Tick decimal.Decimal // price of one tick, e.g. 0.01
	Lot  decimal.Decimal // quantity of one lot, e.g. 0.001
}

// NewScale builds a Scale from string representations, panicking on
// malformed input. Intended for configuration wiring.
func NewScale(tick, lot string) Scale {
	return Scale{
		Tick: decimal.RequireFromString(tick),
		Lot:  decimal.RequireFromString(lot),
	}
}

// PriceToTicks converts an exact multiple of the tick into ticks.
func (s Scale) PriceToTicks(p decimal.Decimal) (int64, error) {
	q := p.Div(s.Tick)
	if !q.IsInteger() {
		return 0, fmt.Errorf("%w: price %s, tick %s", orderbook.ErrInvalidTick, p, s.Tick)
	}
	return q.IntPart(), nil
}

// QtyToLots converts an exact multiple of the lot into lots.
func (s Scale) QtyToLots(q decimal.Decimal) (int64, error) {
	n := q.Div(s.Lot)
	if !n.IsInteger() {
		return 0, fmt.Errorf("%w: qty %s, lot %s", orderbook.ErrInvalidLot, q, s.Lot)
	}
	return n.IntPart(), nil
}

// PriceFromTicks converts engine ticks back to a decimal price.
func (s Scale) PriceFromTicks(t int64) decimal.Decimal {
	return s.Tick.Mul(decimal.NewFromInt(t))
}

// QtyFromLots converts engine lots back to a decimal quantity.
func (s Scale) QtyFromLots(n int64) decimal.Decimal {
	return s.Lot.Mul(decimal.NewFromInt(n))
}
