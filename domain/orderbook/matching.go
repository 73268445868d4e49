package orderbook

import (
	"fmt"

	"github.com/google/uuid"
)

// crosses reports whether the taker's limit admits the level price.
func crosses(o *Order, price int64) bool {
	if o.Side == Bid {
		return o.Price >= price
	}
	return o.Price <= price
}

// matchPass is the core of the matching engine: it walks the opposing
// ladder in priority order, consuming resting entries in arrival order
// until the taker is filled, the book stops crossing, or the ladder is
// exhausted. Fully consumed entries are removed from their level and
// the index; emptied levels are evicted. Caller holds the matchMu
// write lock.
//
// The returned error is non-nil only when self-trade prevention
// cancelled the taker.
func (b *OrderBook) matchPass(o *Order) ([]Trade, error) {
	opp := b.opposing(o.Side)
	oppSide := o.Side.Opposite()
	var trades []Trade
	var stpErr error

	opp.walk(func(price int64, lvl Level) bool {
		if o.Type != Market && !crosses(o, price) {
			return false
		}
		touched := false
		lvl.Ascend(func(ref EntryRef, makerID uint64, _ int64) bool {
			if o.Remaining <= 0 {
				return false
			}
			loc, ok := b.index.lookup(makerID)
			if !ok {
				// a cancel claimed the id; the entry is on its way out
				return true
			}
			maker := loc.order

			if b.stp.enabled() && o.Owner != 0 && maker.Owner == o.Owner {
				switch b.stp {
				case STPCancelMaker:
					b.cancelMakerLocked(loc)
					return true
				case STPCancelBoth:
					b.cancelMakerLocked(loc)
					stpErr = fmt.Errorf("%w: taker %d vs maker %d", ErrSelfTrade, o.ID, makerID)
					return false
				default: // STPCancelTaker
					stpErr = fmt.Errorf("%w: taker %d vs maker %d", ErrSelfTrade, o.ID, makerID)
					return false
				}
			}

			filled, removed := lvl.Consume(ref, o.Remaining)
			if filled == 0 {
				return true
			}
			touched = true
			o.Remaining -= filled
			maker.Remaining -= filled
			if removed {
				maker.setStatus(Filled)
				b.unregisterOrder(makerID, maker.Owner)
			} else {
				maker.setStatus(PartiallyFilled)
			}
			trades = append(trades, b.emitTrade(makerID, o, price, filled))
			return o.Remaining > 0
		})

		if lvl.Empty() {
			opp.evict(price)
			b.sink.OnBookChanged(oppSide, price, 0)
		} else if touched {
			b.sink.OnBookChanged(oppSide, price, lvl.TotalQty())
		}
		return stpErr == nil && o.Remaining > 0
	})

	if o.Remaining > 0 {
		o.Status = PartiallyFilled
		if o.Remaining == o.Qty {
			o.Status = Active
		}
	} else {
		o.Status = Filled
	}
	return trades, stpErr
}

// cancelMakerLocked removes a resting order on behalf of self-trade
// prevention.
func (b *OrderBook) cancelMakerLocked(loc *location) {
	maker := loc.order
	if _, ok := b.unregisterOrder(maker.ID, maker.Owner); !ok {
		return
	}
	qty, ok := loc.lvl.Remove(loc.ref)
	if !ok {
		return
	}
	maker.setStatus(Cancelled)
	b.sink.OnOrderCancelled(maker.ID, qty)
}

// emitTrade builds the fill record at the maker's resting price,
// updates the last trade price, and notifies the sink in matching
// order.
func (b *OrderBook) emitTrade(makerID uint64, taker *Order, price, qty int64) Trade {
	t := Trade{
		ID:       uuid.New(),
		Symbol:   b.symbol,
		MakerID:  makerID,
		TakerID:  taker.ID,
		Price:    price,
		Qty:      qty,
		Side:     taker.Side,
		Seq:      taker.Seq,
		Time:     b.now(),
		MakerFee: b.fees.Fee(price, qty, true),
		TakerFee: b.fees.Fee(price, qty, false),
	}
	b.lastTrade.Store(price)
	b.sink.OnTrade(t)
	return t
}

// matchAndRest implements Limit/GTC/GTD: match while crossing, rest
// the remainder at the limit price.
func (b *OrderBook) matchAndRest(o *Order) ([]Trade, error) {
	trades, stpErr := b.matchPass(o)
	if stpErr != nil {
		b.discardRemainder(o)
		return trades, stpErr
	}
	if o.Remaining > 0 {
		if err := b.rest(o); err != nil {
			o.Status = Rejected
			b.sink.OnOrderRejected(*o, err)
			return trades, err
		}
	}
	return trades, nil
}

// matchMarket matches in priority order regardless of price; market
// orders never rest, so any remainder is reported as a cancel.
func (b *OrderBook) matchMarket(o *Order) ([]Trade, error) {
	trades, stpErr := b.matchPass(o)
	b.discardRemainder(o)
	return trades, stpErr
}

// matchIOC matches like a limit order for one pass and discards the
// remainder.
func (b *OrderBook) matchIOC(o *Order) ([]Trade, error) {
	trades, stpErr := b.matchPass(o)
	b.discardRemainder(o)
	return trades, stpErr
}

// discardRemainder finalizes a non-resting remainder as a cancel.
func (b *OrderBook) discardRemainder(o *Order) {
	if o.Remaining <= 0 {
		return
	}
	o.Status = Cancelled
	b.sink.OnOrderCancelled(o.ID, o.Remaining)
}

// reservedLevel is one level's claim during an FOK commit.
type reservedLevel struct {
	price int64
	lvl   Level
	got   int64
}

// matchFOK fills the order completely or not at all. Sufficiency is
// established by reserving quantity level by level; reservations
// cannot be cancelled out from under the commit, so the commit is
// all-or-nothing without holding a ladder-wide lock. When reservation
// comes up short (a concurrent cancel shrank a level between the walk
// steps), everything is released untouched and the order is rejected.
func (b *OrderBook) matchFOK(o *Order) ([]Trade, error) {
	opp := b.opposing(o.Side)
	oppSide := o.Side.Opposite()

	if b.stp.enabled() && o.Owner != 0 {
		if err := b.fokSelfTradeCheck(o); err != nil {
			o.Status = Rejected
			b.sink.OnOrderRejected(*o, err)
			return nil, err
		}
	}

	need := o.Remaining
	var reserved []reservedLevel
	opp.walk(func(price int64, lvl Level) bool {
		if !crosses(o, price) {
			return false
		}
		if got := lvl.Reserve(need); got > 0 {
			reserved = append(reserved, reservedLevel{price: price, lvl: lvl, got: got})
			need -= got
		}
		return need > 0
	})

	if need > 0 {
		for _, r := range reserved {
			r.lvl.ReleaseReserved()
		}
		o.Status = Rejected
		err := fmt.Errorf("%w: fok id %d short %d", ErrRejectedByPolicy, o.ID, need)
		b.sink.OnOrderRejected(*o, err)
		return nil, err
	}

	var trades []Trade
	for _, r := range reserved {
		r.lvl.CommitReserved(func(makerID uint64, qty int64, removed bool) {
			loc, ok := b.index.lookup(makerID)
			if !ok {
				// a cancel claimed the id and is waiting out our
				// reservation; the fill stands, and the cancel collects
				// any unreserved residual once we resolve
				o.Remaining -= qty
				trades = append(trades, b.emitTrade(makerID, o, r.price, qty))
				return
			}
			maker := loc.order
			o.Remaining -= qty
			maker.Remaining -= qty
			if removed {
				maker.setStatus(Filled)
				b.unregisterOrder(makerID, maker.Owner)
			} else {
				maker.setStatus(PartiallyFilled)
			}
			trades = append(trades, b.emitTrade(makerID, o, r.price, qty))
		})
		if r.lvl.Empty() {
			opp.evict(r.price)
			b.sink.OnBookChanged(oppSide, r.price, 0)
		} else {
			b.sink.OnBookChanged(oppSide, r.price, r.lvl.TotalQty())
		}
	}
	o.Status = Filled
	return trades, nil
}

// fokSelfTradeCheck rejects an FOK whose required depth includes a
// same-owner maker. Filling around it would either self-trade or make
// the fill partial, so the conservative answer is rejection.
func (b *OrderBook) fokSelfTradeCheck(o *Order) error {
	opp := b.opposing(o.Side)
	need := o.Remaining
	var selfErr error
	opp.walk(func(price int64, lvl Level) bool {
		if !crosses(o, price) {
			return false
		}
		lvl.Ascend(func(_ EntryRef, makerID uint64, remaining int64) bool {
			loc, ok := b.index.lookup(makerID)
			if !ok {
				return true
			}
			if loc.order.Owner == o.Owner {
				selfErr = fmt.Errorf("%w: fok taker %d vs maker %d", ErrSelfTrade, o.ID, makerID)
				return false
			}
			need -= remaining
			return need > 0
		})
		return selfErr == nil && need > 0
	})
	return selfErr
}

// placePostOnly rests the order only when it would not take liquidity.
func (b *OrderBook) placePostOnly(o *Order) ([]Trade, error) {
	opp := b.opposing(o.Side)
	if best, ok := opp.bestPrice(); ok && crosses(o, best) {
		o.Status = Rejected
		err := fmt.Errorf("%w: id %d at %d against %d", ErrWouldCross, o.ID, o.Price, best)
		b.sink.OnOrderRejected(*o, err)
		return nil, err
	}
	if err := b.rest(o); err != nil {
		o.Status = Rejected
		b.sink.OnOrderRejected(*o, err)
		return nil, err
	}
	return nil, nil
}
