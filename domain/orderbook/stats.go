package orderbook

// Market statistics derived from the live ladders. All of them are
// read-only and may be slightly stale relative to concurrent
// mutation, like Snapshot.

// MidPrice returns the midpoint of the best bid and ask.
func (b *OrderBook) MidPrice() (float64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return float64(bid+ask) / 2, true
}

// Spread returns best ask minus best bid in ticks.
func (b *OrderBook) Spread() (int64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return ask - bid, true
}

// SpreadBPS returns the spread in basis points of the mid price.
func (b *OrderBook) SpreadBPS() (float64, bool) {
	spread, ok := b.Spread()
	if !ok {
		return 0, false
	}
	mid, ok := b.MidPrice()
	if !ok || mid == 0 {
		return 0, false
	}
	return float64(spread) / mid * 10_000, true
}

// VWAP returns the volume-weighted average price of consuming qty
// from one side, walking from the best level. ok is false when the
// side cannot cover qty.
func (b *OrderBook) VWAP(side Side, qty int64) (float64, bool) {
	if qty <= 0 {
		return 0, false
	}
	ld := b.ladderFor(side)
	var notional, taken int64
	ld.walk(func(price int64, lvl Level) bool {
		avail := lvl.TotalQty()
		if avail <= 0 {
			return true
		}
		take := qty - taken
		if avail < take {
			take = avail
		}
		notional += price * take
		taken += take
		return taken < qty
	})
	if taken < qty {
		return 0, false
	}
	return float64(notional) / float64(qty), true
}

// Imbalance returns the buy/sell pressure over the top N levels in
// [-1, 1]: positive = bid heavy, negative = ask heavy, 0 = balanced
// or empty.
func (b *OrderBook) Imbalance(levels int) float64 {
	if levels <= 0 {
		levels = 1
	}
	bidQty := sideQty(b.bids, levels)
	askQty := sideQty(b.asks, levels)
	total := bidQty + askQty
	if total == 0 {
		return 0
	}
	return float64(bidQty-askQty) / float64(total)
}

func sideQty(ld *ladder, levels int) int64 {
	var qty int64
	n := 0
	ld.walk(func(_ int64, lvl Level) bool {
		q := lvl.TotalQty()
		if q <= 0 {
			return true
		}
		qty += q
		n++
		return n < levels
	})
	return qty
}
