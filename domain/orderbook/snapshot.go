package orderbook

// LevelSnapshot is the aggregate view of one price level: price and
// visible quantity only, no order detail.
type LevelSnapshot struct {
	Price  int64
	Qty    int64
	Orders int
}

// Snapshot is a point-in-time-ish view of the top of the book. It may
// lag concurrent cancels slightly but never shows an empty level or a
// crossed book.
type Snapshot struct {
	Symbol    string
	Seq       uint64
	Time      int64
	LastTrade int64 // 0 = no trade yet
	Bids      []LevelSnapshot
	Asks      []LevelSnapshot
}

// Snapshot collects up to depth levels per side. It takes the read
// half of the match lock, so no taker pass is in flight while the
// ladders are walked.
func (b *OrderBook) Snapshot(depth int) Snapshot {
	if depth <= 0 {
		depth = 1
	}
	b.matchMu.RLock()
	snap := Snapshot{
		Symbol:    b.symbol,
		Seq:       b.seq.Load(),
		Time:      b.now(),
		LastTrade: b.lastTrade.Load(),
		Bids:      b.bids.top(depth),
		Asks:      b.asks.top(depth),
	}
	b.matchMu.RUnlock()
	return snap
}

// DepthBid and DepthAsk report the number of occupied levels per side.
func (b *OrderBook) DepthBid() int { return b.bids.depth() }

// DepthAsk reports the number of occupied ask levels.
func (b *OrderBook) DepthAsk() int { return b.asks.depth() }
