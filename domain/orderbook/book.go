package orderbook

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// OrderBook composes the two side ladders, the order index, the
// pending-trigger set, and the matching engine for one instrument.
//
// Every public operation is safe for concurrent use. Taker passes
// (Submit, Modify) serialize on the write half of matchMu so the
// matching algorithm and FOK sufficiency checks are linearizable;
// Cancel runs concurrently against per-level locks, and Snapshot only
// takes the read half, so readers never observe a crossed book.
type OrderBook struct {
	symbol string

	bids *ladder
	asks *ladder

	index  *orderIndex
	owners *ownerIndex
	stops  *stopSet

	matchMu sync.RWMutex

	// arrival sequence: a single linearizable counter per book
	seq atomic.Uint64

	// last trade price; 0 = no trade yet
	lastTrade atomic.Int64

	sink    EventSink
	trigger TriggerSource

	fees FeeSchedule
	stp  STPMode

	tickSize int64
	lotSize  int64
	minSize  int64
	maxSize  int64

	now func() int64
}

// Option configures an OrderBook at construction time.
type Option func(*OrderBook)

// WithEventSink sets the sink trade and book-change notifications are
// delivered to. Defaults to NopSink.
func WithEventSink(s EventSink) Option { return func(b *OrderBook) { b.sink = s } }

// WithLevelFactory overrides the price-level collaborator.
func WithLevelFactory(f LevelFactory) Option {
	return func(b *OrderBook) {
		b.bids = newLadder(Bid, f)
		b.asks = newLadder(Ask, f)
	}
}

// WithTriggerSource sets the reference price used to release stops.
func WithTriggerSource(t TriggerSource) Option { return func(b *OrderBook) { b.trigger = t } }

// WithTickSize requires prices to be multiples of tick.
func WithTickSize(tick int64) Option { return func(b *OrderBook) { b.tickSize = tick } }

// WithLotSize requires quantities to be multiples of lot.
func WithLotSize(lot int64) Option { return func(b *OrderBook) { b.lotSize = lot } }

// WithMinOrderSize rejects orders below min lots.
func WithMinOrderSize(min int64) Option { return func(b *OrderBook) { b.minSize = min } }

// WithMaxOrderSize rejects orders above max lots.
func WithMaxOrderSize(max int64) Option { return func(b *OrderBook) { b.maxSize = max } }

// WithSTPMode enables self-trade prevention.
func WithSTPMode(m STPMode) Option { return func(b *OrderBook) { b.stp = m } }

// WithFeeSchedule attaches per-fill maker/taker fees.
func WithFeeSchedule(f FeeSchedule) Option { return func(b *OrderBook) { b.fees = f } }

// WithClock overrides the trade timestamp source, for tests.
func WithClock(now func() int64) Option { return func(b *OrderBook) { b.now = now } }

// New creates an empty book for one instrument. A LevelFactory must be
// supplied via WithLevelFactory; the book does not bundle a queue
// implementation of its own.
func New(symbol string, opts ...Option) *OrderBook {
	b := &OrderBook{
		symbol:  symbol,
		index:   newOrderIndex(),
		owners:  newOwnerIndex(),
		stops:   newStopSet(),
		sink:    NopSink{},
		trigger: LastTradePrice{},
		now:     func() int64 { return time.Now().UnixNano() },
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.bids == nil {
		panic("orderbook: New requires WithLevelFactory")
	}
	return b
}

// Symbol returns the instrument identifier.
func (b *OrderBook) Symbol() string { return b.symbol }

// Seq returns the last issued arrival sequence number.
func (b *OrderBook) Seq() uint64 { return b.seq.Load() }

func (b *OrderBook) nextSeq() uint64 { return b.seq.Add(1) }

// BestBid returns the highest occupied bid price.
func (b *OrderBook) BestBid() (int64, bool) { return b.bids.bestPrice() }

// BestAsk returns the lowest occupied ask price.
func (b *OrderBook) BestAsk() (int64, bool) { return b.asks.bestPrice() }

// LastTrade returns the most recent execution price.
func (b *OrderBook) LastTrade() (int64, bool) {
	p := b.lastTrade.Load()
	return p, p != 0
}

// OpenOrders returns the number of live entries in the order index,
// pending stops included.
func (b *OrderBook) OpenOrders() int { return b.index.size() }

// PendingStops returns the number of parked stop orders.
func (b *OrderBook) PendingStops() int { return b.stops.size() }

func (b *OrderBook) ladderFor(s Side) *ladder {
	if s == Bid {
		return b.bids
	}
	return b.asks
}

func (b *OrderBook) opposing(s Side) *ladder { return b.ladderFor(s.Opposite()) }

// SubmitResult is the outcome of one Submit or Modify call: the fills
// the submitted order produced as taker, in matching order, and a copy
// of its final state. Fills of stop orders released by this call go to
// the event sink only.
type SubmitResult struct {
	Order  Order
	Trades []Trade
}

// Submit validates the order, assigns its arrival sequence, matches it
// against the opposing ladder according to its type, and rests, parks,
// or discards the remainder.
func (b *OrderBook) Submit(o *Order) (SubmitResult, error) {
	if err := b.validate(o); err != nil {
		return b.reject(o, err)
	}
	if o.ID != 0 && b.index.contains(o.ID) {
		return b.reject(o, fmt.Errorf("%w: id %d is live", ErrDuplicateOrderID, o.ID))
	}

	b.matchMu.Lock()
	defer b.matchMu.Unlock()

	o.Seq = b.nextSeq()
	if o.ID == 0 {
		o.ID = o.Seq
	}
	o.Remaining = o.Qty
	o.Status = Active
	b.sink.OnOrderAccepted(*o)

	trades, err := b.dispatchLocked(o)
	if err != nil {
		return SubmitResult{Order: *o, Trades: trades}, err
	}
	if len(trades) > 0 {
		b.releaseTriggeredLocked()
	}
	return SubmitResult{Order: *o, Trades: trades}, nil
}

// dispatchLocked runs the per-type submission behavior. Caller holds
// the matchMu write lock. The switch is exhaustive over OrderType.
func (b *OrderBook) dispatchLocked(o *Order) ([]Trade, error) {
	switch o.Type {
	case Limit, GTC, GTD:
		return b.matchAndRest(o)
	case Market:
		return b.matchMarket(o)
	case IOC:
		return b.matchIOC(o)
	case FOK:
		return b.matchFOK(o)
	case Stop, StopLimit:
		return nil, b.parkStopLocked(o)
	case PostOnly:
		return b.placePostOnly(o)
	default:
		o.Status = Rejected
		err := fmt.Errorf("%w: unknown type %d", ErrInvalidOrder, o.Type)
		b.sink.OnOrderRejected(*o, err)
		return nil, err
	}
}

func (b *OrderBook) reject(o *Order, err error) (SubmitResult, error) {
	o.Status = Rejected
	b.sink.OnOrderRejected(*o, err)
	return SubmitResult{Order: *o}, err
}

// rest places the remainder in the same-side ladder and registers it.
// Caller holds the matchMu write lock and has verified the id is free.
func (b *OrderBook) rest(o *Order) error {
	ld := b.ladderFor(o.Side)
	lvl, ref := ld.insert(o.Price, o)
	loc := &location{order: o, side: o.Side, price: o.Price, lvl: lvl, ref: ref}
	if err := b.index.register(o.ID, loc); err != nil {
		// id raced into the index between the Submit pre-check and
		// now; back the insert out untouched
		if qty, ok := lvl.Remove(ref); ok && qty > 0 && lvl.Empty() {
			ld.evict(o.Price)
		}
		return err
	}
	b.owners.track(o.Owner, o.ID)
	b.sink.OnBookChanged(o.Side, o.Price, lvl.TotalQty())
	return nil
}

// unregisterOrder atomically claims the id out of the index and the
// owner tracking. ok is false when someone else claimed it first.
func (b *OrderBook) unregisterOrder(id, owner uint64) (*location, bool) {
	loc, ok := b.index.unregister(id)
	if !ok {
		return nil, false
	}
	b.owners.untrack(owner, id)
	return loc, true
}

// Cancel removes the order from its price level and the order index
// atomically and returns its remaining quantity. A cancel that races
// with a completing match reports ErrAlreadyFilled.
func (b *OrderBook) Cancel(id uint64) (int64, error) {
	loc, ok := b.index.lookup(id)
	if !ok {
		return 0, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	o := loc.order

	// claiming the index entry first makes the cancel/match race
	// deterministic: whoever unregisters the id owns the terminal
	// transition
	if _, ok := b.unregisterOrder(id, o.Owner); !ok {
		return 0, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	if loc.stop {
		if !b.stops.cancel(o) {
			// the release loop popped it but lost the unregister race;
			// it will drop the order on the floor
			o.setStatus(Cancelled)
			b.sink.OnOrderCancelled(id, o.Remaining)
			return o.Remaining, nil
		}
		o.setStatus(Cancelled)
		b.sink.OnOrderCancelled(id, o.Remaining)
		return o.Remaining, nil
	}

	ld := b.ladderFor(loc.side)
	qty, ok := b.removeResting(loc)
	if !ok {
		return 0, fmt.Errorf("%w: id %d", ErrAlreadyFilled, id)
	}
	if loc.lvl.Empty() {
		ld.evict(loc.price)
		b.sink.OnBookChanged(loc.side, loc.price, 0)
	} else {
		b.sink.OnBookChanged(loc.side, loc.price, loc.lvl.TotalQty())
	}
	o.setStatus(Cancelled)
	b.sink.OnOrderCancelled(id, qty)
	return qty, nil
}

// removeResting unlinks a cancelled order's entry from its level,
// waiting out any in-flight all-or-nothing reservation: a reservation
// that releases leaves the quantity cancellable, one that commits
// leaves the entry gone or a partial remainder that the retry then
// removes. Only a genuinely unlinked entry reports failure, so the
// caller never tells a ghost "already filled". Reservations live only
// while an FOK taker holds the match lock, so the wait is short.
func (b *OrderBook) removeResting(loc *location) (int64, bool) {
	for {
		if qty, ok := loc.lvl.Remove(loc.ref); ok {
			return qty, true
		}
		if loc.lvl.Unlinked(loc.ref) {
			return 0, false
		}
		runtime.Gosched()
	}
}

// Modify changes an order's quantity and/or price. A pure quantity
// decrease at an unchanged price shrinks the entry in place and keeps
// its time priority; the decrease also rewrites Qty, so the order's
// reported original quantity shrinks with it and Filled keeps meaning
// the executed amount. Every other change is a cancel plus resubmit
// under the same id with a fresh arrival sequence. Stop-market orders
// carry no limit price: pass newPrice 0 to adjust their quantity.
func (b *OrderBook) Modify(id uint64, newQty, newPrice int64) (SubmitResult, error) {
	if newQty <= 0 || newPrice < 0 {
		return SubmitResult{}, fmt.Errorf("%w: modify qty=%d price=%d", ErrInvalidOrder, newQty, newPrice)
	}

	b.matchMu.Lock()
	defer b.matchMu.Unlock()

	loc, ok := b.index.lookup(id)
	if !ok {
		return SubmitResult{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	o := loc.order
	if newPrice == 0 && o.Type.priced() {
		return SubmitResult{}, fmt.Errorf("%w: %s order requires a limit price", ErrInvalidOrder, o.Type)
	}

	if !loc.stop && newPrice == loc.price && newQty < o.Remaining {
		if !loc.lvl.Reduce(loc.ref, newQty) {
			return SubmitResult{}, fmt.Errorf("%w: id %d", ErrAlreadyFilled, id)
		}
		// the reduction is not a fill: shrink Qty alongside Remaining
		o.Qty -= o.Remaining - newQty
		o.Remaining = newQty
		b.sink.OnBookChanged(loc.side, loc.price, loc.lvl.TotalQty())
		return SubmitResult{Order: *o}, nil
	}

	// cancel + resubmit: price moves and size increases forfeit time
	// priority
	if _, ok := b.unregisterOrder(id, o.Owner); !ok {
		return SubmitResult{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if loc.stop {
		b.stops.cancel(o)
	} else {
		if _, ok := loc.lvl.Remove(loc.ref); !ok {
			return SubmitResult{}, fmt.Errorf("%w: id %d", ErrAlreadyFilled, id)
		}
		if loc.lvl.Empty() {
			b.ladderFor(loc.side).evict(loc.price)
			b.sink.OnBookChanged(loc.side, loc.price, 0)
		} else {
			b.sink.OnBookChanged(loc.side, loc.price, loc.lvl.TotalQty())
		}
	}

	// stop-market orders carry no limit price; a modify adjusts their
	// quantity only
	price := newPrice
	if !o.Type.priced() {
		price = 0
	}
	repl := &Order{
		ID:       id,
		Owner:    o.Owner,
		Side:     o.Side,
		Type:     o.Type,
		Price:    price,
		Trigger:  o.Trigger,
		Qty:      newQty,
		ExpireAt: o.ExpireAt,
	}
	if err := b.validate(repl); err != nil {
		repl.Status = Rejected
		b.sink.OnOrderRejected(*repl, err)
		return SubmitResult{Order: *repl}, err
	}
	repl.Seq = b.nextSeq()
	repl.Remaining = repl.Qty
	repl.Status = Active
	b.sink.OnOrderAccepted(*repl)

	trades, err := b.dispatchLocked(repl)
	if err != nil {
		return SubmitResult{Order: *repl, Trades: trades}, err
	}
	if len(trades) > 0 {
		b.releaseTriggeredLocked()
	}
	return SubmitResult{Order: *repl, Trades: trades}, nil
}

// CancelAll cancels every live order of the owner and returns how many
// were removed.
func (b *OrderBook) CancelAll(owner uint64) int {
	return b.massCancel(owner, func(*location) bool { return true })
}

// CancelSide cancels the owner's live orders on one side.
func (b *OrderBook) CancelSide(owner uint64, side Side) int {
	return b.massCancel(owner, func(loc *location) bool { return loc.side == side })
}

func (b *OrderBook) massCancel(owner uint64, keep func(*location) bool) int {
	n := 0
	for _, id := range b.owners.snapshot(owner) {
		loc, ok := b.index.lookup(id)
		if !ok || !keep(loc) {
			continue
		}
		if _, err := b.Cancel(id); err == nil {
			n++
		}
	}
	return n
}

// parkStopLocked holds a stop order until its trigger is crossed, or
// releases it immediately when the reference price already satisfies
// the trigger.
func (b *OrderBook) parkStopLocked(o *Order) error {
	if ref, ok := b.trigger.TriggerPrice(b); ok && stopTriggered(o, ref) {
		b.convertStop(o)
		_, err := b.dispatchLocked(o)
		return err
	}
	o.Status = PendingTrigger
	b.stops.park(o)
	loc := &location{order: o, side: o.Side, price: o.Trigger, stop: true}
	if err := b.index.register(o.ID, loc); err != nil {
		b.stops.cancel(o)
		o.Status = Rejected
		b.sink.OnOrderRejected(*o, err)
		return err
	}
	b.owners.track(o.Owner, o.ID)
	return nil
}

func stopTriggered(o *Order, ref int64) bool {
	if o.Side == Bid {
		return ref >= o.Trigger
	}
	return ref <= o.Trigger
}

// convertStop turns a triggered stop into its released form. The order
// keeps its id but loses any original time priority: it is resequenced
// by the caller's dispatch.
func (b *OrderBook) convertStop(o *Order) {
	if o.Type == Stop {
		o.Type = Market
		o.Price = 0
	} else {
		o.Type = Limit
	}
	o.Status = Active
}

// releaseTriggeredLocked drains the stop set as long as the reference
// price keeps crossing triggers. Each released order gets a fresh
// sequence and goes through the ordinary dispatch; its fills can
// trigger further stops, hence the loop.
func (b *OrderBook) releaseTriggeredLocked() {
	for {
		ref, ok := b.trigger.TriggerPrice(b)
		if !ok {
			return
		}
		ready := b.stops.triggered(ref)
		if len(ready) == 0 {
			return
		}
		for _, so := range ready {
			// a concurrent cancel that claimed the id wins
			if _, ok := b.unregisterOrder(so.ID, so.Owner); !ok {
				continue
			}
			so.Seq = b.nextSeq()
			b.convertStop(so)
			_, _ = b.dispatchLocked(so)
		}
	}
}
