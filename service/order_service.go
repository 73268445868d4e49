package service

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vidar/domain/orderbook"
	"vidar/infra/memory"
	"vidar/metrics"
)

// OrderService is the write entry point into the engine. It converts
// client decimals to engine ticks, runs the book, records metrics, and
// schedules GTD expiries. All coordination between domain and infra
// happens here.
type OrderService struct {
	book   *orderbook.OrderBook
	pool   *memory.Pool[orderbook.Order]
	scale  Scale
	mets   *metrics.Metrics
	log    *zap.Logger
	expiry *expiryQueue
}

// NewOrderService wires all dependencies.
// No globals. No magic.
func NewOrderService(
	book *orderbook.OrderBook,
	pool *memory.Pool[orderbook.Order],
	scale Scale,
	mets *metrics.Metrics,
	log *zap.Logger,
) *OrderService {
	return &OrderService{
		book:   book,
		pool:   pool,
		scale:  scale,
		mets:   mets,
		log:    log,
		expiry: newExpiryQueue(),
	}
}

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// OrderRequest is a client-facing order in decimal terms. ID zero lets
// the engine assign one.
type OrderRequest struct {
	ID       uint64
	Owner    uint64
	Side     orderbook.Side
	Type     orderbook.OrderType
	Price    decimal.Decimal
	Trigger  decimal.Decimal
	Qty      decimal.Decimal
	ExpireAt time.Time
}

// Fill is one execution in decimal terms.
type Fill struct {
	TradeID string
	MakerID uint64
	TakerID uint64
	Price   decimal.Decimal
	Qty     decimal.Decimal
}

// OrderResult reports the outcome of a submit or modify.
type OrderResult struct {
	ID        uint64
	Seq       uint64
	Status    orderbook.Status
	Remaining decimal.Decimal
	Fills     []Fill
}

// Submit places an order. The returned result carries the fills the
// order produced as taker; rejection reasons come back as the error.
func (s *OrderService) Submit(req OrderRequest) (OrderResult, error) {
	o, err := s.toOrder(req)
	if err != nil {
		s.mets.OrdersRejected.WithLabelValues(rejectReason(err)).Inc()
		return OrderResult{}, err
	}

	start := time.Now()
	res, err := s.book.Submit(o)
	s.mets.SubmitLatency.Observe(time.Since(start).Seconds())
	s.refreshGauges()

	if err != nil {
		s.log.Debug("order rejected",
			zap.Uint64("id", res.Order.ID),
			zap.Error(err))
		s.recycle(o)
		return s.toResult(res), err
	}

	if res.Order.Type == orderbook.GTD && !res.Order.Terminal() {
		s.expiry.schedule(res.Order.ID, res.Order.ExpireAt)
	}
	s.log.Debug("order submitted",
		zap.Uint64("id", res.Order.ID),
		zap.Uint64("seq", res.Order.Seq),
		zap.String("status", res.Order.Status.String()),
		zap.Int("fills", len(res.Trades)))
	s.recycle(o)
	return s.toResult(res), nil
}

// Cancel removes a live order and returns its unfilled quantity.
func (s *OrderService) Cancel(id uint64) (decimal.Decimal, error) {
	start := time.Now()
	qty, err := s.book.Cancel(id)
	s.mets.CancelLatency.Observe(time.Since(start).Seconds())
	s.refreshGauges()
	if err != nil {
		return decimal.Zero, err
	}
	return s.scale.QtyFromLots(qty), nil
}

// Modify changes price and/or quantity. Only a pure size decrease at
// the same price keeps queue priority.
func (s *OrderService) Modify(id uint64, price, qty decimal.Decimal) (OrderResult, error) {
	ticks, err := s.scale.PriceToTicks(price)
	if err != nil {
		return OrderResult{}, err
	}
	lots, err := s.scale.QtyToLots(qty)
	if err != nil {
		return OrderResult{}, err
	}
	res, err := s.book.Modify(id, lots, ticks)
	s.refreshGauges()
	return s.toResult(res), err
}

// CancelAll cancels every live order of one owner.
func (s *OrderService) CancelAll(owner uint64) int {
	n := s.book.CancelAll(owner)
	s.refreshGauges()
	return n
}

// CancelSide cancels the owner's live orders on one side.
func (s *OrderService) CancelSide(owner uint64, side orderbook.Side) int {
	n := s.book.CancelSide(owner, side)
	s.refreshGauges()
	return n
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// PriceLevel is one aggregated level in decimal terms.
type PriceLevel struct {
	Price  decimal.Decimal
	Qty    decimal.Decimal
	Orders int
}

// BookView is the decimal-facing depth snapshot.
type BookView struct {
	Symbol    string
	Seq       uint64
	Time      int64
	LastTrade decimal.Decimal
	Bids      []PriceLevel
	Asks      []PriceLevel
}

// Snapshot returns the top depth levels per side.
func (s *OrderService) Snapshot(depth int) BookView {
	snap := s.book.Snapshot(depth)
	view := BookView{
		Symbol: snap.Symbol,
		Seq:    snap.Seq,
		Time:   snap.Time,
		Bids:   make([]PriceLevel, 0, len(snap.Bids)),
		Asks:   make([]PriceLevel, 0, len(snap.Asks)),
	}
	if snap.LastTrade != 0 {
		view.LastTrade = s.scale.PriceFromTicks(snap.LastTrade)
	}
	for _, l := range snap.Bids {
		view.Bids = append(view.Bids, s.toLevel(l))
	}
	for _, l := range snap.Asks {
		view.Asks = append(view.Asks, s.toLevel(l))
	}
	return view
}

// MarketStats is the derived market state in decimal terms.
type MarketStats struct {
	Mid       decimal.Decimal
	Spread    decimal.Decimal
	SpreadBPS float64
	Imbalance float64
}

// Stats computes mid, spread, and imbalance over the top five levels.
// ok is false when either side is empty.
func (s *OrderService) Stats() (MarketStats, bool) {
	spread, ok := s.book.Spread()
	if !ok {
		return MarketStats{}, false
	}
	bid, _ := s.book.BestBid()
	ask, _ := s.book.BestAsk()
	bps, _ := s.book.SpreadBPS()
	mid := s.scale.PriceFromTicks(bid).
		Add(s.scale.PriceFromTicks(ask)).
		Div(decimal.NewFromInt(2))
	return MarketStats{
		Mid:       mid,
		Spread:    s.scale.PriceFromTicks(spread),
		SpreadBPS: bps,
		Imbalance: s.book.Imbalance(5),
	}, true
}

//
// ──────────────────────────────────────────────────────────
// Internal
// ──────────────────────────────────────────────────────────
//

func (s *OrderService) toOrder(req OrderRequest) (*orderbook.Order, error) {
	lots, err := s.scale.QtyToLots(req.Qty)
	if err != nil {
		return nil, err
	}
	var price, trigger int64
	if !req.Price.IsZero() {
		if price, err = s.scale.PriceToTicks(req.Price); err != nil {
			return nil, err
		}
	}
	if !req.Trigger.IsZero() {
		if trigger, err = s.scale.PriceToTicks(req.Trigger); err != nil {
			return nil, err
		}
	}
	o := s.pool.Get()
	o.Reset()
	o.ID = req.ID
	o.Owner = req.Owner
	o.Side = req.Side
	o.Type = req.Type
	o.Price = price
	o.Trigger = trigger
	o.Qty = lots
	if !req.ExpireAt.IsZero() {
		o.ExpireAt = req.ExpireAt.UnixNano()
	}
	return o, nil
}

// recycle returns an order to the pool once the book no longer holds
// it. Resting and parked orders stay referenced by the book.
func (s *OrderService) recycle(o *orderbook.Order) {
	if o.Terminal() {
		s.pool.Put(o)
	}
}

func (s *OrderService) toResult(res orderbook.SubmitResult) OrderResult {
	out := OrderResult{
		ID:        res.Order.ID,
		Seq:       res.Order.Seq,
		Status:    res.Order.Status,
		Remaining: s.scale.QtyFromLots(res.Order.Remaining),
	}
	for _, t := range res.Trades {
		out.Fills = append(out.Fills, Fill{
			TradeID: t.ID.String(),
			MakerID: t.MakerID,
			TakerID: t.TakerID,
			Price:   s.scale.PriceFromTicks(t.Price),
			Qty:     s.scale.QtyFromLots(t.Qty),
		})
	}
	return out
}

func (s *OrderService) toLevel(l orderbook.LevelSnapshot) PriceLevel {
	return PriceLevel{
		Price:  s.scale.PriceFromTicks(l.Price),
		Qty:    s.scale.QtyFromLots(l.Qty),
		Orders: l.Orders,
	}
}

func (s *OrderService) refreshGauges() {
	if bid, ok := s.book.BestBid(); ok {
		s.mets.BestBid.Set(float64(bid))
	} else {
		s.mets.BestBid.Set(0)
	}
	if ask, ok := s.book.BestAsk(); ok {
		s.mets.BestAsk.Set(float64(ask))
	} else {
		s.mets.BestAsk.Set(0)
	}
	s.mets.BookDepth.WithLabelValues("bid").Set(float64(s.book.DepthBid()))
	s.mets.BookDepth.WithLabelValues("ask").Set(float64(s.book.DepthAsk()))
	s.mets.OpenOrders.Set(float64(s.book.OpenOrders()))
	s.mets.PendingStops.Set(float64(s.book.PendingStops()))
}
