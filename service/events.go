package service

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"vidar/domain/orderbook"
	"vidar/infra/journal"
	"vidar/infra/sequence"
	"vidar/metrics"
)

// Wire events. Prices and quantities stay in engine ticks and lots;
// consumers apply the instrument scale themselves.

type TradeEvent struct {
	V       int    `json:"v"`
	Type    string `json:"type"`
	ID      string `json:"id"`
	Symbol  string `json:"symbol"`
	MakerID uint64 `json:"maker_id"`
	TakerID uint64 `json:"taker_id"`
	Price   int64  `json:"price"`
	Qty     int64  `json:"qty"`
	Side    string `json:"side"`
	Seq     uint64 `json:"seq"`
	Time    int64  `json:"time"`
}

type OrderEvent struct {
	V         int    `json:"v"`
	Type      string `json:"type"` // accepted | rejected | cancelled
	ID        uint64 `json:"id"`
	Seq       uint64 `json:"seq,omitempty"`
	Side      string `json:"side,omitempty"`
	OrderType string `json:"order_type,omitempty"`
	Price     int64  `json:"price,omitempty"`
	Qty       int64  `json:"qty,omitempty"`
	Remaining int64  `json:"remaining,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type BookEvent struct {
	V     int    `json:"v"`
	Type  string `json:"type"` // book
	Side  string `json:"side"`
	Price int64  `json:"price"`
	Qty   int64  `json:"qty"` // 0 = level gone
}

// JournalSink persists every engine event into the outbox journal,
// stamped with its own outbound sequence. Journal errors are logged
// and swallowed: the engine must not stall on the journal.
type JournalSink struct {
	jnl *journal.Journal
	seq *sequence.Sequencer
	log *zap.Logger
}

func NewJournalSink(jnl *journal.Journal, seq *sequence.Sequencer, log *zap.Logger) *JournalSink {
	return &JournalSink{jnl: jnl, seq: seq, log: log}
}

func (s *JournalSink) append(kind journal.Kind, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.log.Error("event encode failed", zap.Error(err))
		return
	}
	if err := s.jnl.Append(s.seq.Next(), kind, payload); err != nil {
		s.log.Error("journal append failed", zap.Error(err))
	}
}

func (s *JournalSink) OnTrade(t orderbook.Trade) {
	s.append(journal.KindTrade, TradeEvent{
		V:       1,
		Type:    "trade",
		ID:      t.ID.String(),
		Symbol:  t.Symbol,
		MakerID: t.MakerID,
		TakerID: t.TakerID,
		Price:   t.Price,
		Qty:     t.Qty,
		Side:    t.Side.String(),
		Seq:     t.Seq,
		Time:    t.Time,
	})
}

func (s *JournalSink) OnOrderAccepted(o orderbook.Order) {
	s.append(journal.KindOrder, OrderEvent{
		V:         1,
		Type:      "accepted",
		ID:        o.ID,
		Seq:       o.Seq,
		Side:      o.Side.String(),
		OrderType: o.Type.String(),
		Price:     o.Price,
		Qty:       o.Qty,
	})
}

func (s *JournalSink) OnOrderRejected(o orderbook.Order, err error) {
	s.append(journal.KindOrder, OrderEvent{
		V:      1,
		Type:   "rejected",
		ID:     o.ID,
		Reason: err.Error(),
	})
}

func (s *JournalSink) OnOrderCancelled(id uint64, remaining int64) {
	s.append(journal.KindOrder, OrderEvent{
		V:         1,
		Type:      "cancelled",
		ID:        id,
		Remaining: remaining,
	})
}

func (s *JournalSink) OnBookChanged(side orderbook.Side, price, totalQty int64) {
	s.append(journal.KindBook, BookEvent{
		V:     1,
		Type:  "book",
		Side:  side.String(),
		Price: price,
		Qty:   totalQty,
	})
}

// MetricsSink feeds the engine's event stream into Prometheus
// counters. Latency histograms and gauges are updated by the service
// methods instead, where the timings live.
type MetricsSink struct {
	m *metrics.Metrics
}

func NewMetricsSink(m *metrics.Metrics) *MetricsSink { return &MetricsSink{m: m} }

func (s *MetricsSink) OnTrade(t orderbook.Trade) {
	s.m.TradesExecuted.Inc()
	s.m.TradedVolume.Add(float64(t.Qty))
}

func (s *MetricsSink) OnOrderAccepted(o orderbook.Order) {
	s.m.OrdersSubmitted.WithLabelValues(o.Type.String()).Inc()
}

func (s *MetricsSink) OnOrderRejected(_ orderbook.Order, err error) {
	s.m.OrdersRejected.WithLabelValues(rejectReason(err)).Inc()
}

func (s *MetricsSink) OnOrderCancelled(uint64, int64) {
	s.m.OrdersCancelled.Inc()
}

func (s *MetricsSink) OnBookChanged(orderbook.Side, int64, int64) {}

// rejectReason maps rejection errors onto a bounded label set.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, orderbook.ErrDuplicateOrderID):
		return "duplicate_id"
	case errors.Is(err, orderbook.ErrInvalidTick):
		return "tick"
	case errors.Is(err, orderbook.ErrInvalidLot):
		return "lot"
	case errors.Is(err, orderbook.ErrSizeOutOfRange):
		return "size"
	case errors.Is(err, orderbook.ErrWouldCross):
		return "would_cross"
	case errors.Is(err, orderbook.ErrSelfTrade):
		return "self_trade"
	case errors.Is(err, orderbook.ErrRejectedByPolicy):
		return "fok_short"
	case errors.Is(err, orderbook.ErrMissingOwner):
		return "missing_owner"
	case errors.Is(err, orderbook.ErrInvalidOrder):
		return "invalid"
	default:
		return "other"
	}
}
