package orderbook

import "github.com/google/uuid"

// Trade records one matching event. Immutable once produced. The price
// is always the maker's resting price.
type Trade struct {
	ID       uuid.UUID
	Symbol   string
	MakerID  uint64
	TakerID  uint64
	Price    int64
	Qty      int64
	Side     Side   // aggressor side
	Seq      uint64 // taker arrival sequence
	Time     int64  // unix nanos
	MakerFee int64  // negative = rebate
	TakerFee int64
}

// EventSink receives trade and book-change notifications. For a single
// Submit call all fill notifications are delivered in matching order
// before the call returns; ordering across concurrent calls is not
// guaranteed. Implementations must not call back into the book.
type EventSink interface {
	OnTrade(t Trade)
	OnOrderAccepted(o Order)
	OnOrderRejected(o Order, reason error)
	OnOrderCancelled(id uint64, remaining int64)
	// OnBookChanged reports the new aggregate quantity at a price
	// level; zero means the level is gone.
	OnBookChanged(side Side, price int64, totalQty int64)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) OnTrade(Trade)                    {}
func (NopSink) OnOrderAccepted(Order)            {}
func (NopSink) OnOrderRejected(Order, error)     {}
func (NopSink) OnOrderCancelled(uint64, int64)   {}
func (NopSink) OnBookChanged(Side, int64, int64) {}

// MultiSink fans events out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) OnTrade(t Trade) {
	for _, s := range m {
		s.OnTrade(t)
	}
}

func (m MultiSink) OnOrderAccepted(o Order) {
	for _, s := range m {
		s.OnOrderAccepted(o)
	}
}

func (m MultiSink) OnOrderRejected(o Order, reason error) {
	for _, s := range m {
		s.OnOrderRejected(o, reason)
	}
}

func (m MultiSink) OnOrderCancelled(id uint64, remaining int64) {
	for _, s := range m {
		s.OnOrderCancelled(id, remaining)
	}
}

func (m MultiSink) OnBookChanged(side Side, price int64, totalQty int64) {
	for _, s := range m {
		s.OnBookChanged(side, price, totalQty)
	}
}
