package orderbook

import (
	"sync"

	"github.com/tidwall/btree"
)

// stopSet holds stop and stop-limit orders until the reference price
// crosses their trigger. Parked orders are not part of any ladder and
// carry no time priority; they receive a fresh arrival sequence at
// release.
//
// Buy stops fire when the reference price rises to or above the
// trigger; sell stops fire when it falls to or below it.
type stopSet struct {
	mu    sync.Mutex
	buys  btree.Map[int64, []*Order]
	sells btree.Map[int64, []*Order]
	count int
}

func newStopSet() *stopSet { return &stopSet{} }

func (s *stopSet) park(o *Order) {
	s.mu.Lock()
	m := &s.buys
	if o.Side == Ask {
		m = &s.sells
	}
	queue, _ := m.Get(o.Trigger)
	m.Set(o.Trigger, append(queue, o))
	s.count++
	s.mu.Unlock()
}

// cancel removes the order by identity; false when it is not parked
// (already released or never parked).
func (s *stopSet) cancel(o *Order) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := &s.buys
	if o.Side == Ask {
		m = &s.sells
	}
	queue, ok := m.Get(o.Trigger)
	if !ok {
		return false
	}
	for i, parked := range queue {
		if parked == o {
			queue = append(queue[:i], queue[i+1:]...)
			if len(queue) == 0 {
				m.Delete(o.Trigger)
			} else {
				m.Set(o.Trigger, queue)
			}
			s.count--
			return true
		}
	}
	return false
}

// triggered pops every order whose trigger is crossed by ref. Buy
// stops come out in ascending trigger order, sell stops descending,
// each trigger level in arrival order.
func (s *stopSet) triggered(ref int64) []*Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Order

	var buyKeys []int64
	s.buys.Scan(func(trigger int64, _ []*Order) bool {
		if trigger > ref {
			return false
		}
		buyKeys = append(buyKeys, trigger)
		return true
	})
	for _, k := range buyKeys {
		queue, _ := s.buys.Get(k)
		out = append(out, queue...)
		s.buys.Delete(k)
		s.count -= len(queue)
	}

	var sellKeys []int64
	s.sells.Reverse(func(trigger int64, _ []*Order) bool {
		if trigger < ref {
			return false
		}
		sellKeys = append(sellKeys, trigger)
		return true
	})
	for _, k := range sellKeys {
		queue, _ := s.sells.Get(k)
		out = append(out, queue...)
		s.sells.Delete(k)
		s.count -= len(queue)
	}
	return out
}

func (s *stopSet) size() int {
	s.mu.Lock()
	n := s.count
	s.mu.Unlock()
	return n
}

// TriggerSource supplies the reference price stop orders are evaluated
// against. The exact source (last trade vs. quote derived) is a market
// policy, so it is pluggable rather than hardwired.
type TriggerSource interface {
	TriggerPrice(b *OrderBook) (int64, bool)
}

// LastTradePrice triggers stops off the most recent execution price.
// This is the default.
type LastTradePrice struct{}

func (LastTradePrice) TriggerPrice(b *OrderBook) (int64, bool) { return b.LastTrade() }

// MidQuote triggers stops off the midpoint of the best bid and ask.
type MidQuote struct{}

func (MidQuote) TriggerPrice(b *OrderBook) (int64, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return 0, false
	}
	return (bid + ask) / 2, true
}
