// Package pricelevel implements the resting-order queue at a single
// price: a fine-grained-locked FIFO with atomic aggregate quantity and
// reservation support for all-or-nothing commits. It is the default
// Level collaborator of the order book and has no dependency on it.
package pricelevel

import (
	"sync"
	"sync/atomic"
)

// Entry is one resting order's slot in the queue. Callers treat it as
// an opaque handle: all field access happens inside Level methods,
// under the level lock.
type Entry struct {
	orderID   uint64
	remaining int64
	reserved  int64
	removed   bool
	next      *Entry
	prev      *Entry
}

// Level is the FIFO queue of resting quantity at one exact price.
// All operations are safe for concurrent use; the aggregate quantity
// is readable without taking the lock.
type Level struct {
	price int64

	mu   sync.Mutex
	head *Entry
	tail *Entry

	totalQty atomic.Int64
	count    atomic.Int64
}

// New creates an empty level at price.
func New(price int64) *Level { return &Level{price: price} }

func (l *Level) Price() int64 { return l.price }

// TotalQty returns the aggregate visible quantity.
func (l *Level) TotalQty() int64 { return l.totalQty.Load() }

// Count returns the number of resting entries.
func (l *Level) Count() int { return int(l.count.Load()) }

// Empty reports whether no visible quantity rests here.
func (l *Level) Empty() bool { return l.totalQty.Load() == 0 }

// Add appends qty for orderID in arrival order and returns the entry
// handle.
func (l *Level) Add(orderID uint64, qty int64) any {
	e := &Entry{orderID: orderID, remaining: qty}
	l.mu.Lock()
	if l.tail == nil {
		l.head, l.tail = e, e
	} else {
		l.tail.next = e
		e.prev = l.tail
		l.tail = e
	}
	l.mu.Unlock()
	l.totalQty.Add(qty)
	l.count.Add(1)
	return e
}

// unlinkLocked detaches e from the queue. Caller holds mu.
func (l *Level) unlinkLocked(e *Entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.removed = true
	l.count.Add(-1)
}

// Remove unlinks the entry and returns its remaining quantity. It
// fails when the entry is already gone or is claimed by an in-flight
// reservation: claimed quantity belongs to the committing match.
func (l *Level) Remove(ref any) (int64, bool) {
	e, ok := ref.(*Entry)
	if !ok {
		return 0, false
	}
	l.mu.Lock()
	if e.removed || e.reserved > 0 {
		l.mu.Unlock()
		return 0, false
	}
	qty := e.remaining
	e.remaining = 0
	l.unlinkLocked(e)
	l.mu.Unlock()
	l.totalQty.Add(-qty)
	return qty, true
}

// Unlinked reports whether the entry has left the queue for good. A
// failed Remove on an entry that is not unlinked means the entry is
// claimed by an in-flight reservation and the caller may retry once
// the reservation commits or releases.
func (l *Level) Unlinked(ref any) bool {
	e, ok := ref.(*Entry)
	if !ok {
		return true
	}
	l.mu.Lock()
	gone := e.removed
	l.mu.Unlock()
	return gone
}

// Reduce shrinks the entry in place without losing queue position.
func (l *Level) Reduce(ref any, newQty int64) bool {
	e, ok := ref.(*Entry)
	if !ok || newQty <= 0 {
		return false
	}
	l.mu.Lock()
	if e.removed || e.reserved > 0 || newQty >= e.remaining {
		l.mu.Unlock()
		return false
	}
	delta := e.remaining - newQty
	e.remaining = newQty
	l.mu.Unlock()
	l.totalQty.Add(-delta)
	return true
}

// Consume fills up to qty from the entry, unlinking it when exhausted.
// A concurrently removed entry yields a zero fill, not an error.
func (l *Level) Consume(ref any, qty int64) (int64, bool) {
	e, ok := ref.(*Entry)
	if !ok || qty <= 0 {
		return 0, false
	}
	l.mu.Lock()
	if e.removed || e.reserved > 0 {
		l.mu.Unlock()
		return 0, false
	}
	fill := qty
	if e.remaining < fill {
		fill = e.remaining
	}
	e.remaining -= fill
	removed := e.remaining == 0
	if removed {
		l.unlinkLocked(e)
	}
	l.mu.Unlock()
	l.totalQty.Add(-fill)
	return fill, removed
}

// Reserve claims up to need quantity from the head of the queue for a
// later all-or-nothing commit and returns the claimed amount. Claimed
// quantity cannot be removed by Remove until committed or released.
func (l *Level) Reserve(need int64) int64 {
	if need <= 0 {
		return 0
	}
	var got int64
	l.mu.Lock()
	for e := l.head; e != nil && got < need; e = e.next {
		take := need - got
		if e.remaining < take {
			take = e.remaining
		}
		e.reserved = take
		got += take
	}
	l.mu.Unlock()
	return got
}

type committedFill struct {
	orderID uint64
	qty     int64
	removed bool
}

// CommitReserved converts every claim into a fill in arrival order.
// The callback runs outside the level lock.
func (l *Level) CommitReserved(fn func(orderID uint64, qty int64, removed bool)) {
	var fills []committedFill
	l.mu.Lock()
	for e := l.head; e != nil; {
		next := e.next
		if e.reserved > 0 {
			qty := e.reserved
			e.remaining -= qty
			e.reserved = 0
			removed := e.remaining == 0
			if removed {
				l.unlinkLocked(e)
			}
			l.totalQty.Add(-qty)
			fills = append(fills, committedFill{orderID: e.orderID, qty: qty, removed: removed})
		}
		e = next
	}
	l.mu.Unlock()
	for _, f := range fills {
		fn(f.orderID, f.qty, f.removed)
	}
}

// ReleaseReserved drops all claims without filling anything.
func (l *Level) ReleaseReserved() {
	l.mu.Lock()
	for e := l.head; e != nil; e = e.next {
		e.reserved = 0
	}
	l.mu.Unlock()
}

// Ascend visits live entries in arrival order until fn returns false.
// The lock is dropped around each callback, so the traversal reflects
// concurrent mutation; when the cursor entry is unlinked mid-walk the
// traversal restarts from the head, which by then starts at the first
// unvisited entry.
func (l *Level) Ascend(fn func(ref any, orderID uint64, remaining int64) bool) {
	l.mu.Lock()
	e := l.head
	for e != nil {
		id, rem := e.orderID, e.remaining
		l.mu.Unlock()
		if !fn(e, id, rem) {
			return
		}
		l.mu.Lock()
		if e.removed {
			e = l.head
		} else {
			e = e.next
		}
	}
	l.mu.Unlock()
}
