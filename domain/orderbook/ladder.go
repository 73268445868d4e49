package orderbook

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/tidwall/btree"
)

// noBest is the cached best price of an empty ladder.
const noBest = int64(math.MinInt64)

// ladder maps price to Level for one side of the book. Structural
// changes (level creation/eviction) happen under mu; the best occupied
// price is mirrored into an atomic so readers never block writers.
type ladder struct {
	side    Side
	factory LevelFactory

	mu     sync.RWMutex
	levels btree.Map[int64, Level]

	best atomic.Int64
}

func newLadder(side Side, factory LevelFactory) *ladder {
	ld := &ladder{side: side, factory: factory}
	ld.best.Store(noBest)
	return ld
}

// better reports whether price a beats price b in matching priority.
func (ld *ladder) better(a, b int64) bool {
	if ld.side == Bid {
		return a > b
	}
	return a < b
}

// insert adds the order's remaining quantity at price, creating the
// level if absent, and returns the level and entry handle for fast
// cancellation.
func (ld *ladder) insert(price int64, o *Order) (Level, EntryRef) {
	ld.mu.Lock()
	lvl, ok := ld.levels.Get(price)
	if !ok {
		lvl = ld.factory(price)
		ld.levels.Set(price, lvl)
	}
	ref := lvl.Add(o.ID, o.Remaining)
	if best := ld.best.Load(); best == noBest || ld.better(price, best) {
		ld.best.Store(price)
	}
	ld.mu.Unlock()
	return lvl, ref
}

// evict drops the level at price if it is still empty and repairs the
// best-price cache. Safe to call with a level that refilled meanwhile.
func (ld *ladder) evict(price int64) bool {
	ld.mu.Lock()
	lvl, ok := ld.levels.Get(price)
	if !ok || !lvl.Empty() {
		ld.mu.Unlock()
		return false
	}
	ld.levels.Delete(price)
	if ld.best.Load() == price {
		ld.best.Store(ld.scanBestLocked())
	}
	ld.mu.Unlock()
	return true
}

// scanBestLocked finds the best occupied price, skipping levels that
// are transiently empty mid-match. Caller holds mu.
func (ld *ladder) scanBestLocked() int64 {
	best := noBest
	iter := func(price int64, lvl Level) bool {
		if lvl.Empty() {
			return true
		}
		best = price
		return false
	}
	if ld.side == Bid {
		ld.levels.Reverse(iter)
	} else {
		ld.levels.Scan(iter)
	}
	return best
}

// bestPrice returns the best occupied price in O(1) via the cached
// atomic, re-validating lazily when a concurrent removal of the best
// level is in flight.
func (ld *ladder) bestPrice() (int64, bool) {
	cached := ld.best.Load()
	if cached != noBest {
		ld.mu.RLock()
		lvl, ok := ld.levels.Get(cached)
		valid := ok && !lvl.Empty()
		ld.mu.RUnlock()
		if valid {
			return cached, true
		}
	}
	ld.mu.RLock()
	best := ld.scanBestLocked()
	ld.mu.RUnlock()
	ld.best.CompareAndSwap(cached, best)
	if best == noBest {
		return 0, false
	}
	return best, true
}

// walk produces a lazy, restartable traversal of (price, level) pairs
// in matching priority order. It is a live view: each step re-seeks
// from the previous price, so insertions and evictions by other
// goroutines are reflected, and a level emptied mid-walk is skipped.
func (ld *ladder) walk(fn func(price int64, lvl Level) bool) {
	var cursor int64
	started := false
	for {
		ld.mu.RLock()
		var (
			price int64
			lvl   Level
			found bool
		)
		iter := func(k int64, v Level) bool {
			if started && k == cursor {
				return true
			}
			price, lvl, found = k, v, true
			return false
		}
		if ld.side == Bid {
			if started {
				ld.levels.Descend(cursor, iter)
			} else {
				ld.levels.Reverse(iter)
			}
		} else {
			if started {
				ld.levels.Ascend(cursor, iter)
			} else {
				ld.levels.Scan(iter)
			}
		}
		ld.mu.RUnlock()
		if !found {
			return
		}
		cursor, started = price, true
		if lvl.Empty() {
			continue
		}
		if !fn(price, lvl) {
			return
		}
	}
}

// top collects up to depth non-empty levels from the best price.
func (ld *ladder) top(depth int) []LevelSnapshot {
	out := make([]LevelSnapshot, 0, depth)
	ld.mu.RLock()
	iter := func(price int64, lvl Level) bool {
		qty := lvl.TotalQty()
		if qty <= 0 {
			return true
		}
		out = append(out, LevelSnapshot{Price: price, Qty: qty, Orders: lvl.Count()})
		return len(out) < depth
	}
	if ld.side == Bid {
		ld.levels.Reverse(iter)
	} else {
		ld.levels.Scan(iter)
	}
	ld.mu.RUnlock()
	return out
}

// depth returns the number of occupied price levels.
func (ld *ladder) depth() int {
	n := 0
	ld.mu.RLock()
	ld.levels.Scan(func(_ int64, lvl Level) bool {
		if !lvl.Empty() {
			n++
		}
		return true
	})
	ld.mu.RUnlock()
	return n
}
