package orderbook

import "sync"

// location is the current position of a live order: either resting in
// a ladder level or parked in the stop set.
type location struct {
	order *Order
	side  Side
	price int64
	lvl   Level
	ref   EntryRef
	stop  bool
}

// indexShards must be a power of two.
const indexShards = 64

// orderIndex maps order id to location so cancel and modify never scan
// the ladders. Sharded to keep unrelated cancels from contending.
type orderIndex struct {
	shards [indexShards]indexShard
}

type indexShard struct {
	mu sync.RWMutex
	m  map[uint64]*location
}

func newOrderIndex() *orderIndex {
	ix := &orderIndex{}
	for i := range ix.shards {
		ix.shards[i].m = make(map[uint64]*location)
	}
	return ix
}

func (ix *orderIndex) shard(id uint64) *indexShard {
	return &ix.shards[id&(indexShards-1)]
}

// register fails with ErrDuplicateOrderID when id is already live.
func (ix *orderIndex) register(id uint64, loc *location) error {
	s := ix.shard(id)
	s.mu.Lock()
	if _, ok := s.m[id]; ok {
		s.mu.Unlock()
		return ErrDuplicateOrderID
	}
	s.m[id] = loc
	s.mu.Unlock()
	return nil
}

func (ix *orderIndex) lookup(id uint64) (*location, bool) {
	s := ix.shard(id)
	s.mu.RLock()
	loc, ok := s.m[id]
	s.mu.RUnlock()
	return loc, ok
}

// unregister removes and returns the entry; ok is false when absent.
func (ix *orderIndex) unregister(id uint64) (*location, bool) {
	s := ix.shard(id)
	s.mu.Lock()
	loc, ok := s.m[id]
	if ok {
		delete(s.m, id)
	}
	s.mu.Unlock()
	return loc, ok
}

func (ix *orderIndex) contains(id uint64) bool {
	_, ok := ix.lookup(id)
	return ok
}

func (ix *orderIndex) size() int {
	n := 0
	for i := range ix.shards {
		s := &ix.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}
