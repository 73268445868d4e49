package orderbook

import "sync"

// ownerIndex tracks live order ids per owner for mass cancellation.
// Anonymous orders (owner 0) are tracked too so CancelAll(0) works.
type ownerIndex struct {
	mu sync.Mutex
	m  map[uint64]map[uint64]struct{}
}

func newOwnerIndex() *ownerIndex {
	return &ownerIndex{m: make(map[uint64]map[uint64]struct{})}
}

func (ox *ownerIndex) track(owner, id uint64) {
	ox.mu.Lock()
	ids, ok := ox.m[owner]
	if !ok {
		ids = make(map[uint64]struct{})
		ox.m[owner] = ids
	}
	ids[id] = struct{}{}
	ox.mu.Unlock()
}

func (ox *ownerIndex) untrack(owner, id uint64) {
	ox.mu.Lock()
	if ids, ok := ox.m[owner]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(ox.m, owner)
		}
	}
	ox.mu.Unlock()
}

// snapshot returns the owner's live ids at the time of the call.
func (ox *ownerIndex) snapshot(owner uint64) []uint64 {
	ox.mu.Lock()
	ids := make([]uint64, 0, len(ox.m[owner]))
	for id := range ox.m[owner] {
		ids = append(ids, id)
	}
	ox.mu.Unlock()
	return ids
}
