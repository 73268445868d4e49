package service

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"vidar/domain/orderbook"
)

// expiryQueue tracks GTD orders by expiry time. The book itself has no
// clock for resting orders; this queue is the scheduler that turns an
// ExpireAt into a cancel.
type expiryQueue struct {
	mu    sync.Mutex
	items expiryHeap
}

type expiryItem struct {
	id uint64
	at int64
}

type expiryHeap []expiryItem

func (h expiryHeap) Len() int           { return len(h) }
func (h expiryHeap) Less(i, j int) bool { return h[i].at < h[j].at }
func (h expiryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x any)        { *h = append(*h, x.(expiryItem)) }

func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func newExpiryQueue() *expiryQueue {
	return &expiryQueue{}
}

func (q *expiryQueue) schedule(id uint64, at int64) {
	q.mu.Lock()
	heap.Push(&q.items, expiryItem{id: id, at: at})
	q.mu.Unlock()
}

// due pops every item whose expiry is at or before now.
func (q *expiryQueue) due(now int64) []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	var ids []uint64
	for len(q.items) > 0 && q.items[0].at <= now {
		ids = append(ids, heap.Pop(&q.items).(expiryItem).id)
	}
	return ids
}

func (q *expiryQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// RunExpiry cancels due GTD orders until ctx is cancelled. An order
// that was filled or cancelled before its expiry simply reports
// ErrNotFound and is skipped.
func (s *OrderService) RunExpiry(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.expireDue(time.Now().UnixNano())
		}
	}
}

func (s *OrderService) expireDue(now int64) int {
	n := 0
	for _, id := range s.expiry.due(now) {
		_, err := s.book.Cancel(id)
		switch {
		case err == nil:
			n++
			s.log.Debug("gtd expired", zap.Uint64("id", id))
		case errors.Is(err, orderbook.ErrNotFound),
			errors.Is(err, orderbook.ErrAlreadyFilled):
			// already gone
		default:
			s.log.Warn("gtd expiry cancel failed", zap.Uint64("id", id), zap.Error(err))
		}
	}
	if n > 0 {
		s.refreshGauges()
	}
	return n
}
