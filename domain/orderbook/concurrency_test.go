package orderbook

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidar/pricelevel"
)

// Hammer the book from many goroutines and check the conservation
// invariants afterwards: filled + cancelled + resting quantity equals
// submitted quantity, and the book is never left crossed.
func TestConcurrentSubmitCancel(t *testing.T) {
	if testing.Short() {
		t.Skip("concurrency hammer")
	}
	book, _ := newTestBook()

	const (
		workers = 8
		perG    = 500
	)
	var (
		submitted atomic.Int64
		filled    atomic.Int64
		cancelled atomic.Int64
		wg        sync.WaitGroup
	)

	var idMu sync.Mutex
	var liveIDs []uint64

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < perG; i++ {
				switch rng.Intn(4) {
				case 0, 1, 2:
					side := Bid
					price := int64(95 + rng.Intn(5))
					if rng.Intn(2) == 1 {
						side = Ask
						price = int64(101 + rng.Intn(5))
					}
					qty := int64(1 + rng.Intn(10))
					res, err := book.Submit(limit(side, price, qty))
					if err != nil {
						continue
					}
					submitted.Add(qty)
					for _, tr := range res.Trades {
						filled.Add(2 * tr.Qty) // maker and taker side
					}
					if !res.Order.Terminal() {
						idMu.Lock()
						liveIDs = append(liveIDs, res.Order.ID)
						idMu.Unlock()
					}
				default:
					idMu.Lock()
					var id uint64
					if len(liveIDs) > 0 {
						id = liveIDs[rng.Intn(len(liveIDs))]
					}
					idMu.Unlock()
					if id == 0 {
						continue
					}
					if qty, err := book.Cancel(id); err == nil {
						cancelled.Add(qty)
					}
				}
			}
		}(int64(w + 1))
	}
	wg.Wait()

	// bid/ask bands never overlap, so nothing should have matched;
	// all flow is either resting or cancelled
	assert.Zero(t, filled.Load())

	var resting int64
	snap := book.Snapshot(100)
	for _, l := range snap.Bids {
		resting += l.Qty
	}
	for _, l := range snap.Asks {
		resting += l.Qty
	}
	assert.Equal(t, submitted.Load(), resting+cancelled.Load())

	if bid, ok := book.BestBid(); ok {
		if ask, ok := book.BestAsk(); ok {
			assert.Less(t, bid, ask, "book must not be crossed")
		}
	}
}

// Goroutines submitting at distinct prices: every price ends up with
// exactly the sum of its contributions, nothing lost or duplicated.
func TestConcurrentDistinctPrices(t *testing.T) {
	if testing.Short() {
		t.Skip("concurrency hammer")
	}
	book, _ := newTestBook()

	const workers = 8
	const perG = 100
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			// each goroutine owns one price on each side
			for i := 0; i < perG; i++ {
				_, _ = book.Submit(limit(Bid, int64(100-w), 2))
				_, _ = book.Submit(limit(Ask, int64(200+w), 3))
			}
		}(w)
	}
	wg.Wait()

	snap := book.Snapshot(workers)
	require.Len(t, snap.Bids, workers)
	require.Len(t, snap.Asks, workers)
	for _, l := range snap.Bids {
		assert.Equal(t, int64(perG*2), l.Qty, "bid level %d", l.Price)
		assert.Equal(t, perG, l.Orders)
	}
	for _, l := range snap.Asks {
		assert.Equal(t, int64(perG*3), l.Qty, "ask level %d", l.Price)
	}
	assert.Equal(t, workers*perG*2, book.OpenOrders())
}

// Crossing flow from both sides with concurrent cancels: quantity is
// conserved between fills, cancels, and what remains on the book.
func TestConcurrentCrossingFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("concurrency hammer")
	}
	book, _ := newTestBook()

	const (
		workers = 8
		perG    = 400
	)
	var (
		submitted atomic.Int64
		takerFill atomic.Int64
		cancelled atomic.Int64
		rejected  atomic.Int64
		wg        sync.WaitGroup
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < perG; i++ {
				side := Bid
				if rng.Intn(2) == 1 {
					side = Ask
				}
				price := int64(98 + rng.Intn(5))
				qty := int64(1 + rng.Intn(5))
				res, err := book.Submit(limit(side, price, qty))
				if err != nil {
					rejected.Add(qty)
					continue
				}
				submitted.Add(qty)
				for _, tr := range res.Trades {
					takerFill.Add(tr.Qty)
				}
				if !res.Order.Terminal() && rng.Intn(3) == 0 {
					if q, err := book.Cancel(res.Order.ID); err == nil {
						cancelled.Add(q)
					}
				}
			}
		}(int64(w + 100))
	}
	wg.Wait()

	var resting int64
	snap := book.Snapshot(100)
	for _, l := range snap.Bids {
		resting += l.Qty
	}
	for _, l := range snap.Asks {
		resting += l.Qty
	}

	// each fill consumes equal maker and taker quantity
	assert.Equal(t, submitted.Load(), 2*takerFill.Load()+cancelled.Load()+resting,
		"submitted = filled(maker+taker) + cancelled + resting")

	if bid, okB := book.BestBid(); okB {
		if ask, okA := book.BestAsk(); okA {
			assert.Less(t, bid, ask)
		}
	}
}

// Cancels racing the matcher on the same resting order: exactly one
// side wins each order, never both.
func TestCancelMatchRace(t *testing.T) {
	if testing.Short() {
		t.Skip("concurrency hammer")
	}

	for iter := 0; iter < 50; iter++ {
		book, _ := newTestBook()
		res, err := book.Submit(limit(Ask, 100, 1))
		require.NoError(t, err)
		id := res.Order.ID

		var fillQty, cancelQty atomic.Int64
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			r, err := book.Submit(limit(Bid, 100, 1))
			if err == nil {
				for _, tr := range r.Trades {
					fillQty.Add(tr.Qty)
				}
			}
		}()
		go func() {
			defer wg.Done()
			if q, err := book.Cancel(id); err == nil {
				cancelQty.Add(q)
			}
		}()
		wg.Wait()

		assert.Equal(t, int64(1), fillQty.Load()+cancelQty.Load(),
			"the maker's quantity goes to exactly one winner")
	}
}

// A taker partially fills a resting order while a cancel claims the
// remainder. The status transitions of the two writers must not tear
// and every unit must end up filled, cancelled, or resting.
func TestPartialFillCancelRace(t *testing.T) {
	if testing.Short() {
		t.Skip("concurrency hammer")
	}

	for iter := 0; iter < 50; iter++ {
		book, _ := newTestBook()
		res, err := book.Submit(limit(Ask, 100, 3))
		require.NoError(t, err)
		id := res.Order.ID

		var fillQty, cancelQty atomic.Int64
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			r, err := book.Submit(limit(Bid, 100, 1))
			if err == nil {
				for _, tr := range r.Trades {
					fillQty.Add(tr.Qty)
				}
			}
		}()
		go func() {
			defer wg.Done()
			if q, err := book.Cancel(id); err == nil {
				cancelQty.Add(q)
			}
		}()
		wg.Wait()

		var resting int64
		snap := book.Snapshot(10)
		for _, l := range snap.Bids {
			resting += l.Qty
		}
		for _, l := range snap.Asks {
			resting += l.Qty
		}
		// ask 3 + bid 1 submitted; a fill consumes one unit per side
		assert.Equal(t, int64(4), 2*fillQty.Load()+cancelQty.Load()+resting)
	}
}

// Snapshots taken while the book churns never observe a crossed top.
func TestSnapshotNeverCrossed(t *testing.T) {
	if testing.Short() {
		t.Skip("concurrency hammer")
	}
	book := New("BTC-USD",
		WithLevelFactory(func(p int64) Level { return pricelevel.New(p) }))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 4000; i++ {
			side := Bid
			if rng.Intn(2) == 1 {
				side = Ask
			}
			_, _ = book.Submit(limit(side, int64(95+rng.Intn(10)), int64(1+rng.Intn(5))))
		}
		close(done)
	}()

	for {
		select {
		case <-done:
			wg.Wait()
			return
		default:
		}
		snap := book.Snapshot(1)
		if len(snap.Bids) > 0 && len(snap.Asks) > 0 {
			require.Less(t, snap.Bids[0].Price, snap.Asks[0].Price)
		}
	}
}
