package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopParksUntilTriggered(t *testing.T) {
	book, _ := newTestBook()

	stop := &Order{Side: Bid, Type: Stop, Trigger: 105, Qty: 5}
	res, err := book.Submit(stop)
	require.NoError(t, err)
	assert.Equal(t, PendingTrigger, res.Order.Status)
	assert.Equal(t, 1, book.PendingStops())

	// no trade yet, nothing releases
	_, _ = book.Submit(limit(Ask, 104, 5))
	assert.Equal(t, 1, book.PendingStops())
}

// A buy stop releases when the last trade reaches its trigger and runs
// as a market order against the remaining depth.
func TestBuyStopReleasesOnTrade(t *testing.T) {
	book, sink := newTestBook()

	_, _ = book.Submit(&Order{Side: Bid, Type: Stop, Trigger: 105, Qty: 3})

	_, _ = book.Submit(limit(Ask, 105, 5))
	_, _ = book.Submit(limit(Ask, 106, 3))
	res, err := book.Submit(limit(Bid, 105, 5)) // trades at 105 = trigger
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	assert.Equal(t, 0, book.PendingStops())
	// released stop consumed the 106 level as a market order
	assert.Equal(t, 2, sink.tradeCount())
	_, ok := book.BestAsk()
	assert.False(t, ok)
}

func TestSellStopReleasesBelowTrigger(t *testing.T) {
	book, _ := newTestBook()

	_, _ = book.Submit(&Order{Side: Ask, Type: Stop, Trigger: 95, Qty: 2})

	_, _ = book.Submit(limit(Bid, 94, 2))
	_, _ = book.Submit(limit(Bid, 95, 1))
	_, _ = book.Submit(limit(Ask, 94, 3)) // trades at 95 and 94

	assert.Equal(t, 0, book.PendingStops())
	// released sell stop swept the remaining bid
	assert.Equal(t, 0, book.OpenOrders())
}

// A stop-limit converts to a limit at its limit price and may rest.
func TestStopLimitConvertsAndRests(t *testing.T) {
	book, _ := newTestBook()

	_, _ = book.Submit(&Order{Side: Bid, Type: StopLimit, Trigger: 105, Price: 103, Qty: 5})

	_, _ = book.Submit(limit(Ask, 105, 1))
	_, _ = book.Submit(limit(Bid, 105, 1)) // triggers

	assert.Equal(t, 0, book.PendingStops())
	best, ok := book.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(103), best)
}

// A stop whose trigger is already satisfied by the last trade price
// fires immediately instead of parking.
func TestStopImmediateWhenAlreadyTriggered(t *testing.T) {
	book, _ := newTestBook()

	_, _ = book.Submit(limit(Ask, 100, 5))
	_, _ = book.Submit(limit(Bid, 100, 1)) // last trade 100

	_, _ = book.Submit(limit(Ask, 101, 2))
	res, err := book.Submit(&Order{Side: Bid, Type: Stop, Trigger: 99, Qty: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, book.PendingStops())
	assert.Equal(t, Filled, res.Order.Status)
}

func TestCancelParkedStop(t *testing.T) {
	book, sink := newTestBook()

	res, _ := book.Submit(&Order{Side: Bid, Type: Stop, Trigger: 105, Qty: 5})
	qty, err := book.Cancel(res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), qty)
	assert.Equal(t, 0, book.PendingStops())
	assert.Equal(t, 0, book.OpenOrders())
	assert.Equal(t, int64(5), sink.cancelled[res.Order.ID])
}

// Stops released by a fill can themselves trade and trigger further
// stops; the release loop drains the cascade.
func TestStopCascade(t *testing.T) {
	book, sink := newTestBook()

	_, _ = book.Submit(&Order{Side: Bid, Type: Stop, Trigger: 101, Qty: 1})
	_, _ = book.Submit(&Order{Side: Bid, Type: Stop, Trigger: 102, Qty: 1})

	_, _ = book.Submit(limit(Ask, 101, 1))
	_, _ = book.Submit(limit(Ask, 102, 1))
	_, _ = book.Submit(limit(Ask, 103, 5))

	// trade at 101 releases the first stop, whose fill at 102
	// releases the second
	_, _ = book.Submit(limit(Bid, 101, 1))

	assert.Equal(t, 0, book.PendingStops())
	assert.Equal(t, 3, sink.tradeCount())
}

func TestMidQuoteTriggerSource(t *testing.T) {
	book, _ := newTestBook(WithTriggerSource(MidQuote{}))

	_, _ = book.Submit(&Order{Side: Bid, Type: StopLimit, Trigger: 100, Price: 99, Qty: 1})
	assert.Equal(t, 1, book.PendingStops())

	// mid of 99/103 = 101 >= trigger, released by the next submit that
	// produces a trade
	_, _ = book.Submit(limit(Bid, 99, 2))
	_, _ = book.Submit(limit(Ask, 103, 1))
	_, _ = book.Submit(limit(Ask, 99, 1))

	assert.Equal(t, 0, book.PendingStops())
}

// A stop-market order carries no limit price, so a size modify passes
// price 0; priced orders still have to supply a real price.
func TestModifyStopMarketQuantity(t *testing.T) {
	book, _ := newTestBook()

	res, err := book.Submit(&Order{Side: Bid, Type: Stop, Trigger: 105, Qty: 5})
	require.NoError(t, err)

	mod, err := book.Modify(res.Order.ID, 8, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(8), mod.Order.Qty)
	assert.Equal(t, int64(105), mod.Order.Trigger)
	assert.Equal(t, PendingTrigger, mod.Order.Status)
	assert.Equal(t, 1, book.PendingStops())

	lim, err := book.Submit(limit(Bid, 100, 5))
	require.NoError(t, err)
	_, err = book.Modify(lim.Order.ID, 3, 0)
	assert.ErrorIs(t, err, ErrInvalidOrder)
	assert.Equal(t, 2, book.OpenOrders())
}
