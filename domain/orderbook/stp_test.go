package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func owned(owner uint64, side Side, price, qty int64) *Order {
	o := limit(side, price, qty)
	o.Owner = owner
	return o
}

func TestSTPRequiresOwner(t *testing.T) {
	book, _ := newTestBook(WithSTPMode(STPCancelTaker))
	_, err := book.Submit(limit(Bid, 100, 5))
	require.ErrorIs(t, err, ErrMissingOwner)
}

func TestSTPCancelTakerStopsAtOwnOrder(t *testing.T) {
	book, sink := newTestBook(WithSTPMode(STPCancelTaker))

	_, _ = book.Submit(owned(1, Ask, 100, 5))
	_, _ = book.Submit(owned(2, Ask, 101, 5))

	res, err := book.Submit(owned(1, Bid, 101, 8))
	require.ErrorIs(t, err, ErrSelfTrade)
	assert.Empty(t, res.Trades)
	assert.Zero(t, sink.tradeCount())
	// both makers untouched
	assert.Equal(t, 2, book.OpenOrders())
}

func TestSTPCancelMakerRemovesOwnAndContinues(t *testing.T) {
	book, sink := newTestBook(WithSTPMode(STPCancelMaker))

	mine, _ := book.Submit(owned(1, Ask, 100, 5))
	_, _ = book.Submit(owned(2, Ask, 100, 5))

	res, err := book.Submit(owned(1, Bid, 100, 5))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, Filled, res.Order.Status)
	// own maker was cancelled, not filled
	assert.Equal(t, int64(5), sink.cancelled[mine.Order.ID])
	assert.Equal(t, 0, book.OpenOrders())
}

func TestSTPCancelBothRemovesMakerAndTaker(t *testing.T) {
	book, sink := newTestBook(WithSTPMode(STPCancelBoth))

	mine, _ := book.Submit(owned(1, Ask, 100, 5))

	_, err := book.Submit(owned(1, Bid, 100, 5))
	require.ErrorIs(t, err, ErrSelfTrade)
	assert.Zero(t, sink.tradeCount())
	assert.Equal(t, int64(5), sink.cancelled[mine.Order.ID])
	assert.Equal(t, 0, book.OpenOrders())
}

// An FOK whose required depth includes a same-owner maker is rejected
// outright rather than partially filled around it.
func TestSTPFOKRejectsOnOwnDepth(t *testing.T) {
	book, _ := newTestBook(WithSTPMode(STPCancelTaker))

	_, _ = book.Submit(owned(2, Ask, 100, 4))
	_, _ = book.Submit(owned(1, Ask, 101, 4))

	_, err := book.Submit(&Order{Owner: 1, Side: Bid, Type: FOK, Price: 101, Qty: 8})
	require.ErrorIs(t, err, ErrSelfTrade)
	assert.Equal(t, 2, book.OpenOrders())
}

func TestSTPDifferentOwnersTradeNormally(t *testing.T) {
	book, _ := newTestBook(WithSTPMode(STPCancelTaker))

	_, _ = book.Submit(owned(1, Ask, 100, 5))
	res, err := book.Submit(owned(2, Bid, 100, 5))
	require.NoError(t, err)
	assert.Len(t, res.Trades, 1)
}
