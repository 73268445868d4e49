package service

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"vidar/domain/orderbook"
	"vidar/infra/memory"
	"vidar/metrics"
	"vidar/pricelevel"
)

func newTestService(t *testing.T) *OrderService {
	t.Helper()
	book := orderbook.New("BTC-USD",
		orderbook.WithLevelFactory(func(p int64) orderbook.Level {
			return pricelevel.New(p)
		}))
	pool := memory.NewPool(func() *orderbook.Order { return &orderbook.Order{} })
	mets := metrics.New(prometheus.NewRegistry())
	return NewOrderService(book, pool, NewScale("0.01", "0.001"), mets, zap.NewNop())
}

func TestSubmitAndFillDecimal(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Submit(OrderRequest{
		Owner: 1, Side: orderbook.Ask, Type: orderbook.Limit,
		Price: dec("100.50"), Qty: dec("0.5"),
	})
	require.NoError(t, err)

	res, err := svc.Submit(OrderRequest{
		Owner: 2, Side: orderbook.Bid, Type: orderbook.Limit,
		Price: dec("100.50"), Qty: dec("0.2"),
	})
	require.NoError(t, err)
	require.Len(t, res.Fills, 1)
	assert.True(t, dec("100.50").Equal(res.Fills[0].Price))
	assert.True(t, dec("0.2").Equal(res.Fills[0].Qty))
	assert.Equal(t, orderbook.Filled, res.Status)

	view := svc.Snapshot(5)
	require.Len(t, view.Asks, 1)
	assert.True(t, dec("0.3").Equal(view.Asks[0].Qty))
	assert.True(t, dec("100.50").Equal(view.LastTrade))
}

func TestSubmitRejectsOffTickPrice(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Submit(OrderRequest{
		Owner: 1, Side: orderbook.Bid, Type: orderbook.Limit,
		Price: dec("100.505"), Qty: dec("0.1"),
	})
	require.ErrorIs(t, err, orderbook.ErrInvalidTick)
}

func TestCancelReturnsDecimalRemainder(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.Submit(OrderRequest{
		Owner: 1, Side: orderbook.Bid, Type: orderbook.Limit,
		Price: dec("99.00"), Qty: dec("1.25"),
	})
	require.NoError(t, err)

	qty, err := svc.Cancel(res.ID)
	require.NoError(t, err)
	assert.True(t, dec("1.25").Equal(qty))

	_, err = svc.Cancel(res.ID)
	require.ErrorIs(t, err, orderbook.ErrNotFound)
}

func TestModifyDecimal(t *testing.T) {
	svc := newTestService(t)

	res, err := svc.Submit(OrderRequest{
		Owner: 1, Side: orderbook.Bid, Type: orderbook.Limit,
		Price: dec("99.00"), Qty: dec("1.0"),
	})
	require.NoError(t, err)

	mod, err := svc.Modify(res.ID, dec("99.00"), dec("0.4"))
	require.NoError(t, err)
	assert.True(t, dec("0.4").Equal(mod.Remaining))
}

func TestStats(t *testing.T) {
	svc := newTestService(t)

	_, ok := svc.Stats()
	assert.False(t, ok)

	_, _ = svc.Submit(OrderRequest{
		Owner: 1, Side: orderbook.Bid, Type: orderbook.Limit,
		Price: dec("99.00"), Qty: dec("1.0"),
	})
	_, _ = svc.Submit(OrderRequest{
		Owner: 2, Side: orderbook.Ask, Type: orderbook.Limit,
		Price: dec("101.00"), Qty: dec("1.0"),
	})

	st, ok := svc.Stats()
	require.True(t, ok)
	assert.True(t, dec("100.00").Equal(st.Mid))
	assert.True(t, dec("2.00").Equal(st.Spread))
	assert.InDelta(t, 0, st.Imbalance, 0.001)
}

func TestGTDExpiry(t *testing.T) {
	svc := newTestService(t)

	expireAt := time.Now().Add(time.Hour)
	res, err := svc.Submit(OrderRequest{
		Owner: 1, Side: orderbook.Bid, Type: orderbook.GTD,
		Price: dec("99.00"), Qty: dec("1.0"), ExpireAt: expireAt,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, svc.expiry.size())

	// not due yet
	assert.Zero(t, svc.expireDue(expireAt.Add(-time.Minute).UnixNano()))
	// due now
	assert.Equal(t, 1, svc.expireDue(expireAt.UnixNano()))

	_, err = svc.Cancel(res.ID)
	require.ErrorIs(t, err, orderbook.ErrNotFound)
}

func TestGTDExpiryAfterFillIsNoop(t *testing.T) {
	svc := newTestService(t)

	expireAt := time.Now().Add(time.Hour)
	_, err := svc.Submit(OrderRequest{
		Owner: 1, Side: orderbook.Bid, Type: orderbook.GTD,
		Price: dec("99.00"), Qty: dec("1.0"), ExpireAt: expireAt,
	})
	require.NoError(t, err)

	_, err = svc.Submit(OrderRequest{
		Owner: 2, Side: orderbook.Ask, Type: orderbook.Limit,
		Price: dec("99.00"), Qty: dec("1.0"),
	})
	require.NoError(t, err)

	assert.Zero(t, svc.expireDue(expireAt.UnixNano()))
}

func TestApplyCommands(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.Apply([]byte(
		`{"action":"submit","id":9,"owner":1,"side":"sell","type":"limit","price":"100.00","qty":"1.0"}`)))
	view := svc.Snapshot(1)
	require.Len(t, view.Asks, 1)

	require.NoError(t, svc.Apply([]byte(`{"action":"cancel","id":9}`)))
	view = svc.Snapshot(1)
	assert.Empty(t, view.Asks)

	assert.Error(t, svc.Apply([]byte(`{"action":"warp"}`)))
	assert.Error(t, svc.Apply([]byte(`not json`)))
	assert.Error(t, svc.Apply([]byte(`{"action":"submit","side":"up","type":"limit"}`)))
}

func TestApplyCancelAll(t *testing.T) {
	svc := newTestService(t)

	for _, p := range []string{"98.00", "99.00"} {
		require.NoError(t, svc.Apply([]byte(
			`{"action":"submit","owner":3,"side":"buy","type":"limit","price":"`+p+`","qty":"1.0"}`)))
	}
	require.NoError(t, svc.Apply([]byte(`{"action":"cancel_all","owner":3}`)))
	assert.Empty(t, svc.Snapshot(5).Bids)
}
