// Package orderbook implements a concurrent limit order book for a
// single instrument. It maintains bid and ask price ladders with
// price-time priority, an order index for O(1) cancel-by-id, a
// pending-trigger set for stop orders, and the matching engine that
// resolves incoming orders against resting liquidity.
//
// Taker passes (the matching phase of Submit and Modify) serialize on
// a per-book write lock; cancels, best-price reads, and depth
// snapshots use fine-grained per-level locking and atomics so they do
// not stall matching on unrelated levels.
//
// The resting-order queue at a single price is an external
// collaborator consumed through the Level interface; package
// pricelevel provides the default implementation.
package orderbook
