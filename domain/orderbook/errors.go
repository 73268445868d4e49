package orderbook

import "errors"

// Error kinds are sentinels; callers classify with errors.Is. All of
// them are local to the operation that produced them and leave the
// book untouched.
var (
	// ErrInvalidOrder rejects a malformed quantity/price/type
	// combination before any mutation.
	ErrInvalidOrder = errors.New("orderbook: invalid order")

	// ErrDuplicateOrderID rejects a submit that reuses a live id.
	ErrDuplicateOrderID = errors.New("orderbook: duplicate order id")

	// ErrNotFound reports cancel/modify of an unknown id.
	ErrNotFound = errors.New("orderbook: order not found")

	// ErrAlreadyFilled reports a cancel that raced with a completing
	// match: the id was known but its entry is already being consumed.
	ErrAlreadyFilled = errors.New("orderbook: order already filled")

	// ErrRejectedByPolicy reports an FOK order that could not be
	// filled completely. Zero fills, nothing mutated; resubmitting is
	// always safe.
	ErrRejectedByPolicy = errors.New("orderbook: rejected by policy")

	// ErrWouldCross rejects a post-only order whose price crosses the
	// opposing best.
	ErrWouldCross = errors.New("orderbook: post-only order would cross")

	// ErrInvalidTick rejects a price that is not a multiple of the
	// configured tick size.
	ErrInvalidTick = errors.New("orderbook: price violates tick size")

	// ErrInvalidLot rejects a quantity that is not a multiple of the
	// configured lot size.
	ErrInvalidLot = errors.New("orderbook: quantity violates lot size")

	// ErrSizeOutOfRange rejects a quantity outside the configured
	// min/max bounds.
	ErrSizeOutOfRange = errors.New("orderbook: order size out of range")

	// ErrMissingOwner rejects an anonymous order while self-trade
	// prevention is enabled.
	ErrMissingOwner = errors.New("orderbook: owner required when STP is enabled")

	// ErrSelfTrade reports a taker cancelled by self-trade prevention
	// in CancelTaker or CancelBoth mode.
	ErrSelfTrade = errors.New("orderbook: self-trade prevented")
)
