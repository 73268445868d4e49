package orderbook

import "sync/atomic"

// Side of the book an order belongs to.
type Side int8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Ask {
		return "ask"
	}
	return "bid"
}

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

// OrderType is a closed set; Submit dispatches over it exhaustively.
type OrderType int8

const (
	Limit OrderType = iota
	Market
	IOC
	FOK
	Stop
	StopLimit
	GTC
	GTD
	PostOnly
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "limit"
	case Market:
		return "market"
	case IOC:
		return "ioc"
	case FOK:
		return "fok"
	case Stop:
		return "stop"
	case StopLimit:
		return "stop_limit"
	case GTC:
		return "gtc"
	case GTD:
		return "gtd"
	case PostOnly:
		return "post_only"
	default:
		return "unknown"
	}
}

// priced reports whether the type requires a limit price.
func (t OrderType) priced() bool {
	switch t {
	case Market, Stop:
		return false
	default:
		return true
	}
}

// Status of an order as last reported by the book. Transitions on a
// resting order go through setStatus: a lock-free cancel can overlap a
// partial fill, so the two writers never touch the field directly.
type Status int32

const (
	Active Status = iota
	PartiallyFilled
	Filled
	Cancelled
	Rejected
	PendingTrigger
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	case PendingTrigger:
		return "pending_trigger"
	default:
		return "unknown"
	}
}

// Order is a pure domain entity. Prices are integer ticks, quantities
// integer lots; decimal scaling belongs to the caller.
//
// Identity fields are set once at submission. Remaining is mutated
// only under the book's match lock; it never increases. Removing the
// entry from its price level claims the order, and the claimant
// publishes the terminal status with setStatus because a cancel and a
// partial fill can overlap on a resting order.
type Order struct {
	ID       uint64
	Owner    uint64 // 0 = anonymous; required for STP and mass cancel
	Side     Side
	Type     OrderType
	Price    int64 // limit price; 0 for Market and Stop
	Trigger  int64 // trigger price; stop variants only
	Qty      int64 // original quantity
	ExpireAt int64 // unix nanos; GTD only, enforced by the caller's scheduler

	Remaining int64
	Seq       uint64 // arrival sequence, assigned at acceptance
	Status    Status
}

// Filled returns the executed quantity so far.
func (o *Order) Filled() int64 { return o.Qty - o.Remaining }

// setStatus publishes a status transition on a live order. Fills and
// cancels race on resting orders, so live transitions are atomic;
// reading a SubmitResult copy stays a plain field access.
func (o *Order) setStatus(s Status) {
	atomic.StoreInt32((*int32)(&o.Status), int32(s))
}

// Terminal reports whether the order can no longer trade.
func (o *Order) Terminal() bool {
	switch o.Status {
	case Filled, Cancelled, Rejected:
		return true
	default:
		return false
	}
}

// Reset clears the order for pool reuse.
func (o *Order) Reset() { *o = Order{} }
