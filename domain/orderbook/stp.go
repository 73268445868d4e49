package orderbook

// STPMode controls self-trade prevention: what happens when an
// incoming order would match a resting order with the same owner.
type STPMode int8

const (
	// STPNone disables the check entirely.
	STPNone STPMode = iota
	// STPCancelTaker fills what is safe, then cancels the incoming
	// order's remainder at the first same-owner maker.
	STPCancelTaker
	// STPCancelMaker cancels the resting same-owner order and keeps
	// matching the incoming one.
	STPCancelMaker
	// STPCancelBoth cancels the resting order and the incoming
	// remainder.
	STPCancelBoth
)

func (m STPMode) String() string {
	switch m {
	case STPCancelTaker:
		return "cancel_taker"
	case STPCancelMaker:
		return "cancel_maker"
	case STPCancelBoth:
		return "cancel_both"
	default:
		return "none"
	}
}

func (m STPMode) enabled() bool { return m != STPNone }
