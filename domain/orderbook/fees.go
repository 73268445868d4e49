package orderbook

// feeDenominator is the basis-point divisor: 1 bp = 0.01%.
const feeDenominator = 10_000

// FeeSchedule expresses maker and taker fees in basis points of the
// fill notional (price * quantity). A negative maker rate is a rebate.
type FeeSchedule struct {
	MakerBps int64
	TakerBps int64
}

// Zero reports whether the schedule charges nothing.
func (f FeeSchedule) Zero() bool { return f.MakerBps == 0 && f.TakerBps == 0 }

// Fee computes one side's fee for a fill.
func (f FeeSchedule) Fee(price, qty int64, maker bool) int64 {
	bps := f.TakerBps
	if maker {
		bps = f.MakerBps
	}
	if bps == 0 {
		return 0
	}
	return price * qty * bps / feeDenominator
}
