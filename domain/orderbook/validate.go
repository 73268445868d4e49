package orderbook

import "fmt"

// validate rejects malformed orders before any mutation.
func (b *OrderBook) validate(o *Order) error {
	if o == nil {
		return fmt.Errorf("%w: nil order", ErrInvalidOrder)
	}
	if o.Qty <= 0 {
		return fmt.Errorf("%w: qty %d", ErrInvalidOrder, o.Qty)
	}
	if o.Type.priced() && o.Price <= 0 {
		return fmt.Errorf("%w: %s order requires a limit price", ErrInvalidOrder, o.Type)
	}
	if !o.Type.priced() && o.Price != 0 {
		return fmt.Errorf("%w: %s order carries a limit price", ErrInvalidOrder, o.Type)
	}
	switch o.Type {
	case Stop, StopLimit:
		if o.Trigger <= 0 {
			return fmt.Errorf("%w: %s order requires a trigger price", ErrInvalidOrder, o.Type)
		}
	default:
		if o.Trigger != 0 {
			return fmt.Errorf("%w: %s order carries a trigger price", ErrInvalidOrder, o.Type)
		}
	}
	if o.Type == GTD && o.ExpireAt <= 0 {
		return fmt.Errorf("%w: gtd order requires an expiry", ErrInvalidOrder)
	}
	if b.tickSize > 0 {
		if o.Price%b.tickSize != 0 {
			return fmt.Errorf("%w: price %d, tick %d", ErrInvalidTick, o.Price, b.tickSize)
		}
		if o.Trigger%b.tickSize != 0 {
			return fmt.Errorf("%w: trigger %d, tick %d", ErrInvalidTick, o.Trigger, b.tickSize)
		}
	}
	if b.lotSize > 0 && o.Qty%b.lotSize != 0 {
		return fmt.Errorf("%w: qty %d, lot %d", ErrInvalidLot, o.Qty, b.lotSize)
	}
	if b.minSize > 0 && o.Qty < b.minSize {
		return fmt.Errorf("%w: qty %d below min %d", ErrSizeOutOfRange, o.Qty, b.minSize)
	}
	if b.maxSize > 0 && o.Qty > b.maxSize {
		return fmt.Errorf("%w: qty %d above max %d", ErrSizeOutOfRange, o.Qty, b.maxSize)
	}
	if b.stp.enabled() && o.Owner == 0 {
		return fmt.Errorf("%w: stp mode %s", ErrMissingOwner, b.stp)
	}
	return nil
}
