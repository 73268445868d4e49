package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"vidar/domain/orderbook"
)

// Command is one inbound instruction from the order stream.
type Command struct {
	Action   string          `json:"action"` // submit | cancel | modify | cancel_all | cancel_side
	ID       uint64          `json:"id,omitempty"`
	Owner    uint64          `json:"owner,omitempty"`
	Side     string          `json:"side,omitempty"`
	Type     string          `json:"type,omitempty"`
	Price    decimal.Decimal `json:"price,omitempty"`
	Trigger  decimal.Decimal `json:"trigger,omitempty"`
	Qty      decimal.Decimal `json:"qty,omitempty"`
	ExpireAt int64           `json:"expire_at,omitempty"` // unix nanos
}

// Apply decodes and executes one command payload. Engine-level
// rejections (bad price, duplicate id, FOK short) are not errors at
// this layer: they are reported through the event stream, and the
// command is consumed. Only undecodable payloads come back as errors.
func (s *OrderService) Apply(payload []byte) error {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("command decode: %w", err)
	}

	switch cmd.Action {
	case "submit":
		side, err := parseSide(cmd.Side)
		if err != nil {
			return err
		}
		typ, err := parseOrderType(cmd.Type)
		if err != nil {
			return err
		}
		req := OrderRequest{
			ID:      cmd.ID,
			Owner:   cmd.Owner,
			Side:    side,
			Type:    typ,
			Price:   cmd.Price,
			Trigger: cmd.Trigger,
			Qty:     cmd.Qty,
		}
		if cmd.ExpireAt > 0 {
			req.ExpireAt = time.Unix(0, cmd.ExpireAt)
		}
		_, _ = s.Submit(req)
		return nil
	case "cancel":
		_, _ = s.Cancel(cmd.ID)
		return nil
	case "modify":
		_, _ = s.Modify(cmd.ID, cmd.Price, cmd.Qty)
		return nil
	case "cancel_all":
		s.CancelAll(cmd.Owner)
		return nil
	case "cancel_side":
		side, err := parseSide(cmd.Side)
		if err != nil {
			return err
		}
		s.CancelSide(cmd.Owner, side)
		return nil
	default:
		return fmt.Errorf("unknown command action %q", cmd.Action)
	}
}

func parseSide(s string) (orderbook.Side, error) {
	switch s {
	case "bid", "buy":
		return orderbook.Bid, nil
	case "ask", "sell":
		return orderbook.Ask, nil
	default:
		return 0, fmt.Errorf("unknown side %q", s)
	}
}

func parseOrderType(s string) (orderbook.OrderType, error) {
	switch s {
	case "limit":
		return orderbook.Limit, nil
	case "market":
		return orderbook.Market, nil
	case "ioc":
		return orderbook.IOC, nil
	case "fok":
		return orderbook.FOK, nil
	case "stop":
		return orderbook.Stop, nil
	case "stop_limit":
		return orderbook.StopLimit, nil
	case "gtc":
		return orderbook.GTC, nil
	case "gtd":
		return orderbook.GTD, nil
	case "post_only":
		return orderbook.PostOnly, nil
	default:
		return 0, fmt.Errorf("unknown order type %q", s)
	}
}
