package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type CommandKind string

const (
	CmdSetStop          CommandKind = "SET_STOP"
	CmdSetTarget        CommandKind = "SET_TARGET"
	CmdSetStopAndTarget CommandKind = "SET_STOP_AND_TARGET"
	CmdBreakeven        CommandKind = "BREAKEVEN"
	CmdPartialClose     CommandKind = "PARTIAL_CLOSE"
	CmdClose            CommandKind = "CLOSE"
)

type SelectorKind string

const (
	SelectByID            SelectorKind = "BY_ID"
	SelectByReply         SelectorKind = "BY_REPLY"
	SelectBySymbolAndType SelectorKind = "BY_SYMBOL_AND_TYPE"
)

// NoLeg means a reply selector addresses every leg of the origin message.
const NoLeg = -1

// TargetSelector identifies the positions a control command applies to.
type TargetSelector struct {
	Kind SelectorKind `json:"kind"`

	PositionID string `json:"position_id,omitempty"`

	OriginMessageID int64 `json:"origin_message_id,omitempty"`
	Leg             int   `json:"leg"`

	// Empty Symbol and OrderType select every open position.
	Symbol    string    `json:"symbol,omitempty"`
	OrderType Direction `json:"order_type,omitempty"`
}

func ByID(id string) TargetSelector {
	return TargetSelector{Kind: SelectByID, PositionID: id, Leg: NoLeg}
}

func ByReply(messageID int64, leg int) TargetSelector {
	return TargetSelector{Kind: SelectByReply, OriginMessageID: messageID, Leg: leg}
}

func BySymbolAndType(symbol string, orderType Direction) TargetSelector {
	return TargetSelector{Kind: SelectBySymbolAndType, Symbol: symbol, OrderType: orderType, Leg: NoLeg}
}

func (s TargetSelector) String() string {
	switch s.Kind {
	case SelectByID:
		return "id " + s.PositionID
	case SelectByReply:
		if s.Leg != NoLeg {
			return fmt.Sprintf("reply %d leg %d", s.OriginMessageID, s.Leg+1)
		}
		return "reply " + strconv.FormatInt(s.OriginMessageID, 10)
	case SelectBySymbolAndType:
		if s.Symbol == "" && s.OrderType == "" {
			return "all positions"
		}
		return strings.TrimSpace(string(s.OrderType) + " " + s.Symbol)
	}
	return string(s.Kind)
}

// ControlCommand is a parsed follow-up instruction.
type ControlCommand struct {
	Kind     CommandKind    `json:"kind"`
	Stop     float64        `json:"stop,omitempty"`
	Target   float64        `json:"target,omitempty"`
	Percent  float64        `json:"percent,omitempty"`
	Selector TargetSelector `json:"selector"`

	// FirstTarget is set for "TP1" style notices; the remaining legs of the
	// origin message are moved to breakeven after the close.
	FirstTarget bool `json:"first_target,omitempty"`

	Raw string `json:"-"`
}

// Validate checks the per-kind required fields.
func (c *ControlCommand) Validate() error {
	switch c.Kind {
	case CmdSetStop:
		if c.Stop <= 0 {
			return fmt.Errorf("command: stop level required")
		}
	case CmdSetTarget:
		if c.Target <= 0 {
			return fmt.Errorf("command: target level required")
		}
	case CmdSetStopAndTarget:
		if c.Stop <= 0 || c.Target <= 0 {
			return fmt.Errorf("command: stop and target levels required")
		}
	case CmdPartialClose:
		if c.Percent <= 0 || c.Percent > 100 {
			return fmt.Errorf("command: percent %v out of (0,100]", c.Percent)
		}
	case CmdBreakeven, CmdClose:
	default:
		return fmt.Errorf("command: unknown kind %q", c.Kind)
	}
	switch c.Selector.Kind {
	case SelectByID:
		if c.Selector.PositionID == "" {
			return fmt.Errorf("command: empty position id")
		}
	case SelectByReply:
		if c.Selector.OriginMessageID == 0 {
			return fmt.Errorf("command: reply selector without origin message")
		}
	case SelectBySymbolAndType:
	default:
		return fmt.Errorf("command: unknown selector %q", c.Selector.Kind)
	}
	return nil
}
