package domain

import (
	"fmt"
	"time"
)

type OrderKind string

const (
	OrderMarket      OrderKind = "MARKET"
	OrderLimit       OrderKind = "LIMIT"
	OrderStop        OrderKind = "STOP"
	OrderLimitLadder OrderKind = "LIMIT_LADDER"
)

type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Sign is +1 for buys and -1 for sells.
func (d Direction) Sign() float64 {
	if d == DirectionSell {
		return -1
	}
	return 1
}

// LadderTier describes how many consecutive rungs share one take profit.
type LadderTier struct {
	Rungs  int     `json:"rungs"`
	Target float64 `json:"target"`
}

// TradeDescriptor is a parsed entry signal.
//
// Single leg kinds (Market, Limit, Stop) carry at most one entry price; a
// market order parsed with "Entry NOW" has no entry until priced from a quote.
// Ladders carry one entry per rung and one tier per take profit.
type TradeDescriptor struct {
	Kind        OrderKind    `json:"kind"`
	Direction   Direction    `json:"direction"`
	Symbol      string       `json:"symbol"`
	Entry       []float64    `json:"entry,omitempty"`
	StopLoss    float64      `json:"stop_loss"`
	TakeProfits []float64    `json:"take_profits"`
	Tiers       []LadderTier `json:"tiers,omitempty"`
	RiskFactor  float64      `json:"risk_factor"`

	// Tiered marks the fixed-lot market dialect sized from the balance table.
	Tiered bool `json:"tiered,omitempty"`

	// PositionSize is filled by the risk calculator, aligned with Entry.
	PositionSize []float64 `json:"position_size,omitempty"`

	Shape string `json:"shape"`
	Raw   string `json:"-"`
}

// IsLadder reports whether the descriptor places one order per rung.
func (d *TradeDescriptor) IsLadder() bool {
	return d.Kind == OrderLimitLadder
}

// EntryPrice returns the single-leg entry or the first rung, 0 when unpriced.
func (d *TradeDescriptor) EntryPrice() float64 {
	if len(d.Entry) == 0 {
		return 0
	}
	return d.Entry[0]
}

// RungTarget returns the take profit assigned to ladder rung i.
func (d *TradeDescriptor) RungTarget(i int) float64 {
	n := 0
	for _, t := range d.Tiers {
		n += t.Rungs
		if i < n {
			return t.Target
		}
	}
	return d.TakeProfits[len(d.TakeProfits)-1]
}

// Validate checks the per-kind required fields.
func (d *TradeDescriptor) Validate() error {
	if d.Symbol == "" {
		return fmt.Errorf("descriptor: empty symbol")
	}
	if d.Direction != DirectionBuy && d.Direction != DirectionSell {
		return fmt.Errorf("descriptor: invalid direction %q", d.Direction)
	}
	if len(d.TakeProfits) == 0 {
		return fmt.Errorf("descriptor: at least one take profit required")
	}
	if d.RiskFactor <= 0 || d.RiskFactor > 1 {
		return fmt.Errorf("descriptor: risk factor %v out of (0,1]", d.RiskFactor)
	}
	switch d.Kind {
	case OrderMarket:
		if len(d.Entry) > 1 {
			return fmt.Errorf("descriptor: market order with %d entries", len(d.Entry))
		}
	case OrderLimit, OrderStop:
		if len(d.Entry) != 1 || d.Entry[0] <= 0 {
			return fmt.Errorf("descriptor: %s order requires one entry price", d.Kind)
		}
	case OrderLimitLadder:
		if len(d.Entry) < 2 {
			return fmt.Errorf("descriptor: ladder requires at least two rungs")
		}
		rungs := 0
		for _, t := range d.Tiers {
			rungs += t.Rungs
		}
		if rungs != len(d.Entry) {
			return fmt.Errorf("descriptor: ladder tiers cover %d rungs, have %d", rungs, len(d.Entry))
		}
	default:
		return fmt.Errorf("descriptor: unknown order kind %q", d.Kind)
	}
	if d.PositionSize != nil && len(d.PositionSize) != legCount(d) {
		return fmt.Errorf("descriptor: %d sizes for %d entries", len(d.PositionSize), legCount(d))
	}
	return nil
}

func legCount(d *TradeDescriptor) int {
	if d.IsLadder() {
		return len(d.Entry)
	}
	return 1
}

// Message is an inbound chat message as delivered by the transport.
type Message struct {
	ID        int64
	ReplyToID int64 // 0 when the message is not a reply
	ChatID    int64
	Username  string
	Text      string
	Date      time.Time
}

// RequestKind selects how the engine treats an inbound message.
type RequestKind string

const (
	RequestInterpret    RequestKind = "INTERPRET"
	RequestCalculate    RequestKind = "CALCULATE"
	RequestOpenTrades   RequestKind = "OPEN_TRADES"
	RequestCorrelations RequestKind = "CORRELATIONS"
)
