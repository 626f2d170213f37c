package domain

import (
	"strings"
	"time"
)

const (
	PositionTypeBuy  = "POSITION_TYPE_BUY"
	PositionTypeSell = "POSITION_TYPE_SELL"
)

// Position is a read-only snapshot of an open broker position.
type Position struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Type       string    `json:"type"`
	Volume     float64   `json:"volume"`
	OpenPrice  float64   `json:"openPrice"`
	StopLoss   float64   `json:"stopLoss,omitempty"`
	TakeProfit float64   `json:"takeProfit,omitempty"`
	Profit     float64   `json:"profit"`
	Time       time.Time `json:"time"`
}

// Direction derives BUY/SELL from the broker position type.
func (p *Position) Direction() Direction {
	if strings.HasSuffix(p.Type, string(DirectionSell)) {
		return DirectionSell
	}
	return DirectionBuy
}

// AccountInformation is the subset of account data used for sizing.
type AccountInformation struct {
	Name     string  `json:"name"`
	Broker   string  `json:"broker"`
	Server   string  `json:"server"`
	Currency string  `json:"currency"`
	Balance  float64 `json:"balance"`
	Equity   float64 `json:"equity"`
}

// Quote is the current bid/ask of a symbol.
type Quote struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

func (q Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// OrderRequest is one leg sent to the broker.
type OrderRequest struct {
	Kind       OrderKind
	Direction  Direction
	Symbol     string
	Volume     float64
	OpenPrice  float64 // pending orders only
	StopLoss   float64
	TakeProfit float64
}

// TradeResult is the broker answer to a trade request.
type TradeResult struct {
	NumericCode int    `json:"numericCode"`
	StringCode  string `json:"stringCode"`
	Message     string `json:"message"`
	OrderID     string `json:"orderId,omitempty"`
	PositionID  string `json:"positionId,omitempty"`
}

// ID returns the position id for market orders and the order id otherwise.
func (r *TradeResult) ID() string {
	if r.PositionID != "" {
		return r.PositionID
	}
	return r.OrderID
}
