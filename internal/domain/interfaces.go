package domain

import "context"

// Broker is the brokerage connection consumed by the engine.
type Broker interface {
	GetAccountInformation(ctx context.Context) (*AccountInformation, error)
	GetSymbolPrice(ctx context.Context, symbol string) (*Quote, error)
	GetPositions(ctx context.Context) ([]*Position, error)
	// GetPosition returns nil, nil when the position is not open.
	GetPosition(ctx context.Context, id string) (*Position, error)

	CreateMarketOrder(ctx context.Context, req OrderRequest) (*TradeResult, error)
	CreatePendingOrder(ctx context.Context, req OrderRequest) (*TradeResult, error)

	ClosePosition(ctx context.Context, id string) (*TradeResult, error)
	ClosePositionPartially(ctx context.Context, id string, volume float64) (*TradeResult, error)
	ModifyPosition(ctx context.Context, id string, stopLoss, takeProfit float64) (*TradeResult, error)
	CancelOrder(ctx context.Context, id string) (*TradeResult, error)
}

// Session is a broker connection with an explicit lifecycle.
type Session interface {
	Broker
	Connect(ctx context.Context) error
	Connected() bool
	Invalidate()
}

// CorrelationRepository maps an origin message to the broker ids it produced.
type CorrelationRepository interface {
	// Record appends ids to the message entry, creating it when absent.
	Record(ctx context.Context, messageID int64, ids []string) error
	// Lookup returns ErrCorrelationNotFound for unknown messages.
	Lookup(ctx context.Context, messageID int64) ([]string, error)
	List(ctx context.Context) (map[int64][]string, error)
	Close() error
}

// RateProvider converts an amount of one currency into another.
type RateProvider interface {
	Rate(ctx context.Context, from, to string) (float64, error)
}
