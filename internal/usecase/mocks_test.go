package usecase_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vitos/signal_copier/internal/domain"
)

// MockBroker is an in-memory broker session.
type MockBroker struct {
	mu sync.Mutex

	Account   domain.AccountInformation
	Quotes    map[string]domain.Quote
	Positions map[string]*domain.Position

	ConnectErr     error
	PositionsDelay time.Duration
	FailOn         map[string]error // keyed by "action:id" or "action:symbol"

	connected bool
	connects  int
	nextID    int

	Placed    []domain.OrderRequest
	Modified  map[string][2]float64
	Closed    []string
	Partials  map[string]float64
	Cancelled []string
}

func NewMockBroker() *MockBroker {
	return &MockBroker{
		Account:   domain.AccountInformation{Broker: "Test Broker", Server: "Test-Server", Currency: "USD", Balance: 10000},
		Quotes:    map[string]domain.Quote{},
		Positions: map[string]*domain.Position{},
		FailOn:    map[string]error{},
		Modified:  map[string][2]float64{},
		Partials:  map[string]float64{},
		nextID:    1000,
	}
}

func (m *MockBroker) AddPosition(p *domain.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Positions[p.ID] = p
}

func (m *MockBroker) fail(action, key string) error {
	return m.FailOn[action+":"+key]
}

func (m *MockBroker) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.connected = true
	return nil
}

func (m *MockBroker) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockBroker) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *MockBroker) Connects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects
}

func (m *MockBroker) GetAccountInformation(ctx context.Context) (*domain.AccountInformation, error) {
	if err := m.fail("account", ""); err != nil {
		return nil, err
	}
	acct := m.Account
	return &acct, nil
}

func (m *MockBroker) GetSymbolPrice(ctx context.Context, symbol string) (*domain.Quote, error) {
	if err := m.fail("quote", symbol); err != nil {
		return nil, err
	}
	q, ok := m.Quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	q.Symbol = symbol
	return &q, nil
}

func (m *MockBroker) GetPositions(ctx context.Context) ([]*domain.Position, error) {
	if err := m.fail("positions", ""); err != nil {
		return nil, err
	}
	m.mu.Lock()
	delay := m.PositionsDelay
	m.mu.Unlock()
	time.Sleep(delay)

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Position, 0, len(m.Positions))
	for _, p := range m.Positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockBroker) GetPosition(ctx context.Context, id string) (*domain.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Positions[id], nil
}

func (m *MockBroker) place(req domain.OrderRequest) (*domain.TradeResult, error) {
	if err := m.fail("place", fmt.Sprintf("%v", req.TakeProfit)); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := fmt.Sprintf("%d", m.nextID)
	m.Placed = append(m.Placed, req)
	res := &domain.TradeResult{NumericCode: 10009, StringCode: "TRADE_RETCODE_DONE", OrderID: id}
	if req.Kind == domain.OrderMarket {
		res.PositionID = id
		open := m.Quotes[req.Symbol].Bid
		if req.Direction == domain.DirectionSell {
			open = m.Quotes[req.Symbol].Ask
		}
		m.Positions[id] = &domain.Position{
			ID:         id,
			Symbol:     req.Symbol,
			Type:       "POSITION_TYPE_" + string(req.Direction),
			Volume:     req.Volume,
			OpenPrice:  open,
			StopLoss:   req.StopLoss,
			TakeProfit: req.TakeProfit,
		}
	}
	return res, nil
}

func (m *MockBroker) CreateMarketOrder(ctx context.Context, req domain.OrderRequest) (*domain.TradeResult, error) {
	return m.place(req)
}

func (m *MockBroker) CreatePendingOrder(ctx context.Context, req domain.OrderRequest) (*domain.TradeResult, error) {
	return m.place(req)
}

func (m *MockBroker) done() *domain.TradeResult {
	return &domain.TradeResult{NumericCode: 10009, StringCode: "TRADE_RETCODE_DONE"}
}

func (m *MockBroker) ClosePosition(ctx context.Context, id string) (*domain.TradeResult, error) {
	if err := m.fail("close", id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = append(m.Closed, id)
	delete(m.Positions, id)
	return m.done(), nil
}

func (m *MockBroker) ClosePositionPartially(ctx context.Context, id string, volume float64) (*domain.TradeResult, error) {
	if err := m.fail("partial", id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Partials[id] = volume
	return m.done(), nil
}

func (m *MockBroker) ModifyPosition(ctx context.Context, id string, stopLoss, takeProfit float64) (*domain.TradeResult, error) {
	if err := m.fail("modify", id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Modified[id] = [2]float64{stopLoss, takeProfit}
	return m.done(), nil
}

func (m *MockBroker) CancelOrder(ctx context.Context, id string) (*domain.TradeResult, error) {
	if err := m.fail("cancel", id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cancelled = append(m.Cancelled, id)
	return m.done(), nil
}

// MockCorrelationRepo keeps correlations in a map.
type MockCorrelationRepo struct {
	mu      sync.Mutex
	Entries map[int64][]string
	Err     error
}

func NewMockCorrelationRepo() *MockCorrelationRepo {
	return &MockCorrelationRepo{Entries: map[int64][]string{}}
}

func (m *MockCorrelationRepo) Record(ctx context.Context, messageID int64, ids []string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries[messageID] = append(m.Entries[messageID], ids...)
	return nil
}

func (m *MockCorrelationRepo) Lookup(ctx context.Context, messageID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.Entries[messageID]
	if !ok {
		return nil, domain.ErrCorrelationNotFound
	}
	return append([]string(nil), ids...), nil
}

func (m *MockCorrelationRepo) List(ctx context.Context) (map[int64][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64][]string, len(m.Entries))
	for k, v := range m.Entries {
		out[k] = append([]string(nil), v...)
	}
	return out, nil
}

func (m *MockCorrelationRepo) Close() error { return nil }
