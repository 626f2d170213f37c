package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/vitos/signal_copier/internal/config"
	"github.com/vitos/signal_copier/internal/domain"
	"go.uber.org/zap"
)

const (
	stageGetAccount       = "get-account"
	stageDeploy           = "deploy"
	stageWaitConnected    = "wait-connected"
	stageWaitSynchronized = "wait-synchronized"
	stageRequest          = "request"
)

// Trade return codes treated as success.
const (
	codeDone   = 10009
	codePlaced = 10008
)

var (
	ErrTradeRejected = errors.New("trade rejected")
	errNotFound      = errors.New("not found")
)

// MetaApiSession talks to a MetaTrader account through the MetaApi REST
// endpoints. Calls made before Connect fail with domain.ErrNotConnected.
type MetaApiSession struct {
	token           string
	accountID       string
	provisioningURL string
	clientURL       string
	connectTimeout  time.Duration
	pollInterval    time.Duration
	client          *http.Client
	logger          *zap.Logger

	mu        sync.Mutex
	connected bool
}

func NewMetaApiSession(cfg config.MetaApiConfig, logger *zap.Logger) *MetaApiSession {
	return &MetaApiSession{
		token:           cfg.Token,
		accountID:       cfg.AccountID,
		provisioningURL: cfg.ProvisioningURL,
		clientURL:       cfg.ClientURL,
		connectTimeout:  cfg.ConnectTimeout,
		pollInterval:    cfg.PollInterval,
		client:          &http.Client{Timeout: cfg.RequestTimeout},
		logger:          logger,
	}
}

// --- REST ---

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (m *MetaApiSession) sendRequest(ctx context.Context, method, baseURL, path string, payload map[string]interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("auth-token", m.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.Invalidate()
		return nil, &domain.ConnectionError{Stage: stageRequest, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		m.Invalidate()
		return nil, &domain.ConnectionError{Stage: stageRequest, Err: err}
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode >= 400 {
		var e apiError
		if json.Unmarshal(respBody, &e) == nil && e.Message != "" {
			return nil, fmt.Errorf("metaapi %d %s: %s", resp.StatusCode, e.Error, e.Message)
		}
		return nil, fmt.Errorf("metaapi %d: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

func (m *MetaApiSession) accountPath() string {
	return "/users/current/accounts/" + url.PathEscape(m.accountID)
}

func (m *MetaApiSession) get(ctx context.Context, path string, out interface{}) error {
	if !m.Connected() {
		return domain.ErrNotConnected
	}
	body, err := m.sendRequest(ctx, http.MethodGet, m.clientURL, m.accountPath()+path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// --- session lifecycle ---

type accountState struct {
	ID               string `json:"_id"`
	State            string `json:"state"`
	ConnectionStatus string `json:"connectionStatus"`
}

func (m *MetaApiSession) getAccount(ctx context.Context) (*accountState, error) {
	body, err := m.sendRequest(ctx, http.MethodGet, m.provisioningURL, m.accountPath(), nil)
	if err != nil {
		return nil, err
	}
	var acct accountState
	if err := json.Unmarshal(body, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

// Connect deploys the account when needed and blocks until the terminal is
// connected and synchronised, or the connect timeout expires.
func (m *MetaApiSession) Connect(ctx context.Context) error {
	m.logger.Info("Connecting to MetaApi account", zap.String("account_id", m.accountID))
	if m.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.connectTimeout)
		defer cancel()
	}

	acct, err := m.getAccount(ctx)
	if err != nil {
		return &domain.ConnectionError{Stage: stageGetAccount, Err: err}
	}

	if acct.State != "DEPLOYING" && acct.State != "DEPLOYED" {
		m.logger.Info("Deploying MetaApi account", zap.String("state", acct.State))
		if _, err := m.sendRequest(ctx, http.MethodPost, m.provisioningURL, m.accountPath()+"/deploy", nil); err != nil {
			return &domain.ConnectionError{Stage: stageDeploy, Err: err}
		}
	}

	err = m.poll(ctx, func() (bool, error) {
		acct, err := m.getAccount(ctx)
		if err != nil {
			return false, err
		}
		return acct.ConnectionStatus == "CONNECTED", nil
	})
	if err != nil {
		return &domain.ConnectionError{Stage: stageWaitConnected, Err: err}
	}

	err = m.poll(ctx, func() (bool, error) {
		_, err := m.sendRequest(ctx, http.MethodGet, m.clientURL, m.accountPath()+"/account-information", nil)
		if err != nil {
			var ce *domain.ConnectionError
			if errors.As(err, &ce) {
				return false, err
			}
			// Not synchronised yet.
			m.logger.Debug("Waiting for terminal synchronisation", zap.Error(err))
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return &domain.ConnectionError{Stage: stageWaitSynchronized, Err: err}
	}

	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	m.logger.Info("MetaApi account connected and synchronised")
	return nil
}

// poll calls check until it reports done, fails, or ctx ends. The wait
// between checks doubles from the poll interval up to eight times it.
func (m *MetaApiSession) poll(ctx context.Context, check func() (bool, error)) error {
	interval := m.pollInterval
	if interval <= 0 {
		interval = time.Second
	}
	b := &backoff.Backoff{Min: interval, Max: 8 * interval, Factor: 2}
	for {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		timer := time.NewTimer(b.Duration())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (m *MetaApiSession) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Invalidate forces the next caller to reconnect.
func (m *MetaApiSession) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		m.logger.Warn("MetaApi session invalidated")
	}
	m.connected = false
}

// --- account data ---

func (m *MetaApiSession) GetAccountInformation(ctx context.Context) (*domain.AccountInformation, error) {
	var info domain.AccountInformation
	if err := m.get(ctx, "/account-information", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (m *MetaApiSession) GetSymbolPrice(ctx context.Context, symbol string) (*domain.Quote, error) {
	var q domain.Quote
	err := m.get(ctx, "/symbols/"+url.PathEscape(symbol)+"/current-price", &q)
	if errors.Is(err, errNotFound) {
		return nil, fmt.Errorf("symbol %s not found", symbol)
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (m *MetaApiSession) GetPositions(ctx context.Context) ([]*domain.Position, error) {
	var positions []*domain.Position
	if err := m.get(ctx, "/positions", &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

func (m *MetaApiSession) GetPosition(ctx context.Context, id string) (*domain.Position, error) {
	var p domain.Position
	err := m.get(ctx, "/positions/"+url.PathEscape(id), &p)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// --- trading ---

func actionType(kind domain.OrderKind, dir domain.Direction) (string, error) {
	switch kind {
	case domain.OrderMarket:
		return "ORDER_TYPE_" + string(dir), nil
	case domain.OrderLimit, domain.OrderLimitLadder:
		return "ORDER_TYPE_" + string(dir) + "_LIMIT", nil
	case domain.OrderStop:
		return "ORDER_TYPE_" + string(dir) + "_STOP", nil
	}
	return "", fmt.Errorf("unsupported order kind %q", kind)
}

func (m *MetaApiSession) trade(ctx context.Context, payload map[string]interface{}) (*domain.TradeResult, error) {
	if !m.Connected() {
		return nil, domain.ErrNotConnected
	}
	body, err := m.sendRequest(ctx, http.MethodPost, m.clientURL, m.accountPath()+"/trade", payload)
	if err != nil {
		return nil, err
	}
	var res domain.TradeResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, err
	}
	if res.NumericCode != codeDone && res.NumericCode != codePlaced {
		return &res, fmt.Errorf("%w: %s (%d) %s", ErrTradeRejected, res.StringCode, res.NumericCode, res.Message)
	}
	return &res, nil
}

func orderPayload(req domain.OrderRequest) (map[string]interface{}, error) {
	action, err := actionType(req.Kind, req.Direction)
	if err != nil {
		return nil, err
	}
	payload := map[string]interface{}{
		"actionType": action,
		"symbol":     req.Symbol,
		"volume":     req.Volume,
	}
	if req.OpenPrice > 0 && req.Kind != domain.OrderMarket {
		payload["openPrice"] = req.OpenPrice
	}
	if req.StopLoss > 0 {
		payload["stopLoss"] = req.StopLoss
	}
	if req.TakeProfit > 0 {
		payload["takeProfit"] = req.TakeProfit
	}
	return payload, nil
}

func (m *MetaApiSession) CreateMarketOrder(ctx context.Context, req domain.OrderRequest) (*domain.TradeResult, error) {
	req.Kind = domain.OrderMarket
	payload, err := orderPayload(req)
	if err != nil {
		return nil, err
	}
	return m.trade(ctx, payload)
}

func (m *MetaApiSession) CreatePendingOrder(ctx context.Context, req domain.OrderRequest) (*domain.TradeResult, error) {
	if req.Kind == domain.OrderMarket {
		return nil, fmt.Errorf("pending order needs a limit or stop kind")
	}
	if req.OpenPrice <= 0 {
		return nil, fmt.Errorf("pending order needs an open price")
	}
	payload, err := orderPayload(req)
	if err != nil {
		return nil, err
	}
	return m.trade(ctx, payload)
}

func (m *MetaApiSession) ClosePosition(ctx context.Context, id string) (*domain.TradeResult, error) {
	return m.trade(ctx, map[string]interface{}{
		"actionType": "POSITION_CLOSE_ID",
		"positionId": id,
	})
}

func (m *MetaApiSession) ClosePositionPartially(ctx context.Context, id string, volume float64) (*domain.TradeResult, error) {
	return m.trade(ctx, map[string]interface{}{
		"actionType": "POSITION_PARTIAL",
		"positionId": id,
		"volume":     volume,
	})
}

func (m *MetaApiSession) ModifyPosition(ctx context.Context, id string, stopLoss, takeProfit float64) (*domain.TradeResult, error) {
	payload := map[string]interface{}{
		"actionType": "POSITION_MODIFY",
		"positionId": id,
	}
	if stopLoss > 0 {
		payload["stopLoss"] = stopLoss
	}
	if takeProfit > 0 {
		payload["takeProfit"] = takeProfit
	}
	return m.trade(ctx, payload)
}

func (m *MetaApiSession) CancelOrder(ctx context.Context, id string) (*domain.TradeResult, error) {
	return m.trade(ctx, map[string]interface{}{
		"actionType": "ORDER_CANCEL",
		"orderId":    id,
	})
}
