package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vitos/signal_copier/internal/config"
	"github.com/vitos/signal_copier/internal/domain"
	"go.uber.org/zap"
)

// ReportPublisher receives every finished report, e.g. the event feed.
type ReportPublisher interface {
	Publish(report *domain.Report)
}

// SignalService is the entry point for inbound chat messages.
type SignalService struct {
	parser   *SignalParser
	calc     *RiskCalculator
	executor *TradeExecutor
	resolver *Resolver
	session  domain.Session
	store    domain.CorrelationRepository
	symbols  *SymbolMapper
	rates    domain.RateProvider
	risk     config.RiskConfig
	worker   *Worker
	logger   *zap.Logger

	publishers []ReportPublisher
}

func NewSignalService(
	cfg *config.Config,
	session domain.Session,
	store domain.CorrelationRepository,
	worker *Worker,
	logger *zap.Logger,
) *SignalService {
	symbols := NewSymbolMapper(cfg.Brokers)
	return &SignalService{
		parser:   NewSignalParser(cfg),
		calc:     NewRiskCalculator(cfg.Tiered),
		executor: NewTradeExecutor(session, logger),
		resolver: NewResolver(session, store, symbols, cfg.Resolver, logger),
		session:  session,
		store:    store,
		symbols:  symbols,
		rates:    NewRateProvider(cfg.Risk.ReferenceCurrency, cfg.Risk.Rates, session),
		risk:     cfg.Risk,
		worker:   worker,
		logger:   logger,
	}
}

// AddPublisher registers a receiver for finished reports.
func (s *SignalService) AddPublisher(p ReportPublisher) {
	s.publishers = append(s.publishers, p)
}

// Enqueue schedules a request on the worker; reply is called from the worker
// goroutine with the finished report.
func (s *SignalService) Enqueue(kind domain.RequestKind, msg domain.Message, reply func(*domain.Report)) error {
	return s.worker.Submit(string(kind), func(ctx context.Context) {
		report := s.Process(ctx, kind, msg)
		if reply != nil {
			reply(report)
		}
	})
}

// Process handles one request synchronously. Callers outside the worker must
// go through Enqueue.
func (s *SignalService) Process(ctx context.Context, kind domain.RequestKind, msg domain.Message) *domain.Report {
	report := &domain.Report{
		ID:        uuid.NewString(),
		MessageID: msg.ID,
		Intent:    string(kind),
		CreatedAt: time.Now(),
	}

	switch kind {
	case domain.RequestCalculate:
		s.calculate(ctx, msg, report)
	case domain.RequestOpenTrades:
		s.openTrades(ctx, report)
	case domain.RequestCorrelations:
		s.correlations(ctx, report)
	default:
		s.handle(ctx, msg, report)
	}

	if report.Error != "" {
		s.logger.Warn("Request failed",
			zap.String("kind", string(kind)),
			zap.Int64("message_id", msg.ID),
			zap.String("error", report.Error))
	}
	for _, p := range s.publishers {
		p.Publish(report)
	}
	return report
}

func (s *SignalService) handle(ctx context.Context, msg domain.Message, report *domain.Report) {
	intent, err := s.parser.Interpret(msg)
	if err != nil {
		report.SetError(err)
		return
	}
	if err := s.connect(ctx); err != nil {
		report.SetError(err)
		return
	}

	if intent.Trade != nil {
		report.Intent = "TRADE"
		s.enterTrade(ctx, msg, intent.Trade, true, report)
		return
	}

	cmd := intent.Command
	report.Intent = string(cmd.Kind)
	ids, err := s.resolver.Resolve(ctx, cmd.Selector)
	if err != nil {
		s.checkSession(err)
		report.SetError(err)
		return
	}
	s.logger.Info("Resolved control command",
		zap.String("kind", string(cmd.Kind)),
		zap.String("selector", cmd.Selector.String()),
		zap.Strings("ids", ids))
	s.resolver.Execute(ctx, cmd, ids, report)
}

func (s *SignalService) calculate(ctx context.Context, msg domain.Message, report *domain.Report) {
	intent, err := s.parser.Interpret(msg)
	if err != nil {
		report.SetError(err)
		return
	}
	if intent.Trade == nil {
		report.SetError(&domain.ParseError{Kind: domain.UnrecognizedShape, Raw: msg.Text})
		return
	}
	if err := s.connect(ctx); err != nil {
		report.SetError(err)
		return
	}
	report.Intent = "CALCULATE"
	s.enterTrade(ctx, msg, intent.Trade, false, report)
}

// enterTrade prices, sizes and, when place is set, dispatches a descriptor.
func (s *SignalService) enterTrade(ctx context.Context, msg domain.Message, d *domain.TradeDescriptor, place bool, report *domain.Report) {
	acct, err := s.session.GetAccountInformation(ctx)
	if err != nil {
		s.checkSession(err)
		report.SetError(err)
		return
	}
	brokerSymbol := s.symbols.BrokerSymbol(acct, d.Symbol)
	balance := s.symbols.Balance(acct)

	if d.Kind == domain.OrderMarket {
		q, err := s.session.GetSymbolPrice(ctx, brokerSymbol)
		if err != nil {
			s.checkSession(err)
			report.SetError(fmt.Errorf("quote %s: %w", brokerSymbol, err))
			return
		}
		price := q.Bid
		if d.Direction == domain.DirectionSell {
			price = q.Ask
		}
		d.Entry = []float64{price}
	}

	rate := 1.0
	if !d.Tiered {
		rate, err = s.rates.Rate(ctx, acct.Currency, s.risk.ReferenceCurrency)
		if err != nil {
			report.SetError(fmt.Errorf("convert %s balance: %w", acct.Currency, err))
			return
		}
	}

	sizing, err := s.calc.Size(d, AccountSnapshot{Balance: balance, Currency: acct.Currency, ReferenceRate: rate})
	if err != nil {
		report.SetError(err)
		return
	}
	report.Add(FormatTradeInfo(d, sizing, balance, acct.Currency))

	if !place {
		return
	}

	s.executor.Execute(ctx, d, brokerSymbol, report)
	ids := report.Succeeded(actionPlace)
	if len(ids) == 0 {
		report.Add("No order was accepted by the broker.")
		for _, l := range report.Legs {
			if l.Status == domain.LegFailed {
				report.Add(l.Detail)
			}
		}
		return
	}
	if err := s.store.Record(ctx, msg.ID, ids); err != nil {
		s.logger.Error("Failed to record correlation", zap.Int64("message_id", msg.ID), zap.Error(err))
		report.Add("Orders placed but not recorded: " + err.Error())
	}
	report.Add(strings.Join(ids, ", "))
	if failed := report.Failures(); failed > 0 {
		report.Add(fmt.Sprintf("%d of %d legs failed:", failed, failed+len(ids)))
		for _, l := range report.Legs {
			if l.Status == domain.LegFailed {
				report.Add(l.Detail)
			}
		}
		return
	}
	report.Add("Trade entered successfully!")
}

func (s *SignalService) openTrades(ctx context.Context, report *domain.Report) {
	if err := s.connect(ctx); err != nil {
		report.SetError(err)
		return
	}
	positions, err := s.session.GetPositions(ctx)
	if err != nil {
		s.checkSession(err)
		report.SetError(err)
		return
	}
	if len(positions) == 0 {
		report.Add("No ongoing trades.")
		return
	}
	for _, p := range positions {
		report.Add(fmt.Sprintf("%s %s %s %.2f @ %v SL %v TP %v profit %.2f",
			p.ID, p.Direction(), p.Symbol, p.Volume, p.OpenPrice, p.StopLoss, p.TakeProfit, p.Profit))
	}
}

func (s *SignalService) correlations(ctx context.Context, report *domain.Report) {
	all, err := s.store.List(ctx)
	if err != nil {
		report.SetError(err)
		return
	}
	if len(all) == 0 {
		report.Add("No trades recorded.")
		return
	}
	keys := make([]int64, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		report.Add(fmt.Sprintf("%d: %s", k, strings.Join(all[k], ", ")))
	}
}

// OpenPositions lists live positions, optionally filtered by canonical symbol.
func (s *SignalService) OpenPositions(ctx context.Context, symbol string) ([]*domain.Position, error) {
	return CallValue(ctx, s.worker, "open-positions", func(ctx context.Context) ([]*domain.Position, error) {
		if err := s.connect(ctx); err != nil {
			return nil, err
		}
		positions, err := s.session.GetPositions(ctx)
		if err != nil {
			s.checkSession(err)
			return nil, err
		}
		want := NormalizeSymbol(symbol)
		var out []*domain.Position
		for _, p := range positions {
			if want == "" || s.symbols.Canonical(p.Symbol) == want || p.Symbol == want {
				out = append(out, p)
			}
		}
		return out, nil
	})
}

// Correlations returns the whole message to ids mapping.
func (s *SignalService) Correlations(ctx context.Context) (map[int64][]string, error) {
	return CallValue(ctx, s.worker, "correlations", func(ctx context.Context) (map[int64][]string, error) {
		return s.store.List(ctx)
	})
}

func (s *SignalService) connect(ctx context.Context) error {
	if s.session.Connected() {
		return nil
	}
	return s.session.Connect(ctx)
}

// checkSession drops the session after a transport failure so the next
// request reconnects.
func (s *SignalService) checkSession(err error) {
	var ce *domain.ConnectionError
	if !errors.As(err, &ce) && !errors.Is(err, domain.ErrNotConnected) {
		return
	}
	s.logger.Warn("Broker connection lost, session will reconnect", zap.Error(err))
	s.session.Invalidate()
}
