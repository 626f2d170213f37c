package usecase

import (
	"context"
	"fmt"

	"github.com/vitos/signal_copier/internal/domain"
	"go.uber.org/zap"
)

const actionPlace = "place"

// TradeExecutor places the orders of a sized descriptor, one leg at a time.
// Legs are not atomic: a failed leg is reported and the rest still go out.
type TradeExecutor struct {
	broker domain.Broker
	logger *zap.Logger
}

func NewTradeExecutor(broker domain.Broker, logger *zap.Logger) *TradeExecutor {
	return &TradeExecutor{
		broker: broker,
		logger: logger,
	}
}

// Execute places every leg of d under brokerSymbol. Each leg lands in report
// under the "place" action; accepted legs carry the broker id as target.
func (e *TradeExecutor) Execute(ctx context.Context, d *domain.TradeDescriptor, brokerSymbol string, report *domain.Report) {
	legs, err := buildLegs(d, brokerSymbol)
	if err != nil {
		report.Fail(actionPlace, brokerSymbol, err)
		return
	}

	for i, leg := range legs {
		target := fmt.Sprintf("%s leg %d", brokerSymbol, i+1)
		if leg.Volume <= 0 {
			err := &domain.ExecutionError{Action: actionPlace, Target: target, Err: domain.ErrZeroPositionSize}
			report.Fail(actionPlace, target, err)
			continue
		}

		var res *domain.TradeResult
		if leg.Kind == domain.OrderMarket {
			res, err = e.broker.CreateMarketOrder(ctx, leg)
		} else {
			res, err = e.broker.CreatePendingOrder(ctx, leg)
		}
		if err != nil {
			execErr := &domain.ExecutionError{Action: actionPlace, Target: target, Err: err}
			e.logger.Error("Order leg failed",
				zap.String("symbol", brokerSymbol),
				zap.Int("leg", i+1),
				zap.Error(err))
			report.Fail(actionPlace, target, execErr)
			continue
		}

		id := res.ID()
		e.logger.Info("Order leg placed",
			zap.String("symbol", brokerSymbol),
			zap.Int("leg", i+1),
			zap.String("id", id),
			zap.String("code", res.StringCode))
		report.OK(actionPlace, id, fmt.Sprintf("%s %.2f @ TP %v", leg.Kind, leg.Volume, leg.TakeProfit))
	}
}

// buildLegs expands a descriptor into broker order requests: one per take
// profit for single-entry kinds, one per rung for ladders.
func buildLegs(d *domain.TradeDescriptor, brokerSymbol string) ([]domain.OrderRequest, error) {
	if len(d.PositionSize) == 0 {
		return nil, fmt.Errorf("descriptor not sized")
	}

	if d.IsLadder() {
		legs := make([]domain.OrderRequest, len(d.Entry))
		for i, entry := range d.Entry {
			legs[i] = domain.OrderRequest{
				Kind:       domain.OrderLimit,
				Direction:  d.Direction,
				Symbol:     brokerSymbol,
				Volume:     d.PositionSize[i],
				OpenPrice:  entry,
				StopLoss:   d.StopLoss,
				TakeProfit: d.RungTarget(i),
			}
		}
		return legs, nil
	}

	volume := LegVolume(d.PositionSize[0], len(d.TakeProfits))
	legs := make([]domain.OrderRequest, len(d.TakeProfits))
	for i, tp := range d.TakeProfits {
		legs[i] = domain.OrderRequest{
			Kind:       d.Kind,
			Direction:  d.Direction,
			Symbol:     brokerSymbol,
			Volume:     volume,
			OpenPrice:  d.EntryPrice(),
			StopLoss:   d.StopLoss,
			TakeProfit: tp,
		}
		if d.Kind == domain.OrderMarket {
			legs[i].OpenPrice = 0
		}
	}
	return legs, nil
}
