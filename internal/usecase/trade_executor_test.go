package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/signal_copier/internal/domain"
	"github.com/vitos/signal_copier/internal/usecase"
	"go.uber.org/zap"
)

func TestTradeExecutor_MarketLegs(t *testing.T) {
	broker := NewMockBroker()
	exec := usecase.NewTradeExecutor(broker, zap.NewNop())

	d := &domain.TradeDescriptor{
		Kind: domain.OrderMarket, Direction: domain.DirectionBuy, Symbol: "GBPUSD",
		Entry: []float64{1.2}, StopLoss: 1.195, TakeProfits: []float64{1.205, 1.21},
		RiskFactor: 0.01, PositionSize: []float64{0.2},
	}
	report := &domain.Report{}
	exec.Execute(context.Background(), d, "GBPUSDz", report)
	ids := report.Succeeded("place")

	require.Len(t, ids, 2)
	require.Len(t, broker.Placed, 2)
	for i, leg := range broker.Placed {
		assert.Equal(t, domain.OrderMarket, leg.Kind)
		assert.Equal(t, "GBPUSDz", leg.Symbol)
		assert.Equal(t, 0.1, leg.Volume)
		assert.Equal(t, 0.0, leg.OpenPrice)
		assert.Equal(t, 1.195, leg.StopLoss)
		assert.Equal(t, d.TakeProfits[i], leg.TakeProfit)
	}
	for i, id := range ids {
		assert.Equal(t, broker.Placed[i].TakeProfit, broker.Positions[id].TakeProfit)
	}
}

func TestTradeExecutor_PendingLeg(t *testing.T) {
	broker := NewMockBroker()
	exec := usecase.NewTradeExecutor(broker, zap.NewNop())

	d := &domain.TradeDescriptor{
		Kind: domain.OrderLimit, Direction: domain.DirectionSell, Symbol: "EURUSD",
		Entry: []float64{1.1}, StopLoss: 1.105, TakeProfits: []float64{1.095},
		RiskFactor: 0.01, PositionSize: []float64{0.4},
	}
	report := &domain.Report{}
	exec.Execute(context.Background(), d, "EURUSD", report)
	ids := report.Succeeded("place")

	require.Len(t, ids, 1)
	require.Len(t, broker.Placed, 1)
	assert.Equal(t, domain.OrderLimit, broker.Placed[0].Kind)
	assert.Equal(t, 1.1, broker.Placed[0].OpenPrice)
	assert.Equal(t, 0.4, broker.Placed[0].Volume)
}

func TestTradeExecutor_LadderLegs(t *testing.T) {
	broker := NewMockBroker()
	exec := usecase.NewTradeExecutor(broker, zap.NewNop())

	d, err := buildDescriptor(t, "BUY LIMIT GBPUSD\nEntry 1.6650 - 1.6680\nSL 1.6600\nTP1 1.6700\nTP2 1.6720")
	require.NoError(t, err)
	_, err = newCalculator().Size(d, usecase.AccountSnapshot{Balance: 10000, Currency: "USD"})
	require.NoError(t, err)

	report := &domain.Report{}
	exec.Execute(context.Background(), d, "GBPUSD", report)
	ids := report.Succeeded("place")
	require.Len(t, ids, 9)
	require.Len(t, broker.Placed, 9)
	for i, leg := range broker.Placed {
		assert.Equal(t, domain.OrderLimit, leg.Kind)
		assert.Equal(t, d.Entry[i], leg.OpenPrice)
		assert.Equal(t, d.PositionSize[i], leg.Volume)
		assert.Equal(t, d.RungTarget(i), leg.TakeProfit)
	}
	assert.Equal(t, 1.67, broker.Placed[0].TakeProfit)
	assert.Equal(t, 1.672, broker.Placed[4].TakeProfit)
	assert.InDelta(t, 1.677, broker.Placed[8].TakeProfit, 1e-9)
}

func TestTradeExecutor_PartialFailure(t *testing.T) {
	broker := NewMockBroker()
	broker.FailOn["place:1.205"] = errors.New("TRADE_RETCODE_NO_MONEY")
	exec := usecase.NewTradeExecutor(broker, zap.NewNop())

	d := &domain.TradeDescriptor{
		Kind: domain.OrderMarket, Direction: domain.DirectionBuy, Symbol: "GBPUSD",
		Entry: []float64{1.2}, StopLoss: 1.195, TakeProfits: []float64{1.205, 1.21},
		RiskFactor: 0.01, PositionSize: []float64{0.2},
	}
	report := &domain.Report{}
	exec.Execute(context.Background(), d, "GBPUSD", report)
	ids := report.Succeeded("place")

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, report.Failures())
	assert.Contains(t, report.Legs[0].Detail, "NO_MONEY")
}

func TestTradeExecutor_LegTooSmall(t *testing.T) {
	broker := NewMockBroker()
	exec := usecase.NewTradeExecutor(broker, zap.NewNop())

	d := &domain.TradeDescriptor{
		Kind: domain.OrderMarket, Direction: domain.DirectionBuy, Symbol: "GBPUSD",
		Entry: []float64{1.2}, StopLoss: 1.195, TakeProfits: []float64{1.205, 1.21, 1.215},
		RiskFactor: 0.01, PositionSize: []float64{0.02},
	}
	report := &domain.Report{}
	exec.Execute(context.Background(), d, "GBPUSD", report)
	ids := report.Succeeded("place")

	assert.Empty(t, ids)
	assert.Empty(t, broker.Placed)
	assert.Equal(t, 3, report.Failures())
}
