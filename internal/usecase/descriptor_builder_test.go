package usecase_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/signal_copier/internal/domain"
	"github.com/vitos/signal_copier/internal/usecase"
)

func buildDescriptor(t *testing.T, text string) (*domain.TradeDescriptor, error) {
	t.Helper()
	return newParser().BuildDescriptor(usecase.SplitLines(text))
}

func TestBuildDescriptor_Shapes(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.TradeDescriptor
	}{
		{
			name: "standard market now",
			text: "BUY GBPUSD\nEntry NOW\nSL 1.14336\nTP 1.28930\nTP 1.29845",
			want: domain.TradeDescriptor{
				Kind: domain.OrderMarket, Direction: domain.DirectionBuy, Symbol: "GBPUSD",
				StopLoss: 1.14336, TakeProfits: []float64{1.28930, 1.29845}, RiskFactor: 0.01, Shape: "standard",
			},
		},
		{
			name: "standard limit with risk",
			text: "SELL LIMIT EURUSD\nEntry 1.1000\nTP1 1.0950\nSL 1.1050\nTP2 1.0900\nRisk 2%",
			want: domain.TradeDescriptor{
				Kind: domain.OrderLimit, Direction: domain.DirectionSell, Symbol: "EURUSD", Entry: []float64{1.1},
				StopLoss: 1.105, TakeProfits: []float64{1.095, 1.09}, RiskFactor: 0.02, Shape: "standard",
			},
		},
		{
			name: "arrow",
			text: "#XAUUSD 🔽 SELL 1935.5\nSignal\nTP1 : 1930\nTP2 : 1925\n-----\nSL : 1940",
			want: domain.TradeDescriptor{
				Kind: domain.OrderMarket, Direction: domain.DirectionSell, Symbol: "XAUUSD", Entry: []float64{1935.5},
				StopLoss: 1940, TakeProfits: []float64{1930, 1925}, RiskFactor: 0.01, Shape: "arrow",
			},
		},
		{
			name: "at",
			text: "BUY GBPJPY 185.20\nNew signal\nSL @ 184.70\nTP @ 185.80\nTP2 @ 186.30",
			want: domain.TradeDescriptor{
				Kind: domain.OrderMarket, Direction: domain.DirectionBuy, Symbol: "GBPJPY", Entry: []float64{185.2},
				StopLoss: 184.7, TakeProfits: []float64{185.8, 186.3}, RiskFactor: 0.01, Shape: "at",
			},
		},
		{
			name: "layer",
			text: "SELL XAUUSD 1950-1955\nSwing\nSL: 1960\nTargets\nTP1: 1940\nTP2: 1930\nManage risk\nslowly-layer in",
			want: domain.TradeDescriptor{
				Kind: domain.OrderMarket, Direction: domain.DirectionSell, Symbol: "XAUUSD", Entry: []float64{1955},
				StopLoss: 1960, TakeProfits: []float64{1940, 1930}, RiskFactor: 0.01, Shape: "layer",
			},
		},
		{
			name: "tiered",
			text: "ACHAT BTC/USD (crypto)\nEntrée immédiate\nPE : 65000 - 64800",
			want: domain.TradeDescriptor{
				Kind: domain.OrderMarket, Direction: domain.DirectionBuy, Symbol: "BTCUSD", Entry: []float64{65000},
				TakeProfits: []float64{66000, 67000, 68000}, RiskFactor: 0.01, Tiered: true, Shape: "tiered",
			},
		},
		{
			name: "tiered wins over at",
			text: "ACHAT BTC/USD (crypto)\nEntrée immédiate\nPE : 65000 - 64800\nTp @ 66000",
			want: domain.TradeDescriptor{
				Kind: domain.OrderMarket, Direction: domain.DirectionBuy, Symbol: "BTCUSD", Entry: []float64{65000},
				TakeProfits: []float64{66000, 67000, 68000}, RiskFactor: 0.01, Tiered: true, Shape: "tiered",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := buildDescriptor(t, tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Kind, d.Kind)
			assert.Equal(t, tt.want.Direction, d.Direction)
			assert.Equal(t, tt.want.Symbol, d.Symbol)
			assert.Equal(t, tt.want.Entry, d.Entry)
			assert.Equal(t, tt.want.StopLoss, d.StopLoss)
			assert.Equal(t, tt.want.TakeProfits, d.TakeProfits)
			assert.Equal(t, tt.want.RiskFactor, d.RiskFactor)
			assert.Equal(t, tt.want.Tiered, d.Tiered)
			assert.Equal(t, tt.want.Shape, d.Shape)
			assert.Nil(t, d.PositionSize)
		})
	}
}

func TestBuildDescriptor_Idempotent(t *testing.T) {
	texts := []string{
		"BUY GBPUSD\nEntry NOW\nSL 1.14336\nTP 1.28930\nTP 1.29845",
		"BUY LIMIT GBPUSD\nEntry 1.6650 - 1.6680\nSL 1.6600\nTP1 1.6700\nTP2 1.6720",
		"ACHAT BTC/USD (crypto)\nEntrée immédiate\nPE : 65000 - 64800",
	}
	for _, text := range texts {
		a, err := buildDescriptor(t, text)
		require.NoError(t, err)
		b, err := buildDescriptor(t, text)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestBuildDescriptor_Ladder(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		direction domain.Direction
		first     float64
		last      float64
		tiers     []domain.LadderTier
	}{
		{
			name:      "buy ladder descends from the top of the zone",
			text:      "BUY LIMIT GBPUSD\nEntry 1.6650 - 1.6680\nSL 1.6600\nTP1 1.6700\nTP2 1.6720",
			direction: domain.DirectionBuy,
			first:     1.6680,
			last:      1.6650,
			tiers: []domain.LadderTier{
				{Rungs: 4, Target: 1.67},
				{Rungs: 3, Target: 1.672},
				{Rungs: 2, Target: 1.677},
			},
		},
		{
			name:      "sell ladder ascends from the bottom of the zone",
			text:      "SELL LIMIT GBPUSD\nZone 1.6680-1.6650\nSL 1.6720\nTP1 1.6600\nTP2 1.6580\nTP3 1.6550",
			direction: domain.DirectionSell,
			first:     1.6650,
			last:      1.6680,
			tiers: []domain.LadderTier{
				{Rungs: 4, Target: 1.66},
				{Rungs: 3, Target: 1.658},
				{Rungs: 2, Target: 1.655},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := buildDescriptor(t, tt.text)
			require.NoError(t, err)
			assert.Equal(t, domain.OrderLimitLadder, d.Kind)
			assert.Equal(t, "ladder", d.Shape)
			require.Len(t, d.Entry, 9)
			assert.InDelta(t, tt.first, d.Entry[0], 1e-9)
			assert.InDelta(t, tt.last, d.Entry[8], 1e-9)

			step := (1.6680 - 1.6650) / 8
			for i := 1; i < len(d.Entry); i++ {
				diff := d.Entry[i] - d.Entry[i-1]
				if tt.direction == domain.DirectionBuy {
					assert.Less(t, d.Entry[i], d.Entry[i-1], "rung %d", i)
					diff = -diff
				} else {
					assert.Greater(t, d.Entry[i], d.Entry[i-1], "rung %d", i)
				}
				assert.InDelta(t, step, diff, 1e-9, "rung %d spacing", i)
			}

			require.Len(t, d.Tiers, len(tt.tiers))
			for i, tier := range tt.tiers {
				assert.Equal(t, tier.Rungs, d.Tiers[i].Rungs)
				assert.InDelta(t, tier.Target, d.Tiers[i].Target, 1e-9)
			}
			assert.InDelta(t, tt.tiers[0].Target, d.RungTarget(0), 1e-9)
			assert.InDelta(t, tt.tiers[2].Target, d.RungTarget(8), 1e-9)
		})
	}
}

func TestBuildDescriptor_Errors(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		kind  domain.ParseErrorKind
		field string
	}{
		{"bad entry", "BUY LIMIT EURUSD\nEntry abc\nSL 1.1\nTP 1.2", domain.MalformedField, "entry"},
		{"missing stop", "BUY EURUSD\nEntry NOW\nTP 1.2", domain.MalformedField, "stop loss"},
		{"missing target", "BUY EURUSD\nEntry NOW\nSL 1.05", domain.MalformedField, "take profit"},
		{"limit without price", "BUY LIMIT EURUSD\nEntry NOW\nSL 1.05\nTP 1.2", domain.MalformedField, "entry"},
		{"bad risk", "BUY EURUSD\nEntry NOW\nSL 1.05\nTP 1.2\nRisk 250%", domain.MalformedField, "risk"},
		{"no order keyword", "EURUSD looks good\nEntry NOW\nSL 1.05", domain.UnrecognizedShape, ""},
		{"unknown layout", "BUY EURUSD\nwatch this\nmaybe later", domain.UnrecognizedShape, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := buildDescriptor(t, tt.text)
			assert.Nil(t, d)
			var pe *domain.ParseError
			require.True(t, errors.As(err, &pe), "expected ParseError, got %v", err)
			assert.Equal(t, tt.kind, pe.Kind)
			if tt.field != "" {
				assert.Equal(t, tt.field, pe.Field)
			}
			assert.NotEmpty(t, pe.Raw)
		})
	}
}
