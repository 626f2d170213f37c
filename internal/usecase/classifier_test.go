package usecase_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/signal_copier/internal/config"
	"github.com/vitos/signal_copier/internal/domain"
	"github.com/vitos/signal_copier/internal/usecase"
)

func newParser() *usecase.SignalParser {
	return usecase.NewSignalParser(config.Default())
}

func TestSignalParser_Classify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want usecase.MessageKind
		err  bool
	}{
		{"standard entry", "BUY GBPUSD\nEntry NOW\nSL 1.14336\nTP 1.28930", usecase.KindEntry, false},
		{"blank lines ignored", "SELL EURUSD\n\nEntry 1.1000\n\nSL 1.1050\nTP 1.0950", usecase.KindEntry, false},
		{"stop command", "SL 10000 BUY BTCUSD", usecase.KindControl, false},
		{"partial command", "PARTIEL 30 2738574", usecase.KindControl, false},
		{"percent command", "50% GOLD", usecase.KindControl, false},
		{"french move stop", "Mettre le SL à 1920", usecase.KindControl, false},
		{"chatter", "good morning traders", "", true},
		{"long chatter", "Hello\nworld\nagain", "", true},
		{"empty", "   \n  ", "", true},
	}

	p := newParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, lines, err := p.Classify(tt.text)
			if tt.err {
				var pe *domain.ParseError
				require.True(t, errors.As(err, &pe), "expected ParseError, got %v", err)
				assert.Equal(t, domain.UnrecognizedShape, pe.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
			for _, l := range lines {
				assert.NotEmpty(t, l)
			}
		})
	}
}

func TestSplitLines(t *testing.T) {
	got := usecase.SplitLines("BUY GBPUSD  \r\n\n Entry NOW\n\t\nSL 1.1")
	assert.Equal(t, []string{"BUY GBPUSD", " Entry NOW", "SL 1.1"}, got)
}

func TestSignalParser_Interpret(t *testing.T) {
	p := newParser()

	intent, err := p.Interpret(domain.Message{ID: 1, Text: "BUY GBPUSD\nEntry NOW\nSL 1.14336\nTP 1.28930"})
	require.NoError(t, err)
	require.NotNil(t, intent.Trade)
	assert.Nil(t, intent.Command)

	intent, err = p.Interpret(domain.Message{ID: 2, ReplyToID: 1, Text: "BE"})
	require.NoError(t, err)
	require.NotNil(t, intent.Command)
	assert.Nil(t, intent.Trade)
	assert.Equal(t, domain.ByReply(1, domain.NoLeg), intent.Command.Selector)
}
