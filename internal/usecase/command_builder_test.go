package usecase_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/signal_copier/internal/domain"
	"github.com/vitos/signal_copier/internal/usecase"
)

func TestBuildCommand(t *testing.T) {
	byIDWithOrigin := func(id string, origin int64) domain.TargetSelector {
		sel := domain.ByID(id)
		sel.OriginMessageID = origin
		return sel
	}

	tests := []struct {
		name    string
		text    string
		replyTo int64
		want    domain.ControlCommand
	}{
		{
			name: "stop by symbol and type",
			text: "SL 10000 BUY BTCUSD",
			want: domain.ControlCommand{Kind: domain.CmdSetStop, Stop: 10000, Selector: domain.BySymbolAndType("BTCUSD", domain.DirectionBuy)},
		},
		{
			name: "partial close by id",
			text: "PARTIEL 30 2738574",
			want: domain.ControlCommand{Kind: domain.CmdPartialClose, Percent: 30, Selector: domain.ByID("2738574")},
		},
		{
			name:    "breakeven on reply",
			text:    "BE",
			replyTo: 55,
			want:    domain.ControlCommand{Kind: domain.CmdBreakeven, Selector: domain.ByReply(55, domain.NoLeg)},
		},
		{
			name: "breakeven everywhere",
			text: "BREAKEVEN",
			want: domain.ControlCommand{Kind: domain.CmdBreakeven, Selector: domain.BySymbolAndType("", "")},
		},
		{
			name:    "stop and target",
			text:    "SL 1.0850 TP 1.0950",
			replyTo: 55,
			want:    domain.ControlCommand{Kind: domain.CmdSetStopAndTarget, Stop: 1.085, Target: 1.095, Selector: domain.ByReply(55, domain.NoLeg)},
		},
		{
			name: "target only",
			text: "TP 1.0950",
			want: domain.ControlCommand{Kind: domain.CmdSetTarget, Target: 1.095, Selector: domain.BySymbolAndType("", "")},
		},
		{
			name:    "first target hit",
			text:    "TP1",
			replyTo: 77,
			want:    domain.ControlCommand{Kind: domain.CmdClose, FirstTarget: true, Selector: domain.ByReply(77, 0)},
		},
		{
			name:    "take second target",
			text:    "PRENEZ LE TP2",
			replyTo: 77,
			want:    domain.ControlCommand{Kind: domain.CmdClose, Selector: domain.ByReply(77, 1)},
		},
		{
			name:    "target leg number",
			text:    "TP 3 hit",
			replyTo: 77,
			want:    domain.ControlCommand{Kind: domain.CmdClose, Selector: domain.ByReply(77, 2)},
		},
		{
			name:    "first target by id keeps origin",
			text:    "TP1 2738574",
			replyTo: 77,
			want:    domain.ControlCommand{Kind: domain.CmdClose, FirstTarget: true, Selector: byIDWithOrigin("2738574", 77)},
		},
		{
			name:    "fermez closes the third leg",
			text:    "FERMEZ",
			replyTo: 77,
			want:    domain.ControlCommand{Kind: domain.CmdClose, Selector: domain.ByReply(77, 2)},
		},
		{
			name: "close by symbol and type",
			text: "CLOTURE SELL XAUUSD",
			want: domain.ControlCommand{Kind: domain.CmdClose, Selector: domain.BySymbolAndType("XAUUSD", domain.DirectionSell)},
		},
		{
			name: "percent with alias",
			text: "50% GOLD",
			want: domain.ControlCommand{Kind: domain.CmdPartialClose, Percent: 50, Selector: domain.BySymbolAndType("XAUUSD", "")},
		},
		{
			name:    "move stop with thousands space",
			text:    "METTRE LE SL A 1 920",
			replyTo: 9,
			want:    domain.ControlCommand{Kind: domain.CmdSetStop, Stop: 1920, Selector: domain.ByReply(9, domain.NoLeg)},
		},
		{
			name: "close unlisted symbol",
			text: "CLOTURE GER40",
			want: domain.ControlCommand{Kind: domain.CmdClose, Selector: domain.BySymbolAndType("GER40", "")},
		},
		{
			name: "close broker suffixed symbol",
			text: "CLOSE EURUSDm",
			want: domain.ControlCommand{Kind: domain.CmdClose, Selector: domain.BySymbolAndType("EURUSDM", "")},
		},
		{
			name: "breakeven unlisted symbol",
			text: "BE GER40",
			want: domain.ControlCommand{Kind: domain.CmdBreakeven, Selector: domain.BySymbolAndType("GER40", "")},
		},
		{
			name:    "free words on a reply keep the reply",
			text:    "BE please",
			replyTo: 55,
			want:    domain.ControlCommand{Kind: domain.CmdBreakeven, Selector: domain.ByReply(55, domain.NoLeg)},
		},
		{
			name: "move stop followed by position id",
			text: "METTRE LE SL 19500 2738574",
			want: domain.ControlCommand{Kind: domain.CmdSetStop, Stop: 19500, Selector: domain.ByID("2738574")},
		},
		{
			name:    "secure partials",
			text:    "SECURE PARTIALS",
			replyTo: 12,
			want:    domain.ControlCommand{Kind: domain.CmdPartialClose, Percent: 100, Selector: domain.ByReply(12, 0)},
		},
	}

	p := newParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := p.BuildCommand(usecase.SplitLines(tt.text), tt.replyTo)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Kind, cmd.Kind)
			assert.Equal(t, tt.want.Stop, cmd.Stop)
			assert.Equal(t, tt.want.Target, cmd.Target)
			assert.Equal(t, tt.want.Percent, cmd.Percent)
			assert.Equal(t, tt.want.FirstTarget, cmd.FirstTarget)
			assert.Equal(t, tt.want.Selector, cmd.Selector)
			assert.Equal(t, tt.text, cmd.Raw)
		})
	}
}

func TestBuildCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		kind domain.ParseErrorKind
	}{
		{"percent above 100", "PARTIEL 150", domain.MalformedField},
		{"partial without percent", "PARTIAL now", domain.MalformedField},
		{"move stop without level", "METTRE LE SL", domain.MalformedField},
		{"no rule", "hello there", domain.UnrecognizedShape},
	}

	p := newParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := p.BuildCommand(usecase.SplitLines(tt.text), 0)
			assert.Nil(t, cmd)
			var pe *domain.ParseError
			require.True(t, errors.As(err, &pe), "expected ParseError, got %v", err)
			assert.Equal(t, tt.kind, pe.Kind)
		})
	}
}
