package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vitos/signal_copier/internal/config"
	"github.com/vitos/signal_copier/internal/domain"
	"go.uber.org/zap"
)

const (
	actionSetStop   = "set-stop"
	actionSetTarget = "set-target"
	actionModify    = "modify"
	actionBreakeven = "breakeven"
	actionPartial   = "partial-close"
	actionClose     = "close"
	actionCancel    = "cancel"
)

// Resolver maps control commands onto broker positions and applies them.
type Resolver struct {
	broker  domain.Broker
	store   domain.CorrelationRepository
	symbols *SymbolMapper
	cfg     config.ResolverConfig
	logger  *zap.Logger
}

func NewResolver(broker domain.Broker, store domain.CorrelationRepository, symbols *SymbolMapper, cfg config.ResolverConfig, logger *zap.Logger) *Resolver {
	return &Resolver{
		broker:  broker,
		store:   store,
		symbols: symbols,
		cfg:     cfg,
		logger:  logger,
	}
}

// Resolve returns the position or order ids a selector addresses. An empty
// resolution is a *domain.LookupError.
func (r *Resolver) Resolve(ctx context.Context, sel domain.TargetSelector) ([]string, error) {
	switch sel.Kind {
	case domain.SelectByID:
		return []string{sel.PositionID}, nil

	case domain.SelectByReply:
		ids, err := r.store.Lookup(ctx, sel.OriginMessageID)
		if errors.Is(err, domain.ErrCorrelationNotFound) {
			return nil, &domain.LookupError{Selector: sel, Reason: "no trades recorded for that message"}
		}
		if err != nil {
			return nil, err
		}
		if sel.Leg == domain.NoLeg {
			return ids, nil
		}
		if sel.Leg < 0 || sel.Leg >= len(ids) {
			return nil, &domain.LookupError{Selector: sel, Reason: fmt.Sprintf("message has %d legs", len(ids))}
		}
		return []string{ids[sel.Leg]}, nil

	case domain.SelectBySymbolAndType:
		positions, err := r.broker.GetPositions(ctx)
		if err != nil {
			return nil, err
		}
		var ids []string
		for _, p := range positions {
			if r.matches(sel, p) {
				ids = append(ids, p.ID)
			}
		}
		if len(ids) == 0 {
			return nil, &domain.LookupError{Selector: sel, Reason: "no open position matches"}
		}
		return ids, nil
	}
	return nil, fmt.Errorf("unknown selector kind %q", sel.Kind)
}

// matches applies the selector filter: both fields unset selects everything,
// otherwise each set field must match.
func (r *Resolver) matches(sel domain.TargetSelector, p *domain.Position) bool {
	symbolOK := sel.Symbol == "" ||
		strings.EqualFold(p.Symbol, sel.Symbol) ||
		r.symbols.Canonical(p.Symbol) == r.symbols.Canonical(sel.Symbol)
	typeOK := sel.OrderType == "" || p.Direction() == sel.OrderType
	return symbolOK && typeOK
}

// Execute applies cmd to every id, recording each outcome in report. A failed
// id does not stop the others.
func (r *Resolver) Execute(ctx context.Context, cmd *domain.ControlCommand, ids []string, report *domain.Report) {
	for _, id := range ids {
		r.apply(ctx, cmd, id, report)
	}

	if cmd.FirstTarget && (cmd.Kind == domain.CmdClose || cmd.Kind == domain.CmdPartialClose) {
		r.secureRemaining(ctx, cmd.Selector.OriginMessageID, ids, report)
	}
}

func (r *Resolver) apply(ctx context.Context, cmd *domain.ControlCommand, id string, report *domain.Report) {
	switch cmd.Kind {
	case domain.CmdSetStopAndTarget:
		r.do(report, actionModify, id, fmt.Sprintf("SL %v TP %v set for position %s.", cmd.Stop, cmd.Target, id),
			func() (*domain.TradeResult, error) {
				return r.broker.ModifyPosition(ctx, id, cmd.Stop, cmd.Target)
			})

	case domain.CmdSetStop:
		pos, ok := r.position(ctx, actionSetStop, id, report)
		if !ok {
			return
		}
		r.do(report, actionSetStop, id, fmt.Sprintf("SL %v set for position %s.", cmd.Stop, id),
			func() (*domain.TradeResult, error) {
				return r.broker.ModifyPosition(ctx, id, cmd.Stop, pos.TakeProfit)
			})

	case domain.CmdSetTarget:
		pos, ok := r.position(ctx, actionSetTarget, id, report)
		if !ok {
			return
		}
		r.do(report, actionSetTarget, id, fmt.Sprintf("TP %v set for position %s.", cmd.Target, id),
			func() (*domain.TradeResult, error) {
				return r.broker.ModifyPosition(ctx, id, pos.StopLoss, cmd.Target)
			})

	case domain.CmdBreakeven:
		r.breakeven(ctx, id, report)

	case domain.CmdPartialClose:
		pos, ok := r.position(ctx, actionPartial, id, report)
		if !ok {
			return
		}
		if cmd.Percent >= 100 {
			r.do(report, actionClose, id, fmt.Sprintf("Position %s > %s %s closed.", id, pos.Direction(), pos.Symbol),
				func() (*domain.TradeResult, error) {
					return r.broker.ClosePosition(ctx, id)
				})
			return
		}
		volume := PartialVolume(cmd.Percent, pos.Volume)
		if volume <= 0 {
			report.Fail(actionPartial, id, &domain.ExecutionError{Action: actionPartial, Target: id, Err: domain.ErrZeroPositionSize})
			report.Add(fmt.Sprintf("Position %s is too small to close %v%%.", id, cmd.Percent))
			return
		}
		r.do(report, actionPartial, id, fmt.Sprintf("Closed %.2f lots of position %s.", volume, id),
			func() (*domain.TradeResult, error) {
				return r.broker.ClosePositionPartially(ctx, id, volume)
			})

	case domain.CmdClose:
		pos, err := r.broker.GetPosition(ctx, id)
		if err != nil {
			r.fail(report, actionClose, id, err)
			return
		}
		if pos == nil {
			// Not an open position: treat as a pending order.
			r.do(report, actionCancel, id, fmt.Sprintf("Pending order %s cancelled.", id),
				func() (*domain.TradeResult, error) {
					return r.broker.CancelOrder(ctx, id)
				})
			return
		}
		r.do(report, actionClose, id, fmt.Sprintf("Position %s > %s %s closed.", id, pos.Direction(), pos.Symbol),
			func() (*domain.TradeResult, error) {
				return r.broker.ClosePosition(ctx, id)
			})
	}
}

// breakeven moves the stop to the open price, padded by the current spread
// away from price when configured.
func (r *Resolver) breakeven(ctx context.Context, id string, report *domain.Report) {
	pos, ok := r.position(ctx, actionBreakeven, id, report)
	if !ok {
		return
	}
	stop := pos.OpenPrice
	if r.cfg.BreakevenSpreadPad {
		q, err := r.broker.GetSymbolPrice(ctx, pos.Symbol)
		if err != nil {
			r.logger.Warn("Breakeven without spread pad", zap.String("position", id), zap.Error(err))
		} else {
			stop = BreakevenLevel(pos, q.Spread())
		}
	}
	r.do(report, actionBreakeven, id, fmt.Sprintf("Breakeven set for position %s.", id),
		func() (*domain.TradeResult, error) {
			return r.broker.ModifyPosition(ctx, id, stop, pos.TakeProfit)
		})
}

// BreakevenLevel is the open price moved by spread away from the market.
func BreakevenLevel(pos *domain.Position, spread float64) float64 {
	if spread <= 0 {
		return pos.OpenPrice
	}
	return pos.OpenPrice - pos.Direction().Sign()*spread
}

// secureRemaining moves the other legs of the origin message to breakeven
// after a first-target close.
func (r *Resolver) secureRemaining(ctx context.Context, origin int64, handled []string, report *domain.Report) {
	if origin == 0 {
		return
	}
	all, err := r.store.Lookup(ctx, origin)
	if err != nil {
		if !errors.Is(err, domain.ErrCorrelationNotFound) {
			r.logger.Error("Correlation lookup failed", zap.Int64("message_id", origin), zap.Error(err))
		}
		return
	}
	skip := make(map[string]bool, len(handled))
	for _, id := range handled {
		skip[id] = true
	}
	for _, id := range all {
		if !skip[id] {
			r.breakeven(ctx, id, report)
		}
	}
}

func (r *Resolver) position(ctx context.Context, action, id string, report *domain.Report) (*domain.Position, bool) {
	pos, err := r.broker.GetPosition(ctx, id)
	if err != nil {
		r.fail(report, action, id, err)
		return nil, false
	}
	if pos == nil {
		r.fail(report, action, id, domain.ErrPositionNotFound)
		return nil, false
	}
	return pos, true
}

func (r *Resolver) do(report *domain.Report, action, id, okLine string, call func() (*domain.TradeResult, error)) {
	res, err := call()
	if err != nil {
		r.fail(report, action, id, err)
		return
	}
	r.logger.Info("Command applied",
		zap.String("action", action),
		zap.String("id", id),
		zap.String("code", res.StringCode))
	report.OK(action, id, res.StringCode)
	report.Add(okLine)
}

func (r *Resolver) fail(report *domain.Report, action, id string, err error) {
	execErr := &domain.ExecutionError{Action: action, Target: id, Err: err}
	r.logger.Error("Command failed", zap.String("action", action), zap.String("id", id), zap.Error(err))
	report.Fail(action, id, execErr)
	report.Add(execErr.Error())
}
