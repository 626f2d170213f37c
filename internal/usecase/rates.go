package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/vitos/signal_copier/internal/domain"
)

// RateProvider converts currencies with fixed configured rates first and a
// broker cross quote as fallback.
type RateProvider struct {
	reference string
	fixed     map[string]float64
	broker    domain.Broker
}

// NewRateProvider takes rates expressed as units of reference per unit of the
// keyed currency. broker may be nil.
func NewRateProvider(reference string, fixed map[string]float64, broker domain.Broker) *RateProvider {
	rates := make(map[string]float64, len(fixed))
	for k, v := range fixed {
		rates[strings.ToUpper(k)] = v
	}
	return &RateProvider{reference: strings.ToUpper(reference), fixed: rates, broker: broker}
}

func (r *RateProvider) Rate(ctx context.Context, from, to string) (float64, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to || from == "" {
		return 1, nil
	}
	if to == r.reference {
		if v, ok := r.fixed[from]; ok && v > 0 {
			return v, nil
		}
	}
	if from == r.reference {
		if v, ok := r.fixed[to]; ok && v > 0 {
			return 1 / v, nil
		}
	}
	if r.broker == nil {
		return 0, fmt.Errorf("no rate for %s/%s", from, to)
	}

	if q, err := r.broker.GetSymbolPrice(ctx, from+to); err == nil && q.Bid > 0 {
		return q.Bid, nil
	}
	q, err := r.broker.GetSymbolPrice(ctx, to+from)
	if err != nil {
		return 0, fmt.Errorf("no rate for %s/%s: %w", from, to, err)
	}
	if q.Ask <= 0 {
		return 0, fmt.Errorf("no rate for %s/%s: empty quote", from, to)
	}
	return 1 / q.Ask, nil
}
