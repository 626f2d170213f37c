package usecase

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/vitos/signal_copier/internal/config"
	"github.com/vitos/signal_copier/internal/domain"
)

// AccountSnapshot is the account data sizing depends on.
type AccountSnapshot struct {
	Balance  float64
	Currency string
	// ReferenceRate converts one unit of Currency into the reference
	// currency the risk formula is expressed in. Zero means 1.
	ReferenceRate float64
}

// Sizing holds the computed lot sizes and the pip diagnostics shown to the
// user.
type Sizing struct {
	Multiplier      float64
	PositionSize    []float64
	StopLossPips    []int // one per entry
	TakeProfitPips  []int
	PotentialLoss   float64
	PotentialProfit []float64
	TotalProfit     float64
}

// TotalSize sums the sizes of all legs.
func (s *Sizing) TotalSize() float64 {
	total := decimal.Zero
	for _, v := range s.PositionSize {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.InexactFloat64()
}

type RiskCalculator struct {
	tiered config.TieredConfig
}

func NewRiskCalculator(tiered config.TieredConfig) *RiskCalculator {
	return &RiskCalculator{tiered: tiered}
}

// PipDistance is the non-negative distance between two prices in pips.
func PipDistance(a, b, multiplier float64) int {
	return int(math.Abs(math.Round((a - b) / multiplier)))
}

// RiskLots sizes a position so that a stop-out loses balance*risk, truncated
// to two decimals.
func RiskLots(balance, risk float64, stopLossPips int) float64 {
	if stopLossPips <= 0 {
		return 0
	}
	v := decimal.NewFromFloat(balance).
		Mul(decimal.NewFromFloat(risk)).
		Div(decimal.NewFromInt(int64(stopLossPips))).
		Div(decimal.NewFromInt(10))
	return v.Truncate(2).InexactFloat64()
}

// PartialVolume is the volume closed by a partial close, rounded to two
// decimals and never above the position volume.
func PartialVolume(percent, volume float64) float64 {
	v := decimal.NewFromFloat(percent).
		Div(decimal.NewFromInt(100)).
		Mul(decimal.NewFromFloat(volume)).
		Round(2)
	if limit := decimal.NewFromFloat(volume); v.GreaterThan(limit) {
		v = limit
	}
	return v.InexactFloat64()
}

// LegVolume splits a size evenly over n legs, floored to the 0.01 lot step.
func LegVolume(size float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	return decimal.NewFromFloat(size).Div(decimal.NewFromInt(int64(n))).Truncate(2).InexactFloat64()
}

// TieredLots picks the fixed lot size for a balance from the currency table.
func (c *RiskCalculator) TieredLots(balance float64, currency string) float64 {
	table := c.tiered.Table(currency)
	for _, t := range table {
		if t.UpTo == 0 || balance < t.UpTo {
			return t.Lots
		}
	}
	if len(table) == 0 {
		return 0
	}
	return table[len(table)-1].Lots
}

// Size computes position sizes and writes them back into the descriptor.
// Market descriptors must already carry the quoted entry price.
func (c *RiskCalculator) Size(d *domain.TradeDescriptor, acct AccountSnapshot) (*Sizing, error) {
	entry := d.EntryPrice()
	if entry <= 0 {
		return nil, fmt.Errorf("size %s: entry price unknown", d.Symbol)
	}
	rate := acct.ReferenceRate
	if rate <= 0 {
		rate = 1
	}
	s := &Sizing{Multiplier: domain.TickMultiplier(d.Symbol, entry)}
	balance := acct.Balance * rate

	switch {
	case d.Tiered:
		s.PositionSize = []float64{c.TieredLots(acct.Balance, acct.Currency)}
		slPips := 0
		if d.StopLoss > 0 {
			slPips = PipDistance(d.StopLoss, entry, s.Multiplier)
		}
		s.StopLossPips = []int{slPips}

	case d.IsLadder():
		perRung := d.RiskFactor / float64(len(d.Entry))
		for _, e := range d.Entry {
			pips := PipDistance(d.StopLoss, e, s.Multiplier)
			if pips == 0 {
				return nil, domain.ErrZeroStopDistance
			}
			s.StopLossPips = append(s.StopLossPips, pips)
			s.PositionSize = append(s.PositionSize, RiskLots(balance, perRung, pips))
		}

	default:
		pips := PipDistance(d.StopLoss, entry, s.Multiplier)
		if pips == 0 {
			return nil, domain.ErrZeroStopDistance
		}
		s.StopLossPips = []int{pips}
		s.PositionSize = []float64{RiskLots(balance, d.RiskFactor, pips)}
	}

	for _, v := range s.PositionSize {
		if v <= 0 {
			return nil, domain.ErrZeroPositionSize
		}
	}

	loss := decimal.Zero
	for i, v := range s.PositionSize {
		loss = loss.Add(decimal.NewFromFloat(v).Mul(decimal.NewFromInt(10)).Mul(decimal.NewFromInt(int64(s.StopLossPips[i]))))
	}
	s.PotentialLoss = loss.Round(2).InexactFloat64()

	total := s.TotalSize()
	share := 1 / float64(len(d.TakeProfits))
	totalProfit := decimal.Zero
	for _, tp := range d.TakeProfits {
		pips := PipDistance(tp, entry, s.Multiplier)
		s.TakeProfitPips = append(s.TakeProfitPips, pips)
		profit := decimal.NewFromFloat(total * 10 * share * float64(pips)).Round(2)
		s.PotentialProfit = append(s.PotentialProfit, profit.InexactFloat64())
		totalProfit = totalProfit.Add(profit)
	}
	s.TotalProfit = totalProfit.InexactFloat64()

	d.PositionSize = s.PositionSize
	return s, nil
}

// FormatTradeInfo renders the trade information table sent to the chat.
func FormatTradeInfo(d *domain.TradeDescriptor, s *Sizing, balance float64, currency string) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "%s %s\t%s\n", d.Direction, d.Kind, d.Symbol)
	if d.IsLadder() {
		lo := math.Min(d.Entry[0], d.Entry[len(d.Entry)-1])
		hi := math.Max(d.Entry[0], d.Entry[len(d.Entry)-1])
		fmt.Fprintf(w, "Entry\t%v - %v (%d rungs)\n", lo, hi, len(d.Entry))
	} else {
		fmt.Fprintf(w, "Entry\t%v\n", d.EntryPrice())
	}
	fmt.Fprintf(w, "Stop Loss\t%d pips\n", s.StopLossPips[0])
	for i, p := range s.TakeProfitPips {
		fmt.Fprintf(w, "TP %d\t%d pips\n", i+1, p)
	}
	fmt.Fprintf(w, "Risk Factor\t%.0f %%\n", d.RiskFactor*100)
	if len(s.PositionSize) == 1 {
		fmt.Fprintf(w, "Position Size\t%.2f\n", s.PositionSize[0])
	} else {
		fmt.Fprintf(w, "Position Size\t%.2f (%d legs)\n", s.TotalSize(), len(s.PositionSize))
	}
	fmt.Fprintf(w, "Current Balance\t%.2f %s\n", balance, currency)
	fmt.Fprintf(w, "Potential Loss\t%.2f\n", s.PotentialLoss)
	for i, p := range s.PotentialProfit {
		fmt.Fprintf(w, "TP %d Profit\t%.2f\n", i+1, p)
	}
	fmt.Fprintf(w, "Total Profit\t%.2f\n", s.TotalProfit)
	w.Flush()
	return b.String()
}
