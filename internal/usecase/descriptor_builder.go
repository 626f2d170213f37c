package usecase

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/vitos/signal_copier/internal/domain"
)

var (
	errMissing   = errors.New("missing")
	errSeparator = errors.New("separator not found")

	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
	rangePattern  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[-–]\s*(\d+(?:\.\d+)?)`)
	levelPrefix   = regexp.MustCompile(`(?i)^\s*(sl|stop\s*loss|tp\d*|take\s*profit\d*)\b\s*[:@=\-]?\s*`)
)

// signalHeader is the parsed first line of an entry signal.
type signalHeader struct {
	orderKeyword
	line   string
	tokens []string
}

// shapeMatcher pairs a structural predicate with the extractor for one signal
// layout.
type shapeMatcher struct {
	name    string
	match   func(h signalHeader, lines []string) bool
	extract func(p *SignalParser, h signalHeader, lines []string) (*domain.TradeDescriptor, error)
}

// Evaluated in order; the first matching shape consumes the message. ACHAT
// and VENTE always use the tiered layout whatever the later lines hold.
var shapeMatchers = []shapeMatcher{
	{"tiered", matchTiered, (*SignalParser).extractTiered},
	{"ladder", matchLadder, (*SignalParser).extractLadder},
	{"arrow", matchArrow, (*SignalParser).extractArrow},
	{"at", matchAt, (*SignalParser).extractAt},
	{"layer", matchLayer, (*SignalParser).extractLayer},
	{"standard", matchStandard, (*SignalParser).extractStandard},
}

// BuildDescriptor extracts a trade descriptor from entry-shaped lines. The
// result is either complete and valid or nil with a *domain.ParseError.
func (p *SignalParser) BuildDescriptor(lines []string) (*domain.TradeDescriptor, error) {
	raw := strings.Join(lines, "\n")
	if len(lines) < minEntryLines {
		return nil, unrecognized(raw)
	}
	kw, ok := detectOrderType(lines[0])
	if !ok {
		return nil, unrecognized(raw)
	}
	h := signalHeader{orderKeyword: kw, line: lines[0], tokens: strings.Fields(lines[0])}

	for _, m := range shapeMatchers {
		if !m.match(h, lines) {
			continue
		}
		d, err := m.extract(p, h, lines)
		if err != nil {
			return nil, withRaw(err, raw)
		}
		d.Shape = m.name
		d.Direction = kw.direction
		d.Raw = raw

		risk, found, err := parseRisk(lines)
		if err != nil {
			return nil, withRaw(err, raw)
		}
		if !found {
			risk = p.risk.DefaultFactor
		}
		d.RiskFactor = risk

		if err := d.Validate(); err != nil {
			return nil, malformed("descriptor", raw, err)
		}
		return d, nil
	}
	return nil, unrecognized(raw)
}

func withRaw(err error, raw string) error {
	var pe *domain.ParseError
	if errors.As(err, &pe) && pe.Raw == "" {
		pe.Raw = raw
		return pe
	}
	return malformed("signal", raw, err)
}

// --- predicates ---

func matchLadder(h signalHeader, lines []string) bool {
	if h.kind != domain.OrderLimit {
		return false
	}
	_, _, ok := ladderRange(lines)
	return ok
}

func matchArrow(h signalHeader, _ []string) bool {
	return strings.Contains(h.line, "🔽") || strings.Contains(h.line, "🔼")
}

func matchAt(_ signalHeader, lines []string) bool {
	return len(lines) > 3 && strings.Contains(strings.ToLower(lines[3]), "tp @")
}

func matchLayer(_ signalHeader, lines []string) bool {
	return len(lines) >= 8 && strings.Contains(strings.ToLower(lines[7]), "slowly-layer")
}

func matchTiered(h signalHeader, _ []string) bool {
	return h.tiered
}

func matchStandard(_ signalHeader, lines []string) bool {
	return len(lines) > 1 && strings.HasPrefix(strings.ToUpper(strings.TrimSpace(lines[1])), "ENTRY")
}

// --- extractors ---

func (p *SignalParser) extractLadder(h signalHeader, lines []string) (*domain.TradeDescriptor, error) {
	low, high, _ := ladderRange(lines)
	if low > high {
		low, high = high, low
	}
	if low == high {
		return nil, malformed("entry range", "", errors.New("range is empty"))
	}
	symbol, err := headerSymbol(h)
	if err != nil {
		return nil, err
	}
	stop, targets, err := levels(lines[1:])
	if err != nil {
		return nil, err
	}
	if stop == 0 {
		return nil, malformed("stop loss", "", errMissing)
	}
	if len(targets) == 0 {
		return nil, malformed("take profit", "", errMissing)
	}

	entries := ladderRungs(low, high, p.ladder.Rungs, h.direction)
	tiers := p.ladderTiers(symbol, low, targets, h.direction)
	tps := make([]float64, len(tiers))
	for i, t := range tiers {
		tps[i] = t.Target
	}

	return &domain.TradeDescriptor{
		Kind:        domain.OrderLimitLadder,
		Symbol:      symbol,
		Entry:       entries,
		StopLoss:    stop,
		TakeProfits: tps,
		Tiers:       tiers,
	}, nil
}

func (p *SignalParser) extractArrow(h signalHeader, lines []string) (*domain.TradeDescriptor, error) {
	if len(lines) < 5 {
		return nil, malformed("lines", "", fmt.Errorf("arrow signal needs 5 lines, got %d", len(lines)))
	}
	symbol := NormalizeSymbol(dropDecoration(h.tokens[0]))
	if symbol == "" {
		return nil, malformed("symbol", "", errMissing)
	}
	entry, err := parseNumber(h.tokens[len(h.tokens)-1])
	if err != nil {
		return nil, malformed("entry", "", err)
	}
	tp1, err := valueAfter(lines[2], ":")
	if err != nil {
		return nil, malformed("take profit", "", err)
	}
	tps := []float64{tp1}
	slLine := 4
	if strings.Contains(strings.ToLower(lines[3]), "tp") {
		tp2, err := valueAfter(lines[3], ":")
		if err != nil {
			return nil, malformed("take profit 2", "", err)
		}
		tps = append(tps, tp2)
		slLine = 5
	}
	if len(lines) <= slLine {
		return nil, malformed("stop loss", "", errMissing)
	}
	sl, err := valueAfter(lines[slLine], ":")
	if err != nil {
		return nil, malformed("stop loss", "", err)
	}
	return &domain.TradeDescriptor{
		Kind:        h.kind,
		Symbol:      symbol,
		Entry:       []float64{entry},
		StopLoss:    sl,
		TakeProfits: tps,
	}, nil
}

func (p *SignalParser) extractAt(h signalHeader, lines []string) (*domain.TradeDescriptor, error) {
	var symTok string
	switch {
	case h.kind == domain.OrderLimit && strings.Contains(strings.ToLower(h.line), " for ") && len(h.tokens) > 3:
		symTok = h.tokens[3]
	case h.kind == domain.OrderLimit:
		symTok = h.tokens[0]
	case len(h.tokens) > 1:
		symTok = h.tokens[1]
	default:
		return nil, malformed("symbol", "", errMissing)
	}
	symbol := NormalizeSymbol(symTok)

	var entry []float64
	v, err := parseNumber(h.tokens[len(h.tokens)-1])
	switch {
	case err == nil:
		entry = []float64{v}
	case h.kind != domain.OrderMarket:
		return nil, malformed("entry", "", err)
	}

	sl, err := valueAfter(lines[2], "@")
	if err != nil {
		return nil, malformed("stop loss", "", err)
	}
	tp1, err := valueAfter(lines[3], "@")
	if err != nil {
		return nil, malformed("take profit", "", err)
	}
	tps := []float64{tp1}
	if len(lines) > 4 && strings.Contains(strings.ToLower(lines[4]), "tp2") {
		tp2, err := valueAfter(lines[4], "@")
		if err != nil {
			return nil, malformed("take profit 2", "", err)
		}
		tps = append(tps, tp2)
	}
	return &domain.TradeDescriptor{
		Kind:        h.kind,
		Symbol:      symbol,
		Entry:       entry,
		StopLoss:    sl,
		TakeProfits: tps,
	}, nil
}

func (p *SignalParser) extractLayer(h signalHeader, lines []string) (*domain.TradeDescriptor, error) {
	if len(h.tokens) < 2 {
		return nil, malformed("symbol", "", errMissing)
	}
	symbol := NormalizeSymbol(h.tokens[1])
	parts := strings.SplitN(h.line, "-", 3)
	if len(parts) < 2 {
		return nil, malformed("entry", "", errSeparator)
	}
	fields := strings.Fields(parts[1])
	if len(fields) == 0 {
		return nil, malformed("entry", "", errMissing)
	}
	entry, err := parseNumber(fields[0])
	if err != nil {
		return nil, malformed("entry", "", err)
	}
	sl, err := valueAfter(lines[2], ":")
	if err != nil {
		return nil, malformed("stop loss", "", err)
	}
	tp1, err := valueAfter(lines[4], ":")
	if err != nil {
		return nil, malformed("take profit", "", err)
	}
	tp2, err := valueAfter(lines[5], ":")
	if err != nil {
		return nil, malformed("take profit 2", "", err)
	}
	return &domain.TradeDescriptor{
		Kind:        h.kind,
		Symbol:      symbol,
		Entry:       []float64{entry},
		StopLoss:    sl,
		TakeProfits: []float64{tp1, tp2},
	}, nil
}

func (p *SignalParser) extractTiered(h signalHeader, lines []string) (*domain.TradeDescriptor, error) {
	n := len(h.tokens)
	symTok := h.tokens[n-1]
	if isNoiseToken(symTok) {
		if n < 2 {
			return nil, malformed("symbol", "", errMissing)
		}
		symTok = h.tokens[n-2]
	}
	symbol := NormalizeSymbol(symTok)

	sep := " : "
	if !strings.Contains(lines[2], sep) {
		sep = ":"
	}
	parts := strings.Split(lines[2], sep)
	compact := strings.ReplaceAll(parts[len(parts)-1], " ", "")
	entry, err := parseNumber(strings.Split(compact, "-")[0])
	if err != nil {
		return nil, malformed("entry", "", err)
	}

	sign := decimal.NewFromFloat(h.direction.Sign())
	base := decimal.NewFromFloat(entry)
	tps := make([]float64, len(p.tiered.TargetOffsets))
	for i, off := range p.tiered.TargetOffsets {
		tps[i] = base.Add(sign.Mul(decimal.NewFromFloat(off))).InexactFloat64()
	}

	return &domain.TradeDescriptor{
		Kind:        domain.OrderMarket,
		Symbol:      symbol,
		Entry:       []float64{entry},
		StopLoss:    0,
		TakeProfits: tps,
		Tiered:      true,
	}, nil
}

func (p *SignalParser) extractStandard(h signalHeader, lines []string) (*domain.TradeDescriptor, error) {
	symbol, err := headerSymbol(h)
	if err != nil {
		return nil, err
	}

	entryLine := strings.TrimSpace(lines[1])
	rest := strings.TrimLeft(strings.TrimSpace(entryLine[len("ENTRY"):]), ":@= ")
	var entry []float64
	if f := strings.Fields(rest); len(f) == 0 || strings.EqualFold(f[0], "NOW") {
		if h.kind != domain.OrderMarket {
			return nil, malformed("entry", "", fmt.Errorf("%s order needs an entry price", h.kind))
		}
	} else {
		v, err := parseNumber(f[0])
		if err != nil {
			return nil, malformed("entry", "", err)
		}
		entry = []float64{v}
	}

	stop, targets, err := levels(lines[2:])
	if err != nil {
		return nil, err
	}
	if stop == 0 {
		return nil, malformed("stop loss", "", errMissing)
	}
	if len(targets) == 0 {
		return nil, malformed("take profit", "", errMissing)
	}
	return &domain.TradeDescriptor{
		Kind:        h.kind,
		Symbol:      symbol,
		Entry:       entry,
		StopLoss:    stop,
		TakeProfits: targets,
	}, nil
}

// --- ladder helpers ---

func ladderRange(lines []string) (low, high float64, ok bool) {
	for _, l := range lines[1:] {
		u := strings.ToUpper(strings.TrimSpace(l))
		if !strings.HasPrefix(u, "ENTRY") && !strings.HasPrefix(u, "ZONE") {
			continue
		}
		m := rangePattern.FindStringSubmatch(l)
		if m == nil {
			continue
		}
		a, errA := strconv.ParseFloat(m[1], 64)
		b, errB := strconv.ParseFloat(m[2], 64)
		if errA != nil || errB != nil {
			continue
		}
		return a, b, true
	}
	return 0, 0, false
}

// ladderRungs spaces n entries evenly across [low, high], nearest-to-market
// first: descending for buys, ascending for sells.
func ladderRungs(low, high float64, n int, dir domain.Direction) []float64 {
	lo := decimal.NewFromFloat(low)
	hi := decimal.NewFromFloat(high)
	step := hi.Sub(lo).Div(decimal.NewFromInt(int64(n - 1)))

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v := lo.Add(step.Mul(decimal.NewFromInt(int64(i))))
		if i == n-1 {
			v = hi
		}
		out[i] = v.InexactFloat64()
	}
	if dir == domain.DirectionBuy {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

// ladderTiers assigns one target per tier. Tiers without a given target reuse
// the last one, except the final tier which is padded further in the trade
// direction.
func (p *SignalParser) ladderTiers(symbol string, ref float64, targets []float64, dir domain.Direction) []domain.LadderTier {
	split := p.ladder.TierSplit
	last := targets[len(targets)-1]
	pad := decimal.NewFromFloat(p.ladder.FinalTierPadPips).
		Mul(decimal.NewFromFloat(domain.TickMultiplier(symbol, ref))).
		Mul(decimal.NewFromFloat(dir.Sign()))

	tiers := make([]domain.LadderTier, len(split))
	for k, n := range split {
		var target float64
		switch {
		case k < len(targets):
			target = targets[k]
		case k == len(split)-1:
			target = decimal.NewFromFloat(last).Add(pad).InexactFloat64()
		default:
			target = last
		}
		tiers[k] = domain.LadderTier{Rungs: n, Target: target}
	}
	return tiers
}

// --- token helpers ---

var headerSkipWords = map[string]bool{
	"buy": true, "sell": true, "limit": true, "stop": true, "now": true,
	"achat": true, "vente": true, "at": true, "for": true, "@": true,
}

// headerSymbol returns the first token of the header that can be a symbol.
func headerSymbol(h signalHeader) (string, error) {
	for _, tok := range h.tokens {
		if isNoiseToken(tok) || headerSkipWords[strings.ToLower(tok)] || !hasLetter(tok) {
			continue
		}
		if s := NormalizeSymbol(tok); s != "" {
			return s, nil
		}
	}
	return "", malformed("symbol", "", errMissing)
}

// dropDecoration removes a leading non-letter rune such as "#" or an emoji.
func dropDecoration(tok string) string {
	r, size := utf8.DecodeRuneInString(tok)
	if r == utf8.RuneError || unicode.IsLetter(r) {
		return tok
	}
	return tok[size:]
}

func parseNumber(s string) (float64, error) {
	s = strings.Trim(strings.TrimSpace(symbolCleaner.Replace(s)), ":@,;!")
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return strconv.ParseFloat(s, 64)
}

// valueAfter parses the number following the last sep of a line, ignoring
// spaces.
func valueAfter(line, sep string) (float64, error) {
	parts := strings.Split(strings.ReplaceAll(line, " ", ""), sep)
	if len(parts) < 2 {
		return 0, errSeparator
	}
	return parseNumber(parts[len(parts)-1])
}

// levels reads SL and TP lines in any order.
func levels(lines []string) (stop float64, targets []float64, err error) {
	for _, l := range lines {
		loc := levelPrefix.FindStringSubmatchIndex(l)
		if loc == nil {
			continue
		}
		keyword := strings.ToUpper(l[loc[2]:loc[3]])
		num := numberPattern.FindString(l[loc[1]:])
		isStop := strings.HasPrefix(keyword, "S")
		if num == "" {
			field := "take profit"
			if isStop {
				field = "stop loss"
			}
			return 0, nil, malformed(field, "", errMissing)
		}
		v, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, nil, malformed("level", "", err)
		}
		if isStop {
			stop = v
		} else {
			targets = append(targets, v)
		}
	}
	return stop, targets, nil
}

// parseRisk reads an optional "RISK 0.02" or "RISK 2%" line.
func parseRisk(lines []string) (float64, bool, error) {
	for _, l := range lines {
		u := strings.ToUpper(strings.TrimSpace(l))
		if !strings.HasPrefix(u, "RISK") {
			continue
		}
		num := numberPattern.FindString(u)
		if num == "" {
			return 0, false, malformed("risk", "", errMissing)
		}
		v, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, false, malformed("risk", "", err)
		}
		if strings.Contains(u, "%") || v > 1 {
			v /= 100
		}
		if v <= 0 || v > 1 {
			return 0, false, malformed("risk", "", fmt.Errorf("%v out of (0,1]", v))
		}
		return v, true, nil
	}
	return 0, false, nil
}
