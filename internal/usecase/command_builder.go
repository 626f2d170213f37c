package usecase

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/vitos/signal_copier/internal/domain"
)

// commandText is a tokenized control message. Builders mark the tokens they
// consume; the rest feed the target selector.
type commandText struct {
	upper  string
	tokens []string // upper-cased
	orig   []string
	used   []bool
}

func newCommandText(lines []string) *commandText {
	joined := strings.Join(lines, " ")
	orig := tokenize(joined)
	tokens := make([]string, len(orig))
	for i, t := range orig {
		tokens[i] = strings.ToUpper(t)
	}
	return &commandText{
		upper:  strings.ToUpper(joined),
		tokens: tokens,
		orig:   orig,
		used:   make([]bool, len(orig)),
	}
}

func (t *commandText) index(words ...string) int {
	for i, tok := range t.tokens {
		for _, w := range words {
			if tok == w {
				return i
			}
		}
	}
	return -1
}

func (t *commandText) has(words ...string) bool {
	return t.index(words...) >= 0
}

// numberAfter returns the number token right after position i.
func (t *commandText) numberAfter(i int) (float64, int, bool) {
	j := i + 1
	if i < 0 || j >= len(t.tokens) {
		return 0, -1, false
	}
	v, err := parseNumber(strings.TrimSuffix(t.tokens[j], "%"))
	if err != nil {
		return 0, -1, false
	}
	return v, j, true
}

func (t *commandText) consume(idx ...int) {
	for _, i := range idx {
		if i >= 0 && i < len(t.used) {
			t.used[i] = true
		}
	}
}

// commandMatcher is one rule of the control cascade. build returns the
// command kind and fields; the selector is derived afterwards.
type commandMatcher struct {
	name  string
	match func(t *commandText) bool
	build func(p *SignalParser, t *commandText, replyTo int64) (*domain.ControlCommand, error)
}

var commandMatchers = []commandMatcher{
	{"move-stop", matchMoveStop, (*SignalParser).buildMoveStop},
	{"stop-and-target", matchStopAndTarget, (*SignalParser).buildStopAndTarget},
	{"stop", matchStop, (*SignalParser).buildStop},
	{"target", matchTarget, (*SignalParser).buildTarget},
	{"breakeven", matchBreakeven, (*SignalParser).buildBreakeven},
	{"partial", matchPartial, (*SignalParser).buildPartial},
	{"secure", matchSecure, (*SignalParser).buildSecure},
	{"take-profit-hit", matchTargetHit, (*SignalParser).buildTargetHit},
	{"close", matchClose, (*SignalParser).buildClose},
}

// BuildCommand extracts a control command and its target selector from
// control-shaped lines. replyTo is the id of the message being replied to,
// 0 when none.
func (p *SignalParser) BuildCommand(lines []string, replyTo int64) (*domain.ControlCommand, error) {
	raw := strings.Join(lines, "\n")
	t := newCommandText(lines)
	for _, m := range commandMatchers {
		if !m.match(t) {
			continue
		}
		cmd, err := m.build(p, t, replyTo)
		if err != nil {
			return nil, withRaw(err, raw)
		}
		if cmd.Selector.Kind == "" {
			cmd.Selector = selectorFrom(t, replyTo, domain.NoLeg)
		}
		cmd.Raw = raw
		if err := cmd.Validate(); err != nil {
			return nil, malformed("command", raw, err)
		}
		return cmd, nil
	}
	return nil, unrecognized(raw)
}

// --- cascade rules ---

func matchMoveStop(t *commandText) bool {
	return strings.Contains(t.upper, "METTRE LE SL")
}

// buildMoveStop reads the level after "METTRE LE SL". A level written with a
// thousands space ("19 500") spans two groups; a second group is only joined
// when it is exactly three digits, so a trailing position id stays separate.
func (p *SignalParser) buildMoveStop(t *commandText, replyTo int64) (*domain.ControlCommand, error) {
	start := -1
	for i := 2; i < len(t.tokens); i++ {
		if t.tokens[i] == "SL" && t.tokens[i-1] == "LE" && t.tokens[i-2] == "METTRE" {
			t.consume(i-2, i-1, i)
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil, malformed("stop loss", "", errMissing)
	}
	first := -1
	for i := start; i < len(t.tokens); i++ {
		if _, err := parseNumber(t.tokens[i]); err == nil {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, malformed("stop loss", "", errMissing)
	}
	digits := t.tokens[first]
	t.consume(first)
	if next := first + 1; next < len(t.tokens) && isThousandsGroup(digits, t.tokens[next]) {
		digits += t.tokens[next]
		t.consume(next)
	}
	level, err := parseNumber(digits)
	if err != nil {
		return nil, malformed("stop loss", "", err)
	}
	return &domain.ControlCommand{Kind: domain.CmdSetStop, Stop: level}, nil
}

// isThousandsGroup reports whether group continues head as in "1 920".
func isThousandsGroup(head, group string) bool {
	if len(head) > 3 || len(group) != 3 || !isInteger(head) {
		return false
	}
	return isInteger(group)
}

func matchStopAndTarget(t *commandText) bool {
	_, _, okSL := t.numberAfter(t.index("SL"))
	_, _, okTP := t.numberAfter(t.index("TP"))
	return okSL && okTP
}

func (p *SignalParser) buildStopAndTarget(t *commandText, _ int64) (*domain.ControlCommand, error) {
	i := t.index("SL")
	stop, si, _ := t.numberAfter(i)
	j := t.index("TP")
	target, ti, _ := t.numberAfter(j)
	t.consume(i, si, j, ti)
	return &domain.ControlCommand{Kind: domain.CmdSetStopAndTarget, Stop: stop, Target: target}, nil
}

func matchStop(t *commandText) bool {
	_, _, ok := t.numberAfter(t.index("SL"))
	return ok
}

func (p *SignalParser) buildStop(t *commandText, _ int64) (*domain.ControlCommand, error) {
	i := t.index("SL")
	stop, si, _ := t.numberAfter(i)
	t.consume(i, si)
	return &domain.ControlCommand{Kind: domain.CmdSetStop, Stop: stop}, nil
}

// matchTarget accepts "TP <price>" but not "TP 2", which names a leg.
func matchTarget(t *commandText) bool {
	v, j, ok := t.numberAfter(t.index("TP"))
	return ok && !isLegNumber(t.tokens[j], v)
}

func (p *SignalParser) buildTarget(t *commandText, _ int64) (*domain.ControlCommand, error) {
	i := t.index("TP")
	target, ti, _ := t.numberAfter(i)
	t.consume(i, ti)
	return &domain.ControlCommand{Kind: domain.CmdSetTarget, Target: target}, nil
}

func matchBreakeven(t *commandText) bool {
	return t.has("BE", "BREAKEVEN")
}

func (p *SignalParser) buildBreakeven(t *commandText, _ int64) (*domain.ControlCommand, error) {
	t.consume(t.index("BE", "BREAKEVEN"))
	return &domain.ControlCommand{Kind: domain.CmdBreakeven}, nil
}

func matchPartial(t *commandText) bool {
	if t.has("SECURE") {
		return false
	}
	return t.has("PARTIEL", "PARTIAL") || (len(t.tokens) > 0 && percentToken.MatchString(t.tokens[0]))
}

func (p *SignalParser) buildPartial(t *commandText, _ int64) (*domain.ControlCommand, error) {
	var percent float64
	if i := t.index("PARTIEL", "PARTIAL"); i >= 0 {
		v, j, ok := t.numberAfter(i)
		if !ok {
			return nil, malformed("percent", "", errMissing)
		}
		percent = v
		t.consume(i, j)
	} else {
		v, err := parseNumber(strings.TrimSuffix(t.tokens[0], "%"))
		if err != nil {
			return nil, malformed("percent", "", err)
		}
		percent = v
		t.consume(0)
	}
	if percent <= 0 || percent > 100 {
		return nil, malformed("percent", "", fmt.Errorf("%v out of (0,100]", percent))
	}
	return &domain.ControlCommand{Kind: domain.CmdPartialClose, Percent: percent}, nil
}

func matchSecure(t *commandText) bool {
	return t.has("SECURE")
}

// buildSecure closes resolver.secure_percent of the first leg. The other legs
// are left alone; only a first target hit moves them to breakeven.
func (p *SignalParser) buildSecure(t *commandText, replyTo int64) (*domain.ControlCommand, error) {
	t.consume(t.index("SECURE"), t.index("PARTIALS", "PARTIAL"))
	cmd := &domain.ControlCommand{
		Kind:    domain.CmdPartialClose,
		Percent: p.resolver.SecurePercent,
	}
	cmd.Selector = selectorFrom(t, replyTo, 0)
	return cmd, nil
}

func matchTargetHit(t *commandText) bool {
	if t.has("TP1", "TP2", "TP3") || strings.Contains(t.upper, "PRENEZ LE TP") {
		return true
	}
	v, j, ok := t.numberAfter(t.index("TP"))
	return ok && isLegNumber(t.tokens[j], v)
}

func (p *SignalParser) buildTargetHit(t *commandText, replyTo int64) (*domain.ControlCommand, error) {
	leg := -1
	for i, tok := range t.tokens {
		switch tok {
		case "TP1", "TP2", "TP3":
			leg = int(tok[2] - '1')
			t.consume(i)
		case "PRENEZ", "LE":
			t.consume(i)
		case "TP":
			if v, j, ok := t.numberAfter(i); ok && isLegNumber(t.tokens[j], v) {
				leg = int(v) - 1
				t.consume(i, j)
			}
		}
		if leg >= 0 {
			break
		}
	}
	if leg < 0 {
		return nil, malformed("take profit leg", "", errMissing)
	}
	cmd := &domain.ControlCommand{Kind: domain.CmdClose, FirstTarget: leg == 0}
	cmd.Selector = selectorFrom(t, replyTo, leg)
	return cmd, nil
}

func matchClose(t *commandText) bool {
	return t.has("CLOSE", "CLOTURE", "FERMEZ")
}

func (p *SignalParser) buildClose(t *commandText, replyTo int64) (*domain.ControlCommand, error) {
	leg := domain.NoLeg
	if t.has("FERMEZ") {
		leg = 2
	}
	t.consume(t.index("CLOSE", "CLOTURE", "FERMEZ"))
	cmd := &domain.ControlCommand{Kind: domain.CmdClose}
	cmd.Selector = selectorFrom(t, replyTo, leg)
	return cmd, nil
}

func isLegNumber(tok string, v float64) bool {
	return !strings.Contains(tok, ".") && v >= 1 && v <= 3
}

// --- selector ---

var selectorNoise = map[string]bool{
	"LE": true, "LA": true, "LES": true, "THE": true, "ALL": true, "TOUT": true, "TOUTES": true,
	"POSITION": true, "POSITIONS": true, "TRADE": true, "TRADES": true, "NOW": true,
	"A": true, "À": true, "AU": true, "DE": true, "DU": true, "ET": true, "AND": true,
	"PIPS": true, "PARTIALS": true, "HIT": true, "TO": true, "ON": true, "EN": true,
	"SL": true, "TP": true, "MOVE": true,
}

// selectorFrom derives the target from unconsumed tokens: a trailing integer
// is a position id; BUY/SELL and a symbol narrow live positions; otherwise a
// reply addresses the origin message and a plain message addresses every
// open position. Without a reply any leftover word with a letter is the
// symbol; on a reply only listed instruments are.
func selectorFrom(t *commandText, replyTo int64, leg int) domain.TargetSelector {
	var (
		id        string
		symbol    string
		orderType domain.Direction
	)
	last := -1
	for i := len(t.tokens) - 1; i >= 0; i-- {
		if !t.used[i] && !selectorNoise[t.tokens[i]] && hasAlnum(t.tokens[i]) {
			last = i
			break
		}
	}
	if last >= 0 && isInteger(t.tokens[last]) {
		id = t.tokens[last]
		t.consume(last)
	}

	for i, tok := range t.tokens {
		if t.used[i] || selectorNoise[tok] || isNoiseToken(tok) {
			continue
		}
		switch tok {
		case "BUY", "ACHAT":
			orderType = domain.DirectionBuy
			continue
		case "SELL", "VENTE":
			orderType = domain.DirectionSell
			continue
		}
		if symbol != "" || !hasLetter(tok) {
			continue
		}
		s := NormalizeSymbol(t.orig[i])
		if domain.Classify(s) != domain.ClassUnknown || replyTo == 0 {
			symbol = s
		}
	}

	switch {
	case id != "":
		sel := domain.ByID(id)
		sel.OriginMessageID = replyTo
		return sel
	case symbol != "" || orderType != "":
		return domain.BySymbolAndType(symbol, orderType)
	case replyTo != 0:
		return domain.ByReply(replyTo, leg)
	default:
		return domain.BySymbolAndType("", "")
	}
}

func isInteger(s string) bool {
	_, err := strconv.ParseUint(s, 10, 64)
	return err == nil
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func hasAlnum(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
