package usecase

import (
	"regexp"
	"strings"

	"github.com/vitos/signal_copier/internal/config"
	"github.com/vitos/signal_copier/internal/domain"
)

// MessageKind is the structural class of an inbound message.
type MessageKind string

const (
	KindEntry   MessageKind = "ENTRY"
	KindControl MessageKind = "CONTROL"
)

// Entry signals carry order type, entry and stop/target on separate lines.
const minEntryLines = 3

// Intent is the typed result of interpreting a message: exactly one of Trade
// or Command is set.
type Intent struct {
	Trade   *domain.TradeDescriptor
	Command *domain.ControlCommand
}

type orderKeyword struct {
	word      string
	kind      domain.OrderKind
	direction domain.Direction
	tiered    bool
}

// Checked in order, so the two-word forms win over "buy" / "sell".
var orderKeywords = []orderKeyword{
	{"buy limit", domain.OrderLimit, domain.DirectionBuy, false},
	{"sell limit", domain.OrderLimit, domain.DirectionSell, false},
	{"buy stop", domain.OrderStop, domain.DirectionBuy, false},
	{"sell stop", domain.OrderStop, domain.DirectionSell, false},
	{"buy", domain.OrderMarket, domain.DirectionBuy, false},
	{"achat", domain.OrderMarket, domain.DirectionBuy, true},
	{"sell", domain.OrderMarket, domain.DirectionSell, false},
	{"vente", domain.OrderMarket, domain.DirectionSell, true},
}

var controlKeywords = map[string]bool{
	"SL": true, "TP": true, "BE": true, "BREAKEVEN": true,
	"PARTIEL": true, "PARTIAL": true, "SECURE": true,
	"CLOSE": true, "CLOTURE": true, "FERMEZ": true, "PRENEZ": true,
	"TP1": true, "TP2": true, "TP3": true,
}

var percentToken = regexp.MustCompile(`^\d+(\.\d+)?%$`)

// SignalParser turns message text into trade descriptors and control commands.
// It holds no mutable state; parsing the same text twice gives equal results.
type SignalParser struct {
	risk     config.RiskConfig
	tiered   config.TieredConfig
	ladder   config.LadderConfig
	resolver config.ResolverConfig
}

func NewSignalParser(cfg *config.Config) *SignalParser {
	return &SignalParser{
		risk:     cfg.Risk,
		tiered:   cfg.Tiered,
		ladder:   cfg.Ladder,
		resolver: cfg.Resolver,
	}
}

// SplitLines splits text into right-trimmed, non-blank lines.
func SplitLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimRight(l, " \t\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// Classify decides between an entry signal and a control instruction from the
// message shape.
func (p *SignalParser) Classify(text string) (MessageKind, []string, error) {
	lines := SplitLines(text)
	if len(lines) == 0 {
		return "", nil, unrecognized(text)
	}
	if len(lines) >= minEntryLines {
		if _, ok := detectOrderType(lines[0]); !ok {
			return "", nil, unrecognized(text)
		}
		return KindEntry, lines, nil
	}
	if !hasControlKeyword(lines[0]) {
		return "", nil, unrecognized(text)
	}
	return KindControl, lines, nil
}

// Interpret classifies the message and runs the matching builder.
func (p *SignalParser) Interpret(msg domain.Message) (*Intent, error) {
	kind, lines, err := p.Classify(msg.Text)
	if err != nil {
		return nil, err
	}
	if kind == KindEntry {
		d, err := p.BuildDescriptor(lines)
		if err != nil {
			return nil, err
		}
		d.Raw = msg.Text
		return &Intent{Trade: d}, nil
	}
	cmd, err := p.BuildCommand(lines, msg.ReplyToID)
	if err != nil {
		return nil, err
	}
	cmd.Raw = msg.Text
	return &Intent{Command: cmd}, nil
}

func detectOrderType(line string) (orderKeyword, bool) {
	lower := strings.ToLower(line)
	for _, k := range orderKeywords {
		if strings.Contains(lower, k.word) {
			return k, true
		}
	}
	return orderKeyword{}, false
}

func hasControlKeyword(line string) bool {
	upper := strings.ToUpper(line)
	if strings.Contains(upper, "METTRE LE SL") {
		return true
	}
	for _, tok := range tokenize(upper) {
		if controlKeywords[tok] || percentToken.MatchString(tok) {
			return true
		}
	}
	return false
}

var tokenSeparators = strings.NewReplacer(":", " ", "=", " ", "@", " ", ",", " ")

// tokenize splits on whitespace and field separators.
func tokenize(s string) []string {
	fields := strings.Fields(tokenSeparators.Replace(s))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ";!")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func unrecognized(raw string) *domain.ParseError {
	return &domain.ParseError{Kind: domain.UnrecognizedShape, Raw: raw}
}

func malformed(field, raw string, err error) *domain.ParseError {
	return &domain.ParseError{Kind: domain.MalformedField, Field: field, Raw: raw, Err: err}
}
