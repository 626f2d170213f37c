package usecase

import (
	"sort"
	"strings"

	"github.com/vitos/signal_copier/internal/config"
	"github.com/vitos/signal_copier/internal/domain"
)

var symbolCleaner = strings.NewReplacer("/", "", "#", "", "🔒", "", "🔐", "")

// NormalizeSymbol turns a signal token into a canonical symbol.
func NormalizeSymbol(token string) string {
	s := strings.ToUpper(strings.TrimSpace(symbolCleaner.Replace(token)))
	s = strings.Trim(s, ":,.;!")
	if alias, ok := domain.SymbolAliases[s]; ok {
		return alias
	}
	return s
}

// isNoiseToken reports parenthesised annotations such as "(swing)".
func isNoiseToken(tok string) bool {
	return strings.HasPrefix(tok, "(") || strings.HasSuffix(tok, ")")
}

// SymbolMapper applies per-broker symbol suffixes and balance rules.
type SymbolMapper struct {
	profiles []config.BrokerProfile
	suffixes []string
}

func NewSymbolMapper(profiles []config.BrokerProfile) *SymbolMapper {
	seen := make(map[string]bool)
	var suffixes []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			suffixes = append(suffixes, s)
		}
	}
	for _, p := range profiles {
		add(p.Suffix)
		add(p.IndexSuffix)
		add(p.ForexSuffix)
		if p.Suffix != "" {
			add(p.Suffix + p.IndexSuffix)
			add(p.Suffix + p.ForexSuffix)
		}
	}
	sort.Slice(suffixes, func(i, j int) bool { return len(suffixes[i]) > len(suffixes[j]) })
	return &SymbolMapper{profiles: profiles, suffixes: suffixes}
}

func (m *SymbolMapper) profile(acct *domain.AccountInformation) (config.BrokerProfile, bool) {
	if acct == nil {
		return config.BrokerProfile{}, false
	}
	for _, p := range m.profiles {
		if p.Broker == "" && p.Server == "" {
			continue
		}
		if p.Broker != "" && p.Broker != acct.Broker {
			continue
		}
		if p.Server != "" && p.Server != acct.Server {
			continue
		}
		return p, true
	}
	return config.BrokerProfile{}, false
}

// BrokerSymbol returns the name the account's broker lists the symbol under.
func (m *SymbolMapper) BrokerSymbol(acct *domain.AccountInformation, symbol string) string {
	p, ok := m.profile(acct)
	if !ok {
		return symbol
	}
	s := symbol + p.Suffix
	switch domain.Classify(symbol) {
	case domain.ClassIndex, domain.ClassCrypto:
		s += p.IndexSuffix
	case domain.ClassForex:
		s += p.ForexSuffix
	}
	return s
}

// Balance returns the balance used for sizing. Challenge accounts only expose
// a percentage of the reported balance.
func (m *SymbolMapper) Balance(acct *domain.AccountInformation) float64 {
	p, ok := m.profile(acct)
	if !ok || p.BalancePercent <= 0 {
		return acct.Balance
	}
	return acct.Balance * p.BalancePercent / 100
}

// Canonical strips a known broker suffix from a position symbol when what is
// left is a listed instrument.
func (m *SymbolMapper) Canonical(symbol string) string {
	s := strings.ToUpper(symbol)
	for _, suffix := range m.suffixes {
		trimmed := strings.TrimSuffix(s, strings.ToUpper(suffix))
		if trimmed != s && trimmed != "" && domain.Classify(trimmed) != domain.ClassUnknown {
			return trimmed
		}
	}
	return s
}
