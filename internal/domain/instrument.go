package domain

import "strings"

// InstrumentClass groups symbols that share a pip definition.
type InstrumentClass string

const (
	ClassForex   InstrumentClass = "FOREX"
	ClassGold    InstrumentClass = "GOLD"
	ClassSilver  InstrumentClass = "SILVER"
	ClassMetal   InstrumentClass = "METAL"
	ClassIndex   InstrumentClass = "INDEX"
	ClassCrypto  InstrumentClass = "CRYPTO"
	ClassEnergy  InstrumentClass = "ENERGY"
	ClassUnknown InstrumentClass = "UNKNOWN"
)

var (
	Energies = []string{"USOIL", "UKOIL", "USOUSD", "UKOUSD", "XNGUSD", "CL-OIL"}
	Metals   = []string{"XAUUSD", "XAUEUR", "XAUGBP", "XAGUSD", "XAGEUR", "XAGGBP", "XPTUSD", "XPTEUR", "XPTGBP", "XPDEUR", "XPDGBP"}
	Indices  = []string{"SPX500", "US500", "US30", "DJ30", "USTEC", "USTECH", "NAS100", "NDX100", "US100", "DE30", "GER30", "UK100", "AUS200", "FR40", "FRA40", "JP225", "JPN225", "HK50", "IN50", "CN50", "SG30", "STOXX50"}
	Crypto   = []string{"BTCUSD", "ETHUSD", "XRPUSD", "LTCUSD", "BCHUSD", "ADAUSD", "XLMUSD", "EOSUSD", "XMRUSD", "DASHUSD", "ZECUSD", "BNBUSD", "XTZUSD", "ATOMUSD", "ONTUSD", "NEOUSD", "VETUSD", "ICXUSD", "QTUMUSD", "ZRXUSD", "DOGEUSD", "LINKUSD", "HTUSD", "ETCUSD", "OMGUSD", "NANOUSD", "LSKUSD", "WAVESUSD", "REPUSD", "MKRUSD", "GNTUSD", "LOOMUSD", "MANAUSD", "KNCUSD", "CVCUSD", "BATUSD", "NEXOUSD", "DCRUSD", "PAXUSD", "TUSDUSD", "USDCUSD", "USDTUSD"}
	Forex    = []string{"EURUSD", "USDJPY", "GBPUSD", "USDCHF", "AUDUSD", "USDCAD", "NZDUSD", "EURGBP", "EURJPY", "GBPJPY", "AUDJPY", "NZDJPY", "EURAUD", "GBPAUD", "EURNZD", "GBPNZD", "EURCAD", "GBPCAD", "AUDCAD", "NZDCAD", "EURCHF", "GBPCHF", "AUDCHF", "NZDCHF", "USDBRL", "USDSEK", "USDDKK", "USDNOK", "USDTRY", "USDMXN", "USDZAR", "EURSEK", "EURDKK", "EURNOK", "EURTRY", "EURMXN", "EURZAR", "GBPSEK", "GBPDKK", "GBPNOK", "GBPTRY", "GBPMXN", "GBPZAR", "AUDSEK", "AUDDKK", "AUDNOK", "AUDTRY", "AUDMXN", "AUDZAR", "CADJPY", "AUDNZD", "CHFJPY"}
)

// SymbolAliases maps names used in signal channels to broker symbols.
var SymbolAliases = map[string]string{
	"GOLD":   "XAUUSD",
	"SILVER": "XAGUSD",
	"BTC":    "BTCUSD",
	"ETH":    "ETHUSD",
	"NASDAQ": "NAS100",
	"DOW":    "US30",
}

var classIndex = buildClassIndex()

func buildClassIndex() map[string]InstrumentClass {
	idx := make(map[string]InstrumentClass)
	add := func(symbols []string, class InstrumentClass) {
		for _, s := range symbols {
			idx[s] = class
		}
	}
	add(Forex, ClassForex)
	add(Energies, ClassEnergy)
	add(Metals, ClassMetal)
	add(Indices, ClassIndex)
	add(Crypto, ClassCrypto)
	return idx
}

// Classify returns the instrument class of a canonical (suffix free) symbol.
func Classify(symbol string) InstrumentClass {
	s := strings.ToUpper(symbol)
	switch {
	case strings.HasPrefix(s, "XAU"):
		return ClassGold
	case strings.HasPrefix(s, "XAG"):
		return ClassSilver
	}
	if c, ok := classIndex[s]; ok {
		return c
	}
	return ClassUnknown
}

// TickMultiplier returns the price distance of one pip for the symbol.
// Instruments outside the fixed tables fall back on the magnitude of the entry
// price: quotes with two or more integer digits (JPY crosses, oil) use 0.01.
func TickMultiplier(symbol string, entry float64) float64 {
	switch Classify(symbol) {
	case ClassGold:
		return 0.1
	case ClassSilver:
		return 0.001
	case ClassIndex, ClassCrypto:
		return 1
	}
	if entry >= 10 {
		return 0.01
	}
	return 0.0001
}
