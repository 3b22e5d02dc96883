// Package symbol parses trading pairs and centralizes inverted-contract
// normalization. Every balance, ticker and order call goes through Normalize
// so base/quote swaps happen in exactly one place.
package symbol

import (
	"strings"
)

type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) Internal() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

// Binance renders the pair in the venue's concatenated form (BTCUSDT).
func (s Symbol) Binance() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

// Swap returns the pair with base and quote exchanged.
func (s Symbol) Swap() Symbol {
	return Symbol{Base: s.Quote, Quote: s.Base}
}

// Parse accepts "BTC/USDT", contract forms like "BTC/USDT:USDT" (the settle
// suffix is dropped), and concatenated forms like "BTCUSDT" for the common
// quote currencies.
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}

	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}

	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}

	quoteCurrencies := []string{"USDT", "BUSD", "USDC", "TUSD", "BTC", "ETH", "BNB"}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{
				Base:  s[:len(s)-len(quote)],
				Quote: quote,
			}
		}
	}

	return Symbol{}
}

// Normalize rewrites a pair for the venue. Inverted contracts quote the
// conventional pair the other way round, so base and quote are swapped;
// everything else passes through in canonical form.
func Normalize(sym string, inverted bool) string {
	parsed := Parse(sym)
	if parsed.Base == "" {
		return strings.ToUpper(strings.TrimSpace(sym))
	}
	if inverted {
		parsed = parsed.Swap()
	}
	return parsed.Internal()
}

func IsValid(s string) bool {
	sym := Parse(s)
	return sym.Base != "" && sym.Quote != ""
}
