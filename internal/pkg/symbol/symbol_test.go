package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in    string
		base  string
		quote string
	}{
		{"BTC/USDT", "BTC", "USDT"},
		{"btc/usdt", "BTC", "USDT"},
		{"BTC/USDT:USDT", "BTC", "USDT"},
		{"ETHUSDT", "ETH", "USDT"},
		{" SOL/USDC ", "SOL", "USDC"},
		{"", "", ""},
		{"???", "", ""},
	}
	for _, tt := range tests {
		got := Parse(tt.in)
		assert.Equal(t, tt.base, got.Base, "base of %q", tt.in)
		assert.Equal(t, tt.quote, got.Quote, "quote of %q", tt.in)
	}
}

func TestNormalize(t *testing.T) {
	t.Run("non-inverted passes through", func(t *testing.T) {
		assert.Equal(t, "BTC/USDT", Normalize("BTC/USDT", false))
		assert.Equal(t, "BTC/USDT", Normalize("BTC/USDT:USDT", false))
	})

	t.Run("inverted swaps base and quote", func(t *testing.T) {
		assert.Equal(t, "USDT/BTC", Normalize("BTC/USDT", true))
		assert.Equal(t, "USDT/BTC", Normalize("BTC/USDT:USDT", true))
	})

	t.Run("unparseable input is upper-trimmed only", func(t *testing.T) {
		assert.Equal(t, "???", Normalize(" ??? ", true))
	})
}

func TestBinanceFormat(t *testing.T) {
	assert.Equal(t, "BTCUSDT", Parse("BTC/USDT").Binance())
	assert.Equal(t, "", Symbol{}.Binance())
}
