package types

// OrderKind selects how entry and exit orders are placed for a bot.
type OrderKind string

const (
	OrderKindLimit  OrderKind = "limit"
	OrderKindMarket OrderKind = "market"
)

func (k OrderKind) Valid() bool {
	return k == OrderKindLimit || k == OrderKindMarket
}

// Bot is the trading configuration a signal resolves to. The execution core
// only reads it; bot management lives outside this service.
type Bot struct {
	ID           int64
	Name         string
	Symbol       string
	OrderKind    OrderKind
	OrderSizePct float64 // percentage of available balance, (0, 100]
	Leverage     float64
	LimitPrice   float64 // entry price for limit orders, 0 = use ticker
	StopLossPct  float64
	TakeProfitPct float64
	MakerFee     float64
	TakerFee     float64
	AccountID    int64
	Enabled      bool
}

// FeeRate returns the applicable fee rate for an order of the given kind on
// the given position side. Limit longs rest on the book and earn the maker
// rate; market shorts mirror that asymmetry on the sell side.
func (b *Bot) FeeRate(kind OrderKind, side PositionSide) float64 {
	if kind == OrderKindLimit {
		if side == SideLong {
			return b.MakerFee
		}
		return b.TakerFee
	}
	if side == SideLong {
		return b.TakerFee
	}
	return b.MakerFee
}

// Account holds exchange credentials. The core never mutates it beyond the
// cached balance snapshot refreshed after fills.
type Account struct {
	ID          int64
	Name        string
	Exchange    string
	APIKey      string
	APISecret   string
	Passphrase  string
	Sandbox     bool
	Options     map[string]any
	BalanceUSDT float64
}
