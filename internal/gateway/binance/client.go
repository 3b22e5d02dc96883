// Package binance implements the exchange client capability on Binance spot
// via the go-binance SDK.
package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"easymarket/internal/gateway/exchange"
	symbolpkg "easymarket/internal/pkg/symbol"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Client adapts the go-binance spot client to exchange.Client. One instance
// is built per Account and reused for the account's lifetime.
type Client struct {
	cfg Config
	api *gobinance.Client
}

var _ exchange.Client = (*Client)(nil)

func New(cfg Config) *Client {
	final := cfg.withDefaults()
	api := gobinance.NewClient(final.APIKey, final.APISecret)
	if final.RESTBaseURL != "" {
		api.BaseURL = final.RESTBaseURL
	}
	api.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Client{cfg: final, api: api}
}

func (c *Client) Name() string {
	if c.cfg.Testnet {
		return "binance-testnet"
	}
	return "binance"
}

func (c *Client) CreateLimitOrder(ctx context.Context, symbol, side string, quantity, price float64) (*exchange.Order, error) {
	venueSymbol, err := venueSymbol(symbol)
	if err != nil {
		return nil, exchange.Rejected(err)
	}
	res, err := c.api.NewCreateOrderService().
		Symbol(venueSymbol).
		Side(sideType(side)).
		Type(gobinance.OrderTypeLimit).
		TimeInForce(gobinance.TimeInForceTypeGTC).
		Quantity(formatFloat(quantity)).
		Price(formatFloat(price)).
		NewClientOrderID(uuid.NewString()).
		Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return orderFromCreate(res), nil
}

func (c *Client) CreateMarketOrder(ctx context.Context, symbol, side string, quantity float64) (*exchange.Order, error) {
	venueSymbol, err := venueSymbol(symbol)
	if err != nil {
		return nil, exchange.Rejected(err)
	}
	res, err := c.api.NewCreateOrderService().
		Symbol(venueSymbol).
		Side(sideType(side)).
		Type(gobinance.OrderTypeMarket).
		Quantity(formatFloat(quantity)).
		NewClientOrderID(uuid.NewString()).
		Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return orderFromCreate(res), nil
}

func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	venueSymbol, err := venueSymbol(symbol)
	if err != nil {
		return exchange.Rejected(err)
	}
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return exchange.Rejected(fmt.Errorf("order id %q is not numeric", orderID))
	}
	if _, err := c.api.NewCancelOrderService().Symbol(venueSymbol).OrderID(id).Do(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) FetchOrderStatus(ctx context.Context, symbol, orderID string) (*exchange.Order, error) {
	venueSymbol, err := venueSymbol(symbol)
	if err != nil {
		return nil, exchange.Rejected(err)
	}
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return nil, exchange.Rejected(fmt.Errorf("order id %q is not numeric", orderID))
	}
	res, err := c.api.NewGetOrderService().Symbol(venueSymbol).OrderID(id).Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	qty := parseFloat(res.OrigQuantity)
	filled := parseFloat(res.ExecutedQuantity)
	price := parseFloat(res.Price)
	if price <= 0 && filled > 0 {
		// Market fills report price=0; derive the average from the quote total.
		if quote := parseFloat(res.CummulativeQuoteQuantity); quote > 0 {
			price = quote / filled
		}
	}
	return &exchange.Order{
		ID:        strconv.FormatInt(res.OrderID, 10),
		Symbol:    symbol,
		Side:      strings.ToLower(string(res.Side)),
		Kind:      strings.ToLower(string(res.Type)),
		Quantity:  qty,
		Price:     price,
		Filled:    filled,
		Remaining: qty - filled,
		Status:    orderStatus(res.Status),
	}, nil
}

func (c *Client) FetchBalance(ctx context.Context) (exchange.Balance, error) {
	res, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	out := make(exchange.Balance, len(res.Balances))
	for _, b := range res.Balances {
		free := parseFloat(b.Free)
		locked := parseFloat(b.Locked)
		if free == 0 && locked == 0 {
			continue
		}
		out[strings.ToUpper(b.Asset)] = exchange.Asset{Free: free, Locked: locked}
	}
	return out, nil
}

// FetchCurrencyBalance refetches the account snapshot and picks one currency.
// Binance spot keeps everything in a single wallet, so this is purely the
// fallback path for currencies that were filtered out as zero.
func (c *Client) FetchCurrencyBalance(ctx context.Context, currency string) (float64, error) {
	res, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, classify(err)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	for _, b := range res.Balances {
		if strings.ToUpper(b.Asset) == currency {
			return parseFloat(b.Free), nil
		}
	}
	return 0, exchange.Rejected(fmt.Errorf("currency %s not present in account", currency))
}

func (c *Client) FetchTicker(ctx context.Context, symbol string) (exchange.Ticker, error) {
	venue, err := venueSymbol(symbol)
	if err != nil {
		return exchange.Ticker{}, exchange.Rejected(err)
	}
	ticker := exchange.Ticker{Symbol: symbol}

	prices, err := c.api.NewListPricesService().Symbol(venue).Do(ctx)
	if err != nil {
		return exchange.Ticker{}, classify(err)
	}
	for _, p := range prices {
		if p != nil && strings.EqualFold(p.Symbol, venue) {
			ticker.Last = parseFloat(p.Price)
		}
	}

	books, err := c.api.NewListBookTickersService().Symbol(venue).Do(ctx)
	if err != nil {
		return exchange.Ticker{}, classify(err)
	}
	for _, b := range books {
		if b != nil && strings.EqualFold(b.Symbol, venue) {
			ticker.Bid = parseFloat(b.BidPrice)
			ticker.Ask = parseFloat(b.AskPrice)
		}
	}
	if ticker.Last <= 0 {
		return exchange.Ticker{}, exchange.Rejected(fmt.Errorf("no price for %s", symbol))
	}
	return ticker, nil
}

func (c *Client) LoadMarkets(ctx context.Context) (map[string]exchange.Market, error) {
	info, err := c.api.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	out := make(map[string]exchange.Market, len(info.Symbols))
	for _, s := range info.Symbols {
		if !strings.EqualFold(s.Status, "TRADING") {
			continue
		}
		key := strings.ToUpper(s.BaseAsset) + "/" + strings.ToUpper(s.QuoteAsset)
		meta := exchange.Market{
			Symbol:          key,
			Base:            strings.ToUpper(s.BaseAsset),
			Quote:           strings.ToUpper(s.QuoteAsset),
			AmountPrecision: int32(s.BaseAssetPrecision),
			PricePrecision:  int32(s.QuotePrecision),
			// Spot pairs quote the conventional way round.
			Inverted: false,
		}
		if f := s.LotSizeFilter(); f != nil {
			meta.MinAmount = parseFloat(f.MinQuantity)
			meta.MaxAmount = parseFloat(f.MaxQuantity)
			if p, ok := stepPrecision(f.StepSize); ok {
				meta.AmountPrecision = p
			}
		}
		if f := s.PriceFilter(); f != nil {
			if p, ok := stepPrecision(f.TickSize); ok {
				meta.PricePrecision = p
			}
		}
		if f := s.NotionalFilter(); f != nil {
			meta.MinNotional = parseFloat(f.MinNotional)
		}
		out[key] = meta
	}
	return out, nil
}

func venueSymbol(sym string) (string, error) {
	venue := symbolpkg.Parse(sym).Binance()
	if venue == "" {
		return "", fmt.Errorf("invalid symbol %q", sym)
	}
	return venue, nil
}

func sideType(side string) gobinance.SideType {
	if strings.EqualFold(side, exchange.SideSell) {
		return gobinance.SideTypeSell
	}
	return gobinance.SideTypeBuy
}

func orderStatus(s gobinance.OrderStatusType) exchange.OrderStatus {
	switch s {
	case gobinance.OrderStatusTypeNew:
		return exchange.OrderStatusNew
	case gobinance.OrderStatusTypePartiallyFilled:
		return exchange.OrderStatusPartiallyFilled
	case gobinance.OrderStatusTypeFilled:
		return exchange.OrderStatusFilled
	case gobinance.OrderStatusTypeCanceled, gobinance.OrderStatusTypePendingCancel:
		return exchange.OrderStatusCanceled
	case gobinance.OrderStatusTypeRejected:
		return exchange.OrderStatusRejected
	case gobinance.OrderStatusTypeExpired:
		return exchange.OrderStatusExpired
	default:
		return exchange.OrderStatusNew
	}
}

func orderFromCreate(res *gobinance.CreateOrderResponse) *exchange.Order {
	qty := parseFloat(res.OrigQuantity)
	filled := parseFloat(res.ExecutedQuantity)
	price := parseFloat(res.Price)
	if price <= 0 && filled > 0 {
		if quote := parseFloat(res.CummulativeQuoteQuantity); quote > 0 {
			price = quote / filled
		}
	}
	return &exchange.Order{
		ID:        strconv.FormatInt(res.OrderID, 10),
		Symbol:    res.Symbol,
		Side:      strings.ToLower(string(res.Side)),
		Kind:      strings.ToLower(string(res.Type)),
		Quantity:  qty,
		Price:     price,
		Filled:    filled,
		Remaining: qty - filled,
		Status:    orderStatus(res.Status),
	}
}

// transientCodes are Binance API errors worth retrying: internal errors,
// connectivity and rate limiting. Everything else is a hard rejection.
var transientCodes = map[int64]bool{
	-1000: true, // UNKNOWN
	-1001: true, // DISCONNECTED
	-1003: true, // TOO_MANY_REQUESTS
	-1007: true, // TIMEOUT
	-1016: true, // SERVICE_SHUTTING_DOWN
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		if transientCodes[apiErr.Code] {
			return exchange.Transient(err)
		}
		return exchange.Rejected(err)
	}
	// Non-API failures are network-level and worth retrying.
	return exchange.Transient(err)
}

func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// stepPrecision converts a filter step like "0.00010000" into the number of
// meaningful decimal places.
func stepPrecision(step string) (int32, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(step))
	if err != nil || d.LessThanOrEqual(decimal.Zero) {
		return 0, false
	}
	ten := decimal.NewFromInt(10)
	var p int32
	for d.LessThan(decimal.NewFromInt(1)) && p < 12 {
		d = d.Mul(ten)
		p++
	}
	return p, true
}
