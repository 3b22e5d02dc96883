// Package model defines the Gorm table mappings for accounts, bots,
// positions and the signal audit log.
package model

import (
	"gorm.io/datatypes"
)

type AccountModel struct {
	ID          int64          `gorm:"column:id;primaryKey"`
	Name        string         `gorm:"column:name"`
	Exchange    string         `gorm:"column:exchange"`
	APIKey      string         `gorm:"column:api_key"`
	APISecret   string         `gorm:"column:api_secret"`
	Passphrase  string         `gorm:"column:passphrase"`
	Sandbox     int            `gorm:"column:sandbox"`
	Options     datatypes.JSON `gorm:"column:options;type:TEXT"`
	BalanceUSDT float64        `gorm:"column:balance_usdt"`
	CreatedAt   int64          `gorm:"column:created_at"`
	UpdatedAt   int64          `gorm:"column:updated_at"`
}

func (AccountModel) TableName() string { return "accounts" }

type BotModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	Name          string  `gorm:"column:name"`
	Symbol        string  `gorm:"column:symbol;index"`
	AccountID     int64   `gorm:"column:account_id;index"`
	OrderKind     string  `gorm:"column:order_kind"`
	OrderSizePct  float64 `gorm:"column:order_size_pct"`
	Leverage      float64 `gorm:"column:leverage"`
	LimitPrice    float64 `gorm:"column:limit_price"`
	StopLossPct   float64 `gorm:"column:stop_loss_pct"`
	TakeProfitPct float64 `gorm:"column:take_profit_pct"`
	MakerFee      float64 `gorm:"column:maker_fee"`
	TakerFee      float64 `gorm:"column:taker_fee"`
	Enabled       int     `gorm:"column:enabled"`
	CreatedAt     int64   `gorm:"column:created_at"`
	UpdatedAt     int64   `gorm:"column:updated_at"`
}

func (BotModel) TableName() string { return "bots" }

type PositionModel struct {
	ID          int64   `gorm:"column:id;primaryKey"`
	BotID       int64   `gorm:"column:bot_id;index:idx_positions_bot_symbol,priority:1"`
	Symbol      string  `gorm:"column:symbol;index:idx_positions_bot_symbol,priority:2"`
	Side        string  `gorm:"column:side"`
	Status      string  `gorm:"column:status;index"`
	OrderKind   string  `gorm:"column:order_kind"`
	Quantity    float64 `gorm:"column:quantity"`
	EntryPrice  float64 `gorm:"column:entry_price"`
	EntryTime   int64   `gorm:"column:entry_time"`
	ExitPrice   float64 `gorm:"column:exit_price"`
	ExitTime    int64   `gorm:"column:exit_time"`
	OrderID     string  `gorm:"column:order_id;index"`
	ExitOrderID string  `gorm:"column:exit_order_id"`
	StopLoss    float64 `gorm:"column:stop_loss"`
	TakeProfit  float64 `gorm:"column:take_profit"`
	Fees        float64 `gorm:"column:fees"`
	CreatedAt   int64   `gorm:"column:created_at"`
	UpdatedAt   int64   `gorm:"column:updated_at"`
}

func (PositionModel) TableName() string { return "positions" }

// SignalModel is the append-only audit row written for every webhook signal
// before it is processed.
type SignalModel struct {
	ID         int64  `gorm:"column:id;primaryKey"`
	Kind       string `gorm:"column:kind"`
	BotID      int64  `gorm:"column:bot_id;index"`
	Symbol     string `gorm:"column:symbol"`
	ReceivedAt int64  `gorm:"column:received_at;index"`
}

func (SignalModel) TableName() string { return "signals" }
