// Package gormstore persists accounts, bots, positions and signals in SQLite
// via Gorm.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	storemodel "easymarket/internal/store/model"
	"easymarket/internal/types"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

// New opens (or creates) the SQLite database at path and migrates the schema.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&storemodel.AccountModel{},
		&storemodel.BotModel{},
		&storemodel.PositionModel{},
		&storemodel.SignalModel{},
	); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: keep concurrency low to avoid lock contention.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --------------------------- Profiles sync ---------------------------

// UpsertAccounts replaces credential and venue fields from the profiles file
// while preserving the cached balance snapshot.
func (s *Store) UpsertAccounts(ctx context.Context, accounts []types.Account) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if len(accounts) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	models := make([]storemodel.AccountModel, 0, len(accounts))
	for _, acc := range accounts {
		models = append(models, newAccountModel(acc, now))
	}
	cols := []string{
		"name", "exchange", "api_key", "api_secret", "passphrase",
		"sandbox", "options", "updated_at",
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(cols),
		}).
		Create(&models).Error
}

// UpsertBots writes bot definitions from the profiles file.
func (s *Store) UpsertBots(ctx context.Context, bots []types.Bot) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if len(bots) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	models := make([]storemodel.BotModel, 0, len(bots))
	for _, bot := range bots {
		models = append(models, newBotModel(bot, now))
	}
	cols := []string{
		"name", "symbol", "account_id", "order_kind", "order_size_pct",
		"leverage", "limit_price", "stop_loss_pct", "take_profit_pct",
		"maker_fee", "taker_fee", "enabled", "updated_at",
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(cols),
		}).
		Create(&models).Error
}

// ----------------------------- Lookups -------------------------------

// LoadBot returns (nil, nil) when the bot does not exist.
func (s *Store) LoadBot(ctx context.Context, botID int64) (*types.Bot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var m storemodel.BotModel
	if err := s.db.WithContext(ctx).Where("id = ?", botID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	bot := botModelToType(m)
	return &bot, nil
}

// LoadAccount returns (nil, nil) when the account does not exist.
func (s *Store) LoadAccount(ctx context.Context, accountID int64) (*types.Account, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var m storemodel.AccountModel
	if err := s.db.WithContext(ctx).Where("id = ?", accountID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	acc := accountModelToType(m)
	return &acc, nil
}

// UpdateAccountBalance refreshes the cached quote balance snapshot.
func (s *Store) UpdateAccountBalance(ctx context.Context, accountID int64, balanceUSDT float64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	res := s.db.WithContext(ctx).Model(&storemodel.AccountModel{}).
		Where("id = ?", accountID).
		Updates(map[string]any{
			"balance_usdt": balanceUSDT,
			"updated_at":   time.Now().UnixMilli(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ----------------------------- Positions -----------------------------

// LoadOpenPosition returns (nil, nil) when no open position exists for the
// (bot, symbol) pair.
func (s *Store) LoadOpenPosition(ctx context.Context, botID int64, symbol string) (*types.Position, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	var m storemodel.PositionModel
	err := s.db.WithContext(ctx).
		Where("bot_id = ? AND symbol = ? AND status = ?", botID, symbol, string(types.StatusOpen)).
		Order("id DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	pos := positionModelToType(m)
	return &pos, nil
}

// SavePosition inserts a new position (ID zero) or updates an existing row.
func (s *Store) SavePosition(ctx context.Context, p *types.Position) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if p == nil {
		return fmt.Errorf("gorm store: nil position")
	}
	now := time.Now().UnixMilli()
	m := newPositionModel(*p, now)
	if m.ID == 0 {
		if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
			return err
		}
		p.ID = m.ID
		return nil
	}
	return s.db.WithContext(ctx).Omit("created_at").Save(&m).Error
}

// ListPositions returns the most recent positions for a bot, newest first.
func (s *Store) ListPositions(ctx context.Context, botID int64, limit int) ([]types.Position, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []storemodel.PositionModel
	if err := s.db.WithContext(ctx).
		Where("bot_id = ?", botID).
		Order("id DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]types.Position, 0, len(models))
	for _, m := range models {
		out = append(out, positionModelToType(m))
	}
	return out, nil
}

// ------------------------------ Signals ------------------------------

// RecordSignal appends the signal to the audit log and fills in its ID.
func (s *Store) RecordSignal(ctx context.Context, sig *types.Signal) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store not initialized")
	}
	if sig == nil {
		return fmt.Errorf("gorm store: nil signal")
	}
	m := storemodel.SignalModel{
		Kind:       string(sig.Kind),
		BotID:      sig.BotID,
		Symbol:     strings.ToUpper(strings.TrimSpace(sig.Symbol)),
		ReceivedAt: sig.ReceivedAt.UnixMilli(),
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	sig.ID = m.ID
	return nil
}

// ------------------------- Model conversions -------------------------

func newAccountModel(acc types.Account, now int64) storemodel.AccountModel {
	optBytes, _ := json.Marshal(acc.Options)
	return storemodel.AccountModel{
		ID:          acc.ID,
		Name:        acc.Name,
		Exchange:    strings.ToLower(strings.TrimSpace(acc.Exchange)),
		APIKey:      acc.APIKey,
		APISecret:   acc.APISecret,
		Passphrase:  acc.Passphrase,
		Sandbox:     boolToInt(acc.Sandbox),
		Options:     datatypes.JSON(optBytes),
		BalanceUSDT: acc.BalanceUSDT,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func accountModelToType(m storemodel.AccountModel) types.Account {
	var options map[string]any
	if len(m.Options) > 0 {
		_ = json.Unmarshal(m.Options, &options)
	}
	return types.Account{
		ID:          m.ID,
		Name:        m.Name,
		Exchange:    m.Exchange,
		APIKey:      m.APIKey,
		APISecret:   m.APISecret,
		Passphrase:  m.Passphrase,
		Sandbox:     m.Sandbox != 0,
		Options:     options,
		BalanceUSDT: m.BalanceUSDT,
	}
}

func newBotModel(bot types.Bot, now int64) storemodel.BotModel {
	return storemodel.BotModel{
		ID:            bot.ID,
		Name:          bot.Name,
		Symbol:        strings.ToUpper(strings.TrimSpace(bot.Symbol)),
		AccountID:     bot.AccountID,
		OrderKind:     string(bot.OrderKind),
		OrderSizePct:  bot.OrderSizePct,
		Leverage:      bot.Leverage,
		LimitPrice:    bot.LimitPrice,
		StopLossPct:   bot.StopLossPct,
		TakeProfitPct: bot.TakeProfitPct,
		MakerFee:      bot.MakerFee,
		TakerFee:      bot.TakerFee,
		Enabled:       boolToInt(bot.Enabled),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func botModelToType(m storemodel.BotModel) types.Bot {
	return types.Bot{
		ID:            m.ID,
		Name:          m.Name,
		Symbol:        m.Symbol,
		OrderKind:     types.OrderKind(m.OrderKind),
		OrderSizePct:  m.OrderSizePct,
		Leverage:      m.Leverage,
		LimitPrice:    m.LimitPrice,
		StopLossPct:   m.StopLossPct,
		TakeProfitPct: m.TakeProfitPct,
		MakerFee:      m.MakerFee,
		TakerFee:      m.TakerFee,
		AccountID:     m.AccountID,
		Enabled:       m.Enabled != 0,
	}
}

func newPositionModel(p types.Position, now int64) storemodel.PositionModel {
	return storemodel.PositionModel{
		ID:          p.ID,
		BotID:       p.BotID,
		Symbol:      strings.ToUpper(strings.TrimSpace(p.Symbol)),
		Side:        string(p.Side),
		Status:      string(p.Status),
		OrderKind:   string(p.OrderKind),
		Quantity:    p.Quantity,
		EntryPrice:  p.EntryPrice,
		EntryTime:   timeToMillis(p.EntryTime),
		ExitPrice:   p.ExitPrice,
		ExitTime:    timeToMillis(p.ExitTime),
		OrderID:     p.OrderID,
		ExitOrderID: p.ExitOrderID,
		StopLoss:    p.StopLoss,
		TakeProfit:  p.TakeProfit,
		Fees:        p.Fees,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func positionModelToType(m storemodel.PositionModel) types.Position {
	return types.Position{
		ID:          m.ID,
		BotID:       m.BotID,
		Symbol:      m.Symbol,
		Side:        types.PositionSide(m.Side),
		Status:      types.PositionStatus(m.Status),
		OrderKind:   types.OrderKind(m.OrderKind),
		Quantity:    m.Quantity,
		EntryPrice:  m.EntryPrice,
		EntryTime:   millisToTime(m.EntryTime),
		ExitPrice:   m.ExitPrice,
		ExitTime:    millisToTime(m.ExitTime),
		OrderID:     m.OrderID,
		ExitOrderID: m.ExitOrderID,
		StopLoss:    m.StopLoss,
		TakeProfit:  m.TakeProfit,
		Fees:        m.Fees,
	}
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func timeToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func millisToTime(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(v)
}
