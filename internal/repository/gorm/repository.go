package gormrepository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"creatorvault/internal/domain"
	"creatorvault/internal/models"
	"creatorvault/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- tokens -----------------------------------------------------------------

func (s *Store) CreateToken(ctx context.Context, item *models.Token) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetTokenByID(ctx context.Context, id string) (*models.Token, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Token
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListTokens(ctx context.Context, params repository.ListTokensParams) ([]models.Token, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.tokenQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	var items []models.Token
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountTokens(ctx context.Context, params repository.ListTokensParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.tokenQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) tokenQuery(ctx context.Context, params repository.ListTokensParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Token{})
	if params.Creator != nil && strings.TrimSpace(*params.Creator) != "" {
		query = query.Where("creator = ?", strings.TrimSpace(*params.Creator))
	}
	return query
}

func (s *Store) UpdateTokenStateTx(ctx context.Context, tx *gorm.DB, id string, state repository.TokenState) error {
	if tx == nil {
		return nil
	}
	res := tx.WithContext(ctx).Model(&models.Token{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"circulating_supply": state.CirculatingSupply,
			"reserve_balance":    state.ReserveBalance,
			"current_price":      state.CurrentPrice,
			"market_cap":         state.MarketCap,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// --- trades -----------------------------------------------------------------

func (s *Store) InsertTradeTx(ctx context.Context, tx *gorm.DB, item *models.Trade) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.tradeQuery(ctx, params).Order("created_at desc")
	var items []models.Trade
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountTrades(ctx context.Context, params repository.ListTradesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.tradeQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) tradeQuery(ctx context.Context, params repository.ListTradesParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.Trade{})
	if params.TokenID != nil && *params.TokenID != "" {
		query = query.Where("token_id = ?", *params.TokenID)
	}
	if params.Trader != nil && *params.Trader != "" {
		query = query.Where("trader = ?", *params.Trader)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("created_at >= ?", *params.Since)
	}
	return query
}

func (s *Store) SumTradeVolumeSince(ctx context.Context, tokenID string, since time.Time) (decimal.Decimal, error) {
	if s == nil || s.db == nil {
		return decimal.Zero, nil
	}
	var raw *string
	err := s.db.WithContext(ctx).Model(&models.Trade{}).
		Select("SUM(total_value)::text").
		Where("token_id = ?", tokenID).
		Where("created_at >= ?", since).
		Scan(&raw).Error
	if err != nil {
		return decimal.Zero, err
	}
	if raw == nil || *raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(*raw)
}

// --- referrals --------------------------------------------------------------

func (s *Store) InsertReferral(ctx context.Context, item *models.Referral) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetReferralByReferred(ctx context.Context, referred string) (*models.Referral, error) {
	return s.oneReferral(ctx, "referred = ?", referred)
}

// GetCodeOwnerRow returns the self-row that marks code ownership for address.
func (s *Store) GetCodeOwnerRow(ctx context.Context, address string) (*models.Referral, error) {
	return s.oneReferral(ctx, "referrer = ? AND referred = referrer", address)
}

func (s *Store) FindCodeOwnerByCode(ctx context.Context, code string) (*models.Referral, error) {
	return s.oneReferral(ctx, "code = ? AND referred = referrer", code)
}

func (s *Store) oneReferral(ctx context.Context, cond string, args ...any) (*models.Referral, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.Referral
	err := s.db.WithContext(ctx).Where(cond, args...).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CodeExists(ctx context.Context, code string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Referral{}).Where("code = ?", code).Count(&total).Error; err != nil {
		return false, err
	}
	return total > 0, nil
}

// IncrementReferralTotalsTx bumps the cumulative totals on the referred
// address's relationship row after a settled trade.
func (s *Store) IncrementReferralTotalsTx(ctx context.Context, tx *gorm.DB, referred string, earnings, volume decimal.Decimal) error {
	if tx == nil {
		return nil
	}
	return tx.WithContext(ctx).Model(&models.Referral{}).
		Where("referred = ?", referred).
		Updates(map[string]any{
			"total_earnings":     gorm.Expr("total_earnings + ?", earnings),
			"total_trades_count": gorm.Expr("total_trades_count + 1"),
			"total_volume":       gorm.Expr("total_volume + ?", volume),
		}).Error
}

func (s *Store) InsertReferralEarningTx(ctx context.Context, tx *gorm.DB, item *models.ReferralEarning) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) SummarizeReferralEarnings(ctx context.Context, referrer string) (repository.ReferralSummary, error) {
	if s == nil || s.db == nil {
		return repository.ReferralSummary{TotalEarnings: decimal.Zero, TotalVolume: decimal.Zero}, nil
	}
	var row struct {
		TotalEarnings  *string
		TotalTrades    int64
		TotalVolume    *string
		TotalReferrals int64
	}
	err := s.db.WithContext(ctx).Model(&models.ReferralEarning{}).
		Select(`COALESCE(SUM(earnings),0)::text AS total_earnings,
			COUNT(DISTINCT trade_id) AS total_trades,
			COALESCE(SUM(trade_value),0)::text AS total_volume,
			COUNT(DISTINCT referred) AS total_referrals`).
		Where("referrer = ?", referrer).
		Scan(&row).Error
	if err != nil {
		return repository.ReferralSummary{}, err
	}
	out := repository.ReferralSummary{
		TotalEarnings:  decimal.Zero,
		TotalTrades:    row.TotalTrades,
		TotalVolume:    decimal.Zero,
		TotalReferrals: row.TotalReferrals,
	}
	if row.TotalEarnings != nil {
		if d, err := decimal.NewFromString(*row.TotalEarnings); err == nil {
			out.TotalEarnings = d
		}
	}
	if row.TotalVolume != nil {
		if d, err := decimal.NewFromString(*row.TotalVolume); err == nil {
			out.TotalVolume = d
		}
	}
	return out, nil
}

func (s *Store) ListReferralEarnings(ctx context.Context, referrer string, limit int) ([]models.ReferralEarning, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ReferralEarning
	err := s.db.WithContext(ctx).Model(&models.ReferralEarning{}).
		Where("referrer = ?", referrer).
		Order("created_at desc").
		Limit(normalizeLimit(limit, 100)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- prediction markets -----------------------------------------------------

func (s *Store) InsertPredictionMarket(ctx context.Context, item *models.PredictionMarket) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetPredictionMarketByID(ctx context.Context, id string) (*models.PredictionMarket, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.PredictionMarket
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPredictionMarkets(ctx context.Context, params repository.ListMarketsParams) ([]models.PredictionMarket, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.marketQuery(ctx, params).Order("created_at desc")
	var items []models.PredictionMarket
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPredictionMarkets(ctx context.Context, params repository.ListMarketsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.marketQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) marketQuery(ctx context.Context, params repository.ListMarketsParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.PredictionMarket{})
	if params.Status != nil && *params.Status != "" {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Creator != nil && *params.Creator != "" {
		query = query.Where("creator = ?", *params.Creator)
	}
	return query
}

func (s *Store) ListExpiredActiveMarkets(ctx context.Context, now time.Time, limit int) ([]models.PredictionMarket, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.PredictionMarket
	err := s.db.WithContext(ctx).Model(&models.PredictionMarket{}).
		Where("status = ?", models.MarketStatusActive).
		Where("end_time <= ?", now).
		Order("end_time asc").
		Limit(normalizeLimit(limit, 100)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// TransitionMarketStatus moves a market from one status to another and
// reports whether a row matched. The from guard keeps a stale caller from
// overwriting the terminal resolved state.
func (s *Store) TransitionMarketStatus(ctx context.Context, id string, from, to string) (bool, error) {
	if s == nil || s.db == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).Model(&models.PredictionMarket{}).
		Where("id = ?", id).
		Where("status = ?", from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) IncrementMarketPoolTx(ctx context.Context, tx *gorm.DB, id string, side string, stake decimal.Decimal) error {
	if tx == nil {
		return nil
	}
	column := "yes_pool"
	if side == models.OutcomeNo {
		column = "no_pool"
	}
	res := tx.WithContext(ctx).Model(&models.PredictionMarket{}).
		Where("id = ?", id).
		Update(column, gorm.Expr(column+" + ?", stake))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *Store) ResolveMarketTx(ctx context.Context, tx *gorm.DB, id string, outcome string, finalValue float64, carryover decimal.Decimal, resolvedAt time.Time) error {
	if tx == nil {
		return nil
	}
	return tx.WithContext(ctx).Model(&models.PredictionMarket{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         models.MarketStatusResolved,
			"outcome":        outcome,
			"final_value":    finalValue,
			"carryover_pool": carryover,
			"resolved_at":    resolvedAt,
		}).Error
}

// --- prediction trades ------------------------------------------------------

func (s *Store) InsertPredictionTradeTx(ctx context.Context, tx *gorm.DB, item *models.PredictionTrade) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.WithContext(ctx).Create(item).Error
}

func (s *Store) GetPredictionTradeByID(ctx context.Context, id string) (*models.PredictionTrade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.PredictionTrade
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListPredictionTrades(ctx context.Context, marketID string) ([]models.PredictionTrade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.PredictionTrade
	err := s.db.WithContext(ctx).Model(&models.PredictionTrade{}).
		Where("market_id = ?", marketID).
		Order("created_at asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListPendingTradesTx(ctx context.Context, tx *gorm.DB, marketID string) ([]models.PredictionTrade, error) {
	if tx == nil {
		return nil, nil
	}
	var items []models.PredictionTrade
	err := tx.WithContext(ctx).Model(&models.PredictionTrade{}).
		Where("market_id = ?", marketID).
		Where("status = ?", models.WagerStatusPending).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) SettlePredictionTradeTx(ctx context.Context, tx *gorm.DB, id string, status string, payout decimal.Decimal) error {
	if tx == nil {
		return nil
	}
	return tx.WithContext(ctx).Model(&models.PredictionTrade{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"payout_amount": payout,
		}).Error
}

// MarkTradeClaimed flips claimed exactly once; a wager that is already
// claimed matches no row and the caller gets ErrAlreadyClaimed, so two
// racing claims cannot both hand the payout to the payment collaborator.
func (s *Store) MarkTradeClaimed(ctx context.Context, id string, at time.Time) error {
	if s == nil || s.db == nil {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&models.PredictionTrade{}).
		Where("id = ?", id).
		Where("claimed = ?", false).
		Updates(map[string]any{
			"claimed":    true,
			"claimed_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAlreadyClaimed
	}
	return nil
}

func (s *Store) ListUnclaimedWinnings(ctx context.Context, trader string) ([]models.PredictionTrade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.PredictionTrade
	err := s.db.WithContext(ctx).Model(&models.PredictionTrade{}).
		Where("trader = ?", trader).
		Where("status = ?", models.WagerStatusWon).
		Where("payout_amount > 0").
		Where("claimed = ?", false).
		Order("created_at desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ----------------------------------------------------------------

func normalizeLimit(limit, def int) int {
	if limit <= 0 || limit > 1000 {
		return def
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, def string) *gorm.DB {
	column := strings.TrimSpace(strings.ToLower(orderBy))
	switch column {
	case "created_at", "market_cap", "current_price", "volume_24h":
	default:
		column = def
	}
	dir := "desc"
	if asc != nil && *asc {
		dir = "asc"
	}
	return query.Order(column + " " + dir)
}
