// Package repotest provides an in-memory Repository for engine tests.
// InTx snapshots the whole store and restores it when the closure fails,
// matching the all-or-nothing semantics of the real transaction.
package repotest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"creatorvault/internal/domain"
	"creatorvault/internal/models"
	"creatorvault/internal/repository"
)

type Store struct {
	mu sync.Mutex

	Tokens           map[string]*models.Token
	Trades           []models.Trade
	Referrals        []models.Referral
	Earnings         []models.ReferralEarning
	Markets          map[string]*models.PredictionMarket
	PredictionTrades map[string]*models.PredictionTrade

	// Forced failures for atomicity and error-propagation tests.
	FailInsertTrade  bool
	FailSettleTrade  bool
	FailGetCodeOwner bool

	nextID uint64
}

var errForced = errors.New("repotest: forced failure")

func New() *Store {
	return &Store{
		Tokens:           make(map[string]*models.Token),
		Markets:          make(map[string]*models.PredictionMarket),
		PredictionTrades: make(map[string]*models.PredictionTrade),
	}
}

var _ repository.Repository = (*Store)(nil)

func (s *Store) snapshot() *Store {
	cp := &Store{
		Tokens:           make(map[string]*models.Token, len(s.Tokens)),
		Trades:           append([]models.Trade(nil), s.Trades...),
		Referrals:        append([]models.Referral(nil), s.Referrals...),
		Earnings:         append([]models.ReferralEarning(nil), s.Earnings...),
		Markets:          make(map[string]*models.PredictionMarket, len(s.Markets)),
		PredictionTrades: make(map[string]*models.PredictionTrade, len(s.PredictionTrades)),
	}
	for id, t := range s.Tokens {
		c := *t
		cp.Tokens[id] = &c
	}
	for id, m := range s.Markets {
		c := *m
		cp.Markets[id] = &c
	}
	for id, w := range s.PredictionTrades {
		c := *w
		cp.PredictionTrades[id] = &c
	}
	return cp
}

func (s *Store) restore(snap *Store) {
	s.Tokens = snap.Tokens
	s.Trades = snap.Trades
	s.Referrals = snap.Referrals
	s.Earnings = snap.Earnings
	s.Markets = snap.Markets
	s.PredictionTrades = snap.PredictionTrades
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	s.mu.Lock()
	snap := s.snapshot()
	s.mu.Unlock()
	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

// Tokens

func (s *Store) CreateToken(ctx context.Context, item *models.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *item
	s.Tokens[item.ID] = &c
	return nil
}

func (s *Store) GetTokenByID(ctx context.Context, id string) (*models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.Tokens[id]
	if !ok {
		return nil, nil
	}
	c := *t
	return &c, nil
}

func (s *Store) ListTokens(ctx context.Context, params repository.ListTokensParams) ([]models.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Token
	for _, t := range s.Tokens {
		if params.Creator != nil && t.Creator != *params.Creator {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CountTokens(ctx context.Context, params repository.ListTokensParams) (int64, error) {
	items, _ := s.ListTokens(ctx, params)
	return int64(len(items)), nil
}

func (s *Store) UpdateTokenStateTx(ctx context.Context, tx *gorm.DB, id string, state repository.TokenState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.Tokens[id]
	if !ok {
		return errors.New("repotest: token not found")
	}
	t.CirculatingSupply = state.CirculatingSupply
	t.ReserveBalance = state.ReserveBalance
	t.CurrentPrice = state.CurrentPrice
	t.MarketCap = state.MarketCap
	return nil
}

// Trades

func (s *Store) InsertTradeTx(ctx context.Context, tx *gorm.DB, item *models.Trade) error {
	if s.FailInsertTrade {
		return errForced
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.Trades = append(s.Trades, *item)
	return nil
}

func (s *Store) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Trade
	for _, tr := range s.Trades {
		if params.TokenID != nil && tr.TokenID != *params.TokenID {
			continue
		}
		if params.Trader != nil && tr.Trader != *params.Trader {
			continue
		}
		if params.Since != nil && tr.CreatedAt.Before(*params.Since) {
			continue
		}
		out = append(out, tr)
	}
	return out, nil
}

func (s *Store) CountTrades(ctx context.Context, params repository.ListTradesParams) (int64, error) {
	items, _ := s.ListTrades(ctx, params)
	return int64(len(items)), nil
}

func (s *Store) SumTradeVolumeSince(ctx context.Context, tokenID string, since time.Time) (decimal.Decimal, error) {
	items, _ := s.ListTrades(ctx, repository.ListTradesParams{TokenID: &tokenID, Since: &since})
	sum := decimal.Zero
	for _, tr := range items {
		sum = sum.Add(tr.TotalValue)
	}
	return sum, nil
}

// Referrals

func (s *Store) InsertReferral(ctx context.Context, item *models.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.Referrals {
		if r.Referred == item.Referred {
			return errors.New("repotest: duplicate referred")
		}
	}
	s.nextID++
	item.ID = s.nextID
	s.Referrals = append(s.Referrals, *item)
	return nil
}

func (s *Store) GetReferralByReferred(ctx context.Context, referred string) (*models.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Referrals {
		if s.Referrals[i].Referred == referred {
			c := s.Referrals[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) GetCodeOwnerRow(ctx context.Context, address string) (*models.Referral, error) {
	if s.FailGetCodeOwner {
		return nil, errForced
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Referrals {
		if s.Referrals[i].Referrer == address && s.Referrals[i].Referred == address {
			c := s.Referrals[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) FindCodeOwnerByCode(ctx context.Context, code string) (*models.Referral, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Referrals {
		r := s.Referrals[i]
		if strings.EqualFold(r.Code, code) && r.Referrer == r.Referred {
			c := r
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) CodeExists(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.Referrals {
		if strings.EqualFold(r.Code, code) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) IncrementReferralTotalsTx(ctx context.Context, tx *gorm.DB, referred string, earnings, volume decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Referrals {
		if s.Referrals[i].Referred == referred {
			s.Referrals[i].TotalEarnings = s.Referrals[i].TotalEarnings.Add(earnings)
			s.Referrals[i].TotalVolume = s.Referrals[i].TotalVolume.Add(volume)
			s.Referrals[i].TotalTradesCount++
			return nil
		}
	}
	return errors.New("repotest: referral not found")
}

func (s *Store) InsertReferralEarningTx(ctx context.Context, tx *gorm.DB, item *models.ReferralEarning) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	item.ID = s.nextID
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.Earnings = append(s.Earnings, *item)
	return nil
}

func (s *Store) SummarizeReferralEarnings(ctx context.Context, referrer string) (repository.ReferralSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := repository.ReferralSummary{TotalEarnings: decimal.Zero, TotalVolume: decimal.Zero}
	for _, e := range s.Earnings {
		if e.Referrer != referrer {
			continue
		}
		out.TotalEarnings = out.TotalEarnings.Add(e.Earnings)
		out.TotalVolume = out.TotalVolume.Add(e.TradeValue)
		out.TotalTrades++
	}
	for _, r := range s.Referrals {
		if r.Referrer == referrer && r.Referred != r.Referrer {
			out.TotalReferrals++
		}
	}
	return out, nil
}

func (s *Store) ListReferralEarnings(ctx context.Context, referrer string, limit int) ([]models.ReferralEarning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReferralEarning
	for _, e := range s.Earnings {
		if e.Referrer == referrer {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Prediction markets

func (s *Store) InsertPredictionMarket(ctx context.Context, item *models.PredictionMarket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	c := *item
	s.Markets[item.ID] = &c
	return nil
}

func (s *Store) GetPredictionMarketByID(ctx context.Context, id string) (*models.PredictionMarket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Markets[id]
	if !ok {
		return nil, nil
	}
	c := *m
	return &c, nil
}

func (s *Store) ListPredictionMarkets(ctx context.Context, params repository.ListMarketsParams) ([]models.PredictionMarket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PredictionMarket
	for _, m := range s.Markets {
		if params.Status != nil && m.Status != *params.Status {
			continue
		}
		if params.Creator != nil && m.Creator != *params.Creator {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) CountPredictionMarkets(ctx context.Context, params repository.ListMarketsParams) (int64, error) {
	items, _ := s.ListPredictionMarkets(ctx, params)
	return int64(len(items)), nil
}

func (s *Store) ListExpiredActiveMarkets(ctx context.Context, now time.Time, limit int) ([]models.PredictionMarket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PredictionMarket
	for _, m := range s.Markets {
		if m.Status != models.MarketStatusActive || m.EndTime.After(now) {
			continue
		}
		out = append(out, *m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) TransitionMarketStatus(ctx context.Context, id string, from, to string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Markets[id]
	if !ok || m.Status != from {
		return false, nil
	}
	m.Status = to
	return true, nil
}

func (s *Store) IncrementMarketPoolTx(ctx context.Context, tx *gorm.DB, id string, side string, stake decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Markets[id]
	if !ok {
		return errors.New("repotest: market not found")
	}
	if side == models.OutcomeYes {
		m.YesPool = m.YesPool.Add(stake)
	} else {
		m.NoPool = m.NoPool.Add(stake)
	}
	return nil
}

func (s *Store) ResolveMarketTx(ctx context.Context, tx *gorm.DB, id string, outcome string, finalValue float64, carryover decimal.Decimal, resolvedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Markets[id]
	if !ok {
		return errors.New("repotest: market not found")
	}
	m.Status = models.MarketStatusResolved
	m.Outcome = &outcome
	m.FinalValue = &finalValue
	m.CarryoverPool = carryover
	m.ResolvedAt = &resolvedAt
	return nil
}

// Prediction trades

func (s *Store) InsertPredictionTradeTx(ctx context.Context, tx *gorm.DB, item *models.PredictionTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	c := *item
	s.PredictionTrades[item.ID] = &c
	return nil
}

func (s *Store) GetPredictionTradeByID(ctx context.Context, id string) (*models.PredictionTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.PredictionTrades[id]
	if !ok {
		return nil, nil
	}
	c := *w
	return &c, nil
}

func (s *Store) ListPredictionTrades(ctx context.Context, marketID string) ([]models.PredictionTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PredictionTrade
	for _, w := range s.PredictionTrades {
		if w.MarketID == marketID {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListPendingTradesTx(ctx context.Context, tx *gorm.DB, marketID string) ([]models.PredictionTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PredictionTrade
	for _, w := range s.PredictionTrades {
		if w.MarketID == marketID && w.Status == models.WagerStatusPending {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SettlePredictionTradeTx(ctx context.Context, tx *gorm.DB, id string, status string, payout decimal.Decimal) error {
	if s.FailSettleTrade {
		return errForced
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.PredictionTrades[id]
	if !ok {
		return errors.New("repotest: trade not found")
	}
	w.Status = status
	w.PayoutAmount = payout
	return nil
}

func (s *Store) MarkTradeClaimed(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.PredictionTrades[id]
	if !ok {
		return errors.New("repotest: trade not found")
	}
	if w.Claimed {
		return domain.ErrAlreadyClaimed
	}
	w.Claimed = true
	w.ClaimedAt = &at
	return nil
}

func (s *Store) ListUnclaimedWinnings(ctx context.Context, trader string) ([]models.PredictionTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PredictionTrade
	for _, w := range s.PredictionTrades {
		if w.Trader == trader && w.Status == models.WagerStatusWon && !w.Claimed {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
