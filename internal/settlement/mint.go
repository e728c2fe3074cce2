package settlement

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"creatorvault/internal/curve"
	"creatorvault/internal/domain"
	"creatorvault/internal/models"
)

// MintParams describes a new creator token. Supply and curve shape are fixed
// at mint; only the trading state mutates afterwards.
type MintParams struct {
	Creator      string
	Name         string
	Symbol       string
	TotalSupply  float64
	InitialPrice float64
	// Steepness <= 0 falls back to the configured default.
	Steepness  float64
	Platform   *string
	ContentURL *string
}

// Mint initializes a token and its bonding curve at zero circulation.
func (s *Service) Mint(ctx context.Context, params MintParams, defaultSteepness float64) (*models.Token, error) {
	params.Creator = strings.TrimSpace(params.Creator)
	params.Name = strings.TrimSpace(params.Name)
	params.Symbol = strings.ToUpper(strings.TrimSpace(params.Symbol))
	if params.Creator == "" || params.Name == "" || params.Symbol == "" {
		return nil, fmt.Errorf("creator, name and symbol required: %w", domain.ErrInvalidInput)
	}
	if params.TotalSupply <= 0 || params.InitialPrice <= 0 {
		return nil, fmt.Errorf("supply and initial price must be positive: %w", domain.ErrInvalidInput)
	}
	steepness := params.Steepness
	if steepness <= 0 {
		steepness = defaultSteepness
	}

	engine := curve.New(params.InitialPrice, params.TotalSupply, steepness)
	blob, err := engine.Marshal()
	if err != nil {
		return nil, err
	}

	token := &models.Token{
		ID:                uuid.NewString(),
		Creator:           params.Creator,
		Name:              params.Name,
		Symbol:            params.Symbol,
		Platform:          params.Platform,
		ContentURL:        params.ContentURL,
		TotalSupply:       params.TotalSupply,
		CurveConfig:       blob,
		CirculatingSupply: 0,
		ReserveBalance:    0,
		CurrentPrice:      engine.SpotPrice(0, 0),
		MarketCap:         0,
		Volume24h:         decimal.Zero,
	}
	if err := s.Repo.CreateToken(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}
