// Package curve implements constant-product bonding-curve pricing for
// creator tokens. The engine is pure: it quotes against a supplied
// (circulating supply, reserve balance) pair and never mutates state.
package curve

import (
	"fmt"

	"creatorvault/internal/domain"
)

// Engine prices trades along a constant-product curve. Virtual reserves set
// the starting price and flatness; k is fixed for the lifetime of the curve.
//
// Quantities are real-valued. Callers performing on-chain settlement are
// responsible for converting to integer minor units.
type Engine struct {
	InitialPrice        float64
	InitialSupply       float64
	CurveSteepness      float64
	VirtualTokenReserve float64
	VirtualAlgoReserve  float64
	K                   float64
}

// New builds an engine from the initial price and tradable supply. The
// virtual value reserve is derived so that the spot price at zero circulation
// equals initialPrice scaled by (1 + steepness); lower steepness means a
// flatter curve with less price impact per trade.
func New(initialPrice, initialSupply, steepness float64) *Engine {
	return NewWithVirtualReserve(initialPrice, initialSupply, initialPrice*initialSupply*(1+steepness), steepness)
}

// NewWithVirtualReserve builds an engine with an explicit virtual value
// reserve, for curves restored from persisted config.
func NewWithVirtualReserve(initialPrice, initialSupply, virtualAlgo, steepness float64) *Engine {
	return &Engine{
		InitialPrice:        initialPrice,
		InitialSupply:       initialSupply,
		CurveSteepness:      steepness,
		VirtualTokenReserve: initialSupply,
		VirtualAlgoReserve:  virtualAlgo,
		K:                   initialSupply * virtualAlgo,
	}
}

// Quote is the result of pricing a single trade against the curve.
type Quote struct {
	// Cost is the value the trader pays (buy) or receives (sell).
	Cost              float64
	NewPrice          float64
	NewSupply         float64
	NewReserveBalance float64
}

// QuoteBuy prices a purchase of tokenAmount tokens at the given state.
// It fails rather than quote an amount that would drain the token reserve
// to or below zero, where the price diverges.
func (e *Engine) QuoteBuy(circulatingSupply, reserveBalance, tokenAmount float64) (Quote, error) {
	if tokenAmount <= 0 {
		return Quote{}, domain.ErrInvalidAmount
	}

	currentTokenReserve := e.VirtualTokenReserve - circulatingSupply
	currentTotalReserve := e.VirtualAlgoReserve + reserveBalance
	if currentTokenReserve <= 0 {
		return Quote{}, fmt.Errorf("curve exhausted: %w", domain.ErrInsufficientLiquidity)
	}

	newTokenReserve := currentTokenReserve - tokenAmount
	if newTokenReserve <= 0 {
		return Quote{}, fmt.Errorf("cannot buy %v of %v remaining: %w",
			tokenAmount, currentTokenReserve, domain.ErrInsufficientLiquidity)
	}

	newTotalReserve := e.K / newTokenReserve
	cost := newTotalReserve - currentTotalReserve

	return Quote{
		Cost:              cost,
		NewPrice:          newTotalReserve / newTokenReserve,
		NewSupply:         circulatingSupply + tokenAmount,
		NewReserveBalance: reserveBalance + cost,
	}, nil
}

// QuoteSell prices a sale of tokenAmount tokens at the given state. Selling
// more than is circulating is rejected; per-trader holdings are enforced by
// a collaborator.
func (e *Engine) QuoteSell(circulatingSupply, reserveBalance, tokenAmount float64) (Quote, error) {
	if tokenAmount <= 0 {
		return Quote{}, domain.ErrInvalidAmount
	}
	if tokenAmount > circulatingSupply {
		return Quote{}, fmt.Errorf("cannot sell %v with %v circulating: %w",
			tokenAmount, circulatingSupply, domain.ErrInsufficientBalance)
	}

	currentTokenReserve := e.VirtualTokenReserve - circulatingSupply
	currentTotalReserve := e.VirtualAlgoReserve + reserveBalance

	newTokenReserve := currentTokenReserve + tokenAmount
	newTotalReserve := e.K / newTokenReserve
	proceeds := currentTotalReserve - newTotalReserve

	return Quote{
		Cost:              proceeds,
		NewPrice:          newTotalReserve / newTokenReserve,
		NewSupply:         circulatingSupply - tokenAmount,
		NewReserveBalance: reserveBalance - proceeds,
	}, nil
}

// SpotPrice returns the instantaneous price at the given state.
func (e *Engine) SpotPrice(circulatingSupply, reserveBalance float64) float64 {
	tokenReserve := e.VirtualTokenReserve - circulatingSupply
	if tokenReserve <= 0 {
		return e.InitialPrice
	}
	return (e.VirtualAlgoReserve + reserveBalance) / tokenReserve
}
