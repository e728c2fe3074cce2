// Package domain holds the error taxonomy shared by the trading and
// prediction engines. Handlers map these to HTTP statuses; anything not in
// this list is treated as an infrastructure failure.
package domain

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInsufficientLiquidity = errors.New("insufficient curve liquidity")
	ErrInsufficientBalance   = errors.New("insufficient circulating balance")
	ErrNotFound              = errors.New("not found")

	ErrMarketClosed    = errors.New("market closed")
	ErrAlreadyResolved = errors.New("market already resolved")
	ErrInvalidClaim    = errors.New("trade is not claimable")
	ErrAlreadyClaimed  = errors.New("payout already claimed")

	ErrAlreadyReferred = errors.New("address already has a referrer")
	ErrSelfReferral    = errors.New("cannot refer yourself")
	ErrUnknownCode     = errors.New("unknown referral code")
)
