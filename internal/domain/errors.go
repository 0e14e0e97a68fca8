package domain

import "errors"

var (
	ErrInvalidSide        = errors.New("invalid side")
	ErrInvalidAmount      = errors.New("invalid stake amount")
	ErrInvalidParticipant = errors.New("invalid participant")
	ErrStakingClosed      = errors.New("staking closed")
	ErrResolutionNotReady = errors.New("cannot resolve yet")
	ErrNotResolved        = errors.New("market not resolved")
	ErrMarketNotFound     = errors.New("market not found")
	ErrMarketExists       = errors.New("market already exists")
	ErrInvalidMarket      = errors.New("invalid market parameters")
	ErrNotFound           = errors.New("not found")
	ErrRateLimited        = errors.New("rate limited")
	ErrLockHeld           = errors.New("lock already held")
)
