package game

import "errors"

// Recoverable request errors. All of these are reported to the caller and
// none of them aborts the round.
var (
	ErrBettingWindowClosed = errors.New("betting window closed")
	ErrStakeOutOfRange     = errors.New("stake out of range")
	ErrInvalidAutoCashout  = errors.New("auto cashout target out of range")
	ErrAlreadyBet          = errors.New("player already has a bet in this round")
	ErrBetNotFound         = errors.New("bet not found")
	ErrRoundNotFlying      = errors.New("round is not flying")
	ErrNoActiveRound       = errors.New("no active round")
	ErrEngineHalted        = errors.New("engine halted")
)
