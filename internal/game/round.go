package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Phase string

const (
	PhaseScheduled Phase = "scheduled"
	PhaseBetting   Phase = "betting"
	PhaseFlying    Phase = "flying"
	PhaseCrashed   Phase = "crashed"
	PhaseSettled   Phase = "settled"
	PhaseVoided    Phase = "voided"
)

// Round is one betting -> flying -> crash -> settle cycle. The crash point
// and seed are computed at creation and stay secret until the crash reveals
// them. All fields are written only while the engine mutex is held.
type Round struct {
	ID         uint64
	UUID       uuid.UUID
	Phase      Phase
	Seed       string
	Commitment string
	CrashPoint decimal.Decimal
	Revealed   bool

	BettingOpenedAt time.Time
	BettingClosesAt time.Time
	FlightStartedAt time.Time
	CrashedAt       time.Time

	// crashTicks is the flight length in curve ticks, derived from the
	// crash point once at round creation.
	crashTicks int

	Registry *Registry

	timers []*time.Timer
}

func (r *Round) addTimer(t *time.Timer) {
	r.timers = append(r.timers, t)
}

// stopTimers invalidates every pending deadline for the round. Called
// atomically with the crash transition so no stale timer resolves a bet
// afterwards.
func (r *Round) stopTimers() {
	for _, t := range r.timers {
		t.Stop()
	}

	r.timers = nil
}

// RoundStats is the per-round settlement summary.
type RoundStats struct {
	RoundID       uint64 `json:"round_id"`
	TotalBets     int    `json:"total_bets"`
	TotalStaked   int64  `json:"total_staked"`
	TotalPaidOut  int64  `json:"total_paid_out"`
	UniquePlayers int    `json:"unique_players"`
	HighestStake  int64  `json:"highest_stake"`
}

// RoundResult is the public record of a finished round.
type RoundResult struct {
	RoundID    uint64    `json:"round_id"`
	Multiplier string    `json:"multiplier"`
	Seed       string    `json:"seed"`
	Commitment string    `json:"commitment"`
	CrashedAt  time.Time `json:"crashed_at"`
}
