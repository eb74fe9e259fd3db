package game

import "time"

// Snapshot is the current-round view handed to clients that connect
// mid-round. It carries enough to render the live state, never the secret
// seed or crash point of an unfinished round.
type Snapshot struct {
	RoundID         uint64    `json:"round_id"`
	Phase           Phase     `json:"phase"`
	Commitment      string    `json:"commitment"`
	BettingClosesAt time.Time `json:"betting_closes_at,omitempty"`
	ElapsedMs       int64     `json:"elapsed_ms"`
	Multiplier      string    `json:"multiplier"`
	CrashMultiplier string    `json:"crash_multiplier,omitempty"`
	Seed            string    `json:"seed,omitempty"`
	Bets            []BetView `json:"bets"`
}

type BetView struct {
	BetID      string `json:"bet_id"`
	UserUUID   string `json:"user_uuid"`
	Stake      int64  `json:"stake"`
	Status     string `json:"status"`
	Multiplier string `json:"multiplier,omitempty"`
	Payout     int64  `json:"payout,omitempty"`
}

// Snapshot captures the current round under the engine mutex. Reads are
// cheap; the hot tick path is not involved.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	round := e.round
	if round == nil {
		return Snapshot{Phase: PhaseScheduled, Multiplier: "1.00", Bets: []BetView{}}
	}

	snap := Snapshot{
		RoundID:    round.ID,
		Phase:      round.Phase,
		Commitment: round.Commitment,
		Multiplier: "1.00",
		Bets:       make([]BetView, 0, round.Registry.Len()),
	}

	switch round.Phase {
	case PhaseBetting:
		snap.BettingClosesAt = round.BettingClosesAt
	case PhaseFlying:
		elapsed := time.Since(round.FlightStartedAt)
		snap.ElapsedMs = elapsed.Milliseconds()

		n := e.elapsedTicks(round)
		if n >= round.crashTicks {
			n = round.crashTicks
		}

		snap.Multiplier = e.curve.AtTick(n).Truncate(2).StringFixed(2)
	case PhaseCrashed, PhaseSettled:
		snap.ElapsedMs = round.CrashedAt.Sub(round.FlightStartedAt).Milliseconds()
		snap.Multiplier = round.CrashPoint.StringFixed(2)
	}

	if round.Revealed {
		snap.CrashMultiplier = round.CrashPoint.StringFixed(2)
		snap.Seed = round.Seed
	}

	for _, bet := range round.Registry.All() {
		res := bet.Resolution()

		view := BetView{
			BetID:    bet.ID.String(),
			UserUUID: bet.UserUUID,
			Stake:    bet.Stake,
			Status:   res.StatusName,
		}

		if res.Status == StatusCashedOut {
			view.Multiplier = res.Multiplier.StringFixed(2)
			view.Payout = res.Payout
		}

		snap.Bets = append(snap.Bets, view)
	}

	return snap
}
