package game

import "github.com/google/uuid"

// Store persists rounds, bets and stats. Rows must be durable before the
// engine treats the state transition as committed; recovery uses
// UnsettledBets to void anything left in flight by a crash.
type Store interface {
	SaveRound(round *Round) error
	UpdateRoundPhase(roundID uint64, phase Phase) error
	MarkRevealed(roundID uint64) error
	SaveBet(bet *Bet) error
	UpdateBetResolution(bet *Bet) error
	SaveRoundStats(stats RoundStats) error

	LastRoundID() (uint64, error)
	UnsettledBets() ([]UnsettledBet, error)
	VoidRound(roundID uint64) error
}

// UnsettledBet is a bet row found in a non-terminal round at startup.
type UnsettledBet struct {
	BetUUID  uuid.UUID
	RoundID  uint64
	UserUUID string
	Stake    int64
}

// NopStore satisfies Store without durability. Tests and the in-memory
// development mode use it.
type NopStore struct{}

func (NopStore) SaveRound(*Round) error                  { return nil }
func (NopStore) UpdateRoundPhase(uint64, Phase) error    { return nil }
func (NopStore) MarkRevealed(uint64) error               { return nil }
func (NopStore) SaveBet(*Bet) error                      { return nil }
func (NopStore) UpdateBetResolution(*Bet) error          { return nil }
func (NopStore) SaveRoundStats(RoundStats) error         { return nil }
func (NopStore) LastRoundID() (uint64, error)            { return 0, nil }
func (NopStore) UnsettledBets() ([]UnsettledBet, error)  { return nil, nil }
func (NopStore) VoidRound(uint64) error                  { return nil }
