package game

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BetStatus int32

const (
	StatusPlaced BetStatus = iota
	StatusCashedOut
	StatusLost
	StatusVoid
)

func (s BetStatus) String() string {
	switch s {
	case StatusPlaced:
		return "placed"
	case StatusCashedOut:
		return "cashed_out"
	case StatusLost:
		return "lost"
	case StatusVoid:
		return "void"
	}

	return "unknown"
}

func (s BetStatus) Terminal() bool {
	return s != StatusPlaced
}

// Bet is one player's stake in a round. Status moves from placed to exactly
// one terminal state through a compare-and-set, so a manual cash-out racing
// an auto-cashout timer or the crash transition resolves exactly once.
type Bet struct {
	ID          uuid.UUID
	RoundID     uint64
	UserUUID    string
	Stake       int64
	AutoCashout decimal.Decimal
	PlacedAt    time.Time

	status int32

	// mu guards the resolution fields. Only the CAS winner writes them.
	mu         sync.Mutex
	multiplier decimal.Decimal
	payout     int64
	resolvedAt time.Time
}

// Resolution is the terminal outcome of a bet.
type Resolution struct {
	BetID      uuid.UUID       `json:"bet_id"`
	Status     BetStatus       `json:"-"`
	StatusName string          `json:"status"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Payout     int64           `json:"payout"`
	ResolvedAt time.Time       `json:"resolved_at"`
}

func NewBet(roundID uint64, userUUID string, stake int64, autoCashout decimal.Decimal) *Bet {
	return &Bet{
		ID:          uuid.New(),
		RoundID:     roundID,
		UserUUID:    userUUID,
		Stake:       stake,
		AutoCashout: autoCashout,
		PlacedAt:    time.Now(),
	}
}

func (b *Bet) Status() BetStatus {
	return BetStatus(atomic.LoadInt32(&b.status))
}

func (b *Bet) HasAutoCashout() bool {
	return !b.AutoCashout.IsZero()
}

// resolve attempts the placed -> terminal transition. It returns false when
// another resolution already won, in which case the recorded outcome stands.
func (b *Bet) resolve(to BetStatus, multiplier decimal.Decimal, payout int64) bool {
	if !atomic.CompareAndSwapInt32(&b.status, int32(StatusPlaced), int32(to)) {
		return false
	}

	b.mu.Lock()
	b.multiplier = multiplier
	b.payout = payout
	b.resolvedAt = time.Now()
	b.mu.Unlock()

	return true
}

// Resolution returns the recorded outcome. For an unresolved bet the
// multiplier and payout are zero.
func (b *Bet) Resolution() Resolution {
	status := b.Status()

	b.mu.Lock()
	defer b.mu.Unlock()

	return Resolution{
		BetID:      b.ID,
		Status:     status,
		StatusName: status.String(),
		Multiplier: b.multiplier,
		Payout:     b.payout,
		ResolvedAt: b.resolvedAt,
	}
}

// payoutFor truncates stake*multiplier down to whole cents.
func payoutFor(stake int64, multiplier decimal.Decimal) int64 {
	return decimal.NewFromInt(stake).Mul(multiplier).IntPart()
}
