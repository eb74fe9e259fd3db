package repository

import (
	"fmt"

	"go-aviator/internal/game"
	"go-aviator/internal/storage/mysql"

	"github.com/google/uuid"
)

// RoundRepository implements game.Store over mysql. Every write the engine
// issues must be durable before the corresponding transition is announced.
type RoundRepository struct {
	dbHandler *mysql.Handler
}

func NewRoundRepository(dbHandler *mysql.Handler) *RoundRepository {
	return &RoundRepository{dbHandler: dbHandler}
}

func (r *RoundRepository) SaveRound(round *game.Round) error {
	const op = "repository.RoundRepository.SaveRound"

	_, err := r.dbHandler.PrepareAndExecute(
		`INSERT INTO rounds
			(id, uuid, phase, seed, commitment, crash_point, revealed, betting_opened_at, betting_closes_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		round.ID,
		round.UUID.String(),
		string(round.Phase),
		round.Seed,
		round.Commitment,
		round.CrashPoint.StringFixed(2),
		round.Revealed,
		round.BettingOpenedAt,
		round.BettingClosesAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RoundRepository) UpdateRoundPhase(roundID uint64, phase game.Phase) error {
	const op = "repository.RoundRepository.UpdateRoundPhase"

	_, err := r.dbHandler.PrepareAndExecute(
		`UPDATE rounds SET phase = ? WHERE id = ?`,
		string(phase), roundID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RoundRepository) MarkRevealed(roundID uint64) error {
	const op = "repository.RoundRepository.MarkRevealed"

	_, err := r.dbHandler.PrepareAndExecute(
		`UPDATE rounds SET revealed = TRUE, crashed_at = NOW() WHERE id = ?`,
		roundID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RoundRepository) SaveBet(bet *game.Bet) error {
	const op = "repository.RoundRepository.SaveBet"

	autoCashout := ""
	if bet.HasAutoCashout() {
		autoCashout = bet.AutoCashout.StringFixed(2)
	}

	_, err := r.dbHandler.PrepareAndExecute(
		`INSERT INTO bets
			(uuid, round_id, user_uuid, stake, auto_cashout, status, placed_at)
		VALUES (?, ?, ?, ?, NULLIF(?, ''), ?, ?)`,
		bet.ID.String(),
		bet.RoundID,
		bet.UserUUID,
		bet.Stake,
		autoCashout,
		bet.Status().String(),
		bet.PlacedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RoundRepository) UpdateBetResolution(bet *game.Bet) error {
	const op = "repository.RoundRepository.UpdateBetResolution"

	res := bet.Resolution()

	_, err := r.dbHandler.PrepareAndExecute(
		`UPDATE bets
		SET status = ?, multiplier = ?, payout = ?, resolved_at = ?
		WHERE uuid = ?`,
		res.StatusName,
		res.Multiplier.StringFixed(2),
		res.Payout,
		res.ResolvedAt,
		res.BetID.String())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RoundRepository) SaveRoundStats(stats game.RoundStats) error {
	const op = "repository.RoundRepository.SaveRoundStats"

	_, err := r.dbHandler.PrepareAndExecute(
		`INSERT INTO round_stats
			(round_id, total_bets, total_staked, total_paid_out, unique_players, highest_stake)
		VALUES (?, ?, ?, ?, ?, ?)`,
		stats.RoundID,
		stats.TotalBets,
		stats.TotalStaked,
		stats.TotalPaidOut,
		stats.UniquePlayers,
		stats.HighestStake)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *RoundRepository) LastRoundID() (uint64, error) {
	const op = "repository.RoundRepository.LastRoundID"

	row, err := r.dbHandler.PrepareAndQueryRow(`SELECT COALESCE(MAX(id), 0) FROM rounds`)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var lastID uint64

	if err = row.Scan(&lastID); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return lastID, nil
}

// UnsettledBets returns placed bets from rounds that never reached a
// terminal phase. The engine voids them on startup.
func (r *RoundRepository) UnsettledBets() ([]game.UnsettledBet, error) {
	const op = "repository.RoundRepository.UnsettledBets"

	rows, err := r.dbHandler.PrepareAndQuery(
		`SELECT b.uuid, b.round_id, b.user_uuid, b.stake
		FROM bets b
		JOIN rounds r ON r.id = b.round_id
		WHERE b.status = 'placed' AND r.phase NOT IN ('settled', 'voided')`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var bets []game.UnsettledBet

	for rows.Next() {
		var (
			bet     game.UnsettledBet
			betUUID string
		)

		if err = rows.Scan(&betUUID, &bet.RoundID, &bet.UserUUID, &bet.Stake); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		bet.BetUUID, err = uuid.Parse(betUUID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		bets = append(bets, bet)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bets, nil
}

func (r *RoundRepository) VoidRound(roundID uint64) error {
	const op = "repository.RoundRepository.VoidRound"

	if _, err := r.dbHandler.PrepareAndExecute(
		`UPDATE rounds SET phase = 'voided' WHERE id = ?`, roundID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := r.dbHandler.PrepareAndExecute(
		`UPDATE bets SET status = 'void', resolved_at = NOW()
		WHERE round_id = ? AND status = 'placed'`, roundID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
