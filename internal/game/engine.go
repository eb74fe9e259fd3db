package game

import (
	"fmt"
	"sync"
	"time"

	"go-aviator/internal/config"
	"go-aviator/internal/curve"
	"go-aviator/internal/ledger"
	"go-aviator/internal/lib/converter"
	"go-aviator/internal/lib/logger/sl"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slog"
)

const (
	EventRoundOpened    = "round_opened"
	EventBetPlaced      = "bet_placed"
	EventFlightStarted  = "flight_started"
	EventMultiplierTick = "multiplier_tick"
	EventBetCashedOut   = "bet_cashed_out"
	EventCrashed        = "crashed"
	EventRoundSettled   = "round_settled"
)

const settleAttempts = 3

// CrashSource commits to and derives the crash point for a round.
type CrashSource interface {
	GenerateSeed() (string, error)
	Commitment(seed string) string
	CrashPoint(seed string, round uint64) decimal.Decimal
}

// Broadcaster fans events out to connected clients. Publish must never
// block the caller.
type Broadcaster interface {
	Publish(event string, data map[string]interface{})
}

// HistoryRecorder receives finished rounds. Implementations must not block.
type HistoryRecorder interface {
	Record(result RoundResult)
}

// Engine is the authoritative round state machine. Timers drive phase
// transitions, inbound bets and cash-outs arrive from handlers and the
// websocket hub, and every mutation of round state is serialized behind
// the engine mutex. Exactly-once bet resolution is enforced one level
// below, by the compare-and-set on bet status.
type Engine struct {
	log    *slog.Logger
	cfg    config.Game
	source CrashSource
	curve  *curve.Curve
	ledger ledger.Ledger
	store  Store
	hub    Broadcaster

	history HistoryRecorder

	maxMultiplier decimal.Decimal
	minAutoCash   decimal.Decimal

	mu        sync.Mutex
	round     *Round
	seq       uint64
	halted    bool
	stopTick  chan struct{}
	nextTimer *time.Timer
}

func NewEngine(
	log *slog.Logger,
	cfg config.Game,
	source CrashSource,
	crv *curve.Curve,
	ldg ledger.Ledger,
	store Store,
	hub Broadcaster,
) (*Engine, error) {
	const op = "game.NewEngine"

	maxMultiplier, err := decimal.NewFromString(cfg.MaxMultiplier)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Engine{
		log:           log,
		cfg:           cfg,
		source:        source,
		curve:         crv,
		ledger:        ldg,
		store:         store,
		hub:           hub,
		maxMultiplier: maxMultiplier,
		minAutoCash:   decimal.RequireFromString("1.01"),
	}, nil
}

// SetHistory attaches an optional recorder for finished rounds.
func (e *Engine) SetHistory(h HistoryRecorder) {
	e.history = h
}

// Start recovers any round left in flight by a previous crash and schedules
// the first betting window.
func (e *Engine) Start() error {
	const op = "game.engine.Start"

	lastID, err := e.store.LastRoundID()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	e.mu.Lock()
	e.seq = lastID
	e.mu.Unlock()

	if err = e.recover(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	e.scheduleNext(e.cfg.RoundInterval)

	return nil
}

// Stop halts timers and the tick loop. No new round is scheduled afterwards.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.halted = true

	if e.nextTimer != nil {
		e.nextTimer.Stop()
	}

	if e.round != nil {
		e.round.stopTimers()
	}

	e.stopTicking()
}

func (e *Engine) Halted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.halted
}

// recover voids bets stranded in non-terminal rounds. Stakes go back to the
// players as VOID_REFUND; replays are no-ops via the ledger reference.
func (e *Engine) recover() error {
	const op = "game.engine.recover"

	stranded, err := e.store.UnsettledBets()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if len(stranded) == 0 {
		return nil
	}

	voidedRounds := make(map[uint64]struct{})

	for _, b := range stranded {
		if _, err = e.ledger.Credit(b.UserUUID, b.Stake, ledger.VoidRefund, "VOID_"+b.BetUUID.String()); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		voidedRounds[b.RoundID] = struct{}{}
	}

	for roundID := range voidedRounds {
		if err = e.store.VoidRound(roundID); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	e.log.Info("recovered interrupted rounds",
		slog.Int("voided_bets", len(stranded)),
		slog.Int("voided_rounds", len(voidedRounds)))

	return nil
}

func (e *Engine) scheduleNext(delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.halted {
		return
	}

	e.nextTimer = time.AfterFunc(delay, e.openBetting)
}

// openBetting creates the next round: seed, commitment and crash point are
// fixed here, before the first bet is accepted. An entropy failure halts
// the engine instead of starting an unverifiable round.
func (e *Engine) openBetting() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.halted {
		return
	}

	seed, err := e.source.GenerateSeed()
	if err != nil {
		e.halted = true

		e.log.Error("seed generation failed, halting engine", sl.Err(err))

		return
	}

	e.seq++

	crashPoint := e.source.CrashPoint(seed, e.seq)
	now := time.Now()

	round := &Round{
		ID:              e.seq,
		UUID:            uuid.New(),
		Phase:           PhaseBetting,
		Seed:            seed,
		Commitment:      e.source.Commitment(seed),
		CrashPoint:      crashPoint,
		BettingOpenedAt: now,
		BettingClosesAt: now.Add(e.cfg.BettingWindow),
		crashTicks:      e.curve.TicksToReach(crashPoint),
		Registry:        NewRegistry(),
	}

	if err = e.store.SaveRound(round); err != nil {
		e.halted = true

		e.log.Error("failed to persist round, halting engine", sl.Err(err))

		return
	}

	e.round = round

	seq := round.ID
	round.addTimer(time.AfterFunc(e.cfg.BettingWindow, func() {
		e.startFlight(seq)
	}))

	e.log.Info("betting opened",
		sl.Uint64("round", round.ID),
		sl.String("commitment", round.Commitment))

	e.hub.Publish(EventRoundOpened, map[string]interface{}{
		"round_id":          round.ID,
		"round_uuid":        round.UUID.String(),
		"commitment":        round.Commitment,
		"betting_closes_at": round.BettingClosesAt.UTC().Format(time.RFC3339Nano),
	})
}

// PlaceBet validates and admits a bet during the betting window. The wallet
// debit happens synchronously with bet creation: both succeed or neither.
func (e *Engine) PlaceBet(userUUID string, stake int64, autoCashout decimal.Decimal) (*Bet, error) {
	const op = "game.engine.PlaceBet"

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.halted {
		return nil, fmt.Errorf("%s: %w", op, ErrEngineHalted)
	}

	round := e.round
	if round == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNoActiveRound)
	}

	// The phase flips on a timer. The deadline check closes the window for
	// requests that arrive between the deadline and the timer firing.
	if round.Phase != PhaseBetting || !time.Now().Before(round.BettingClosesAt) {
		return nil, fmt.Errorf("%s: %w", op, ErrBettingWindowClosed)
	}

	if stake < e.cfg.MinBet || stake > e.cfg.MaxBet {
		return nil, fmt.Errorf("%s: %w", op, ErrStakeOutOfRange)
	}

	if !autoCashout.IsZero() {
		if autoCashout.LessThan(e.minAutoCash) || autoCashout.GreaterThan(e.maxMultiplier) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidAutoCashout)
		}
	}

	if _, ok := round.Registry.ByUser(userUUID); ok {
		return nil, fmt.Errorf("%s: %w", op, ErrAlreadyBet)
	}

	bet := NewBet(round.ID, userUUID, stake, autoCashout)

	if _, err := e.ledger.Debit(userUUID, stake, ledger.BetDebit, "BET_"+bet.ID.String()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := round.Registry.Add(bet); err != nil {
		e.refundStake(bet)

		return nil, err
	}

	if err := e.store.SaveBet(bet); err != nil {
		e.refundStake(bet)

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	e.hub.Publish(EventBetPlaced, map[string]interface{}{
		"round_id":  round.ID,
		"bet_id":    bet.ID.String(),
		"user_uuid": bet.UserUUID,
		"amount":    converter.CentsToString(bet.Stake),
	})

	return bet, nil
}

func (e *Engine) refundStake(bet *Bet) {
	if _, err := e.ledger.Credit(bet.UserUUID, bet.Stake, ledger.VoidRefund, "VOID_"+bet.ID.String()); err != nil {
		e.log.Error("failed to refund stake after bet rollback",
			sl.Err(err),
			sl.String("bet", bet.ID.String()))
	}
}

func (e *Engine) startFlight(seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	round := e.round
	if e.halted || round == nil || round.ID != seq || round.Phase != PhaseBetting {
		return
	}

	round.Phase = PhaseFlying
	round.FlightStartedAt = time.Now()

	if err := e.store.UpdateRoundPhase(round.ID, PhaseFlying); err != nil {
		e.log.Error("failed to persist flight start", sl.Err(err))
	}

	// Crash deadline comes from the curve inversion of the precomputed
	// crash point, not from observing ticks.
	round.addTimer(time.AfterFunc(time.Duration(round.crashTicks)*e.curve.Tick(), func() {
		e.crash(seq)
	}))

	// Auto-cashout deadlines are scheduled the same way. Timers for targets
	// at or past the crash point never win: the crash deadline fires first
	// and the phase guard invalidates them.
	for _, bet := range round.Registry.All() {
		if !bet.HasAutoCashout() {
			continue
		}

		betID := bet.ID

		round.addTimer(time.AfterFunc(e.curve.TimeToReach(bet.AutoCashout), func() {
			e.autoCashout(seq, betID)
		}))
	}

	stop := make(chan struct{})
	e.stopTick = stop

	go e.tickLoop(round.FlightStartedAt, round.crashTicks, stop)

	e.log.Info("flight started",
		sl.Uint64("round", round.ID),
		slog.Int("bets", round.Registry.Len()))

	e.hub.Publish(EventFlightStarted, map[string]interface{}{
		"round_id": round.ID,
	})
}

// tickLoop broadcasts the live multiplier at a fixed cadence. It never
// touches round state and never blocks on anything but the ticker.
func (e *Engine) tickLoop(start time.Time, crashTicks int, stop chan struct{}) {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n := int(time.Since(start) / e.curve.Tick())
			if n >= crashTicks {
				// Past the crash point; the crash timer owns the rest.
				continue
			}

			e.hub.Publish(EventMultiplierTick, map[string]interface{}{
				"multiplier": e.curve.AtTick(n).Truncate(2).StringFixed(2),
				"elapsed_ms": time.Since(start).Milliseconds(),
			})
		}
	}
}

func (e *Engine) stopTicking() {
	if e.stopTick != nil {
		close(e.stopTick)
		e.stopTick = nil
	}
}

func (e *Engine) elapsedTicks(round *Round) int {
	return int(time.Since(round.FlightStartedAt) / e.curve.Tick())
}

// Cashout resolves a bet manually at the current multiplier. A request that
// arrives after the precomputed crash point resolves the bet as lost even
// if the crash has not been broadcast yet: the precomputed value is
// authoritative, the broadcast is only its reveal. Repeated requests after
// resolution return the recorded outcome.
func (e *Engine) Cashout(userUUID string, betID uuid.UUID) (Resolution, error) {
	const op = "game.engine.Cashout"

	e.mu.Lock()
	defer e.mu.Unlock()

	round := e.round
	if round == nil {
		return Resolution{}, fmt.Errorf("%s: %w", op, ErrNoActiveRound)
	}

	bet, ok := round.Registry.Get(betID)
	if !ok || bet.UserUUID != userUUID {
		return Resolution{}, fmt.Errorf("%s: %w", op, ErrBetNotFound)
	}

	if bet.Status().Terminal() {
		return bet.Resolution(), nil
	}

	switch round.Phase {
	case PhaseBetting:
		return Resolution{}, fmt.Errorf("%s: %w", op, ErrRoundNotFlying)

	case PhaseFlying:
		n := e.elapsedTicks(round)

		if n >= round.crashTicks {
			e.resolveLost(round, bet)

			return bet.Resolution(), nil
		}

		multiplier := e.curve.AtTick(n).Truncate(2)

		if bet.resolve(StatusCashedOut, multiplier, payoutFor(bet.Stake, multiplier)) {
			e.recordCashout(round, bet)
		}

		return bet.Resolution(), nil

	default:
		// Crashed or settled with the bet somehow still placed.
		e.resolveLost(round, bet)

		return bet.Resolution(), nil
	}
}

// autoCashout is the timer-driven resolution at the player's configured
// target. The round-sequence and phase guards discard stale firings.
func (e *Engine) autoCashout(seq uint64, betID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	round := e.round
	if e.halted || round == nil || round.ID != seq || round.Phase != PhaseFlying {
		return
	}

	bet, ok := round.Registry.Get(betID)
	if !ok || bet.Status().Terminal() {
		return
	}

	target := bet.AutoCashout.Truncate(2)

	// The target resolves only strictly below the crash point.
	if target.GreaterThan(round.CrashPoint) || e.elapsedTicks(round) >= round.crashTicks {
		return
	}

	if bet.resolve(StatusCashedOut, target, payoutFor(bet.Stake, target)) {
		e.recordCashout(round, bet)
	}
}

func (e *Engine) recordCashout(round *Round, bet *Bet) {
	if err := e.store.UpdateBetResolution(bet); err != nil {
		e.log.Error("failed to persist cashout", sl.Err(err), sl.String("bet", bet.ID.String()))
	}

	res := bet.Resolution()

	e.hub.Publish(EventBetCashedOut, map[string]interface{}{
		"round_id":   round.ID,
		"bet_id":     bet.ID.String(),
		"user_uuid":  bet.UserUUID,
		"multiplier": res.Multiplier.StringFixed(2),
		"payout":     converter.CentsToString(res.Payout),
	})
}

func (e *Engine) resolveLost(round *Round, bet *Bet) {
	if bet.resolve(StatusLost, round.CrashPoint, 0) {
		if err := e.store.UpdateBetResolution(bet); err != nil {
			e.log.Error("failed to persist loss", sl.Err(err), sl.String("bet", bet.ID.String()))
		}
	}
}

// crash freezes the multiplier at the precomputed crash point, reveals the
// seed, and marks every unresolved bet as lost. Pending timers die with the
// transition.
func (e *Engine) crash(seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	round := e.round
	if e.halted || round == nil || round.ID != seq || round.Phase != PhaseFlying {
		return
	}

	round.stopTimers()
	e.stopTicking()

	round.Phase = PhaseCrashed
	round.Revealed = true
	round.CrashedAt = time.Now()

	for _, bet := range round.Registry.All() {
		e.resolveLost(round, bet)
	}

	if err := e.store.MarkRevealed(round.ID); err != nil {
		e.log.Error("failed to persist reveal", sl.Err(err))
	}

	if err := e.store.UpdateRoundPhase(round.ID, PhaseCrashed); err != nil {
		e.log.Error("failed to persist crash", sl.Err(err))
	}

	e.log.Info("round crashed",
		sl.Uint64("round", round.ID),
		sl.String("multiplier", round.CrashPoint.StringFixed(2)))

	e.hub.Publish(EventCrashed, map[string]interface{}{
		"round_id":   round.ID,
		"multiplier": round.CrashPoint.StringFixed(2),
		"seed":       round.Seed,
	})

	round.addTimer(time.AfterFunc(e.cfg.GracePeriod, func() {
		e.settle(seq)
	}))
}

// settle commits every cashed-out payout as one atomic, idempotent batch
// and archives the round. A durability failure after the retry budget
// halts the engine rather than leaving a partially settled round.
func (e *Engine) settle(seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	round := e.round
	if e.halted || round == nil || round.ID != seq || round.Phase != PhaseCrashed {
		return
	}

	var entries []ledger.Entry

	stats := RoundStats{RoundID: round.ID}
	players := make(map[string]struct{})

	for _, bet := range round.Registry.All() {
		stats.TotalBets++
		stats.TotalStaked += bet.Stake
		players[bet.UserUUID] = struct{}{}

		if bet.Stake > stats.HighestStake {
			stats.HighestStake = bet.Stake
		}

		res := bet.Resolution()
		if res.Status != StatusCashedOut {
			continue
		}

		stats.TotalPaidOut += res.Payout

		entries = append(entries, ledger.Entry{
			UserUUID:  bet.UserUUID,
			Amount:    res.Payout,
			Kind:      ledger.PayoutCredit,
			Reference: "WIN_" + bet.ID.String(),
		})
	}

	stats.UniquePlayers = len(players)

	var err error

	for attempt := 1; attempt <= settleAttempts; attempt++ {
		if err = e.ledger.CreditBatch(entries); err == nil {
			break
		}

		e.log.Error("settlement commit failed",
			sl.Err(err),
			slog.Int("attempt", attempt))
	}

	if err != nil {
		// Fail closed: no new round on top of an unsettled one.
		e.halted = true

		e.log.Error("settlement failed after retries, halting engine",
			sl.Uint64("round", round.ID))

		return
	}

	round.Phase = PhaseSettled

	if err = e.store.UpdateRoundPhase(round.ID, PhaseSettled); err != nil {
		e.halted = true

		e.log.Error("failed to persist settlement, halting engine", sl.Err(err))

		return
	}

	if err = e.store.SaveRoundStats(stats); err != nil {
		e.log.Error("failed to persist round stats", sl.Err(err))
	}

	if e.history != nil {
		e.history.Record(RoundResult{
			RoundID:    round.ID,
			Multiplier: round.CrashPoint.StringFixed(2),
			Seed:       round.Seed,
			Commitment: round.Commitment,
			CrashedAt:  round.CrashedAt,
		})
	}

	e.log.Info("round settled",
		sl.Uint64("round", round.ID),
		slog.Int("payouts", len(entries)))

	e.hub.Publish(EventRoundSettled, map[string]interface{}{
		"round_id":   round.ID,
		"total_paid": converter.CentsToString(stats.TotalPaidOut),
	})

	e.nextTimer = time.AfterFunc(e.cfg.RoundInterval, e.openBetting)
}
