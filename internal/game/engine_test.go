package game

import (
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"go-aviator/internal/config"
	"go-aviator/internal/curve"
	"go-aviator/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type stubSource struct {
	crash decimal.Decimal
	fail  bool
}

func (s stubSource) GenerateSeed() (string, error) {
	if s.fail {
		return "", errors.New("entropy unavailable")
	}

	return "test-seed", nil
}

func (s stubSource) Commitment(seed string) string {
	return "commit-" + seed
}

func (s stubSource) CrashPoint(string, uint64) decimal.Decimal {
	return s.crash
}

type captureHub struct {
	mu     sync.Mutex
	events []string
}

func (h *captureHub) Publish(event string, _ map[string]interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, event)
}

func (h *captureHub) seen(event string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range h.events {
		if e == event {
			return true
		}
	}

	return false
}

// Test timings: 10ms ticks with 1.05 growth reach 2.00x after 15 ticks
// (150ms) and 2.50x after 19 ticks (190ms), leaving comfortable margins
// between the scripted deadlines.
func testGameConfig() config.Game {
	return config.Game{
		BettingWindow: 100 * time.Millisecond,
		GameDuration:  5 * time.Second,
		GracePeriod:   30 * time.Millisecond,
		RoundInterval: 40 * time.Millisecond,
		TickInterval:  10 * time.Millisecond,
		MinBet:        100,
		MaxBet:        1000000,
		MinMultiplier: "1.00",
		MaxMultiplier: "50.00",
		HouseEdge:     "0.03",
		GrowthFactor:  "1.05",
	}
}

func newTestEngine(t *testing.T, crash string) (*Engine, *ledger.MemoryLedger, *captureHub) {
	t.Helper()

	cfg := testGameConfig()

	crv := curve.New(cfg.TickInterval, decimal.RequireFromString(cfg.GrowthFactor), cfg.GameDuration)
	ldg := ledger.NewMemoryLedger()
	hub := &captureHub{}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	e, err := NewEngine(log, cfg, stubSource{crash: decimal.RequireFromString(crash)}, crv, ldg, NopStore{}, hub)
	require.NoError(t, err)

	t.Cleanup(e.Stop)

	return e, ldg, hub
}

func (e *Engine) testPhase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.round == nil {
		return PhaseScheduled
	}

	return e.round.Phase
}

func waitForPhase(t *testing.T, e *Engine, want Phase, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if e.testPhase() == want {
			return
		}

		time.Sleep(2 * time.Millisecond)
	}

	t.Fatalf("phase %s not reached within %s, stuck at %s", want, timeout, e.testPhase())
}

func countByPrefix(txs []ledger.Transaction, prefix string) int {
	n := 0

	for _, tx := range txs {
		if strings.HasPrefix(tx.Reference, prefix) {
			n++
		}
	}

	return n
}

func TestAutoCashoutScenario(t *testing.T) {
	t.Parallel()

	e, ldg, hub := newTestEngine(t, "2.50")

	_, err := ldg.Credit("player", 10000, ledger.VoidRefund, "seed-funds")
	require.NoError(t, err)

	require.NoError(t, e.Start())
	waitForPhase(t, e, PhaseBetting, time.Second)

	bet, err := e.PlaceBet("player", 10000, decimal.RequireFromString("2.00"))
	require.NoError(t, err)

	balance, _ := ldg.Balance("player")
	assert.EqualValues(t, 0, balance, "stake debited on placement")

	waitForPhase(t, e, PhaseFlying, time.Second)
	waitForPhase(t, e, PhaseCrashed, time.Second)
	waitForPhase(t, e, PhaseSettled, time.Second)

	res := bet.Resolution()
	assert.Equal(t, StatusCashedOut, res.Status)
	assert.Equal(t, "2.00", res.Multiplier.StringFixed(2))
	assert.EqualValues(t, 20000, res.Payout)

	balance, _ = ldg.Balance("player")
	assert.EqualValues(t, 20000, balance, "payout credited at settlement")

	assert.Equal(t, 1, countByPrefix(ldg.Transactions("player"), "WIN_"), "payout credited exactly once")

	assert.True(t, hub.seen(EventRoundOpened))
	assert.True(t, hub.seen(EventBetCashedOut))
	assert.True(t, hub.seen(EventCrashed))
	assert.True(t, hub.seen(EventRoundSettled))
}

func TestLateBetRejectedWithoutDebit(t *testing.T) {
	t.Parallel()

	e, ldg, _ := newTestEngine(t, "2.00")

	_, err := ldg.Credit("player", 5000, ledger.VoidRefund, "seed-funds")
	require.NoError(t, err)

	require.NoError(t, e.Start())
	waitForPhase(t, e, PhaseBetting, time.Second)
	waitForPhase(t, e, PhaseFlying, time.Second)

	_, err = e.PlaceBet("player", 1000, decimal.Decimal{})
	assert.ErrorIs(t, err, ErrBettingWindowClosed)

	balance, _ := ldg.Balance("player")
	assert.EqualValues(t, 5000, balance, "rejected bet must not move money")
	assert.Len(t, ldg.Transactions("player"), 1, "only the seed credit exists")
}

func TestManualCashoutAfterCrashIsLost(t *testing.T) {
	t.Parallel()

	e, ldg, _ := newTestEngine(t, "1.50")

	_, err := ldg.Credit("player", 10000, ledger.VoidRefund, "seed-funds")
	require.NoError(t, err)

	require.NoError(t, e.Start())
	waitForPhase(t, e, PhaseBetting, time.Second)

	bet, err := e.PlaceBet("player", 10000, decimal.Decimal{})
	require.NoError(t, err)

	waitForPhase(t, e, PhaseCrashed, time.Second)

	res, err := e.Cashout("player", bet.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusLost, res.Status)
	assert.EqualValues(t, 0, res.Payout)

	waitForPhase(t, e, PhaseSettled, time.Second)

	balance, _ := ldg.Balance("player")
	assert.EqualValues(t, 0, balance, "lost stake stays with the house")
	assert.Equal(t, 0, countByPrefix(ldg.Transactions("player"), "WIN_"))
}

// A cash-out past the precomputed crash point must lose even before the
// crash transition has run: the hidden value is authoritative.
func TestCashoutPastHiddenCrashPointIsLost(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestEngine(t, "1.50")

	bet := NewBet(7, "player", 1000, decimal.Decimal{})

	registry := NewRegistry()
	require.NoError(t, registry.Add(bet))

	e.mu.Lock()
	e.round = &Round{
		ID:              7,
		Phase:           PhaseFlying,
		CrashPoint:      decimal.RequireFromString("1.50"),
		FlightStartedAt: time.Now().Add(-time.Second),
		crashTicks:      9,
		Registry:        registry,
	}
	e.mu.Unlock()

	res, err := e.Cashout("player", bet.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusLost, res.Status)
	assert.EqualValues(t, 0, res.Payout)
}

func TestManualAndAutoCashoutResolveOnce(t *testing.T) {
	t.Parallel()

	e, ldg, _ := newTestEngine(t, "2.50")

	_, err := ldg.Credit("player", 10000, ledger.VoidRefund, "seed-funds")
	require.NoError(t, err)

	require.NoError(t, e.Start())
	waitForPhase(t, e, PhaseBetting, time.Second)

	bet, err := e.PlaceBet("player", 10000, decimal.RequireFromString("2.00"))
	require.NoError(t, err)

	waitForPhase(t, e, PhaseFlying, time.Second)

	// Hammer manual cash-out across the whole flight so some attempts land
	// in the same tick as the auto-cashout timer.
	done := make(chan struct{})

	go func() {
		defer close(done)

		for bet.Status() == StatusPlaced {
			_, _ = e.Cashout("player", bet.ID)

			time.Sleep(time.Millisecond)
		}
	}()

	waitForPhase(t, e, PhaseSettled, time.Second)
	<-done

	res := bet.Resolution()
	assert.Equal(t, StatusCashedOut, res.Status)

	assert.Equal(t, 1, countByPrefix(ldg.Transactions("player"), "WIN_"), "exactly one payout")

	balance, _ := ldg.Balance("player")
	assert.EqualValues(t, res.Payout, balance)
}

func TestEntropyFailureHaltsEngine(t *testing.T) {
	t.Parallel()

	cfg := testGameConfig()

	crv := curve.New(cfg.TickInterval, decimal.RequireFromString(cfg.GrowthFactor), cfg.GameDuration)
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	e, err := NewEngine(log, cfg, stubSource{fail: true}, crv, ledger.NewMemoryLedger(), NopStore{}, &captureHub{})
	require.NoError(t, err)

	t.Cleanup(e.Stop)

	require.NoError(t, e.Start())

	time.Sleep(cfg.RoundInterval + 50*time.Millisecond)

	assert.True(t, e.Halted(), "entropy failure must halt the engine")
	assert.Equal(t, PhaseScheduled, e.testPhase(), "no round may start without a seed")
}

func TestLedgerConservationAcrossRound(t *testing.T) {
	t.Parallel()

	e, ldg, _ := newTestEngine(t, "2.50")

	players := []string{"alice", "bob", "carol"}
	for _, p := range players {
		_, err := ldg.Credit(p, 10000, ledger.VoidRefund, "seed-"+p)
		require.NoError(t, err)
	}

	require.NoError(t, e.Start())
	waitForPhase(t, e, PhaseBetting, time.Second)

	// alice cashes out at 1.50x, bob at 2.00x, carol rides to the crash.
	_, err := e.PlaceBet("alice", 4000, decimal.RequireFromString("1.50"))
	require.NoError(t, err)

	_, err = e.PlaceBet("bob", 3000, decimal.RequireFromString("2.00"))
	require.NoError(t, err)

	_, err = e.PlaceBet("carol", 2000, decimal.Decimal{})
	require.NoError(t, err)

	waitForPhase(t, e, PhaseSettled, 2*time.Second)

	var staked, paid, deltas int64

	staked = 4000 + 3000 + 2000
	paid = payoutFor(4000, decimal.RequireFromString("1.50")) + payoutFor(3000, decimal.RequireFromString("2.00"))

	for _, p := range players {
		balance, _ := ldg.Balance(p)
		deltas += balance - 10000
	}

	assert.Equal(t, paid-staked, deltas, "wallet deltas must equal payouts minus stakes")
}

func TestPlaceBetValidation(t *testing.T) {
	t.Parallel()

	e, ldg, _ := newTestEngine(t, "2.00")

	_, err := ldg.Credit("player", 100000, ledger.VoidRefund, "seed-funds")
	require.NoError(t, err)

	require.NoError(t, e.Start())
	waitForPhase(t, e, PhaseBetting, time.Second)

	_, err = e.PlaceBet("player", 50, decimal.Decimal{})
	assert.ErrorIs(t, err, ErrStakeOutOfRange, "below minimum")

	_, err = e.PlaceBet("player", 2000000, decimal.Decimal{})
	assert.ErrorIs(t, err, ErrStakeOutOfRange, "above maximum")

	_, err = e.PlaceBet("player", 1000, decimal.RequireFromString("0.50"))
	assert.ErrorIs(t, err, ErrInvalidAutoCashout)

	_, err = e.PlaceBet("player", 1000, decimal.RequireFromString("99.00"))
	assert.ErrorIs(t, err, ErrInvalidAutoCashout)

	_, err = e.PlaceBet("player", 1000, decimal.Decimal{})
	require.NoError(t, err)

	_, err = e.PlaceBet("player", 1000, decimal.Decimal{})
	assert.ErrorIs(t, err, ErrAlreadyBet)

	_, err = e.PlaceBet("pauper", 1000, decimal.Decimal{})
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
}
