package ledger

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestDebitInsufficientFunds(t *testing.T) {
	t.Parallel()

	l := NewMemoryLedger()

	if _, err := l.Credit("player", 500, VoidRefund, "seed-1"); err != nil {
		t.Fatalf("seed credit: %v", err)
	}

	if _, err := l.Debit("player", 600, BetDebit, "bet-1"); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}

	balance, _ := l.Balance("player")
	if balance != 500 {
		t.Errorf("failed debit mutated balance: %d", balance)
	}

	if len(l.Transactions("player")) != 1 {
		t.Errorf("failed debit appended a transaction")
	}
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	t.Parallel()

	const (
		bets  = 1000
		stake = int64(100)
	)

	l := NewMemoryLedger()

	// Funds for exactly 999 bets.
	if _, err := l.Credit("player", stake*(bets-1), VoidRefund, "seed"); err != nil {
		t.Fatalf("seed credit: %v", err)
	}

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		successes    int
		insufficient int
	)

	for i := 0; i < bets; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			_, err := l.Debit("player", stake, BetDebit, fmt.Sprintf("bet-%d", i))

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrInsufficientFunds):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}

	wg.Wait()

	if successes != bets-1 || insufficient != 1 {
		t.Errorf("want 999 successes and 1 rejection, got %d/%d", successes, insufficient)
	}

	balance, _ := l.Balance("player")
	if balance != 0 {
		t.Errorf("balance after concurrent debits: %d, want 0", balance)
	}
}

func TestCreditIdempotentByReference(t *testing.T) {
	t.Parallel()

	l := NewMemoryLedger()

	first, err := l.Credit("player", 200, PayoutCredit, "WIN_abc")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}

	replay, err := l.Credit("player", 200, PayoutCredit, "WIN_abc")
	if err != nil {
		t.Fatalf("replay credit: %v", err)
	}

	if replay.ID != first.ID {
		t.Errorf("replay created a new transaction")
	}

	balance, _ := l.Balance("player")
	if balance != 200 {
		t.Errorf("replayed credit applied twice, balance %d", balance)
	}
}

func TestLogReplaysToBalance(t *testing.T) {
	t.Parallel()

	l := NewMemoryLedger()

	l.Credit("player", 10000, VoidRefund, "seed")
	l.Debit("player", 2500, BetDebit, "bet-1")
	l.Credit("player", 5000, PayoutCredit, "win-1")
	l.Debit("player", 100, BetDebit, "bet-2")

	var sum int64
	for _, tx := range l.Transactions("player") {
		sum += tx.Amount
	}

	balance, _ := l.Balance("player")
	if sum != balance {
		t.Errorf("transaction log sums to %d, balance is %d", sum, balance)
	}
}
