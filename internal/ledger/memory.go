package ledger

import (
	"fmt"
	"sync"
	"time"
)

// MemoryLedger keeps wallets and their transaction logs in process memory.
// It backs tests and single-node development runs; production uses the
// MySQL ledger with the same contract.
type MemoryLedger struct {
	mu      sync.Mutex
	wallets map[string]*memWallet
	nextID  int64
}

type memWallet struct {
	mu      sync.Mutex
	balance int64
	log     []Transaction
	refs    map[string]*Transaction
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		wallets: make(map[string]*memWallet),
	}
}

func (l *MemoryLedger) wallet(userUUID string) *memWallet {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.wallets[userUUID]
	if !ok {
		w = &memWallet{refs: make(map[string]*Transaction)}
		l.wallets[userUUID] = w
	}

	return w
}

func (l *MemoryLedger) txID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++

	return l.nextID
}

func (l *MemoryLedger) Balance(userUUID string) (int64, error) {
	w := l.wallet(userUUID)

	w.mu.Lock()
	defer w.mu.Unlock()

	return w.balance, nil
}

func (l *MemoryLedger) Debit(userUUID string, amount int64, kind Kind, reference string) (*Transaction, error) {
	const op = "ledger.memory.Debit"

	if amount <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	w := l.wallet(userUUID)

	w.mu.Lock()
	defer w.mu.Unlock()

	if tx, ok := w.refs[reference]; ok {
		return tx, nil
	}

	if w.balance < amount {
		return nil, fmt.Errorf("%s: %w", op, ErrInsufficientFunds)
	}

	w.balance -= amount

	tx := Transaction{
		ID:           l.txID(),
		UserUUID:     userUUID,
		Amount:       -amount,
		BalanceAfter: w.balance,
		Kind:         kind,
		Reference:    reference,
		CreatedAt:    time.Now(),
	}

	w.log = append(w.log, tx)
	w.refs[reference] = &w.log[len(w.log)-1]

	return &tx, nil
}

func (l *MemoryLedger) Credit(userUUID string, amount int64, kind Kind, reference string) (*Transaction, error) {
	const op = "ledger.memory.Credit"

	if amount <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	w := l.wallet(userUUID)

	w.mu.Lock()
	defer w.mu.Unlock()

	if tx, ok := w.refs[reference]; ok {
		return tx, nil
	}

	w.balance += amount

	tx := Transaction{
		ID:           l.txID(),
		UserUUID:     userUUID,
		Amount:       amount,
		BalanceAfter: w.balance,
		Kind:         kind,
		Reference:    reference,
		CreatedAt:    time.Now(),
	}

	w.log = append(w.log, tx)
	w.refs[reference] = &w.log[len(w.log)-1]

	return &tx, nil
}

func (l *MemoryLedger) CreditBatch(entries []Entry) error {
	const op = "ledger.memory.CreditBatch"

	// Credits cannot fail on balance, so validating amounts up front makes
	// the batch all-or-nothing.
	for _, e := range entries {
		if e.Amount <= 0 {
			return fmt.Errorf("%s: %w", op, ErrInvalidAmount)
		}
	}

	for _, e := range entries {
		if _, err := l.Credit(e.UserUUID, e.Amount, e.Kind, e.Reference); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	return nil
}

// Transactions returns a copy of a wallet's log, oldest first.
func (l *MemoryLedger) Transactions(userUUID string) []Transaction {
	w := l.wallet(userUUID)

	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Transaction, len(w.log))
	copy(out, w.log)

	return out
}
