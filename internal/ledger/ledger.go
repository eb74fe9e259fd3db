package ledger

import (
	"errors"
	"time"
)

type Kind string

const (
	BetDebit     Kind = "BET_DEBIT"
	PayoutCredit Kind = "PAYOUT_CREDIT"
	VoidRefund   Kind = "VOID_REFUND"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// Transaction is one append-only ledger row. Amount is signed cents and
// BalanceAfter snapshots the wallet right after the row was applied, so the
// full log replays to the current balance.
type Transaction struct {
	ID           int64     `json:"id"`
	UserUUID     string    `json:"user_uuid"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	Kind         Kind      `json:"kind"`
	Reference    string    `json:"reference"`
	CreatedAt    time.Time `json:"created_at"`
}

// Entry is one leg of a settlement batch.
type Entry struct {
	UserUUID  string
	Amount    int64
	Kind      Kind
	Reference string
}

// Ledger owns wallets. Balances mutate only through Debit/Credit, each
// atomic with its transaction row. Operations against the same wallet are
// serialized; distinct wallets proceed concurrently. A Credit whose
// reference was already applied is a no-op, which makes settlement replay
// safe.
type Ledger interface {
	Balance(userUUID string) (int64, error)
	Debit(userUUID string, amount int64, kind Kind, reference string) (*Transaction, error)
	Credit(userUUID string, amount int64, kind Kind, reference string) (*Transaction, error)

	// CreditBatch applies all entries as a single atomic batch.
	CreditBatch(entries []Entry) error
}
