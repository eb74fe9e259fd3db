package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"go-aviator/internal/lib/logger/sl"
	"go-aviator/internal/storage/mysql"

	"golang.org/x/exp/slog"
)

// SQLLedger is the durable ledger. Every mutation runs in a storage
// transaction that locks the wallet row, so per-wallet serialization comes
// from the database while distinct wallets do not contend.
type SQLLedger struct {
	dbhandler *mysql.Handler
	log       *slog.Logger
}

func NewSQLLedger(dbhandler *mysql.Handler, log *slog.Logger) *SQLLedger {
	return &SQLLedger{
		dbhandler: dbhandler,
		log:       log,
	}
}

func (l *SQLLedger) Balance(userUUID string) (int64, error) {
	const op = "ledger.sql.Balance"

	const query = "SELECT balance FROM wallets WHERE user_uuid = ?"

	row, err := l.dbhandler.PrepareAndQueryRow(query, userUUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var balance int64

	if err = row.Scan(&balance); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return balance, nil
}

func (l *SQLLedger) Debit(userUUID string, amount int64, kind Kind, reference string) (*Transaction, error) {
	const op = "ledger.sql.Debit"

	if amount <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	tx, err := l.dbhandler.StartTransaction()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entry, err := l.apply(tx, Entry{UserUUID: userUUID, Amount: -amount, Kind: kind, Reference: reference})
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			l.log.Error("rollback failed", sl.Err(rbErr))
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entry, nil
}

func (l *SQLLedger) Credit(userUUID string, amount int64, kind Kind, reference string) (*Transaction, error) {
	const op = "ledger.sql.Credit"

	if amount <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidAmount)
	}

	tx, err := l.dbhandler.StartTransaction()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	entry, err := l.apply(tx, Entry{UserUUID: userUUID, Amount: amount, Kind: kind, Reference: reference})
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			l.log.Error("rollback failed", sl.Err(rbErr))
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entry, nil
}

func (l *SQLLedger) CreditBatch(entries []Entry) error {
	const op = "ledger.sql.CreditBatch"

	tx, err := l.dbhandler.StartTransaction()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, e := range entries {
		if e.Amount <= 0 {
			if rbErr := tx.Rollback(); rbErr != nil {
				l.log.Error("rollback failed", sl.Err(rbErr))
			}

			return fmt.Errorf("%s: %w", op, ErrInvalidAmount)
		}

		if _, err = l.apply(tx, e); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				l.log.Error("rollback failed", sl.Err(rbErr))
			}

			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// apply writes one signed ledger row inside the caller's transaction. An
// already-applied reference returns the recorded row untouched, which is
// what makes settlement replay idempotent.
func (l *SQLLedger) apply(tx *sql.Tx, e Entry) (*Transaction, error) {
	existing, err := l.findByReference(tx, e.Reference)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return existing, nil
	}

	var balance int64

	row := tx.QueryRow("SELECT balance FROM wallets WHERE user_uuid = ? FOR UPDATE", e.UserUUID)
	if err = row.Scan(&balance); err != nil {
		return nil, err
	}

	after := balance + e.Amount
	if after < 0 {
		return nil, ErrInsufficientFunds
	}

	now := time.Now()

	if _, err = tx.Exec(
		"UPDATE wallets SET balance = ?, updated_at = ? WHERE user_uuid = ?",
		after, now, e.UserUUID,
	); err != nil {
		return nil, err
	}

	res, err := tx.Exec(
		"INSERT INTO wallet_transactions(user_uuid, amount, balance_after, kind, reference, created_at) "+
			"VALUES(?, ?, ?, ?, ?, ?)",
		e.UserUUID, e.Amount, after, string(e.Kind), e.Reference, now,
	)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &Transaction{
		ID:           id,
		UserUUID:     e.UserUUID,
		Amount:       e.Amount,
		BalanceAfter: after,
		Kind:         e.Kind,
		Reference:    e.Reference,
		CreatedAt:    now,
	}, nil
}

func (l *SQLLedger) findByReference(tx *sql.Tx, reference string) (*Transaction, error) {
	const query = "SELECT id, user_uuid, amount, balance_after, kind, reference, created_at " +
		"FROM wallet_transactions WHERE reference = ?"

	existing := &Transaction{}

	row := tx.QueryRow(query, reference)

	err := row.Scan(
		&existing.ID,
		&existing.UserUUID,
		&existing.Amount,
		&existing.BalanceAfter,
		&existing.Kind,
		&existing.Reference,
		&existing.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, err
	}

	return existing, nil
}
