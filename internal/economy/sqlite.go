package economy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/Visual-Illusions/NewU/internal/economy/migrations"
)

// SQLiteLedger keeps balances in a local SQLite file.
type SQLiteLedger struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the ledger at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteLedger, error) {
	if path == "" {
		return nil, errors.New("empty ledger path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite ledger: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("applying %q: %w", p, err)
		}
	}

	if err := runMigrations(ctx, db, "sqlite3", migrations.SQLite, "sqlite"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteLedger{db: db}, nil
}

// Close closes the database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// Balance returns the actor's balance.
func (l *SQLiteLedger) Balance(ctx context.Context, actorID string) (float64, error) {
	var balance float64
	err := l.db.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE actor_id = ?`, actorID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, actorID)
		}
		return 0, fmt.Errorf("querying balance of %q: %w", actorID, err)
	}
	return balance, nil
}

// Debit subtracts amount when the balance covers it.
func (l *SQLiteLedger) Debit(ctx context.Context, actorID string, amount float64) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE accounts
		 SET balance = balance - ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		 WHERE actor_id = ? AND balance >= ?`,
		amount, actorID, amount,
	)
	if err != nil {
		return fmt.Errorf("debiting %q: %w", actorID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debiting %q: %w", actorID, err)
	}
	if n == 0 {
		if _, err := l.Balance(ctx, actorID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, actorID)
	}
	return nil
}

// Deposit credits amount, creating the account if needed.
func (l *SQLiteLedger) Deposit(ctx context.Context, actorID string, amount float64) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO accounts (actor_id, balance) VALUES (?, ?)
		 ON CONFLICT (actor_id) DO UPDATE
		 SET balance = accounts.balance + excluded.balance,
		     updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		actorID, amount,
	)
	if err != nil {
		return fmt.Errorf("depositing to %q: %w", actorID, err)
	}
	return nil
}
