package economy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Visual-Illusions/NewU/internal/economy/migrations"
)

// PostgresLedger keeps balances in PostgreSQL.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn, applies migrations and returns the ledger.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresLedger, error) {
	if err := migratePostgres(ctx, dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PostgresLedger{pool: pool}, nil
}

func migratePostgres(ctx context.Context, dsn string) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening sql connection for migrations: %w", err)
	}
	defer sqlDB.Close()
	return runMigrations(ctx, sqlDB, "postgres", migrations.Postgres, "postgres")
}

// Close closes the connection pool.
func (l *PostgresLedger) Close() {
	l.pool.Close()
}

// Balance returns the actor's balance.
func (l *PostgresLedger) Balance(ctx context.Context, actorID string) (float64, error) {
	var balance float64
	err := l.pool.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE actor_id = $1`, actorID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, actorID)
		}
		return 0, fmt.Errorf("querying balance of %q: %w", actorID, err)
	}
	return balance, nil
}

// Debit subtracts amount when the balance covers it.
func (l *PostgresLedger) Debit(ctx context.Context, actorID string, amount float64) error {
	tag, err := l.pool.Exec(ctx,
		`UPDATE accounts SET balance = balance - $1, updated_at = now()
		 WHERE actor_id = $2 AND balance >= $1`,
		amount, actorID,
	)
	if err != nil {
		return fmt.Errorf("debiting %q: %w", actorID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := l.Balance(ctx, actorID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrInsufficientFunds, actorID)
	}
	return nil
}

// Deposit credits amount, creating the account if needed.
func (l *PostgresLedger) Deposit(ctx context.Context, actorID string, amount float64) error {
	_, err := l.pool.Exec(ctx,
		`INSERT INTO accounts (actor_id, balance) VALUES ($1, $2)
		 ON CONFLICT (actor_id) DO UPDATE
		 SET balance = accounts.balance + EXCLUDED.balance, updated_at = now()`,
		actorID, amount,
	)
	if err != nil {
		return fmt.Errorf("depositing to %q: %w", actorID, err)
	}
	return nil
}
