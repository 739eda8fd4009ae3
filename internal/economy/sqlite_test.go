package economy

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLiteLedger {
	t.Helper()
	ledger, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "ledger", "economy.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	return ledger
}

func TestSQLiteLedger(t *testing.T) {
	ctx := context.Background()
	ledger := openTestSQLite(t)

	_, err := ledger.Balance(ctx, "steve")
	require.ErrorIs(t, err, ErrAccountNotFound)
	require.ErrorIs(t, ledger.Debit(ctx, "steve", 1), ErrAccountNotFound)

	require.NoError(t, ledger.Deposit(ctx, "steve", 10))
	require.NoError(t, ledger.Deposit(ctx, "steve", 5.5))

	balance, err := ledger.Balance(ctx, "steve")
	require.NoError(t, err)
	assert.InDelta(t, 15.5, balance, 1e-9)

	require.NoError(t, ledger.Debit(ctx, "steve", 5.5))
	require.ErrorIs(t, ledger.Debit(ctx, "steve", 10.01), ErrInsufficientFunds)

	balance, err = ledger.Balance(ctx, "steve")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, balance, 1e-9)
}

func TestSQLiteLedger_ReopenKeepsBalances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "economy.db")

	ledger, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, ledger.Deposit(ctx, "alex", 42))
	require.NoError(t, ledger.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	balance, err := reopened.Balance(ctx, "alex")
	require.NoError(t, err)
	assert.InDelta(t, 42.0, balance, 1e-9)
}

func TestSQLiteLedger_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	ledger := openTestSQLite(t)
	require.NoError(t, ledger.Deposit(ctx, "steve", 10))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ledger.Debit(ctx, "steve", 1) == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	balance, err := ledger.Balance(ctx, "steve")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, balance, 1e-9)
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "")
	require.Error(t, err)
}
