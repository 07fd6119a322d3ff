package pgstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	apitesting "github.com/learnalabs/educaster/api/testing"
	ectesting "github.com/learnalabs/educaster/utils/pkg/testing"
)

var testDB *apitesting.DB

func TestMain(m *testing.M) {
	log := ectesting.NewLogger()

	var err error
	testDB, err = apitesting.NewDB(context.Background(), log, nil)
	if err != nil {
		log.Error("failed to start PostgreSQL container", "error", err)
		os.Exit(1)
	}

	code := m.Run()

	testDB.Close()
	os.Exit(code)
}

// testPool migrates the shared container and returns a pool with all ledger
// tables truncated, so tests do not see each other's rows.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	apitesting.Migrate(t, testDB)
	pool := apitesting.NewTestPool(t, testDB)

	_, err := pool.Exec(t.Context(), `
		TRUNCATE reward_snapshots, bans, answered_questions, profiles,
		         campaign_weeks, campaigns, user_totals, balances, admins,
		         owner, epoch
	`)
	require.NoError(t, err)

	return pool
}
