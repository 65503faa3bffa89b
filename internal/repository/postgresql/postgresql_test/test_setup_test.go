package postgresql_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-dispatch/migrations"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// NewTestDatabase connects to TEST_DATABASE_URL, applies the migrations and
// empties the payroll tables. The test is skipped when no database is configured.
func NewTestDatabase(t *testing.T) *database.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.NewPostgreSQLDB(ctx, dsn, database.PoolConfig{MaxConns: 5, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, database.Migrate(migrations.FS, dsn))
	require.NoError(t, truncateAllTables(ctx, db))
	return db
}

func truncateAllTables(ctx context.Context, db *database.DB) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tables := []string{
		"payment_batch_items",
		"payment_batches",
		"payroll_lines",
		"payroll_runs",
		"bank_accounts",
		"employees",
	}

	for _, table := range tables {
		if _, err := tx.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit(ctx)
}

func createTestEmployee(t *testing.T, db *database.DB, companyID, name string, active bool) string {
	t.Helper()

	var id string
	err := db.QueryRow(context.Background(), `
		INSERT INTO employees (company_id, full_name, tax_id, active, contract_type, salary, overtime_rate, payment_key, payment_key_type)
		VALUES ($1, $2, '39053344705', $3, 'monthly', 3000, 20, $4, 'email')
		RETURNING id
	`, companyID, name, active, name+"@example.com").Scan(&id)
	require.NoError(t, err)
	return id
}

func createTestBankAccount(t *testing.T, db *database.DB, companyID string) string {
	t.Helper()

	var id string
	err := db.QueryRow(context.Background(), `
		INSERT INTO bank_accounts (company_id, name, bank_code, agency, account_number)
		VALUES ($1, 'Payroll account', '001', '0001', '123456')
		RETURNING id
	`, companyID).Scan(&id)
	require.NoError(t, err)
	return id
}

func newCompanyID() string { return uuid.NewString() }
