package database

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestDSNEnv names the environment variable holding the integration test database
const TestDSNEnv = "TRI_PREDICTOR_TEST_DATABASE_DSN"

// SetupTestDB connects to the integration test database and applies the
// schema. The test is skipped when no database is configured.
func SetupTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv(TestDSNEnv)
	if dsn == "" {
		t.Skipf("integration test: set %s to run", TestDSNEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := Connect(ctx, dsn, 4, 1)
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}
	if err := db.ApplySchema(ctx); err != nil {
		db.Close()
		t.Fatal(err)
	}

	t.Cleanup(db.Close)
	return db
}
