// Package refdata loads the reference tables the feature pipeline joins against.
package refdata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/yourusername/race-time-predictor/internal/config"
	"github.com/yourusername/race-time-predictor/internal/models"
)

// SourceType represents where reference tables are read from
type SourceType string

const (
	// CSVSource reads one CSV file per table
	CSVSource SourceType = "csv"
	// PostgresSource reads tables from PostgreSQL
	PostgresSource SourceType = "postgres"
	// SQLiteSource reads tables from an SQLite file
	SQLiteSource SourceType = "sqlite"
)

// Loader loads the complete set of reference tables eagerly into memory
type Loader interface {
	// Load reads and validates every table. Failures are *models.DataLoadError.
	Load(ctx context.Context) (*models.ReferenceTables, error)

	// Name returns the name of the source
	Name() string
}

// Load builds the loader described by cfg, loads the tables and logs a
// summary. pool is only used for the postgres source.
func Load(ctx context.Context, cfg config.ReferenceDataConfig, pool *pgxpool.Pool, logger *logrus.Logger) (*models.ReferenceTables, error) {
	var loader Loader
	switch SourceType(cfg.Source) {
	case CSVSource, "":
		loader = NewCSVLoader(cfg.Dir, cfg.Files)

	case PostgresSource:
		if pool == nil {
			return nil, fmt.Errorf("postgres reference data source requires a database connection")
		}
		loader = NewSQLLoader(NewPgxQueryer(pool), "postgres")

	case SQLiteSource:
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, models.NewDataLoadError("sqlite", "failed to open database", err)
		}
		defer db.Close()
		loader = NewSQLLoader(NewSQLQueryer(db), "sqlite")

	default:
		return nil, fmt.Errorf("unknown reference data source: %s", cfg.Source)
	}

	start := time.Now()
	tables, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{
		"component": "refdata",
		"source":    loader.Name(),
		"duration":  time.Since(start).String(),
	}
	for table, rows := range tables.RowCounts() {
		fields[table] = rows
	}
	logger.WithFields(fields).Info("Reference data loaded")

	return tables, nil
}
