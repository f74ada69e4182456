package refdata

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/yourusername/race-time-predictor/internal/models"
)

func setupSQLite(t *testing.T, inserts ...string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(Schema)
	require.NoError(t, err)
	for _, stmt := range inserts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return db
}

var baseInserts = []string{
	`INSERT INTO country_frequency VALUES ('Spain', 0.12), ('France', 0.07)`,
	`INSERT INTO event_location_frequency VALUES ('Barcelona', 0.08), ('Nice', 0.05)`,
	`INSERT INTO event_country_frequency VALUES ('Spain', 0.12), ('France', 0.07)`,
	`INSERT INTO location_attributes VALUES
		('Barcelona', 'Spain', 'Sea', 'Flat', 'Flat', 41.3851, 2.1734, 12, 22, 20),
		('Barcelona', 'Spain', 'Sea', 'Flat', 'Flat', 41.3851, 2.1734, 12, 22, 20),
		('Nice', 'France', 'Sea', 'Hilly', 'Flat', 43.7102, 7.262, 10, 25, NULL)`,
	`INSERT INTO sport_types_per_location VALUES
		(1, 0.08, 'Swim Type_Sea', 1), (1, 0.08, 'Bike Type_Hilly', 0),
		(2, 0.05, 'Swim Type_Sea', 1), (2, 0.05, 'Bike Type_Hilly', 1)`,
	`INSERT INTO historical_results VALUES ('Barcelona', 2100, 9000, 6000), ('Nice', 2500, 10000, NULL)`,
}

func TestSQLLoaderLoad(t *testing.T) {
	db := setupSQLite(t, baseInserts...)

	tables, err := NewSQLLoader(NewSQLQueryer(db), "sqlite").Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0.12, tables.CountryFrequency["Spain"])
	assert.Len(t, tables.LocationAttributes, 2)
	assert.Equal(t, "France", tables.LocationAttributes["Nice"].HostCountry)
	assert.ElementsMatch(t, []string{"Swim Type_Sea", "Bike Type_Hilly"}, tables.SportTypeColumns)

	row, err := tables.SportTypesFor(0.05)
	require.NoError(t, err)
	assert.Equal(t, 1.0, row.Values["Bike Type_Hilly"])
	assert.Len(t, tables.HistoricalResults, 2)
}

func TestSQLLoaderConflictingHostCountry(t *testing.T) {
	inserts := append([]string{}, baseInserts...)
	inserts = append(inserts, `INSERT INTO location_attributes VALUES ('Nice', 'Monaco', 'Sea', 'Hilly', 'Flat', 43.7102, 7.262, 10, 25, NULL)`)
	db := setupSQLite(t, inserts...)

	_, err := NewSQLLoader(NewSQLQueryer(db), "sqlite").Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDataLoad))
}

func TestSQLLoaderIncompleteSportTypeRow(t *testing.T) {
	inserts := append([]string{}, baseInserts...)
	inserts = append(inserts, `INSERT INTO sport_types_per_location VALUES (3, 0.09, 'Swim Type_Sea', 0)`)
	db := setupSQLite(t, inserts...)

	_, err := NewSQLLoader(NewSQLQueryer(db), "sqlite").Load(context.Background())
	require.Error(t, err)

	var loadErr *models.DataLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, models.TableSportTypesPerLocation, loadErr.Table)
}

func TestSQLLoaderMissingTable(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLLoader(NewSQLQueryer(db), "sqlite").Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDataLoad))
}
