package refdata

import (
	"context"
	"database/sql"
	"errors"
	"math"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yourusername/race-time-predictor/internal/models"
)

// Schema creates the reference tables in a SQL database. Sport types are kept
// in long form, one row per (source row, feature).
const Schema = `
CREATE TABLE IF NOT EXISTS country_frequency (
    country TEXT NOT NULL,
    encoded DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS event_location_frequency (
    event_location TEXT NOT NULL,
    encoded DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS event_country_frequency (
    event_country TEXT NOT NULL,
    encoded DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS location_attributes (
    event_location TEXT NOT NULL,
    event_country TEXT NOT NULL,
    swim_type TEXT NOT NULL DEFAULT '',
    bike_type TEXT NOT NULL DEFAULT '',
    run_type TEXT NOT NULL DEFAULT '',
    latitude DOUBLE PRECISION NOT NULL,
    longitude DOUBLE PRECISION NOT NULL,
    altitude_m DOUBLE PRECISION,
    air_temp_c DOUBLE PRECISION,
    water_temp_c DOUBLE PRECISION
);
CREATE TABLE IF NOT EXISTS sport_types_per_location (
    row_id INTEGER NOT NULL,
    event_location_encoded DOUBLE PRECISION NOT NULL,
    feature TEXT NOT NULL,
    value DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS historical_results (
    event_location TEXT NOT NULL,
    swim_time DOUBLE PRECISION,
    bike_time DOUBLE PRECISION,
    run_time DOUBLE PRECISION
);
`

// Rows is the subset of a result set the SQL loader reads
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// Queryer runs read-only queries against a reference database
type Queryer interface {
	Query(ctx context.Context, query string) (Rows, error)
}

// PgxQueryer runs queries on a pgx pool
type PgxQueryer struct {
	pool *pgxpool.Pool
}

// NewPgxQueryer creates a new pgx backed queryer
func NewPgxQueryer(pool *pgxpool.Pool) *PgxQueryer {
	return &PgxQueryer{pool: pool}
}

// Query runs a query
func (q *PgxQueryer) Query(ctx context.Context, query string) (Rows, error) {
	rows, err := q.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SQLQueryer runs queries on a database/sql handle
type SQLQueryer struct {
	db *sql.DB
}

// NewSQLQueryer creates a new database/sql backed queryer
func NewSQLQueryer(db *sql.DB) *SQLQueryer {
	return &SQLQueryer{db: db}
}

// Query runs a query
func (q *SQLQueryer) Query(ctx context.Context, query string) (Rows, error) {
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return sqlRows{rows}, nil
}

type sqlRows struct {
	*sql.Rows
}

func (r sqlRows) Close() { _ = r.Rows.Close() }

// SQLLoader reads reference tables from a SQL database laid out per Schema
type SQLLoader struct {
	q    Queryer
	name string
}

// NewSQLLoader creates a new SQL loader
func NewSQLLoader(q Queryer, name string) *SQLLoader {
	return &SQLLoader{q: q, name: name}
}

// Name returns the name of the source
func (l *SQLLoader) Name() string {
	return l.name
}

// Load reads and validates every table
func (l *SQLLoader) Load(ctx context.Context) (*models.ReferenceTables, error) {
	b := newTableBuilder()

	frequencies := []struct {
		table string
		query string
	}{
		{models.TableCountryFrequency, `SELECT country, encoded FROM country_frequency`},
		{models.TableEventLocationFrequency, `SELECT event_location, encoded FROM event_location_frequency`},
		{models.TableEventCountryFrequency, `SELECT event_country, encoded FROM event_country_frequency`},
	}
	for _, f := range frequencies {
		err := l.each(ctx, f.table, f.query, func(rows Rows) error {
			var key string
			var value float64
			if err := rows.Scan(&key, &value); err != nil {
				return err
			}
			return b.addFrequency(f.table, key, value)
		})
		if err != nil {
			return nil, err
		}
	}

	err := l.each(ctx, models.TableLocationAttributes, `
		SELECT event_location, event_country, swim_type, bike_type, run_type,
		       latitude, longitude, altitude_m, air_temp_c, water_temp_c
		FROM location_attributes`, func(rows Rows) error {
		var row models.LocationAttributes
		var alt, air, water sql.NullFloat64
		if err := rows.Scan(&row.EventLocation, &row.HostCountry, &row.SwimType, &row.BikeType, &row.RunType,
			&row.Latitude, &row.Longitude, &alt, &air, &water); err != nil {
			return err
		}
		row.AltitudeMeters = nullToNaN(alt)
		row.AvgAirTempC = nullToNaN(air)
		row.AvgWaterTempC = nullToNaN(water)
		return b.addLocation(row)
	})
	if err != nil {
		return nil, err
	}

	if err := l.loadSportTypes(ctx, b); err != nil {
		return nil, err
	}

	err = l.each(ctx, models.TableHistoricalResults, `
		SELECT event_location, swim_time, bike_time, run_time FROM historical_results`, func(rows Rows) error {
		var location string
		var swim, bike, run sql.NullFloat64
		if err := rows.Scan(&location, &swim, &bike, &run); err != nil {
			return err
		}
		b.addResult(models.HistoricalResult{
			EventLocation: location,
			SwimTime:      nullToNaN(swim),
			BikeTime:      nullToNaN(bike),
			RunTime:       nullToNaN(run),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return b.build()
}

// loadSportTypes pivots the long-form table back into one row per row_id.
// Every row must carry every feature.
func (l *SQLLoader) loadSportTypes(ctx context.Context, b *tableBuilder) error {
	type pivot struct {
		encoded float64
		values  map[string]float64
	}
	var order []int64
	byID := make(map[int64]*pivot)
	var columns []string
	seen := make(map[string]bool)

	err := l.each(ctx, models.TableSportTypesPerLocation, `
		SELECT row_id, event_location_encoded, feature, value
		FROM sport_types_per_location
		ORDER BY row_id, feature`, func(rows Rows) error {
		var id int64
		var encoded, value float64
		var feature string
		if err := rows.Scan(&id, &encoded, &feature, &value); err != nil {
			return err
		}
		p, ok := byID[id]
		if !ok {
			p = &pivot{encoded: encoded, values: make(map[string]float64)}
			byID[id] = p
			order = append(order, id)
		}
		if p.encoded != encoded {
			return models.NewDataLoadError(models.TableSportTypesPerLocation, "row has more than one EventLocation_Encoded", nil)
		}
		p.values[feature] = value
		if !seen[feature] {
			seen[feature] = true
			columns = append(columns, feature)
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.setSportColumns(columns)
	for _, id := range order {
		p := byID[id]
		for _, c := range columns {
			if _, ok := p.values[c]; !ok {
				p.values[c] = math.NaN()
			}
		}
		if err := b.addSportTypes(p.encoded, p.values); err != nil {
			return err
		}
	}
	return nil
}

func (l *SQLLoader) each(ctx context.Context, table, query string, fn func(Rows) error) error {
	rows, err := l.q.Query(ctx, query)
	if err != nil {
		return models.NewDataLoadError(table, "query failed", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			var loadErr *models.DataLoadError
			if errors.As(err, &loadErr) {
				return err
			}
			return models.NewDataLoadError(table, "malformed row", err)
		}
	}
	if err := rows.Err(); err != nil {
		return models.NewDataLoadError(table, "failed to read rows", err)
	}
	return nil
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
