package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/race-time-predictor/internal/config"
	"github.com/yourusername/race-time-predictor/internal/database"
	"github.com/yourusername/race-time-predictor/internal/features"
	"github.com/yourusername/race-time-predictor/internal/geo"
	"github.com/yourusername/race-time-predictor/internal/metrics"
	"github.com/yourusername/race-time-predictor/internal/ml"
	"github.com/yourusername/race-time-predictor/internal/models"
	"github.com/yourusername/race-time-predictor/internal/refdata"
	"github.com/yourusername/race-time-predictor/internal/repository"
	"github.com/yourusername/race-time-predictor/internal/service"
)

// pipeline holds every component a prediction needs
type pipeline struct {
	db        *database.DB
	repos     *repository.Repositories
	tables    *models.ReferenceTables
	resolver  *geo.Resolver
	assembler *features.Assembler
	registry  *ml.Registry
	service   *service.PredictionService

	closers []func() error
}

// buildPipeline connects storage, loads reference data and models, and wires
// the prediction service
func buildPipeline(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*pipeline, error) {
	p := &pipeline{}

	if cfg.NeedsDatabase() {
		db, err := database.Initialize(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		p.db = db
		p.closers = append(p.closers, func() error { db.Close(); return nil })

		if p.repos, err = repository.NewRepositories(db); err != nil {
			p.Close()
			return nil, err
		}
	}

	tables, err := loadReferenceData(ctx, cfg, p.pool(), log)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.tables = tables

	geocoder, err := newGeocoder(cfg.Geocoding, log)
	if err != nil {
		p.Close()
		return nil, err
	}

	store, err := p.newCentroidStore(ctx, cfg.CentroidStore)
	if err != nil {
		p.Close()
		return nil, err
	}

	p.resolver = geo.NewResolver(geocoder, store, geo.ResolverConfig{
		Timeout:     cfg.Geocoding.Timeout(),
		NegativeTTL: time.Duration(cfg.Geocoding.NegativeTTLSeconds) * time.Second,
	}, log)

	p.assembler = features.NewAssembler(tables, p.resolver, features.DistancePolicy{
		OnUnavailable: cfg.Distance.OnUnavailable,
		DefaultMeters: cfg.Distance.DefaultMeters,
	}, log)

	p.registry = ml.LoadRegistry(ctx, cfg.Models, cfg.MLService, log)
	p.closers = append(p.closers, p.registry.Close)
	metrics.UpdateModelsLoaded(p.registry.Loaded())

	var logWriter service.PredictionLogWriter
	if cfg.PredictionLog.Enabled && p.repos != nil {
		logWriter = p.repos.PredictionLog
	}

	p.service = service.NewPredictionService(
		p.registry,
		p.assembler,
		service.NewComparisonService(tables),
		logWriter,
		log,
	)

	return p, nil
}

// loadReferenceData loads the tables and publishes their sizes
func loadReferenceData(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, log *logrus.Logger) (*models.ReferenceTables, error) {
	tables, err := refdata.Load(ctx, cfg.ReferenceData, pool, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}
	metrics.UpdateReferenceRows(tables.RowCounts())
	return tables, nil
}

func newGeocoder(cfg config.GeocodingConfig, log *logrus.Logger) (geo.Geocoder, error) {
	if cfg.Provider == "static" {
		g, err := geo.LoadStaticGeocoder(cfg.CentroidsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load centroids: %w", err)
		}
		log.WithField("countries", g.Len()).Info("Static geocoder loaded")
		return g, nil
	}

	nc := geo.DefaultNominatimConfig()
	if cfg.BaseURL != "" {
		nc.BaseURL = cfg.BaseURL
	}
	if cfg.UserAgent != "" {
		nc.UserAgent = cfg.UserAgent
	}
	nc.Timeout = cfg.Timeout()
	if cfg.RateLimit > 0 {
		nc.RateLimit = cfg.RateLimit
	}
	if cfg.RetryAttempts > 0 {
		nc.MaxRetries = cfg.RetryAttempts
	}
	if cfg.BreakerFailures > 0 {
		nc.BreakerFailures = cfg.BreakerFailures
	}
	if cfg.BreakerTimeoutSecs > 0 {
		nc.BreakerTimeout = time.Duration(cfg.BreakerTimeoutSecs) * time.Second
	}
	return geo.NewNominatimGeocoder(nc, log), nil
}

func (p *pipeline) newCentroidStore(ctx context.Context, cfg config.CentroidStoreConfig) (geo.CentroidStore, error) {
	switch cfg.Type {
	case "postgres":
		if p.repos == nil {
			return nil, errors.New("postgres centroid store requires the database")
		}
		return p.repos.Centroid, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := geo.NewRedisCentroidStore(client, cfg.KeyPrefix, time.Duration(cfg.TTLHours)*time.Hour)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		p.closers = append(p.closers, client.Close)
		return store, nil
	default:
		return nil, nil
	}
}

func (p *pipeline) pool() *pgxpool.Pool {
	if p.db == nil {
		return nil
	}
	return p.db.GetPool()
}

// Close releases connections in reverse order of creation
func (p *pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}
