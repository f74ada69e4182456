package geo

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/race-time-predictor/internal/models"
)

type countingGeocoder struct {
	centroids map[string]models.Coordinates
	calls     atomic.Int32
	gate      chan struct{}
	err       error
}

func (g *countingGeocoder) Name() string { return "counting" }

func (g *countingGeocoder) Geocode(ctx context.Context, place string) (models.Coordinates, error) {
	g.calls.Add(1)
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return models.Coordinates{}, ctx.Err()
		}
	}
	if g.err != nil {
		return models.Coordinates{}, g.err
	}
	c, ok := g.centroids[place]
	if !ok {
		return models.Coordinates{}, ErrPlaceNotFound
	}
	return c, nil
}

type memoryStore struct {
	mu        sync.Mutex
	centroids map[string]models.Coordinates
	puts      int
}

func (s *memoryStore) GetCentroid(_ context.Context, country string) (models.Coordinates, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.centroids[country]
	return c, ok, nil
}

func (s *memoryStore) PutCentroid(_ context.Context, country string, c models.Coordinates) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.centroids[country] = c
	s.puts++
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestResolverCachesCentroids(t *testing.T) {
	geocoder := &countingGeocoder{centroids: map[string]models.Coordinates{"Spain": {Lat: 40, Lon: -4}}}
	r := NewResolver(geocoder, nil, ResolverConfig{}, testLogger())

	for i := 0; i < 5; i++ {
		c, err := r.ResolveCentroid(context.Background(), "Spain")
		require.NoError(t, err)
		assert.Equal(t, models.Coordinates{Lat: 40, Lon: -4}, c)
	}

	assert.Equal(t, int32(1), geocoder.calls.Load())
	lookups, calls := r.Stats()
	assert.Equal(t, uint64(5), lookups)
	assert.Equal(t, uint64(1), calls)
}

func TestResolverCollapsesConcurrentLookups(t *testing.T) {
	geocoder := &countingGeocoder{
		centroids: map[string]models.Coordinates{"France": {Lat: 46, Lon: 2}},
		gate:      make(chan struct{}),
	}
	r := NewResolver(geocoder, nil, ResolverConfig{Timeout: 5 * time.Second}, testLogger())

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.ResolveCentroid(context.Background(), "France")
			errs <- err
		}()
	}

	// Let the single in-flight call finish once every worker is queued behind it.
	require.Eventually(t, func() bool { return geocoder.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(geocoder.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), geocoder.calls.Load())
}

func TestResolverUnavailable(t *testing.T) {
	t.Run("unknown country", func(t *testing.T) {
		geocoder := &countingGeocoder{centroids: map[string]models.Coordinates{}}
		r := NewResolver(geocoder, nil, ResolverConfig{}, testLogger())

		_, err := r.ResolveCentroid(context.Background(), "Atlantis")
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrGeocodeUnavailable))
	})

	t.Run("negative results are cached for the ttl", func(t *testing.T) {
		geocoder := &countingGeocoder{err: errors.New("connection refused")}
		r := NewResolver(geocoder, nil, ResolverConfig{NegativeTTL: time.Minute}, testLogger())

		for i := 0; i < 3; i++ {
			_, err := r.ResolveCentroid(context.Background(), "Spain")
			assert.True(t, errors.Is(err, models.ErrGeocodeUnavailable))
		}
		assert.Equal(t, int32(1), geocoder.calls.Load())
	})

	t.Run("failures are retried without a negative ttl", func(t *testing.T) {
		geocoder := &countingGeocoder{err: errors.New("connection refused")}
		r := NewResolver(geocoder, nil, ResolverConfig{}, testLogger())

		for i := 0; i < 3; i++ {
			_, err := r.ResolveCentroid(context.Background(), "Spain")
			assert.Error(t, err)
		}
		assert.Equal(t, int32(3), geocoder.calls.Load())
	})

	t.Run("caller context cancelled", func(t *testing.T) {
		geocoder := &countingGeocoder{
			centroids: map[string]models.Coordinates{"Spain": {Lat: 40, Lon: -4}},
			gate:      make(chan struct{}),
		}
		r := NewResolver(geocoder, nil, ResolverConfig{Timeout: 5 * time.Second}, testLogger())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := r.ResolveCentroid(ctx, "Spain")
		assert.True(t, errors.Is(err, models.ErrGeocodeUnavailable))

		// The in-flight lookup still completes for later callers.
		close(geocoder.gate)
		c, err := r.ResolveCentroid(context.Background(), "Spain")
		require.NoError(t, err)
		assert.Equal(t, 40.0, c.Lat)
	})
}

func TestResolverUsesStore(t *testing.T) {
	store := &memoryStore{centroids: map[string]models.Coordinates{"Italy": {Lat: 42.5, Lon: 12.5}}}
	geocoder := &countingGeocoder{centroids: map[string]models.Coordinates{"Spain": {Lat: 40, Lon: -4}}}
	r := NewResolver(geocoder, store, ResolverConfig{}, testLogger())

	c, err := r.ResolveCentroid(context.Background(), "Italy")
	require.NoError(t, err)
	assert.Equal(t, 42.5, c.Lat)
	assert.Equal(t, int32(0), geocoder.calls.Load())

	_, err = r.ResolveCentroid(context.Background(), "Spain")
	require.NoError(t, err)
	assert.Equal(t, 1, store.puts)
	assert.Contains(t, store.centroids, "Spain")
}

func TestResolverDistanceFromCountry(t *testing.T) {
	geocoder := &countingGeocoder{centroids: map[string]models.Coordinates{"Nowhere": {Lat: 0, Lon: 0}}}
	r := NewResolver(geocoder, nil, ResolverConfig{}, testLogger())

	meters, err := r.DistanceFromCountry(context.Background(), "Nowhere", models.Coordinates{Lat: 0, Lon: 1})
	require.NoError(t, err)
	assert.InDelta(t, 111319.49, meters, 0.01)
}
