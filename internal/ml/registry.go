package ml

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/yourusername/race-time-predictor/internal/config"
	"github.com/yourusername/race-time-predictor/internal/logger"
	"github.com/yourusername/race-time-predictor/internal/models"
)

// Backend names
const (
	BackendXGBoost = "xgboost"
	BackendHTTP    = "http"
	BackendGRPC    = "grpc"
)

// Entry is the load outcome of one segment model
type Entry struct {
	Segment models.Segment
	Backend string
	Model   Model
	Err     error
}

// Registry holds the model of every segment. A segment whose model failed to
// load keeps its error so requests can report it.
type Registry struct {
	mu      sync.RWMutex
	entries map[models.Segment]*Entry
	conns   []*grpc.ClientConn
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[models.Segment]*Entry)}
}

// Register sets the model of a segment
func (r *Registry) Register(segment models.Segment, backend string, model Model) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[segment] = &Entry{Segment: segment, Backend: backend, Model: model}
	MLModelUp.WithLabelValues(string(segment)).Set(1)
}

// MarkUnavailable records that a segment model could not be loaded
func (r *Registry) MarkUnavailable(segment models.Segment, backend string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[segment] = &Entry{Segment: segment, Backend: backend, Err: err}
	MLModelUp.WithLabelValues(string(segment)).Set(0)
}

// Model returns the model of a segment or an error wrapping
// models.ErrModelUnavailable
func (r *Registry) Model(segment models.Segment) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[segment]
	if !ok {
		return nil, fmt.Errorf("%w: no model configured for %s", models.ErrModelUnavailable, segment)
	}
	if entry.Err != nil || entry.Model == nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrModelUnavailable, segment, entry.Err)
	}
	return entry.Model, nil
}

// Entries returns every registered segment in presentation order
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entry
	for _, segment := range models.AllSegments {
		if e, ok := r.entries[segment]; ok {
			out = append(out, *e)
		}
	}
	return out
}

// Loaded returns the number of segments with a usable model
func (r *Registry) Loaded() int {
	n := 0
	for _, e := range r.Entries() {
		if e.Err == nil && e.Model != nil {
			n++
		}
	}
	return n
}

// Backends returns the backend of every registered segment
func (r *Registry) Backends() map[string]string {
	out := make(map[string]string)
	for _, e := range r.Entries() {
		out[string(e.Segment)] = e.Backend
	}
	return out
}

// Probe health checks every remote model and updates the availability gauge
func (r *Registry) Probe(ctx context.Context, mlLogger *logger.MLLogger) map[models.Segment]error {
	results := make(map[models.Segment]error)
	for _, e := range r.Entries() {
		prober, ok := e.Model.(Prober)
		if !ok {
			continue
		}
		start := time.Now()
		err := prober.HealthCheck(ctx)
		latency := float64(time.Since(start).Microseconds()) / 1000
		results[e.Segment] = err

		up := 1.0
		if err != nil {
			up = 0
		}
		MLModelUp.WithLabelValues(string(e.Segment)).Set(up)
		if mlLogger != nil {
			mlLogger.LogModelProbe(string(e.Segment), err == nil, latency, err)
		}
	}
	return results
}

// Close releases remote connections
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, conn := range r.conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.conns = nil
	return errors.Join(errs...)
}

// LoadRegistry loads every configured segment model. A failing segment is
// recorded as unavailable and does not stop the others from loading.
func LoadRegistry(ctx context.Context, cfg config.ModelsConfig, mlCfg config.MLServiceConfig, log *logrus.Logger) *Registry {
	r := NewRegistry()
	mlLogger := logger.NewMLLogger(log)

	var conn *grpc.ClientConn
	var cache *PredictionCache
	if mlCfg.CacheTTLSeconds > 0 {
		cache = NewPredictionCache(time.Duration(mlCfg.CacheTTLSeconds)*time.Second, mlCfg.CacheMaxSize)
	}

	for _, segment := range models.AllSegments {
		mc, ok := cfg.Segments[string(segment)]
		if !ok {
			continue
		}

		var model Model
		var err error
		switch mc.Backend {
		case BackendXGBoost:
			path := mc.Path
			if !filepath.IsAbs(path) && cfg.Dir != "" {
				path = filepath.Join(cfg.Dir, path)
			}
			name := mc.Name
			if name == "" {
				name = filepath.Base(path)
			}
			model, err = LoadXGBoostModel(path, name, mc.Features)

		case BackendHTTP:
			model, err = NewHTTPModel(ctx, mlCfg, remoteName(mc, segment), mc.Features, log)

		case BackendGRPC:
			if conn == nil {
				conn, err = NewGRPCConn(mlCfg)
				if err == nil {
					r.conns = append(r.conns, conn)
				}
			}
			if err == nil {
				model, err = NewGRPCModel(ctx, conn, remoteName(mc, segment), mc.Features, mlCfg.RequestTimeout(), log)
			}

		default:
			err = fmt.Errorf("unknown model backend: %s", mc.Backend)
		}

		if err != nil {
			mlLogger.LogModelLoadFailed(string(segment), mc.Backend, err)
			r.MarkUnavailable(segment, mc.Backend, err)
			continue
		}

		if mc.Cache && cache != nil && mc.Backend != BackendXGBoost {
			model = NewCachedModel(model, cache, log)
		}
		r.Register(segment, mc.Backend, model)
		mlLogger.LogModelLoaded(string(segment), mc.Backend, model.Name(), len(model.FeatureNames()))
	}

	return r
}

func remoteName(mc config.ModelConfig, segment models.Segment) string {
	if mc.Name != "" {
		return mc.Name
	}
	return string(segment)
}
