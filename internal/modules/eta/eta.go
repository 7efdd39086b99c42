// README: Driver-to-pickup ETA estimation. Live routing first, distance heuristic when routing is unavailable.
package eta

import (
	"context"
	"math"
	"time"

	"pickup/internal/geo"
	"pickup/internal/metrics"

	"github.com/rs/zerolog"
)

type Source string

const (
	SourceRouting  Source = "routing"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)

const DefaultTimeout = 5 * time.Second

// Result is always usable. Source tells where Duration came from.
type Result struct {
	Duration time.Duration
	Source   Source
}

// Router returns a traffic-aware driving time between two points.
type Router interface {
	Route(ctx context.Context, origin, destination geo.Point) (time.Duration, error)
}

// Cache stores routing results for nearby origin/destination pairs.
type Cache interface {
	Get(ctx context.Context, origin, destination geo.Point) (time.Duration, bool, error)
	Set(ctx context.Context, origin, destination geo.Point, d time.Duration) error
}

type Options struct {
	Cache   Cache
	Timeout time.Duration
	Logger  zerolog.Logger
	Metrics *metrics.Recorder
}

type Estimator struct {
	router  Router
	cache   Cache
	timeout time.Duration
	log     zerolog.Logger
	metrics *metrics.Recorder
}

// NewEstimator builds an estimator. A nil router means every estimate uses
// the distance heuristic.
func NewEstimator(router Router, opts Options) *Estimator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Estimator{
		router:  router,
		cache:   opts.Cache,
		timeout: timeout,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
}

// Estimate never fails. Routing problems are logged and replaced by Fallback.
func (e *Estimator) Estimate(ctx context.Context, origin, destination geo.Point) Result {
	if e.router == nil {
		return e.fallback(origin, destination)
	}

	if e.cache != nil {
		d, ok, err := e.cache.Get(ctx, origin, destination)
		if err != nil {
			e.log.Warn().Err(err).Msg("eta cache read failed")
		} else if ok && d > 0 {
			e.metrics.ETA(string(SourceCache))
			return Result{Duration: d, Source: SourceCache}
		}
	}

	rctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	d, err := e.router.Route(rctx, origin, destination)
	e.metrics.RoutingLatency(time.Since(start))
	if err != nil || d <= 0 {
		e.log.Warn().Err(err).
			Str("origin", origin.String()).
			Str("destination", destination.String()).
			Dur("routed", d).
			Msg("routing unavailable, using distance heuristic")
		return e.fallback(origin, destination)
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, origin, destination, d); err != nil {
			e.log.Warn().Err(err).Msg("eta cache write failed")
		}
	}
	e.metrics.ETA(string(SourceRouting))
	return Result{Duration: d, Source: SourceRouting}
}

func (e *Estimator) fallback(origin, destination geo.Point) Result {
	e.metrics.ETA(string(SourceFallback))
	return Result{Duration: Fallback(geo.Distance(origin, destination)), Source: SourceFallback}
}

// Fallback assumes two minutes per kilometre, rounded up to whole minutes.
func Fallback(distanceMeters float64) time.Duration {
	if distanceMeters <= 0 || math.IsNaN(distanceMeters) {
		return 0
	}
	minutes := math.Ceil(distanceMeters / 1000 * 2)
	return time.Duration(minutes) * time.Minute
}
