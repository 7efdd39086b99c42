// README: Locator ranks candidate drivers for a pickup point.
package matching

import (
	"context"

	"pickup/internal/config"
	"pickup/internal/geo"
)

type CandidateSource interface {
	NearbyAvailable(ctx context.Context, p geo.Point, radiusMeters float64, limit int) ([]Candidate, error)
}

type Locator struct {
	source        CandidateSource
	radiusMeters  float64
	maxCandidates int
}

func NewLocator(source CandidateSource, cfg config.DispatchConfig) *Locator {
	l := &Locator{source: source, radiusMeters: cfg.RadiusMeters, maxCandidates: cfg.MaxCandidates}
	if l.radiusMeters <= 0 {
		l.radiusMeters = DefaultRadiusMeters
	}
	if l.maxCandidates <= 0 {
		l.maxCandidates = DefaultMaxCandidates
	}
	return l
}

// FindCandidates returns at most maxCandidates drivers ordered by distance
// then id. No candidates is not an error.
func (l *Locator) FindCandidates(ctx context.Context, p geo.Point) ([]Candidate, error) {
	found, err := l.source.NearbyAvailable(ctx, p, l.radiusMeters, l.maxCandidates)
	if err != nil {
		return nil, err
	}

	out := found[:0]
	for _, c := range found {
		if c.Driver.Location == nil || c.DistanceMeters > l.radiusMeters {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, nil
	}

	geo.SortByDistance(out,
		func(c Candidate) float64 { return c.DistanceMeters },
		func(c Candidate) string { return string(c.Driver.ID) },
	)
	if len(out) > l.maxCandidates {
		out = out[:l.maxCandidates]
	}
	return out, nil
}
