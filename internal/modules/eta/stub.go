package eta

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"pickup/internal/geo"
)

// StubRouter is a deterministic Router. It drives at SpeedKmh along the
// great-circle line, or returns Err when set. Delay simulates a slow API and
// honours ctx.
type StubRouter struct {
	SpeedKmh float64
	Err      error
	Delay    time.Duration

	calls atomic.Int64
}

func (s *StubRouter) Route(ctx context.Context, origin, destination geo.Point) (time.Duration, error) {
	s.calls.Add(1)
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-t.C:
		}
	}
	if s.Err != nil {
		return 0, s.Err
	}
	speed := s.SpeedKmh
	if speed <= 0 {
		speed = 30
	}
	hours := geo.DistanceKm(origin, destination) / speed
	return time.Duration(math.Ceil(hours*3600)) * time.Second, nil
}

// Calls reports how many times Route ran.
func (s *StubRouter) Calls() int64 {
	return s.calls.Load()
}
