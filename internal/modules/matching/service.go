// README: Dispatch coordinator: find candidates, claim one atomically, estimate arrival, persist the assignment.
package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pickup/internal/geo"
	"pickup/internal/metrics"
	"pickup/internal/modules/driver"
	"pickup/internal/modules/eta"
	"pickup/internal/modules/pickup"
	"pickup/internal/types"
)

const releaseTimeout = 5 * time.Second

// Release reason reported when a claimed driver is handed back before commit.
const ReleaseRollback = "dispatch_rollback"

// DriverClaimer moves a driver between statuses only if it is in the expected one.
type DriverClaimer interface {
	CompareAndSetStatus(ctx context.Context, id types.ID, expected, next driver.Status) (bool, error)
}

type RequestCreator interface {
	Create(ctx context.Context, r *pickup.Request) error
}

type Estimator interface {
	Estimate(ctx context.Context, origin, destination geo.Point) eta.Result
}

type Service struct {
	locator  *Locator
	drivers  DriverClaimer
	requests RequestCreator
	eta      Estimator
	log      zerolog.Logger
	metrics  *metrics.Recorder
}

func NewService(locator *Locator, drivers DriverClaimer, requests RequestCreator, estimator Estimator, log zerolog.Logger, rec *metrics.Recorder) *Service {
	return &Service{
		locator:  locator,
		drivers:  drivers,
		requests: requests,
		eta:      estimator,
		log:      log,
		metrics:  rec,
	}
}

// Dispatch assigns the nearest driver that can be claimed to a new pickup
// request. A driver is never left in service without a persisted request.
func (s *Service) Dispatch(ctx context.Context, cmd DispatchCommand) (*Assignment, error) {
	if cmd.Pickup == nil || !cmd.Pickup.Valid() ||
		strings.TrimSpace(cmd.CustomerName) == "" || strings.TrimSpace(cmd.CustomerPhone) == "" {
		s.metrics.Dispatch(metrics.OutcomeInvalid)
		return nil, ErrValidation
	}
	pickupAt := *cmd.Pickup

	candidates, err := s.locator.FindCandidates(ctx, pickupAt)
	if err != nil {
		s.metrics.Dispatch(metrics.OutcomeError)
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	if len(candidates) == 0 {
		s.metrics.Dispatch(metrics.OutcomeNoDriver)
		return nil, ErrNoAvailableDriver
	}

	remaining := candidates
	for {
		claimed, rest, err := s.claimFirst(ctx, remaining)
		if err != nil {
			s.metrics.Dispatch(metrics.OutcomeError)
			return nil, err
		}
		if claimed == nil {
			s.metrics.Dispatch(metrics.OutcomeNoDriver)
			return nil, ErrNoAvailableDriver
		}
		remaining = rest

		a, err := s.commit(ctx, cmd, pickupAt, claimed)
		if errors.Is(err, pickup.ErrDriverBusy) {
			// an operator override made a driver with an active request available again
			s.release(ctx, claimed.Driver.ID)
			s.metrics.ClaimConflict()
			s.log.Warn().Str("driver_id", string(claimed.Driver.ID)).Msg("claimed driver still holds an active request, trying next")
			continue
		}
		if err != nil {
			return nil, err
		}
		return a, nil
	}
}

// commit estimates arrival for a claimed candidate and persists the request.
// The driver is released on every failure except ErrDriverBusy, which the
// caller handles.
func (s *Service) commit(ctx context.Context, cmd DispatchCommand, pickupAt geo.Point, claimed *Candidate) (*Assignment, error) {
	d := claimed.Driver
	d.Status = driver.StatusInService

	estimate := s.eta.Estimate(ctx, *d.Location, pickupAt)

	if err := ctx.Err(); err != nil {
		s.release(ctx, d.ID)
		s.metrics.Dispatch(metrics.OutcomeError)
		return nil, err
	}

	now := time.Now().UTC()
	arrival := estimate.Duration
	driverID := d.ID
	req := &pickup.Request{
		ID:               types.NewID(),
		CustomerName:     strings.TrimSpace(cmd.CustomerName),
		CustomerPhone:    strings.TrimSpace(cmd.CustomerPhone),
		PickupAddressID:  cmd.PickupAddressID,
		Pickup:           pickupAt,
		DriverID:         &driverID,
		Status:           pickup.StatusAssigned,
		EstimatedArrival: &arrival,
		RequestedAt:      now,
		AssignedAt:       &now,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		if errors.Is(err, pickup.ErrDriverBusy) {
			return nil, err
		}
		s.release(ctx, d.ID)
		s.metrics.Dispatch(metrics.OutcomeCommitFailed)
		return nil, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}

	s.metrics.Dispatch(metrics.OutcomeAssigned)
	s.log.Info().
		Str("request_id", string(req.ID)).
		Str("driver_id", string(d.ID)).
		Float64("distance_m", claimed.DistanceMeters).
		Dur("eta", estimate.Duration).
		Str("eta_source", string(estimate.Source)).
		Msg("driver assigned")

	return &Assignment{Request: req, Driver: d, ETA: estimate}, nil
}

// claimFirst walks candidates in order and returns the first one whose
// available -> in_service update succeeds, plus the candidates after it.
// nil means every claim was lost.
func (s *Service) claimFirst(ctx context.Context, candidates []Candidate) (*Candidate, []Candidate, error) {
	for i := range candidates {
		c := &candidates[i]
		ok, err := s.drivers.CompareAndSetStatus(ctx, c.Driver.ID, driver.StatusAvailable, driver.StatusInService)
		if err != nil {
			return nil, nil, fmt.Errorf("claim driver %s: %w", c.Driver.ID, err)
		}
		if ok {
			return c, candidates[i+1:], nil
		}
		s.metrics.ClaimConflict()
		s.log.Debug().Str("driver_id", string(c.Driver.ID)).Msg("candidate claimed elsewhere, trying next")
	}
	return nil, nil, nil
}

// release hands a claimed driver back. It runs on a detached context so a
// cancelled caller cannot strand the driver in service.
func (s *Service) release(parent context.Context, id types.ID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), releaseTimeout)
	defer cancel()

	ok, err := s.drivers.CompareAndSetStatus(ctx, id, driver.StatusInService, driver.StatusAvailable)
	if err != nil {
		s.log.Error().Err(err).Str("driver_id", string(id)).Msg("failed to release claimed driver")
		return
	}
	if ok {
		s.metrics.Release(ReleaseRollback)
	}
}
