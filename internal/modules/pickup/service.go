// README: Pickup service implements lifecycle transitions and hands drivers back on completion or cancellation.
package pickup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pickup/internal/metrics"
	"pickup/internal/modules/driver"
	"pickup/internal/types"
)

var (
	ErrInvalidState = errors.New("invalid state transition")
	ErrNotFound     = errors.New("pickup request not found")
	ErrConflict     = errors.New("pickup request state conflict")
	ErrBadRequest   = errors.New("bad request")
	// ErrDriverBusy means the driver already backs another active request.
	ErrDriverBusy = errors.New("driver already holds an active pickup request")
)

// Release reasons reported to metrics.
const (
	ReleaseComplete = "complete"
	ReleaseCancel   = "cancel"
)

const revertTimeout = 5 * time.Second

type Repository interface {
	Get(ctx context.Context, id types.ID) (*Request, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error)
	Revert(ctx context.Context, prev *Request, from Status) (bool, error)
}

// DriverStatusSetter is the conditional driver status update used to return
// a driver to the available pool.
type DriverStatusSetter interface {
	CompareAndSetStatus(ctx context.Context, id types.ID, expected, next driver.Status) (bool, error)
}

type Service struct {
	store   Repository
	drivers DriverStatusSetter
	log     zerolog.Logger
	metrics *metrics.Recorder
}

func NewService(store Repository, drivers DriverStatusSetter, log zerolog.Logger, rec *metrics.Recorder) *Service {
	return &Service{store: store, drivers: drivers, log: log, metrics: rec}
}

type StartCommand struct {
	RequestID types.ID
}

type CompleteCommand struct {
	RequestID types.ID
}

type CancelCommand struct {
	RequestID types.ID
	Reason    string
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Request, error) {
	if !types.ValidID(string(id)) {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, id)
}

func (s *Service) Start(ctx context.Context, cmd StartCommand) (*Request, error) {
	r, err := s.Get(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(r.Status, StatusInProgress) {
		return nil, ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, StatusInProgress, r.StatusVersion, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	return s.store.Get(ctx, r.ID)
}

// Complete is idempotent for requests that are already completed.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*Request, error) {
	r, err := s.Get(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusCompleted {
		return r, nil
	}
	if !CanTransition(r.Status, StatusCompleted) {
		return nil, ErrInvalidState
	}
	return s.finish(ctx, r, StatusCompleted, nil, ReleaseComplete)
}

// Cancel is idempotent for requests that are already cancelled.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Request, error) {
	r, err := s.Get(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if r.Status == StatusCancelled {
		return r, nil
	}
	if !CanTransition(r.Status, StatusCancelled) {
		return nil, ErrInvalidState
	}
	var reason *string
	if v := strings.TrimSpace(cmd.Reason); v != "" {
		reason = &v
	}
	return s.finish(ctx, r, StatusCancelled, reason, ReleaseCancel)
}

// finish applies a terminal transition and releases the linked driver. If the
// release fails the transition is rolled back so the caller can retry.
func (s *Service) finish(ctx context.Context, r *Request, to Status, reason *string, releaseReason string) (*Request, error) {
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, to, r.StatusVersion, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.settled(ctx, r.ID, to)
	}

	if r.DriverID != nil && IsActive(r.Status) {
		released, err := s.drivers.CompareAndSetStatus(ctx, *r.DriverID, driver.StatusInService, driver.StatusAvailable)
		if err != nil {
			s.revert(ctx, r, to)
			return nil, fmt.Errorf("release driver %s: %w", *r.DriverID, err)
		}
		if released {
			s.metrics.Release(releaseReason)
		} else {
			s.log.Debug().
				Str("request_id", string(r.ID)).
				Str("driver_id", string(*r.DriverID)).
				Msg("driver no longer in service, nothing to release")
		}
	}

	return s.store.Get(ctx, r.ID)
}

// settled resolves a lost optimistic update. A concurrent caller that already
// moved the request to the same terminal status makes this call a no-op.
func (s *Service) settled(ctx context.Context, id types.ID, to Status) (*Request, error) {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case current.Status == to:
		return current, nil
	case IsTerminal(current.Status):
		return nil, ErrInvalidState
	}
	return nil, ErrConflict
}

func (s *Service) revert(parent context.Context, prev *Request, from Status) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), revertTimeout)
	defer cancel()

	ok, err := s.store.Revert(ctx, prev, from)
	if err != nil || !ok {
		s.log.Error().Err(err).
			Str("request_id", string(prev.ID)).
			Str("status", string(prev.Status)).
			Bool("applied", ok).
			Msg("failed to roll back request after driver release error")
	}
}
