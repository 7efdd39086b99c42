// README: Driver service: registration, position updates and manual availability overrides.
package driver

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"pickup/internal/geo"
	"pickup/internal/types"
)

type Repository interface {
	Create(ctx context.Context, d *Driver) error
	Get(ctx context.Context, id types.ID) (*Driver, error)
	SetStatus(ctx context.Context, id types.ID, status Status) error
	UpdateLocation(ctx context.Context, id types.ID, p geo.Point, at time.Time) error
	List(ctx context.Context, status Status, limit int) ([]Driver, error)
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

var validate = validator.New()

type Service struct {
	store Repository
}

func NewService(store Repository) *Service {
	return &Service{store: store}
}

type CreateCommand struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Location  *geo.Point
	Rating    *float64
	// Status defaults to available. in_service is only reachable through a claim.
	Status Status
}

type ListQuery struct {
	// Status filters when set.
	Status Status
	Limit  int
}

type UpdateLocationCommand struct {
	DriverID types.ID
	Location geo.Point
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Driver, error) {
	cmd.FirstName = strings.TrimSpace(cmd.FirstName)
	cmd.LastName = strings.TrimSpace(cmd.LastName)
	cmd.Email = strings.TrimSpace(cmd.Email)
	cmd.Phone = strings.TrimSpace(cmd.Phone)
	if cmd.FirstName == "" || cmd.LastName == "" || cmd.Phone == "" {
		return nil, ErrBadRequest
	}
	if err := validate.Var(cmd.Email, "required,email"); err != nil {
		return nil, ErrBadRequest
	}
	if cmd.Location != nil && !cmd.Location.Valid() {
		return nil, ErrBadRequest
	}
	if cmd.Rating != nil && (*cmd.Rating < 0 || *cmd.Rating > 5) {
		return nil, ErrBadRequest
	}
	if cmd.Status == "" {
		cmd.Status = StatusAvailable
	}
	if cmd.Status != StatusAvailable && cmd.Status != StatusOffline {
		return nil, ErrBadRequest
	}

	now := time.Now().UTC()
	d := &Driver{
		ID:        types.NewID(),
		FirstName: cmd.FirstName,
		LastName:  cmd.LastName,
		Email:     strings.ToLower(cmd.Email),
		Phone:     cmd.Phone,
		Status:    cmd.Status,
		Location:  cmd.Location,
		Rating:    cmd.Rating,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	if !types.ValidID(string(id)) {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, id)
}

// List returns drivers ordered by creation time, newest first.
func (s *Service) List(ctx context.Context, q ListQuery) ([]Driver, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, ErrBadRequest
	}
	switch {
	case q.Limit < 0 || q.Limit > MaxListLimit:
		return nil, ErrBadRequest
	case q.Limit == 0:
		q.Limit = DefaultListLimit
	}
	return s.store.List(ctx, q.Status, q.Limit)
}

func (s *Service) UpdateLocation(ctx context.Context, cmd UpdateLocationCommand) (*Driver, error) {
	if !cmd.Location.Valid() {
		return nil, ErrBadRequest
	}
	if !types.ValidID(string(cmd.DriverID)) {
		return nil, ErrNotFound
	}
	if err := s.store.UpdateLocation(ctx, cmd.DriverID, cmd.Location, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, cmd.DriverID)
}

// SetAvailable and SetOffline are operator overrides. They bypass the claim
// protocol, so a driver serving a request can be forced offline.
func (s *Service) SetAvailable(ctx context.Context, id types.ID) (*Driver, error) {
	return s.setStatus(ctx, id, StatusAvailable)
}

func (s *Service) SetOffline(ctx context.Context, id types.ID) (*Driver, error) {
	return s.setStatus(ctx, id, StatusOffline)
}

func (s *Service) setStatus(ctx context.Context, id types.ID, status Status) (*Driver, error) {
	if !types.ValidID(string(id)) {
		return nil, ErrNotFound
	}
	if err := s.store.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, id)
}
