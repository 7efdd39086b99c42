package address

import (
	"context"
	"strings"
	"time"

	"pickup/internal/geo"
	"pickup/internal/types"
)

type Repository interface {
	Create(ctx context.Context, a *Address) error
	Get(ctx context.Context, id types.ID) (*Address, error)
}

type Service struct {
	store Repository
}

func NewService(store Repository) *Service {
	return &Service{store: store}
}

type CreateCommand struct {
	Street   string
	City     string
	State    string
	ZipCode  string
	Country  string
	Location *geo.Point
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Address, error) {
	fields := []*string{&cmd.Street, &cmd.City, &cmd.State, &cmd.ZipCode, &cmd.Country}
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
		if *f == "" {
			return nil, ErrBadRequest
		}
	}
	if cmd.Location != nil && !cmd.Location.Valid() {
		return nil, ErrBadRequest
	}

	now := time.Now().UTC()
	a := &Address{
		ID:        types.NewID(),
		Street:    cmd.Street,
		City:      cmd.City,
		State:     cmd.State,
		ZipCode:   cmd.ZipCode,
		Country:   cmd.Country,
		Location:  cmd.Location,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Get treats a malformed ID as unknown.
func (s *Service) Get(ctx context.Context, id types.ID) (*Address, error) {
	if !types.ValidID(string(id)) {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, id)
}
