// README: Address store backed by PostgreSQL.
package address

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pickup/internal/geo"
	"pickup/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, a *Address) error {
	var lat, lng *float64
	if a.Location != nil {
		lat, lng = &a.Location.Lat, &a.Location.Lng
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO addresses (
			id, street, city, state, zip_code, country, lat, lng, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(a.ID), a.Street, a.City, a.State, a.ZipCode, a.Country,
		lat, lng, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Address, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, street, city, state, zip_code, country, lat, lng, created_at, updated_at
		FROM addresses
		WHERE id = $1`, string(id),
	)

	var a Address
	var lat, lng *float64
	err := row.Scan(
		&a.ID, &a.Street, &a.City, &a.State, &a.ZipCode, &a.Country,
		&lat, &lng, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		a.Location = &geo.Point{Lat: *lat, Lng: *lng}
	}
	return &a, nil
}
